package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CategoryValuation aggregates inventory value for one category.
type CategoryValuation struct {
	CategoryCode string          `json:"category_code"`
	CategoryName string          `json:"category_name"`
	Kind         CategoryKind    `json:"kind"`
	SKUCount     int             `json:"sku_count"`
	TotalUnits   int             `json:"total_units"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// OverdueLoan is one active loaned tag past its due date.
type OverdueLoan struct {
	TagID       int    `json:"tag_id"`
	TagNumber   string `json:"tag_number"`
	Customer    string `json:"customer"`
	Project     string `json:"project"`
	DueDate     string `json:"due_date"` // YYYY-MM-DD
	DaysOverdue int    `json:"days_overdue"`
	UnitsHeld   int    `json:"units_held"`
}

// ValuationReport is the full valuation summary.
type ValuationReport struct {
	AsOf       string              `json:"as_of"`
	Categories []CategoryValuation `json:"categories"`
	GrandTotal decimal.Decimal     `json:"grand_total"`
}

// ReportingService produces read-only reports over instance/tag/inventory
// state. Nothing here mutates.
type ReportingService interface {
	// ValuationSummary sums instance acquisition costs per category.
	ValuationSummary(ctx context.Context) (*ValuationReport, error)

	// OverdueLoans lists active loaned tags whose due date is before asOf
	// (empty string means today).
	OverdueLoans(ctx context.Context, asOf string) ([]OverdueLoan, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) ValuationSummary(ctx context.Context) (*ValuationReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.code, c.name, c.kind,
		       COUNT(DISTINCT s.id),
		       COUNT(i.id),
		       COALESCE(SUM(i.acquisition_cost), 0)
		FROM categories c
		JOIN skus s ON s.category_id = c.id
		LEFT JOIN instances i ON i.sku_id = s.id
		GROUP BY c.id, c.code, c.name, c.kind
		ORDER BY c.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation summary: %w", err)
	}
	defer rows.Close()

	report := &ValuationReport{
		AsOf:       time.Now().Format("2006-01-02"),
		GrandTotal: decimal.Zero,
	}
	for rows.Next() {
		var cv CategoryValuation
		if err := rows.Scan(&cv.CategoryCode, &cv.CategoryName, &cv.Kind, &cv.SKUCount, &cv.TotalUnits, &cv.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan category valuation: %w", err)
		}
		report.Categories = append(report.Categories, cv)
		report.GrandTotal = report.GrandTotal.Add(cv.TotalValue)
	}
	return report, rows.Err()
}

func (s *reportingService) OverdueLoans(ctx context.Context, asOf string) ([]OverdueLoan, error) {
	if asOf == "" {
		asOf = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", asOf); err != nil {
		return nil, fmt.Errorf("invalid as-of date %q: %w", asOf, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT t.id, COALESCE(t.tag_number, ''), t.customer, t.project,
		       to_char(t.due_date, 'YYYY-MM-DD'),
		       ($1::date - t.due_date),
		       COUNT(i.id)
		FROM tags t
		LEFT JOIN instances i ON i.tag_id = t.id
		WHERE t.tag_type = 'loaned'
		  AND t.status = 'active'
		  AND t.due_date IS NOT NULL
		  AND t.due_date < $1::date
		GROUP BY t.id
		ORDER BY t.due_date
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue loans: %w", err)
	}
	defer rows.Close()

	var loans []OverdueLoan
	for rows.Next() {
		var l OverdueLoan
		if err := rows.Scan(&l.TagID, &l.TagNumber, &l.Customer, &l.Project, &l.DueDate, &l.DaysOverdue, &l.UnitsHeld); err != nil {
			return nil, fmt.Errorf("failed to scan overdue loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}
