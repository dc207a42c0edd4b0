package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateSKURequest creates a catalog SKU, optionally with bundle components.
type CreateSKURequest struct {
	Code         string
	CategoryCode string
	Name         string
	Description  string
	UnitCost     decimal.Decimal
	BundleItems  []BundleItemInput
	CreatedBy    string
}

// BundleItemInput is one component of a bundle SKU being created.
type BundleItemInput struct {
	ComponentSKUCode string
	Quantity         int
}

// CatalogService manages categories and SKU master records. Cost updates are
// append-only: every change lands in sku_cost_history, the history is never
// rewritten.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, code, name string, kind CategoryKind, requiredAttributes []string) (*Category, error)

	ListSKUs(ctx context.Context, includeDisabled bool) ([]SKU, error)
	GetSKU(ctx context.Context, code string) (*SKU, error)
	CreateSKU(ctx context.Context, req CreateSKURequest) (*SKU, error)

	// UpdateSKUCost appends a cost history entry and sets the current unit
	// cost. Existing instances keep their frozen acquisition costs.
	UpdateSKUCost(ctx context.Context, code string, cost decimal.Decimal, effectiveDate, updatedBy, notes string) (*SKU, error)
	GetCostHistory(ctx context.Context, code string) ([]CostEntry, error)

	// SetSKUStatus soft-enables/disables a SKU. Disabled SKUs cannot be
	// received or allocated but keep their instances and history.
	SetSKUStatus(ctx context.Context, code string, status SKUStatus) (*SKU, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

// ── Categories ────────────────────────────────────────────────────────────────

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, kind, required_attributes, created_at
		FROM categories ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Kind, &c.RequiredAttributes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *catalogService) CreateCategory(ctx context.Context, code, name string, kind CategoryKind, requiredAttributes []string) (*Category, error) {
	if kind != KindProduct && kind != KindTool {
		return nil, fmt.Errorf("category kind must be product or tool, got %q", kind)
	}
	if requiredAttributes == nil {
		requiredAttributes = []string{}
	}
	c := &Category{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (code, name, kind, required_attributes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, code, name, kind, required_attributes, created_at
	`, code, name, string(kind), requiredAttributes).Scan(
		&c.ID, &c.Code, &c.Name, &c.Kind, &c.RequiredAttributes, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %s: %w", code, err)
	}
	return c, nil
}

// ── SKUs ──────────────────────────────────────────────────────────────────────

const skuSelect = `
	SELECT s.id, s.code, s.category_id, c.code, c.kind, s.name, s.description,
	       s.unit_cost, s.is_bundle, s.status, s.created_at
	FROM skus s
	JOIN categories c ON c.id = s.category_id
`

func scanSKU(row pgx.Row) (*SKU, error) {
	sku := &SKU{}
	err := row.Scan(
		&sku.ID, &sku.Code, &sku.CategoryID, &sku.CategoryCode, &sku.CategoryKind,
		&sku.Name, &sku.Description, &sku.UnitCost, &sku.IsBundle, &sku.Status, &sku.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sku, nil
}

func (s *catalogService) ListSKUs(ctx context.Context, includeDisabled bool) ([]SKU, error) {
	rows, err := s.pool.Query(ctx, skuSelect+`
		WHERE $1 OR s.status = 'active'
		ORDER BY s.code
	`, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("failed to query skus: %w", err)
	}
	defer rows.Close()

	var skus []SKU
	for rows.Next() {
		sku, err := scanSKU(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		skus = append(skus, *sku)
	}
	return skus, rows.Err()
}

func (s *catalogService) GetSKU(ctx context.Context, code string) (*SKU, error) {
	sku, err := scanSKU(s.pool.QueryRow(ctx, skuSelect+` WHERE s.code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSKUNotFound, code)
		}
		return nil, fmt.Errorf("failed to fetch sku %s: %w", code, err)
	}
	if sku.IsBundle {
		if err := s.loadBundleItems(ctx, sku); err != nil {
			return nil, err
		}
	}
	return sku, nil
}

func (s *catalogService) loadBundleItems(ctx context.Context, sku *SKU) error {
	rows, err := s.pool.Query(ctx, `
		SELECT b.component_sku_id, c.code, b.quantity
		FROM bundle_items b
		JOIN skus c ON c.id = b.component_sku_id
		WHERE b.sku_id = $1
		ORDER BY c.code
	`, sku.ID)
	if err != nil {
		return fmt.Errorf("failed to query bundle items for %s: %w", sku.Code, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b BundleItem
		if err := rows.Scan(&b.ComponentSKUID, &b.ComponentSKUCode, &b.Quantity); err != nil {
			return fmt.Errorf("failed to scan bundle item: %w", err)
		}
		sku.BundleItems = append(sku.BundleItems, b)
	}
	return rows.Err()
}

func (s *catalogService) CreateSKU(ctx context.Context, req CreateSKURequest) (*SKU, error) {
	if req.Code == "" || req.Name == "" {
		return nil, fmt.Errorf("sku code and name are required")
	}
	if req.UnitCost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", req.UnitCost)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var categoryID int
	if err := tx.QueryRow(ctx,
		`SELECT id FROM categories WHERE code = $1`, req.CategoryCode,
	).Scan(&categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("category %s not found", req.CategoryCode)
		}
		return nil, fmt.Errorf("failed to resolve category: %w", err)
	}

	var skuID int
	err = tx.QueryRow(ctx, `
		INSERT INTO skus (code, category_id, name, description, unit_cost, is_bundle)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, req.Code, categoryID, req.Name, req.Description, req.UnitCost, len(req.BundleItems) > 0).Scan(&skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sku %s: %w", req.Code, err)
	}

	// Seed the cost history with the initial cost.
	_, err = tx.Exec(ctx, `
		INSERT INTO sku_cost_history (sku_id, cost, effective_date, updated_by, notes)
		VALUES ($1, $2, CURRENT_DATE, $3, 'initial cost')
	`, skuID, req.UnitCost, req.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to seed cost history: %w", err)
	}

	for _, item := range req.BundleItems {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("bundle component %s quantity must be positive", item.ComponentSKUCode)
		}
		comp, err := resolveActiveSKUTx(ctx, tx, item.ComponentSKUCode)
		if err != nil {
			return nil, err
		}
		if comp.ID == skuID {
			return nil, fmt.Errorf("bundle %s cannot contain itself", req.Code)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO bundle_items (sku_id, component_sku_id, quantity)
			VALUES ($1, $2, $3)
		`, skuID, comp.ID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bundle item %s: %w", item.ComponentSKUCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sku creation: %w", err)
	}
	return s.GetSKU(ctx, req.Code)
}

func (s *catalogService) UpdateSKUCost(ctx context.Context, code string, cost decimal.Decimal, effectiveDate, updatedBy, notes string) (*SKU, error) {
	if cost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", cost)
	}
	if effectiveDate == "" {
		effectiveDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", effectiveDate); err != nil {
		return nil, fmt.Errorf("invalid effective date %q: %w", effectiveDate, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref, err := resolveSKUTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sku_cost_history (sku_id, cost, effective_date, updated_by, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, ref.ID, cost, effectiveDate, updatedBy, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to append cost history for %s: %w", code, err)
	}

	_, err = tx.Exec(ctx, `UPDATE skus SET unit_cost = $1 WHERE id = $2`, cost, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update unit cost for %s: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cost update: %w", err)
	}
	return s.GetSKU(ctx, code)
}

func (s *catalogService) GetCostHistory(ctx context.Context, code string) ([]CostEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.sku_id, h.cost, to_char(h.effective_date, 'YYYY-MM-DD'),
		       h.updated_by, h.notes, h.created_at
		FROM sku_cost_history h
		JOIN skus s ON s.id = h.sku_id
		WHERE s.code = $1
		ORDER BY h.id
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost history for %s: %w", code, err)
	}
	defer rows.Close()

	var entries []CostEntry
	for rows.Next() {
		var e CostEntry
		if err := rows.Scan(&e.ID, &e.SKUID, &e.Cost, &e.EffectiveDate, &e.UpdatedBy, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *catalogService) SetSKUStatus(ctx context.Context, code string, status SKUStatus) (*SKU, error) {
	if status != SKUActive && status != SKUDisabled {
		return nil, fmt.Errorf("unknown sku status %q", status)
	}
	res, err := s.pool.Exec(ctx, `UPDATE skus SET status = $1 WHERE code = $2`, string(status), code)
	if err != nil {
		return nil, fmt.Errorf("failed to set status for %s: %w", code, err)
	}
	if res.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSKUNotFound, code)
	}
	return s.GetSKU(ctx, code)
}
