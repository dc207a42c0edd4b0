package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReceiptService posts stock receipts: it creates instance rows (expanding
// bundle SKUs into their components), freezes acquisition cost/date, grows the
// inventory counters, and journals the movement, all in one transaction.
type ReceiptService interface {
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*Receipt, error)
	GetReceipt(ctx context.Context, receiptID int) (*Receipt, error)
	ListReceipts(ctx context.Context, limit int) ([]Receipt, error)
}

type receiptService struct {
	pool      *pgxpool.Pool
	sequences SequenceService
	movements *MovementLog
}

func NewReceiptService(pool *pgxpool.Pool, sequences SequenceService, movements *MovementLog) ReceiptService {
	return &receiptService{pool: pool, sequences: sequences, movements: movements}
}

func (s *receiptService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*Receipt, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("receipt must have at least one line")
	}
	if req.ReceivedBy == "" {
		return nil, fmt.Errorf("received_by is required")
	}
	movementDate := req.MovementDate
	if movementDate == "" {
		movementDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", movementDate); err != nil {
		return nil, fmt.Errorf("invalid movement date %q: %w", movementDate, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	receiptNumber, err := s.sequences.NextNumberTx(ctx, tx, "RCV")
	if err != nil {
		return nil, err
	}

	var receiptID int
	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (receipt_number, supplier, received_by, movement_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, receiptNumber, req.Supplier, req.ReceivedBy, movementDate, req.Notes).Scan(&receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: quantity must be positive, got %d", i+1, line.Quantity)
		}
		if line.UnitCost.IsNegative() {
			return nil, fmt.Errorf("line %d: unit cost cannot be negative, got %s", i+1, line.UnitCost)
		}

		sku, unitCost, isBundle, err := s.resolveReceiptSKUTx(ctx, tx, line.SKUCode, line.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO receipt_lines (receipt_id, line_number, sku_id, quantity, unit_cost, location)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, receiptID, i+1, sku.ID, line.Quantity, unitCost, line.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to insert receipt line: %w", err)
		}

		if isBundle {
			// A bundle receipt creates instances for each component SKU at the
			// component's current unit cost, never for the bundle itself.
			components, err := bundleComponentsTx(ctx, tx, sku.ID)
			if err != nil {
				return nil, err
			}
			if len(components) == 0 {
				return nil, fmt.Errorf("bundle sku %s has no components", sku.Code)
			}
			for _, comp := range components {
				if err := s.createInstancesTx(ctx, tx, comp.skuID, comp.code,
					line.Quantity*comp.quantity, comp.unitCost, movementDate, line.Location,
					req.ReceivedBy, fmt.Sprintf("bundle %s expansion", sku.Code)); err != nil {
					return nil, err
				}
			}
		} else {
			if err := s.createInstancesTx(ctx, tx, sku.ID, sku.Code,
				line.Quantity, unitCost, movementDate, line.Location,
				req.ReceivedBy, ""); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt: %w", err)
	}
	return s.GetReceipt(ctx, receiptID)
}

// createInstancesTx inserts qty instance rows for a SKU and updates the
// counters, valuation, and movement journal inside tx.
func (s *receiptService) createInstancesTx(ctx context.Context, tx pgx.Tx,
	skuID int, skuCode string, qty int, unitCost decimal.Decimal,
	movementDate, location, actor, noteSuffix string) error {

	if err := lockInventoryRowTx(ctx, tx, skuID); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO instances (sku_id, acquisition_cost, acquisition_date, location)
		SELECT $1, $2, $3, $4 FROM generate_series(1, $5)
	`, skuID, unitCost, movementDate, location, qty)
	if err != nil {
		return fmt.Errorf("failed to create instances for sku %s: %w", skuCode, err)
	}

	if err := addReceivedTx(ctx, tx, skuID, qty); err != nil {
		return err
	}
	if err := refreshValuationTx(ctx, tx, skuID); err != nil {
		return err
	}

	notes := fmt.Sprintf("%d × %s received @ %s", qty, skuCode, unitCost.StringFixed(2))
	if noteSuffix != "" {
		notes += " (" + noteSuffix + ")"
	}
	return s.movements.RecordTx(ctx, tx, Movement{
		Type:           MovementReceipt,
		SKUID:          skuID,
		Quantity:       qty,
		UnitCost:       unitCost,
		TotalCost:      unitCost.Mul(decimal.NewFromInt(int64(qty))),
		MovementDate:   movementDate,
		Actor:          actor,
		Notes:          notes,
		IdempotencyKey: uuid.NewString(),
	})
}

// resolveReceiptSKUTx resolves an active SKU and the unit cost to freeze:
// the caller's cost if given, the SKU's current unit cost otherwise.
func (s *receiptService) resolveReceiptSKUTx(ctx context.Context, tx pgx.Tx, code string, lineCost decimal.Decimal) (*skuRef, decimal.Decimal, bool, error) {
	ref := &skuRef{}
	var currentCost decimal.Decimal
	var isBundle bool
	err := tx.QueryRow(ctx,
		`SELECT id, code, category_id, status, unit_cost, is_bundle FROM skus WHERE code = $1`, code,
	).Scan(&ref.ID, &ref.Code, &ref.CategoryID, &ref.Status, &currentCost, &isBundle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, decimal.Zero, false, fmt.Errorf("%w: %s", ErrSKUNotFound, code)
		}
		return nil, decimal.Zero, false, fmt.Errorf("failed to resolve sku %s: %w", code, err)
	}
	if ref.Status != SKUActive {
		return nil, decimal.Zero, false, fmt.Errorf("%w: %s is disabled", ErrSKUNotFound, code)
	}
	cost := lineCost
	if cost.IsZero() {
		cost = currentCost
	}
	return ref, cost, isBundle, nil
}

type bundleComponent struct {
	skuID    int
	code     string
	quantity int
	unitCost decimal.Decimal
}

func bundleComponentsTx(ctx context.Context, tx pgx.Tx, bundleSKUID int) ([]bundleComponent, error) {
	rows, err := tx.Query(ctx, `
		SELECT c.id, c.code, b.quantity, c.unit_cost
		FROM bundle_items b
		JOIN skus c ON c.id = b.component_sku_id
		WHERE b.sku_id = $1
		ORDER BY c.code
	`, bundleSKUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundle components: %w", err)
	}
	defer rows.Close()

	var components []bundleComponent
	for rows.Next() {
		var c bundleComponent
		if err := rows.Scan(&c.skuID, &c.code, &c.quantity, &c.unitCost); err != nil {
			return nil, fmt.Errorf("failed to scan bundle component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *receiptService) GetReceipt(ctx context.Context, receiptID int) (*Receipt, error) {
	r := &Receipt{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, receipt_number, supplier, received_by,
		       to_char(movement_date, 'YYYY-MM-DD'), notes, created_at
		FROM receipts WHERE id = $1
	`, receiptID).Scan(&r.ID, &r.ReceiptNumber, &r.Supplier, &r.ReceivedBy, &r.MovementDate, &r.Notes, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("receipt %d not found", receiptID)
		}
		return nil, fmt.Errorf("failed to fetch receipt %d: %w", receiptID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rl.id, rl.receipt_id, rl.line_number, rl.sku_id, s.code, s.name,
		       rl.quantity, rl.unit_cost, rl.location
		FROM receipt_lines rl
		JOIN skus s ON s.id = rl.sku_id
		WHERE rl.receipt_id = $1
		ORDER BY rl.line_number
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.LineNumber, &l.SKUID, &l.SKUCode, &l.SKUName, &l.Quantity, &l.UnitCost, &l.Location); err != nil {
			return nil, fmt.Errorf("failed to scan receipt line: %w", err)
		}
		r.Lines = append(r.Lines, l)
	}
	return r, rows.Err()
}

func (s *receiptService) ListReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, receipt_number, supplier, received_by,
		       to_char(movement_date, 'YYYY-MM-DD'), notes, created_at
		FROM receipts
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.ID, &r.ReceiptNumber, &r.Supplier, &r.ReceivedBy, &r.MovementDate, &r.Notes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}
