package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryService reads the derived counter cache and rebuilds it from
// ground truth. All incremental counter writes live in the allocation engine;
// nothing else may touch the inventory table.
type InventoryService interface {
	// GetInventory returns the counter row for one SKU.
	GetInventory(ctx context.Context, skuCode string) (*InventoryRow, error)

	// ListInventory returns counter rows for every SKU that has one.
	ListInventory(ctx context.Context) ([]InventoryRow, error)

	// Reconcile recomputes counters and valuation from instance/tag state for
	// one SKU (or all SKUs when skuCode is empty). It is idempotent and has
	// no side effect beyond overwriting inventory rows. Instances pointing at
	// non-active tags are reported as integrity issues, not repaired.
	Reconcile(ctx context.Context, skuCode string) (*ReconcileResult, error)
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

const inventorySelect = `
	SELECT inv.sku_id, s.code, s.name,
	       inv.total_quantity, inv.available_quantity, inv.reserved_quantity,
	       inv.broken_quantity, inv.loaned_quantity,
	       inv.total_value, inv.average_cost, inv.updated_at
	FROM inventory inv
	JOIN skus s ON s.id = inv.sku_id
`

func (s *inventoryService) GetInventory(ctx context.Context, skuCode string) (*InventoryRow, error) {
	row := &InventoryRow{}
	err := s.pool.QueryRow(ctx, inventorySelect+` WHERE s.code = $1`, skuCode).Scan(
		&row.SKUID, &row.SKUCode, &row.SKUName,
		&row.Total, &row.Available, &row.Reserved, &row.Broken, &row.Loaned,
		&row.TotalValue, &row.AverageCost, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no inventory row for %s", ErrSKUNotFound, skuCode)
		}
		return nil, fmt.Errorf("failed to fetch inventory for %s: %w", skuCode, err)
	}
	return row, nil
}

func (s *inventoryService) ListInventory(ctx context.Context) ([]InventoryRow, error) {
	rows, err := s.pool.Query(ctx, inventorySelect+` ORDER BY s.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		if err := rows.Scan(
			&row.SKUID, &row.SKUCode, &row.SKUName,
			&row.Total, &row.Available, &row.Reserved, &row.Broken, &row.Loaned,
			&row.TotalValue, &row.AverageCost, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *inventoryService) Reconcile(ctx context.Context, skuCode string) (*ReconcileResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Resolve the SKU set to rebuild.
	var skuIDs []int
	if skuCode != "" {
		ref, err := resolveSKUTx(ctx, tx, skuCode)
		if err != nil {
			return nil, err
		}
		skuIDs = []int{ref.ID}
	} else {
		rows, err := tx.Query(ctx, `SELECT id FROM skus ORDER BY id`)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate skus: %w", err)
		}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan sku id: %w", err)
			}
			skuIDs = append(skuIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	result := &ReconcileResult{}
	for _, skuID := range skuIDs {
		if err := lockInventoryRowTx(ctx, tx, skuID); err != nil {
			return nil, err
		}

		// Counts grouped by the tag type of the referenced tag (regardless of
		// tag status: stale references are counted where they point, and
		// reported below).
		_, err = tx.Exec(ctx, `
			UPDATE inventory inv
			SET total_quantity     = c.total,
			    available_quantity = c.available,
			    reserved_quantity  = c.reserved,
			    broken_quantity    = c.broken,
			    loaned_quantity    = c.loaned,
			    total_value        = c.total_value,
			    average_cost       = c.average_cost,
			    updated_at         = NOW()
			FROM (
				SELECT
					COUNT(i.id) AS total,
					COUNT(i.id) FILTER (WHERE i.tag_id IS NULL) AS available,
					COUNT(i.id) FILTER (WHERE t.tag_type IN ('reserved', 'stock')) AS reserved,
					COUNT(i.id) FILTER (WHERE t.tag_type IN ('broken', 'imperfect')) AS broken,
					COUNT(i.id) FILTER (WHERE t.tag_type = 'loaned') AS loaned,
					COALESCE(SUM(i.acquisition_cost), 0) AS total_value,
					COALESCE(AVG(i.acquisition_cost), 0) AS average_cost
				FROM instances i
				LEFT JOIN tags t ON t.id = i.tag_id
				WHERE i.sku_id = $1
			) c
			WHERE inv.sku_id = $1
		`, skuID)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild inventory for sku %d: %w", skuID, err)
		}

		// Stale back-references: instance held by a fulfilled/cancelled tag.
		issueRows, err := tx.Query(ctx, `
			SELECT i.id, s.code, t.id, t.status
			FROM instances i
			JOIN skus s ON s.id = i.sku_id
			JOIN tags t ON t.id = i.tag_id
			WHERE i.sku_id = $1 AND t.status <> 'active'
			ORDER BY i.id
		`, skuID)
		if err != nil {
			return nil, fmt.Errorf("failed to check tag references for sku %d: %w", skuID, err)
		}
		for issueRows.Next() {
			var issue IntegrityIssue
			if err := issueRows.Scan(&issue.InstanceID, &issue.SKUCode, &issue.TagID, &issue.TagStatus); err != nil {
				issueRows.Close()
				return nil, fmt.Errorf("failed to scan integrity issue: %w", err)
			}
			issue.Detail = fmt.Sprintf("%v: instance %d references %s tag %d",
				ErrIntegrityViolation, issue.InstanceID, issue.TagStatus, issue.TagID)
			result.Issues = append(result.Issues, issue)
		}
		issueRows.Close()
		if err := issueRows.Err(); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	// Read back the rebuilt rows outside the transaction.
	if skuCode != "" {
		row, err := s.GetInventory(ctx, skuCode)
		if err != nil {
			return nil, err
		}
		result.Rows = []InventoryRow{*row}
	} else {
		rows, err := s.ListInventory(ctx)
		if err != nil {
			return nil, err
		}
		result.Rows = rows
	}
	return result, nil
}
