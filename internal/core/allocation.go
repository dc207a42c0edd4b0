package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// This file is the transactional heart of the allocation engine. Every helper
// takes the caller's pgx.Tx: instance claims, the tag line, and the inventory
// counters for one operation always land in a single transaction, so no
// intermediate state (instances bound but counters stale, or vice versa) is
// ever observable.

// counterColumn maps a tag type to the inventory counter it occupies.
// Imperfect units count as broken (out of service either way) and stock
// set-asides count as reserved, which keeps
// available + reserved + broken + loaned == total across all five types.
func counterColumn(tt TagType) string {
	switch tt {
	case TagLoaned:
		return "loaned_quantity"
	case TagBroken, TagImperfect:
		return "broken_quantity"
	default: // reserved, stock
		return "reserved_quantity"
	}
}

// lockInventoryRowTx upserts and row-locks the inventory row for a SKU.
// The lock serializes concurrent allocations against the same SKU: two
// requests can never both see the same available instance as free.
func lockInventoryRowTx(ctx context.Context, tx pgx.Tx, skuID int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO inventory (sku_id) VALUES ($1)
		ON CONFLICT (sku_id) DO NOTHING
	`, skuID)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory row for sku %d: %w", skuID, err)
	}
	_, err = tx.Exec(ctx, `SELECT 1 FROM inventory WHERE sku_id = $1 FOR UPDATE`, skuID)
	if err != nil {
		return fmt.Errorf("failed to lock inventory row for sku %d: %w", skuID, err)
	}
	return nil
}

// selectAvailableTx picks qty available instances of a SKU, ordered per the
// selection method, and locks them. All-or-nothing: fewer than qty available
// fails with ErrInsufficientStock and nothing is claimed.
func selectAvailableTx(ctx context.Context, tx pgx.Tx, skuID, qty int, method SelectionMethod, order CostOrder) ([]int, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: requested quantity must be positive, got %d", ErrInvalidInstanceSelection, qty)
	}

	var orderBy string
	switch method {
	case SelectFIFO:
		orderBy = "acquisition_date ASC, id ASC"
	case SelectCostBased:
		if order == CostDescending {
			orderBy = "acquisition_cost DESC, id ASC"
		} else {
			orderBy = "acquisition_cost ASC, id ASC"
		}
	default:
		return nil, fmt.Errorf("%w: selection method %q cannot select by quantity", ErrInvalidInstanceSelection, method)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id FROM instances
		WHERE sku_id = $1 AND tag_id IS NULL
		ORDER BY %s
		LIMIT $2
		FOR UPDATE
	`, orderBy), skuID, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to select available instances for sku %d: %w", skuID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan instance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read available instances: %w", err)
	}
	if len(ids) < qty {
		return nil, fmt.Errorf("%w: requested %d, available %d (sku %d)", ErrInsufficientStock, qty, len(ids), skuID)
	}
	return ids, nil
}

// validateManualSelectionTx locks and verifies an explicit instance id list:
// every id must exist, belong to skuID, and be available. Duplicates fail.
func validateManualSelectionTx(ctx context.Context, tx pgx.Tx, skuID int, ids []int) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty instance id list", ErrInvalidInstanceSelection)
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: duplicate instance id %d", ErrInvalidInstanceSelection, id)
		}
		seen[id] = true
	}

	rows, err := tx.Query(ctx, `
		SELECT id, sku_id, tag_id FROM instances
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to lock instances for manual selection: %w", err)
	}
	defer rows.Close()

	found := make(map[int]bool, len(ids))
	for rows.Next() {
		var id, rowSKU int
		var tagID *int
		if err := rows.Scan(&id, &rowSKU, &tagID); err != nil {
			return fmt.Errorf("failed to scan instance: %w", err)
		}
		if rowSKU != skuID {
			return fmt.Errorf("%w: instance %d belongs to sku %d, not %d", ErrInvalidInstanceSelection, id, rowSKU, skuID)
		}
		if tagID != nil {
			return fmt.Errorf("%w: instance %d is already held by tag %d", ErrInvalidInstanceSelection, id, *tagID)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read instances for manual selection: %w", err)
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: instance %d does not exist", ErrInvalidInstanceSelection, id)
		}
	}
	return nil
}

// claimInstancesTx binds already-locked available instances to a tag. The
// tag_id IS NULL guard makes a lost race impossible to commit silently.
func claimInstancesTx(ctx context.Context, tx pgx.Tx, tagID int, ids []int) error {
	res, err := tx.Exec(ctx, `
		UPDATE instances SET tag_id = $1
		WHERE id = ANY($2) AND tag_id IS NULL
	`, tagID, ids)
	if err != nil {
		return fmt.Errorf("failed to claim instances for tag %d: %w", tagID, err)
	}
	if int(res.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: claimed %d of %d instances for tag %d", ErrInvalidInstanceSelection, res.RowsAffected(), len(ids), tagID)
	}
	return nil
}

// releaseInstancesTx clears tag_id on instances held by tagID, making them
// available again. The count must match exactly.
func releaseInstancesTx(ctx context.Context, tx pgx.Tx, tagID int, ids []int) error {
	res, err := tx.Exec(ctx, `
		UPDATE instances SET tag_id = NULL
		WHERE id = ANY($1) AND tag_id = $2
	`, ids, tagID)
	if err != nil {
		return fmt.Errorf("failed to release instances from tag %d: %w", tagID, err)
	}
	if int(res.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: released %d of %d instances from tag %d", ErrNotInTag, res.RowsAffected(), len(ids), tagID)
	}
	return nil
}

// transferInstancesTx rebinds instances from one tag directly to another,
// never passing through an available state. Used by condition-tagged returns.
func transferInstancesTx(ctx context.Context, tx pgx.Tx, fromTagID, toTagID int, ids []int) error {
	res, err := tx.Exec(ctx, `
		UPDATE instances SET tag_id = $1
		WHERE id = ANY($2) AND tag_id = $3
	`, toTagID, ids, fromTagID)
	if err != nil {
		return fmt.Errorf("failed to transfer instances from tag %d to tag %d: %w", fromTagID, toTagID, err)
	}
	if int(res.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: transferred %d of %d instances from tag %d", ErrNotInTag, res.RowsAffected(), len(ids), fromTagID)
	}
	return nil
}

// moveAvailableToHeldTx shifts n units from available into the counter for the
// tag type. Caller must hold the inventory row lock.
func moveAvailableToHeldTx(ctx context.Context, tx pgx.Tx, skuID int, tt TagType, n int) error {
	col := counterColumn(tt)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE inventory
		SET available_quantity = available_quantity - $1,
		    %s = %s + $1,
		    updated_at = NOW()
		WHERE sku_id = $2
	`, col, col), n, skuID)
	if err != nil {
		return fmt.Errorf("failed to move %d units of sku %d into %s: %w", n, skuID, col, err)
	}
	return nil
}

// moveHeldToAvailableTx is the inverse of moveAvailableToHeldTx.
func moveHeldToAvailableTx(ctx context.Context, tx pgx.Tx, skuID int, tt TagType, n int) error {
	col := counterColumn(tt)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE inventory
		SET available_quantity = available_quantity + $1,
		    %s = %s - $1,
		    updated_at = NOW()
		WHERE sku_id = $2
	`, col, col), n, skuID)
	if err != nil {
		return fmt.Errorf("failed to release %d units of sku %d from %s: %w", n, skuID, col, err)
	}
	return nil
}

// moveHeldToHeldTx shifts n units between two tag-type counters without
// touching available (condition-tagged return path).
func moveHeldToHeldTx(ctx context.Context, tx pgx.Tx, skuID int, from, to TagType, n int) error {
	fromCol, toCol := counterColumn(from), counterColumn(to)
	if fromCol == toCol {
		return nil
	}
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE inventory
		SET %s = %s - $1,
		    %s = %s + $1,
		    updated_at = NOW()
		WHERE sku_id = $2
	`, fromCol, fromCol, toCol, toCol), n, skuID)
	if err != nil {
		return fmt.Errorf("failed to move %d units of sku %d from %s to %s: %w", n, skuID, fromCol, toCol, err)
	}
	return nil
}

// consumeHeldTx removes n held units from the system entirely: total drops,
// the tag-type counter drops, available is untouched — consumed units were
// already non-available, which is the only reading that preserves the
// conservation law.
func consumeHeldTx(ctx context.Context, tx pgx.Tx, skuID int, tt TagType, n int) error {
	col := counterColumn(tt)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE inventory
		SET total_quantity = total_quantity - $1,
		    %s = %s - $1,
		    updated_at = NOW()
		WHERE sku_id = $2
	`, col, col), n, skuID)
	if err != nil {
		return fmt.Errorf("failed to consume %d units of sku %d from %s: %w", n, skuID, col, err)
	}
	return nil
}

// addReceivedTx adds n newly received units: total and available both grow.
func addReceivedTx(ctx context.Context, tx pgx.Tx, skuID, n int) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory
		SET total_quantity = total_quantity + $1,
		    available_quantity = available_quantity + $1,
		    updated_at = NOW()
		WHERE sku_id = $2
	`, n, skuID)
	if err != nil {
		return fmt.Errorf("failed to add %d received units of sku %d: %w", n, skuID, err)
	}
	return nil
}

// refreshValuationTx recomputes total_value/average_cost from the surviving
// instance rows. Called whenever instances are created or deleted; holds and
// releases do not change valuation.
func refreshValuationTx(ctx context.Context, tx pgx.Tx, skuID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory
		SET total_value  = COALESCE(v.total_value, 0),
		    average_cost = COALESCE(v.average_cost, 0),
		    updated_at   = NOW()
		FROM (
			SELECT COALESCE(SUM(acquisition_cost), 0) AS total_value,
			       COALESCE(AVG(acquisition_cost), 0) AS average_cost
			FROM instances WHERE sku_id = $1
		) v
		WHERE inventory.sku_id = $1
	`, skuID)
	if err != nil {
		return fmt.Errorf("failed to refresh valuation for sku %d: %w", skuID, err)
	}
	return nil
}

// heldInstancesTx returns the instances a tag holds for one SKU, oldest first
// (the default resolution order during fulfillment), locked for update.
func heldInstancesTx(ctx context.Context, tx pgx.Tx, tagID, skuID int) ([]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM instances
		WHERE tag_id = $1 AND sku_id = $2
		ORDER BY acquisition_date ASC, id ASC
		FOR UPDATE
	`, tagID, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to query held instances for tag %d sku %d: %w", tagID, skuID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan held instance id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
