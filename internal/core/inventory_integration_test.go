package core_test

import (
	"context"
	"testing"

	"stockroom/internal/core"
)

func TestReconcile_IsIdempotentOnHealthyState(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 4, "40.00", "2026-01-05")
	receiveUnits(t, svc, "DRILL-18V", 2, "185.00", "2026-01-05")

	if _, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if _, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		DueDate:   "2026-10-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 1, Method: core.SelectFIFO}},
	}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	before := mustInventory(t, svc, "PLY-18")

	for run := 0; run < 2; run++ {
		result, err := svc.inventory.Reconcile(ctx, "")
		if err != nil {
			t.Fatalf("Reconcile run %d failed: %v", run+1, err)
		}
		if len(result.Issues) != 0 {
			t.Errorf("Run %d: healthy state reported issues: %+v", run+1, result.Issues)
		}
	}

	after := mustInventory(t, svc, "PLY-18")
	assertCounters(t, after, before.Total, before.Available, before.Reserved, before.Broken, before.Loaned)
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 2, 1, 0, 0, 1)
}

func TestReconcile_RepairsCorruptedCounters(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 3, "40.00", "2026-01-05")
	if _, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 1, Method: core.SelectFIFO}},
	}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	// Corrupt the cache by hand; reconciliation must rebuild it from
	// instance and tag state.
	_, err := pool.Exec(ctx, `
		UPDATE inventory SET available_quantity = 999, reserved_quantity = 0, total_value = 0
		WHERE sku_id = (SELECT id FROM skus WHERE code = 'PLY-18')
	`)
	if err != nil {
		t.Fatalf("Failed to corrupt counters: %v", err)
	}

	result, err := svc.inventory.Reconcile(ctx, "PLY-18")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(result.Issues) != 0 {
		t.Errorf("Counter drift is repairable, expected no issues, got %+v", result.Issues)
	}
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 3, 2, 1, 0, 0)
}

func TestReconcile_ReportsStaleTagReferencesWithoutRepairing(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "DRILL-18V", 2, "185.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		DueDate:   "2026-10-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 1, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	heldID := tag.Items[0].SelectedInstanceIDs[0]
	if _, err := svc.tags.FulfillTag(ctx, tag.ID, nil, core.ResolveRelease, "tester"); err != nil {
		t.Fatalf("FulfillTag failed: %v", err)
	}

	// Point the instance back at the now-fulfilled tag. This is exactly the
	// corruption reconciliation must surface but never decide on its own.
	if _, err := pool.Exec(ctx, `UPDATE instances SET tag_id = $1 WHERE id = $2`, tag.ID, heldID); err != nil {
		t.Fatalf("Failed to create stale reference: %v", err)
	}

	result, err := svc.inventory.Reconcile(ctx, "")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("Expected exactly one integrity issue, got %+v", result.Issues)
	}
	issue := result.Issues[0]
	if issue.InstanceID != heldID || issue.TagID != tag.ID || issue.TagStatus != core.TagFulfilled {
		t.Errorf("Issue does not identify the stale reference: %+v", issue)
	}

	// The reference itself is untouched.
	var tagID *int
	if err := pool.QueryRow(ctx, `SELECT tag_id FROM instances WHERE id = $1`, heldID).Scan(&tagID); err != nil {
		t.Fatalf("Failed to re-read instance: %v", err)
	}
	if tagID == nil || *tagID != tag.ID {
		t.Errorf("Reconcile repaired the stale reference, tag_id now %v", tagID)
	}
}
