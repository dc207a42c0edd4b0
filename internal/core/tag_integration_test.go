package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"stockroom/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_movements, receipt_lines, receipts, tag_items, instances, tags,
		               inventory, sku_cost_history, bundle_items, allocation_rules, skus,
		               categories, record_sequences, users CASCADE;

		INSERT INTO categories (code, name, kind) VALUES
		('MATERIALS', 'Building Materials', 'product'),
		('TOOLS', 'Power Tools', 'tool');

		INSERT INTO skus (code, category_id, name, unit_cost)
		SELECT v.code, c.id, v.name, v.cost::numeric
		FROM (VALUES
			('PLY-18',    'MATERIALS', '18mm Plywood Sheet', '42.50'),
			('STUD-2X4',  'MATERIALS', '2x4 Stud',           '6.80'),
			('DRILL-18V', 'TOOLS',     '18V Cordless Drill', '199.00')
		) AS v(code, category, name, cost)
		JOIN categories c ON c.code = v.category;
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type testServices struct {
	catalog   core.CatalogService
	receipts  core.ReceiptService
	tags      core.TagService
	inventory core.InventoryService
}

func newTestServices(pool *pgxpool.Pool) testServices {
	sequences := core.NewSequenceService(pool)
	movements := core.NewMovementLog(pool)
	return testServices{
		catalog:   core.NewCatalogService(pool),
		receipts:  core.NewReceiptService(pool, sequences, movements),
		tags:      core.NewTagService(pool, sequences, core.NewRuleEngine(pool), movements),
		inventory: core.NewInventoryService(pool),
	}
}

// receiveUnits posts a one-line receipt so the test has allocatable instances
// with a known cost and acquisition date.
func receiveUnits(t *testing.T, svc testServices, skuCode string, qty int, cost, date string) {
	t.Helper()
	_, err := svc.receipts.ReceiveStock(context.Background(), core.ReceiveStockRequest{
		Supplier:     "Test Supplier",
		ReceivedBy:   "tester",
		MovementDate: date,
		Lines: []core.ReceiptLineInput{
			{SKUCode: skuCode, Quantity: qty, UnitCost: decimal.RequireFromString(cost)},
		},
	})
	if err != nil {
		t.Fatalf("Failed to receive %d x %s: %v", qty, skuCode, err)
	}
}

func mustInventory(t *testing.T, svc testServices, skuCode string) *core.InventoryRow {
	t.Helper()
	row, err := svc.inventory.GetInventory(context.Background(), skuCode)
	if err != nil {
		t.Fatalf("Failed to load inventory for %s: %v", skuCode, err)
	}
	if !row.Balanced() {
		t.Fatalf("Inventory for %s violates conservation: avail=%d res=%d broken=%d loaned=%d total=%d",
			skuCode, row.Available, row.Reserved, row.Broken, row.Loaned, row.Total)
	}
	return row
}

func assertCounters(t *testing.T, row *core.InventoryRow, total, available, reserved, broken, loaned int) {
	t.Helper()
	if row.Total != total || row.Available != available || row.Reserved != reserved ||
		row.Broken != broken || row.Loaned != loaned {
		t.Errorf("Counters for %s: got total=%d avail=%d res=%d broken=%d loaned=%d, want total=%d avail=%d res=%d broken=%d loaned=%d",
			row.SKUCode, row.Total, row.Available, row.Reserved, row.Broken, row.Loaned,
			total, available, reserved, broken, loaned)
	}
}

// instanceCost returns the frozen acquisition cost of one instance.
func instanceCost(t *testing.T, pool *pgxpool.Pool, instanceID int) decimal.Decimal {
	t.Helper()
	var cost decimal.Decimal
	err := pool.QueryRow(context.Background(),
		`SELECT acquisition_cost FROM instances WHERE id = $1`, instanceID).Scan(&cost)
	if err != nil {
		t.Fatalf("Failed to load instance %d: %v", instanceID, err)
	}
	return cost
}

func TestCreateTag_FIFOPicksOldestFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 2, "40.00", "2026-01-05")
	receiveUnits(t, svc, "PLY-18", 2, "45.00", "2026-02-10")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		Customer:  "Patel Builds",
		Project:   "site-7",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if tag.TagNumber != "TAG-00001" {
		t.Errorf("Expected first tag number TAG-00001, got %s", tag.TagNumber)
	}
	if tag.Status != core.TagActive {
		t.Errorf("Expected active tag, got %s", tag.Status)
	}
	if len(tag.Items) != 1 || tag.Items[0].Quantity() != 2 {
		t.Fatalf("Expected one line holding 2 instances, got %+v", tag.Items)
	}

	// Both selected instances must come from the January receipt.
	for _, id := range tag.Items[0].SelectedInstanceIDs {
		if got := instanceCost(t, pool, id); !got.Equal(decimal.RequireFromString("40.00")) {
			t.Errorf("FIFO selected instance %d with cost %s, expected the older 40.00 units", id, got)
		}
	}

	assertCounters(t, mustInventory(t, svc, "PLY-18"), 4, 2, 2, 0, 0)
}

func TestCreateTag_CostBasedSelection(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "STUD-2X4", 1, "5.00", "2026-03-01")
	receiveUnits(t, svc, "STUD-2X4", 1, "9.00", "2026-03-01")
	receiveUnits(t, svc, "STUD-2X4", 1, "7.00", "2026-03-01")

	cheap, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines: []core.AllocationInput{
			{SKUCode: "STUD-2X4", Quantity: 1, Method: core.SelectCostBased, CostOrder: core.CostAscending},
		},
	})
	if err != nil {
		t.Fatalf("Cost ascending CreateTag failed: %v", err)
	}
	if got := instanceCost(t, pool, cheap.Items[0].SelectedInstanceIDs[0]); !got.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("cost_asc should pick the 5.00 unit, got %s", got)
	}

	pricey, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines: []core.AllocationInput{
			{SKUCode: "STUD-2X4", Quantity: 1, Method: core.SelectCostBased, CostOrder: core.CostDescending},
		},
	})
	if err != nil {
		t.Fatalf("Cost descending CreateTag failed: %v", err)
	}
	if got := instanceCost(t, pool, pricey.Items[0].SelectedInstanceIDs[0]); !got.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("cost_desc should pick the 9.00 unit, got %s", got)
	}

	assertCounters(t, mustInventory(t, svc, "STUD-2X4"), 3, 1, 2, 0, 0)
}

func TestCreateTag_InsufficientStockRollsBackEverything(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 1, "40.00", "2026-01-05")
	receiveUnits(t, svc, "STUD-2X4", 5, "6.00", "2026-01-05")

	// Second line cannot be satisfied, so the whole tag must roll back,
	// including the first line's allocation.
	_, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines: []core.AllocationInput{
			{SKUCode: "STUD-2X4", Quantity: 2, Method: core.SelectFIFO},
			{SKUCode: "PLY-18", Quantity: 3, Method: core.SelectFIFO},
		},
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	var tagCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags`).Scan(&tagCount); err != nil {
		t.Fatalf("Failed to count tags: %v", err)
	}
	if tagCount != 0 {
		t.Errorf("Failed create left %d tag rows behind", tagCount)
	}
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 1, 1, 0, 0, 0)
	assertCounters(t, mustInventory(t, svc, "STUD-2X4"), 5, 5, 0, 0, 0)

	// Tag numbers stay gapless across the rollback.
	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 1, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag after rollback failed: %v", err)
	}
	if tag.TagNumber != "TAG-00001" {
		t.Errorf("Expected TAG-00001 after rolled-back attempt, got %s", tag.TagNumber)
	}
}

func TestCreateTag_ManualSelection(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "DRILL-18V", 3, "185.00", "2026-01-05")
	receiveUnits(t, svc, "PLY-18", 1, "40.00", "2026-01-05")

	var drillIDs []int
	rows, err := pool.Query(ctx, `
		SELECT i.id FROM instances i JOIN skus s ON s.id = i.sku_id
		WHERE s.code = 'DRILL-18V' ORDER BY i.id
	`)
	if err != nil {
		t.Fatalf("Failed to list instances: %v", err)
	}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Failed to scan instance id: %v", err)
		}
		drillIDs = append(drillIDs, id)
	}
	rows.Close()
	if len(drillIDs) != 3 {
		t.Fatalf("Expected 3 drill instances, got %d", len(drillIDs))
	}

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		Customer:  "framing crew",
		DueDate:   "2026-09-15",
		CreatedBy: "tester",
		Lines: []core.AllocationInput{
			{SKUCode: "DRILL-18V", Method: core.SelectManual, InstanceIDs: drillIDs[:2]},
		},
	})
	if err != nil {
		t.Fatalf("Manual CreateTag failed: %v", err)
	}
	if tag.Items[0].Quantity() != 2 {
		t.Errorf("Expected 2 held instances, got %d", tag.Items[0].Quantity())
	}
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 3, 1, 0, 0, 2)

	invalid := []struct {
		name string
		ids  []int
	}{
		{"already held", drillIDs[:1]},
		{"nonexistent id", []int{999999}},
		{"duplicate ids", []int{drillIDs[2], drillIDs[2]}},
	}
	for _, tc := range invalid {
		_, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
			TagType:   core.TagLoaned,
			CreatedBy: "tester",
			Lines: []core.AllocationInput{
				{SKUCode: "DRILL-18V", Method: core.SelectManual, InstanceIDs: tc.ids},
			},
		})
		if !errors.Is(err, core.ErrInvalidInstanceSelection) {
			t.Errorf("%s: expected ErrInvalidInstanceSelection, got %v", tc.name, err)
		}
	}

	// Instance belongs to a different SKU than the line states.
	var plyID int
	err = pool.QueryRow(ctx, `
		SELECT i.id FROM instances i JOIN skus s ON s.id = i.sku_id WHERE s.code = 'PLY-18'
	`).Scan(&plyID)
	if err != nil {
		t.Fatalf("Failed to find plywood instance: %v", err)
	}
	_, err = svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		CreatedBy: "tester",
		Lines: []core.AllocationInput{
			{SKUCode: "DRILL-18V", Method: core.SelectManual, InstanceIDs: []int{plyID}},
		},
	})
	if !errors.Is(err, core.ErrInvalidInstanceSelection) {
		t.Errorf("wrong sku: expected ErrInvalidInstanceSelection, got %v", err)
	}
}

func TestCreateTag_BlankMethodUsesCategoryRule(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "STUD-2X4", 1, "5.00", "2026-03-01")
	receiveUnits(t, svc, "STUD-2X4", 1, "9.00", "2026-02-01")

	_, err := pool.Exec(ctx, `
		INSERT INTO allocation_rules (category_id, selection_method, cost_order, priority)
		SELECT id, 'cost_based', 'cost_desc', 10 FROM categories WHERE code = 'MATERIALS'
	`)
	if err != nil {
		t.Fatalf("Failed to insert allocation rule: %v", err)
	}

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "STUD-2X4", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateTag with blank method failed: %v", err)
	}
	if tag.Items[0].SelectionMethod != core.SelectCostBased {
		t.Errorf("Expected rule-resolved cost_based, got %s", tag.Items[0].SelectionMethod)
	}
	if got := instanceCost(t, pool, tag.Items[0].SelectedInstanceIDs[0]); !got.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("Rule says cost_desc, expected the 9.00 unit, got %s", got)
	}

	// No rule for the category: falls back to FIFO.
	receiveUnits(t, svc, "DRILL-18V", 1, "180.00", "2026-01-01")
	receiveUnits(t, svc, "DRILL-18V", 1, "160.00", "2026-04-01")
	toolTag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateTag without rule failed: %v", err)
	}
	if toolTag.Items[0].SelectionMethod != core.SelectFIFO {
		t.Errorf("Expected FIFO fallback without a rule, got %s", toolTag.Items[0].SelectionMethod)
	}
	if got := instanceCost(t, pool, toolTag.Items[0].SelectedInstanceIDs[0]); !got.Equal(decimal.RequireFromString("180.00")) {
		t.Errorf("FIFO fallback should pick the January unit, got cost %s", got)
	}
}

func TestFulfillTag_ConsumeRemovesUnitsPermanently(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 4, "40.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	fulfilled, err := svc.tags.FulfillTag(ctx, tag.ID, nil, core.ResolveConsume, "tester")
	if err != nil {
		t.Fatalf("FulfillTag consume failed: %v", err)
	}
	if fulfilled.Status != core.TagFulfilled {
		t.Errorf("Expected fulfilled status, got %s", fulfilled.Status)
	}
	if fulfilled.FulfilledBy == nil || *fulfilled.FulfilledBy != "tester" {
		t.Errorf("Expected fulfilled_by tester, got %v", fulfilled.FulfilledBy)
	}

	var instanceCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM instances`).Scan(&instanceCount); err != nil {
		t.Fatalf("Failed to count instances: %v", err)
	}
	if instanceCount != 2 {
		t.Errorf("Consume should delete the held instances, %d remain", instanceCount)
	}
	// Total drops with the consumed units; available is untouched.
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 2, 2, 0, 0, 0)
}

func TestFulfillTag_PartialKeepsTagActive(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 3, "40.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 3, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	partial, err := svc.tags.FulfillTag(ctx, tag.ID,
		[]core.Resolution{{SKUCode: "PLY-18", Quantity: 1}}, core.ResolveConsume, "tester")
	if err != nil {
		t.Fatalf("Partial fulfill failed: %v", err)
	}
	if partial.Status != core.TagActive {
		t.Errorf("Tag still holds instances, expected active, got %s", partial.Status)
	}
	if partial.Items[0].Quantity() != 2 {
		t.Errorf("Expected 2 instances still held, got %d", partial.Items[0].Quantity())
	}
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 2, 0, 2, 0, 0)

	// Resolving more than the tag holds is rejected.
	_, err = svc.tags.FulfillTag(ctx, tag.ID,
		[]core.Resolution{{SKUCode: "PLY-18", Quantity: 5}}, core.ResolveConsume, "tester")
	if !errors.Is(err, core.ErrNotInTag) {
		t.Errorf("Expected ErrNotInTag for over-resolution, got %v", err)
	}
}

func TestFulfillTag_RejectsDuplicateInstanceIDs(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 3, "40.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	held := tag.Items[0].SelectedInstanceIDs

	// A repeated id must abort the whole consume: otherwise one deleted row
	// would be counted twice against the counters.
	for _, mode := range []core.ResolutionMode{core.ResolveConsume, core.ResolveRelease} {
		_, err = svc.tags.FulfillTag(ctx, tag.ID,
			[]core.Resolution{{SKUCode: "PLY-18", InstanceIDs: []int{held[0], held[0]}}}, mode, "tester")
		if !errors.Is(err, core.ErrNotInTag) {
			t.Errorf("mode %s: expected ErrNotInTag for duplicate ids, got %v", mode, err)
		}
	}

	// Nothing was consumed or released: the tag still holds both instances
	// and the counters still match instance ground truth.
	reread, err := svc.tags.GetTag(ctx, tag.TagNumber)
	if err != nil {
		t.Fatalf("GetTag failed: %v", err)
	}
	if reread.Status != core.TagActive || reread.Items[0].Quantity() != 2 {
		t.Errorf("Failed fulfillment mutated the tag: status=%s held=%d", reread.Status, reread.Items[0].Quantity())
	}
	var instanceCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM instances`).Scan(&instanceCount); err != nil {
		t.Fatalf("Failed to count instances: %v", err)
	}
	if instanceCount != 3 {
		t.Errorf("Expected all 3 instances intact, got %d", instanceCount)
	}
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 3, 1, 2, 0, 0)
}

func TestFulfillTag_ReleaseReturnsUnitsToAvailable(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "DRILL-18V", 2, "185.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		Customer:  "roofing crew",
		DueDate:   "2026-09-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 2, 0, 0, 0, 2)

	fulfilled, err := svc.tags.FulfillTag(ctx, tag.ID, nil, core.ResolveRelease, "tester")
	if err != nil {
		t.Fatalf("FulfillTag release failed: %v", err)
	}
	if fulfilled.Status != core.TagFulfilled {
		t.Errorf("Expected fulfilled status, got %s", fulfilled.Status)
	}
	// Release keeps the units: total unchanged, everything available again.
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 2, 2, 0, 0, 0)

	// A fulfilled tag accepts no further operations.
	_, err = svc.tags.FulfillTag(ctx, tag.ID, nil, core.ResolveRelease, "tester")
	if !errors.Is(err, core.ErrInvalidTagState) {
		t.Errorf("Expected ErrInvalidTagState on fulfilled tag, got %v", err)
	}
}

func TestCancelTag_ReleasesNeverDeletes(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 3, "40.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	cancelled, err := svc.tags.CancelTag(ctx, tag.ID, "job postponed", "tester")
	if err != nil {
		t.Fatalf("CancelTag failed: %v", err)
	}
	if cancelled.Status != core.TagCancelled {
		t.Errorf("Expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "job postponed" {
		t.Errorf("Expected cancellation reason recorded, got %v", cancelled.CancellationReason)
	}

	var instanceCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM instances`).Scan(&instanceCount); err != nil {
		t.Fatalf("Failed to count instances: %v", err)
	}
	if instanceCount != 3 {
		t.Errorf("Cancel must never delete instances, got %d of 3", instanceCount)
	}
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 3, 3, 0, 0, 0)

	_, err = svc.tags.FulfillTag(ctx, tag.ID, nil, core.ResolveConsume, "tester")
	if !errors.Is(err, core.ErrInvalidTagState) {
		t.Errorf("Expected ErrInvalidTagState fulfilling a cancelled tag, got %v", err)
	}
}

func TestAllocateToTag_AddsLineToActiveTag(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 2, "40.00", "2026-01-05")
	receiveUnits(t, svc, "STUD-2X4", 4, "6.00", "2026-01-05")

	tag, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 1, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	updated, err := svc.tags.AllocateToTag(ctx, tag.ID,
		core.AllocationInput{SKUCode: "STUD-2X4", Quantity: 3, Method: core.SelectFIFO}, "tester")
	if err != nil {
		t.Fatalf("AllocateToTag failed: %v", err)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("Expected 2 lines after allocation, got %d", len(updated.Items))
	}
	assertCounters(t, mustInventory(t, svc, "STUD-2X4"), 4, 1, 3, 0, 0)

	if _, err := svc.tags.CancelTag(ctx, tag.ID, "", "tester"); err != nil {
		t.Fatalf("CancelTag failed: %v", err)
	}
	_, err = svc.tags.AllocateToTag(ctx, tag.ID,
		core.AllocationInput{SKUCode: "PLY-18", Quantity: 1, Method: core.SelectFIFO}, "tester")
	if !errors.Is(err, core.ErrInvalidTagState) {
		t.Errorf("Expected ErrInvalidTagState allocating to cancelled tag, got %v", err)
	}
}

func TestReturnWithCondition_BrokenUnitGetsHoldTag(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "DRILL-18V", 2, "185.00", "2026-01-05")

	loan, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		Customer:  "demo crew",
		DueDate:   "2026-09-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	held := loan.Items[0].SelectedInstanceIDs

	updated, hold, err := svc.tags.ReturnWithCondition(ctx, loan.ID, held[:1], core.ConditionBroken, "tester")
	if err != nil {
		t.Fatalf("ReturnWithCondition broken failed: %v", err)
	}
	if hold == nil {
		t.Fatal("Broken return must create a hold tag, got nil")
	}
	if hold.TagType != core.TagBroken {
		t.Errorf("Expected broken hold tag, got %s", hold.TagType)
	}
	if hold.Items[0].Quantity() != 1 || hold.Items[0].SelectedInstanceIDs[0] != held[0] {
		t.Errorf("Hold tag should hold instance %d, got %v", held[0], hold.Items[0].SelectedInstanceIDs)
	}
	if updated.Status != core.TagActive {
		t.Errorf("Loan still holds a drill, expected active, got %s", updated.Status)
	}
	// The broken unit never passes through available.
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 2, 0, 0, 1, 1)

	// Functional return of the last unit releases it and closes the loan.
	final, hold2, err := svc.tags.ReturnWithCondition(ctx, loan.ID, held[1:], core.ConditionFunctional, "tester")
	if err != nil {
		t.Fatalf("ReturnWithCondition functional failed: %v", err)
	}
	if hold2 != nil {
		t.Errorf("Functional return must not create a hold tag, got %s", hold2.TagNumber)
	}
	if final.Status != core.TagFulfilled {
		t.Errorf("Expected loan fulfilled after last return, got %s", final.Status)
	}
	assertCounters(t, mustInventory(t, svc, "DRILL-18V"), 2, 1, 0, 1, 0)

	// Returning an instance the tag does not hold is rejected.
	_, _, err = svc.tags.ReturnWithCondition(ctx, loan.ID, []int{999999}, core.ConditionFunctional, "tester")
	if !errors.Is(err, core.ErrInvalidTagState) && !errors.Is(err, core.ErrNotInTag) {
		t.Errorf("Expected tag-state or not-in-tag error, got %v", err)
	}
}

func TestGetTag_ByNumberAndListFilters(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 2, "40.00", "2026-01-05")
	receiveUnits(t, svc, "DRILL-18V", 1, "185.00", "2026-01-05")

	reserved, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
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

	byNumber, err := svc.tags.GetTag(ctx, reserved.TagNumber)
	if err != nil {
		t.Fatalf("GetTag by number failed: %v", err)
	}
	if byNumber.ID != reserved.ID {
		t.Errorf("GetTag(%s) returned tag %d, want %d", reserved.TagNumber, byNumber.ID, reserved.ID)
	}

	if _, err := svc.tags.GetTag(ctx, "TAG-99999"); !errors.Is(err, core.ErrTagNotFound) {
		t.Errorf("Expected ErrTagNotFound, got %v", err)
	}

	loans, err := svc.tags.ListTags(ctx, "active", "loaned")
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(loans) != 1 || loans[0].TagType != core.TagLoaned {
		t.Errorf("Expected exactly the loan tag, got %+v", loans)
	}
}
