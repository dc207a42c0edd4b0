package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stockroom/internal/core"

	"github.com/shopspring/decimal"
)

func TestCreateSKU_SeedsCostHistory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	sku, err := svc.catalog.CreateSKU(ctx, core.CreateSKURequest{
		Code:         "TAPE-GAFF",
		CategoryCode: "MATERIALS",
		Name:         "Gaffer Tape Roll",
		UnitCost:     decimal.RequireFromString("8.20"),
		CreatedBy:    "tester",
	})
	if err != nil {
		t.Fatalf("CreateSKU failed: %v", err)
	}
	if sku.Status != core.SKUActive {
		t.Errorf("New SKU should be active, got %s", sku.Status)
	}

	history, err := svc.catalog.GetCostHistory(ctx, "TAPE-GAFF")
	if err != nil {
		t.Fatalf("GetCostHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected one seeded history entry, got %d", len(history))
	}
	if !history[0].Cost.Equal(decimal.RequireFromString("8.20")) {
		t.Errorf("Seeded history cost %s, want 8.20", history[0].Cost)
	}
}

func TestUpdateSKUCost_AppendsWithoutFreezingInstances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	// Instances received before the cost change keep their frozen cost.
	receiveUnits(t, svc, "PLY-18", 2, "42.50", "2026-01-05")

	updated, err := svc.catalog.UpdateSKUCost(ctx, "PLY-18",
		decimal.RequireFromString("47.00"), "2026-06-01", "tester", "supplier price increase")
	if err != nil {
		t.Fatalf("UpdateSKUCost failed: %v", err)
	}
	if !updated.UnitCost.Equal(decimal.RequireFromString("47.00")) {
		t.Errorf("Unit cost %s, want 47.00", updated.UnitCost)
	}

	history, err := svc.catalog.GetCostHistory(ctx, "PLY-18")
	if err != nil {
		t.Fatalf("GetCostHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected one appended entry for a directly-seeded SKU, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.EffectiveDate != "2026-06-01" || last.Notes != "supplier price increase" {
		t.Errorf("Appended entry wrong: %+v", last)
	}

	var frozen decimal.Decimal
	err = pool.QueryRow(ctx, `
		SELECT DISTINCT i.acquisition_cost
		FROM instances i JOIN skus s ON s.id = i.sku_id WHERE s.code = 'PLY-18'
	`).Scan(&frozen)
	if err != nil {
		t.Fatalf("Failed to read instance cost: %v", err)
	}
	if !frozen.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("Existing instances must keep frozen cost 42.50, got %s", frozen)
	}

	if _, err := svc.catalog.UpdateSKUCost(ctx, "PLY-18",
		decimal.RequireFromString("-1.00"), "", "tester", ""); err == nil {
		t.Error("Negative cost should be rejected")
	}
	if _, err := svc.catalog.UpdateSKUCost(ctx, "PLY-18",
		decimal.RequireFromString("48.00"), "not-a-date", "tester", ""); err == nil {
		t.Error("Malformed effective date should be rejected")
	}
}

func TestSetSKUStatus_BlocksAllocationButKeepsHistory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 2, "42.50", "2026-01-05")

	if _, err := svc.catalog.SetSKUStatus(ctx, "PLY-18", core.SKUDisabled); err != nil {
		t.Fatalf("SetSKUStatus failed: %v", err)
	}

	_, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagReserved,
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "PLY-18", Quantity: 1, Method: core.SelectFIFO}},
	})
	if !errors.Is(err, core.ErrSKUNotFound) {
		t.Errorf("Expected ErrSKUNotFound allocating a disabled SKU, got %v", err)
	}

	// Existing instances and counters survive the disable.
	assertCounters(t, mustInventory(t, svc, "PLY-18"), 2, 2, 0, 0, 0)

	active, err := svc.catalog.ListSKUs(ctx, false)
	if err != nil {
		t.Fatalf("ListSKUs failed: %v", err)
	}
	for _, s := range active {
		if s.Code == "PLY-18" {
			t.Error("Disabled SKU listed among active SKUs")
		}
	}
	all, err := svc.catalog.ListSKUs(ctx, true)
	if err != nil {
		t.Fatalf("ListSKUs with disabled failed: %v", err)
	}
	found := false
	for _, s := range all {
		if s.Code == "PLY-18" && s.Status == core.SKUDisabled {
			found = true
		}
	}
	if !found {
		t.Error("Disabled SKU missing from full listing")
	}

	if _, err := svc.catalog.SetSKUStatus(ctx, "NO-SUCH", core.SKUActive); !errors.Is(err, core.ErrSKUNotFound) {
		t.Errorf("Expected ErrSKUNotFound, got %v", err)
	}
}

func TestCreateSKU_RejectsSelfReferencingBundle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	_, err := svc.catalog.CreateSKU(ctx, core.CreateSKURequest{
		Code:         "RECURSE-KIT",
		CategoryCode: "MATERIALS",
		Name:         "Self Kit",
		UnitCost:     decimal.RequireFromString("10.00"),
		CreatedBy:    "tester",
		BundleItems:  []core.BundleItemInput{{ComponentSKUCode: "RECURSE-KIT", Quantity: 1}},
	})
	if err == nil || !strings.Contains(err.Error(), "cannot contain itself") {
		t.Errorf("Expected self-reference rejection, got %v", err)
	}

	if _, err := svc.catalog.GetSKU(ctx, "RECURSE-KIT"); !errors.Is(err, core.ErrSKUNotFound) {
		t.Errorf("Rejected bundle must not exist, got %v", err)
	}
}

func TestCreateCategory_ValidatesKind(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	cat, err := svc.catalog.CreateCategory(ctx, "CONSUMABLES", "Site Consumables", core.KindProduct, []string{"grade"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if len(cat.RequiredAttributes) != 1 || cat.RequiredAttributes[0] != "grade" {
		t.Errorf("Required attributes not stored: %+v", cat.RequiredAttributes)
	}

	if _, err := svc.catalog.CreateCategory(ctx, "BAD", "Bad Kind", "vehicle", nil); err == nil {
		t.Error("Unknown category kind should be rejected")
	}
}
