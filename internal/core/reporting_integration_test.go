package core_test

import (
	"context"
	"testing"

	"stockroom/internal/core"

	"github.com/shopspring/decimal"
)

func TestValuationSummary_GroupsByCategory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "PLY-18", 2, "40.00", "2026-01-05")
	receiveUnits(t, svc, "STUD-2X4", 5, "6.00", "2026-01-05")
	receiveUnits(t, svc, "DRILL-18V", 1, "185.00", "2026-01-05")

	reporting := core.NewReportingService(pool)
	report, err := reporting.ValuationSummary(ctx)
	if err != nil {
		t.Fatalf("ValuationSummary failed: %v", err)
	}

	byCode := map[string]core.CategoryValuation{}
	for _, cv := range report.Categories {
		byCode[cv.CategoryCode] = cv
	}

	materials := byCode["MATERIALS"]
	if materials.TotalUnits != 7 {
		t.Errorf("MATERIALS units %d, want 7", materials.TotalUnits)
	}
	if !materials.TotalValue.Equal(decimal.RequireFromString("110.00")) {
		t.Errorf("MATERIALS value %s, want 110.00", materials.TotalValue)
	}
	tools := byCode["TOOLS"]
	if tools.TotalUnits != 1 || !tools.TotalValue.Equal(decimal.RequireFromString("185.00")) {
		t.Errorf("TOOLS valuation wrong: %+v", tools)
	}
	if !report.GrandTotal.Equal(decimal.RequireFromString("295.00")) {
		t.Errorf("Grand total %s, want 295.00", report.GrandTotal)
	}
}

func TestOverdueLoans_UsesAsOfCutoff(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	receiveUnits(t, svc, "DRILL-18V", 3, "185.00", "2026-01-05")

	overdue, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		Customer:  "roofing crew",
		DueDate:   "2026-05-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 2, Method: core.SelectFIFO}},
	})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	// Not yet due at the cutoff.
	if _, err := svc.tags.CreateTag(ctx, core.CreateTagRequest{
		TagType:   core.TagLoaned,
		Customer:  "paint crew",
		DueDate:   "2026-07-01",
		CreatedBy: "tester",
		Lines:     []core.AllocationInput{{SKUCode: "DRILL-18V", Quantity: 1, Method: core.SelectFIFO}},
	}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	reporting := core.NewReportingService(pool)
	loans, err := reporting.OverdueLoans(ctx, "2026-06-01")
	if err != nil {
		t.Fatalf("OverdueLoans failed: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("Expected one overdue loan at 2026-06-01, got %d", len(loans))
	}
	l := loans[0]
	if l.TagNumber != overdue.TagNumber || l.DaysOverdue != 31 || l.UnitsHeld != 2 {
		t.Errorf("Overdue loan wrong: %+v", l)
	}

	// Fulfilled loans drop off the report even past their due date.
	if _, err := svc.tags.FulfillTag(ctx, overdue.ID, nil, core.ResolveRelease, "tester"); err != nil {
		t.Fatalf("FulfillTag failed: %v", err)
	}
	loans, err = reporting.OverdueLoans(ctx, "2026-06-01")
	if err != nil {
		t.Fatalf("OverdueLoans after fulfill failed: %v", err)
	}
	if len(loans) != 0 {
		t.Errorf("Fulfilled loan still reported overdue: %+v", loans)
	}

	if _, err := reporting.OverdueLoans(ctx, "junk"); err == nil {
		t.Error("Malformed as-of date should be rejected")
	}
}
