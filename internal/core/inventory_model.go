package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRow is the derived counter cache for one SKU. It is written only
// inside the engine's transactions and can always be rebuilt from instance
// and tag state by Reconcile. The invariant
//
//	available + reserved + broken + loaned == total
//
// holds after every engine operation.
type InventoryRow struct {
	SKUID       int             `json:"sku_id"`
	SKUCode     string          `json:"sku_code"` // joined from skus
	SKUName     string          `json:"sku_name"` // joined from skus
	Total       int             `json:"total_quantity"`
	Available   int             `json:"available_quantity"`
	Reserved    int             `json:"reserved_quantity"`
	Broken      int             `json:"broken_quantity"`
	Loaned      int             `json:"loaned_quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	AverageCost decimal.Decimal `json:"average_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Balanced reports whether the row satisfies the conservation law.
func (r InventoryRow) Balanced() bool {
	return r.Available+r.Reserved+r.Broken+r.Loaned == r.Total
}

// IntegrityIssue describes state reconciliation cannot derive consistently:
// an instance whose tag_id points at a fulfilled or cancelled tag. Reported,
// never auto-corrected.
type IntegrityIssue struct {
	InstanceID int       `json:"instance_id"`
	SKUCode    string    `json:"sku_code"`
	TagID      int       `json:"tag_id"`
	TagStatus  TagStatus `json:"tag_status"`
	Detail     string    `json:"detail"`
}

// ReconcileResult is the outcome of an inventory reconciliation run.
type ReconcileResult struct {
	Rows   []InventoryRow   `json:"rows"`
	Issues []IntegrityIssue `json:"issues,omitempty"`
}
