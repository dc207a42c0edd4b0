package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryKind classifies what a category's SKUs represent: consumable products
// or lendable tools.
type CategoryKind string

const (
	KindProduct CategoryKind = "product"
	KindTool    CategoryKind = "tool"
)

type SKUStatus string

const (
	SKUActive   SKUStatus = "active"
	SKUDisabled SKUStatus = "disabled"
)

// TagType identifies why instances are being held.
type TagType string

const (
	TagReserved  TagType = "reserved"
	TagLoaned    TagType = "loaned"
	TagBroken    TagType = "broken"
	TagImperfect TagType = "imperfect"
	TagStock     TagType = "stock"
)

type TagStatus string

const (
	TagActive    TagStatus = "active"
	TagFulfilled TagStatus = "fulfilled"
	TagCancelled TagStatus = "cancelled"
)

// SelectionMethod controls how available instances are chosen for a tag line.
type SelectionMethod string

const (
	SelectFIFO      SelectionMethod = "fifo"
	SelectCostBased SelectionMethod = "cost_based"
	SelectManual    SelectionMethod = "manual"
)

// CostOrder is the explicit direction for cost_based selection. It is never
// inferred: callers that want highest-cost-first must say so.
type CostOrder string

const (
	CostAscending  CostOrder = "cost_asc"
	CostDescending CostOrder = "cost_desc"
)

// InstanceCondition is reported when a loaned tool comes back.
type InstanceCondition string

const (
	ConditionFunctional       InstanceCondition = "functional"
	ConditionNeedsMaintenance InstanceCondition = "needs_maintenance"
	ConditionBroken           InstanceCondition = "broken"
)

// ValidTagType reports whether s is one of the five tag types.
func ValidTagType(s string) bool {
	switch TagType(s) {
	case TagReserved, TagLoaned, TagBroken, TagImperfect, TagStock:
		return true
	}
	return false
}

// ValidSelectionMethod reports whether s is a known selection method.
func ValidSelectionMethod(s string) bool {
	switch SelectionMethod(s) {
	case SelectFIFO, SelectCostBased, SelectManual:
		return true
	}
	return false
}

// HoldTagType maps a reported instance condition to the tag type that should
// hold the unit afterwards. Functional units need no hold and map to "".
func HoldTagType(c InstanceCondition) TagType {
	switch c {
	case ConditionNeedsMaintenance:
		return TagImperfect
	case ConditionBroken:
		return TagBroken
	}
	return ""
}

// Category is static reference data classifying SKUs.
type Category struct {
	ID                 int          `json:"id"`
	Code               string       `json:"code"`
	Name               string       `json:"name"`
	Kind               CategoryKind `json:"kind"`
	RequiredAttributes []string     `json:"required_attributes"`
	CreatedAt          time.Time    `json:"created_at"`
}

// SKU is the master record for a product or tool type (not a physical unit).
type SKU struct {
	ID           int             `json:"id"`
	Code         string          `json:"code"`
	CategoryID   int             `json:"category_id"`
	CategoryCode string          `json:"category_code"` // joined from categories
	CategoryKind CategoryKind    `json:"category_kind"` // joined from categories
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	IsBundle     bool            `json:"is_bundle"`
	Status       SKUStatus       `json:"status"`
	BundleItems  []BundleItem    `json:"bundle_items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BundleItem is one component line of a bundle SKU. Receiving a bundle creates
// instances of the component SKUs, never of the bundle SKU itself.
type BundleItem struct {
	ComponentSKUID   int    `json:"component_sku_id"`
	ComponentSKUCode string `json:"component_sku_code"`
	Quantity         int    `json:"quantity"`
}

// CostEntry is one append-only row of a SKU's cost history.
type CostEntry struct {
	ID            int             `json:"id"`
	SKUID         int             `json:"sku_id"`
	Cost          decimal.Decimal `json:"cost"`
	EffectiveDate string          `json:"effective_date"` // YYYY-MM-DD
	UpdatedBy     string          `json:"updated_by"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Instance is one physical unit of a SKU. AcquisitionCost and AcquisitionDate
// are frozen at receipt and never recalculated. TagID nil means available;
// non-nil means held by exactly that tag. There is no separate status field
// that could contradict this.
type Instance struct {
	ID              int             `json:"id"`
	SKUID           int             `json:"sku_id"`
	SKUCode         string          `json:"sku_code"` // joined from skus
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	AcquisitionDate string          `json:"acquisition_date"` // YYYY-MM-DD
	Location        string          `json:"location"`
	TagID           *int            `json:"tag_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Available reports whether the instance is free to allocate.
func (i Instance) Available() bool { return i.TagID == nil }
