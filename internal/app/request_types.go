package app

import "github.com/shopspring/decimal"

// CreateCategoryRequest is the input for creating a category.
type CreateCategoryRequest struct {
	Code               string
	Name               string
	Kind               string // "product" or "tool"
	RequiredAttributes []string
}

// CreateSKURequest is the input for creating a catalog SKU.
type CreateSKURequest struct {
	Code         string
	CategoryCode string
	Name         string
	Description  string
	UnitCost     decimal.Decimal
	BundleItems  []BundleItemInput
	CreatedBy    string
}

// BundleItemInput is one component of a bundle SKU.
type BundleItemInput struct {
	ComponentSKUCode string
	Quantity         int
}

// UpdateSKUCostRequest appends a cost history entry for a SKU.
type UpdateSKUCostRequest struct {
	Code          string
	Cost          decimal.Decimal
	EffectiveDate string // YYYY-MM-DD, empty means today
	UpdatedBy     string
	Notes         string
}

// ReceiveStockRequest is the input for posting a stock receipt.
type ReceiveStockRequest struct {
	Supplier     string
	ReceivedBy   string
	MovementDate string // YYYY-MM-DD, empty means today
	Notes        string
	Lines        []ReceiptLineInput
}

// ReceiptLineInput is a single line within a ReceiveStockRequest.
// UnitCost zero means "use the SKU's current unit cost".
type ReceiptLineInput struct {
	SKUCode  string
	Quantity int
	UnitCost decimal.Decimal
	Location string
}

// CreateTagRequest is the input for creating a tag with allocated lines.
type CreateTagRequest struct {
	TagType   string
	Customer  string
	Project   string
	DueDate   string // YYYY-MM-DD, optional
	Notes     string
	CreatedBy string
	Lines     []TagLineInput
}

// TagLineInput is one SKU line to allocate: either Quantity with a
// fifo/cost_based method, or explicit InstanceIDs (manual).
type TagLineInput struct {
	SKUCode     string
	Quantity    int
	Method      string // "", "fifo", "cost_based", "manual"
	CostOrder   string // "", "cost_asc", "cost_desc"
	InstanceIDs []int
}

// FulfillTagRequest resolves held instances on a tag.
type FulfillTagRequest struct {
	TagID       int
	Mode        string // "consume" or "release"
	Actor       string
	Resolutions []ResolutionInput // empty means "everything the tag holds"
}

// ResolutionInput selects what to resolve on one SKU line.
type ResolutionInput struct {
	SKUCode     string
	Quantity    int
	InstanceIDs []int
}

// ConditionReturnRequest returns loaned instances with a reported condition.
type ConditionReturnRequest struct {
	TagID       int
	InstanceIDs []int
	Condition   string // "functional", "needs_maintenance", "broken"
	Actor       string
}
