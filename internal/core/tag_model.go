package core

import "time"

// Tag represents a hold against instances: a reservation, loan, damage or
// maintenance state, or stock set-aside. Status progresses
//
//	active → fulfilled (all held instances resolved)
//	active → cancelled (all held instances released)
type Tag struct {
	ID                 int        `json:"id"`
	TagNumber          string     `json:"tag_number"` // gapless, assigned at creation
	TagType            TagType    `json:"tag_type"`
	Status             TagStatus  `json:"status"`
	Customer           string     `json:"customer"`
	Project            string     `json:"project"`
	DueDate            *string    `json:"due_date,omitempty"` // YYYY-MM-DD
	Notes              string     `json:"notes"`
	Items              []TagItem  `json:"items"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	FulfilledBy        *string    `json:"fulfilled_by,omitempty"`
	FulfilledDate      *time.Time `json:"fulfilled_date,omitempty"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancelledDate      *time.Time `json:"cancelled_date,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
}

// TagItem is one SKU line on a tag. SelectedInstanceIDs is loaded from the
// instances.tag_id back-reference, which is the single source of truth: the
// line's effective quantity is always len(SelectedInstanceIDs), nothing else.
type TagItem struct {
	ID                  int             `json:"id"`
	TagID               int             `json:"tag_id"`
	SKUID               int             `json:"sku_id"`
	SKUCode             string          `json:"sku_code"` // joined from skus
	SKUName             string          `json:"sku_name"` // joined from skus
	SelectionMethod     SelectionMethod `json:"selection_method"`
	SelectedInstanceIDs []int           `json:"selected_instance_ids"`
}

// Quantity returns the line's effective quantity.
func (ti TagItem) Quantity() int { return len(ti.SelectedInstanceIDs) }

// AllocationInput describes one SKU line to allocate. Either Quantity with a
// fifo/cost_based method, or explicit InstanceIDs with the manual method.
type AllocationInput struct {
	SKUCode     string
	Quantity    int
	Method      SelectionMethod // empty means "use the category's default rule"
	CostOrder   CostOrder       // cost_based only; empty means ascending
	InstanceIDs []int           // manual only
}

// CreateTagRequest creates a tag and allocates its lines in one transaction.
type CreateTagRequest struct {
	TagType   TagType
	Customer  string
	Project   string
	DueDate   string // YYYY-MM-DD, optional
	Notes     string
	CreatedBy string
	Lines     []AllocationInput
}

// ResolutionMode says what happens to resolved instances.
type ResolutionMode string

const (
	// ResolveConsume deletes the instances: the units leave inventory
	// permanently (reserved materials handed over).
	ResolveConsume ResolutionMode = "consume"
	// ResolveRelease clears tag_id: the units become available again
	// (returned tools).
	ResolveRelease ResolutionMode = "release"
)

// Resolution selects what to resolve on one SKU line during fulfillment.
// Either Quantity (oldest held instances first) or explicit InstanceIDs.
type Resolution struct {
	SKUCode     string
	Quantity    int
	InstanceIDs []int
}
