package core

import "errors"

// Error kinds surfaced by the allocation/fulfillment engine. Services wrap
// these with fmt.Errorf("%w: ...") so callers can branch with errors.Is while
// still getting a descriptive message. Every operation that returns one of
// these aborts entirely: no partial writes.
var (
	// ErrInsufficientStock: requested quantity exceeds the available instances
	// for a SKU. Nothing is allocated.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidInstanceSelection: a manual instance id list contains an id
	// that is not currently available or does not belong to the stated SKU.
	ErrInvalidInstanceSelection = errors.New("invalid instance selection")

	// ErrTagNotFound: the referenced tag does not exist.
	ErrTagNotFound = errors.New("tag not found")

	// ErrNotInTag: a referenced instance is not currently held by the tag
	// (or a quantity exceeds what the tag holds for that SKU).
	ErrNotInTag = errors.New("instance not held by tag")

	// ErrInvalidTagState: the operation requires a tag state the tag is not in
	// (e.g. fulfilling a cancelled tag).
	ErrInvalidTagState = errors.New("invalid tag state")

	// ErrSKUNotFound: the referenced SKU does not exist or is disabled where
	// an active SKU is required.
	ErrSKUNotFound = errors.New("sku not found")

	// ErrIntegrityViolation: reconciliation found state that cannot be derived
	// consistently (e.g. an instance pointing at a non-active tag). Reported,
	// never silently repaired beyond the recount itself.
	ErrIntegrityViolation = errors.New("inventory integrity violation")
)
