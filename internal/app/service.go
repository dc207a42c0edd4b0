package app

import (
	"context"

	"stockroom/internal/core"
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web)
// call. It decouples presentation from business logic. Implementations must
// contain no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// ListCategories returns all categories.
	ListCategories(ctx context.Context) (*CategoryListResult, error)

	// CreateCategory creates a category (product or tool kind).
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*core.Category, error)

	// ListSKUs returns catalog SKUs, optionally including disabled ones.
	ListSKUs(ctx context.Context, includeDisabled bool) (*SKUListResult, error)

	// GetSKU returns one SKU with bundle components if any.
	GetSKU(ctx context.Context, code string) (*core.SKU, error)

	// CreateSKU creates a SKU, optionally as a bundle.
	CreateSKU(ctx context.Context, req CreateSKURequest) (*core.SKU, error)

	// UpdateSKUCost appends a cost history entry and updates the current cost.
	UpdateSKUCost(ctx context.Context, req UpdateSKUCostRequest) (*core.SKU, error)

	// GetCostHistory returns the append-only cost history for a SKU.
	GetCostHistory(ctx context.Context, code string) (*CostHistoryResult, error)

	// SetSKUStatus soft-enables or disables a SKU.
	SetSKUStatus(ctx context.Context, code, status string) (*core.SKU, error)

	// ReceiveStock posts a stock receipt, creating instances.
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Receipt, error)

	// GetReceipt returns a posted receipt with lines.
	GetReceipt(ctx context.Context, receiptID int) (*core.Receipt, error)

	// ListReceipts returns recent receipts, newest first.
	ListReceipts(ctx context.Context, limit int) (*ReceiptListResult, error)

	// CreateTag creates a tag and allocates all requested lines atomically.
	CreateTag(ctx context.Context, req CreateTagRequest) (*core.Tag, error)

	// AllocateToTag allocates an additional SKU line on an active tag.
	AllocateToTag(ctx context.Context, tagID int, line TagLineInput, actor string) (*core.Tag, error)

	// FulfillTag resolves held instances by consuming or releasing them.
	FulfillTag(ctx context.Context, req FulfillTagRequest) (*core.Tag, error)

	// ReturnWithCondition returns loaned instances, moving unserviceable ones
	// into a new broken/imperfect hold tag.
	ReturnWithCondition(ctx context.Context, req ConditionReturnRequest) (*ConditionReturnResult, error)

	// CancelTag abandons an active tag, releasing all held instances.
	CancelTag(ctx context.Context, tagID int, reason, actor string) (*core.Tag, error)

	// GetTag returns a tag by numeric id or tag number.
	GetTag(ctx context.Context, ref string) (*core.Tag, error)

	// ListTags returns tags filtered by status/type (empty = no filter).
	ListTags(ctx context.Context, status, tagType string) (*TagListResult, error)

	// GetStockLevels returns the inventory counter rows for all SKUs.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	// ReconcileInventory rebuilds counters from ground truth for one SKU or
	// all SKUs (empty code), reporting integrity issues.
	ReconcileInventory(ctx context.Context, skuCode string) (*core.ReconcileResult, error)

	// ListMovements returns recent stock movements, newest first.
	ListMovements(ctx context.Context, skuCode string, limit int) (*MovementListResult, error)

	// GetValuationReport sums inventory value per category.
	GetValuationReport(ctx context.Context) (*core.ValuationReport, error)

	// GetOverdueLoans lists active loans past their due date.
	GetOverdueLoans(ctx context.Context, asOf string) (*OverdueLoansResult, error)

	// InterpretRequest sends a natural-language stock request to the AI agent
	// and returns either a tag proposal or a clarification request.
	InterpretRequest(ctx context.Context, text string) (*AIResult, error)

	// ValidateProposal validates a proposal without committing it.
	ValidateProposal(ctx context.Context, proposal core.TagProposal) error

	// CommitProposal creates the tag a proposal describes. Must only be
	// called after explicit user approval.
	CommitProposal(ctx context.Context, proposal core.TagProposal, actor string) (*core.Tag, error)
}
