package app

import "stockroom/internal/core"

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// CategoryListResult is returned by ListCategories.
type CategoryListResult struct {
	Categories []core.Category `json:"categories"`
}

// SKUListResult is returned by ListSKUs.
type SKUListResult struct {
	SKUs []core.SKU `json:"skus"`
}

// CostHistoryResult is returned by GetCostHistory.
type CostHistoryResult struct {
	SKUCode string           `json:"sku_code"`
	Entries []core.CostEntry `json:"entries"`
}

// ReceiptListResult is returned by ListReceipts.
type ReceiptListResult struct {
	Receipts []core.Receipt `json:"receipts"`
}

// TagListResult is returned by ListTags.
type TagListResult struct {
	Tags []core.Tag `json:"tags"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Rows []core.InventoryRow `json:"rows"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	Movements []core.Movement `json:"movements"`
}

// OverdueLoansResult is returned by GetOverdueLoans.
type OverdueLoansResult struct {
	AsOf  string             `json:"as_of"`
	Loans []core.OverdueLoan `json:"loans"`
}

// ConditionReturnResult is returned by ReturnWithCondition. HoldTag is nil
// when the returned units were functional.
type ConditionReturnResult struct {
	Tag     *core.Tag `json:"tag"`
	HoldTag *core.Tag `json:"hold_tag,omitempty"`
}

// AIResult is returned by InterpretRequest.
type AIResult struct {
	Proposal             *core.TagProposal `json:"proposal,omitempty"`
	ClarificationMessage string            `json:"clarification_message,omitempty"`
	IsClarification      bool              `json:"is_clarification"`
}
