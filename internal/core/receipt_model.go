package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a posted stock receipt: the only operation that brings new
// instances into existence.
type Receipt struct {
	ID            int           `json:"id"`
	ReceiptNumber string        `json:"receipt_number"` // gapless, assigned at posting
	Supplier      string        `json:"supplier"`
	ReceivedBy    string        `json:"received_by"`
	MovementDate  string        `json:"movement_date"` // YYYY-MM-DD
	Notes         string        `json:"notes"`
	Lines         []ReceiptLine `json:"lines"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ReceiptLine is one SKU line as entered. For bundle SKUs the line records the
// bundle, while the created instances belong to the component SKUs.
type ReceiptLine struct {
	ID         int             `json:"id"`
	ReceiptID  int             `json:"receipt_id"`
	LineNumber int             `json:"line_number"`
	SKUID      int             `json:"sku_id"`
	SKUCode    string          `json:"sku_code"` // joined from skus
	SKUName    string          `json:"sku_name"` // joined from skus
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Location   string          `json:"location"`
}

// ReceiptLineInput is one line of a stock receipt request. UnitCost zero means
// "use the SKU's current unit cost".
type ReceiptLineInput struct {
	SKUCode  string
	Quantity int
	UnitCost decimal.Decimal
	Location string
}

// ReceiveStockRequest posts a stock receipt in one transaction.
type ReceiveStockRequest struct {
	Supplier     string
	ReceivedBy   string
	MovementDate string // YYYY-MM-DD, empty means today
	Notes        string
	Lines        []ReceiptLineInput
}
