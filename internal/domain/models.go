package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Barcode     string          `json:"barcode"`
	Code        string          `json:"code"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Barcode     string `json:"barcode"`
	Code        string `json:"code"`
}

type ProductLookupResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Receipt is the durable record of one committed checkout. It is never
// updated after creation; its items keep name/price snapshots so the receipt
// stays stable against later catalog edits or deletes.
type Receipt struct {
	ID            int64           `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	Date          time.Time       `json:"date"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Items         []ReceiptItem   `json:"items"`
}

type ReceiptItem struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type DailySale struct {
	ID          int64           `json:"id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	SoldAt      time.Time       `json:"sold_at"`
}

type CashEntry struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
}

type CashEntryCreateRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

type CashLedgerResponse struct {
	Entries []CashEntry     `json:"entries"`
	Balance decimal.Decimal `json:"balance"`
}

// CartLine is one raw cart entry as submitted by the caller. Price stays raw
// JSON until the orchestrator validates it, so a malformed value is rejected
// with the line that carried it instead of failing the whole decode.
type CartLine struct {
	ProductID int64   `json:"id"`
	Name      string  `json:"name"`
	Price     RawJSON `json:"price"`
	Quantity  int     `json:"quantity"`
}

// RawJSON defers parsing of a field to the validation phase. It accepts any
// JSON value, including numbers and quoted strings.
type RawJSON []byte

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

type CheckoutRequest struct {
	Cart           []CartLine `json:"cart"`
	PaymentMethod  string     `json:"payment_method"`
	Discount       RawJSON    `json:"discount,omitempty"`
	TaxRatePercent RawJSON    `json:"tax_rate_percent,omitempty"`
}

type CheckoutResponse struct {
	Success       bool            `json:"success"`
	ReceiptNumber string          `json:"receipt_number"`
	Total         decimal.Decimal `json:"total"`
}

// Sale is a fully validated and priced checkout, ready for the repository to
// commit as one unit. Lines whose ProductID does not resolve to a catalog row
// are recorded off-catalog and never touch inventory.
type Sale struct {
	ReceiptNumber string
	Date          time.Time
	PaymentMethod string
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Lines         []SaleLine
	CashNote      string
}

type SaleLine struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Total     decimal.Decimal
}

type DailyReportProduct struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type DailyReport struct {
	Date         string               `json:"date"`
	TotalRevenue decimal.Decimal      `json:"total_revenue"`
	SalesCount   int                  `json:"sales_count"`
	TopProducts  []DailyReportProduct `json:"top_products"`
	LowStock     []Product            `json:"low_stock"`
	Sales        []DailySale          `json:"sales"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CodegenResponse struct {
	Code    string `json:"code"`
	Barcode string `json:"barcode"`
}
