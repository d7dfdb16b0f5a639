package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteItem is one priced line inside a quote. Subtotal is always
// UnitPrice * Quantity in the item currency.
type QuoteItem struct {
	Reference   string          `json:"reference"`
	ProductType string          `json:"product_type"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Fees        decimal.Decimal `json:"fees"`
	Currency    string          `json:"currency"`
	Provider    string          `json:"provider,omitempty"`
	Title       string          `json:"title,omitempty"`
}

// ClaimItem is the per-item entry embedded in signed quote claims.
type ClaimItem struct {
	Reference   string          `json:"ref"`
	ProductType string          `json:"pt"`
	PartySize   int             `json:"ps"`
	Total       decimal.Decimal `json:"total"`
	Fees        decimal.Decimal `json:"fees"`
	QuoteItems  []QuoteItem     `json:"quote_items"`
}

// QuoteClaims is the payload committed to by a signed quote token.
// Only its signed encoding and a hash of the token are ever persisted.
type QuoteClaims struct {
	Kind        string          `json:"kind"`
	ItineraryID string          `json:"itinerary_id"`
	Currency    string          `json:"currency"`
	Items       []ClaimItem     `json:"items"`
	BundleTotal decimal.Decimal `json:"bundle_total"`
	BundleFees  decimal.Decimal `json:"bundle_fees"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Nonce       string          `json:"nonce"`
}

// ItemRefs returns the item references in claim order.
func (c *QuoteClaims) ItemRefs() []string {
	refs := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		refs = append(refs, item.Reference)
	}
	return refs
}

// ItemByRef returns the claim item with the given reference, if present.
func (c *QuoteClaims) ItemByRef(ref string) (ClaimItem, bool) {
	for _, item := range c.Items {
		if item.Reference == ref {
			return item, true
		}
	}
	return ClaimItem{}, false
}

// Order is a row in the confirmation ledger.
type Order struct {
	ID                 string          `db:"id" json:"id"`
	ItineraryID        string          `db:"itinerary_id" json:"itinerary_id"`
	ProductType        string          `db:"product_type" json:"product_type"`
	Currency           string          `db:"currency" json:"currency"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	Fees               decimal.Decimal `db:"fees" json:"fees"`
	Status             string          `db:"status" json:"status"`
	VoucherCode        string          `db:"voucher_code" json:"voucher_code"`
	InvoiceID          string          `db:"invoice_id" json:"invoice_id"`
	PaymentID          string          `db:"payment_id" json:"payment_id,omitempty"`
	IdempotencyKey     string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	QuoteTokenHash     string          `db:"quote_token_hash" json:"-"`
	RequestFingerprint string          `db:"request_fingerprint" json:"-"`
	QuoteClaimsJSON    string          `db:"quote_claims_json" json:"-"`
	SelectionRefs      string          `db:"selection_refs" json:"selection_refs,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses. Confirmed and failed are terminal.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusFailed    = "failed"
)

// TripBookingQuote mirrors the remote quote state for one logical trip item.
type TripBookingQuote struct {
	ID            int64           `db:"id" json:"id"`
	TripID        int64           `db:"trip_id" json:"trip_id"`
	EntityID      int64           `db:"entity_id" json:"entity_id"`
	ProductType   string          `db:"product_type" json:"product_type"`
	ItemReference string          `db:"item_reference" json:"item_reference"`
	QuoteToken    string          `db:"quote_token" json:"quote_token,omitempty"`
	VoucherCode   string          `db:"voucher_code" json:"voucher_code,omitempty"`
	InvoiceID     string          `db:"invoice_id" json:"invoice_id,omitempty"`
	Status        string          `db:"status" json:"status"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency      string          `db:"currency" json:"currency"`
	RawResponse   string          `db:"raw_response" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Mirror row statuses.
const (
	QuoteStatusPending   = "pending"
	QuoteStatusQuoted    = "quoted"
	QuoteStatusConfirmed = "confirmed"
	QuoteStatusFailed    = "failed"
)

// TripItem is a reservable entry of a trip plan the orchestrator quotes from.
type TripItem struct {
	ID                  int64           `db:"id" json:"id"`
	TripID              int64           `db:"trip_id" json:"trip_id"`
	ProductType         string          `db:"product_type" json:"product_type"`
	Title               string          `db:"title" json:"title"`
	Provider            string          `db:"provider" json:"provider,omitempty"`
	UnitPrice           decimal.Decimal `db:"unit_price" json:"unit_price"`
	Currency            string          `db:"currency" json:"currency"`
	ItemDate            time.Time       `db:"item_date" json:"item_date"`
	Nights              int             `db:"nights" json:"nights"`
	People              int             `db:"people" json:"people"`
	ReservationRequired bool            `db:"reservation_required" json:"reservation_required"`
	Status              string          `db:"status" json:"status"`
}

// Trip carries the preferences shared by all items of one trip.
type Trip struct {
	ID        int64  `db:"id" json:"id"`
	Currency  string `db:"currency" json:"currency"`
	PartySize int    `db:"party_size" json:"party_size"`
}
