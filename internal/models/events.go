package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeQuoteIssued    = "QUOTE_ISSUED"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderFailed    = "ORDER_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteIssuedEvent published when an itinerary quote is signed
type QuoteIssuedEvent struct {
	BaseEvent
	ItineraryID string          `json:"itinerary_id"`
	Currency    string          `json:"currency"`
	BundleTotal decimal.Decimal `json:"bundle_total"`
	BundleFees  decimal.Decimal `json:"bundle_fees"`
	ItemRefs    []string        `json:"item_refs"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// OrderConfirmedEvent published when a confirm call succeeds
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	ItineraryID   string          `json:"itinerary_id"`
	VoucherCode   string          `json:"voucher_code"`
	InvoiceID     string          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ConfirmedRefs []string        `json:"confirmed_refs"`
}

// OrderFailedEvent published when a confirm call fails after an order
// row was created (payment declined)
type OrderFailedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	ItineraryID string `json:"itinerary_id"`
	Reason      string `json:"reason"`
}
