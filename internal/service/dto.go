package service

import (
	"time"

	"github.com/shopspring/decimal"

	"booking-service/internal/models"
	"booking-service/internal/pricing"
)

// QuoteRequest prices a single product.
type QuoteRequest struct {
	ProductType string         `json:"product_type" binding:"required"`
	Currency    string         `json:"currency" binding:"required"`
	PartySize   int            `json:"party_size" binding:"required,min=1"`
	Params      pricing.Params `json:"params"`
	Reference   string         `json:"reference,omitempty"`
}

// QuoteResponse is the priced result for a single product.
type QuoteResponse struct {
	VoucherCode string             `json:"voucher_code"`
	InvoiceID   string             `json:"invoice_id"`
	Items       []models.QuoteItem `json:"items"`
}

// ItineraryItemRequest is one entry of a bundled quote request. The
// caller-supplied reference is the canonical identifier used for
// partial confirmation later.
type ItineraryItemRequest struct {
	Reference   string         `json:"reference" binding:"required"`
	ProductType string         `json:"product_type" binding:"required"`
	PartySize   int            `json:"party_size" binding:"required,min=1"`
	Params      pricing.Params `json:"params"`
}

// ItineraryQuoteRequest bundles several items into one priced quote.
type ItineraryQuoteRequest struct {
	ItineraryID string                 `json:"itinerary_id" binding:"required"`
	Currency    string                 `json:"currency" binding:"required"`
	Items       []ItineraryItemRequest `json:"items" binding:"required,min=1"`
}

// ItineraryQuoteItem is the per-item breakdown of a bundled quote.
type ItineraryQuoteItem struct {
	Reference   string             `json:"reference"`
	ProductType string             `json:"product_type"`
	PartySize   int                `json:"party_size"`
	Total       decimal.Decimal    `json:"total"`
	Fees        decimal.Decimal    `json:"fees"`
	QuoteItems  []models.QuoteItem `json:"quote_items"`
}

// ItineraryQuoteResponse carries the signed token alongside the breakdown.
type ItineraryQuoteResponse struct {
	QuoteToken  string               `json:"quote_token"`
	ExpiresAt   time.Time            `json:"expires_at"`
	Currency    string               `json:"currency"`
	Items       []ItineraryQuoteItem `json:"items"`
	BundleTotal decimal.Decimal      `json:"bundle_total"`
	BundleFees  decimal.Decimal      `json:"bundle_fees"`
}

// ConfirmRequest turns a quoted itinerary (or a subset of its items)
// into a booked order. Empty ItemRefs confirms every item.
type ConfirmRequest struct {
	QuoteToken   string   `json:"quote_token" binding:"required"`
	PaymentToken string   `json:"payment_token" binding:"required"`
	ItemRefs     []string `json:"item_refs"`
}

// ConfirmedItem is the per-item outcome of a confirm call.
type ConfirmedItem struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ConfirmResponse is the result of a confirm call.
type ConfirmResponse struct {
	Status         string          `json:"status"`
	VoucherCode    string          `json:"voucher_code"`
	InvoiceID      string          `json:"invoice_id"`
	ConfirmedItems []ConfirmedItem `json:"confirmed_items"`
}
