package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/bookingerr"
	"booking-service/internal/pricing"
	"booking-service/internal/refgen"
	"booking-service/internal/token"
)

func newTestQuoteService() *QuoteService {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	return NewQuoteService(pricing.NewEngine(), codec, refgen.New(), nil, nil)
}

func TestQuoteSingleAllocatesReferences(t *testing.T) {
	svc := newTestQuoteService()

	resp, err := svc.QuoteSingle(context.Background(), &QuoteRequest{
		ProductType: "hotel",
		Currency:    "AUD",
		PartySize:   2,
		Params:      pricing.Params{"price": 150, "nights": 2},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^VCH-[0-9A-F]{4}-[0-9A-F]{4}$`, resp.VoucherCode)
	assert.Regexp(t, `^INV_\d{4}$`, resp.InvoiceID)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "300", resp.Items[0].Subtotal.String())
}

func TestQuoteItineraryBundlesTotals(t *testing.T) {
	svc := newTestQuoteService()

	resp, err := svc.QuoteItinerary(context.Background(), &ItineraryQuoteRequest{
		ItineraryID: "iti_7",
		Currency:    "AUD",
		Items: []ItineraryItemRequest{
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 2,
				Params: pricing.Params{"price": 150, "nights": 2}},
			{Reference: "transport_7", ProductType: "transport", PartySize: 2,
				Params: pricing.Params{"price": 60, "fees": 60}},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.QuoteToken)
	assert.Equal(t, "420", resp.BundleTotal.String())
	assert.Equal(t, "60", resp.BundleFees.String())
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "hotel_42", resp.Items[0].Reference)
	assert.Equal(t, "300", resp.Items[0].Total.String())
	assert.Equal(t, "transport_7", resp.Items[1].Reference)
	assert.Equal(t, "120", resp.Items[1].Total.String())
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), resp.ExpiresAt, 5*time.Second)
}

func TestQuoteItineraryTokenVerifiable(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	svc := NewQuoteService(pricing.NewEngine(), codec, refgen.New(), nil, nil)

	resp, err := svc.QuoteItinerary(context.Background(), &ItineraryQuoteRequest{
		ItineraryID: "iti_9",
		Currency:    "EUR",
		Items: []ItineraryItemRequest{
			{Reference: "attraction_9", ProductType: "attraction", PartySize: 3,
				Params: pricing.Params{"price": 20}},
		},
	})
	require.NoError(t, err)

	claims, err := codec.Verify(resp.QuoteToken)
	require.NoError(t, err)
	assert.Equal(t, "iti_9", claims.ItineraryID)
	assert.Equal(t, []string{"attraction_9"}, claims.ItemRefs())
	assert.Equal(t, "60", claims.BundleTotal.String())
	assert.Equal(t, resp.ExpiresAt, claims.ExpiresAt)
	assert.NotEmpty(t, claims.Nonce)
}

func TestQuoteItineraryRejectsDuplicateRefs(t *testing.T) {
	svc := newTestQuoteService()

	_, err := svc.QuoteItinerary(context.Background(), &ItineraryQuoteRequest{
		ItineraryID: "iti_7",
		Currency:    "AUD",
		Items: []ItineraryItemRequest{
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 1, Params: pricing.Params{"price": 100}},
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 1, Params: pricing.Params{"price": 100}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, bookingerr.Validation, bookingerr.KindOf(err))
}

func TestQuoteItineraryPropagatesPricingErrors(t *testing.T) {
	svc := newTestQuoteService()

	_, err := svc.QuoteItinerary(context.Background(), &ItineraryQuoteRequest{
		ItineraryID: "iti_7",
		Currency:    "AUD",
		Items: []ItineraryItemRequest{
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 1, Params: pricing.Params{}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, bookingerr.Validation, bookingerr.KindOf(err))
}
