package token

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
)

func testClaims(expiresAt time.Time) *models.QuoteClaims {
	return &models.QuoteClaims{
		Kind:        "itinerary",
		ItineraryID: "iti_7",
		Currency:    "AUD",
		Items: []models.ClaimItem{
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 2,
				Total: decimal.NewFromInt(300), Fees: decimal.Zero},
			{Reference: "transport_7", ProductType: "transport", PartySize: 2,
				Total: decimal.NewFromInt(120), Fees: decimal.NewFromInt(10)},
		},
		BundleTotal: decimal.NewFromInt(420),
		BundleFees:  decimal.NewFromInt(10),
		ExpiresAt:   expiresAt,
		Nonce:       "nonce-1",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", 15*time.Minute)
	expiresAt := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second)

	signed, err := codec.Sign(testClaims(expiresAt))
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, "iti_7", claims.ItineraryID)
	assert.Equal(t, "AUD", claims.Currency)
	assert.Equal(t, expiresAt, claims.ExpiresAt)
	assert.Equal(t, "nonce-1", claims.Nonce)
	require.Len(t, claims.Items, 2)
	assert.Equal(t, "hotel_42", claims.Items[0].Reference)
	assert.Equal(t, "420", claims.BundleTotal.String())
	assert.Equal(t, "10", claims.BundleFees.String())
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	codec := NewCodec("test-secret", 15*time.Minute)

	signed, err := codec.Sign(testClaims(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	// flip one character of the payload segment
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[10] == 'A' {
		payload[10] = 'B'
	} else {
		payload[10] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = codec.Verify(tampered)
	require.Error(t, err)
	assert.Equal(t, bookingerr.TokenInvalid, bookingerr.KindOf(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewCodec("secret-one", 15*time.Minute)
	verifier := NewCodec("secret-two", 15*time.Minute)

	signed, err := signer.Sign(testClaims(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	require.Error(t, err)
	assert.Equal(t, bookingerr.TokenInvalid, bookingerr.KindOf(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := NewCodec("test-secret", 15*time.Minute)

	_, err := codec.Verify("not-a-token")
	require.Error(t, err)
	assert.Equal(t, bookingerr.TokenInvalid, bookingerr.KindOf(err))
}

func TestVerifyExpiredQuote(t *testing.T) {
	codec := NewCodec("test-secret", 15*time.Minute)
	expiresAt := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second)

	signed, err := codec.Sign(testClaims(expiresAt))
	require.NoError(t, err)

	codec.WithClock(func() time.Time { return expiresAt.Add(time.Second) })

	_, err = codec.Verify(signed)
	require.Error(t, err)
	assert.Equal(t, bookingerr.QuoteExpired, bookingerr.KindOf(err))
}

func TestVerifyRejectsEmptyItems(t *testing.T) {
	codec := NewCodec("test-secret", 15*time.Minute)
	claims := testClaims(time.Now().UTC().Add(time.Hour))
	claims.Items = nil

	signed, err := codec.Sign(claims)
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	require.Error(t, err)
	assert.Equal(t, bookingerr.TokenInvalid, bookingerr.KindOf(err))
}

func TestHashIsStable(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("abc"), 64)
}
