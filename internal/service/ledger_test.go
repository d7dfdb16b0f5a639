package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
	"booking-service/internal/refgen"
	"booking-service/internal/token"
)

// fakeOrderRepo is an in-memory OrderRepository. referenceConflicts
// scripts ErrReferenceConflict for the first N inserts.
type fakeOrderRepo struct {
	byKey              map[string]*models.Order
	inserts            int
	referenceConflicts int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byKey: map[string]*models.Order{}}
}

func (r *fakeOrderRepo) InsertIfAbsentByKey(_ context.Context, order *models.Order) error {
	r.inserts++
	if r.referenceConflicts > 0 {
		r.referenceConflicts--
		return ErrReferenceConflict
	}
	if order.IdempotencyKey != "" {
		if _, taken := r.byKey[order.IdempotencyKey]; taken {
			return ErrIdempotencyConflict
		}
		stored := *order
		r.byKey[order.IdempotencyKey] = &stored
	}
	return nil
}

func (r *fakeOrderRepo) FindByKey(_ context.Context, idempotencyKey string) (*models.Order, error) {
	if order, ok := r.byKey[idempotencyKey]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeOrderRepo) UpdateOrderOutcome(_ context.Context, orderID, status, paymentID string) error {
	for _, order := range r.byKey {
		if order.ID == orderID {
			order.Status = status
			order.PaymentID = paymentID
		}
	}
	return nil
}

func signedQuote(t *testing.T, codec *token.Codec) string {
	t.Helper()
	claims := &models.QuoteClaims{
		Kind:        "itinerary",
		ItineraryID: "iti_7",
		Currency:    "AUD",
		Items: []models.ClaimItem{
			{Reference: "hotel_42", ProductType: "hotel", PartySize: 2,
				Total: decimal.NewFromInt(300), Fees: decimal.Zero},
			{Reference: "transport_7", ProductType: "transport", PartySize: 2,
				Total: decimal.NewFromInt(120), Fees: decimal.NewFromInt(60)},
		},
		BundleTotal: decimal.NewFromInt(420),
		BundleFees:  decimal.NewFromInt(60),
		ExpiresAt:   time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second),
		Nonce:       "nonce-ledger",
	}
	signed, err := codec.Sign(claims)
	require.NoError(t, err)
	return signed
}

func newTestLedger(repo OrderRepository, codec *token.Codec) *Ledger {
	return NewLedger(repo, codec, refgen.New(), &PaymentGateway{DeclineEvery: 0}, nil)
}

func TestConfirmFullBundle(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	resp, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-1")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, resp.Status)
	assert.Regexp(t, `^VCH-[0-9A-F]{4}-[0-9A-F]{4}$`, resp.VoucherCode)
	assert.Regexp(t, `^INV_\d{4}$`, resp.InvoiceID)
	require.Len(t, resp.ConfirmedItems, 2)
	for _, item := range resp.ConfirmedItems {
		assert.Equal(t, models.QuoteStatusConfirmed, item.Status)
	}

	stored := repo.byKey["key-1"]
	require.NotNil(t, stored)
	assert.Equal(t, "420", stored.Amount.String())
	assert.Equal(t, "60", stored.Fees.String())
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.NotEmpty(t, stored.PaymentID)
}

func TestConfirmPartialSelection(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	ledger := newTestLedger(newFakeOrderRepo(), codec)
	quoteToken := signedQuote(t, codec)

	resp, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
		ItemRefs:     []string{"hotel_42"},
	}, "key-partial")
	require.NoError(t, err)

	statuses := map[string]string{}
	for _, item := range resp.ConfirmedItems {
		statuses[item.Reference] = item.Status
	}
	assert.Equal(t, models.QuoteStatusConfirmed, statuses["hotel_42"])
	assert.Equal(t, models.QuoteStatusPending, statuses["transport_7"])
}

func TestConfirmPartialSelectionChargesSubsetTotal(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
		ItemRefs:     []string{"transport_7"},
	}, "key-subset")
	require.NoError(t, err)

	stored := repo.byKey["key-subset"]
	require.NotNil(t, stored)
	assert.Equal(t, "120", stored.Amount.String())
	assert.Equal(t, "60", stored.Fees.String())
	assert.Equal(t, "transport_7", stored.SelectionRefs)
}

func TestConfirmUnknownReference(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	ledger := newTestLedger(newFakeOrderRepo(), codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
		ItemRefs:     []string{"attraction_99"},
	}, "key-bad-ref")
	require.Error(t, err)
	assert.Equal(t, bookingerr.Validation, bookingerr.KindOf(err))
}

func TestConfirmIdempotentReplay(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	req := &ConfirmRequest{QuoteToken: quoteToken, PaymentToken: "pm_mock_abc"}

	first, err := ledger.Confirm(context.Background(), req, "key-replay")
	require.NoError(t, err)
	insertsAfterFirst := repo.inserts

	second, err := ledger.Confirm(context.Background(), req, "key-replay")
	require.NoError(t, err)

	assert.Equal(t, first.VoucherCode, second.VoucherCode)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, insertsAfterFirst, repo.inserts, "replay must not insert again")
}

func TestConfirmIdempotencyMismatch(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	ledger := newTestLedger(newFakeOrderRepo(), codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-mismatch")
	require.NoError(t, err)

	_, err = ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_other",
	}, "key-mismatch")
	require.Error(t, err)
	assert.Equal(t, bookingerr.IdempotencyMismatch, bookingerr.KindOf(err))

	// a different item selection is a mismatch too
	_, err = ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
		ItemRefs:     []string{"hotel_42"},
	}, "key-mismatch")
	require.Error(t, err)
	assert.Equal(t, bookingerr.IdempotencyMismatch, bookingerr.KindOf(err))
}

func TestConfirmExpiredToken(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	ledger := newTestLedger(newFakeOrderRepo(), codec)
	quoteToken := signedQuote(t, codec)

	codec.WithClock(func() time.Time { return time.Now().Add(time.Hour) })

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-expired")
	require.Error(t, err)
	assert.Equal(t, bookingerr.QuoteExpired, bookingerr.KindOf(err))
}

func TestConfirmTamperedToken(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	ledger := newTestLedger(newFakeOrderRepo(), codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken + "x",
		PaymentToken: "pm_mock_abc",
	}, "key-tampered")
	require.Error(t, err)
	assert.Equal(t, bookingerr.TokenInvalid, bookingerr.KindOf(err))
}

func TestConfirmPaymentDeclined(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := NewLedger(repo, codec, refgen.New(), &PaymentGateway{DeclineEvery: 1}, nil)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-declined")
	require.Error(t, err)
	assert.Equal(t, bookingerr.PaymentFailed, bookingerr.KindOf(err))

	stored := repo.byKey["key-declined"]
	require.NotNil(t, stored)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
}

func TestConfirmBadPaymentToken(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "tok_visa",
	}, "key-bad-payment")
	require.Error(t, err)
	assert.Equal(t, bookingerr.PaymentToken, bookingerr.KindOf(err))

	stored := repo.byKey["key-bad-payment"]
	require.NotNil(t, stored)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
}

func TestConfirmRegeneratesReferencesOnCollision(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	repo.referenceConflicts = 2
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	resp, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-collision")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, resp.Status)
	assert.Equal(t, 3, repo.inserts)
}

func TestConfirmReferenceCollisionExhausted(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	repo.referenceConflicts = 3
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	_, err := ledger.Confirm(context.Background(), &ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: "pm_mock_abc",
	}, "key-exhausted")
	require.Error(t, err)
	assert.Equal(t, bookingerr.Internal, bookingerr.KindOf(err))
}

func TestConfirmLosingRaceReadsBackWinner(t *testing.T) {
	codec := token.NewCodec("test-secret", 15*time.Minute)
	repo := newFakeOrderRepo()
	ledger := newTestLedger(repo, codec)
	quoteToken := signedQuote(t, codec)

	req := &ConfirmRequest{QuoteToken: quoteToken, PaymentToken: "pm_mock_abc"}

	first, err := ledger.Confirm(context.Background(), req, "key-race")
	require.NoError(t, err)

	// Simulate the loser of a concurrent duplicate: its FindByKey saw
	// nothing, but the insert hits the unique constraint.
	winner := repo.byKey["key-race"]
	losingRepo := &racingRepo{fakeOrderRepo: repo, winner: winner}
	racingLedger := newTestLedger(losingRepo, codec)

	second, err := racingLedger.Confirm(context.Background(), req, "key-race")
	require.NoError(t, err)
	assert.Equal(t, first.VoucherCode, second.VoucherCode)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
}

// racingRepo hides the winner from the pre-insert lookup so the insert
// itself reports the conflict, then reveals it for the read-back.
type racingRepo struct {
	*fakeOrderRepo
	winner   *models.Order
	lookedUp bool
}

func (r *racingRepo) FindByKey(ctx context.Context, idempotencyKey string) (*models.Order, error) {
	if !r.lookedUp {
		r.lookedUp = true
		return nil, nil
	}
	copied := *r.winner
	return &copied, nil
}
