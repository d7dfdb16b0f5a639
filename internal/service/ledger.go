package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
	"booking-service/internal/refgen"
	"booking-service/internal/token"
	"booking-service/internal/util"
)

// Sentinel errors the order repository reports for unique-constraint
// conflicts. The idempotency-key conflict is the sole coordination
// mechanism between concurrent duplicate submissions; reference
// conflicts trigger regenerate-and-retry.
var (
	ErrIdempotencyConflict = errors.New("idempotency key already exists")
	ErrReferenceConflict   = errors.New("voucher or invoice reference already exists")
)

// OrderRepository abstracts the ledger's storage. Any engine that can
// perform an atomic insert-if-absent keyed by the idempotency key
// satisfies the contract.
type OrderRepository interface {
	// InsertIfAbsentByKey atomically creates the order row. Returns
	// ErrIdempotencyConflict when the idempotency key is taken and
	// ErrReferenceConflict when a voucher/invoice reference collides.
	InsertIfAbsentByKey(ctx context.Context, order *models.Order) error
	// FindByKey returns the order stored under the idempotency key, or
	// nil when absent.
	FindByKey(ctx context.Context, idempotencyKey string) (*models.Order, error)
	// UpdateOrderOutcome moves the order to a terminal status.
	UpdateOrderOutcome(ctx context.Context, orderID, status, paymentID string) error
}

// maxReferenceAttempts bounds regenerate-and-retry on voucher/invoice
// collisions before giving up as Internal.
const maxReferenceAttempts = 3

// Ledger verifies quote tokens, enforces idempotent confirmation and
// persists the resulting orders.
type Ledger struct {
	repo      OrderRepository
	codec     *token.Codec
	refs      *refgen.Generator
	payments  *PaymentGateway
	publisher EventPublisher
	logger    *zap.Logger
}

// NewLedger creates a confirmation ledger. Publisher may be nil.
func NewLedger(
	repo OrderRepository,
	codec *token.Codec,
	refs *refgen.Generator,
	payments *PaymentGateway,
	publisher EventPublisher,
) *Ledger {
	return &Ledger{
		repo:      repo,
		codec:     codec,
		refs:      refs,
		payments:  payments,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Confirm executes one confirm request under at-most-once semantics for
// the given idempotency key.
func (l *Ledger) Confirm(ctx context.Context, req *ConfirmRequest, idempotencyKey string) (*ConfirmResponse, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.Confirm")
	defer span.End()

	claims, err := l.codec.Verify(req.QuoteToken)
	if err != nil {
		if bookingerr.Is(err, bookingerr.TokenInvalid) {
			util.TokenVerifyFailedTotal.WithLabelValues("invalid").Inc()
			l.logger.Warn("Rejected quote token with bad signature", zap.Error(err))
		} else {
			util.TokenVerifyFailedTotal.WithLabelValues("expired").Inc()
		}
		return nil, err
	}

	selection, err := normalizeSelection(req.ItemRefs, claims)
	if err != nil {
		return nil, err
	}

	tokenHash := token.Hash(req.QuoteToken)
	fingerprint := requestFingerprint(tokenHash, req.PaymentToken, selection)

	if idempotencyKey != "" {
		existing, err := l.repo.FindByKey(ctx, idempotencyKey)
		if err != nil {
			return nil, bookingerr.Wrap("lookup idempotency key", err)
		}
		if existing != nil {
			return l.replay(existing, fingerprint, idempotencyKey)
		}
	}

	amount, fees := selectionTotals(claims, selection)
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, bookingerr.Wrap("serialize quote claims", err)
	}

	order := &models.Order{
		ID:                 uuid.New().String(),
		ItineraryID:        claims.ItineraryID,
		ProductType:        "itinerary",
		Currency:           claims.Currency,
		Amount:             amount,
		Fees:               fees,
		Status:             models.OrderStatusPending,
		PaymentID:          "",
		IdempotencyKey:     idempotencyKey,
		QuoteTokenHash:     tokenHash,
		RequestFingerprint: fingerprint,
		QuoteClaimsJSON:    string(claimsJSON),
		SelectionRefs:      strings.Join(selection, ","),
	}

	if err := l.insertWithFreshReferences(ctx, order); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			// A concurrent duplicate won the insert race; read back the
			// winner's row instead of retrying the side effect.
			winner, lookupErr := l.repo.FindByKey(ctx, idempotencyKey)
			if lookupErr != nil || winner == nil {
				return nil, bookingerr.Wrap("read back winning order", lookupErr)
			}
			return l.replay(winner, fingerprint, idempotencyKey)
		}
		return nil, err
	}

	util.PaymentAttemptsTotal.Inc()
	paymentID, err := l.payments.Charge(req.PaymentToken, amount)
	if err != nil {
		if bookingerr.Is(err, bookingerr.PaymentFailed) || bookingerr.Is(err, bookingerr.PaymentToken) {
			util.PaymentFailedTotal.Inc()
			if updErr := l.repo.UpdateOrderOutcome(ctx, order.ID, models.OrderStatusFailed, ""); updErr != nil {
				l.logger.Error("Failed to mark order failed",
					zap.String("order_id", order.ID), zap.Error(updErr))
			}
			l.publishOrderFailed(ctx, order, err.Error())
			util.OrdersFailedTotal.WithLabelValues(bookingerr.KindOf(err).String()).Inc()
			return nil, err
		}
		return nil, bookingerr.Wrap("charge payment", err)
	}
	util.PaymentSuccessTotal.Inc()

	if err := l.repo.UpdateOrderOutcome(ctx, order.ID, models.OrderStatusConfirmed, paymentID); err != nil {
		return nil, bookingerr.Wrap("persist confirmed order", err)
	}
	order.Status = models.OrderStatusConfirmed
	order.PaymentID = paymentID

	util.OrdersConfirmedTotal.Inc()
	l.publishOrderConfirmed(ctx, order, selection)
	l.logger.Info("Order confirmed",
		zap.String("order_id", order.ID),
		zap.String("itinerary_id", order.ItineraryID),
		zap.String("voucher_code", order.VoucherCode),
		zap.Strings("selection", selection))

	return buildConfirmResponse(order, claims, selection), nil
}

// insertWithFreshReferences allocates voucher/invoice identifiers and
// inserts the order, regenerating on reference collisions.
func (l *Ledger) insertWithFreshReferences(ctx context.Context, order *models.Order) error {
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		order.VoucherCode = l.refs.VoucherCode()
		order.InvoiceID = l.refs.InvoiceID()

		err := l.repo.InsertIfAbsentByKey(ctx, order)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrReferenceConflict) {
			l.logger.Warn("Reference collision, regenerating",
				zap.String("voucher_code", order.VoucherCode),
				zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, ErrIdempotencyConflict) {
			return err
		}
		return bookingerr.Wrap("insert order", err)
	}
	return bookingerr.Errf(bookingerr.Internal,
		"reference allocation exhausted after %d attempts", maxReferenceAttempts)
}

// replay returns the stored result for a reused idempotency key, or
// rejects the reuse when the request fingerprint differs.
func (l *Ledger) replay(existing *models.Order, fingerprint, idempotencyKey string) (*ConfirmResponse, error) {
	if existing.RequestFingerprint != fingerprint {
		return nil, bookingerr.Errf(bookingerr.IdempotencyMismatch,
			"idempotency key %s already used with a different request", idempotencyKey)
	}

	var claims models.QuoteClaims
	if err := json.Unmarshal([]byte(existing.QuoteClaimsJSON), &claims); err != nil {
		return nil, bookingerr.Wrap("decode stored claims", err)
	}

	util.IdempotentReplaysTotal.Inc()
	l.logger.Info("Replaying stored confirmation result",
		zap.String("order_id", existing.ID),
		zap.String("idempotency_key", idempotencyKey))

	return buildConfirmResponse(existing, &claims, splitSelection(existing.SelectionRefs)), nil
}

func (l *Ledger) publishOrderConfirmed(ctx context.Context, order *models.Order, selection []string) {
	if l.publisher == nil {
		return
	}
	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		ItineraryID:   order.ItineraryID,
		VoucherCode:   order.VoucherCode,
		InvoiceID:     order.InvoiceID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		ConfirmedRefs: selection,
	}
	if err := l.publisher.PublishOrderConfirmed(ctx, event); err != nil {
		l.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}
}

func (l *Ledger) publishOrderFailed(ctx context.Context, order *models.Order, reason string) {
	if l.publisher == nil {
		return
	}
	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		ItineraryID: order.ItineraryID,
		Reason:      reason,
	}
	if err := l.publisher.PublishOrderFailed(ctx, event); err != nil {
		l.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
}

// normalizeSelection trims, deduplicates and sorts the requested item
// references and checks each one against the claims. An empty result
// means "confirm every item".
func normalizeSelection(itemRefs []string, claims *models.QuoteClaims) ([]string, error) {
	if len(itemRefs) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(itemRefs))
	selection := make([]string, 0, len(itemRefs))
	for _, ref := range itemRefs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		if _, ok := claims.ItemByRef(ref); !ok {
			return nil, bookingerr.Errf(bookingerr.Validation,
				"item reference %q is not part of the quote", ref)
		}
		seen[ref] = struct{}{}
		selection = append(selection, ref)
	}
	sort.Strings(selection)
	return selection, nil
}

// requestFingerprint binds an idempotency key to the exact request it
// was first used with.
func requestFingerprint(tokenHash, paymentToken string, selection []string) string {
	paymentHash := sha256.Sum256([]byte(paymentToken))
	h := sha256.New()
	h.Write([]byte(tokenHash))
	h.Write([]byte("|"))
	h.Write(paymentHash[:])
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(selection, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// selectionTotals sums amount and fees for the selected items, or for
// the whole bundle when the selection is empty.
func selectionTotals(claims *models.QuoteClaims, selection []string) (decimal.Decimal, decimal.Decimal) {
	if len(selection) == 0 {
		return claims.BundleTotal, claims.BundleFees
	}
	amount := decimal.Zero
	fees := decimal.Zero
	for _, ref := range selection {
		if item, ok := claims.ItemByRef(ref); ok {
			amount = amount.Add(item.Total)
			fees = fees.Add(item.Fees)
		}
	}
	return amount, fees
}

func buildConfirmResponse(order *models.Order, claims *models.QuoteClaims, selection []string) *ConfirmResponse {
	selected := make(map[string]struct{}, len(selection))
	for _, ref := range selection {
		selected[ref] = struct{}{}
	}

	items := make([]ConfirmedItem, 0, len(claims.Items))
	for _, item := range claims.Items {
		status := models.QuoteStatusPending
		_, inSelection := selected[item.Reference]
		if (len(selection) == 0 || inSelection) && order.Status == models.OrderStatusConfirmed {
			status = models.QuoteStatusConfirmed
		}
		items = append(items, ConfirmedItem{Reference: item.Reference, Status: status})
	}

	return &ConfirmResponse{
		Status:         order.Status,
		VoucherCode:    order.VoucherCode,
		InvoiceID:      order.InvoiceID,
		ConfirmedItems: items,
	}
}

func splitSelection(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
