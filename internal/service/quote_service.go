package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
	"booking-service/internal/pricing"
	"booking-service/internal/refgen"
	"booking-service/internal/token"
	"booking-service/internal/util"
)

// EventPublisher publishes booking domain events. Implementations must
// be safe for concurrent use; publishing is always best-effort.
type EventPublisher interface {
	PublishQuoteIssued(ctx context.Context, event *models.QuoteIssuedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error
}

// QuoteCache keeps response snapshots of recently issued quotes for
// lookup and debugging. Never a coordination point.
type QuoteCache interface {
	StoreQuote(ctx context.Context, tokenHash string, payload []byte, ttl time.Duration) error
}

// QuoteService prices single products and aggregates itinerary bundles
// into signed, time-bounded quotes.
type QuoteService struct {
	engine    *pricing.Engine
	codec     *token.Codec
	refs      *refgen.Generator
	cache     QuoteCache
	publisher EventPublisher
	logger    *zap.Logger
}

// NewQuoteService creates a quote service. Cache and publisher may be
// nil, in which case snapshots and events are skipped.
func NewQuoteService(
	engine *pricing.Engine,
	codec *token.Codec,
	refs *refgen.Generator,
	cache QuoteCache,
	publisher EventPublisher,
) *QuoteService {
	return &QuoteService{
		engine:    engine,
		codec:     codec,
		refs:      refs,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// QuoteSingle prices one product and allocates display references.
func (s *QuoteService) QuoteSingle(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	_, span := util.StartSpan(ctx, "QuoteService.QuoteSingle")
	defer span.End()

	items, err := s.engine.Price(pricing.Request{
		ProductType: req.ProductType,
		Currency:    req.Currency,
		PartySize:   req.PartySize,
		Params:      req.Params,
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, err
	}

	util.QuotesIssuedTotal.WithLabelValues("single").Inc()
	return &QuoteResponse{
		VoucherCode: s.refs.VoucherCode(),
		InvoiceID:   s.refs.InvoiceID(),
		Items:       items,
	}, nil
}

// QuoteItinerary prices every item of a bundle, preserving the
// caller-supplied references, and returns a signed quote token binding
// the totals to an expiry.
func (s *QuoteService) QuoteItinerary(ctx context.Context, req *ItineraryQuoteRequest) (*ItineraryQuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.QuoteItinerary")
	defer span.End()

	seen := make(map[string]struct{}, len(req.Items))
	claimItems := make([]models.ClaimItem, 0, len(req.Items))
	respItems := make([]ItineraryQuoteItem, 0, len(req.Items))
	bundleTotal := decimal.Zero
	bundleFees := decimal.Zero

	for _, item := range req.Items {
		if _, dup := seen[item.Reference]; dup {
			return nil, bookingerr.Errf(bookingerr.Validation, "duplicate item reference %q", item.Reference)
		}
		seen[item.Reference] = struct{}{}

		quoteItems, err := s.engine.Price(pricing.Request{
			ProductType: item.ProductType,
			Currency:    req.Currency,
			PartySize:   item.PartySize,
			Params:      item.Params,
			Reference:   item.Reference,
		})
		if err != nil {
			return nil, err
		}

		total := decimal.Zero
		fees := decimal.Zero
		for _, qi := range quoteItems {
			total = total.Add(qi.Subtotal)
			fees = fees.Add(qi.Fees)
		}
		bundleTotal = bundleTotal.Add(total)
		bundleFees = bundleFees.Add(fees)

		claimItems = append(claimItems, models.ClaimItem{
			Reference:   item.Reference,
			ProductType: quoteItems[0].ProductType,
			PartySize:   item.PartySize,
			Total:       total,
			Fees:        fees,
			QuoteItems:  quoteItems,
		})
		respItems = append(respItems, ItineraryQuoteItem{
			Reference:   item.Reference,
			ProductType: quoteItems[0].ProductType,
			PartySize:   item.PartySize,
			Total:       total,
			Fees:        fees,
			QuoteItems:  quoteItems,
		})
	}

	claims := &models.QuoteClaims{
		Kind:        "itinerary",
		ItineraryID: req.ItineraryID,
		Currency:    req.Currency,
		Items:       claimItems,
		BundleTotal: bundleTotal,
		BundleFees:  bundleFees,
		ExpiresAt:   time.Now().UTC().Add(s.codec.TTL()).Truncate(time.Second),
		Nonce:       uuid.New().String(),
	}

	signed, err := s.codec.Sign(claims)
	if err != nil {
		return nil, bookingerr.Wrap("sign itinerary quote", err)
	}

	resp := &ItineraryQuoteResponse{
		QuoteToken:  signed,
		ExpiresAt:   claims.ExpiresAt,
		Currency:    req.Currency,
		Items:       respItems,
		BundleTotal: bundleTotal,
		BundleFees:  bundleFees,
	}

	s.snapshotQuote(ctx, signed, resp)
	s.publishQuoteIssued(ctx, claims)

	util.QuotesIssuedTotal.WithLabelValues("itinerary").Inc()
	s.logger.Info("Itinerary quote issued",
		zap.String("itinerary_id", req.ItineraryID),
		zap.Int("items", len(respItems)),
		zap.String("bundle_total", bundleTotal.String()),
		zap.Time("expires_at", claims.ExpiresAt))

	return resp, nil
}

func (s *QuoteService) snapshotQuote(ctx context.Context, signed string, resp *ItineraryQuoteResponse) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.StoreQuote(ctx, token.Hash(signed), payload, s.codec.TTL()); err != nil {
		s.logger.Warn("Failed to cache quote snapshot", zap.Error(err))
	}
}

func (s *QuoteService) publishQuoteIssued(ctx context.Context, claims *models.QuoteClaims) {
	if s.publisher == nil {
		return
	}
	event := &models.QuoteIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQuoteIssued,
			Timestamp: time.Now(),
		},
		ItineraryID: claims.ItineraryID,
		Currency:    claims.Currency,
		BundleTotal: claims.BundleTotal,
		BundleFees:  claims.BundleFees,
		ItemRefs:    claims.ItemRefs(),
		ExpiresAt:   claims.ExpiresAt,
	}
	if err := s.publisher.PublishQuoteIssued(ctx, event); err != nil {
		s.logger.Error("Failed to publish QuoteIssued event", zap.Error(err))
	}
}
