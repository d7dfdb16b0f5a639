package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/pricing"
	"booking-service/internal/service"
	"booking-service/internal/util"
)

// TripStore is the slice of the store the orchestrator needs: the local
// trip catalog plus the booking mirror.
type TripStore interface {
	GetTrip(ctx context.Context, tripID int64) (*models.Trip, error)
	GetTripItem(ctx context.Context, tripID, itemID int64) (*models.TripItem, error)
	GetPendingTripItems(ctx context.Context, tripID int64) ([]models.TripItem, error)
	UpsertBookingQuote(ctx context.Context, quote *models.TripBookingQuote) error
	GetBookingQuotesByTripID(ctx context.Context, tripID int64) ([]models.TripBookingQuote, error)
	UpdateQuoteStatusByRef(ctx context.Context, tripID int64, itemReference, status string) error
}

// Orchestrator drives the quote-confirm flow against the booking API
// and mirrors the remote state into trip_booking_quotes.
type Orchestrator struct {
	client BookingClient
	store  TripStore
	logger *zap.Logger
}

// NewOrchestrator creates a booking orchestrator.
func NewOrchestrator(client BookingClient, store TripStore) *Orchestrator {
	return &Orchestrator{
		client: client,
		store:  store,
		logger: util.GetLogger(),
	}
}

// QuoteSingleItem quotes one trip item and upserts its mirror row. A
// failed remote call still leaves a mirror row behind, status failed,
// so the trip page can show what went wrong.
func (o *Orchestrator) QuoteSingleItem(ctx context.Context, tripID int64, productType string, entityID int64) (*models.TripBookingQuote, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.QuoteSingleItem")
	defer span.End()

	trip, err := o.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	item, err := o.store.GetTripItem(ctx, tripID, entityID)
	if err != nil {
		return nil, err
	}
	if item.ProductType != productType {
		return nil, fmt.Errorf("trip item %d is a %s, not a %s", entityID, item.ProductType, productType)
	}

	req := &service.QuoteRequest{
		ProductType: item.ProductType,
		Currency:    trip.Currency,
		PartySize:   trip.PartySize,
		Params:      buildParams(item),
		Reference:   itemReference(item),
	}

	resp, raw, err := o.client.Quote(ctx, req)
	if err != nil {
		o.persistFailure(ctx, trip, item, raw, err)
		return nil, fmt.Errorf("quote %s %d failed: %w", productType, entityID, err)
	}

	total := decimal.Zero
	for _, qi := range resp.Items {
		total = total.Add(qi.Subtotal).Add(qi.Fees)
	}

	mirror := &models.TripBookingQuote{
		TripID:        tripID,
		EntityID:      item.ID,
		ProductType:   item.ProductType,
		ItemReference: itemReference(item),
		VoucherCode:   resp.VoucherCode,
		InvoiceID:     resp.InvoiceID,
		Status:        models.QuoteStatusQuoted,
		TotalAmount:   total,
		Currency:      trip.Currency,
		RawResponse:   string(raw),
	}
	if err := o.store.UpsertBookingQuote(ctx, mirror); err != nil {
		return nil, fmt.Errorf("failed to mirror quote: %w", err)
	}

	o.logger.Info("Quoted trip item",
		zap.Int64("trip_id", tripID),
		zap.Int64("entity_id", entityID),
		zap.String("voucher_code", resp.VoucherCode),
		zap.String("total", total.String()))
	return mirror, nil
}

// QuoteItinerary bundles every pending reservation-required item of a
// trip into one itinerary quote and mirrors the result per item.
func (o *Orchestrator) QuoteItinerary(ctx context.Context, tripID int64) (*service.ItineraryQuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.QuoteItinerary")
	defer span.End()

	trip, err := o.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	items, err := o.store.GetPendingTripItems(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending trip items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("trip %d has no pending reservable items", tripID)
	}

	req := &service.ItineraryQuoteRequest{
		ItineraryID: itineraryID(tripID),
		Currency:    trip.Currency,
		Items:       make([]service.ItineraryItemRequest, 0, len(items)),
	}
	byRef := make(map[string]models.TripItem, len(items))
	for _, item := range items {
		ref := itemReference(&item)
		byRef[ref] = item
		req.Items = append(req.Items, service.ItineraryItemRequest{
			Reference:   ref,
			ProductType: item.ProductType,
			PartySize:   trip.PartySize,
			Params:      buildParams(&item),
		})
	}

	resp, raw, err := o.client.QuoteItinerary(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("itinerary quote for trip %d failed: %w", tripID, err)
	}

	for _, quoted := range resp.Items {
		item, ok := byRef[quoted.Reference]
		if !ok {
			continue
		}
		mirror := &models.TripBookingQuote{
			TripID:        tripID,
			EntityID:      item.ID,
			ProductType:   item.ProductType,
			ItemReference: quoted.Reference,
			QuoteToken:    resp.QuoteToken,
			Status:        models.QuoteStatusQuoted,
			TotalAmount:   quoted.Total.Add(quoted.Fees),
			Currency:      resp.Currency,
			RawResponse:   string(raw),
		}
		if err := o.store.UpsertBookingQuote(ctx, mirror); err != nil {
			o.logger.Error("Failed to mirror itinerary item",
				zap.Int64("trip_id", tripID),
				zap.String("item_reference", quoted.Reference),
				zap.Error(err))
		}
	}

	o.logger.Info("Itinerary quoted",
		zap.Int64("trip_id", tripID),
		zap.Int("items", len(resp.Items)),
		zap.String("bundle_total", resp.BundleTotal.String()),
		zap.Time("expires_at", resp.ExpiresAt))
	return resp, nil
}

// ConfirmBooking confirms a quoted itinerary (or a subset of its items)
// and applies each per-item outcome to the mirror. Items the ledger
// left pending keep their prior mirror status.
func (o *Orchestrator) ConfirmBooking(ctx context.Context, tripID int64, quoteToken string, itemRefs []string) (*service.ConfirmResponse, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.ConfirmBooking")
	defer span.End()

	req := &service.ConfirmRequest{
		QuoteToken:   quoteToken,
		PaymentToken: fmt.Sprintf("pm_mock_trip_%d", tripID),
		ItemRefs:     itemRefs,
	}

	resp, _, err := o.client.Confirm(ctx, req, uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("confirm for trip %d failed: %w", tripID, err)
	}

	for _, item := range resp.ConfirmedItems {
		if item.Status != models.QuoteStatusConfirmed {
			continue
		}
		if err := o.store.UpdateQuoteStatusByRef(ctx, tripID, item.Reference, models.QuoteStatusConfirmed); err != nil {
			o.logger.Warn("Failed to update mirror row after confirm",
				zap.Int64("trip_id", tripID),
				zap.String("item_reference", item.Reference),
				zap.Error(err))
		}
	}

	o.logger.Info("Booking confirmed",
		zap.Int64("trip_id", tripID),
		zap.String("status", resp.Status),
		zap.String("voucher_code", resp.VoucherCode))
	return resp, nil
}

// GetTripQuotes returns the mirrored quote state of a trip.
func (o *Orchestrator) GetTripQuotes(ctx context.Context, tripID int64) ([]models.TripBookingQuote, error) {
	return o.store.GetBookingQuotesByTripID(ctx, tripID)
}

func (o *Orchestrator) persistFailure(ctx context.Context, trip *models.Trip, item *models.TripItem, raw []byte, cause error) {
	mirror := &models.TripBookingQuote{
		TripID:        trip.ID,
		EntityID:      item.ID,
		ProductType:   item.ProductType,
		ItemReference: itemReference(item),
		Status:        models.QuoteStatusFailed,
		TotalAmount:   decimal.Zero,
		Currency:      trip.Currency,
		RawResponse:   string(raw),
	}
	if err := o.store.UpsertBookingQuote(ctx, mirror); err != nil {
		o.logger.Error("Failed to persist quote failure",
			zap.Int64("trip_id", trip.ID),
			zap.Int64("entity_id", item.ID),
			zap.Error(err))
		return
	}
	o.logger.Warn("Persisted failed quote",
		zap.Int64("trip_id", trip.ID),
		zap.Int64("entity_id", item.ID),
		zap.Error(cause))
}

// itemReference derives the canonical item reference of a trip item,
// e.g. hotel_42.
func itemReference(item *models.TripItem) string {
	return fmt.Sprintf("%s_%d", item.ProductType, item.ID)
}

// itineraryID derives the remote itinerary identifier of a trip.
func itineraryID(tripID int64) string {
	return fmt.Sprintf("iti_%d", tripID)
}

// buildParams maps a catalog row onto the pricing parameters the
// booking API expects for its product type.
func buildParams(item *models.TripItem) pricing.Params {
	params := pricing.Params{
		"price": item.UnitPrice.String(),
		"date":  item.ItemDate.Format("2006-01-02"),
		"title": item.Title,
	}
	switch item.ProductType {
	case "hotel":
		params["hotel_name"] = item.Title
		if item.Nights > 0 {
			params["nights"] = item.Nights
		}
	case "transport":
		if item.Provider != "" {
			params["provider"] = item.Provider
		}
	case "attraction":
		if item.People > 0 {
			params["people"] = item.People
		}
	}
	return params
}
