package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/util"
)

// MirrorStore is the slice of the store the reconcile worker needs.
type MirrorStore interface {
	UpdateQuoteStatusByRef(ctx context.Context, tripID int64, itemReference, status string) error
	MarkPendingQuotesFailed(ctx context.Context, tripID int64) error
}

// ReconcileWorker consumes order outcome events and reconciles the
// local trip_booking_quotes mirror with what the ledger decided. The
// synchronous confirm path already writes the mirror; the worker
// repairs rows the synchronous write missed (crash between charge and
// mirror update, or confirms issued by another instance).
type ReconcileWorker struct {
	consumer *broker.Consumer
	store    MirrorStore
	logger   *zap.Logger
}

// NewReconcileWorker creates a reconcile worker
func NewReconcileWorker(consumer *broker.Consumer, store MirrorStore) *ReconcileWorker {
	return &ReconcileWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	w.logger.Info("Stopping reconcile worker")
	return w.consumer.Close()
}

func (w *ReconcileWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		w.logger.Error("Failed to unmarshal event", zap.Error(err))
		return err
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderConfirmed:
		var event models.OrderConfirmedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return w.reconcile(ctx, event.ItineraryID, event.ConfirmedRefs, models.QuoteStatusConfirmed)

	case models.EventTypeOrderFailed:
		var event models.OrderFailedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return w.reconcileFailure(ctx, event.ItineraryID, event.Reason)
	}

	return nil
}

// reconcile applies a terminal status to the mirror rows of the given
// references. Events for itineraries this instance does not mirror are
// skipped, not failed, so the consumer can commit and move on.
func (w *ReconcileWorker) reconcile(ctx context.Context, itineraryID string, refs []string, status string) error {
	tripID, ok := parseTripID(itineraryID)
	if !ok {
		w.logger.Debug("Skipping event for unrecognized itinerary",
			zap.String("itinerary_id", itineraryID))
		return nil
	}

	for _, ref := range refs {
		if err := w.store.UpdateQuoteStatusByRef(ctx, tripID, ref, status); err != nil {
			util.MirrorReconcileTotal.WithLabelValues("miss").Inc()
			w.logger.Warn("Mirror row not updated",
				zap.Int64("trip_id", tripID),
				zap.String("item_reference", ref),
				zap.Error(err))
			continue
		}
		util.MirrorReconcileTotal.WithLabelValues("updated").Inc()
	}

	w.logger.Info("Reconciled mirror rows",
		zap.Int64("trip_id", tripID),
		zap.String("status", status),
		zap.Int("refs", len(refs)))
	return nil
}

// reconcileFailure marks every non-terminal mirror row of the trip
// failed. Failed orders carry no per-item references.
func (w *ReconcileWorker) reconcileFailure(ctx context.Context, itineraryID, reason string) error {
	tripID, ok := parseTripID(itineraryID)
	if !ok {
		return nil
	}
	if err := w.store.MarkPendingQuotesFailed(ctx, tripID); err != nil {
		util.MirrorReconcileTotal.WithLabelValues("miss").Inc()
		return err
	}
	util.MirrorReconcileTotal.WithLabelValues("failed").Inc()
	w.logger.Info("Marked pending mirror rows failed",
		zap.Int64("trip_id", tripID),
		zap.String("reason", reason))
	return nil
}

// parseTripID extracts the numeric trip id from an itinerary id of the
// form "iti_<tripID>".
func parseTripID(itineraryID string) (int64, bool) {
	raw, found := strings.CutPrefix(itineraryID, "iti_")
	if !found {
		return 0, false
	}
	tripID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return tripID, true
}
