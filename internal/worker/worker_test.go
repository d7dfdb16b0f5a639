package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/models"
	"booking-service/internal/util"
)

type fakeMirrorStore struct {
	updated map[string]string // reference -> status
	failed  []int64
}

func newFakeMirrorStore() *fakeMirrorStore {
	return &fakeMirrorStore{updated: map[string]string{}}
}

func (s *fakeMirrorStore) UpdateQuoteStatusByRef(_ context.Context, tripID int64, itemReference, status string) error {
	s.updated[itemReference] = status
	return nil
}

func (s *fakeMirrorStore) MarkPendingQuotesFailed(_ context.Context, tripID int64) error {
	s.failed = append(s.failed, tripID)
	return nil
}

func newTestWorker(store MirrorStore) *ReconcileWorker {
	return &ReconcileWorker{store: store, logger: util.GetLogger()}
}

func TestParseTripID(t *testing.T) {
	id, ok := parseTripID("iti_42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseTripID("iti_abc")
	assert.False(t, ok)

	_, ok = parseTripID("order_42")
	assert.False(t, ok)
}

func TestHandleOrderConfirmed(t *testing.T) {
	store := newFakeMirrorStore()
	w := newTestWorker(store)

	event := models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderConfirmed,
		},
		OrderID:       "order-1",
		ItineraryID:   "iti_7",
		ConfirmedRefs: []string{"hotel_42", "transport_7"},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = w.handleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)

	assert.Equal(t, models.QuoteStatusConfirmed, store.updated["hotel_42"])
	assert.Equal(t, models.QuoteStatusConfirmed, store.updated["transport_7"])
}

func TestHandleOrderFailed(t *testing.T) {
	store := newFakeMirrorStore()
	w := newTestWorker(store)

	event := models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeOrderFailed,
		},
		OrderID:     "order-2",
		ItineraryID: "iti_9",
		Reason:      "payment declined",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = w.handleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)

	assert.Equal(t, []int64{9}, store.failed)
}

func TestSkipsForeignItineraries(t *testing.T) {
	store := newFakeMirrorStore()
	w := newTestWorker(store)

	event := models.OrderConfirmedEvent{
		BaseEvent:     models.BaseEvent{EventType: models.EventTypeOrderConfirmed},
		ItineraryID:   "external-bundle-1",
		ConfirmedRefs: []string{"hotel_42"},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = w.handleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.Empty(t, store.updated)
}

func TestIgnoresOtherEventTypes(t *testing.T) {
	store := newFakeMirrorStore()
	w := newTestWorker(store)

	event := models.QuoteIssuedEvent{
		BaseEvent:   models.BaseEvent{EventType: models.EventTypeQuoteIssued},
		ItineraryID: "iti_7",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = w.handleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.Empty(t, store.updated)
	assert.Empty(t, store.failed)
}
