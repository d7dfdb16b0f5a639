package broker

import (
	"context"
	"fmt"

	"booking-service/internal/models"
)

// EventPublisher publishes booking lifecycle events to Kafka, keyed so
// that every event of one itinerary lands on the same partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates an event publisher on top of a producer
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishQuoteIssued publishes a QUOTE_ISSUED event
func (p *EventPublisher) PublishQuoteIssued(ctx context.Context, event *models.QuoteIssuedEvent) error {
	return p.producer.PublishEvent(ctx, itineraryKey(event.ItineraryID), event)
}

// PublishOrderConfirmed publishes an ORDER_CONFIRMED event
func (p *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	return p.producer.PublishEvent(ctx, itineraryKey(event.ItineraryID), event)
}

// PublishOrderFailed publishes an ORDER_FAILED event
func (p *EventPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	return p.producer.PublishEvent(ctx, itineraryKey(event.ItineraryID), event)
}

func itineraryKey(itineraryID string) string {
	return fmt.Sprintf("itinerary-%s", itineraryID)
}
