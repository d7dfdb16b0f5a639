package store

import (
	"context"
	"database/sql"
	"fmt"

	"booking-service/internal/models"
)

// GetTrip retrieves trip preferences.
func (s *Store) GetTrip(ctx context.Context, tripID int64) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.GetContext(ctx, &trip, "SELECT * FROM trips WHERE id = $1", tripID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip not found: %d", tripID)
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetTripItem retrieves one reservable item and checks trip ownership.
func (s *Store) GetTripItem(ctx context.Context, tripID, itemID int64) (*models.TripItem, error) {
	var item models.TripItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM trip_items WHERE id = $1", itemID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip item not found: %d", itemID)
	}
	if err != nil {
		return nil, err
	}
	if item.TripID != tripID {
		return nil, fmt.Errorf("trip item %d does not belong to trip %d", itemID, tripID)
	}
	return &item, nil
}

// GetPendingTripItems retrieves every reservation-required item of a
// trip that has not been confirmed yet.
func (s *Store) GetPendingTripItems(ctx context.Context, tripID int64) ([]models.TripItem, error) {
	var items []models.TripItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT * FROM trip_items
		 WHERE trip_id = $1 AND reservation_required AND status <> $2
		 ORDER BY id`,
		tripID, models.QuoteStatusConfirmed)
	return items, err
}

// UpdateTripItemStatus updates the local status of one trip item.
func (s *Store) UpdateTripItemStatus(ctx context.Context, itemID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE trip_items SET status = $1 WHERE id = $2", status, itemID)
	return err
}
