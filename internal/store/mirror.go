package store

import (
	"context"
	"database/sql"
	"fmt"

	"booking-service/internal/models"
)

// UpsertBookingQuote creates or replaces the mirror row for one logical
// trip item, keyed by (trip_id, entity_id, product_type).
func (s *Store) UpsertBookingQuote(ctx context.Context, quote *models.TripBookingQuote) error {
	query := `
		INSERT INTO trip_booking_quotes (
			trip_id, entity_id, product_type, item_reference, quote_token,
			voucher_code, invoice_id, status, total_amount, currency, raw_response
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (trip_id, entity_id, product_type) DO UPDATE SET
			item_reference = EXCLUDED.item_reference,
			quote_token    = EXCLUDED.quote_token,
			voucher_code   = EXCLUDED.voucher_code,
			invoice_id     = EXCLUDED.invoice_id,
			status         = EXCLUDED.status,
			total_amount   = EXCLUDED.total_amount,
			currency       = EXCLUDED.currency,
			raw_response   = EXCLUDED.raw_response,
			updated_at     = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		quote.TripID, quote.EntityID, quote.ProductType, quote.ItemReference,
		quote.QuoteToken, quote.VoucherCode, quote.InvoiceID, quote.Status,
		quote.TotalAmount, quote.Currency, quote.RawResponse,
	).Scan(&quote.ID, &quote.CreatedAt, &quote.UpdatedAt)
}

// GetBookingQuote retrieves one mirror row, nil when absent.
func (s *Store) GetBookingQuote(ctx context.Context, tripID, entityID int64, productType string) (*models.TripBookingQuote, error) {
	var quote models.TripBookingQuote
	err := s.db.GetContext(ctx, &quote,
		"SELECT * FROM trip_booking_quotes WHERE trip_id = $1 AND entity_id = $2 AND product_type = $3",
		tripID, entityID, productType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetBookingQuotesByTripID retrieves every mirror row of a trip.
func (s *Store) GetBookingQuotesByTripID(ctx context.Context, tripID int64) ([]models.TripBookingQuote, error) {
	var quotes []models.TripBookingQuote
	err := s.db.SelectContext(ctx, &quotes,
		"SELECT * FROM trip_booking_quotes WHERE trip_id = $1 ORDER BY id", tripID)
	return quotes, err
}

// MarkPendingQuotesFailed moves every non-terminal mirror row of a trip
// to failed. Used when an order fails as a whole and no per-item
// references are available.
func (s *Store) MarkPendingQuotesFailed(ctx context.Context, tripID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE trip_booking_quotes SET status = $1, updated_at = NOW() WHERE trip_id = $2 AND status NOT IN ($3, $1)",
		models.QuoteStatusFailed, tripID, models.QuoteStatusConfirmed)
	return err
}

// UpdateQuoteStatusByRef updates the status of one mirrored item.
func (s *Store) UpdateQuoteStatusByRef(ctx context.Context, tripID int64, itemReference, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trip_booking_quotes SET status = $1, updated_at = NOW() WHERE trip_id = $2 AND item_reference = $3",
		status, tripID, itemReference)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no mirror row for trip %d reference %s", tripID, itemReference)
	}
	return nil
}
