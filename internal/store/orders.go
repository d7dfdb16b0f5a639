package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"booking-service/internal/models"
	"booking-service/internal/service"
)

// pq unique violation
const uniqueViolation = "23505"

// InsertIfAbsentByKey atomically creates an order row. The unique
// constraint on idempotency_key is the mutual-exclusion gate between
// concurrent duplicate confirms; constraint dispatch tells an
// idempotency conflict apart from a voucher/invoice collision.
func (s *Store) InsertIfAbsentByKey(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, itinerary_id, product_type, currency, amount, fees, status,
			voucher_code, invoice_id, payment_id, idempotency_key,
			quote_token_hash, request_fingerprint, quote_claims_json, selection_refs
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		order.ID, order.ItineraryID, order.ProductType, order.Currency,
		order.Amount, order.Fees, order.Status,
		order.VoucherCode, order.InvoiceID, order.PaymentID, order.IdempotencyKey,
		order.QuoteTokenHash, order.RequestFingerprint, order.QuoteClaimsJSON, order.SelectionRefs,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch {
		case strings.Contains(pqErr.Constraint, "idempotency_key"):
			return service.ErrIdempotencyConflict
		case strings.Contains(pqErr.Constraint, "voucher_code"),
			strings.Contains(pqErr.Constraint, "invoice_id"):
			return service.ErrReferenceConflict
		}
	}
	return fmt.Errorf("failed to insert order: %w", err)
}

// FindByKey retrieves an order by idempotency key, nil when absent.
func (s *Store) FindByKey(ctx context.Context, idempotencyKey string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE idempotency_key = $1", idempotencyKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderOutcome moves an order to a terminal status.
func (s *Store) UpdateOrderOutcome(ctx context.Context, orderID, status, paymentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_id = $2, updated_at = NOW() WHERE id = $3",
		status, paymentID, orderID)
	return err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByItineraryID retrieves every order confirmed against an itinerary.
func (s *Store) GetOrdersByItineraryID(ctx context.Context, itineraryID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE itinerary_id = $1 ORDER BY created_at DESC", itineraryID)
	return orders, err
}
