package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"booking-service/internal/service"
)

// BookingClient is the outbound surface of the booking API as the
// orchestrator sees it.
type BookingClient interface {
	Quote(ctx context.Context, req *service.QuoteRequest) (*service.QuoteResponse, []byte, error)
	QuoteItinerary(ctx context.Context, req *service.ItineraryQuoteRequest) (*service.ItineraryQuoteResponse, []byte, error)
	Confirm(ctx context.Context, req *service.ConfirmRequest, idempotencyKey string) (*service.ConfirmResponse, []byte, error)
}

// apiError is the wire error envelope of the booking API.
type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// HTTPBookingClient calls the booking API over HTTP. The raw response
// body is returned alongside the decoded result so the mirror can
// persist it verbatim.
type HTTPBookingClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBookingClient creates a booking client for the given base URL.
func NewHTTPBookingClient(baseURL string) *HTTPBookingClient {
	return &HTTPBookingClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote posts a single-product quote request.
func (c *HTTPBookingClient) Quote(ctx context.Context, req *service.QuoteRequest) (*service.QuoteResponse, []byte, error) {
	var resp service.QuoteResponse
	raw, err := c.post(ctx, "/api/booking/quote", "", req, &resp)
	if err != nil {
		return nil, raw, err
	}
	return &resp, raw, nil
}

// QuoteItinerary posts a bundled quote request.
func (c *HTTPBookingClient) QuoteItinerary(ctx context.Context, req *service.ItineraryQuoteRequest) (*service.ItineraryQuoteResponse, []byte, error) {
	var resp service.ItineraryQuoteResponse
	raw, err := c.post(ctx, "/api/booking/itinerary/quote", "", req, &resp)
	if err != nil {
		return nil, raw, err
	}
	return &resp, raw, nil
}

// Confirm posts a confirm request under the given idempotency key.
func (c *HTTPBookingClient) Confirm(ctx context.Context, req *service.ConfirmRequest, idempotencyKey string) (*service.ConfirmResponse, []byte, error) {
	var resp service.ConfirmResponse
	raw, err := c.post(ctx, "/api/booking/confirm", idempotencyKey, req, &resp)
	if err != nil {
		return nil, raw, err
	}
	return &resp, raw, nil
}

func (c *HTTPBookingClient) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("booking api call failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		var wireErr apiError
		if json.Unmarshal(raw, &wireErr) == nil && wireErr.ErrorCode != "" {
			return raw, fmt.Errorf("booking api %s: %s (%s)", path, wireErr.Message, wireErr.ErrorCode)
		}
		return raw, fmt.Errorf("booking api %s: status %d", path, httpResp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return raw, fmt.Errorf("failed to decode response: %w", err)
	}
	return raw, nil
}
