package pricing

import (
	"strings"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
)

// Request holds everything needed to price one product.
type Request struct {
	ProductType string
	Currency    string
	PartySize   int
	Params      Params
	Reference   string
}

// Calculator prices a single product type.
type Calculator interface {
	Calculate(req Request) (models.QuoteItem, error)
}

// Engine dispatches to the calculator registered for a product type.
// Pricing is deterministic and side-effect free.
type Engine struct {
	calculators map[string]Calculator
}

// NewEngine creates an engine with the built-in product calculators.
func NewEngine() *Engine {
	return &Engine{
		calculators: map[string]Calculator{
			"hotel":      hotelCalculator{},
			"transport":  transportCalculator{},
			"attraction": attractionCalculator{},
		},
	}
}

// Price computes the quote lines for a product request.
func (e *Engine) Price(req Request) ([]models.QuoteItem, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}

	calc := e.calculators[req.ProductType]
	item, err := calc.Calculate(req)
	if err != nil {
		return nil, err
	}

	if item.Subtotal.IsNegative() || item.Fees.IsNegative() {
		return nil, bookingerr.Errf(bookingerr.Validation,
			"negative amount for product_type %s", req.ProductType)
	}

	return []models.QuoteItem{item}, nil
}

func (e *Engine) validate(req *Request) error {
	req.ProductType = strings.ToLower(strings.TrimSpace(req.ProductType))
	if _, ok := e.calculators[req.ProductType]; !ok {
		return bookingerr.Errf(bookingerr.Validation, "unsupported product_type: %s", req.ProductType)
	}
	if req.PartySize <= 0 {
		return bookingerr.Errf(bookingerr.Validation, "party_size must be positive, got %d", req.PartySize)
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if !validCurrency(req.Currency) {
		return bookingerr.Errf(bookingerr.Validation, "invalid currency code: %q", req.Currency)
	}
	if req.Params == nil {
		req.Params = Params{}
	}
	return nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
