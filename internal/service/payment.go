package service

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"booking-service/internal/bookingerr"
)

const paymentTokenPrefix = "pm_mock_"

// PaymentGateway simulates a payment processor with a deterministic
// pass/fail rule: the checksum of token and amount declines every
// DeclineEvery-th combination. Zero disables declines.
type PaymentGateway struct {
	DeclineEvery uint32
}

// NewPaymentGateway returns a gateway declining roughly 5% of charges.
func NewPaymentGateway() *PaymentGateway {
	return &PaymentGateway{DeclineEvery: 20}
}

// Charge validates the payment token and applies the decline rule.
// Returns the allocated payment identifier on success.
func (g *PaymentGateway) Charge(paymentToken string, amount decimal.Decimal) (string, error) {
	if strings.TrimSpace(paymentToken) == "" {
		return "", bookingerr.New(bookingerr.PaymentToken, "missing payment token")
	}
	if !strings.HasPrefix(paymentToken, paymentTokenPrefix) {
		return "", bookingerr.New(bookingerr.PaymentToken, "unsupported payment token")
	}

	checksum := paymentChecksum(paymentToken, amount)
	if g.DeclineEvery > 0 && checksum%g.DeclineEvery == 0 {
		return "", bookingerr.New(bookingerr.PaymentFailed, "payment authorization declined")
	}

	return fmt.Sprintf("pay_%X", checksum), nil
}

func paymentChecksum(paymentToken string, amount decimal.Decimal) uint32 {
	h := fnv.New32a()
	h.Write([]byte(paymentToken))
	h.Write([]byte(":"))
	h.Write([]byte(amount.String()))
	return h.Sum32()
}
