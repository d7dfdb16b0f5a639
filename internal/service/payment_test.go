package service

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/bookingerr"
)

func TestChargeRejectsBlankToken(t *testing.T) {
	gw := NewPaymentGateway()

	_, err := gw.Charge("   ", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Equal(t, bookingerr.PaymentToken, bookingerr.KindOf(err))
}

func TestChargeRejectsUnknownPrefix(t *testing.T) {
	gw := NewPaymentGateway()

	_, err := gw.Charge("tok_visa", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Equal(t, bookingerr.PaymentToken, bookingerr.KindOf(err))
}

func TestChargeDeterministicOutcome(t *testing.T) {
	gw := NewPaymentGateway()

	first, err1 := gw.Charge("pm_mock_abc", decimal.NewFromInt(420))
	second, err2 := gw.Charge("pm_mock_abc", decimal.NewFromInt(420))

	assert.Equal(t, first, second)
	assert.Equal(t, err1, err2)
}

func TestChargeDeclineEveryOne(t *testing.T) {
	gw := &PaymentGateway{DeclineEvery: 1}

	_, err := gw.Charge("pm_mock_abc", decimal.NewFromInt(420))
	require.Error(t, err)
	assert.Equal(t, bookingerr.PaymentFailed, bookingerr.KindOf(err))
}

func TestChargeDeclinesDisabled(t *testing.T) {
	gw := &PaymentGateway{DeclineEvery: 0}

	paymentID, err := gw.Charge("pm_mock_abc", decimal.NewFromInt(420))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(paymentID, "pay_"))
}

func TestChargeAmountChangesOutcomeSpace(t *testing.T) {
	gw := &PaymentGateway{DeclineEvery: 0}

	a, err := gw.Charge("pm_mock_abc", decimal.NewFromInt(100))
	require.NoError(t, err)
	b, err := gw.Charge("pm_mock_abc", decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
