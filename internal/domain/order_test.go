package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPaymentClampsRestante(t *testing.T) {
	order := Order{TotalUSD: decimal.NewFromInt(100), AbonoUSD: decimal.NewFromInt(30)}
	order.Rebalance()
	require.True(t, order.RestanteUSD.Equal(decimal.NewFromInt(70)))

	order.ApplyPayment(PaymentEvent{AmountUSD: decimal.NewFromInt(80), Method: PaymentMobile, Reference: "8812"})

	assert.True(t, order.AbonoUSD.Equal(decimal.NewFromInt(110)))
	assert.True(t, order.RestanteUSD.IsZero())
	assert.Equal(t, PaymentMobile, order.PaymentMethod)
	assert.Equal(t, "8812", order.PaymentReference)
	require.Len(t, order.Payments, 2)
	assert.True(t, order.Payments[0].Initial, "abono taken before the ledger")
	assert.True(t, order.Payments[0].AmountUSD.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, PaymentCashBs, order.Payments[0].Method)
	assert.False(t, order.Payments[1].Initial)
}

func TestApplyPaymentSeedsLedgerOnce(t *testing.T) {
	order := Order{TotalUSD: decimal.NewFromInt(100), AbonoUSD: decimal.NewFromInt(50), PaymentMethod: PaymentCashUSD}

	order.ApplyPayment(PaymentEvent{AmountUSD: decimal.NewFromInt(10), Method: PaymentMobile})
	order.ApplyPayment(PaymentEvent{AmountUSD: decimal.NewFromInt(5), Method: PaymentMobile})

	require.Len(t, order.Payments, 3)
	assert.Equal(t, PaymentCashUSD, order.Payments[0].Method)
	assert.True(t, order.AbonoUSD.Equal(decimal.NewFromInt(65)))

	fresh := Order{TotalUSD: decimal.NewFromInt(100)}
	fresh.ApplyPayment(PaymentEvent{AmountUSD: decimal.NewFromInt(10), Method: PaymentMobile})
	assert.Len(t, fresh.Payments, 1)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	order := Order{Items: []OrderItem{{Name: "GORRA", Quantity: 2}}}
	order.Record(time.Now(), "", "creada")

	cloned := order.Clone()
	cloned.Items[0].Quantity = 9
	cloned.Record(time.Now(), "a1", "otra")

	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Len(t, order.History, 1)
	assert.Equal(t, "system", order.History[0].ActorID)
}

func TestQuantityForFallsBackToFirstItem(t *testing.T) {
	order := Order{Items: []OrderItem{{Name: "FRANELA", Quantity: 24}, {Name: "GORRA", Quantity: 5}}}

	assert.Equal(t, 5, order.QuantityFor("gorra"))
	assert.Equal(t, 24, order.QuantityFor("CHAQUETA"))
}

func TestDayWindowCoversWholeDay(t *testing.T) {
	loc := time.FixedZone("VET", -4*3600)
	start, end := DayWindow(time.Date(2026, 3, 9, 15, 0, 0, 0, loc), loc)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Second())

	day, err := ParseDay("09/03/2026", loc)
	require.NoError(t, err)
	assert.Equal(t, "09/03/2026", FormatDay(day))
}
