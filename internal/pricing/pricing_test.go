package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/domain"
)

var franela = domain.Product{
	ID:             "p1",
	Name:           "Franela Microdurazno",
	PriceRetail:    decimal.NewFromInt(8),
	PriceWholesale: decimal.RequireFromString("5.5"),
}

func TestWholesaleBreakAppliesRetroactivelyAtTwelve(t *testing.T) {
	var cart Cart
	for i := 1; i <= 11; i++ {
		require.NoError(t, cart.Add(franela, 1))
		assert.True(t, cart.Items()[0].UnitPriceUSD.Equal(decimal.NewFromInt(8)), "unit %d", i)
	}

	require.NoError(t, cart.Add(franela, 1))

	items := cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 12, items[0].Quantity)
	assert.True(t, items[0].UnitPriceUSD.Equal(decimal.RequireFromString("5.5")))
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(66)))
}

func TestSetQuantityRepricesBothWays(t *testing.T) {
	var cart Cart
	require.NoError(t, cart.Add(franela, 15))
	assert.True(t, cart.Items()[0].UnitPriceUSD.Equal(decimal.RequireFromString("5.5")))

	require.NoError(t, cart.SetQuantity("p1", 3))
	assert.True(t, cart.Items()[0].UnitPriceUSD.Equal(decimal.NewFromInt(8)))

	require.NoError(t, cart.SetQuantity("p1", 0))
	assert.Equal(t, 0, cart.Len())
	assert.ErrorIs(t, cart.SetQuantity("p1", 2), ErrUnknownLine)
}

func TestZeroWholesaleKeepsRetail(t *testing.T) {
	service := domain.Product{ID: "p3", Name: "Servicio", PriceRetail: decimal.NewFromInt(5)}

	assert.True(t, UnitPrice(service, 40).Equal(decimal.NewFromInt(5)))
}

func TestManualLinesKeepTheirPrice(t *testing.T) {
	var cart Cart
	id, err := cart.AddManual("parche tejido", 20, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.NoError(t, cart.SetQuantity(id, 30))

	assert.True(t, cart.Items()[0].UnitPriceUSD.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "PARCHE TEJIDO", cart.Items()[0].Name)

	_, err = cart.AddManual("x", 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = cart.AddManual("x", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNegativePrice)
}
