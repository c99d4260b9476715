package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roxtor/backend/internal/domain"
)

func TestReserveAdvancesOnlyTheRequestedCounter(t *testing.T) {
	store := domain.Store{ID: "store_1", Prefix: "P", NextOrderNumber: 1, NextDirectSaleNumber: 7}

	assert.Equal(t, "P-0001", Reserve(&store, KindServiceOrder))
	assert.Equal(t, "P-0002", Reserve(&store, KindServiceOrder))
	assert.Equal(t, "NE-0007", Reserve(&store, KindDirectSale))

	assert.Equal(t, 3, store.NextOrderNumber)
	assert.Equal(t, 8, store.NextDirectSaleNumber)
}

func TestPeekDoesNotMutate(t *testing.T) {
	store := domain.Store{Prefix: "C", NextOrderNumber: 42}

	assert.Equal(t, "C-0042", Peek(store, KindServiceOrder))
	assert.Equal(t, 42, store.NextOrderNumber)
}

func TestZeroCounterStartsAtOne(t *testing.T) {
	store := domain.Store{Prefix: "P"}

	assert.Equal(t, "NE-0001", Reserve(&store, KindDirectSale))
	assert.Equal(t, 2, store.NextDirectSaleNumber)
}
