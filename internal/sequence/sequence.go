package sequence

import (
	"fmt"

	"roxtor/backend/internal/domain"
)

type Kind string

const (
	KindServiceOrder Kind = "service_order"
	KindDirectSale   Kind = "direct_sale"
)

const DirectSalePrefix = "NE"

// Peek formats the number the next Reserve call would hand out.
func Peek(store domain.Store, kind Kind) string {
	switch kind {
	case KindDirectSale:
		return format(DirectSalePrefix, floor(store.NextDirectSaleNumber))
	default:
		return format(store.Prefix, floor(store.NextOrderNumber))
	}
}

// Reserve is the only mutator of a store's counters. Callers must persist the
// advanced store in the same transaction as the order using the number.
func Reserve(store *domain.Store, kind Kind) string {
	number := Peek(*store, kind)
	switch kind {
	case KindDirectSale:
		store.NextDirectSaleNumber = floor(store.NextDirectSaleNumber) + 1
	default:
		store.NextOrderNumber = floor(store.NextOrderNumber) + 1
	}
	return number
}

func format(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

func floor(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
