package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/xid"
)

// WholesaleThreshold is the line quantity from which wholesale pricing applies.
const WholesaleThreshold = 12

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrUnknownLine     = errors.New("line not in cart")
)

// UnitPrice applies the wholesale break for a line of qty units.
func UnitPrice(product domain.Product, qty int) decimal.Decimal {
	if qty >= WholesaleThreshold && product.PriceWholesale.IsPositive() {
		return product.PriceWholesale
	}
	return product.PriceRetail
}

// Total sums quantity times unit price across items.
func Total(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type line struct {
	item    domain.OrderItem
	product *domain.Product
}

// Cart accumulates order lines and keeps catalog lines repriced as their
// quantity changes.
type Cart struct {
	lines []line
}

func (c *Cart) Add(product domain.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if product.PriceRetail.IsNegative() || product.PriceWholesale.IsNegative() {
		return ErrNegativePrice
	}
	if idx := c.index(product.ID); idx >= 0 {
		return c.SetQuantity(product.ID, c.lines[idx].item.Quantity+qty)
	}
	p := product
	c.lines = append(c.lines, line{
		item: domain.OrderItem{
			ProductID:    product.ID,
			Name:         strings.ToUpper(strings.TrimSpace(product.Name)),
			Quantity:     qty,
			UnitPriceUSD: UnitPrice(product, qty),
		},
		product: &p,
	})
	return nil
}

// AddManual appends an ad hoc line with a fixed price and returns its
// synthetic product id.
func (c *Cart) AddManual(name string, qty int, price decimal.Decimal) (string, error) {
	if qty < 1 {
		return "", ErrInvalidQuantity
	}
	if price.IsNegative() {
		return "", ErrNegativePrice
	}
	id := xid.New("manual")
	c.lines = append(c.lines, line{item: domain.OrderItem{
		ProductID:    id,
		Name:         strings.ToUpper(strings.TrimSpace(name)),
		Quantity:     qty,
		UnitPriceUSD: price,
	}})
	return id, nil
}

// SetQuantity changes a line's quantity and reprices it. A quantity below 1
// removes the line.
func (c *Cart) SetQuantity(productID string, qty int) error {
	idx := c.index(productID)
	if idx < 0 {
		return ErrUnknownLine
	}
	if qty < 1 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	}
	l := &c.lines[idx]
	l.item.Quantity = qty
	if l.product != nil {
		l.item.UnitPriceUSD = UnitPrice(*l.product, qty)
	}
	return nil
}

func (c *Cart) Items() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, l.item)
	}
	return items
}

func (c *Cart) Total() decimal.Decimal {
	return Total(c.Items())
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) index(productID string) int {
	for i, l := range c.lines {
		if l.item.ProductID == productID {
			return i
		}
	}
	return -1
}
