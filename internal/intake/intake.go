// Package intake turns raw service-order, direct-sale and drafted input into
// well-formed orders. Nothing here touches storage; callers reserve the order
// number and persist the result atomically.
package intake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/pricing"
	"roxtor/backend/internal/store"
)

// ValidationError lists every missing or invalid field of a rejected input.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == store.ErrInvalidOrder
}

// Env carries what construction needs from the outside world.
type Env struct {
	Number   string
	Rate     decimal.Decimal
	Now      time.Time
	Location *time.Location
	ActorID  string
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e Env) today() string {
	return domain.FormatDay(e.Now.In(e.location()))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// requiredFields reports the labels of every field failing its validate tag,
// in declaration order.
func requiredFields(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// Catalog indexes the products visible to one store.
type Catalog struct {
	byID    map[string]domain.Product
	ordered []domain.Product
}

func NewCatalog(products []domain.Product, storeID string) Catalog {
	c := Catalog{byID: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		if !p.VisibleIn(storeID) {
			continue
		}
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
	}
	return c
}

func (c Catalog) Lookup(id string) (domain.Product, bool) {
	p, ok := c.byID[strings.TrimSpace(id)]
	return p, ok
}

// FindByName matches case-insensitively, preferring exact names over
// containment either way.
func (c Catalog) FindByName(name string) (domain.Product, bool) {
	target := strings.ToUpper(strings.TrimSpace(name))
	if target == "" {
		return domain.Product{}, false
	}
	for _, p := range c.ordered {
		if strings.ToUpper(strings.TrimSpace(p.Name)) == target {
			return p, true
		}
	}
	for _, p := range c.ordered {
		candidate := strings.ToUpper(strings.TrimSpace(p.Name))
		if candidate == "" {
			continue
		}
		if strings.Contains(target, candidate) || strings.Contains(candidate, target) {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (c Catalog) Products() []domain.Product {
	return append([]domain.Product(nil), c.ordered...)
}

func priceItems(inputs []domain.OrderItemInput, catalog Catalog) ([]domain.OrderItem, []string) {
	var cart pricing.Cart
	var invalid []string
	for i, in := range inputs {
		label := itemLabel(i, in)
		if in.Quantity < 1 {
			invalid = append(invalid, fmt.Sprintf("Cantidad (%s)", label))
			continue
		}
		if product, ok := catalog.Lookup(in.ProductID); ok {
			if err := cart.Add(product, in.Quantity); err != nil {
				invalid = append(invalid, fmt.Sprintf("Precio (%s)", label))
			}
			continue
		}
		if strings.TrimSpace(in.Name) == "" {
			invalid = append(invalid, fmt.Sprintf("Nombre (%s)", label))
			continue
		}
		if !in.UnitPriceUSD.IsPositive() {
			invalid = append(invalid, fmt.Sprintf("Precio (%s)", label))
			continue
		}
		if _, err := cart.AddManual(in.Name, in.Quantity, in.UnitPriceUSD); err != nil {
			invalid = append(invalid, fmt.Sprintf("Precio (%s)", label))
		}
	}
	return cart.Items(), invalid
}

func itemLabel(i int, in domain.OrderItemInput) string {
	if name := strings.TrimSpace(in.Name); name != "" {
		return strings.ToUpper(name)
	}
	if id := strings.TrimSpace(in.ProductID); id != "" {
		return id
	}
	return fmt.Sprintf("línea %d", i+1)
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+58" + phone
}

func paymentMethodOrDefault(method domain.PaymentMethod, fallback domain.PaymentMethod) domain.PaymentMethod {
	method = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(method))))
	if method == "" {
		return fallback
	}
	return method
}

func bolivars(usd decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return usd.Mul(rate).Round(2)
}
