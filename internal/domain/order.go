package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DayLayout = "02/01/2006"

func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, strings.TrimSpace(value), loc)
}

// DayWindow returns the first and last instant of t's calendar day in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}

// Rebalance derives restante from total and abono. Every change to AbonoUSD
// or TotalUSD goes through here.
func (o *Order) Rebalance() {
	rest := o.TotalUSD.Sub(o.AbonoUSD)
	if rest.IsNegative() {
		rest = decimal.Zero
	}
	o.RestanteUSD = rest
}

// ApplyPayment credits a collection event, keeps the latest method and
// reference on the order and records the event in the ledger. An order that
// predates the ledger first gets its existing abono recorded as the initial
// event, under the method it was taken with.
func (o *Order) ApplyPayment(event PaymentEvent) {
	if len(o.Payments) == 0 && !event.Initial && o.AbonoUSD.IsPositive() {
		o.Payments = append(o.Payments, PaymentEvent{
			At:        o.CreatedAt,
			AmountUSD: o.AbonoUSD,
			Method:    o.LegacyPaymentMethod(),
			Reference: o.PaymentReference,
			Initial:   true,
		})
	}
	o.AbonoUSD = o.AbonoUSD.Add(event.AmountUSD)
	o.PaymentMethod = event.Method
	o.PaymentReference = event.Reference
	o.Payments = append(o.Payments, event)
	o.Rebalance()
}

// LegacyPaymentMethod is the method of an abono taken without a ledger
// event. Records with no method were collected in bolivar cash.
func (o Order) LegacyPaymentMethod() PaymentMethod {
	if o.PaymentMethod == "" {
		return PaymentCashBs
	}
	return o.PaymentMethod
}

// Record appends one history entry stamped with the current stage.
func (o *Order) Record(at time.Time, actorID string, action string) {
	if actorID == "" {
		actorID = "system"
	}
	o.History = append(o.History, HistoryEntry{
		Timestamp: at,
		ActorID:   actorID,
		Action:    action,
		Status:    o.Status,
	})
	o.UpdatedAt = at
}

// QuantityFor returns the quantity of the line named name, falling back to
// the first line when no name matches.
func (o Order) QuantityFor(name string) int {
	target := strings.TrimSpace(name)
	for _, item := range o.Items {
		if strings.EqualFold(strings.TrimSpace(item.Name), target) {
			return item.Quantity
		}
	}
	if len(o.Items) > 0 {
		return o.Items[0].Quantity
	}
	return 0
}

// TouchedBetween reports whether the order was created or had history
// activity inside [from, to].
func (o Order) TouchedBetween(from time.Time, to time.Time) bool {
	if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
		return true
	}
	for _, entry := range o.History {
		if !entry.Timestamp.Before(from) && !entry.Timestamp.After(to) {
			return true
		}
	}
	return false
}

func (o Order) Clone() Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	out.History = append([]HistoryEntry(nil), o.History...)
	if o.Payments != nil {
		out.Payments = append([]PaymentEvent(nil), o.Payments...)
	}
	if o.ReferenceImages != nil {
		out.ReferenceImages = append([]string(nil), o.ReferenceImages...)
	}
	return out
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Products:  append([]Product(nil), s.Products...),
		Agents:    append([]Agent(nil), s.Agents...),
		Workshops: append([]Workshop(nil), s.Workshops...),
		Stores:    append([]Store(nil), s.Stores...),
		Settings:  s.Settings,
		Orders:    make([]Order, 0, len(s.Orders)),
	}
	if s.Settings.PagoMovil != nil {
		pm := *s.Settings.PagoMovil
		out.Settings.PagoMovil = &pm
	}
	for _, order := range s.Orders {
		out.Orders = append(out.Orders, order.Clone())
	}
	return out
}
