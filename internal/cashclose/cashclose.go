// Package cashclose reconciles the money collected per store and payment
// method for one calendar day.
package cashclose

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
)

// Query selects the day and, optionally, a single store.
type Query struct {
	Date     time.Time
	StoreID  string
	Location *time.Location
}

type MethodTotal struct {
	Method    domain.PaymentMethod `json:"method"`
	AmountUSD decimal.Decimal      `json:"amount_usd"`
}

type StoreSummary struct {
	StoreID  string          `json:"store_id"`
	Name     string          `json:"name"`
	Totals   []MethodTotal   `json:"totals"`
	TotalUSD decimal.Decimal `json:"total_usd"`
	TotalBs  decimal.Decimal `json:"total_bs"`
}

// Amount returns the bucket for method, zero when absent.
func (s StoreSummary) Amount(method domain.PaymentMethod) decimal.Decimal {
	for _, t := range s.Totals {
		if t.Method == method {
			return t.AmountUSD
		}
	}
	return decimal.Zero
}

type Report struct {
	Date     string           `json:"date"`
	StoreID  string           `json:"store_id,omitempty"`
	BCVRate  decimal.Decimal  `json:"bcv_rate"`
	Stores   []StoreSummary   `json:"stores"`
	TotalUSD *decimal.Decimal `json:"total_usd,omitempty"`
	TotalBs  *decimal.Decimal `json:"total_bs,omitempty"`
}

var (
	collectionPattern = regexp.MustCompile(`(?i)(?:Pago|Abono|Cobro)[^$]*\$([\d.]+)`)

	// Keyword precedence when a narrated collection names its method.
	methodKeywords = []struct {
		keyword string
		method  domain.PaymentMethod
	}{
		{"PAGO MOVIL", domain.PaymentMobile},
		{"TRANSFERENCIA", domain.PaymentBankTransfer},
		{"DOLARES", domain.PaymentCashUSD},
		{"EFECTIVO", domain.PaymentCashBs},
		{"PUNTO DE VENTA", domain.PaymentCardTerminal},
		{"BIOPAGO", domain.PaymentBiometric},
	}
)

// Build aggregates the collections of the query day. Rate converts the USD
// totals to bolivars at today's BCV rate.
func Build(orders []domain.Order, stores []domain.Store, q Query, rate decimal.Decimal) Report {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	day := domain.FormatDay(q.Date.In(loc))
	from, to := domain.DayWindow(q.Date, loc)

	report := Report{Date: day, StoreID: q.StoreID, BCVRate: rate}
	globalUSD := decimal.Zero
	globalBs := decimal.Zero

	for _, st := range stores {
		if q.StoreID != "" && st.ID != q.StoreID {
			continue
		}
		buckets := newBuckets()
		for _, order := range orders {
			if order.StoreID != st.ID {
				continue
			}
			if len(order.Payments) > 0 {
				creditLedger(buckets, order, day, from, to)
			} else {
				creditNarration(buckets, order, day, from, to)
			}
		}

		summary := StoreSummary{StoreID: st.ID, Name: st.Name, TotalUSD: decimal.Zero}
		for _, method := range domain.PaymentMethods {
			summary.Totals = append(summary.Totals, MethodTotal{Method: method, AmountUSD: buckets[method]})
			summary.TotalUSD = summary.TotalUSD.Add(buckets[method])
		}
		summary.TotalBs = summary.TotalUSD.Mul(rate).Round(2)
		report.Stores = append(report.Stores, summary)

		globalUSD = globalUSD.Add(summary.TotalUSD)
		globalBs = globalBs.Add(summary.TotalBs)
	}

	if q.StoreID == "" {
		report.TotalUSD = &globalUSD
		report.TotalBs = &globalBs
	}
	return report
}

func newBuckets() map[domain.PaymentMethod]decimal.Decimal {
	buckets := make(map[domain.PaymentMethod]decimal.Decimal, len(domain.PaymentMethods))
	for _, method := range domain.PaymentMethods {
		buckets[method] = decimal.Zero
	}
	return buckets
}

func credit(buckets map[domain.PaymentMethod]decimal.Decimal, method domain.PaymentMethod, amount decimal.Decimal) {
	current, ok := buckets[method]
	if !ok || !amount.IsPositive() {
		return
	}
	buckets[method] = current.Add(amount)
}

// creditLedger counts the initial abono on the issue day and each later
// collection on the day it happened. Abono the ledger does not account for
// was taken before the ledger existed and counts as initial.
func creditLedger(buckets map[domain.PaymentMethod]decimal.Decimal, order domain.Order, day string, from, to time.Time) {
	recorded := decimal.Zero
	hasInitial := false
	for _, event := range order.Payments {
		recorded = recorded.Add(event.AmountUSD)
		if event.Initial {
			hasInitial = true
			if order.IssueDate == day {
				credit(buckets, event.Method, event.AmountUSD)
			}
			continue
		}
		if !event.At.Before(from) && !event.At.After(to) {
			credit(buckets, event.Method, event.AmountUSD)
		}
	}
	if !hasInitial && order.IssueDate == day {
		credit(buckets, order.LegacyPaymentMethod(), order.AbonoUSD.Sub(recorded))
	}
}

// creditNarration handles records that predate the ledger by reading the
// amounts back out of the history text.
func creditNarration(buckets map[domain.PaymentMethod]decimal.Decimal, order domain.Order, day string, from, to time.Time) {
	fallback := order.LegacyPaymentMethod()
	if order.IssueDate == day {
		credit(buckets, fallback, order.AbonoUSD)
	}

	for _, entry := range order.History {
		if entry.Timestamp.Before(from) || entry.Timestamp.After(to) {
			continue
		}
		if strings.Contains(entry.Action, domain.CreationMarker) {
			continue
		}
		match := collectionPattern.FindStringSubmatch(entry.Action)
		if match == nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimRight(match[1], "."))
		if err != nil {
			continue
		}
		credit(buckets, narratedMethod(entry.Action, fallback), amount)
	}
}

func narratedMethod(action string, fallback domain.PaymentMethod) domain.PaymentMethod {
	for _, kw := range methodKeywords {
		if strings.Contains(action, kw.keyword) {
			return kw.method
		}
	}
	return fallback
}
