// Package drafting turns a customer's free-text request into a structured
// order draft and a suggested sales reply.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"roxtor/backend/internal/cache"
	"roxtor/backend/internal/domain"
)

// ErrUnavailable means the draft could not be produced right now. The input
// is untouched and the call can be retried.
var ErrUnavailable = errors.New("drafting service unavailable")

type Request struct {
	Text         string
	Products     []domain.Product
	Rate         decimal.Decimal
	BusinessName string
	Tone         string
	CompanyPhone string
	PagoMovil    *domain.PagoMovil
}

type Drafter interface {
	Draft(ctx context.Context, req Request) (domain.Draft, error)
}

// Disabled is used when no model is configured.
type Disabled struct{}

func (Disabled) Draft(context.Context, Request) (domain.Draft, error) {
	return domain.Draft{}, fmt.Errorf("%w: no model configured", ErrUnavailable)
}

// Cached reuses drafts for identical requests.
type Cached struct {
	Next   Drafter
	Cache  cache.DraftCache
	TTL    time.Duration
	Logger logrus.FieldLogger
}

func (c Cached) Draft(ctx context.Context, req Request) (domain.Draft, error) {
	key := requestKey(req)
	if hit, ok, err := c.Cache.Get(ctx, key); err != nil {
		c.logger().WithError(err).Warn("draft cache get failed")
	} else if ok && hit != nil {
		return *hit, nil
	}

	draft, err := c.Next.Draft(ctx, req)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := c.Cache.Set(ctx, key, &draft, c.TTL); err != nil {
		c.logger().WithError(err).Warn("draft cache set failed")
	}
	return draft, nil
}

func (c Cached) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger.WithField("module", "drafting")
}

func requestKey(req Request) string {
	ids := make([]string, 0, len(req.Products))
	for _, p := range req.Products {
		ids = append(ids, p.ID+"="+p.PriceRetail.String()+"/"+p.PriceWholesale.String())
	}
	sort.Strings(ids)
	return cache.DraftKey(strings.TrimSpace(req.Text), req.Rate.String(), req.Tone, strings.Join(ids, ","))
}

// Prompt is the instruction sent to the model.
func Prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres el asistente de ventas de %s, una empresa de confección y personalización textil.\n", req.BusinessName)
	if req.CompanyPhone != "" {
		fmt.Fprintf(&b, "Teléfono de contacto: %s\n", req.CompanyPhone)
	}
	b.WriteString("\nCatálogo disponible (precio detal / precio mayor en USD):\n")
	for _, p := range req.Products {
		fmt.Fprintf(&b, "- %s: detal %s / mayor %s\n", p.Name, p.PriceRetail.StringFixed(2), p.PriceWholesale.StringFixed(2))
	}
	if pm := req.PagoMovil; pm != nil {
		fmt.Fprintf(&b, "\nDatos de Pago Móvil: Banco %s, Cédula/RIF %s, Teléfono %s\n", pm.Bank, pm.IDNumber, pm.Phone)
	} else {
		b.WriteString("\nDatos de Pago Móvil: no registrados.\n")
	}
	b.WriteString("\nReglas de negocio:\n")
	b.WriteString("1. Todo trabajo requiere un abono mínimo del 50% para ser procesado.\n")
	b.WriteString("2. No se hacen devoluciones de dinero.\n")
	b.WriteString("\nReglas de precio:\n")
	b.WriteString("1. Identifica los productos solicitados y sus cantidades.\n")
	b.WriteString("2. Con 12 unidades o más usa el precio mayor; con menos usa el precio detal.\n")
	if req.Rate.IsPositive() {
		fmt.Fprintf(&b, "3. Tasa BCV: %s. Devuélvela en bcv_rate.\n", req.Rate.String())
	} else {
		b.WriteString("3. No hay tasa BCV registrada; si conoces la tasa oficial de hoy devuélvela en bcv_rate, si no usa 0.\n")
	}
	tone := req.Tone
	if tone == "" {
		tone = "amigable"
	}
	fmt.Fprintf(&b, "4. Redacta una respuesta de cierre de venta en tono %s. Incluye siempre los datos de Pago Móvil y recuerda el abono del 50%%.\n", tone)
	b.WriteString("5. Si el cliente no da su nombre usa \"Cliente\".\n")
	fmt.Fprintf(&b, "\nMensaje del cliente:\n%s\n", strings.TrimSpace(req.Text))
	return b.String()
}

// payload is the wire shape the model fills. Amounts are plain numbers.
type payload struct {
	BCVRate        float64       `json:"bcv_rate"`
	ItemsDetected  []payloadItem `json:"items_detected"`
	TotalUSD       float64       `json:"total_usd"`
	TotalBs        float64       `json:"total_bs"`
	SuggestedReply string        `json:"suggested_reply"`
	CustomerName   string        `json:"customer_name"`
}

type payloadItem struct {
	Name        string  `json:"name"`
	Qty         int     `json:"qty"`
	SubtotalUSD float64 `json:"subtotal_usd"`
}

func (p payload) toDraft() domain.Draft {
	draft := domain.Draft{
		BCVRate:        decimal.NewFromFloat(p.BCVRate),
		TotalUSD:       decimal.NewFromFloat(p.TotalUSD),
		TotalBs:        decimal.NewFromFloat(p.TotalBs),
		SuggestedReply: strings.TrimSpace(p.SuggestedReply),
		CustomerName:   strings.TrimSpace(p.CustomerName),
	}
	for _, item := range p.ItemsDetected {
		draft.ItemsDetected = append(draft.ItemsDetected, domain.DraftItem{
			Name:        strings.TrimSpace(item.Name),
			Qty:         item.Qty,
			SubtotalUSD: decimal.NewFromFloat(item.SubtotalUSD),
		})
	}
	return draft
}
