// Package notify composes outbound staff messages and the click-to-chat links
// that deliver them.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"roxtor/backend/internal/domain"
)

// CountryCode is prepended to local numbers.
const CountryCode = "58"

// DeadlineDays is how close a delivery date has to be to flag an order urgent.
const DeadlineDays = 3

// Link builds a wa.me click-to-chat URL. An empty phone yields a link that
// lets the sender pick the recipient.
func Link(phone string, text string) string {
	digits := digitsOnly(phone)
	if digits != "" && !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}
	return "https://wa.me/" + digits + "?text=" + escape(text)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escape percent-encodes a query value with spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// IsNearDeadline reports whether delivery (dd/mm/yyyy) is at most
// DeadlineDays away from today, overdue included. Unparseable dates are never
// urgent.
func IsNearDeadline(delivery string, today time.Time) bool {
	if strings.TrimSpace(delivery) == "" {
		return false
	}
	loc := today.Location()
	due, err := domain.ParseDay(delivery, loc)
	if err != nil {
		return false
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	return !due.After(start.AddDate(0, 0, DeadlineDays))
}

// SewingSpecText is the production request sent to a sewing workshop.
func SewingSpecText(order domain.Order, spec domain.SewingSpec, today time.Time) string {
	urgent := ""
	if IsNearDeadline(order.DeliveryDate, today) {
		urgent = "⚠️ ¡URGENTE!"
	}

	var b strings.Builder
	b.WriteString("*SOLICITUD DE PRODUCCIÓN - ROXTOR* 🧵\n\n")
	fmt.Fprintf(&b, "📌 *ORDEN:* %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "📅 *ENTREGA:* %s %s\n\n", order.DeliveryDate, urgent)
	b.WriteString("📦 *ESPECIFICACIONES:* \n")
	fmt.Fprintf(&b, "• Producto: %s\n", strings.ToUpper(spec.ProductName))
	fmt.Fprintf(&b, "• Cantidad Total: %d\n", spec.TotalQuantity())
	b.WriteString("• Desglose por Género:\n")
	for _, g := range spec.Genders {
		fmt.Fprintf(&b, "• %d %s\n", g.Quantity, g.Gender)
	}
	fmt.Fprintf(&b, "• Tela: %s\n", strings.ToUpper(spec.Fabric))
	fmt.Fprintf(&b, "• Color: %s\n", strings.ToUpper(spec.Color))
	fmt.Fprintf(&b, "• Tallas: %s\n", strings.ToUpper(spec.Sizes))
	if notes := strings.TrimSpace(spec.Notes); notes != "" {
		fmt.Fprintf(&b, "• Notas: %s\n\n", strings.ToUpper(notes))
	} else {
		b.WriteString("\n")
	}
	b.WriteString("Favor confirmar recepción del material. ¡Gracias! 🙏")
	return b.String()
}

// AvailabilityText is the first-contact message to a workshop.
func AvailabilityText(workshop domain.Workshop) string {
	return fmt.Sprintf("Hola %s, te escribimos desde ROXTOR para consultar disponibilidad operativo.", workshop.Name)
}

type Message struct {
	Phone string
	Text  string
}

// Notifier delivers a message and returns a handle for it (a link, a
// provider message id).
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LinkNotifier does not send anything itself; the returned click-to-chat link
// is opened by staff.
type LinkNotifier struct{}

func (LinkNotifier) Send(_ context.Context, msg Message) (string, error) {
	return Link(msg.Phone, msg.Text), nil
}
