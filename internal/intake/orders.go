package intake

import (
	"strings"

	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/pricing"
	"roxtor/backend/internal/xid"
)

// DraftDeliveryDays is how far out a drafted order's delivery date is set.
const DraftDeliveryDays = 7

type serviceOrder struct {
	req       domain.ServiceOrderRequest
	items     []domain.OrderItem
	issueDate string
}

// ValidateServiceOrder checks a service order without building it, so a
// rejected submission never reaches number reservation.
func ValidateServiceOrder(req domain.ServiceOrderRequest, catalog Catalog, env Env) error {
	_, err := checkServiceOrder(req, catalog, env)
	return err
}

func checkServiceOrder(req domain.ServiceOrderRequest, catalog Catalog, env Env) (serviceOrder, error) {
	req.CustomerName = strings.ToUpper(strings.TrimSpace(req.CustomerName))
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.DeliveryDate = strings.TrimSpace(req.DeliveryDate)
	req.AssignedAgentID = strings.TrimSpace(req.AssignedAgentID)
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	req.PaymentMethod = paymentMethodOrDefault(req.PaymentMethod, domain.DefaultPaymentMethod)
	if req.InitialStatus == "" {
		req.InitialStatus = domain.StatusPending
	}

	fields := requiredFields(req)
	items, invalid := priceItems(req.Items, catalog)
	fields = append(fields, invalid...)

	loc := env.location()
	if req.DeliveryDate != "" {
		if _, err := domain.ParseDay(req.DeliveryDate, loc); err != nil {
			fields = append(fields, "Fecha Estimada de Entrega")
		}
	}
	issueDate := strings.TrimSpace(req.IssueDate)
	if issueDate == "" {
		issueDate = env.today()
	} else if _, err := domain.ParseDay(issueDate, loc); err != nil {
		fields = append(fields, "Fecha de Emisión")
	}
	if !req.InitialStatus.Valid() || req.InitialStatus == domain.StatusCompleted {
		fields = append(fields, "Departamento Inicial")
	}
	if !req.PaymentMethod.Valid() {
		fields = append(fields, "Método de Pago")
	}
	if req.AbonoUSD.IsNegative() {
		fields = append(fields, "Abono")
	}

	if len(fields) > 0 {
		return serviceOrder{}, &ValidationError{Fields: dedupe(fields)}
	}
	return serviceOrder{req: req, items: items, issueDate: issueDate}, nil
}

// BuildServiceOrder validates req and returns the new order numbered
// env.Number.
func BuildServiceOrder(req domain.ServiceOrderRequest, catalog Catalog, env Env) (domain.Order, error) {
	checked, err := checkServiceOrder(req, catalog, env)
	if err != nil {
		return domain.Order{}, err
	}
	r := checked.req
	total := pricing.Total(checked.items)

	order := domain.Order{
		ID:               xid.New("ord"),
		OrderNumber:      env.Number,
		StoreID:          r.StoreID,
		CustomerName:     r.CustomerName,
		CustomerID:       r.CustomerID,
		CustomerPhone:    normalizePhone(r.CustomerPhone),
		Items:            checked.items,
		TotalUSD:         total,
		TotalBs:          bolivars(total, env.Rate),
		Status:           r.InitialStatus,
		TaskStatus:       domain.TaskWaiting,
		BCVRate:          env.Rate,
		IssueDate:        checked.issueDate,
		DeliveryDate:     r.DeliveryDate,
		TechnicalDetails: strings.ToUpper(strings.TrimSpace(r.TechnicalDetails)),
		ReferenceImages:  r.ReferenceImages,
		AssignedAgentID:  r.AssignedAgentID,
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		CreatedAt:        env.Now,
	}
	if r.AbonoUSD.IsPositive() {
		order.ApplyPayment(domain.PaymentEvent{
			At:        env.Now,
			AmountUSD: r.AbonoUSD,
			Method:    r.PaymentMethod,
			Reference: r.PaymentReference,
			Initial:   true,
		})
	}
	order.Rebalance()
	order.Record(env.Now, env.ActorID, domain.NarrateCreated(order.Status, order.AbonoUSD, order.PaymentReference))
	return order, nil
}

type directSale struct {
	req       domain.DirectSaleRequest
	items     []domain.OrderItem
	issueDate string
}

func ValidateDirectSale(req domain.DirectSaleRequest, catalog Catalog, env Env) error {
	_, err := checkDirectSale(req, catalog, env)
	return err
}

func checkDirectSale(req domain.DirectSaleRequest, catalog Catalog, env Env) (directSale, error) {
	req.CustomerName = strings.ToUpper(strings.TrimSpace(req.CustomerName))
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	req.PaymentMethod = paymentMethodOrDefault(req.PaymentMethod, domain.PaymentCashBs)

	fields := requiredFields(req)
	items, invalid := priceItems(req.Items, catalog)
	fields = append(fields, invalid...)

	issueDate := strings.TrimSpace(req.IssueDate)
	if issueDate == "" {
		issueDate = env.today()
	} else if _, err := domain.ParseDay(issueDate, env.location()); err != nil {
		fields = append(fields, "Fecha de Emisión")
	}
	if !req.PaymentMethod.Valid() {
		fields = append(fields, "Método de Pago")
	}
	if req.ReceivedUSD.IsNegative() || req.ReceivedBs.IsNegative() {
		fields = append(fields, "Monto Percibido")
	}

	if len(fields) > 0 {
		return directSale{}, &ValidationError{Fields: dedupe(fields)}
	}
	return directSale{req: req, items: items, issueDate: issueDate}, nil
}

// BuildDirectSale returns a completed sale together with the amount perceived
// and the change owed to the customer.
func BuildDirectSale(req domain.DirectSaleRequest, catalog Catalog, env Env) (domain.DirectSaleResult, error) {
	checked, err := checkDirectSale(req, catalog, env)
	if err != nil {
		return domain.DirectSaleResult{}, err
	}
	r := checked.req
	total := pricing.Total(checked.items)

	perceived := r.ReceivedUSD
	if env.Rate.IsPositive() {
		perceived = perceived.Add(r.ReceivedBs.Div(env.Rate))
	}
	perceived = perceived.Round(2)
	change := perceived.Sub(total)
	if change.IsNegative() {
		change = decimal.Zero
	}
	abono := decimal.Min(total, perceived)

	order := domain.Order{
		ID:               xid.New("ord"),
		OrderNumber:      env.Number,
		StoreID:          r.StoreID,
		CustomerName:     r.CustomerName,
		CustomerID:       r.CustomerID,
		CustomerPhone:    normalizePhone(r.CustomerPhone),
		Items:            checked.items,
		TotalUSD:         total,
		TotalBs:          bolivars(total, env.Rate),
		Status:           domain.StatusCompleted,
		TaskStatus:       domain.TaskDone,
		BCVRate:          env.Rate,
		IssueDate:        checked.issueDate,
		DeliveryDate:     checked.issueDate,
		TechnicalDetails: domain.DirectSaleTechnicalDetails,
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		IsDirectSale:     true,
		CreatedAt:        env.Now,
	}
	if abono.IsPositive() {
		order.ApplyPayment(domain.PaymentEvent{
			At:        env.Now,
			AmountUSD: abono,
			Method:    r.PaymentMethod,
			Reference: r.PaymentReference,
			Initial:   true,
		})
	}
	order.Rebalance()
	order.Record(env.Now, env.ActorID, domain.NarrateDirectSale(perceived, change, r.PaymentReference))

	return domain.DirectSaleResult{Order: order, PerceivedUSD: perceived, ChangeUSD: change}, nil
}

// ValidateDraft reports whether a draft yields at least one usable line.
func ValidateDraft(draft domain.Draft, catalog Catalog) error {
	if len(draftItems(draft, catalog)) == 0 {
		return &ValidationError{Fields: []string{"Lista de Productos"}}
	}
	return nil
}

// BuildDraftOrder normalizes an untrusted draft into a pending service order.
// Prices come from the catalog or the per-unit draft subtotal; the draft's
// own totals are ignored.
func BuildDraftOrder(draft domain.Draft, storeID string, catalog Catalog, env Env) (domain.Order, error) {
	items := draftItems(draft, catalog)
	if len(items) == 0 {
		return domain.Order{}, &ValidationError{Fields: []string{"Lista de Productos"}}
	}
	total := pricing.Total(items)

	name := strings.ToUpper(strings.TrimSpace(draft.CustomerName))
	if name == "" || name == "CLIENTE" {
		name = "CLIENTE RADAR"
	}
	local := env.Now.In(env.location())

	order := domain.Order{
		ID:               xid.New("ord"),
		OrderNumber:      env.Number,
		StoreID:          storeID,
		CustomerName:     name,
		Items:            items,
		TotalUSD:         total,
		TotalBs:          bolivars(total, env.Rate),
		Status:           domain.StatusPending,
		TaskStatus:       domain.TaskWaiting,
		BCVRate:          env.Rate,
		IssueDate:        domain.FormatDay(local),
		DeliveryDate:     domain.FormatDay(local.AddDate(0, 0, DraftDeliveryDays)),
		TechnicalDetails: domain.DraftTechnicalDetails,
		PaymentMethod:    domain.DefaultPaymentMethod,
		CreatedAt:        env.Now,
	}
	order.Rebalance()
	order.Record(env.Now, env.ActorID, domain.NarrationDraftCreated)
	return order, nil
}

func draftItems(draft domain.Draft, catalog Catalog) []domain.OrderItem {
	var cart pricing.Cart
	for _, item := range draft.ItemsDetected {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Qty < 1 || item.SubtotalUSD.IsNegative() {
			continue
		}
		if product, ok := catalog.FindByName(name); ok {
			if err := cart.Add(product, item.Qty); err == nil {
				continue
			}
		}
		unit := item.SubtotalUSD.Div(decimal.NewFromInt(int64(item.Qty))).Round(2)
		_, _ = cart.AddManual(name, item.Qty, unit)
	}
	return cart.Items()
}

func dedupe(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
