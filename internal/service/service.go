package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"roxtor/backend/internal/backup"
	"roxtor/backend/internal/cache"
	"roxtor/backend/internal/cashclose"
	"roxtor/backend/internal/cloudsync"
	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/drafting"
	"roxtor/backend/internal/intake"
	"roxtor/backend/internal/media"
	"roxtor/backend/internal/notify"
	"roxtor/backend/internal/sequence"
	"roxtor/backend/internal/store"
	"roxtor/backend/internal/workflow"
)

var (
	ErrForbidden  = errors.New("admin role required")
	ErrInvalidPIN = errors.New("invalid pin")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Syncer is told about every committed change.
type Syncer interface {
	Notify()
	Status() (cloudsync.Status, *time.Time)
}

type offlineSync struct{}

func (offlineSync) Notify() {}

func (offlineSync) Status() (cloudsync.Status, *time.Time) {
	return cloudsync.StatusOffline, nil
}

type Options struct {
	DefaultStoreID string
	Location       *time.Location
	Locker         cache.OrderLocker
	Drafter        drafting.Drafter
	Notifier       notify.Notifier
	Sync           Syncer
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

type Service struct {
	repo           store.Repository
	defaultStoreID string
	location       *time.Location
	locker         cache.OrderLocker
	drafter        drafting.Drafter
	notifier       notify.Notifier
	sync           Syncer
	logger         logrus.FieldLogger
	now            func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "store_1"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Locker == nil {
		opts.Locker = cache.NewLocalLocker()
	}
	if opts.Drafter == nil {
		opts.Drafter = drafting.Disabled{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LinkNotifier{}
	}
	if opts.Sync == nil {
		opts.Sync = offlineSync{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:           repo,
		defaultStoreID: opts.DefaultStoreID,
		location:       opts.Location,
		locker:         opts.Locker,
		drafter:        opts.Drafter,
		notifier:       opts.Notifier,
		sync:           opts.Sync,
		logger:         opts.Logger.WithField("module", "service"),
		now:            opts.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) storeID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultStoreID
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// actorID names who performed a change: the authenticated user, else the
// fallback (usually the assigned agent), else system.
func actorID(ctx context.Context, fallback string) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return "system"
}

func (s *Service) changed() {
	s.sync.Notify()
}

func (s *Service) SyncStatus() domain.SyncStatusResponse {
	status, last := s.sync.Status()
	return domain.SyncStatusResponse{Status: string(status), LastSync: last}
}

func (s *Service) intakeEnv(ctx context.Context, settings domain.Settings, fallbackActor string) intake.Env {
	return intake.Env{
		Rate:     settings.BCVRate,
		Now:      s.now(),
		Location: s.location,
		ActorID:  actorID(ctx, fallbackActor),
	}
}

func (s *Service) catalog(ctx context.Context, storeID string) (intake.Catalog, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return intake.Catalog{}, err
	}
	return intake.NewCatalog(products, storeID), nil
}

func (s *Service) CreateServiceOrder(ctx context.Context, req domain.ServiceOrderRequest) (domain.Order, error) {
	req.StoreID = s.storeID(req.StoreID)
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	catalog, err := s.catalog(ctx, req.StoreID)
	if err != nil {
		return domain.Order{}, err
	}
	env := s.intakeEnv(ctx, settings, req.AssignedAgentID)

	if err := intake.ValidateServiceOrder(req, catalog, env); err != nil {
		return domain.Order{}, err
	}
	if _, err := s.repo.GetAgent(ctx, strings.TrimSpace(req.AssignedAgentID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, &intake.ValidationError{Fields: []string{"Responsable Asignado"}}
		}
		return domain.Order{}, err
	}
	images, err := media.ShrinkAll(req.ReferenceImages)
	if err != nil {
		return domain.Order{}, &intake.ValidationError{Fields: []string{"Imágenes de Referencia"}}
	}
	req.ReferenceImages = images

	order, err := s.repo.CreateOrder(ctx, req.StoreID, sequence.KindServiceOrder, func(number string, _ domain.Store) (domain.Order, error) {
		env.Number = number
		return intake.BuildServiceOrder(req, catalog, env)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"func":     "CreateServiceOrder",
		"order_id": order.ID,
		"number":   order.OrderNumber,
		"store_id": order.StoreID,
	}).Info("service order created")
	s.changed()
	return *order, nil
}

func (s *Service) CreateDirectSale(ctx context.Context, req domain.DirectSaleRequest) (domain.DirectSaleResult, error) {
	req.StoreID = s.storeID(req.StoreID)
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.DirectSaleResult{}, err
	}
	catalog, err := s.catalog(ctx, req.StoreID)
	if err != nil {
		return domain.DirectSaleResult{}, err
	}
	env := s.intakeEnv(ctx, settings, "")

	if err := intake.ValidateDirectSale(req, catalog, env); err != nil {
		return domain.DirectSaleResult{}, err
	}

	var result domain.DirectSaleResult
	order, err := s.repo.CreateOrder(ctx, req.StoreID, sequence.KindDirectSale, func(number string, _ domain.Store) (domain.Order, error) {
		env.Number = number
		built, err := intake.BuildDirectSale(req, catalog, env)
		if err != nil {
			return domain.Order{}, err
		}
		result = built
		return built.Order, nil
	})
	if err != nil {
		return domain.DirectSaleResult{}, err
	}
	result.Order = *order

	s.logger.WithFields(logrus.Fields{
		"func":     "CreateDirectSale",
		"order_id": order.ID,
		"number":   order.OrderNumber,
		"total":    order.TotalUSD.String(),
	}).Info("direct sale created")
	s.changed()
	return result, nil
}

// DraftFromText asks the drafting assistant to read a customer message. The
// returned draft is a proposal only; AcceptDraft turns it into an order.
func (s *Service) DraftFromText(ctx context.Context, req domain.DraftTextRequest) (domain.Draft, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.Draft{}, &intake.ValidationError{Fields: []string{"Texto"}}
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Draft{}, err
	}
	catalog, err := s.catalog(ctx, s.storeID(req.StoreID))
	if err != nil {
		return domain.Draft{}, err
	}

	draft, err := s.drafter.Draft(ctx, drafting.Request{
		Text:         text,
		Products:     catalog.Products(),
		Rate:         settings.BCVRate,
		BusinessName: settings.BusinessName,
		Tone:         settings.PreferredTone,
		CompanyPhone: settings.CompanyPhone,
		PagoMovil:    settings.PagoMovil,
	})
	if err != nil {
		s.logger.WithError(err).WithField("func", "DraftFromText").Warn("draft failed")
		return domain.Draft{}, err
	}
	return draft, nil
}

func (s *Service) AcceptDraft(ctx context.Context, req domain.AcceptDraftRequest) (domain.Order, error) {
	storeID := s.storeID(req.StoreID)
	catalog, err := s.catalog(ctx, storeID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := intake.ValidateDraft(req.Draft, catalog); err != nil {
		return domain.Order{}, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if !settings.BCVRate.IsPositive() && req.Draft.BCVRate.IsPositive() {
		settings.BCVRate = req.Draft.BCVRate
		if err := s.repo.SaveSettings(ctx, settings); err != nil {
			return domain.Order{}, err
		}
		s.logger.WithField("bcv_rate", settings.BCVRate.String()).Info("bcv rate adopted from draft")
	}
	env := s.intakeEnv(ctx, settings, "")

	order, err := s.repo.CreateOrder(ctx, storeID, sequence.KindServiceOrder, func(number string, _ domain.Store) (domain.Order, error) {
		env.Number = number
		return intake.BuildDraftOrder(req.Draft, storeID, catalog, env)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"func":     "AcceptDraft",
		"order_id": order.ID,
		"number":   order.OrderNumber,
	}).Info("drafted order created")
	s.changed()
	return *order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, storeID string) ([]domain.Order, error) {
	if strings.TrimSpace(storeID) == "" {
		return s.repo.ListOrders(ctx)
	}
	return s.repo.ListOrdersByStore(ctx, strings.TrimSpace(storeID))
}

// OrdersBetween lists the orders created or touched between the start of
// from's day and the end of to's day.
func (s *Service) OrdersBetween(ctx context.Context, from time.Time, to time.Time, storeID string) ([]domain.Order, error) {
	start, _ := domain.DayWindow(from, s.location)
	_, end := domain.DayWindow(to, s.location)
	if end.Before(start) {
		return nil, &intake.ValidationError{Fields: []string{"Rango de Fechas"}}
	}
	orders, err := s.repo.ListOrdersByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return orders, nil
	}
	kept := orders[:0]
	for _, o := range orders {
		if o.StoreID == storeID {
			kept = append(kept, o)
		}
	}
	return kept, nil
}

func (s *Service) ReceiveTask(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.ReceiveTask())
}

func (s *Service) CompleteTask(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.CompleteTask())
}

func (s *Service) ResetTask(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.ResetTask())
}

func (s *Service) ReceiveFromWorkshop(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.ReceiveFromWorkshop())
}

func (s *Service) FinishEntirely(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.FinishEntirely())
}

func (s *Service) MarkDelivered(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, workflow.MarkDelivered())
}

func (s *Service) TransferTask(ctx context.Context, id string, req domain.TransferRequest) (domain.Order, error) {
	agentID := strings.TrimSpace(req.AgentID)
	agentName := ""
	if agentID != "" {
		agent, err := s.repo.GetAgent(ctx, agentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Order{}, &intake.ValidationError{Fields: []string{"Agente"}}
			}
			return domain.Order{}, err
		}
		agentName = agent.Name
	}
	return s.transition(ctx, id, workflow.TransferTask(req.Stage, agentID, agentName, req.Confirmed))
}

func (s *Service) RegisterPayment(ctx context.Context, id string, req domain.PaymentRequest) (domain.Order, error) {
	method := domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.Method))))
	return s.transition(ctx, id, workflow.RegisterPayment(req.AmountUSD, method, req.Reference))
}

// AssignWorkshop delegates an order in the workshop stage. The assignment
// rules are checked before anything is sent. For sewing the production
// request is handed to the notifier before the assignment is applied, so a
// failed send leaves the order untouched.
func (s *Service) AssignWorkshop(ctx context.Context, id string, req domain.AssignWorkshopRequest) (domain.AssignWorkshopResult, error) {
	workshopID := strings.TrimSpace(req.WorkshopID)
	if workshopID == "" {
		return domain.AssignWorkshopResult{}, &intake.ValidationError{Fields: []string{"Taller"}}
	}
	workshop, err := s.repo.GetWorkshop(ctx, workshopID)
	if err != nil {
		return domain.AssignWorkshopResult{}, err
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return domain.AssignWorkshopResult{}, err
	}
	defer unlock()

	current, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.AssignWorkshopResult{}, err
	}

	var result domain.AssignWorkshopResult
	log := s.logger.WithFields(logrus.Fields{"func": "AssignWorkshop", "order_id": id, "workshop_id": workshop.ID})
	if err := workflow.CheckAssignment(*current, *workshop, req.Spec); err != nil {
		return domain.AssignWorkshopResult{}, err
	}
	if workshop.Department == domain.DepartmentSewing {
		result.SpecText = notify.SewingSpecText(*current, *req.Spec, s.now().In(s.location))
		link, err := s.notifier.Send(ctx, notify.Message{Phone: workshop.Phone, Text: result.SpecText})
		if err != nil {
			return domain.AssignWorkshopResult{}, fmt.Errorf("send production request: %w", err)
		}
		result.NotificationLink = link
	} else {
		link, err := s.notifier.Send(ctx, notify.Message{Phone: workshop.Phone, Text: notify.AvailabilityText(*workshop)})
		if err != nil {
			log.WithError(err).Warn("workshop availability message failed")
		} else {
			result.NotificationLink = link
		}
	}

	action := workflow.AssignWorkshop(*workshop, req.Spec, true)
	updated, err := s.repo.UpdateOrder(ctx, id, func(o domain.Order) (domain.Order, error) {
		return workflow.Apply(o, action, workflow.Env{ActorID: actorID(ctx, o.AssignedAgentID), Now: s.now()})
	})
	if err != nil {
		return domain.AssignWorkshopResult{}, err
	}
	result.Order = *updated

	log.WithField("task_status", updated.TaskStatus).Info("workshop assigned")
	s.changed()
	return result, nil
}

// transition applies one workflow action under the order lock.
func (s *Service) transition(ctx context.Context, id string, action workflow.Action) (domain.Order, error) {
	id = strings.TrimSpace(id)
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()

	updated, err := s.repo.UpdateOrder(ctx, id, func(o domain.Order) (domain.Order, error) {
		return workflow.Apply(o, action, workflow.Env{ActorID: actorID(ctx, o.AssignedAgentID), Now: s.now()})
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"func":        "transition",
		"order_id":    id,
		"action":      action.Kind,
		"status":      updated.Status,
		"task_status": updated.TaskStatus,
	}).Info("order updated")
	s.changed()
	return *updated, nil
}

// Board groups the undelivered orders by stage. agentID narrows it to one
// agent's orders.
func (s *Service) Board(ctx context.Context, storeID string, agentID string) ([]domain.BoardColumn, error) {
	orders, err := s.ListOrders(ctx, storeID)
	if err != nil {
		return nil, err
	}
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}

	columns := make([]domain.BoardColumn, len(domain.Stages))
	index := make(map[domain.OrderStatus]int, len(domain.Stages))
	for i, stage := range domain.Stages {
		columns[i] = domain.BoardColumn{Stage: stage, Cards: []domain.BoardCard{}}
		index[stage] = i
	}

	today := s.now().In(s.location)
	agentID = strings.TrimSpace(agentID)
	for _, o := range orders {
		if o.IsDelivered {
			continue
		}
		if agentID != "" && o.AssignedAgentID != agentID {
			continue
		}
		i, ok := index[o.Status]
		if !ok {
			continue
		}
		available := workflow.Available(o)
		actions := make([]string, 0, len(available))
		for _, kind := range available {
			actions = append(actions, string(kind))
		}
		columns[i].Cards = append(columns[i].Cards, domain.BoardCard{
			Order:    o,
			Actions:  actions,
			Urgent:   o.Status != domain.StatusCompleted && notify.IsNearDeadline(o.DeliveryDate, today),
			Assignee: names[o.AssignedAgentID],
		})
	}
	return columns, nil
}

// PendingDeliveries lists finished orders the customer has not collected.
func (s *Service) PendingDeliveries(ctx context.Context, storeID string) ([]domain.Order, error) {
	orders, err := s.ListOrders(ctx, storeID)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.StatusCompleted && !o.IsDelivered {
			pending = append(pending, o)
		}
	}
	return pending, nil
}

// CashClosing reads every order rather than a date range: an initial
// payment counts on the order's issue date, which staff may backdate.
func (s *Service) CashClosing(ctx context.Context, day time.Time, storeID string) (cashclose.Report, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID != "" {
		if _, err := s.repo.GetStore(ctx, storeID); err != nil {
			return cashclose.Report{}, err
		}
	}
	orders, err := s.ListOrders(ctx, storeID)
	if err != nil {
		return cashclose.Report{}, err
	}
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return cashclose.Report{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return cashclose.Report{}, err
	}
	return cashclose.Build(orders, stores, cashclose.Query{Date: day, StoreID: storeID, Location: s.location}, settings.BCVRate), nil
}

// CashClosingSummary is the shareable closing text of one store.
func (s *Service) CashClosingSummary(ctx context.Context, day time.Time, storeID string) (string, error) {
	storeID = s.storeID(storeID)
	report, err := s.CashClosing(ctx, day, storeID)
	if err != nil {
		return "", err
	}
	for _, summary := range report.Stores {
		if summary.StoreID == storeID {
			return cashclose.SummaryText(report, summary), nil
		}
	}
	return "", store.ErrNotFound
}

func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return s.repo.Snapshot(ctx)
}

func (s *Service) Export(ctx context.Context) (backup.Document, error) {
	if err := requireAdmin(ctx); err != nil {
		return backup.Document{}, err
	}
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return backup.Document{}, err
	}
	return backup.Export(snap, s.now()), nil
}

func (s *Service) Import(ctx context.Context, doc backup.Document, confirm bool) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	current, err := s.repo.Snapshot(ctx)
	if err != nil {
		return err
	}
	restored, err := backup.Import(ctx, s.repo, doc, current, confirm)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"func":    "Import",
		"orders":  len(restored.Orders),
		"version": doc.Version,
	}).Warn("state replaced from backup")
	s.changed()
	return nil
}
