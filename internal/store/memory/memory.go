package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/sequence"
	"roxtor/backend/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	stores     map[string]domain.Store
	storeOrder []string
	products   map[string]domain.Product
	agents     map[string]domain.Agent
	workshops  map[string]domain.Workshop
	orders     map[string]domain.Order
	settings   domain.Settings
}

func New() *Store {
	return &Store{
		stores:    make(map[string]domain.Store),
		products:  make(map[string]domain.Product),
		agents:    make(map[string]domain.Agent),
		workshops: make(map[string]domain.Workshop),
		orders:    make(map[string]domain.Order),
	}
}

func NewSeeded() *Store {
	s := New()
	s.load(store.Seed())
	return s
}

func (s *Store) load(snap domain.Snapshot) {
	snap = snap.Clone()
	s.stores = make(map[string]domain.Store, len(snap.Stores))
	s.storeOrder = s.storeOrder[:0]
	for _, st := range snap.Stores {
		if _, dup := s.stores[st.ID]; !dup {
			s.storeOrder = append(s.storeOrder, st.ID)
		}
		s.stores[st.ID] = st
	}
	s.products = make(map[string]domain.Product, len(snap.Products))
	for _, p := range snap.Products {
		s.products[p.ID] = p
	}
	s.agents = make(map[string]domain.Agent, len(snap.Agents))
	for _, a := range snap.Agents {
		s.agents[a.ID] = a
	}
	s.workshops = make(map[string]domain.Workshop, len(snap.Workshops))
	for _, w := range snap.Workshops {
		s.workshops[w.ID] = w
	}
	s.orders = make(map[string]domain.Order, len(snap.Orders))
	for _, o := range snap.Orders {
		s.orders[o.ID] = o
	}
	s.settings = snap.Settings
}

func (s *Store) ListStores(_ context.Context) ([]domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stores := make([]domain.Store, 0, len(s.storeOrder))
	for _, id := range s.storeOrder {
		stores = append(stores, s.stores[id])
	}
	return stores, nil
}

func (s *Store) GetStore(_ context.Context, id string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.stores[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) SaveStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(st.ID) == "" || strings.TrimSpace(st.Prefix) == "" {
		return nil, fmt.Errorf("%w: store id and prefix are required", store.ErrInvalid)
	}
	if existing, exists := s.stores[st.ID]; exists {
		// Counters only move through order creation.
		st.NextOrderNumber = existing.NextOrderNumber
		st.NextDirectSaleNumber = existing.NextDirectSaleNumber
	} else {
		s.storeOrder = append(s.storeOrder, st.ID)
	}
	s.stores[st.ID] = st
	return &st, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("%w: product %s exists", store.ErrConflict, product.ID)
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) ListAgents(_ context.Context) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]domain.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	slices.SortFunc(agents, func(a, b domain.Agent) int {
		return strings.Compare(a.ID, b.ID)
	})
	return agents, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.agents[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) CreateAgent(_ context.Context, agent domain.Agent) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; exists {
		return nil, fmt.Errorf("%w: agent %s exists", store.ErrConflict, agent.ID)
	}
	s.agents[agent.ID] = agent
	return &agent, nil
}

func (s *Store) ListWorkshops(_ context.Context) ([]domain.Workshop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workshops := make([]domain.Workshop, 0, len(s.workshops))
	for _, w := range s.workshops {
		workshops = append(workshops, w)
	}
	slices.SortFunc(workshops, func(a, b domain.Workshop) int {
		return strings.Compare(a.ID, b.ID)
	})
	return workshops, nil
}

func (s *Store) GetWorkshop(_ context.Context, id string) (*domain.Workshop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.workshops[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (s *Store) CreateWorkshop(_ context.Context, workshop domain.Workshop) (*domain.Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workshops[workshop.ID]; exists {
		return nil, fmt.Errorf("%w: workshop %s exists", store.ErrConflict, workshop.ID)
	}
	s.workshops[workshop.ID] = workshop
	return &workshop, nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return nil
}

// CreateOrder reserves the next number and stores the built order under one
// write lock, so numbers are never reused and a failed build consumes none.
func (s *Store) CreateOrder(_ context.Context, storeID string, kind sequence.Kind, build store.BuildFunc) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.stores[storeID]
	if !exists {
		return nil, store.ErrNotFound
	}
	next := st
	number := sequence.Reserve(&next, kind)

	order, err := build(number, next)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = number
	order.StoreID = storeID
	if _, dup := s.orders[order.ID]; dup || order.ID == "" {
		return nil, fmt.Errorf("%w: order id %q", store.ErrConflict, order.ID)
	}

	s.stores[storeID] = next
	s.orders[order.ID] = order.Clone()
	return &order, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := o.Clone()
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, mutate store.MutateFunc) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	next, err := mutate(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id
	s.orders[id] = next.Clone()
	return &next, nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	return s.filterOrders(func(domain.Order) bool { return true }), nil
}

func (s *Store) ListOrdersByStore(_ context.Context, storeID string) ([]domain.Order, error) {
	return s.filterOrders(func(o domain.Order) bool { return o.StoreID == storeID }), nil
}

func (s *Store) ListOrdersByDateRange(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	return s.filterOrders(func(o domain.Order) bool { return o.TouchedBetween(from, to) }), nil
}

func (s *Store) filterOrders(keep func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			orders = append(orders, o.Clone())
		}
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.OrderNumber, b.OrderNumber)
	})
	return orders
}

func (s *Store) Snapshot(_ context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{Settings: s.settings}
	for _, id := range s.storeOrder {
		snap.Stores = append(snap.Stores, s.stores[id])
	}
	for _, p := range s.products {
		snap.Products = append(snap.Products, p)
	}
	for _, a := range s.agents {
		snap.Agents = append(snap.Agents, a)
	}
	for _, w := range s.workshops {
		snap.Workshops = append(snap.Workshops, w)
	}
	for _, o := range s.orders {
		snap.Orders = append(snap.Orders, o)
	}
	slices.SortFunc(snap.Products, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Agents, func(a, b domain.Agent) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Workshops, func(a, b domain.Workshop) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Orders, func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return snap.Clone(), nil
}

func (s *Store) Restore(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(snap)
	return nil
}
