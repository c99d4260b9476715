package store

import (
	"context"
	"errors"
	"time"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/sequence"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid record")
)

// BuildFunc turns a reserved order number into the order to persist. An error
// aborts creation and leaves the store counter untouched.
type BuildFunc func(number string, store domain.Store) (domain.Order, error)

// MutateFunc receives the current order and returns its replacement. An error
// leaves the stored order untouched.
type MutateFunc func(current domain.Order) (domain.Order, error)

type Repository interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	SaveStore(ctx context.Context, store domain.Store) (*domain.Store, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListAgents(ctx context.Context) ([]domain.Agent, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	CreateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error)

	ListWorkshops(ctx context.Context) ([]domain.Workshop, error)
	GetWorkshop(ctx context.Context, id string) (*domain.Workshop, error)
	CreateWorkshop(ctx context.Context, workshop domain.Workshop) (*domain.Workshop, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error

	CreateOrder(ctx context.Context, storeID string, kind sequence.Kind, build BuildFunc) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, id string, mutate MutateFunc) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByStore(ctx context.Context, storeID string) ([]domain.Order, error)
	ListOrdersByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error)

	Snapshot(ctx context.Context) (domain.Snapshot, error)
	Restore(ctx context.Context, snapshot domain.Snapshot) error
}
