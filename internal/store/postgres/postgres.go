package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/sequence"
	"roxtor/backend/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the schema and seeds an empty database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var stores int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM stores`).Scan(&stores); err != nil {
		return err
	}
	if stores > 0 {
		return nil
	}
	return s.Restore(ctx, store.Seed())
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	return listStores(ctx, s.db)
}

func listStores(ctx context.Context, q queryer) ([]domain.Store, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, location, prefix, next_order_number, next_direct_sale_number
		FROM stores
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0, 4)
	for rows.Next() {
		var st domain.Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Location, &st.Prefix, &st.NextOrderNumber, &st.NextDirectSaleNumber); err != nil {
			return nil, err
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (s *Store) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	var st domain.Store
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, prefix, next_order_number, next_direct_sale_number
		FROM stores
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Location, &st.Prefix, &st.NextOrderNumber, &st.NextDirectSaleNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) SaveStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	if st.ID == "" || st.Prefix == "" {
		return nil, fmt.Errorf("%w: store id and prefix are required", store.ErrInvalid)
	}
	// Counters only move through order creation, so an existing row keeps its own.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stores (id, position, name, location, prefix, next_order_number, next_direct_sale_number)
		VALUES ($1, (SELECT coalesce(max(position), 0) + 1 FROM stores), $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location, prefix = EXCLUDED.prefix
		RETURNING next_order_number, next_direct_sale_number
	`, st.ID, st.Name, st.Location, st.Prefix, st.NextOrderNumber, st.NextDirectSaleNumber).
		Scan(&st.NextOrderNumber, &st.NextDirectSaleNumber)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// upsertStore writes every column, counters included. Only Restore uses it.
func upsertStore(ctx context.Context, q queryer, st domain.Store, position int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO stores (id, position, name, location, prefix, next_order_number, next_direct_sale_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position, name = EXCLUDED.name, location = EXCLUDED.location, prefix = EXCLUDED.prefix,
			next_order_number = EXCLUDED.next_order_number,
			next_direct_sale_number = EXCLUDED.next_direct_sale_number
	`, st.ID, position, st.Name, st.Location, st.Prefix, st.NextOrderNumber, st.NextDirectSaleNumber)
	return err
}

const productColumns = `id, store_id, name, price_retail, price_wholesale, material, description,
	additional_considerations, image_url, stock, category`

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var p domain.Product
	err := scan(&p.ID, &p.StoreID, &p.Name, &p.PriceRetail, &p.PriceWholesale, &p.Material, &p.Description,
		&p.AdditionalConsiderations, &p.ImageURL, &p.Stock, &p.Category)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return listProducts(ctx, s.db)
}

func listProducts(ctx context.Context, q queryer) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := insertProduct(ctx, s.db, product); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %s exists", store.ErrConflict, product.ID)
		}
		return nil, err
	}
	return &product, nil
}

func insertProduct(ctx context.Context, q queryer, p domain.Product) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.StoreID, p.Name, p.PriceRetail, p.PriceWholesale, p.Material, p.Description,
		p.AdditionalConsiderations, p.ImageURL, p.Stock, p.Category)
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET store_id = $2, name = $3, price_retail = $4, price_wholesale = $5, material = $6,
			description = $7, additional_considerations = $8, image_url = $9, stock = $10, category = $11
		WHERE id = $1
	`, p.ID, p.StoreID, p.Name, p.PriceRetail, p.PriceWholesale, p.Material, p.Description,
		p.AdditionalConsiderations, p.ImageURL, p.Stock, p.Category)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	return listAgents(ctx, s.db)
}

func listAgents(ctx context.Context, q queryer) ([]domain.Agent, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, role, store_id, specialty, phone FROM agents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0, 16)
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.StoreID, &a.Specialty, &a.Phone); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var a domain.Agent
	err := s.db.QueryRowContext(ctx, `SELECT id, name, role, store_id, specialty, phone FROM agents WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Role, &a.StoreID, &a.Specialty, &a.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	if err := insertAgent(ctx, s.db, agent); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: agent %s exists", store.ErrConflict, agent.ID)
		}
		return nil, err
	}
	return &agent, nil
}

func insertAgent(ctx context.Context, q queryer, a domain.Agent) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO agents (id, name, role, store_id, specialty, phone)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.Name, a.Role, a.StoreID, a.Specialty, a.Phone)
	return err
}

func (s *Store) ListWorkshops(ctx context.Context) ([]domain.Workshop, error) {
	return listWorkshops(ctx, s.db)
}

func listWorkshops(ctx context.Context, q queryer) ([]domain.Workshop, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, department, custom_department, phone, store_id FROM workshops ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workshops := make([]domain.Workshop, 0, 16)
	for rows.Next() {
		var w domain.Workshop
		if err := rows.Scan(&w.ID, &w.Name, &w.Department, &w.CustomDepartment, &w.Phone, &w.StoreID); err != nil {
			return nil, err
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

func (s *Store) GetWorkshop(ctx context.Context, id string) (*domain.Workshop, error) {
	var w domain.Workshop
	err := s.db.QueryRowContext(ctx, `SELECT id, name, department, custom_department, phone, store_id FROM workshops WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Department, &w.CustomDepartment, &w.Phone, &w.StoreID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *Store) CreateWorkshop(ctx context.Context, workshop domain.Workshop) (*domain.Workshop, error) {
	if err := insertWorkshop(ctx, s.db, workshop); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: workshop %s exists", store.ErrConflict, workshop.ID)
		}
		return nil, err
	}
	return &workshop, nil
}

func insertWorkshop(ctx context.Context, q queryer, w domain.Workshop) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO workshops (id, name, department, custom_department, phone, store_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, w.ID, w.Name, w.Department, w.CustomDepartment, w.Phone, w.StoreID)
	return err
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	return getSettings(ctx, s.db)
}

func getSettings(ctx context.Context, q queryer) (domain.Settings, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT document FROM settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	var settings domain.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	return saveSettings(ctx, s.db, settings)
}

func saveSettings(ctx context.Context, q queryer, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO settings (id, document) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`, raw)
	return err
}

// CreateOrder locks the store row, reserves the number and inserts the order
// in one serializable transaction.
func (s *Store) CreateOrder(ctx context.Context, storeID string, kind sequence.Kind, build store.BuildFunc) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var st domain.Store
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, location, prefix, next_order_number, next_direct_sale_number
		FROM stores
		WHERE id = $1
		FOR UPDATE
	`, storeID).Scan(&st.ID, &st.Name, &st.Location, &st.Prefix, &st.NextOrderNumber, &st.NextDirectSaleNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapTxError(err)
	}

	number := sequence.Reserve(&st, kind)
	order, err := build(number, st)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = number
	order.StoreID = storeID
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order without id", store.ErrInvalidOrder)
	}

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, mapTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE stores SET next_order_number = $2, next_direct_sale_number = $3 WHERE id = $1
	`, st.ID, st.NextOrderNumber, st.NextDirectSaleNumber); err != nil {
		return nil, mapTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	return &order, nil
}

func insertOrder(ctx context.Context, q queryer, o domain.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, store_id, status, task_status, created_at, updated_at, document)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, o.ID, o.OrderNumber, o.StoreID, o.Status, o.TaskStatus, o.CreatedAt, updatedAt(o), raw)
	return err
}

func updatedAt(o domain.Order) time.Time {
	if o.UpdatedAt.IsZero() {
		return o.CreatedAt
	}
	return o.UpdatedAt
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, s.db, `SELECT document FROM orders WHERE id = $1`, id)
}

func getOrder(ctx context.Context, q queryer, query string, id string) (*domain.Order, error) {
	var raw []byte
	if err := q.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, id string, mutate store.MutateFunc) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getOrder(ctx, tx, `SELECT document FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	next, err := mutate(*current)
	if err != nil {
		return nil, err
	}
	next.ID = id

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, task_status = $3, updated_at = $4, document = $5
		WHERE id = $1
	`, id, next.Status, next.TaskStatus, updatedAt(next), raw); err != nil {
		return nil, mapTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	return &next, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return listOrders(ctx, s.db, `SELECT document FROM orders ORDER BY created_at, order_number`)
}

func (s *Store) ListOrdersByStore(ctx context.Context, storeID string) ([]domain.Order, error) {
	return listOrders(ctx, s.db, `SELECT document FROM orders WHERE store_id = $1 ORDER BY created_at, order_number`, storeID)
}

// ListOrdersByDateRange returns orders created in [from, to] or with history
// activity in it. Activity implies updated_at >= from, which keeps the JSONB
// scan on the recent rows.
func (s *Store) ListOrdersByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	return listOrders(ctx, s.db, `
		SELECT document
		FROM orders
		WHERE created_at BETWEEN $1 AND $2
			OR (updated_at >= $1 AND EXISTS (
				SELECT 1
				FROM jsonb_array_elements(document->'history') AS h
				WHERE (h->>'timestamp')::timestamptz BETWEEN $1 AND $2
			))
		ORDER BY created_at, order_number
	`, from, to)
}

func listOrders(ctx context.Context, q queryer, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var snap domain.Snapshot
	if snap.Stores, err = listStores(ctx, tx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Products, err = listProducts(ctx, tx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Agents, err = listAgents(ctx, tx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Workshops, err = listWorkshops(ctx, tx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Orders, err = listOrders(ctx, tx, `SELECT document FROM orders ORDER BY created_at, order_number`); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Settings, err = getSettings(ctx, tx); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, tx.Commit()
}

// Restore replaces every table's content in one transaction.
func (s *Store) Restore(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"orders", "products", "agents", "workshops", "stores", "settings"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	for i, st := range snap.Stores {
		if err := upsertStore(ctx, tx, st, i); err != nil {
			return err
		}
	}
	for _, p := range snap.Products {
		if err := insertProduct(ctx, tx, p); err != nil {
			return mapTxError(err)
		}
	}
	for _, a := range snap.Agents {
		if err := insertAgent(ctx, tx, a); err != nil {
			return mapTxError(err)
		}
	}
	for _, w := range snap.Workshops {
		if err := insertWorkshop(ctx, tx, w); err != nil {
			return mapTxError(err)
		}
	}
	for _, o := range snap.Orders {
		if err := insertOrder(ctx, tx, o); err != nil {
			return mapTxError(err)
		}
	}
	if err := saveSettings(ctx, tx, snap.Settings); err != nil {
		return err
	}
	return mapTxError(tx.Commit())
}

func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) || isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
