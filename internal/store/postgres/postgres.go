package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/store"
	"habibeat/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = 30
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// NUMERIC columns scan into shopspring decimals.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	return &Store{pool: pool}, nil
}

// EnsureSchema creates missing tables. Existing tables are left as they are.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, unit, unit_price
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.UnitPrice); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, unit, unit_price
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Unit, &p.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, unit, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, product.ID, product.Name, product.Unit, product.UnitPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validProduct(product); err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, unit = $3, unit_price = $4, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Unit, product.UnitPrice)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

// DeleteProduct removes the product from the master list. daily_entries has no
// foreign key on products so history survives.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func validProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.Unit) == "" || product.UnitPrice.IsNegative() {
		return store.ErrInvalidInput
	}
	return nil
}

const entryColumns = `product_id, section, day, month, year, opening_stock, stock_in, stock_out, description, last_modified_by, last_modified_at`

func (s *Store) ListEntries(ctx context.Context, period domain.Period) ([]domain.StockEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE year = $1 AND month = $2
		ORDER BY day, section, product_id
	`, period)
}

func (s *Store) ListEntriesByDayDesc(ctx context.Context, period domain.Period) ([]domain.StockEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE year = $1 AND month = $2
		ORDER BY day DESC, section, product_id
	`, period)
}

func (s *Store) queryEntries(ctx context.Context, query string, period domain.Period) ([]domain.StockEntry, error) {
	rows, err := s.pool.Query(ctx, query, period.Year, int(period.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 128)
	for rows.Next() {
		var (
			e       domain.StockEntry
			section string
			day     int16
			month   int16
		)
		if err := rows.Scan(
			&e.ProductID, &section, &day, &month, &e.Year,
			&e.OpeningStock, &e.StockIn, &e.StockOut,
			&e.Description, &e.LastModifiedBy, &e.LastModifiedAt,
		); err != nil {
			return nil, err
		}
		e.Section = domain.Section(section)
		e.Day = int(day)
		e.Month = time.Month(month)
		e.LastModifiedAt = e.LastModifiedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertEntry writes the full row. An existing row is only replaced when it was not
// modified after the incoming one. A skipped update affects no rows.
func (s *Store) UpsertEntry(ctx context.Context, entry domain.StockEntry) (bool, error) {
	if entry.ProductID == "" || entry.Day < 1 || entry.Day > 31 || !entry.Period().Valid() {
		return false, store.ErrInvalidInput
	}
	if entry.Section == "" {
		entry.Section = domain.SectionGudang
	}
	if _, err := domain.ParseSection(string(entry.Section)); err != nil {
		return false, store.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO daily_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (product_id, day, section, month, year)
		DO UPDATE SET
			opening_stock = EXCLUDED.opening_stock,
			stock_in = EXCLUDED.stock_in,
			stock_out = EXCLUDED.stock_out,
			description = EXCLUDED.description,
			last_modified_by = EXCLUDED.last_modified_by,
			last_modified_at = EXCLUDED.last_modified_at
		WHERE daily_entries.last_modified_at <= EXCLUDED.last_modified_at
	`,
		entry.ProductID, string(entry.Section), entry.Day, int(entry.Month), entry.Year,
		entry.OpeningStock, entry.StockIn, entry.StockOut,
		entry.Description, entry.LastModifiedBy, entry.LastModifiedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_users (id, username, name, password, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, now())
	`, user.ID, user.Username, user.Name, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, name, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var user domain.UserAccount
	err := s.pool.QueryRow(ctx, `
		UPDATE app_users
		SET active = $2, updated_at = now()
		WHERE username = $1
		RETURNING id, username, name, password, role, active, created_at
	`, username, active).Scan(&user.ID, &user.Username, &user.Name, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	tag, err := s.pool.Exec(ctx, `DELETE FROM app_users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
