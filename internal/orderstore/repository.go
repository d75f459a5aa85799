// Package orderstore persists orders and their append-only action logs.
//
// The billing subsystem creates orders; this store owns only the
// provisioning fields the orchestrator mutates, plus the order_logs
// table, which is written once per action attempt and never updated or
// deleted.
package orderstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sulphurninja/oceanlinux-sub002/internal/database"
	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// Repository defines the persistence interface for orders.
type Repository interface {
	// Create inserts a new order. An empty ID is assigned.
	Create(ctx context.Context, o *domain.Order) error

	// Get retrieves an order by id; domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// Save persists the order's mutable provisioning fields.
	Save(ctx context.Context, o *domain.Order) error

	// ListActive returns orders whose provisioning status is active,
	// for the state-sync pass.
	ListActive(ctx context.Context) ([]domain.Order, error)

	// AppendLog writes one append-only action-history entry.
	AppendLog(ctx context.Context, entry *domain.OrderLog) error

	// Logs returns an order's action history, oldest first.
	Logs(ctx context.Context, orderID string) ([]domain.OrderLog, error)

	// Close releases database resources.
	Close() error
}

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenAt creates or opens the order repository at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orderstore: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already-open database, running migrations. Used
// when several repositories share one database handle.
func NewWithDB(db *sql.DB) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS orders (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT    NOT NULL DEFAULT '',
			product_name         TEXT    NOT NULL DEFAULT '',
			product_type         TEXT    NOT NULL DEFAULT '',
			provider             TEXT    NOT NULL DEFAULT '',
			memory_mb            INTEGER NOT NULL DEFAULT 0,
			paid                 INTEGER NOT NULL DEFAULT 0,
			provisioning_status  TEXT    NOT NULL DEFAULT 'pending',
			provisioning_error   TEXT    NOT NULL DEFAULT '',
			auto_provisioned     INTEGER NOT NULL DEFAULT 0,
			ip_address           TEXT    NOT NULL DEFAULT '',
			hostname             TEXT    NOT NULL DEFAULT '',
			username             TEXT    NOT NULL DEFAULT '',
			password             TEXT    NOT NULL DEFAULT '',
			hostycare_service_id TEXT    NOT NULL DEFAULT '',
			raw_details          TEXT    NOT NULL DEFAULT '',
			created_at           TEXT    NOT NULL,
			updated_at           TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(provisioning_status);
		CREATE TABLE IF NOT EXISTS order_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id    TEXT    NOT NULL REFERENCES orders(id),
			action      TEXT    NOT NULL,
			success     INTEGER NOT NULL,
			details     TEXT    NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			timestamp   TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_order_logs_order ON order_logs(order_id);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("orderstore: migration failed: %w", err)
	}
	return nil
}

// Create inserts a new order record.
func (r *SQLiteRepository) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.ProvisioningStatus == "" {
		o.ProvisioningStatus = domain.StatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, product_name, product_type, provider, memory_mb, paid,
			provisioning_status, provisioning_error, auto_provisioned, ip_address, hostname,
			username, password, hostycare_service_id, raw_details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.ProductName, o.ProductType, o.Provider, o.MemoryMB, boolInt(o.Paid),
		string(o.ProvisioningStatus), o.ProvisioningError, boolInt(o.AutoProvisioned),
		o.IPAddress, o.Hostname, o.Username, o.Password, o.HostycareServiceID,
		marshalRaw(o.RawDetails), o.CreatedAt.Format(time.RFC3339Nano), o.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("orderstore: insert failed: %w", err)
	}
	return nil
}

// Save persists the provisioning fields the orchestrator owns.
func (r *SQLiteRepository) Save(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET provisioning_status = ?, provisioning_error = ?, auto_provisioned = ?,
			ip_address = ?, hostname = ?, username = ?, password = ?, hostycare_service_id = ?,
			raw_details = ?, updated_at = ?
		WHERE id = ?`,
		string(o.ProvisioningStatus), o.ProvisioningError, boolInt(o.AutoProvisioned),
		o.IPAddress, o.Hostname, o.Username, o.Password, o.HostycareServiceID,
		marshalRaw(o.RawDetails), o.UpdatedAt.Format(time.RFC3339Nano), o.ID,
	)
	if err != nil {
		return fmt.Errorf("orderstore: update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("orderstore: update failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("orderstore: order %s: %w", o.ID, domain.ErrNotFound)
	}
	return nil
}

// Get retrieves an order by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("orderstore: order %s: %w", id, domain.ErrNotFound)
	}
	return o, err
}

// ListActive returns all orders currently marked active.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` WHERE provisioning_status = ? ORDER BY created_at`,
		string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// AppendLog writes one action-history entry. There is deliberately no
// update or delete for order_logs.
func (r *SQLiteRepository) AppendLog(ctx context.Context, entry *domain.OrderLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO order_logs (order_id, action, success, details, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OrderID, entry.Action, boolInt(entry.Success), entry.Details,
		entry.DurationMs, entry.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("orderstore: log insert failed: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// Logs returns an order's action history, oldest first.
func (r *SQLiteRepository) Logs(ctx context.Context, orderID string) ([]domain.OrderLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, action, success, details, duration_ms, timestamp
		FROM order_logs WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orderstore: log query failed: %w", err)
	}
	defer rows.Close()

	var logs []domain.OrderLog
	for rows.Next() {
		var entry domain.OrderLog
		var success int
		var ts string
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Action, &success,
			&entry.Details, &entry.DurationMs, &ts); err != nil {
			return nil, fmt.Errorf("orderstore: log scan failed: %w", err)
		}
		entry.Success = success != 0
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const selectOrder = `
	SELECT id, user_id, product_name, product_type, provider, memory_mb, paid,
		provisioning_status, provisioning_error, auto_provisioned, ip_address, hostname,
		username, password, hostycare_service_id, raw_details, created_at, updated_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var paid, auto int
	var status, raw, created, updated string

	err := row.Scan(&o.ID, &o.UserID, &o.ProductName, &o.ProductType, &o.Provider, &o.MemoryMB,
		&paid, &status, &o.ProvisioningError, &auto, &o.IPAddress, &o.Hostname,
		&o.Username, &o.Password, &o.HostycareServiceID, &raw, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("orderstore: scan failed: %w", err)
	}

	o.Paid = paid != 0
	o.AutoProvisioned = auto != 0
	o.ProvisioningStatus = domain.ProvisioningStatus(status)
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &o.RawDetails)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &o, nil
}

func marshalRaw(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
