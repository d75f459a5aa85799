// Package requeststore persists customer-submitted server action
// requests awaiting admin approval.
//
// The "at most one pending request per (order, action)" invariant is a
// partial unique index, not application logic, so it holds under
// concurrent submission.
package requeststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sulphurninja/oceanlinux-sub002/internal/database"
	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// Repository defines the persistence interface for action requests.
type Repository interface {
	// Create inserts a pending request. domain.ErrConflict when a
	// pending request already exists for the same (order, action).
	Create(ctx context.Context, req *domain.ServerActionRequest) error

	// Get retrieves a request by id; domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.ServerActionRequest, error)

	// ListByStatus returns requests in the given status, newest first.
	// An empty status lists everything.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.ServerActionRequest, error)

	// Transition moves a request from one status to another, recording
	// who processed it. domain.ErrConflict when the request is not in
	// the expected from-status (terminal decisions happen exactly once).
	Transition(ctx context.Context, id string, from, to domain.RequestStatus, processedBy, adminNotes string) error

	// Close releases database resources.
	Close() error
}

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenAt creates or opens the request repository at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("requeststore: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already-open database, running migrations.
func NewWithDB(db *sql.DB) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS action_requests (
			id             TEXT PRIMARY KEY,
			order_id       TEXT NOT NULL,
			user_id        TEXT NOT NULL DEFAULT '',
			action         TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			payload        TEXT NOT NULL DEFAULT '{}',
			order_snapshot TEXT NOT NULL DEFAULT '{}',
			processed_by   TEXT NOT NULL DEFAULT '',
			processed_at   TEXT,
			admin_notes    TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_pending
			ON action_requests(order_id, action) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_requests_status ON action_requests(status);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("requeststore: migration failed: %w", err)
	}
	return nil
}

// Create inserts a new pending request.
func (r *SQLiteRepository) Create(ctx context.Context, req *domain.ServerActionRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Status = domain.RequestPending

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("requeststore: encode payload: %w", err)
	}
	snapshot, err := json.Marshal(req.Snapshot)
	if err != nil {
		return fmt.Errorf("requeststore: encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO action_requests (id, order_id, user_id, action, status, payload,
			order_snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.OrderID, req.UserID, string(req.Action), string(req.Status),
		string(payload), string(snapshot),
		req.CreatedAt.Format(time.RFC3339Nano), req.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("requeststore: pending %s request already exists for order %s: %w",
				req.Action, req.OrderID, domain.ErrConflict)
		}
		return fmt.Errorf("requeststore: insert failed: %w", err)
	}
	return nil
}

// Get retrieves a request by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.ServerActionRequest, error) {
	row := r.db.QueryRowContext(ctx, selectRequest+` WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requeststore: request %s: %w", id, domain.ErrNotFound)
	}
	return req, err
}

// ListByStatus returns requests in the given status, newest first.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.ServerActionRequest, error) {
	query := selectRequest + ` ORDER BY created_at DESC`
	args := []any{}
	if status != "" {
		query = selectRequest + ` WHERE status = ? ORDER BY created_at DESC`
		args = append(args, string(status))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("requeststore: query failed: %w", err)
	}
	defer rows.Close()

	var requests []domain.ServerActionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// Transition atomically moves a request between statuses. The WHERE
// clause carries the from-status so a decision can only happen once even
// under concurrent admin clicks.
func (r *SQLiteRepository) Transition(ctx context.Context, id string, from, to domain.RequestStatus, processedBy, adminNotes string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := r.db.ExecContext(ctx, `
		UPDATE action_requests
		SET status = ?, processed_by = ?, processed_at = ?, admin_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), processedBy, now, adminNotes, now, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("requeststore: transition failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeststore: transition failed: %w", err)
	}
	if n == 0 {
		// Either the request is gone or it already left the from-status.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("requeststore: request %s is not %s: %w", id, from, domain.ErrConflict)
	}
	return nil
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const selectRequest = `
	SELECT id, order_id, user_id, action, status, payload, order_snapshot,
		processed_by, processed_at, admin_notes, created_at, updated_at
	FROM action_requests`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.ServerActionRequest, error) {
	var req domain.ServerActionRequest
	var action, status, payload, snapshot, created, updated string
	var processedAt sql.NullString

	err := row.Scan(&req.ID, &req.OrderID, &req.UserID, &action, &status, &payload,
		&snapshot, &req.ProcessedBy, &processedAt, &req.AdminNotes, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("requeststore: scan failed: %w", err)
	}

	req.Action = domain.Action(action)
	req.Status = domain.RequestStatus(status)
	_ = json.Unmarshal([]byte(payload), &req.Payload)
	_ = json.Unmarshal([]byte(snapshot), &req.Snapshot)
	if processedAt.Valid && processedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, processedAt.String)
		if err == nil {
			req.ProcessedAt = &t
		}
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	req.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &req, nil
}

// isUniqueViolation recognises SQLite unique-constraint failures from
// the driver error code, with a message fallback for wrapped errors.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			code == sqlite3.SQLITE_CONSTRAINT
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
