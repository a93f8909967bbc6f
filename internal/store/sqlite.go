// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides tenant and request ledger persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			team_id    TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (status IN ('active', 'suspended'))
		);

		CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(status);

		CREATE TABLE IF NOT EXISTS request_log (
			id              TEXT PRIMARY KEY,
			team_id         TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			kind            TEXT NOT NULL,
			conversation_id TEXT NOT NULL DEFAULT '',
			outcome         TEXT NOT NULL,
			detail          TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,

			CHECK (outcome IN ('delivered', 'failed', 'dropped', 'forbidden', 'duplicate'))
		);

		CREATE INDEX IF NOT EXISTS idx_request_log_team ON request_log(team_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertTenant inserts or updates a tenant keyed by team ID
func (s *SQLiteStore) UpsertTenant(ctx context.Context, tenant *Tenant) error {
	if tenant.Status == "" {
		tenant.Status = TenantStatusActive
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (team_id, name, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status
	`, tenant.TeamID, tenant.Name, tenant.Status, tenant.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting tenant: %w", err)
	}
	return nil
}

// GetTenant retrieves a tenant by team ID
func (s *SQLiteStore) GetTenant(ctx context.Context, teamID string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT team_id, name, status, created_at
		FROM tenants WHERE team_id = ?
	`, teamID)

	tenant, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tenant: %w", err)
	}
	return tenant, nil
}

// ListTenants returns all tenants ordered by creation time
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, name, status, created_at
		FROM tenants ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// DeleteTenant removes a tenant. Returns ErrNotFound if it does not exist.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, teamID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE team_id = ?`, teamID)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsTenantActive reports whether the tenant exists with active status
func (s *SQLiteStore) IsTenantActive(ctx context.Context, teamID string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM tenants WHERE team_id = ?
	`, teamID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking tenant: %w", err)
	}
	return status == TenantStatusActive, nil
}

// SaveRequestRecord writes one terminal outcome to the request ledger
func (s *SQLiteStore) SaveRequestRecord(ctx context.Context, rec *RequestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_log (id, team_id, user_id, kind, conversation_id, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TeamID, rec.UserID, rec.Kind, rec.ConversationID, rec.Outcome, rec.Detail,
		rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving request record: %w", err)
	}
	return nil
}

// ListRequestRecords returns the most recent ledger entries for a team,
// newest first. A limit of 0 defaults to 50.
func (s *SQLiteStore) ListRequestRecords(ctx context.Context, teamID string, limit int) ([]*RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, user_id, kind, conversation_id, outcome, detail, created_at
		FROM request_log WHERE team_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing request records: %w", err)
	}
	defer rows.Close()

	var records []*RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.UserID, &rec.Kind,
			&rec.ConversationID, &rec.Outcome, &rec.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning request record: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*Tenant, error) {
	var tenant Tenant
	var createdAt string
	if err := row.Scan(&tenant.TeamID, &tenant.Name, &tenant.Status, &createdAt); err != nil {
		return nil, err
	}
	tenant.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &tenant, nil
}
