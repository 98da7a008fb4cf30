package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore persists report records in PostgreSQL and image artifacts on
// the local filesystem under mediaDir, recording the relative path on the
// report row.
type PostgresStore struct {
	db       *sql.DB
	mediaDir string
}

// OpenPostgres connects to PostgreSQL with the given DSN, verifies the
// connection, and runs pending schema migrations.
func OpenPostgres(dsn, mediaDir string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("report: open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: postgres ping: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db, mediaDir: mediaDir}, nil
}

// NewPostgresStore wraps an existing database handle without running
// migrations. Used by tests and by callers that manage the schema themselves.
func NewPostgresStore(db *sql.DB, mediaDir string) *PostgresStore {
	return &PostgresStore{db: db, mediaDir: mediaDir}
}

// CreateReport inserts a report row. Identity labels are resolved against
// the external users table best-effort: an unknown or unresolvable label is
// stored as text with a NULL user reference, never an error.
func (s *PostgresStore) CreateReport(ctx context.Context, room string, ts time.Time, reporterLabel, reportedLabel string) (string, error) {
	id := uuid.NewString()

	reporterID := s.resolveUser(ctx, reporterLabel)
	reportedID := s.resolveUser(ctx, reportedLabel)

	const query = `
		INSERT INTO reports (id, room, reported_at, reporter_label, reported_label, reporter_user_id, reported_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query, id, room, ts, reporterLabel, reportedLabel, reporterID, reportedID)
	if err != nil {
		return "", fmt.Errorf("report: insert: %w", err)
	}
	return id, nil
}

// AttachImage writes the image bytes under mediaDir/reports and records the
// relative path in the report row's slot column.
func (s *PostgresStore) AttachImage(ctx context.Context, reportID string, slot Slot, data []byte, contentType string) error {
	var column string
	switch slot {
	case SlotLocal:
		column = "local_image"
	case SlotRemote:
		column = "remote_image"
	default:
		return fmt.Errorf("report: unknown image slot %q", slot)
	}

	dir := filepath.Join(s.mediaDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create media dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", slot, reportID, extensionFor(contentType))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write image: %w", err)
	}

	relPath := filepath.Join("reports", name)
	query := fmt.Sprintf("UPDATE reports SET %s = $1 WHERE id = $2", column)
	if _, err := s.db.ExecContext(ctx, query, relPath, reportID); err != nil {
		return fmt.Errorf("report: record image path: %w", err)
	}
	return nil
}

// FindUserByLabel resolves an identity label to a user ID in the external
// users table. ok=false when the label is unknown.
func (s *PostgresStore) FindUserByLabel(ctx context.Context, label string) (int64, bool, error) {
	const query = `SELECT id FROM users WHERE username = $1`

	var id int64
	err := s.db.QueryRowContext(ctx, query, label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("report: find user: %w", err)
	}
	return id, true, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// resolveUser maps a label to a nullable user reference. Lookup failures
// (including a missing users table) degrade to NULL.
func (s *PostgresStore) resolveUser(ctx context.Context, label string) sql.NullInt64 {
	if label == "" {
		return sql.NullInt64{}
	}
	id, ok, err := s.FindUserByLabel(ctx, label)
	if err != nil || !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
