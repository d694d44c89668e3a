package supervisor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wrenchsim/daemon/internal/model"

	_ "modernc.org/sqlite"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    port            INTEGER NOT NULL,
    pid             INTEGER NOT NULL,
    platform_digest TEXT NOT NULL,
    controller_host TEXT NOT NULL,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME,
    exit_status     TEXT,
    failure_cause   TEXT
)`

// ErrNotFound is returned when a session-launch record is not found.
var ErrNotFound = errors.New("session record not found")

// AuditStore persists session-launch bookkeeping: who was spawned, on what
// port, and how they exited. It is pure operational metadata — it never
// stores a job, service, or event, and it never resurrects a session.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore opens the SQLite database at dbPath and runs migrations.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &AuditStore{db: db}, nil
}

// Close closes the underlying database connection.
func (a *AuditStore) Close() error {
	return a.db.Close()
}

// RecordLaunch inserts a new session-launch record.
func (a *AuditStore) RecordLaunch(ctx context.Context, rec *model.SessionRecord) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions (id, port, pid, platform_digest, controller_host, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Port, rec.PID, rec.PlatformDigest, rec.ControllerHost, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session record: %w", err)
	}
	return nil
}

// RecordExit updates a session-launch record once its process has exited.
func (a *AuditStore) RecordExit(ctx context.Context, id string, finishedAt time.Time, exitStatus, failureCause string) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE sessions SET finished_at = ?, exit_status = ?, failure_cause = ? WHERE id = ?`,
		finishedAt, exitStatus, failureCause, id,
	)
	if err != nil {
		return fmt.Errorf("update session record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every session-launch record, most recently started first.
func (a *AuditStore) List(ctx context.Context) ([]*model.SessionRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, port, pid, platform_digest, controller_host, started_at, finished_at, exit_status, failure_cause
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []*model.SessionRecord
	for rows.Next() {
		rec := &model.SessionRecord{}
		var finishedAt sql.NullTime
		var exitStatus, failureCause sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.Port, &rec.PID, &rec.PlatformDigest, &rec.ControllerHost,
			&rec.StartedAt, &finishedAt, &exitStatus, &failureCause,
		); err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		if finishedAt.Valid {
			rec.FinishedAt = &finishedAt.Time
		}
		rec.ExitStatus = exitStatus.String
		rec.FailureCause = failureCause.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}
