// Package journal keeps a local SQLite record of diagnostics and relay
// changes so a node can be inspected after the fact, even when its broker
// was unreachable at the time.
//
// Every row carries the boot id of the process that wrote it. Uptime
// values restart at zero on every boot, so (boot_id, uptime_ms) is the
// meaningful ordering; recorded_at is host wall-clock time and only as good
// as the host clock.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homesync/node-agent/internal/diag"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// writeTimeout bounds a single insert from the control loop.
	writeTimeout = time.Second

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Logger receives journal write failures. A journal cannot record its own
// failures as diagnostics.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Entry is one stored diagnostic.
type Entry struct {
	ID         int64     `json:"id"`
	BootID     string    `json:"boot_id"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Source     string    `json:"source"`
	Detail     string    `json:"detail"`
	UptimeMS   int64     `json:"uptime_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RelayEntry is one stored relay change.
type RelayEntry struct {
	ID         int64     `json:"id"`
	BootID     string    `json:"boot_id"`
	State      bool      `json:"state"`
	UptimeMS   int64     `json:"uptime_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal writes and reads the diagnostics and relay_history tables.
//
// Thread Safety: safe for concurrent use; database/sql serialises access.
type Journal struct {
	db     *sql.DB
	bootID string
	logger Logger
	now    func() time.Time
}

// NewBootID returns a fresh identifier for this process run.
func NewBootID() string {
	return uuid.NewString()
}

// New creates a Journal writing under bootID.
//
// Parameters:
//   - db: migrated SQLite connection
//   - bootID: identifier of the current process run (see NewBootID)
//   - logger: receives write failures (may be nil)
func New(db *sql.DB, bootID string, logger Logger) *Journal {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Journal{
		db:     db,
		bootID: bootID,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// BootID returns the id rows are tagged with.
func (j *Journal) BootID() string { return j.bootID }

// StartBoot records that this boot started.
func (j *Journal) StartBoot(ctx context.Context, deviceID, version string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO boots (boot_id, device_id, version, started_at) VALUES (?, ?, ?, ?)",
		j.bootID, deviceID, version, j.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("inserting boot: %w", err)
	}
	return nil
}

// Record implements diag.Recorder. Failures are logged and dropped.
func (j *Journal) Record(e diag.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO diagnostics (boot_id, kind, severity, source, detail, uptime_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.bootID, string(e.Kind), e.Severity.String(), e.Source, e.Detail,
		e.Uptime.Milliseconds(), j.timestamp(),
	)
	if err != nil {
		j.logger.Warn("journal write failed", "table", "diagnostics", "error", err)
	}
}

// RecordRelay stores a relay change. Its signature matches actuator.Listener.
func (j *Journal) RecordRelay(on bool, at time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO relay_history (boot_id, state, uptime_ms, recorded_at) VALUES (?, ?, ?, ?)",
		j.bootID, on, at.Milliseconds(), j.timestamp(),
	)
	if err != nil {
		j.logger.Warn("journal write failed", "table", "relay_history", "error", err)
	}
}

// Recent returns the newest diagnostics first.
//
// Parameters:
//   - limit: maximum rows (default 50, max 500)
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, boot_id, kind, severity, source, detail, uptime_ms, recorded_at
		 FROM diagnostics
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.BootID, &e.Kind, &e.Severity, &e.Source, &e.Detail, &e.UptimeMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning diagnostic: %w", err)
		}
		if e.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating diagnostics: %w", err)
	}
	return entries, nil
}

// RelayHistory returns the newest relay changes first.
func (j *Journal) RelayHistory(ctx context.Context, limit int) ([]RelayEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, boot_id, state, uptime_ms, recorded_at
		 FROM relay_history
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying relay history: %w", err)
	}
	defer rows.Close()

	entries := make([]RelayEntry, 0)
	for rows.Next() {
		var e RelayEntry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.BootID, &e.State, &e.UptimeMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning relay history: %w", err)
		}
		if e.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relay history: %w", err)
	}
	return entries, nil
}

// Prune deletes rows recorded more than olderThan ago.
//
// Returns:
//   - int64: rows deleted across both tables
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := j.now().Add(-olderThan).Format(timeLayout)

	var total int64
	for _, table := range []string{"diagnostics", "relay_history"} {
		res, err := j.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE recorded_at < ?", cutoff) //nolint:gosec // fixed table names
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func (j *Journal) timestamp() string {
	return j.now().Format(timeLayout)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
