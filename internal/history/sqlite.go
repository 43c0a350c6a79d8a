package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxcraft-labs/voxcraft/internal/config"
)

// SQLiteBackend stores the per-feature logs in a single SQLite file.
type SQLiteBackend struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite initializes the history database according to config.
func OpenSQLite(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*SQLiteBackend, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteBackend{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteBackend) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS history_entries (
    feature TEXT NOT NULL,
    entry_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    correlation_id TEXT,
    payload BLOB,
    format_version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY(feature, entry_id)
);
CREATE INDEX IF NOT EXISTS idx_history_feature_entry ON history_entries(feature, entry_id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Append(ctx context.Context, feature string, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_entries(feature, entry_id, kind, correlation_id, payload, format_version, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		feature, e.ID, string(e.Kind), e.CorrelationID, []byte(e.Payload), FormatVersion,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Load returns the entries of one feature in append order. Entries
// written with a different format version are counted and dropped.
func (s *SQLiteBackend) Load(ctx context.Context, feature string) ([]Entry, error) {
	var stale int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history_entries WHERE feature = ? AND format_version != ?`,
		feature, FormatVersion).Scan(&stale); err == nil && stale > 0 {
		s.log.Warn("discarding history entries with unknown format version",
			slog.String("feature", feature), slog.Int("count", stale))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, kind, correlation_id, payload, created_at
		 FROM history_entries WHERE feature = ? AND format_version = ? ORDER BY entry_id ASC`,
		feature, FormatVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, created string
		var payload []byte
		if err := rows.Scan(&e.ID, &kind, &e.CorrelationID, &payload, &created); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Payload = payload
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteBackend) Clear(ctx context.Context, feature string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE feature = ?`, feature)
	return err
}
