package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/voxcraft-labs/voxcraft/internal/config"
)

// ErrNotFound is returned when a voice id has no catalog row.
var ErrNotFound = errors.New("voice not found")

// Voice is one cloned voice with its reference sample on disk.
type Voice struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Language   string    `json:"language"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Duration   float64   `json:"duration_seconds"`
	SamplePath string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Catalog persists voice metadata in SQLite and reference samples as
// WAV files under the configured sample directory.
type Catalog struct {
	db    *sql.DB
	dir   string
	log   *slog.Logger
	clock func() time.Time
}

func Open(ctx context.Context, cfg config.CatalogConfig, log *slog.Logger) (*Catalog, error) {
	if err := os.MkdirAll(cfg.SampleDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sample dir: %w", err)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
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

	c := &Catalog{db: db, dir: cfg.SampleDir, log: log, clock: time.Now}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS voices (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    language TEXT NOT NULL,
    sample_rate INTEGER NOT NULL,
    channels INTEGER NOT NULL,
    duration_seconds REAL NOT NULL,
    sample_path TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`
	_, err := c.db.ExecContext(ctx, ddl)
	return err
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add stores a new voice. The sample is written to disk first and
// probed as a WAV file; a sample that does not decode is rejected and
// the file removed.
func (c *Catalog) Add(ctx context.Context, name, language string, sample io.Reader) (Voice, error) {
	if name == "" {
		return Voice{}, errors.New("voice name is required")
	}
	if language == "" {
		language = "en"
	}

	id := uuid.NewString()
	path := filepath.Join(c.dir, id+".wav")
	f, err := os.Create(path)
	if err != nil {
		return Voice{}, fmt.Errorf("write sample: %w", err)
	}
	if _, err := io.Copy(f, sample); err != nil {
		f.Close()
		os.Remove(path)
		return Voice{}, fmt.Errorf("write sample: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Voice{}, fmt.Errorf("write sample: %w", err)
	}

	rate, channels, duration, err := probeWAV(path)
	if err != nil {
		os.Remove(path)
		return Voice{}, fmt.Errorf("probe sample: %w", err)
	}

	v := Voice{
		ID:         id,
		Name:       name,
		Language:   language,
		SampleRate: rate,
		Channels:   channels,
		Duration:   duration,
		SamplePath: path,
		CreatedAt:  c.clock().UTC(),
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO voices(id, name, language, sample_rate, channels, duration_seconds, sample_path, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Language, v.SampleRate, v.Channels, v.Duration, v.SamplePath,
		v.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		os.Remove(path)
		return Voice{}, fmt.Errorf("insert voice: %w", err)
	}

	c.log.Info("voice added",
		slog.String("voice_id", v.ID),
		slog.String("name", v.Name),
		slog.Int("sample_rate", v.SampleRate),
		slog.Float64("duration_seconds", v.Duration))
	return v, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Voice, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, language, sample_rate, channels, duration_seconds, sample_path, created_at
		 FROM voices WHERE id = ?`, id)
	return scanVoice(row)
}

// List returns all voices, newest first.
func (c *Catalog) List(ctx context.Context) ([]Voice, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, language, sample_rate, channels, duration_seconds, sample_path, created_at
		 FROM voices ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var voices []Voice
	for rows.Next() {
		v, err := scanVoice(rows)
		if err != nil {
			return nil, err
		}
		voices = append(voices, v)
	}
	return voices, rows.Err()
}

// Delete removes the catalog row and the sample file. A missing file
// is logged but does not fail the delete.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	v, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM voices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete voice: %w", err)
	}
	if err := os.Remove(v.SamplePath); err != nil && !os.IsNotExist(err) {
		c.log.Warn("could not remove sample file",
			slog.String("voice_id", id), slog.String("path", v.SamplePath))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoice(row rowScanner) (Voice, error) {
	var v Voice
	var created string
	err := row.Scan(&v.ID, &v.Name, &v.Language, &v.SampleRate, &v.Channels, &v.Duration, &v.SamplePath, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Voice{}, ErrNotFound
	}
	if err != nil {
		return Voice{}, err
	}
	if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		v.CreatedAt = ts
	}
	return v, nil
}

func probeWAV(path string) (rate, channels int, duration float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return 0, 0, 0, errors.New("not a valid wav file")
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read duration: %w", err)
	}
	return int(dec.SampleRate), int(dec.NumChans), d.Seconds(), nil
}
