package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voxcraft-labs/voxcraft/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	cfg := config.CatalogConfig{
		Path:      filepath.Join(dir, "catalog.db"),
		SampleDir: filepath.Join(dir, "voices"),
	}
	c, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// writeTestWAV renders one second of silence at the given rate.
func writeTestWAV(t *testing.T, sampleRate int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, sampleRate),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func TestAddProbesSample(t *testing.T) {
	c := openTestCatalog(t)
	sample := writeTestWAV(t, 22050)

	v, err := c.Add(context.Background(), "Narrator", "en", bytes.NewReader(sample))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v.SampleRate != 22050 {
		t.Fatalf("expected probed sample rate 22050, got %d", v.SampleRate)
	}
	if v.Channels != 1 {
		t.Fatalf("expected mono sample, got %d channels", v.Channels)
	}
	if v.Duration < 0.9 || v.Duration > 1.1 {
		t.Fatalf("expected roughly one second of audio, got %f", v.Duration)
	}
	if _, err := os.Stat(v.SamplePath); err != nil {
		t.Fatalf("sample file missing: %v", err)
	}
}

func TestAddRejectsInvalidSample(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.Add(context.Background(), "Broken", "en", bytes.NewReader([]byte("not audio")))
	if err == nil {
		t.Fatal("expected invalid sample to be rejected")
	}
	voices, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(voices) != 0 {
		t.Fatalf("expected no voices after rejected add, got %d", len(voices))
	}
}

func TestGetAndListRoundTrip(t *testing.T) {
	c := openTestCatalog(t)
	sample := writeTestWAV(t, 16000)

	added, err := c.Add(context.Background(), "Reader", "fr", bytes.NewReader(sample))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := c.Get(context.Background(), added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Reader" || got.Language != "fr" || got.SampleRate != 16000 {
		t.Fatalf("unexpected voice: %+v", got)
	}

	voices, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != added.ID {
		t.Fatalf("unexpected listing: %+v", voices)
	}
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	c := openTestCatalog(t)
	sample := writeTestWAV(t, 16000)

	v, err := c.Add(context.Background(), "Temp", "en", bytes.NewReader(sample))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Delete(context.Background(), v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(context.Background(), v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := os.Stat(v.SamplePath); !os.IsNotExist(err) {
		t.Fatalf("expected sample file removed, got %v", err)
	}
}

func TestGetUnknownVoice(t *testing.T) {
	c := openTestCatalog(t)
	if _, err := c.Get(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
