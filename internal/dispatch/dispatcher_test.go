package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/workitem"
)

type scriptedSynth struct {
	singleCalls int
	batchCalls  int

	single    engine.Single
	singleErr error
	batch     engine.BatchResult
	batchErr  error
}

func (s *scriptedSynth) SynthesizeOne(ctx context.Context, req engine.Request, text string) (engine.Single, error) {
	s.singleCalls++
	return s.single, s.singleErr
}

func (s *scriptedSynth) SynthesizeBatch(ctx context.Context, req engine.Request, texts []string) (engine.BatchResult, error) {
	s.batchCalls++
	return s.batch, s.batchErr
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProgress() *Progress {
	return NewProgress("synthesis", nil, 10*time.Millisecond)
}

func TestDispatchSingleItemUsesSingletonPath(t *testing.T) {
	synth := &scriptedSynth{single: engine.Single{AudioURL: "/api/audio/a1"}}
	d := NewDispatcher(synth, newTestLogger())

	items := []workitem.Item{{Index: 3, Text: "only line"}}
	results, err := d.Dispatch(context.Background(), engine.Request{VoiceID: "v1"}, items, newTestProgress())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if synth.singleCalls != 1 || synth.batchCalls != 0 {
		t.Fatalf("expected singleton call, got single=%d batch=%d", synth.singleCalls, synth.batchCalls)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Index != 3 || !r.Success || r.Text != "only line" || r.AudioURL != "/api/audio/a1" {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestDispatchMultipleItemsUsesBatchPath(t *testing.T) {
	synth := &scriptedSynth{batch: engine.BatchResult{
		Results: []engine.ItemResult{
			{Index: 0, Success: true, AudioURL: "/api/audio/a"},
			{Index: 1, Success: true, AudioURL: "/api/audio/b"},
		},
		Successful: 2,
	}}
	d := NewDispatcher(synth, newTestLogger())

	items := []workitem.Item{{Index: 0, Text: "one"}, {Index: 1, Text: "two"}}
	results, err := d.Dispatch(context.Background(), engine.Request{VoiceID: "v1"}, items, newTestProgress())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if synth.batchCalls != 1 || synth.singleCalls != 0 {
		t.Fatalf("expected batch call, got single=%d batch=%d", synth.singleCalls, synth.batchCalls)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestDispatchKeepsPerItemFailures(t *testing.T) {
	synth := &scriptedSynth{batch: engine.BatchResult{
		Results: []engine.ItemResult{
			{Index: 0, Success: true, AudioURL: "/api/audio/a"},
			{Index: 1, Success: false, Error: "synthesis failed"},
			{Index: 2, Success: true, AudioURL: "/api/audio/c"},
		},
		Successful: 2,
		Failed:     1,
	}}
	d := NewDispatcher(synth, newTestLogger())

	items := []workitem.Item{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}, {Index: 2, Text: "c"}}
	results, err := d.Dispatch(context.Background(), engine.Request{VoiceID: "v1"}, items, newTestProgress())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected a result per item, got %d", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("unexpected success pattern: %+v", results)
	}
	if results[1].Error != "synthesis failed" {
		t.Fatalf("expected per-item error preserved, got %q", results[1].Error)
	}
}

func TestDispatchTransportFailureYieldsNoResults(t *testing.T) {
	synth := &scriptedSynth{batchErr: errors.New("connection refused")}
	d := NewDispatcher(synth, newTestLogger())

	items := []workitem.Item{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	results, err := d.Dispatch(context.Background(), engine.Request{VoiceID: "v1"}, items, newTestProgress())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if len(results) != 0 {
		t.Fatalf("expected zero results on transport failure, got %d", len(results))
	}
}

func TestDispatchRejectsEmptySelection(t *testing.T) {
	d := NewDispatcher(&scriptedSynth{}, newTestLogger())
	if _, err := d.Dispatch(context.Background(), engine.Request{}, nil, newTestProgress()); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestCorrelateOrdersByItemIndex(t *testing.T) {
	// Sparse selection: items 1 and 4 of a larger derivation, response
	// positions shuffled.
	items := []workitem.Item{{Index: 1, Text: "b"}, {Index: 4, Text: "e"}}
	batch := engine.BatchResult{Results: []engine.ItemResult{
		{Index: 1, Success: true, AudioURL: "/api/audio/e"},
		{Index: 0, Success: true, AudioURL: "/api/audio/b"},
	}}

	results := correlate(items, batch, newTestLogger())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 || results[1].Index != 4 {
		t.Fatalf("expected ascending item indices, got %d then %d", results[0].Index, results[1].Index)
	}
	if results[0].AudioURL != "/api/audio/b" || results[1].AudioURL != "/api/audio/e" {
		t.Fatalf("responses correlated to wrong items: %+v", results)
	}
}

func TestCorrelateFillsMissingEntriesAsFailures(t *testing.T) {
	items := []workitem.Item{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	batch := engine.BatchResult{Results: []engine.ItemResult{
		{Index: 0, Success: true, AudioURL: "/api/audio/a"},
	}}

	results := correlate(items, batch, newTestLogger())
	if len(results) != 2 {
		t.Fatalf("expected count preserved, got %d", len(results))
	}
	if results[1].Success || results[1].Error == "" {
		t.Fatalf("expected missing entry surfaced as failure, got %+v", results[1])
	}
}

func TestDispatchTranslationFillsTextFields(t *testing.T) {
	synth := &scriptedSynth{single: engine.Single{
		AudioURL:       "/api/audio/t",
		OriginalText:   "hello",
		TranslatedText: "bonjour",
	}}
	d := NewDispatcher(synth, newTestLogger())

	req := engine.Request{VoiceID: "v1", TranslateTo: "fr"}
	items := []workitem.Item{{Index: 0, Text: "hello"}}
	results, err := d.Dispatch(context.Background(), req, items, newTestProgress())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	r := results[0]
	if r.Text != "bonjour" || r.OriginalText != "hello" || r.TranslatedText != "bonjour" {
		t.Fatalf("unexpected translation fields: %+v", r)
	}
}
