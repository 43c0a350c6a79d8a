package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/workitem"
)

// ErrNoItems rejects a dispatch with an empty selection.
var ErrNoItems = errors.New("no work items selected")

const (
	PathSingleton = "singleton"
	PathBatch     = "batch"
)

// Result is the normalized outcome of generating one work item.
// Downstream code never sees which dispatch path produced it.
type Result struct {
	Index          int    `json:"index"`
	Success        bool   `json:"success"`
	Text           string `json:"text"`
	OriginalText   string `json:"original_text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Path returns which dispatch strategy a selection of this size uses.
func Path(itemCount int) string {
	if itemCount == 1 {
		return PathSingleton
	}
	return PathBatch
}

// Dispatcher issues generation calls against the engine and reconciles
// both response shapes into index-ordered Results.
type Dispatcher struct {
	synth  engine.Synthesizer
	logger *slog.Logger
}

func NewDispatcher(synth engine.Synthesizer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		synth:  synth,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch generates audio for the selected items, driving the
// progress reporter through its phases. A transport-level failure
// returns zero Results and the error; a per-item failure inside a
// successful batch response becomes a failed Result for that item
// only. The returned slice always has exactly one Result per input
// item, sorted ascending by item index.
func (d *Dispatcher) Dispatch(ctx context.Context, req engine.Request, items []workitem.Item, progress *Progress) (results []Result, err error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	progress.Set(PhaseSubmitting)
	defer func() { progress.Finish(err == nil) }()

	progress.Set(PhaseAwaiting)
	if len(items) == 1 {
		single, serr := d.synth.SynthesizeOne(ctx, req, items[0].Text)
		if serr != nil {
			return nil, fmt.Errorf("singleton dispatch: %w", serr)
		}
		progress.Set(PhaseFinalizing)
		return []Result{normalizeSingle(items[0], req, single)}, nil
	}

	batch, berr := d.synth.SynthesizeBatch(ctx, req, workitem.Texts(items))
	if berr != nil {
		return nil, fmt.Errorf("batch dispatch: %w", berr)
	}
	progress.Set(PhaseFinalizing)
	return correlate(items, batch, d.logger), nil
}

func normalizeSingle(item workitem.Item, req engine.Request, single engine.Single) Result {
	result := Result{
		Index:    item.Index,
		Success:  true,
		Text:     item.Text,
		AudioURL: single.AudioURL,
	}
	if req.Translated() {
		result.OriginalText = single.OriginalText
		result.TranslatedText = single.TranslatedText
		if single.TranslatedText != "" {
			result.Text = single.TranslatedText
		}
	}
	return result
}

// correlate maps batch response entries back onto the dispatched items
// by submission position. Every item gets exactly one Result; an entry
// the engine dropped, in violation of its contract, is surfaced as a
// failed item rather than silently missing.
func correlate(items []workitem.Item, batch engine.BatchResult, logger *slog.Logger) []Result {
	byPosition := make(map[int]engine.ItemResult, len(batch.Results))
	for _, r := range batch.Results {
		byPosition[r.Index] = r
	}

	results := make([]Result, 0, len(items))
	for pos, item := range items {
		r, ok := byPosition[pos]
		if !ok {
			logger.Warn("engine response missing batch item",
				slog.Int("position", pos), slog.Int("index", item.Index))
			results = append(results, Result{
				Index:   item.Index,
				Success: false,
				Text:    item.Text,
				Error:   "engine returned no result for this item",
			})
			continue
		}
		result := Result{
			Index:          item.Index,
			Success:        r.Success,
			Text:           item.Text,
			OriginalText:   r.OriginalText,
			TranslatedText: r.TranslatedText,
			AudioURL:       r.AudioURL,
			Error:          r.Error,
		}
		if r.TranslatedText != "" {
			result.Text = r.TranslatedText
		} else if r.Text != "" {
			result.Text = r.Text
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}
