package studio

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxcraft-labs/voxcraft/internal/config"
	"github.com/voxcraft-labs/voxcraft/internal/dispatch"
	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/history"
	"github.com/voxcraft-labs/voxcraft/internal/protocol"
	"github.com/voxcraft-labs/voxcraft/internal/workitem"
)

const (
	FeatureSynthesis = "synthesis"
	FeatureReader    = "reader"
	FeatureTransform = "transform"
)

var featureAreas = []string{FeatureSynthesis, FeatureReader, FeatureTransform}

// EventPublisher is the bus surface the studio needs. Nil disables
// event publication, which tests rely on.
type EventPublisher interface {
	PublishJSON(subject string, v any) error
}

// Options wires the studio's collaborators.
type Options struct {
	Config      config.Config
	Synthesizer engine.Synthesizer
	Extractor   engine.Extractor
	Transformer engine.Transformer
	Backend     history.Backend
	Events      EventPublisher
	Logger      *slog.Logger
}

// Studio coordinates the three feature areas. Each area owns a session
// (work items, selection, single-flight guard), a durable history log
// and a progress reporter; all generation traffic funnels through the
// dispatcher.
type Studio struct {
	cfg         config.Config
	extractor   engine.Extractor
	transformer engine.Transformer
	dispatcher  *dispatch.Dispatcher
	events      EventPublisher
	logger      *slog.Logger
	sessions    map[string]*Session

	dispatches       metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	dispatchItems    metric.Int64Histogram
}

func New(ctx context.Context, opts Options) (*Studio, error) {
	logger := opts.Logger.With(slog.String("component", "studio"))

	s := &Studio{
		cfg:         opts.Config,
		extractor:   opts.Extractor,
		transformer: opts.Transformer,
		dispatcher:  dispatch.NewDispatcher(opts.Synthesizer, opts.Logger),
		events:      opts.Events,
		logger:      logger,
		sessions:    make(map[string]*Session, len(featureAreas)),
	}

	meter := otel.Meter("voxcraft/studio")
	var err error
	s.dispatches, err = meter.Int64Counter("studio.dispatches",
		metric.WithDescription("Generation dispatches by feature, path and outcome"))
	if err != nil {
		return nil, err
	}
	s.dispatchDuration, err = meter.Float64Histogram("studio.dispatch.duration",
		metric.WithDescription("Dispatch round-trip duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	s.dispatchItems, err = meter.Int64Histogram("studio.dispatch.items",
		metric.WithDescription("Work items per dispatch"))
	if err != nil {
		return nil, err
	}

	resetAfter := time.Duration(opts.Config.Studio.ProgressResetMS) * time.Millisecond
	for _, feature := range featureAreas {
		feature := feature
		log := history.Open(ctx, feature, opts.Backend, opts.Config.History.Window, opts.Logger)
		progress := dispatch.NewProgress(feature, dispatch.PublisherFunc(func(evt protocol.ProgressEvent) {
			s.publish(protocol.ProgressSubject(feature), evt)
		}), resetAfter)
		s.sessions[feature] = newSession(feature, log, progress)
	}
	return s, nil
}

func (s *Studio) session(feature string) (*Session, error) {
	sess, ok := s.sessions[feature]
	if !ok {
		return nil, ErrUnknownFeature
	}
	return sess, nil
}

// State returns the client-facing snapshot of one feature area.
func (s *Studio) State(feature string) (SessionState, error) {
	sess, err := s.session(feature)
	if err != nil {
		return SessionState{}, err
	}
	return sess.State(), nil
}

// SynthesisRequest is a free-text generation request.
type SynthesisRequest struct {
	Text        string `json:"text"`
	VoiceID     string `json:"voice_id"`
	Language    string `json:"language"`
	TranslateTo string `json:"translate_to"`
	SourceLang  string `json:"source_lang"`
}

// DispatchOutcome is the normalized result of one generation dispatch,
// identical in shape for both dispatch paths.
type DispatchOutcome struct {
	CorrelationID string            `json:"correlation_id"`
	Path          string            `json:"path"`
	Results       []dispatch.Result `json:"results"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
}

// Synthesize derives work items from the request text and dispatches
// all of them.
func (s *Studio) Synthesize(ctx context.Context, req SynthesisRequest) (DispatchOutcome, error) {
	if strings.TrimSpace(req.Text) == "" {
		return DispatchOutcome{}, invalidf("text is required")
	}
	if req.VoiceID == "" {
		return DispatchOutcome{}, invalidf("voice_id is required")
	}

	items := workitem.DeriveFromText(req.Text)
	if len(items) == 0 {
		return DispatchOutcome{}, invalidf("text contains no speakable lines")
	}

	sess := s.sessions[FeatureSynthesis]
	sess.SetItems(items)

	engineReq := engine.Request{
		VoiceID:     req.VoiceID,
		Language:    req.Language,
		TranslateTo: req.TranslateTo,
		SourceLang:  req.SourceLang,
	}
	return s.runDispatch(ctx, sess, engineReq, items, req)
}

// ExtractionState reports a freshly extracted worksheet.
type ExtractionState struct {
	Filename     string          `json:"filename"`
	Items        []workitem.Item `json:"items"`
	Selected     []int           `json:"selected"`
	TotalChunks  int             `json:"total_chunks"`
	TotalChars   int             `json:"total_chars"`
	AvgChunkSize int             `json:"avg_chunk_size"`
}

// ExtractDocument runs the document through the extractor and loads
// the resulting chunks into the reader worksheet with everything
// selected. Extraction replaces any previous worksheet.
func (s *Studio) ExtractDocument(ctx context.Context, document io.Reader, filename, method string, maxChars int) (ExtractionState, error) {
	if method == "" {
		method = s.cfg.Extractor.DefaultMethod
	}
	switch method {
	case "sentences", "paragraphs":
	default:
		return ExtractionState{}, invalidf("chunk method must be one of sentences|paragraphs")
	}
	if maxChars <= 0 {
		maxChars = s.cfg.Extractor.MaxChars
	}

	extraction, err := s.extractor.Extract(ctx, document, filename, engine.ExtractOptions{
		Method:   method,
		MaxChars: maxChars,
	})
	if err != nil {
		return ExtractionState{}, err
	}

	items := workitem.DeriveFromChunks(extraction.Chunks)
	sess := s.sessions[FeatureReader]
	sess.SetItems(items)
	sess.setStats(extraction)

	s.logger.Info("document extracted",
		slog.String("filename", extraction.Filename),
		slog.Int("chunks", extraction.TotalChunks),
		slog.String("method", method))

	return ExtractionState{
		Filename:     extraction.Filename,
		Items:        sess.Items(),
		Selected:     sess.SelectedIndices(),
		TotalChunks:  extraction.TotalChunks,
		TotalChars:   extraction.TotalChars,
		AvgChunkSize: extraction.AvgChunkSize,
	}, nil
}

// ReaderStats returns the extraction stats behind the current
// worksheet; zero values when nothing has been extracted yet.
func (s *Studio) ReaderStats() engine.Extraction {
	return s.sessions[FeatureReader].Stats()
}

// UpdateSelection applies one selection action and returns the
// resulting selected indices. Toggling an index outside the worksheet
// is a no-op, not an error.
func (s *Studio) UpdateSelection(feature, action string, index int) ([]int, error) {
	sess, err := s.session(feature)
	if err != nil {
		return nil, err
	}
	switch action {
	case "toggle":
		sess.Toggle(index)
	case "all":
		sess.SelectAll()
	case "none":
		sess.DeselectAll()
	default:
		return nil, invalidf("selection action must be one of toggle|all|none")
	}
	return sess.SelectedIndices(), nil
}

// ReaderRequest carries the voice parameters for a worksheet dispatch.
type ReaderRequest struct {
	VoiceID     string `json:"voice_id"`
	Language    string `json:"language"`
	TranslateTo string `json:"translate_to"`
	SourceLang  string `json:"source_lang"`
}

// readerDispatchRecord is the history request payload for a worksheet
// dispatch: the voice parameters plus the worksheet the selection was
// taken from.
type readerDispatchRecord struct {
	ReaderRequest
	Filename     string `json:"filename,omitempty"`
	TotalChunks  int    `json:"total_chunks"`
	TotalChars   int    `json:"total_chars"`
	AvgChunkSize int    `json:"avg_chunk_size"`
	Selected     int    `json:"selected"`
}

// SynthesizeReader dispatches the currently selected worksheet items.
func (s *Studio) SynthesizeReader(ctx context.Context, req ReaderRequest) (DispatchOutcome, error) {
	if req.VoiceID == "" {
		return DispatchOutcome{}, invalidf("voice_id is required")
	}

	sess := s.sessions[FeatureReader]
	selected := sess.SelectedItems()
	if len(selected) == 0 {
		return DispatchOutcome{}, ErrNoSelection
	}

	stats := sess.Stats()
	record := readerDispatchRecord{
		ReaderRequest: req,
		Filename:      stats.Filename,
		TotalChunks:   stats.TotalChunks,
		TotalChars:    stats.TotalChars,
		AvgChunkSize:  stats.AvgChunkSize,
		Selected:      len(selected),
	}

	engineReq := engine.Request{
		VoiceID:     req.VoiceID,
		Language:    req.Language,
		TranslateTo: req.TranslateTo,
		SourceLang:  req.SourceLang,
	}
	return s.runDispatch(ctx, sess, engineReq, selected, record)
}

func (s *Studio) runDispatch(ctx context.Context, sess *Session, req engine.Request, items []workitem.Item, requestPayload any) (DispatchOutcome, error) {
	if !sess.acquire() {
		return DispatchOutcome{}, ErrBusy
	}
	defer sess.release()

	correlationID := uuid.NewString()
	path := dispatch.Path(len(items))
	start := time.Now()

	s.appendHistory(ctx, sess, history.KindRequest, correlationID, requestPayload)
	s.publish(protocol.SubjectDispatchStarted, protocol.DispatchEvent{
		Feature:       sess.feature,
		CorrelationID: correlationID,
		Path:          path,
		Items:         len(items),
		Timestamp:     time.Now().UTC(),
	})

	results, err := s.dispatcher.Dispatch(ctx, req, items, sess.progress)
	elapsed := time.Since(start)
	if err != nil {
		s.appendHistory(ctx, sess, history.KindError, correlationID, map[string]string{"error": err.Error()})
		s.publish(protocol.SubjectDispatchFinished, protocol.DispatchEvent{
			Feature:       sess.feature,
			CorrelationID: correlationID,
			Path:          path,
			Items:         len(items),
			Error:         err.Error(),
			Timestamp:     time.Now().UTC(),
		})
		s.recordDispatch(ctx, sess.feature, path, "error", len(items), elapsed)
		return DispatchOutcome{}, err
	}

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	outcome := DispatchOutcome{
		CorrelationID: correlationID,
		Path:          path,
		Results:       results,
		Succeeded:     succeeded,
		Failed:        failed,
	}

	s.appendHistory(ctx, sess, history.KindResponse, correlationID, outcome)
	s.publish(protocol.SubjectDispatchFinished, protocol.DispatchEvent{
		Feature:       sess.feature,
		CorrelationID: correlationID,
		Path:          path,
		Items:         len(items),
		Succeeded:     succeeded,
		Failed:        failed,
		Timestamp:     time.Now().UTC(),
	})
	s.recordDispatch(ctx, sess.feature, path, "ok", len(items), elapsed)

	s.logger.Info("dispatch finished",
		slog.String("feature", sess.feature),
		slog.String("path", path),
		slog.Int("items", len(items)),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed))
	return outcome, nil
}

// TransformRequest carries the voice-transformation parameters.
type TransformRequest struct {
	Filename      string  `json:"filename"`
	TargetVoiceID string  `json:"target_voice_id"`
	Speed         float64 `json:"speed"`
	Pitch         float64 `json:"pitch"`
	Emotion       string  `json:"emotion"`
	Intensity     float64 `json:"intensity"`
}

// TransformOutcome reports one completed voice transformation.
type TransformOutcome struct {
	CorrelationID       string  `json:"correlation_id"`
	AudioURL            string  `json:"audio_url"`
	OriginalDuration    float64 `json:"original_duration"`
	TransformedDuration float64 `json:"transformed_duration"`
}

var validEmotions = map[string]struct{}{
	"neutral": {}, "happy": {}, "sad": {}, "angry": {}, "excited": {}, "calm": {},
}

// Transform sends uploaded audio through the voice transformer.
// Validation failures never touch the history log.
func (s *Studio) Transform(ctx context.Context, audio io.Reader, req TransformRequest) (TransformOutcome, error) {
	if req.TargetVoiceID == "" {
		return TransformOutcome{}, invalidf("target_voice_id is required")
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}
	if req.Pitch == 0 {
		req.Pitch = 1.0
	}
	if req.Emotion == "" {
		req.Emotion = "neutral"
	}
	if req.Speed < 0.5 || req.Speed > 2.0 {
		return TransformOutcome{}, invalidf("speed must be within [0.5, 2.0]")
	}
	if req.Pitch < 0.5 || req.Pitch > 2.0 {
		return TransformOutcome{}, invalidf("pitch must be within [0.5, 2.0]")
	}
	if req.Intensity < 0 || req.Intensity > 1 {
		return TransformOutcome{}, invalidf("intensity must be within [0, 1]")
	}
	if _, ok := validEmotions[req.Emotion]; !ok {
		return TransformOutcome{}, invalidf("unknown emotion %q", req.Emotion)
	}

	sess := s.sessions[FeatureTransform]
	if !sess.acquire() {
		return TransformOutcome{}, ErrBusy
	}
	defer sess.release()

	correlationID := uuid.NewString()
	start := time.Now()
	s.appendHistory(ctx, sess, history.KindRequest, correlationID, req)

	sess.progress.Set(dispatch.PhaseSubmitting)
	sess.progress.Set(dispatch.PhaseAwaiting)
	result, err := s.transformer.Transform(ctx, audio, req.Filename, engine.TransformOptions{
		TargetVoiceID: req.TargetVoiceID,
		Speed:         req.Speed,
		Pitch:         req.Pitch,
		Emotion:       req.Emotion,
		Intensity:     req.Intensity,
	})
	elapsed := time.Since(start)
	if err != nil {
		sess.progress.Finish(false)
		s.appendHistory(ctx, sess, history.KindError, correlationID, map[string]string{"error": err.Error()})
		s.recordDispatch(ctx, sess.feature, dispatch.PathSingleton, "error", 1, elapsed)
		return TransformOutcome{}, err
	}
	sess.progress.Set(dispatch.PhaseFinalizing)
	sess.progress.Finish(true)

	outcome := TransformOutcome{
		CorrelationID:       correlationID,
		AudioURL:            result.AudioURL,
		OriginalDuration:    result.OriginalDuration,
		TransformedDuration: result.TransformedDuration,
	}
	s.appendHistory(ctx, sess, history.KindResponse, correlationID, outcome)
	s.recordDispatch(ctx, sess.feature, dispatch.PathSingleton, "ok", 1, elapsed)
	return outcome, nil
}

// History returns a feature area's log entries. With full false the
// window is applied and the second return value counts elided entries.
func (s *Studio) History(feature string, full bool) ([]history.Entry, int, error) {
	sess, err := s.session(feature)
	if err != nil {
		return nil, 0, err
	}
	entries, elided := sess.history.View(full)
	return entries, elided, nil
}

// ClearHistory wipes a feature area's log. Destructive, so it demands
// explicit confirmation.
func (s *Studio) ClearHistory(ctx context.Context, feature string, confirm bool) error {
	sess, err := s.session(feature)
	if err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmRequired
	}
	return sess.history.Clear(ctx)
}

// appendHistory never fails a dispatch: a persist error is logged and
// the in-memory log keeps the entry.
func (s *Studio) appendHistory(ctx context.Context, sess *Session, kind history.Kind, correlationID string, payload any) {
	if _, err := sess.history.Append(ctx, kind, correlationID, payload); err != nil {
		s.logger.Warn("history append failed",
			slog.String("feature", sess.feature),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
	}
}

func (s *Studio) publish(subject string, v any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(subject, v); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func (s *Studio) recordDispatch(ctx context.Context, feature, path, outcome string, items int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("feature", feature),
		attribute.String("path", path),
		attribute.String("outcome", outcome),
	)
	s.dispatches.Add(ctx, 1, attrs)
	s.dispatchDuration.Record(ctx, elapsed.Seconds(), attrs)
	s.dispatchItems.Record(ctx, int64(items), attrs)
}
