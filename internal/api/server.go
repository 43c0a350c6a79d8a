package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxcraft-labs/voxcraft/internal/catalog"
	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/studio"
)

// maxUploadBytes bounds document and audio uploads.
const maxUploadBytes = 64 << 20

// Options wires the HTTP surface's collaborators.
type Options struct {
	Studio  *studio.Studio
	Catalog *catalog.Catalog
	Audio   engine.AudioSource
	Metrics http.Handler
	Logger  *slog.Logger
	Ready   func() bool
	Healthy func() bool
}

// Server exposes the studio over HTTP.
type Server struct {
	studio  *studio.Studio
	catalog *catalog.Catalog
	audio   engine.AudioSource
	metrics http.Handler
	logger  *slog.Logger
	ready   func() bool
	healthy func() bool
}

func NewServer(opts Options) *Server {
	return &Server{
		studio:  opts.Studio,
		catalog: opts.Catalog,
		audio:   opts.Audio,
		metrics: opts.Metrics,
		logger:  opts.Logger.With(slog.String("component", "api")),
		ready:   opts.Ready,
		healthy: opts.Healthy,
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/voices", s.handleVoicesList)
	mux.HandleFunc("POST /api/voices", s.handleVoicesCreate)
	mux.HandleFunc("GET /api/voices/{id}", s.handleVoicesGet)
	mux.HandleFunc("DELETE /api/voices/{id}", s.handleVoicesDelete)

	mux.HandleFunc("POST /api/synthesize", s.handleSynthesize)

	mux.HandleFunc("POST /api/reader/extract", s.handleReaderExtract)
	mux.HandleFunc("GET /api/reader/worksheet", s.handleReaderWorksheet)
	mux.HandleFunc("POST /api/reader/selection", s.handleReaderSelection)
	mux.HandleFunc("POST /api/reader/synthesize", s.handleReaderSynthesize)

	mux.HandleFunc("POST /api/transform", s.handleTransform)

	mux.HandleFunc("GET /api/studio/{feature}", s.handleStudioState)
	mux.HandleFunc("GET /api/history/{feature}", s.handleHistoryGet)
	mux.HandleFunc("DELETE /api/history/{feature}", s.handleHistoryClear)

	mux.HandleFunc("GET /api/audio/{id}", s.handleAudio)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.healthy != nil && !s.healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": studio.Languages()})
}

func (s *Server) handleVoicesList(w http.ResponseWriter, r *http.Request) {
	voices, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if voices == nil {
		voices = []catalog.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (s *Server) handleVoicesCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("sample")
	if err != nil {
		writeError(w, http.StatusBadRequest, "sample file is required")
		return
	}
	defer file.Close()

	voice, err := s.catalog.Add(r.Context(), r.FormValue("name"), r.FormValue("language"), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, voice)
}

func (s *Server) handleVoicesGet(w http.ResponseWriter, r *http.Request) {
	voice, err := s.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voice)
}

func (s *Server) handleVoicesDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type dispatchResponse struct {
	Success bool `json:"success"`
	studio.DispatchOutcome
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req studio.SynthesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := s.studio.Synthesize(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Success: true, DispatchOutcome: outcome})
}

func (s *Server) handleReaderExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file is required")
		return
	}
	defer file.Close()

	maxChars := 0
	if raw := r.FormValue("max_chars"); raw != "" {
		maxChars, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_chars must be an integer")
			return
		}
	}

	state, err := s.studio.ExtractDocument(r.Context(), file, header.Filename, r.FormValue("chunk_method"), maxChars)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type worksheetResponse struct {
	studio.SessionState
	Filename     string `json:"filename,omitempty"`
	TotalChunks  int    `json:"total_chunks"`
	TotalChars   int    `json:"total_chars"`
	AvgChunkSize int    `json:"avg_chunk_size"`
}

func (s *Server) handleReaderWorksheet(w http.ResponseWriter, r *http.Request) {
	state, err := s.studio.State(studio.FeatureReader)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats := s.studio.ReaderStats()
	writeJSON(w, http.StatusOK, worksheetResponse{
		SessionState: state,
		Filename:     stats.Filename,
		TotalChunks:  stats.TotalChunks,
		TotalChars:   stats.TotalChars,
		AvgChunkSize: stats.AvgChunkSize,
	})
}

type selectionRequest struct {
	Op    string `json:"op"` // toggle, all, none
	Index int    `json:"index"`
}

func (s *Server) handleReaderSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	selected, err := s.studio.UpdateSelection(studio.FeatureReader, req.Op, req.Index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if selected == nil {
		selected = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"selected": selected})
}

func (s *Server) handleReaderSynthesize(w http.ResponseWriter, r *http.Request) {
	var req studio.ReaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := s.studio.SynthesizeReader(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Success: true, DispatchOutcome: outcome})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	req := studio.TransformRequest{
		Filename:      header.Filename,
		TargetVoiceID: r.FormValue("target_voice_id"),
		Emotion:       r.FormValue("emotion"),
	}
	if req.Speed, err = parseFloatField(r, "speed"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Pitch, err = parseFloatField(r, "pitch"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Intensity, err = parseFloatField(r, "intensity"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.studio.Transform(r.Context(), file, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"correlation_id":       outcome.CorrelationID,
		"audio_url":            outcome.AudioURL,
		"original_duration":    outcome.OriginalDuration,
		"transformed_duration": outcome.TransformedDuration,
	})
}

func (s *Server) handleStudioState(w http.ResponseWriter, r *http.Request) {
	state, err := s.studio.State(r.PathValue("feature"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	full := r.URL.Query().Get("full") == "true"
	entries, elided, err := s.studio.History(r.PathValue("feature"), full)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"elided":  elided,
	})
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	confirm := r.URL.Query().Get("confirm") == "true"
	if err := s.studio.ClearHistory(r.Context(), r.PathValue("feature"), confirm); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := s.audio.FetchAudio(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("audio stream interrupted", slog.String("error", err.Error()))
	}
}

func parseFloatField(r *http.Request, name string) (float64, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return value, nil
}

// writeError maps domain errors onto HTTP status codes. Anything
// unrecognized is treated as a collaborator failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrInvalid),
		errors.Is(err, studio.ErrNoSelection),
		errors.Is(err, studio.ErrConfirmRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, studio.ErrUnknownFeature), errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, studio.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
