package engine

import (
	"context"
	"io"
)

// Request carries the generation parameters shared by both dispatch
// paths. TranslateTo set to "original" disables the translation stage;
// SourceLang "auto" asks the translator to detect the source language.
type Request struct {
	VoiceID     string
	Language    string
	TranslateTo string
	SourceLang  string
}

// Translated reports whether a translation stage was requested.
func (r Request) Translated() bool {
	return r.TranslateTo != "" && r.TranslateTo != "original"
}

// Single is the engine response for a one-item generation call.
// Original/translated text fields are present only when translation
// was requested.
type Single struct {
	AudioURL       string
	OriginalText   string
	TranslatedText string
}

// ItemResult is one per-item outcome inside a batch response. Index
// refers to the position in the submitted text list.
type ItemResult struct {
	Index          int
	Success        bool
	Text           string
	OriginalText   string
	TranslatedText string
	AudioURL       string
	Error          string
}

// BatchResult aggregates per-item outcomes of one batch call. The
// engine guarantees one entry per submitted text, success or failure.
type BatchResult struct {
	Results    []ItemResult
	Successful int
	Failed     int
}

// Synthesizer is the speech-generation collaborator boundary.
type Synthesizer interface {
	SynthesizeOne(ctx context.Context, req Request, text string) (Single, error)
	SynthesizeBatch(ctx context.Context, req Request, texts []string) (BatchResult, error)
}

// AudioSource retrieves generated audio by id for serving to clients.
type AudioSource interface {
	FetchAudio(ctx context.Context, id string) (io.ReadCloser, string, error)
}

type ExtractOptions struct {
	Method   string // sentences, paragraphs
	MaxChars int
}

// Extraction is the document-extraction collaborator's chunked output.
type Extraction struct {
	Filename     string
	Chunks       []string
	TotalChunks  int
	TotalChars   int
	AvgChunkSize int
}

type Extractor interface {
	Extract(ctx context.Context, document io.Reader, filename string, opts ExtractOptions) (Extraction, error)
}

type TransformOptions struct {
	TargetVoiceID string
	Speed         float64 // [0.5, 2.0]
	Pitch         float64 // [0.5, 2.0]
	Emotion       string
	Intensity     float64 // [0, 1]
}

type Transformation struct {
	AudioURL            string
	OriginalDuration    float64
	TransformedDuration float64
}

type Transformer interface {
	Transform(ctx context.Context, audio io.Reader, filename string, opts TransformOptions) (Transformation, error)
}
