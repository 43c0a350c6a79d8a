package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// mockSynthesizer produces deterministic results without an engine
// process, for development and tests.
type mockSynthesizer struct{}

func NewMockSynthesizer() Synthesizer {
	return mockSynthesizer{}
}

func (mockSynthesizer) SynthesizeOne(ctx context.Context, req Request, text string) (Single, error) {
	if err := ctx.Err(); err != nil {
		return Single{}, err
	}
	single := Single{AudioURL: "/api/audio/" + uuid.NewString()}
	if req.Translated() {
		single.OriginalText = text
		single.TranslatedText = mockTranslate(text, req.TranslateTo)
	}
	return single, nil
}

func (m mockSynthesizer) SynthesizeBatch(ctx context.Context, req Request, texts []string) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{Results: make([]ItemResult, 0, len(texts))}
	for i, text := range texts {
		item := ItemResult{
			Index:    i,
			Success:  true,
			Text:     text,
			AudioURL: "/api/audio/" + uuid.NewString(),
		}
		if req.Translated() {
			item.OriginalText = text
			item.TranslatedText = mockTranslate(text, req.TranslateTo)
			item.Text = item.TranslatedText
		}
		result.Results = append(result.Results, item)
		result.Successful++
	}
	return result, nil
}

func (mockSynthesizer) FetchAudio(ctx context.Context, id string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return io.NopCloser(bytes.NewReader(nil)), "audio/wav", nil
}

func mockTranslate(text, lang string) string {
	return "[" + lang + "] " + text
}

// mockExtractor chunks the raw document bytes locally so the reader
// feature can be exercised end to end without an extraction service.
type mockExtractor struct{}

func NewMockExtractor() Extractor {
	return mockExtractor{}
}

func (mockExtractor) Extract(ctx context.Context, document io.Reader, filename string, opts ExtractOptions) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	data, err := io.ReadAll(document)
	if err != nil {
		return Extraction{}, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Extraction{}, fmt.Errorf("no text could be extracted from %s", filename)
	}

	separator := ". "
	if opts.Method == "paragraphs" {
		separator = "\n\n"
	}

	var chunks []string
	var current strings.Builder
	for _, piece := range strings.Split(text, separator) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(piece) > opts.MaxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(piece)
		current.WriteString(" ")
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	avg := 0
	if len(chunks) > 0 {
		avg = total / len(chunks)
	}
	return Extraction{
		Filename:     filename,
		Chunks:       chunks,
		TotalChunks:  len(chunks),
		TotalChars:   len(text),
		AvgChunkSize: avg,
	}, nil
}

// mockTransformer echoes plausible durations back without touching the
// audio.
type mockTransformer struct{}

func NewMockTransformer() Transformer {
	return mockTransformer{}
}

func (mockTransformer) Transform(ctx context.Context, audio io.Reader, filename string, opts TransformOptions) (Transformation, error) {
	if err := ctx.Err(); err != nil {
		return Transformation{}, err
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return Transformation{}, err
	}
	if len(data) == 0 {
		return Transformation{}, fmt.Errorf("empty audio upload: %s", filename)
	}
	// Pretend one second of source audio per 32 KiB uploaded.
	original := float64(len(data)) / 32768.0
	return Transformation{
		AudioURL:            "/api/audio/" + uuid.NewString(),
		OriginalDuration:    original,
		TransformedDuration: original / opts.Speed,
	}, nil
}
