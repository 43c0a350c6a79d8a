package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSynthesizeOneRequestShape(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(synthesizeResponse{
			Success:        true,
			AudioURL:       "/api/audio/abc",
			OriginalText:   "Bonjour",
			TranslatedText: "Hello",
		})
	}))
	defer srv.Close()

	synth := NewHTTPSynthesizer(srv.URL, 5*time.Second)
	req := Request{VoiceID: "v1", Language: "en", TranslateTo: "en", SourceLang: "auto"}
	single, err := synth.SynthesizeOne(context.Background(), req, "Bonjour")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VoiceID != "v1" || got.Text != "Bonjour" || got.TranslateTo != "en" || got.SourceLang != "auto" {
		t.Fatalf("unexpected wire request: %+v", got)
	}
	if len(got.Texts) != 0 {
		t.Fatalf("singleton call must not carry a text list: %+v", got)
	}
	if single.AudioURL != "/api/audio/abc" || single.TranslatedText != "Hello" {
		t.Fatalf("unexpected result: %+v", single)
	}
}

func TestSynthesizeBatchKeepsPerItemOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/batch-synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(batchResponse{
			Results: []batchItemResponse{
				{Index: 0, Success: true, Text: "Hello", AudioURL: "/api/audio/a"},
				{Index: 1, Success: false, Text: "World", Error: "synthesis blew up"},
			},
			Successful: 1,
			Failed:     1,
		})
	}))
	defer srv.Close()

	synth := NewHTTPSynthesizer(srv.URL, 5*time.Second)
	req := Request{VoiceID: "v1", Language: "en", TranslateTo: "original"}
	result, err := synth.SynthesizeBatch(context.Background(), req, []string{"Hello", "World"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	if result.Results[1].Success || result.Results[1].Error != "synthesis blew up" {
		t.Fatalf("expected item failure preserved, got %+v", result.Results[1])
	}
	if result.Successful != 1 || result.Failed != 1 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
}

func TestSynthesizeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"voice not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	synth := NewHTTPSynthesizer(srv.URL, 5*time.Second)
	if _, err := synth.SynthesizeBatch(context.Background(), Request{}, []string{"a", "b"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestExtractMultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("chunk_method") != "paragraphs" {
			t.Errorf("unexpected chunk_method %q", r.FormValue("chunk_method"))
		}
		if r.FormValue("max_chars") != "800" {
			t.Errorf("unexpected max_chars %q", r.FormValue("max_chars"))
		}
		if _, header, err := r.FormFile("pdf"); err != nil || header.Filename != "book.pdf" {
			t.Errorf("expected pdf upload, got %v", err)
		}
		json.NewEncoder(w).Encode(extractResponse{
			Success:      true,
			Filename:     "book.pdf",
			Chunks:       []string{"chunk one", "chunk two"},
			TotalChunks:  2,
			TotalChars:   19,
			AvgChunkSize: 9,
		})
	}))
	defer srv.Close()

	ex := NewHTTPExtractor(srv.URL, 5*time.Second)
	extraction, err := ex.Extract(context.Background(), strings.NewReader("%PDF-1.4 fake"), "book.pdf",
		ExtractOptions{Method: "paragraphs", MaxChars: 800})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extraction.TotalChunks != 2 || len(extraction.Chunks) != 2 {
		t.Fatalf("unexpected extraction: %+v", extraction)
	}
}

func TestTransformFailureBodyBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transformResponse{Success: false, Error: "unsupported emotion"})
	}))
	defer srv.Close()

	tr := NewHTTPTransformer(srv.URL, 5*time.Second)
	_, err := tr.Transform(context.Background(), strings.NewReader("RIFF"), "clip.wav",
		TransformOptions{TargetVoiceID: "v1", Speed: 1, Pitch: 1, Emotion: "spooky", Intensity: 0.5})
	if err == nil || !strings.Contains(err.Error(), "unsupported emotion") {
		t.Fatalf("expected failure surfaced, got %v", err)
	}
}
