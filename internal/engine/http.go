package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// HTTPSynthesizer talks to the generation engine over its JSON API.
type HTTPSynthesizer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSynthesizer(endpoint string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	VoiceID     string   `json:"voice_id"`
	Text        string   `json:"text,omitempty"`
	Texts       []string `json:"texts,omitempty"`
	Language    string   `json:"language"`
	TranslateTo string   `json:"translate_to"`
	SourceLang  string   `json:"source_lang"`
}

type synthesizeResponse struct {
	Success        bool   `json:"success"`
	AudioURL       string `json:"audio_url"`
	OriginalText   string `json:"original_text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

type batchItemResponse struct {
	Index          int    `json:"index"`
	Success        bool   `json:"success"`
	Text           string `json:"text"`
	OriginalText   string `json:"original_text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	Error          string `json:"error,omitempty"`
}

type batchResponse struct {
	Results    []batchItemResponse `json:"results"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Error      string              `json:"error,omitempty"`
}

func (s *HTTPSynthesizer) SynthesizeOne(ctx context.Context, req Request, text string) (Single, error) {
	payload := synthesizeRequest{
		VoiceID:     req.VoiceID,
		Text:        text,
		Language:    req.Language,
		TranslateTo: req.TranslateTo,
		SourceLang:  req.SourceLang,
	}
	var resp synthesizeResponse
	if err := s.postJSON(ctx, "/api/synthesize", payload, &resp); err != nil {
		return Single{}, err
	}
	if !resp.Success {
		return Single{}, fmt.Errorf("engine rejected synthesis: %s", resp.Error)
	}
	return Single{
		AudioURL:       resp.AudioURL,
		OriginalText:   resp.OriginalText,
		TranslatedText: resp.TranslatedText,
	}, nil
}

func (s *HTTPSynthesizer) SynthesizeBatch(ctx context.Context, req Request, texts []string) (BatchResult, error) {
	payload := synthesizeRequest{
		VoiceID:     req.VoiceID,
		Texts:       texts,
		Language:    req.Language,
		TranslateTo: req.TranslateTo,
		SourceLang:  req.SourceLang,
	}
	var resp batchResponse
	if err := s.postJSON(ctx, "/api/batch-synthesize", payload, &resp); err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{
		Results:    make([]ItemResult, 0, len(resp.Results)),
		Successful: resp.Successful,
		Failed:     resp.Failed,
	}
	for _, item := range resp.Results {
		result.Results = append(result.Results, ItemResult{
			Index:          item.Index,
			Success:        item.Success,
			Text:           item.Text,
			OriginalText:   item.OriginalText,
			TranslatedText: item.TranslatedText,
			AudioURL:       item.AudioURL,
			Error:          item.Error,
		})
	}
	return result, nil
}

// FetchAudio streams a generated audio file from the engine.
func (s *HTTPSynthesizer) FetchAudio(ctx context.Context, id string) (io.ReadCloser, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/api/audio/"+id, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("engine returned status %s for audio %s", resp.Status, id)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (s *HTTPSynthesizer) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("engine returned status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPExtractor uploads a document to the extraction collaborator and
// returns its chunked text.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPExtractor(endpoint string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type extractResponse struct {
	Success      bool     `json:"success"`
	Filename     string   `json:"filename"`
	Chunks       []string `json:"chunks"`
	TotalChunks  int      `json:"total_chunks"`
	TotalChars   int      `json:"total_chars"`
	AvgChunkSize int      `json:"avg_chunk_size"`
	Error        string   `json:"error,omitempty"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, document io.Reader, filename string, opts ExtractOptions) (Extraction, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("pdf", filename)
	if err != nil {
		return Extraction{}, err
	}
	if _, err := io.Copy(part, document); err != nil {
		return Extraction{}, err
	}
	if err := writer.WriteField("chunk_method", opts.Method); err != nil {
		return Extraction{}, err
	}
	if err := writer.WriteField("max_chars", strconv.Itoa(opts.MaxChars)); err != nil {
		return Extraction{}, err
	}
	if err := writer.Close(); err != nil {
		return Extraction{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/pdf/extract", &buf)
	if err != nil {
		return Extraction{}, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Extraction{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Extraction{}, fmt.Errorf("extractor returned status %s", resp.Status)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Extraction{}, err
	}
	if !decoded.Success {
		return Extraction{}, fmt.Errorf("extraction failed: %s", decoded.Error)
	}
	return Extraction{
		Filename:     decoded.Filename,
		Chunks:       decoded.Chunks,
		TotalChunks:  decoded.TotalChunks,
		TotalChars:   decoded.TotalChars,
		AvgChunkSize: decoded.AvgChunkSize,
	}, nil
}

// HTTPTransformer sends audio to the voice-transformation collaborator.
type HTTPTransformer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPTransformer(endpoint string, timeout time.Duration) *HTTPTransformer {
	return &HTTPTransformer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type transformResponse struct {
	Success             bool    `json:"success"`
	AudioURL            string  `json:"audio_url"`
	OriginalDuration    float64 `json:"original_duration"`
	TransformedDuration float64 `json:"transformed_duration"`
	Error               string  `json:"error,omitempty"`
}

func (t *HTTPTransformer) Transform(ctx context.Context, audio io.Reader, filename string, opts TransformOptions) (Transformation, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return Transformation{}, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return Transformation{}, err
	}
	fields := map[string]string{
		"target_voice_id": opts.TargetVoiceID,
		"speed":           strconv.FormatFloat(opts.Speed, 'f', -1, 64),
		"pitch":           strconv.FormatFloat(opts.Pitch, 'f', -1, 64),
		"emotion":         opts.Emotion,
		"intensity":       strconv.FormatFloat(opts.Intensity, 'f', -1, 64),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return Transformation{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Transformation{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/api/voice-transform", &buf)
	if err != nil {
		return Transformation{}, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Transformation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Transformation{}, fmt.Errorf("transformer returned status %s", resp.Status)
	}

	var decoded transformResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Transformation{}, err
	}
	if !decoded.Success {
		return Transformation{}, fmt.Errorf("transformation failed: %s", decoded.Error)
	}
	return Transformation{
		AudioURL:            decoded.AudioURL,
		OriginalDuration:    decoded.OriginalDuration,
		TransformedDuration: decoded.TransformedDuration,
	}, nil
}
