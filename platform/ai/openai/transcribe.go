package openai

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Transcriber calls the audio transcription endpoint.
type Transcriber struct {
	config Config
	client *http.Client
}

// NewTranscriber builds a Transcriber. Model defaults to whisper-1.
func NewTranscriber(cfg Config) *Transcriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Transcriber{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Transcribe uploads audio and returns the plain-text transcript.
func (t *Transcriber) Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("model", t.config.Model); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := post(ctx, t.client, t.config, "/audio/transcriptions", writer.FormDataContentType(), &buf, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}
