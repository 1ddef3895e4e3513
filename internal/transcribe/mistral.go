package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vrec-go/internal/vr"
)

const (
	DefaultMistralBaseURL = "https://api.mistral.ai/v1"
	DefaultMistralModel   = "voxtral-mini-latest"

	requestTimeout = 5 * time.Minute
	maxErrorBody   = 512
)

// MistralTranscriber posts recordings to Mistral's audio transcription
// endpoint as multipart form uploads.
type MistralTranscriber struct {
	client   *resty.Client
	model    string
	language string
}

// MistralOptions configures a MistralTranscriber. Empty fields take the
// package defaults.
type MistralOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// NewMistralTranscriber creates a client for the transcription API.
func NewMistralTranscriber(opts MistralOptions) (*MistralTranscriber, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("mistral api key not set: %w", vr.ErrInvalidInput)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMistralBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultMistralModel
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetAuthToken(opts.APIKey).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", "vrec")

	return &MistralTranscriber{
		client:   client,
		model:    opts.Model,
		language: opts.Language,
	}, nil
}

// transcriptionResponse is the subset of the API response we read.
type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads payload and returns the recognized text.
func (m *MistralTranscriber) Transcribe(ctx context.Context, payload []byte, format, filename string) (string, error) {
	form := map[string]string{"model": m.model}
	if m.language != "" {
		form["language"] = m.language
	}

	var result transcriptionResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(payload)).
		SetFormData(form).
		SetResult(&result).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("calling transcription api: %w", err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return "", fmt.Errorf("transcription api error (HTTP %d): %s", resp.StatusCode(), body)
	}

	return strings.TrimSpace(result.Text), nil
}

var _ vr.Transcriber = (*MistralTranscriber)(nil)
