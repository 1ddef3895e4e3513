package transcribe

import (
	"fmt"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

// NewTranscriberFromConfig creates the configured Transcriber. An empty type
// returns nil: transcription is disabled.
func NewTranscriberFromConfig(cfg config.TranscriptionConfig) (vr.Transcriber, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "static":
		return NewStaticTranscriber(), nil
	case "mistral":
		t, err := NewMistralTranscriber(MistralOptions{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transcription type: %q", cfg.Type)
	}
}
