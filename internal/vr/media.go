package vr

import "context"

// MediaInfo is what a Prober learns from a payload.
type MediaInfo struct {
	Format   string  // MIME type
	Duration float64 // seconds
}

// Prober inspects an uploaded payload. format may be empty, in which case
// the prober detects it. Unsupported payloads yield ErrInvalidInput.
type Prober interface {
	Probe(payload []byte, format string) (*MediaInfo, error)
}

// Transcriber turns speech into text. filename is only a hint for the
// remote service.
type Transcriber interface {
	Transcribe(ctx context.Context, payload []byte, format, filename string) (string, error)
}
