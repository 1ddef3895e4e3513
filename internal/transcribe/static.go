package transcribe

import (
	"context"

	"vrec-go/internal/vr"
)

// DemoText is what StaticTranscriber returns unless told otherwise.
const DemoText = "This is a demo transcription. Configure a transcription service to turn your recordings into text."

// StaticTranscriber returns fixed text for every recording. It needs no
// network access and is the default backend.
type StaticTranscriber struct {
	Text string
}

// NewStaticTranscriber creates a StaticTranscriber returning DemoText.
func NewStaticTranscriber() *StaticTranscriber {
	return &StaticTranscriber{Text: DemoText}
}

func (s *StaticTranscriber) Transcribe(ctx context.Context, payload []byte, format, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Text, nil
}

var _ vr.Transcriber = (*StaticTranscriber)(nil)
