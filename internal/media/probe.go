package media

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"vrec-go/internal/vr"
)

const (
	FormatWAV  = "audio/wav"
	FormatMP3  = "audio/mpeg"
	FormatOGG  = "audio/ogg"
	FormatWebM = "audio/webm"
)

// aliases maps the MIME spellings browsers and recorders produce onto the
// canonical format names stored with a record.
var aliases = map[string]string{
	"audio/wav":       FormatWAV,
	"audio/wave":      FormatWAV,
	"audio/x-wav":     FormatWAV,
	"audio/vnd.wave":  FormatWAV,
	"audio/mpeg":      FormatMP3,
	"audio/mp3":       FormatMP3,
	"audio/mpeg3":     FormatMP3,
	"audio/x-mp3":     FormatMP3,
	"audio/ogg":       FormatOGG,
	"application/ogg": FormatOGG,
	"audio/webm":      FormatWebM,
	"video/webm":      FormatWebM,
}

// Prober detects audio formats and measures durations of WAV, MP3, Ogg Opus
// and WebM payloads.
type Prober struct{}

// NewProber creates a Prober.
func NewProber() *Prober {
	return &Prober{}
}

// Probe returns the payload's canonical format and duration. When format is
// empty it is sniffed from the payload. Payloads of other formats, or that
// fail to parse, are rejected with ErrInvalidInput.
func (p *Prober) Probe(payload []byte, format string) (*vr.MediaInfo, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload: %w", vr.ErrInvalidInput)
	}

	if format == "" {
		format = Detect(payload)
	} else {
		format = Normalize(format)
	}

	var (
		d   time.Duration
		err error
	)
	switch format {
	case FormatWAV:
		d, err = wavDuration(payload)
	case FormatMP3:
		d, err = mp3Duration(payload)
	case FormatOGG:
		d, err = oggDuration(payload)
	case FormatWebM:
		d, err = webmDuration(payload)
	default:
		return nil, fmt.Errorf("cannot measure duration of %q: %w", format, vr.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w: %w", format, vr.ErrInvalidInput, err)
	}

	return &vr.MediaInfo{Format: format, Duration: d.Seconds()}, nil
}

// Detect sniffs the payload's format. It returns the canonical name for
// known audio types and the sniffed MIME type otherwise.
func Detect(payload []byte) string {
	// MP3 streams without an ID3 tag start directly with a frame sync.
	if len(payload) >= 2 && payload[0] == 0xFF && payload[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return Normalize(http.DetectContentType(payload))
}

// Normalize strips MIME parameters and maps known aliases to their
// canonical format.
func Normalize(format string) string {
	mt, _, err := mime.ParseMediaType(format)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(format))
	}
	if canonical, ok := aliases[mt]; ok {
		return canonical
	}
	return mt
}

func wavDuration(payload []byte) (time.Duration, error) {
	dec := wav.NewDecoder(bytes.NewReader(payload))
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("reading wav headers: %w", err)
	}
	if dec.AvgBytesPerSec == 0 {
		return 0, fmt.Errorf("wav header has no byte rate")
	}
	secs := float64(dec.PCMLen()) / float64(dec.AvgBytesPerSec)
	return time.Duration(secs * float64(time.Second)), nil
}

func mp3Duration(payload []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("decoding mp3: %w", err)
	}
	if dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("mp3 has no sample rate")
	}
	// Decoded output is 16-bit stereo: four bytes per sample frame.
	frames := dec.Length() / 4
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), nil
}

var _ vr.Prober = (*Prober)(nil)
