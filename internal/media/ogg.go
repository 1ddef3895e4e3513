package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// opusGranuleRate is the Opus granule clock, independent of the input
// sample rate recorded in the header.
const opusGranuleRate = 48000

// oggDuration measures an Ogg Opus stream from the granule position of its
// last page, less the encoder pre-skip.
func oggDuration(payload []byte) (time.Duration, error) {
	reader, header, err := oggreader.NewWith(bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("reading ogg opus header: %w", err)
	}

	var (
		granule uint64
		pages   int
	)
	for {
		_, page, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading ogg page %d: %w", pages+1, err)
		}
		pages++
		// Pages that end no packet carry a granule of -1.
		if page.GranulePosition != ^uint64(0) {
			granule = page.GranulePosition
		}
	}
	if pages == 0 {
		return 0, fmt.Errorf("ogg stream has no pages after the header")
	}

	skip := uint64(header.PreSkip)
	if granule <= skip {
		return 0, nil
	}
	secs := float64(granule-skip) / opusGranuleRate
	return time.Duration(secs * float64(time.Second)), nil
}
