package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"vrec-go/internal/vr"
)

// makeOpusOgg writes frames 20ms Opus packets into an Ogg stream.
func makeOpusOgg(t *testing.T, frames int) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, 48000, 2)
	if err != nil {
		t.Fatalf("creating ogg writer: %v", err)
	}
	for i := 0; i < frames; i++ {
		pkt := &rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: uint16(i), Timestamp: uint32(i * 960)},
			Payload: []byte{0xFC, 0xFF, 0xFE},
		}
		if err := w.WriteRTP(pkt); err != nil {
			t.Fatalf("writing packet %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing ogg writer: %v", err)
	}
	return buf.Bytes()
}

func TestProber_ProbeOgg(t *testing.T) {
	tests := []struct {
		name     string
		frames   int
		format   string
		wantSecs float64
	}{
		{name: "five seconds detected", frames: 250, wantSecs: 4.95},
		{name: "one second declared", frames: 50, format: "audio/ogg; codecs=opus", wantSecs: 0.95},
	}

	p := NewProber()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := p.Probe(makeOpusOgg(t, tt.frames), tt.format)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if info.Format != FormatOGG {
				t.Errorf("Format = %q, want %q", info.Format, FormatOGG)
			}
			// Pre-skip trims up to 80ms from the stream.
			if math.Abs(info.Duration-tt.wantSecs) > 0.1 {
				t.Errorf("Duration = %v, want about %v", info.Duration, tt.wantSecs)
			}
		})
	}
}

func TestOggDuration_HeaderOnly(t *testing.T) {
	payload := makeOpusOgg(t, 0)
	if _, _, err := oggreader.NewWith(bytes.NewReader(payload)); err != nil {
		t.Fatalf("fixture header unreadable: %v", err)
	}

	d, err := oggDuration(payload)
	if err != nil {
		t.Fatalf("oggDuration() error = %v", err)
	}
	if d != 0 {
		t.Errorf("oggDuration() = %v, want 0", d)
	}
}

func ebmlID(id uint32) []byte {
	b := binary.BigEndian.AppendUint32(nil, id)
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// element encodes an EBML element with an eight-byte size.
func element(id uint32, children ...[]byte) []byte {
	body := bytes.Join(children, nil)
	size := binary.BigEndian.AppendUint64(nil, uint64(len(body)))
	size[0] = 0x01
	return append(append(ebmlID(id), size...), body...)
}

// unsized encodes a master element whose size is left unknown, the way live
// recorders write Segment and Cluster.
func unsized(id uint32, children ...[]byte) []byte {
	head := append(ebmlID(id), 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	return append(head, bytes.Join(children, nil)...)
}

func uintElement(id uint32, v uint64) []byte {
	return element(id, binary.BigEndian.AppendUint64(nil, v))
}

func float64Element(id uint32, v float64) []byte {
	return element(id, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

func float32Element(id uint32, v float32) []byte {
	return element(id, binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

func simpleBlock(rel int16) []byte {
	body := []byte{0x81}
	body = binary.BigEndian.AppendUint16(body, uint16(rel))
	body = append(body, 0x80, 0x00)
	return element(idSimpleBlock, body)
}

func webmHeader() []byte {
	return element(idEBML, element(0x4282, []byte("webm")))
}

func cluster(tc uint64, blocks ...int16) []byte {
	children := [][]byte{uintElement(idTimecode, tc)}
	for _, b := range blocks {
		children = append(children, simpleBlock(b))
	}
	return element(idCluster, children...)
}

func TestProber_ProbeWebM(t *testing.T) {
	recorded := append(webmHeader(), unsized(idSegment,
		element(0x1654AE6B, element(0xAE, uintElement(0xD7, 1))), // Tracks
		unsized(idCluster, uintElement(idTimecode, 0), simpleBlock(0), simpleBlock(20), simpleBlock(40)),
		unsized(idCluster, uintElement(idTimecode, 2000), simpleBlock(0), simpleBlock(980)),
	)...)

	tests := []struct {
		name     string
		payload  []byte
		format   string
		wantSecs float64
	}{
		{
			name: "declared duration",
			payload: append(webmHeader(), element(idSegment,
				element(idInfo, uintElement(idTimecodeScale, 1000000), float64Element(idDuration, 5000)),
				cluster(0, 0),
			)...),
			wantSecs: 5,
		},
		{
			name: "four byte duration",
			payload: append(webmHeader(), element(idSegment,
				element(idInfo, float32Element(idDuration, 2500)),
			)...),
			format:   "audio/webm;codecs=opus",
			wantSecs: 2.5,
		},
		{
			name:     "live recording without duration",
			payload:  recorded,
			wantSecs: 2.98,
		},
		{
			name:     "cut short inside the last block",
			payload:  recorded[:len(recorded)-1],
			wantSecs: 2.98,
		},
		{
			name: "block group",
			payload: append(webmHeader(), element(idSegment,
				element(idCluster, uintElement(idTimecode, 1000),
					element(idBlockGroup, element(idBlock, []byte{0x81, 0x01, 0xF4, 0x00, 0x00}))),
			)...),
			wantSecs: 1.5,
		},
		{
			name: "microsecond timecode scale",
			payload: append(webmHeader(), element(idSegment,
				element(idInfo, uintElement(idTimecodeScale, 1000)),
				cluster(3000000, 0),
			)...),
			format:   "video/webm",
			wantSecs: 3,
		},
	}

	p := NewProber()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := p.Probe(tt.payload, tt.format)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if info.Format != FormatWebM {
				t.Errorf("Format = %q, want %q", info.Format, FormatWebM)
			}
			if math.Abs(info.Duration-tt.wantSecs) > 1e-6 {
				t.Errorf("Duration = %v, want %v", info.Duration, tt.wantSecs)
			}
		})
	}
}

func TestProber_RejectsContainers(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		format  string
	}{
		{name: "webm header only", payload: webmHeader()},
		{name: "webm declared but not ebml", payload: []byte("RIFF...."), format: "audio/webm"},
		{name: "webm with odd float", payload: append(webmHeader(), element(idSegment, element(idInfo, element(idDuration, []byte{1, 2, 3})))...)},
		{name: "ogg capture pattern only", payload: []byte("OggS\x00\x02\x00\x00")},
		{name: "ogg declared but truncated", payload: []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00"), format: "audio/ogg"},
	}

	p := NewProber()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Probe(tt.payload, tt.format)
			if !errors.Is(err, vr.ErrInvalidInput) {
				t.Errorf("Probe() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
