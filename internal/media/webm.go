package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Matroska element IDs, marker bits included.
const (
	idEBML          = 0x1A45DFA3
	idSegment       = 0x18538067
	idInfo          = 0x1549A966
	idTimecodeScale = 0x2AD7B1
	idDuration      = 0x4489
	idCluster       = 0x1F43B675
	idTimecode      = 0xE7
	idBlockGroup    = 0xA0
	idBlock         = 0xA1
	idSimpleBlock   = 0xA3
)

const defaultTimecodeScale = 1000000 // ns per tick

// unknownSize marks a master element whose end is the end of its parent.
const unknownSize = math.MaxUint64

var errShortEBML = errors.New("truncated ebml element")

// webmDuration reads Segment/Info/Duration. Live recorders such as
// MediaRecorder leave it out, so without it the last block timestamp is used.
// Masters are walked in place rather than by size, which also covers the
// unknown-size Segment and Cluster those recorders write.
func webmDuration(payload []byte) (time.Duration, error) {
	var (
		scale    uint64 = defaultTimecodeScale
		declared float64
		cluster  uint64
		last     int64
		blocks   int
		pos      int
	)

	if len(payload) < 4 || binary.BigEndian.Uint32(payload) != idEBML {
		return 0, fmt.Errorf("not an ebml document")
	}

walk:
	for pos < len(payload) {
		id, n, err := readElementID(payload[pos:])
		if err != nil {
			break
		}
		size, m, err := readVint(payload[pos+n:])
		if err != nil {
			break
		}
		start := pos + n + m

		switch id {
		case idSegment, idInfo, idCluster, idBlockGroup:
			pos = start
			continue
		}

		if size == unknownSize {
			break walk
		}
		end := start + int(size)
		if size > uint64(len(payload)) || end > len(payload) {
			// A recording cut short may end mid-block; keep what was read.
			end = len(payload)
		}
		data := payload[start:end]

		switch id {
		case idTimecodeScale:
			scale = readUint(data)
		case idDuration:
			declared, err = readFloat(data)
			if err != nil {
				return 0, err
			}
		case idTimecode:
			cluster = readUint(data)
		case idSimpleBlock, idBlock:
			rel, err := blockTimecode(data)
			if err != nil {
				break
			}
			if t := int64(cluster) + int64(rel); t > last {
				last = t
			}
			blocks++
		}
		pos = end
	}

	if scale == 0 {
		scale = defaultTimecodeScale
	}
	if declared > 0 {
		return time.Duration(declared * float64(scale)), nil
	}
	if blocks == 0 {
		return 0, fmt.Errorf("webm has neither a duration nor any blocks")
	}
	return time.Duration(last) * time.Duration(scale), nil
}

// readElementID returns an element ID with its length marker kept.
func readElementID(b []byte) (uint64, int, error) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0, errShortEBML
	}
	n := 1
	for mask := byte(0x80); b[0]&mask == 0 && n < 4; mask >>= 1 {
		n++
	}
	if len(b) < n {
		return 0, 0, errShortEBML
	}
	var id uint64
	for _, c := range b[:n] {
		id = id<<8 | uint64(c)
	}
	return id, n, nil
}

// readVint decodes a size or track number. An all-ones value is returned
// as unknownSize.
func readVint(b []byte) (uint64, int, error) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0, errShortEBML
	}
	n := 1
	mask := byte(0x80)
	for b[0]&mask == 0 {
		mask >>= 1
		n++
	}
	if len(b) < n {
		return 0, 0, errShortEBML
	}

	v := uint64(b[0] & (mask - 1))
	allOnes := v == uint64(mask-1)
	for _, c := range b[1:n] {
		v = v<<8 | uint64(c)
		allOnes = allOnes && c == 0xFF
	}
	if allOnes {
		return unknownSize, n, nil
	}
	return v, n, nil
}

func readUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func readFloat(b []byte) (float64, error) {
	switch len(b) {
	case 0:
		return 0, nil
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("ebml float of %d bytes", len(b))
}

// blockTimecode returns a block's timecode relative to its cluster.
func blockTimecode(b []byte) (int16, error) {
	_, n, err := readVint(b)
	if err != nil {
		return 0, err
	}
	if len(b) < n+2 {
		return 0, errShortEBML
	}
	return int16(binary.BigEndian.Uint16(b[n:])), nil
}
