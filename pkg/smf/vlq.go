// Package smf implements the Standard MIDI File codec: variable-length
// quantities, delta-time event streams, and Format 0/1 import/export at the
// project's fixed 480-tick resolution.
package smf

import "github.com/zurustar/miditui/pkg/errkind"

// WriteVLQ appends value encoded as a MIDI variable-length quantity: 7 bits
// of data per byte, most-significant bit set on every byte but the last.
// Zero encodes as the single byte 0x00. MIDI caps VLQ at 28 bits (0x0FFFFFFF).
func WriteVLQ(buf []byte, value uint32) []byte {
	if value == 0 {
		return append(buf, 0)
	}
	var groups []byte
	for value > 0 {
		groups = append(groups, byte(value&0x7F))
		value >>= 7
	}
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// ReadVLQ decodes a variable-length quantity starting at data[0], returning
// the value and the number of bytes consumed.
func ReadVLQ(data []byte) (value uint32, consumed int, err error) {
	for consumed = 0; consumed < len(data) && consumed < 5; consumed++ {
		b := data[consumed]
		value = (value << 7) | uint32(b&0x7F)
		if b&0x80 == 0 {
			return value, consumed + 1, nil
		}
	}
	return 0, 0, errkind.New(errkind.ParseError, "variable-length quantity truncated or too long")
}

// ScaleTicks rescales a delta time from a source file's ticks-per-beat
// resolution to the project's fixed TicksPerBeat, computed in 64 bits to
// avoid overflow for large source resolutions.
func ScaleTicks(sourceTicks, sourceTicksPerBeat, targetTicksPerBeat uint32) uint32 {
	if sourceTicksPerBeat == targetTicksPerBeat {
		return sourceTicks
	}
	return uint32((uint64(sourceTicks) * uint64(targetTicksPerBeat)) / uint64(sourceTicksPerBeat))
}
