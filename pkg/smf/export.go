package smf

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/zurustar/miditui/pkg/midi"
)

// event priorities: events at the same tick are emitted in this order.
const (
	priorityTrackName     = 0
	priorityTimeSignature = 1
	priorityProgramChange = 1
	priorityTempo         = 2
	priorityVolume        = 2
	priorityPan           = 3
	priorityNoteOn        = 10
	priorityNoteOff       = 11
	priorityEndOfTrack    = 255
)

type timedEvent struct {
	tick     uint32
	priority uint8
	body     []byte
}

func noteOnBody(channel, pitch, velocity uint8) []byte {
	return []byte{0x90 | (channel & 0x0F), pitch, velocity}
}

func noteOffBody(channel, pitch uint8) []byte {
	return []byte{0x80 | (channel & 0x0F), pitch, 0}
}

func programChangeBody(channel, program uint8) []byte {
	return []byte{0xC0 | (channel & 0x0F), program}
}

func controlChangeBody(channel, controller, value uint8) []byte {
	return []byte{0xB0 | (channel & 0x0F), controller, value}
}

func setTempoBody(microsecondsPerBeat uint32) []byte {
	return []byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}
}

func timeSignatureBody(numerator, denominatorPower uint8) []byte {
	return []byte{0xFF, 0x58, 0x04, numerator, denominatorPower, 24, 8}
}

func trackNameBody(name string) []byte {
	body := []byte{0xFF, 0x03}
	body = WriteVLQ(body, uint32(len(name)))
	return append(body, []byte(name)...)
}

func endOfTrackBody() []byte {
	return []byte{0xFF, 0x2F, 0x00}
}

// denominatorToPower maps a time-signature denominator to its MIDI
// power-of-two encoding, defaulting to quarter-note (2) for unknown values.
func denominatorToPower(denom uint8) uint8 {
	switch denom {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	case 32:
		return 5
	default:
		return 2
	}
}

func buildTrackData(events []timedEvent) []byte {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].priority < events[j].priority
	})
	var buf []byte
	var lastTick uint32
	for _, ev := range events {
		delta := ev.tick - lastTick
		if ev.tick < lastTick {
			delta = 0
		}
		buf = WriteVLQ(buf, delta)
		buf = append(buf, ev.body...)
		lastTick = ev.tick
	}
	return buf
}

func writeTrackChunk(w io.Writer, data []byte) error {
	if _, err := w.Write([]byte("MTrk")); err != nil {
		return err
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// Export writes project as a Format-1 Standard MIDI File to path: track 0
// carries tempo/time-signature meta events, tracks 1..N carry one project
// track each.
func Export(project *midi.Project, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	numTracks := uint16(1 + project.TrackCount())
	if _, err := w.Write([]byte("MThd")); err != nil {
		return err
	}
	var header [10]byte
	binary.BigEndian.PutUint32(header[0:4], 6)
	binary.BigEndian.PutUint16(header[4:6], 1)
	binary.BigEndian.PutUint16(header[6:8], numTracks)
	binary.BigEndian.PutUint16(header[8:10], uint16(midi.TicksPerBeat))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	// Track 0: tempo / time signature / name.
	microsecondsPerBeat := uint32(60_000_000 / project.Tempo)
	tempoEvents := []timedEvent{
		{0, priorityTrackName, trackNameBody(project.Name)},
		{0, priorityTimeSignature, timeSignatureBody(project.TimeSigNumerator, denominatorToPower(project.TimeSigDenominator))},
		{0, priorityTempo, setTempoBody(microsecondsPerBeat)},
		{project.DurationTicks(), priorityEndOfTrack, endOfTrackBody()},
	}
	if err := writeTrackChunk(w, buildTrackData(tempoEvents)); err != nil {
		return err
	}

	// Tracks 1..N: one per project track.
	for _, t := range project.Tracks() {
		var events []timedEvent
		events = append(events,
			timedEvent{0, priorityTrackName, trackNameBody(t.Name)},
			timedEvent{0, priorityProgramChange, programChangeBody(t.Channel, t.Program)},
			timedEvent{0, priorityVolume, controlChangeBody(t.Channel, 7, t.Volume)},
			timedEvent{0, priorityPan, controlChangeBody(t.Channel, 10, t.Pan)},
		)
		for _, n := range t.Notes() {
			events = append(events,
				timedEvent{n.StartTick, priorityNoteOn, noteOnBody(t.Channel, n.Pitch, n.Velocity)},
				timedEvent{n.EndTick(), priorityNoteOff, noteOffBody(t.Channel, n.Pitch)},
			)
		}
		trackEnd := t.DurationTicks()
		if trackEnd < 1 {
			trackEnd = 1
		}
		events = append(events, timedEvent{trackEnd, priorityEndOfTrack, endOfTrackBody()})
		if err := writeTrackChunk(w, buildTrackData(events)); err != nil {
			return err
		}
	}

	return w.Flush()
}
