package smf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zurustar/miditui/pkg/errkind"
	"github.com/zurustar/miditui/pkg/midi"
)

type smfFormat uint16

const (
	formatSingleTrack smfFormat = 0
	formatParallel    smfFormat = 1
	formatSequential  smfFormat = 2
)

type rawTrack struct {
	events []rawEvent
}

type rawEvent struct {
	delta uint32
	// meta, or channel-voice status byte with channel folded in (high
	// nibble), or 0 for events we don't care about.
	status byte
	meta   byte // meta type, valid when status == 0xFF
	data   []byte
}

// activeNoteKey identifies an open (channel, pitch) pair during import.
type activeNoteKey struct {
	channel uint8
	pitch   uint8
}

type activeNote struct {
	startTick uint32
	velocity  uint8
}

// Import reads a Standard MIDI File and builds a Project. It accepts Format
// 0 and Format 1; Format 2 and SMPTE-timed files are rejected with
// errkind.UnsupportedFormat.
func Import(path string) (*midi.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, err, "reading %s", path)
	}

	format, numTracks, sourceTPB, body, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if format == formatSequential {
		return nil, errkind.New(errkind.UnsupportedFormat, "SMF Format 2 (sequential) is not supported")
	}

	rawTracks := make([]rawTrack, 0, numTracks)
	rest := body
	for i := uint16(0); i < numTracks; i++ {
		rt, remainder, err := parseTrackChunk(rest)
		if err != nil {
			return nil, err
		}
		rawTracks = append(rawTracks, rt)
		rest = remainder
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = "Imported MIDI"
	}
	project := midi.NewProject(name)

	tempo := midi.DefaultTempo
	timeSigNum := uint8(4)
	timeSigDenom := uint8(4)

	isFormat1 := format == formatParallel
	for idx, rt := range rawTracks {
		isTempoTrack := isFormat1 && idx == 0
		tracks, trackTempo, trackNum, trackDenom := parseTrack(rt, idx, sourceTPB, isTempoTrack)
		if trackTempo != 0 {
			tempo = trackTempo
		}
		if trackNum != 0 {
			timeSigNum = trackNum
			timeSigDenom = trackDenom
		}
		for _, t := range tracks {
			project.AddTrack(t)
		}
	}

	project.Tempo = tempo
	project.TimeSigNumerator = timeSigNum
	project.TimeSigDenominator = timeSigDenom

	if project.TrackCount() == 0 {
		project.AddTrack(midi.NewTrack("Track 1", 0))
	}

	return project, nil
}

func parseHeader(data []byte) (format smfFormat, numTracks uint16, ticksPerBeat uint32, rest []byte, err error) {
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return 0, 0, 0, nil, errkind.New(errkind.ParseError, "missing MThd header chunk")
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if length != 6 {
		return 0, 0, 0, nil, errkind.New(errkind.ParseError, "unexpected MThd length %d", length)
	}
	format = smfFormat(binary.BigEndian.Uint16(data[8:10]))
	numTracks = binary.BigEndian.Uint16(data[10:12])
	division := binary.BigEndian.Uint16(data[12:14])
	if division&0x8000 != 0 {
		return 0, 0, 0, nil, errkind.New(errkind.UnsupportedFormat, "SMPTE timecode timing is not supported")
	}
	ticksPerBeat = uint32(division)
	return format, numTracks, ticksPerBeat, data[14:], nil
}

func parseTrackChunk(data []byte) (rt rawTrack, rest []byte, err error) {
	if len(data) < 8 || string(data[0:4]) != "MTrk" {
		return rawTrack{}, nil, errkind.New(errkind.ParseError, "missing MTrk chunk")
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if uint32(len(data)-8) < length {
		return rawTrack{}, nil, errkind.New(errkind.ParseError, "truncated MTrk chunk")
	}
	chunk := data[8 : 8+length]
	rest = data[8+length:]

	var events []rawEvent
	var runningStatus byte
	for len(chunk) > 0 {
		delta, n, err := ReadVLQ(chunk)
		if err != nil {
			return rawTrack{}, nil, err
		}
		chunk = chunk[n:]
		if len(chunk) == 0 {
			break
		}
		b := chunk[0]
		if b == 0xFF {
			// Meta event: FF <type> <vlq length> <data>
			if len(chunk) < 2 {
				return rawTrack{}, nil, errkind.New(errkind.ParseError, "truncated meta event")
			}
			metaType := chunk[1]
			length, n2, err := ReadVLQ(chunk[2:])
			if err != nil {
				return rawTrack{}, nil, err
			}
			start := 2 + n2
			end := start + int(length)
			if end > len(chunk) {
				return rawTrack{}, nil, errkind.New(errkind.ParseError, "truncated meta event payload")
			}
			events = append(events, rawEvent{delta: delta, status: 0xFF, meta: metaType, data: chunk[start:end]})
			chunk = chunk[end:]
			continue
		}
		if b == 0xF0 || b == 0xF7 {
			// SysEx: F0/F7 <vlq length> <data>; skip entirely.
			length, n2, err := ReadVLQ(chunk[1:])
			if err != nil {
				return rawTrack{}, nil, err
			}
			end := 1 + n2 + int(length)
			if end > len(chunk) {
				return rawTrack{}, nil, errkind.New(errkind.ParseError, "truncated sysex event")
			}
			events = append(events, rawEvent{delta: delta, status: 0})
			chunk = chunk[end:]
			continue
		}

		var status byte
		var paramStart int
		if b&0x80 != 0 {
			status = b
			runningStatus = b
			paramStart = 1
		} else {
			status = runningStatus
			paramStart = 0
		}
		nParams := channelMessageParamCount(status)
		if paramStart+nParams > len(chunk) {
			return rawTrack{}, nil, errkind.New(errkind.ParseError, "truncated channel message")
		}
		events = append(events, rawEvent{delta: delta, status: status, data: chunk[paramStart : paramStart+nParams]})
		chunk = chunk[paramStart+nParams:]
	}
	return rawTrack{events: events}, rest, nil
}

func channelMessageParamCount(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 2
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// parseTrack converts one raw SMF track into per-channel project tracks,
// plus any tempo/time-signature it carried.
func parseTrack(rt rawTrack, trackIdx int, sourceTPB uint32, isTempoTrack bool) (tracks []*midi.Track, tempo uint32, timeSigNum, timeSigDenom uint8) {
	channelTracks := make(map[uint8]*midi.Track)
	active := make(map[activeNoteKey]activeNote)
	var trackName string
	var haveName bool

	var currentTick uint32
	for _, ev := range rt.events {
		currentTick += ScaleTicks(ev.delta, sourceTPB, midi.TicksPerBeat)

		if ev.status == 0xFF {
			switch ev.meta {
			case 0x03: // TrackName
				trackName = string(ev.data)
				haveName = true
			case 0x51: // SetTempo
				if len(ev.data) == 3 {
					usecPerBeat := uint32(ev.data[0])<<16 | uint32(ev.data[1])<<8 | uint32(ev.data[2])
					if usecPerBeat > 0 {
						tempo = 60_000_000 / usecPerBeat
					}
				}
			case 0x58: // TimeSignature
				if len(ev.data) >= 2 {
					timeSigNum = ev.data[0]
					timeSigDenom = uint8(1) << ev.data[1]
				}
			}
			continue
		}
		if ev.status == 0 {
			continue // sysex or unrecognized, already skipped
		}

		channel := ev.status & 0x0F
		trackFor := func() *midi.Track {
			t, ok := channelTracks[channel]
			if !ok {
				name := "Track " + strconv.Itoa(trackIdx+1)
				if haveName {
					name = trackName
				}
				t = midi.NewTrack(name, channel)
				channelTracks[channel] = t
			}
			return t
		}

		switch ev.status & 0xF0 {
		case 0x90: // NoteOn
			pitch, velocity := ev.data[0], ev.data[1]
			key := activeNoteKey{channel, pitch}
			if velocity > 0 {
				active[key] = activeNote{startTick: currentTick, velocity: velocity}
			} else if an, ok := active[key]; ok {
				delete(active, key)
				duration := currentTick - an.startTick
				if currentTick < an.startTick {
					duration = 0
				}
				if duration < 1 {
					duration = 1
				}
				trackFor().AddNote(midi.NewNote(pitch, an.velocity, an.startTick, duration))
			}
		case 0x80: // NoteOff
			pitch := ev.data[0]
			key := activeNoteKey{channel, pitch}
			if an, ok := active[key]; ok {
				delete(active, key)
				duration := currentTick - an.startTick
				if currentTick < an.startTick {
					duration = 0
				}
				if duration < 1 {
					duration = 1
				}
				trackFor().AddNote(midi.NewNote(pitch, an.velocity, an.startTick, duration))
			}
		case 0xC0: // ProgramChange
			trackFor().Program = ev.data[0]
		case 0xB0: // Controller
			cc, val := ev.data[0], ev.data[1]
			switch cc {
			case 7:
				trackFor().Volume = val
			case 10:
				trackFor().Pan = val
			}
		}
	}

	// Any notes still open at end-of-track close with a default duration.
	for key, an := range active {
		t, ok := channelTracks[key.channel]
		if !ok {
			name := "Track " + strconv.Itoa(trackIdx+1)
			if haveName {
				name = trackName
			}
			t = midi.NewTrack(name, key.channel)
			channelTracks[key.channel] = t
		}
		t.AddNote(midi.NewNote(key.pitch, an.velocity, an.startTick, midi.TicksPerBeat))
	}

	for _, t := range channelTracks {
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Channel < tracks[j].Channel })

	if isTempoTrack {
		allEmpty := true
		for _, t := range tracks {
			if t.NoteCount() > 0 {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			tracks = nil
		}
	}

	return tracks, tempo, timeSigNum, timeSigDenom
}
