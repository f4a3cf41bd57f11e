package midi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DefaultTempo is the BPM assigned to a freshly created project.
const DefaultTempo uint32 = 120

// Project is the top-level container: tracks plus global musical settings.
type Project struct {
	Name               string  `json:"name"`
	Tempo              uint32  `json:"tempo"`
	TimeSigNumerator   uint8   `json:"time_sig_numerator"`
	TimeSigDenominator uint8   `json:"time_sig_denominator"`
	NextChannel        uint8   `json:"next_channel"`
	SoundFontPath      *string `json:"soundfont_path,omitempty"`

	tracks []*Track
}

// NewProject creates an empty project with 120 BPM, 4/4 time.
func NewProject(name string) *Project {
	return &Project{
		Name:               name,
		Tempo:              DefaultTempo,
		TimeSigNumerator:   4,
		TimeSigDenominator: 4,
	}
}

// NewProjectWithDefaultTrack creates a project containing a single melodic
// track named "Track 1" on channel 0.
func NewProjectWithDefaultTrack(name string) *Project {
	p := NewProject(name)
	p.AddTrack(NewTrack("Track 1", 0))
	return p
}

// TicksPerMeasure returns the tick length of one measure under the
// project's current time signature.
func (p *Project) TicksPerMeasure() uint32 {
	beatTicks := TicksPerBeat * 4 / uint32(p.TimeSigDenominator)
	return beatTicks * uint32(p.TimeSigNumerator)
}

// DurationTicks returns the maximum track duration across the project.
func (p *Project) DurationTicks() uint32 {
	var max uint32
	for _, t := range p.tracks {
		if d := t.DurationTicks(); d > max {
			max = d
		}
	}
	return max
}

// AddTrack appends track, returning its ID.
func (p *Project) AddTrack(t *Track) TrackID {
	p.tracks = append(p.tracks, t)
	return t.ID
}

// CreateTrack creates a melodic track with an auto-assigned channel: the
// counter cycles 0..15, skipping 9 (drums) by jumping straight to 10, and
// wraps back to 0 after 15.
func (p *Project) CreateTrack(name string) TrackID {
	channel := p.NextChannel
	switch {
	case p.NextChannel == 8:
		p.NextChannel = 10
	case p.NextChannel >= 15:
		p.NextChannel = 0
	default:
		p.NextChannel++
	}
	return p.AddTrack(NewTrack(name, channel))
}

// CreateDrumTrack creates and adds a drum track on channel 9.
func (p *Project) CreateDrumTrack(name string) TrackID {
	return p.AddTrack(NewDrumTrack(name))
}

// RemoveTrack deletes the track with the given ID, returning it if found.
func (p *Project) RemoveTrack(id TrackID) (*Track, bool) {
	for i, t := range p.tracks {
		if t.ID == id {
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

// GetTrack returns the track with the given ID.
func (p *Project) GetTrack(id TrackID) (*Track, bool) {
	for _, t := range p.tracks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TrackAt returns the track at index, or nil if out of range.
func (p *Project) TrackAt(index int) *Track {
	if index < 0 || index >= len(p.tracks) {
		return nil
	}
	return p.tracks[index]
}

// Tracks returns all tracks in project order.
func (p *Project) Tracks() []*Track {
	return p.tracks
}

// TrackCount returns the number of tracks.
func (p *Project) TrackCount() int {
	return len(p.tracks)
}

// MoveTrack relocates the track at index from to index to, reporting
// success.
func (p *Project) MoveTrack(from, to int) bool {
	if from < 0 || from >= len(p.tracks) || to < 0 || to >= len(p.tracks) {
		return false
	}
	t := p.tracks[from]
	p.tracks = append(p.tracks[:from], p.tracks[from+1:]...)
	p.tracks = append(p.tracks[:to], append([]*Track{t}, p.tracks[to:]...)...)
	return true
}

// PlayableTracks applies solo/mute arbitration: if any track is soloed, only
// soloed-and-unmuted tracks are playable; otherwise every unmuted track is.
func (p *Project) PlayableTracks() []*Track {
	anySolo := false
	for _, t := range p.tracks {
		if t.Solo {
			anySolo = true
			break
		}
	}
	var out []*Track
	for _, t := range p.tracks {
		if anySolo {
			if t.Solo && !t.Muted {
				out = append(out, t)
			}
		} else if !t.Muted {
			out = append(out, t)
		}
	}
	return out
}

// FindNote searches every track for note, returning its owning TrackID.
func (p *Project) FindNote(id NoteID) (TrackID, Note, bool) {
	for _, t := range p.tracks {
		if n, ok := t.GetNote(id); ok {
			return t.ID, n, true
		}
	}
	return 0, Note{}, false
}

// TickToPosition converts a tick to a 1-indexed (measure, beat, subtick).
func (p *Project) TickToPosition(tick uint32) (measure, beat, subtick uint32) {
	tpm := p.TicksPerMeasure()
	measure = tick/tpm + 1
	tickInMeasure := tick % tpm
	beat = tickInMeasure/TicksPerBeat + 1
	subtick = tickInMeasure % TicksPerBeat
	return
}

// PositionToTick converts a 1-indexed (measure, beat) to an absolute tick.
func (p *Project) PositionToTick(measure, beat uint32) uint32 {
	tpm := p.TicksPerMeasure()
	return (measure-1)*tpm + (beat-1)*TicksPerBeat
}

// SetSoundFontPath sets or clears the persisted SoundFont path.
func (p *Project) SetSoundFontPath(path string) {
	if path == "" {
		p.SoundFontPath = nil
		return
	}
	p.SoundFontPath = &path
}

// --- JSON persistence ---

type projectJSON struct {
	Name               string  `json:"name"`
	Tempo              uint32  `json:"tempo"`
	TimeSigNumerator   uint8   `json:"time_sig_numerator"`
	TimeSigDenominator uint8   `json:"time_sig_denominator"`
	NextChannel        uint8   `json:"next_channel"`
	SoundFontPath      *string `json:"soundfont_path,omitempty"`
	Tracks             []*Track `json:"tracks"`
}

// ToJSON renders the project as indented UTF-8 JSON.
func (p *Project) ToJSON() ([]byte, error) {
	return json.MarshalIndent(projectJSON{
		Name:               p.Name,
		Tempo:              p.Tempo,
		TimeSigNumerator:   p.TimeSigNumerator,
		TimeSigDenominator: p.TimeSigDenominator,
		NextChannel:        p.NextChannel,
		SoundFontPath:      p.SoundFontPath,
		Tracks:             p.tracks,
	}, "", "  ")
}

// ProjectFromJSON parses a project previously produced by ToJSON.
func ProjectFromJSON(data []byte) (*Project, error) {
	var pj projectJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, err
	}
	return &Project{
		Name:               pj.Name,
		Tempo:              pj.Tempo,
		TimeSigNumerator:   pj.TimeSigNumerator,
		TimeSigDenominator: pj.TimeSigDenominator,
		NextChannel:        pj.NextChannel,
		SoundFontPath:      pj.SoundFontPath,
		tracks:             pj.Tracks,
	}, nil
}

// SaveToFile writes the project as JSON to path.
func (p *Project) SaveToFile(path string) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadProjectFromFile reads a JSON project file.
func LoadProjectFromFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ProjectFromJSON(data)
}

// --- Binary persistence (autosave format, extension .oxm) ---
//
// Layout, all little-endian:
//   magic "OXM1" (4 bytes)
//   name: u32 length + UTF-8 bytes
//   tempo u32, time_sig_numerator u8, time_sig_denominator u8, next_channel u8
//   has_soundfont u8; if 1: u32 length + UTF-8 bytes
//   track_count u32, then for each track:
//     id u64, name (u32 len + bytes), channel u8, program u8, volume u8, pan u8,
//     muted u8, solo u8, note_count u32, then for each note:
//       id u64, pitch u8, velocity u8, start_tick u32, duration_ticks u32

var binaryMagic = [4]byte{'O', 'X', 'M', '1'}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// SaveToBinary encodes the project to the compact autosave format.
func (p *Project) SaveToBinary(path string) error {
	var buf bytes.Buffer
	buf.Write(binaryMagic[:])
	if err := writeString(&buf, p.Name); err != nil {
		return err
	}
	binary.Write(&buf, binary.LittleEndian, p.Tempo)
	buf.WriteByte(p.TimeSigNumerator)
	buf.WriteByte(p.TimeSigDenominator)
	buf.WriteByte(p.NextChannel)
	if p.SoundFontPath != nil {
		buf.WriteByte(1)
		if err := writeString(&buf, *p.SoundFontPath); err != nil {
			return err
		}
	} else {
		buf.WriteByte(0)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(p.tracks)))
	for _, t := range p.tracks {
		binary.Write(&buf, binary.LittleEndian, uint64(t.ID))
		if err := writeString(&buf, t.Name); err != nil {
			return err
		}
		buf.WriteByte(t.Channel)
		buf.WriteByte(t.Program)
		buf.WriteByte(t.Volume)
		buf.WriteByte(t.Pan)
		if t.Muted {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		if t.Solo {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		notes := t.Notes()
		binary.Write(&buf, binary.LittleEndian, uint32(len(notes)))
		for _, n := range notes {
			binary.Write(&buf, binary.LittleEndian, uint64(n.ID))
			buf.WriteByte(n.Pitch)
			buf.WriteByte(n.Velocity)
			binary.Write(&buf, binary.LittleEndian, n.StartTick)
			binary.Write(&buf, binary.LittleEndian, n.DurationTicks)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadProjectFromBinary decodes a project previously written by SaveToBinary.
func LoadProjectFromBinary(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != binaryMagic {
		return nil, fmt.Errorf("midi: not a project binary file (bad magic)")
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	p := &Project{Name: name}
	if err := binary.Read(r, binary.LittleEndian, &p.Tempo); err != nil {
		return nil, err
	}
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	p.TimeSigNumerator, p.TimeSigDenominator, p.NextChannel = buf[0], buf[1], buf[2]
	var hasSF byte
	if err := binary.Read(r, binary.LittleEndian, &hasSF); err != nil {
		return nil, err
	}
	if hasSF == 1 {
		sf, err := readString(r)
		if err != nil {
			return nil, err
		}
		p.SoundFontPath = &sf
	}
	var trackCount uint32
	if err := binary.Read(r, binary.LittleEndian, &trackCount); err != nil {
		return nil, err
	}
	for i := uint32(0); i < trackCount; i++ {
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var mix [6]byte
		if _, err := io.ReadFull(r, mix[:]); err != nil {
			return nil, err
		}
		t := &Track{
			ID:      TrackID(id),
			Name:    name,
			Channel: mix[0],
			Program: mix[1],
			Volume:  mix[2],
			Pan:     mix[3],
			Muted:   mix[4] == 1,
			Solo:    mix[5] == 1,
		}
		var noteCount uint32
		if err := binary.Read(r, binary.LittleEndian, &noteCount); err != nil {
			return nil, err
		}
		for j := uint32(0); j < noteCount; j++ {
			var noteID uint64
			if err := binary.Read(r, binary.LittleEndian, &noteID); err != nil {
				return nil, err
			}
			var pv [2]byte
			if _, err := io.ReadFull(r, pv[:]); err != nil {
				return nil, err
			}
			var start, dur uint32
			if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
				return nil, err
			}
			if err := binary.Read(r, binary.LittleEndian, &dur); err != nil {
				return nil, err
			}
			t.notes = append(t.notes, Note{
				ID:            NoteID(noteID),
				Pitch:         pv[0],
				Velocity:      pv[1],
				StartTick:     start,
				DurationTicks: dur,
			})
		}
		p.tracks = append(p.tracks, t)
	}
	return p, nil
}
