package midi

import (
	"encoding/json"
	"sort"
	"sync/atomic"
)

// DrumChannel is the General MIDI drum channel.
const DrumChannel uint8 = 9

var trackIDCounter uint64

// TrackID uniquely identifies a Track within a process, independent of NoteID.
type TrackID uint64

// NewTrackID allocates the next process-wide unique track ID.
func NewTrackID() TrackID {
	return TrackID(atomic.AddUint64(&trackIDCounter, 1))
}

// Track is an ordered container of notes plus mixer attributes.
type Track struct {
	ID      TrackID `json:"id"`
	Name    string  `json:"name"`
	Channel uint8   `json:"channel"`
	Program uint8   `json:"program"`
	Volume  uint8   `json:"volume"`
	Pan     uint8   `json:"pan"`
	Muted   bool    `json:"muted"`
	Solo    bool    `json:"solo"`

	notes []Note
}

// NewTrack creates a track with default mixer settings on the given channel
// (clamped to 0..=15).
func NewTrack(name string, channel uint8) *Track {
	if channel > 15 {
		channel = 15
	}
	return &Track{
		ID:      NewTrackID(),
		Name:    name,
		Channel: channel,
		Program: 0,
		Volume:  100,
		Pan:     64,
	}
}

// NewDrumTrack creates a track pinned to the General MIDI drum channel.
func NewDrumTrack(name string) *Track {
	t := NewTrack(name, DrumChannel)
	t.Channel = DrumChannel
	return t
}

// AddNote inserts note in start-tick order via binary search, returning its ID.
// Ties on start_tick preserve insertion order.
func (t *Track) AddNote(note Note) NoteID {
	pos := sort.Search(len(t.notes), func(i int) bool {
		return t.notes[i].StartTick > note.StartTick
	})
	t.notes = append(t.notes, Note{})
	copy(t.notes[pos+1:], t.notes[pos:])
	t.notes[pos] = note
	return note.ID
}

// CreateNote builds a note via NewNote and inserts it.
func (t *Track) CreateNote(pitch, velocity uint8, startTick, durationTicks uint32) NoteID {
	return t.AddNote(NewNote(pitch, velocity, startTick, durationTicks))
}

// RemoveNote deletes the note with the given ID, returning it if found.
func (t *Track) RemoveNote(id NoteID) (Note, bool) {
	for i, n := range t.notes {
		if n.ID == id {
			t.notes = append(t.notes[:i], t.notes[i+1:]...)
			return n, true
		}
	}
	return Note{}, false
}

// GetNote returns the note with the given ID.
func (t *Track) GetNote(id NoteID) (Note, bool) {
	for _, n := range t.notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// Notes returns a read-only view of the notes in start-tick order.
func (t *Track) Notes() []Note {
	return t.notes
}

// NotesMut returns the underlying note slice for in-place mutation. Callers
// that change StartTick must call Resort afterward to restore ordering.
func (t *Track) NotesMut() []Note {
	return t.notes
}

// Resort restores start-tick order after a NotesMut caller reorders notes.
func (t *Track) Resort() {
	sort.SliceStable(t.notes, func(i, j int) bool {
		return t.notes[i].StartTick < t.notes[j].StartTick
	})
}

// NotesInRange yields notes whose interval overlaps [start, end).
func (t *Track) NotesInRange(start, end uint32) []Note {
	// t.notes is sorted by StartTick; any note starting at or after `end`
	// cannot overlap, so scan from the beginning and stop early.
	var out []Note
	for _, n := range t.notes {
		if n.StartTick >= end {
			break
		}
		if n.OverlapsRange(start, end) {
			out = append(out, n)
		}
	}
	return out
}

// NotesAtTick returns notes sounding at the given tick.
func (t *Track) NotesAtTick(tick uint32) []Note {
	var out []Note
	for _, n := range t.notes {
		if n.IsActiveAt(tick) {
			out = append(out, n)
		}
	}
	return out
}

// DurationTicks returns the end tick of the last-ending note, or 0 if empty.
func (t *Track) DurationTicks() uint32 {
	var max uint32
	for _, n := range t.notes {
		if e := n.EndTick(); e > max {
			max = e
		}
	}
	return max
}

// NoteCount returns the number of notes in the track.
func (t *Track) NoteCount() int {
	return len(t.notes)
}

// Clear removes all notes.
func (t *Track) Clear() {
	t.notes = nil
}

// Quantize rounds every note's StartTick to the nearest multiple of grid,
// ties rounding up, then re-sorts.
func (t *Track) Quantize(grid uint32) {
	if grid == 0 {
		return
	}
	for i := range t.notes {
		remainder := t.notes[i].StartTick % grid
		if remainder >= grid-remainder {
			t.notes[i].StartTick += grid - remainder
		} else {
			t.notes[i].StartTick -= remainder
		}
	}
	t.Resort()
}

// TransposeAll shifts every note by semitones, returning the count that
// could not be transposed (would fall outside 0..=127, left unchanged).
func (t *Track) TransposeAll(semitones int8) int {
	failed := 0
	for i := range t.notes {
		if !t.notes[i].Transpose(semitones) {
			failed++
		}
	}
	return failed
}

// trackJSON mirrors Track with its unexported note slice exposed, since the
// notes field itself must not be addressable from outside the package.
type trackJSON struct {
	ID      TrackID `json:"id"`
	Name    string  `json:"name"`
	Channel uint8   `json:"channel"`
	Program uint8   `json:"program"`
	Volume  uint8   `json:"volume"`
	Pan     uint8   `json:"pan"`
	Muted   bool    `json:"muted"`
	Solo    bool    `json:"solo"`
	Notes   []Note  `json:"notes"`
}

// MarshalJSON serializes the track including its notes in start-tick order.
func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		ID:      t.ID,
		Name:    t.Name,
		Channel: t.Channel,
		Program: t.Program,
		Volume:  t.Volume,
		Pan:     t.Pan,
		Muted:   t.Muted,
		Solo:    t.Solo,
		Notes:   t.notes,
	})
}

// UnmarshalJSON restores a track and re-sorts its notes defensively.
func (t *Track) UnmarshalJSON(data []byte) error {
	var tj trackJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}
	t.ID = tj.ID
	t.Name = tj.Name
	t.Channel = tj.Channel
	t.Program = tj.Program
	t.Volume = tj.Volume
	t.Pan = tj.Pan
	t.Muted = tj.Muted
	t.Solo = tj.Solo
	t.notes = tj.Notes
	t.Resort()
	return nil
}
