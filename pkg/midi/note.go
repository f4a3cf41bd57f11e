// Package midi implements the tick-addressed note/track/project data model:
// the in-memory representation of a composition, independent of any file
// format or audio backend.
package midi

import "sync/atomic"

// TicksPerBeat is the internal tick resolution: one quarter note.
const TicksPerBeat uint32 = 480

var noteIDCounter uint64

// NoteID uniquely identifies a Note within a process. IDs are assigned from
// a monotonic counter starting at 1 and are never reused within a run.
type NoteID uint64

// NewNoteID allocates the next process-wide unique note ID.
func NewNoteID() NoteID {
	return NoteID(atomic.AddUint64(&noteIDCounter, 1))
}

// Note is a single MIDI note event with tick-based timing.
type Note struct {
	ID            NoteID `json:"id"`
	Pitch         uint8  `json:"pitch"`
	Velocity      uint8  `json:"velocity"`
	StartTick     uint32 `json:"start_tick"`
	DurationTicks uint32 `json:"duration_ticks"`
}

// NewNote creates a note with a fresh ID, clamping pitch and velocity to
// 0..=127 and duration to at least 1 tick.
func NewNote(pitch, velocity uint8, startTick, durationTicks uint32) Note {
	if pitch > 127 {
		pitch = 127
	}
	if velocity > 127 {
		velocity = 127
	}
	if durationTicks < 1 {
		durationTicks = 1
	}
	return Note{
		ID:            NewNoteID(),
		Pitch:         pitch,
		Velocity:      velocity,
		StartTick:     startTick,
		DurationTicks: durationTicks,
	}
}

// EndTick returns start + duration, saturating at the uint32 maximum.
func (n Note) EndTick() uint32 {
	sum := uint64(n.StartTick) + uint64(n.DurationTicks)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

// OverlapsRange reports whether the note's interval intersects [start, end).
func (n Note) OverlapsRange(start, end uint32) bool {
	return n.StartTick < end && n.EndTick() > start
}

// IsActiveAt reports whether the note is sounding at tick.
func (n Note) IsActiveAt(tick uint32) bool {
	return tick >= n.StartTick && tick < n.EndTick()
}

// Duplicate returns a copy of n with a freshly allocated ID.
func (n Note) Duplicate() Note {
	dup := n
	dup.ID = NewNoteID()
	return dup
}

// Transpose shifts pitch by semitones, leaving the note unchanged and
// reporting false if the result would fall outside 0..=127.
func (n *Note) Transpose(semitones int8) bool {
	newPitch := int16(n.Pitch) + int16(semitones)
	if newPitch < 0 || newPitch > 127 {
		return false
	}
	n.Pitch = uint8(newPitch)
	return true
}

// Shift moves the note by ticks (positive or negative), saturating at 0.
func (n *Note) Shift(ticks int32) {
	if ticks < 0 {
		delta := uint32(-ticks)
		if delta > n.StartTick {
			n.StartTick = 0
		} else {
			n.StartTick -= delta
		}
		return
	}
	sum := uint64(n.StartTick) + uint64(ticks)
	if sum > uint64(^uint32(0)) {
		n.StartTick = ^uint32(0)
		return
	}
	n.StartTick = uint32(sum)
}
