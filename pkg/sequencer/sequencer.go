// Package sequencer converts elapsed wall-clock time into tick positions
// and dispatches note-on/note-off events into a Synth as tracks play.
package sequencer

import (
	"time"

	"github.com/zurustar/miditui/pkg/audio"
	"github.com/zurustar/miditui/pkg/midi"
	"github.com/zurustar/miditui/pkg/transport"
)

// autoStopMargin stops playback once the song has been silent this long
// past its last note, so the player doesn't run forever on a trailing gap.
const autoStopMargin = 2 * midi.TicksPerBeat

// Result reports what one Update call observed, for the caller to apply
// to cursor position and to decide whether to stop.
type Result struct {
	CurrentTick  uint32
	ActiveTracks map[int]bool
	ShouldStop   bool
}

// Sequencer drives note dispatch and view auto-scroll during playback.
// It holds no ownership over Project or Synth; both are passed to Update.
type Sequencer struct {
	synth *audio.Synth

	startTime time.Time
	startTick uint32
	lastTick  *uint32

	scrollX     uint32
	zoom        uint32
	visibleCols uint32
}

// New creates a Sequencer that dispatches events into synth.
func New(synth *audio.Synth) *Sequencer {
	return &Sequencer{synth: synth, zoom: 1, visibleCols: 60}
}

// SetViewport configures the auto-scroll geometry: zoom is ticks per
// column, visibleCols is the grid's visible column count.
func (s *Sequencer) SetViewport(zoom, visibleCols uint32) {
	if zoom == 0 {
		zoom = 1
	}
	if visibleCols == 0 {
		visibleCols = 60
	}
	s.zoom = zoom
	s.visibleCols = visibleCols
}

// ScrollX returns the current auto-scroll horizontal offset in ticks.
func (s *Sequencer) ScrollX() uint32 {
	return s.scrollX
}

// SetScrollX overrides the scroll offset, e.g. on manual scroll or seek.
func (s *Sequencer) SetScrollX(tick uint32) {
	s.scrollX = tick
}

// Start begins playback bookkeeping from startTick. When startTick is 0,
// the first Update call must fire every note starting at tick 0, so
// lastTick starts as nil (no prior tick) rather than Some(0); resuming from
// a non-zero position sets lastTick to that position so already-played
// notes don't retrigger.
func (s *Sequencer) Start(startTick uint32) {
	s.startTime = time.Now()
	s.startTick = startTick
	if startTick == 0 {
		s.lastTick = nil
	} else {
		t := startTick
		s.lastTick = &t
	}
}

// Seek repositions playback bookkeeping without changing play/pause state,
// silencing notes is the caller's responsibility (via Synth.AllNotesOff)
// since seek can happen while stopped.
func (s *Sequencer) Seek(tick uint32) {
	s.startTime = time.Now()
	s.startTick = tick
	t := tick
	s.lastTick = &t
}

// Update advances the sequencer one tick and dispatches any notes whose
// start or end falls in (lastTick, currentTick]. On the very first call
// after Start(0), notes are dispatched for the closed range
// [0, currentTick] instead, since there is no prior tick to exclude.
func (s *Sequencer) Update(project *midi.Project, tp *transport.Transport) Result {
	if !tp.IsPlaying() {
		return Result{ActiveTracks: map[int]bool{}}
	}

	elapsed := time.Since(s.startTime).Seconds()
	ticksElapsed := uint32(elapsed * float64(project.Tempo) / 60.0 * float64(midi.TicksPerBeat))
	currentTick := s.startTick + ticksElapsed

	tp.SetPositionTicks(currentTick)

	activeTracks := map[int]bool{}
	anySolo := false
	for _, t := range project.Tracks() {
		if t.Solo {
			anySolo = true
			break
		}
	}

	for idx, track := range project.Tracks() {
		if track.Muted || (anySolo && !track.Solo) {
			continue
		}

		for _, note := range track.Notes() {
			if note.IsActiveAt(currentTick) {
				activeTracks[idx] = true
			}

			shouldNoteOn := false
			if s.lastTick == nil {
				shouldNoteOn = note.StartTick <= currentTick
			} else {
				shouldNoteOn = note.StartTick > *s.lastTick && note.StartTick <= currentTick
			}
			if shouldNoteOn {
				s.synth.NoteOn(track.Channel, note.Pitch, note.Velocity)
			}

			end := note.EndTick()
			shouldNoteOff := false
			if s.lastTick == nil {
				shouldNoteOff = end <= currentTick && end > 0
			} else {
				shouldNoteOff = end > *s.lastTick && end <= currentTick
			}
			if shouldNoteOff {
				s.synth.NoteOff(track.Channel, note.Pitch)
			}
		}
	}

	s.lastTick = &currentTick

	visibleTicks := s.zoom * s.visibleCols
	if currentTick > s.scrollX+visibleTicks*3/4 {
		if currentTick > visibleTicks/4 {
			s.scrollX = currentTick - visibleTicks/4
		} else {
			s.scrollX = 0
		}
	}

	endTick := project.DurationTicks()
	shouldStop := currentTick > endTick+autoStopMargin

	return Result{CurrentTick: currentTick, ActiveTracks: activeTracks, ShouldStop: shouldStop}
}
