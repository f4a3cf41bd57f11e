// Package transport implements the playback state machine shared between
// the sequencer and the UI: {Stopped, Playing, Paused}, plus the two
// lock-free scalars they read without touching the synth mutex.
package transport

import "sync/atomic"

// State is the playback state machine's current value.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// Transport holds the playback state and position shared across threads.
// playing and positionTicks use relaxed atomics: they are advisory for the
// UI, never a synchronization point — note dispatch
// correctness lives entirely in the sequencer's single-threaded step.
type Transport struct {
	playing       atomic.Bool
	positionTicks atomic.Uint32
	state         State
}

// New returns a Transport in the Stopped state at tick 0.
func New() *Transport {
	return &Transport{state: Stopped}
}

// State returns the current playback state.
func (t *Transport) State() State {
	return t.state
}

// IsPlaying reports whether the transport is actively advancing.
func (t *Transport) IsPlaying() bool {
	return t.playing.Load()
}

// PositionTicks returns the current playback position.
func (t *Transport) PositionTicks() uint32 {
	return t.positionTicks.Load()
}

// SetPositionTicks updates the playback position.
func (t *Transport) SetPositionTicks(tick uint32) {
	t.positionTicks.Store(tick)
}

// SetPlaying flips the transport between Playing and Paused. It never
// produces Stopped: callers use Stop for that transition.
func (t *Transport) SetPlaying(playing bool) {
	t.playing.Store(playing)
	if playing {
		t.state = Playing
	} else {
		t.state = Paused
	}
}

// Stop halts playback and resets the position to 0.
func (t *Transport) Stop() {
	t.playing.Store(false)
	t.positionTicks.Store(0)
	t.state = Stopped
}
