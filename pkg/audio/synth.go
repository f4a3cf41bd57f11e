// Package audio owns the polyphonic SoundFont synthesizer and the
// continuous stereo stream that pulls samples from it for playback.
package audio

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/miditui/pkg/errkind"
)

// SampleRate is the fixed output sample rate for synthesis and playback.
const SampleRate = 44100

const (
	midiProgramChange = 0xC0
	midiControlChange = 0xB0
	ccVolume          = 7
	ccPan             = 10
)

// Synth wraps a meltysynth.Synthesizer behind a single mutex so the audio
// thread (Producer.Read) and the UI thread (note/channel commands) never
// race. All methods are safe to call concurrently.
type Synth struct {
	mu              sync.Mutex
	synth           *meltysynth.Synthesizer
	instrumentNames [128]string
}

// NewSynth loads a SoundFont from path and creates a synthesizer over it.
func NewSynth(soundFontPath string) (*Synth, error) {
	data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.AudioInit, err, "reading soundfont %s", soundFontPath)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, errkind.Wrap(errkind.AudioInit, err, "parsing soundfont %s", soundFontPath)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, errkind.Wrap(errkind.AudioInit, err, "creating synthesizer")
	}

	s := &Synth{synth: synth}
	s.extractInstrumentNames(soundFont)
	return s, nil
}

// extractInstrumentNames maps bank-0 (General MIDI) preset names onto their
// program numbers, falling back to "Program N" for anything unmapped.
func (s *Synth) extractInstrumentNames(soundFont *meltysynth.SoundFont) {
	for i := range s.instrumentNames {
		s.instrumentNames[i] = fmt.Sprintf("Program %d", i)
	}
	for _, preset := range soundFont.GetPresets() {
		bank := preset.GetBankNumber()
		program := preset.GetPatchNumber()
		if bank == 0 && program >= 0 && program < 128 {
			s.instrumentNames[program] = preset.GetName()
		}
	}
}

// InstrumentName returns the SoundFont's name for program (0-127).
func (s *Synth) InstrumentName(program uint8) string {
	return s.instrumentNames[program]
}

// NoteOn starts a note immediately on channel.
func (s *Synth) NoteOn(channel, pitch, velocity uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.NoteOn(int32(channel), int32(pitch), int32(velocity))
}

// NoteOff releases a playing note.
func (s *Synth) NoteOff(channel, pitch uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.NoteOff(int32(channel), int32(pitch))
}

// AllNotesOff silences every voice. immediate skips the release envelope,
// used when the sequencer restarts dispatch after seek/stop/mute-toggle so
// stale notes never hang.
func (s *Synth) AllNotesOff(immediate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.NoteOffAll(immediate)
}

// SetProgram changes a channel's instrument.
func (s *Synth) SetProgram(channel, program uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.ProcessMidiMessage(int32(channel), midiProgramChange, int32(program), 0)
}

// SetVolume sets a channel's volume (CC7).
func (s *Synth) SetVolume(channel, volume uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.ProcessMidiMessage(int32(channel), midiControlChange, ccVolume, int32(volume))
}

// SetPan sets a channel's pan (CC10, 0=left, 64=center, 127=right).
func (s *Synth) SetPan(channel, pan uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.ProcessMidiMessage(int32(channel), midiControlChange, ccPan, int32(pan))
}

// ConfigureTrack pushes a track's program, volume, and pan into the synth,
// as done once at load time and whenever a track's mixer settings change.
func (s *Synth) ConfigureTrack(channel, program, volume, pan uint8) {
	s.SetProgram(channel, program)
	s.SetVolume(channel, volume)
	s.SetPan(channel, pan)
}

// Reset clears all controllers and stops all voices.
func (s *Synth) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.Reset()
}

// Render fills left and right with the next block of synthesized stereo
// samples. Safe to call from the audio thread; contends with the command
// methods above for the same mutex.
func (s *Synth) Render(left, right []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.Render(left, right)
}

// TryRender attempts a non-blocking render: on success it returns true: the
// caller, the audio thread, must never wait for the mutex, so a contended
// lock means "emit silence this chunk" rather than stall.
func (s *Synth) TryRender(left, right []float32) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.synth.Render(left, right)
	return true
}
