// Package export renders a project offline through the synthesizer and
// writes the result to a RIFF/WAVE PCM file.
package export

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/zurustar/miditui/pkg/audio"
	"github.com/zurustar/miditui/pkg/errkind"
	"github.com/zurustar/miditui/pkg/midi"
)

// renderBufferSize is the number of stereo frames rendered per synth call;
// larger than the real-time producer's chunk since nothing here is latency
// sensitive.
const renderBufferSize = 4096

// endOfSongBufferSeconds is extra tail rendered past the last note so release
// tails don't get truncated.
const endOfSongBufferSeconds = 2.0

const bytesPerFrame = 4 // 2 channels * 16-bit

// ProgressFunc reports export progress as a fraction in [0, 1].
type ProgressFunc func(fraction float32)

type timedEvent struct {
	tick     uint32
	noteOn   bool
	channel  uint8
	pitch    uint8
	velocity uint8
}

// ToWAV renders project through a SoundFont synthesizer loaded from
// soundFontPath and writes 44.1kHz 16-bit stereo PCM to outputPath.
// progress, if non-nil, is invoked after each rendered chunk.
func ToWAV(project *midi.Project, soundFontPath, outputPath string, progress ProgressFunc) error {
	synth, err := audio.NewSynth(soundFontPath)
	if err != nil {
		return err
	}

	for _, t := range project.PlayableTracks() {
		synth.ConfigureTrack(t.Channel, t.Program, t.Volume, t.Pan)
	}

	durationSeconds := ticksToSeconds(project.DurationTicks(), project.Tempo) + endOfSongBufferSeconds
	totalSamples := int(durationSeconds * float64(audio.SampleRate))

	events := collectEvents(project)

	f, err := os.Create(outputPath)
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "creating %s", outputPath)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeHeaderPlaceholder(w); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing WAV header")
	}

	left := make([]float32, renderBufferSize)
	right := make([]float32, renderBufferSize)
	samplesPerTick := float64(audio.SampleRate) * 60.0 / (float64(project.Tempo) * float64(midi.TicksPerBeat))

	currentSample := 0
	eventIdx := 0
	for currentSample < totalSamples {
		currentTick := uint32(float64(currentSample) / samplesPerTick)

		for eventIdx < len(events) && events[eventIdx].tick <= currentTick {
			ev := events[eventIdx]
			if ev.noteOn {
				synth.NoteOn(ev.channel, ev.pitch, ev.velocity)
			} else {
				synth.NoteOff(ev.channel, ev.pitch)
			}
			eventIdx++
		}

		n := renderBufferSize
		if remaining := totalSamples - currentSample; remaining < n {
			n = remaining
		}
		synth.Render(left[:n], right[:n])

		if err := writeSamples(w, left[:n], right[:n]); err != nil {
			return errkind.Wrap(errkind.IO, err, "writing samples")
		}

		currentSample += n
		if progress != nil {
			progress(float32(currentSample) / float32(totalSamples))
		}
	}

	if err := w.Flush(); err != nil {
		return errkind.Wrap(errkind.IO, err, "flushing WAV data")
	}

	if err := patchSizes(f, totalSamples); err != nil {
		return errkind.Wrap(errkind.IO, err, "patching WAV header sizes")
	}
	return nil
}

// ticksToSeconds converts a tick count to wall-clock seconds at tempo.
func ticksToSeconds(ticks, tempo uint32) float64 {
	return float64(ticks) / float64(midi.TicksPerBeat) * 60.0 / float64(tempo)
}

// collectEvents gathers note-on/note-off pairs across playable tracks
// (respecting mute/solo), sorted by tick with note-offs before note-ons at
// the same tick so a retriggered pitch doesn't clip its predecessor.
func collectEvents(project *midi.Project) []timedEvent {
	anySolo := false
	for _, t := range project.Tracks() {
		if t.Solo {
			anySolo = true
			break
		}
	}

	var events []timedEvent
	for _, t := range project.Tracks() {
		if t.Muted || (anySolo && !t.Solo) {
			continue
		}
		for _, n := range t.Notes() {
			events = append(events,
				timedEvent{tick: n.StartTick, noteOn: true, channel: t.Channel, pitch: n.Pitch, velocity: n.Velocity},
				timedEvent{tick: n.EndTick(), noteOn: false, channel: t.Channel, pitch: n.Pitch},
			)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].noteOn && events[j].noteOn
	})
	return events
}

func writeSamples(w io.Writer, left, right []float32) error {
	buf := make([]byte, len(left)*bytesPerFrame)
	for i := range left {
		l := clampSample16(left[i])
		r := clampSample16(right[i])
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(r))
	}
	_, err := w.Write(buf)
	return err
}

func clampSample16(v float32) int16 {
	f := v * 32767
	switch {
	case f > 32767:
		return 32767
	case f < -32768:
		return -32768
	default:
		return int16(f)
	}
}

// wavHeaderSize is the fixed 44-byte canonical RIFF/WAVE/fmt/data header.
const wavHeaderSize = 44

// writeHeaderPlaceholder writes a 44-byte RIFF/WAVE header with the
// chunk/data sizes zeroed; patchSizes fills them in once the total sample
// count is known, since it isn't known up front when streaming from the
// synthesizer.
func writeHeaderPlaceholder(w io.Writer) error {
	const (
		numChannels   = 2
		bitsPerSample = 16
		blockAlign    = numChannels * bitsPerSample / 8
	)
	byteRate := audio.SampleRate * blockAlign

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	// bytes 4:8 (chunk size) patched later
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(audio.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	// bytes 40:44 (data chunk size) patched later

	_, err := w.Write(header)
	return err
}

// patchSizes fills in the RIFF chunk size and data subchunk size once the
// final sample count is known.
func patchSizes(f *os.File, totalSamples int) error {
	dataSize := uint32(totalSamples * bytesPerFrame)
	riffSize := dataSize + wavHeaderSize - 8

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], riffSize)
	if _, err := f.WriteAt(buf[:], 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], dataSize)
	if _, err := f.WriteAt(buf[:], 40); err != nil {
		return err
	}
	return nil
}
