package audio

import (
	"encoding/binary"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// chunkFrames is the number of stereo frames rendered per pull from the
// synth, chosen for low latency without starving the audio thread.
const chunkFrames = 256

// Producer implements io.Reader for ebiten/v2/audio: it continuously pulls
// stereo float samples from a Synth, converts them to interleaved 16-bit
// PCM, and never blocks. If the synth's mutex is contended it emits one
// chunk of silence rather than stall the audio thread.
type Producer struct {
	synth *Synth
	left  []float32
	right []float32
}

// NewProducer creates a Producer that reads from synth.
func NewProducer(synth *Synth) *Producer {
	return &Producer{
		synth: synth,
		left:  make([]float32, chunkFrames),
		right: make([]float32, chunkFrames),
	}
}

// Read renders stereo PCM16 frames into p. p's length is taken from
// Ebitengine's internal buffer size and need not align to chunkFrames; this
// renders in chunkFrames-sized bursts and truncates the final partial one.
func (p *Producer) Read(buf []byte) (int, error) {
	frames := len(buf) / 4
	written := 0

	for written < frames {
		remaining := frames - written
		n := chunkFrames
		if n > remaining {
			n = remaining
		}

		left := p.left[:n]
		right := p.right[:n]
		if !p.synth.TryRender(left, right) {
			for i := range left {
				left[i] = 0
				right[i] = 0
			}
		}

		base := written * 4
		for i := 0; i < n; i++ {
			l := clampSample(left[i])
			r := clampSample(right[i])
			binary.LittleEndian.PutUint16(buf[base+i*4:], uint16(l))
			binary.LittleEndian.PutUint16(buf[base+i*4+2:], uint16(r))
		}

		written += n
	}

	return written * 4, nil
}

func clampSample(v float32) int16 {
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

// NewContext creates an Ebitengine audio context at the fixed SampleRate.
// There is no ebiten.Game/window involved: the context drives a standalone
// stereo stream.
func NewContext() *audio.Context {
	return audio.NewContext(SampleRate)
}

// NewPlayer starts a continuous player pulling from producer through ctx.
func NewPlayer(ctx *audio.Context, producer *Producer) (*audio.Player, error) {
	player, err := ctx.NewPlayer(producer)
	if err != nil {
		return nil, err
	}
	player.Play()
	return player, nil
}
