// Package karplus implements the plucked-string synthesis model: a delay line
// seeded with filtered noise, a decaying feedback loop, and a single-tap body
// resonance. One Voice is one sounding note; the Pool owns all active voices
// and mixes them inside the audio output callback.
package karplus

import (
	"math"
	"math/rand"
	"sync"

	"github.com/metalblueberry/plectrum/pkg/guitar"
	"golang.org/x/exp/constraints"
)

// Voice is a single Karplus-Strong delay line. It carries no timbre state of
// its own: decay, damping and body parameters come from the shared config on
// every sample, so live tweaks are audible on sustained notes.
type Voice struct {
	buffer    []float32
	position  int
	remaining int
}

// NewVoice allocates and excites a delay line of length ceil(sampleRate /
// frequency). The excitation is white noise scaled by string tension and run
// through a one-pole lowpass controlled by string damping, which rounds the
// pluck transient off.
func NewVoice(frequency, durationSeconds, sampleRate float64, config guitar.Config) *Voice {
	length := int(math.Ceil(sampleRate / frequency))
	if length < 1 {
		length = 1
	}
	buffer := make([]float32, length)

	prev := float32(0)
	for i := range buffer {
		white := rand.Float32()*2 - 1
		tensionEffect := float32(config.StringTension) * white
		filtered := float32(config.StringDamping)*prev + float32(1-config.StringDamping)*tensionEffect
		buffer[i] = filtered
		prev = filtered
	}

	return &Voice{
		buffer:    buffer,
		remaining: int(math.Round(durationSeconds * sampleRate)),
	}
}

// NextSample advances the string by one sample. The second return value is
// false once the voice has played out its duration.
func (v *Voice) NextSample(config guitar.Config, sampleRate float64) (float32, bool) {
	if v.remaining == 0 {
		return 0, false
	}

	current := v.buffer[v.position]
	nextIndex := (v.position + 1) % len(v.buffer)
	next := v.buffer[nextIndex]

	stringSample := float32(config.Decay) *
		(float32(config.StringDamping)*current + float32(1-config.StringDamping)*next)

	bodyFreq := 2 * math.Pi * config.BodyResonance / sampleRate
	resonated := stringSample * float32(math.Sin(bodyFreq))
	bodySample := resonated * float32(1-config.BodyDamping)

	// The write-back is the Karplus-Strong recurrence: the filtered sample
	// recirculates through the delay line and decays on every pass.
	v.buffer[v.position] = stringSample
	v.position = nextIndex
	v.remaining--

	return stringSample*0.7 + bodySample*0.3, true
}

// Remaining returns the number of samples left before the voice dies.
func (v *Voice) Remaining() int {
	return v.remaining
}

// DelayLineLength returns the delay line size, which determines the pitch.
func (v *Voice) DelayLineLength() int {
	return len(v.buffer)
}

// GenerateAudioData drains the voice into a freshly allocated buffer. Used by
// the offline renderer, where samples are produced ahead of realtime.
func (v *Voice) GenerateAudioData(config guitar.Config, sampleRate float64) []float32 {
	data := make([]float32, 0, v.remaining)
	for {
		sample, ok := v.NextSample(config, sampleRate)
		if !ok {
			return data
		}
		data = append(data, sample)
	}
}

// Pool owns the active voices. Slots are index stable: an exhausted voice
// leaves a nil slot behind that is recycled through a free list, so removal
// during the output callback never shifts the backing array.
type Pool struct {
	mutex  sync.Mutex
	voices []*Voice
	free   []int
}

// NewPool creates an empty voice pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add inserts a voice into the first free slot.
func (p *Pool) Add(v *Voice) {
	p.mutex.Lock()
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		p.voices[slot] = v
	} else {
		p.voices = append(p.voices, v)
	}
	p.mutex.Unlock()
}

// Active returns the number of sounding voices.
func (p *Pool) Active() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	count := 0
	for _, v := range p.voices {
		if v != nil {
			count++
		}
	}
	return count
}

// Clear drops every voice, silencing the pool.
func (p *Pool) Clear() {
	p.mutex.Lock()
	p.voices = p.voices[:0]
	p.free = p.free[:0]
	p.mutex.Unlock()
}

// Mix renders len(out) mono samples: the sum of all voices, scaled by the
// master volume and clamped to [-1, 1]. Exhausted voices are released as they
// are encountered. Runs inside the output callback, so the lock is held only
// for the duration of the render.
func (p *Pool) Mix(out []float32, config guitar.Config, sampleRate float64) {
	p.mutex.Lock()
	for i := range out {
		var value float32
		for slot, v := range p.voices {
			if v == nil {
				continue
			}
			sample, ok := v.NextSample(config, sampleRate)
			if !ok {
				p.voices[slot] = nil
				p.free = append(p.free, slot)
				continue
			}
			value += sample
		}
		value *= float32(config.Volume)
		out[i] = clamp(value, -1, 1)
	}
	p.mutex.Unlock()
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
