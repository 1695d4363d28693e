// Package chroma turns audio frames, and independently expected note sets,
// into 12-bin pitch class energy histograms. Both paths share one Options
// value so measured and expected vectors are normalized identically and stay
// directly comparable.
package chroma

import (
	"fmt"
	"math"
	"sync"

	"github.com/andrepxx/go-dsp-guitar/fft"
	"github.com/metalblueberry/plectrum/pkg/guitar"
	"github.com/metalblueberry/plectrum/pkg/score"
)

// Bins is the number of pitch classes.
const Bins = 12

// Options controls the feature pipeline. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// FrameSize and HopSize control frame extraction. With 4096/1024 frames
	// overlap by 75%.
	FrameSize int
	HopSize   int

	// PreEmphasis is the first-order high-pass coefficient, 0 disables.
	PreEmphasis float64

	// HannWindow applies a Hann window before the transform.
	HannWindow bool

	// Harmonics spreads energy across harmonics 1..Harmonics with weight
	// 1/harmonic. 1 means fundamental only. The measured path folds each bin
	// down to its candidate fundamentals; the expected path projects each
	// note up through the same harmonic set.
	Harmonics int

	// Power sharpens the normalized vector by raising elements to this
	// exponent before a final renormalization. Values <= 1 disable it.
	Power float64

	// MinFrequency and MaxFrequency bound the analyzed band. Bins outside
	// are noise as far as a guitar is concerned.
	MinFrequency float64
	MaxFrequency float64
}

// DefaultOptions matches the tuning the practice tool ships with.
func DefaultOptions() Options {
	return Options{
		FrameSize:    4096,
		HopSize:      1024,
		PreEmphasis:  0.97,
		HannWindow:   true,
		Harmonics:    5,
		Power:        1,
		MinFrequency: 82,
		MaxFrequency: 1000,
	}
}

// Extractor computes chroma vectors from audio frames. It reuses its FFT
// buffers between frames; Compute is serialized by an internal mutex.
type Extractor struct {
	options     Options
	sampleRate  float64
	mutex       sync.Mutex
	transform   fft.FourierTransform
	bufSignal   []float64
	bufSpectrum []complex128
}

// NewExtractor creates an extractor for the given sample rate.
func NewExtractor(sampleRate float64, options Options) *Extractor {
	return &Extractor{
		options:    options,
		sampleRate: sampleRate,
		transform:  fft.CreateFourierTransform(),
	}
}

// Options returns the pipeline configuration.
func (e *Extractor) Options() Options {
	return e.options
}

// Compute extracts the chroma vector of one frame. The frame is expected to
// be peak normalized already; see NormalizePeak.
func (e *Extractor) Compute(frame []float64) ([]float64, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	n := len(frame)
	if n == 0 {
		return make([]float64, Bins), nil
	}
	fftSize64, _ := fft.NextPowerOfTwo(uint64(n))
	fftSize := int(fftSize64)

	// Ensure the transform buffers match the frame size.
	if len(e.bufSignal) != fftSize {
		e.bufSignal = make([]float64, fftSize)
	}
	if len(e.bufSpectrum) != fftSize {
		e.bufSpectrum = make([]complex128, fftSize)
	}

	copy(e.bufSignal[:n], frame)
	fft.ZeroFloat(e.bufSignal[n:])

	if c := e.options.PreEmphasis; c > 0 {
		for i := n - 1; i >= 1; i-- {
			e.bufSignal[i] -= c * e.bufSignal[i-1]
		}
	}
	if e.options.HannWindow && n > 1 {
		for i := 0; i < n; i++ {
			e.bufSignal[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		}
	}

	err := e.transform.RealFourier(e.bufSignal, e.bufSpectrum, fft.SCALING_DEFAULT)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate forward FFT: %s", err.Error())
	}

	chroma := make([]float64, Bins)
	freqRes := e.sampleRate / float64(fftSize)
	harmonics := e.options.Harmonics
	if harmonics < 1 {
		harmonics = 1
	}

	for i := 0; i <= fftSize/2; i++ {
		freq := float64(i) * freqRes
		if freq < e.options.MinFrequency || freq > e.options.MaxFrequency {
			continue
		}
		// Compress dynamic range before folding.
		mag := math.Log1p(magnitude(e.bufSpectrum[i]))
		for h := 1; h <= harmonics; h++ {
			fundamental := freq / float64(h)
			if fundamental < e.options.MinFrequency {
				break
			}
			chroma[score.PitchClass(fundamental)] += mag / float64(h)
		}
	}

	return finish(chroma, e.options.Power), nil
}

func magnitude(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// Expected builds the analytic chroma vector for a note set: each fretted
// note contributes its fundamental and harmonics, weighted 1/harmonic, using
// the same normalization as the measured path.
func Expected(notes []score.Note, config guitar.Config, options Options) []float64 {
	chroma := make([]float64, Bins)
	harmonics := options.Harmonics
	if harmonics < 1 {
		harmonics = 1
	}
	for _, note := range notes {
		if !note.Fretted() {
			continue
		}
		fundamental := score.Frequency(note, config.ScaleLength, config.CapoFret)
		for h := 1; h <= harmonics; h++ {
			chroma[score.PitchClass(fundamental*float64(h))] += 1 / float64(h)
		}
	}
	return finish(chroma, options.Power)
}

func finish(chroma []float64, power float64) []float64 {
	out := Normalize(chroma)
	if power > 1 {
		for i, v := range out {
			out[i] = math.Pow(v, power)
		}
		out = Normalize(out)
	}
	return out
}

// Normalize scales a vector to unit L1 norm. The zero vector comes back
// unchanged, never NaN.
func Normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}

// MaxNormalize scales a vector so its largest element is 1. The zero vector
// comes back unchanged.
func MaxNormalize(v []float64) []float64 {
	max := 0.0
	for _, x := range v {
		if x > max {
			max = x
		}
	}
	out := make([]float64, len(v))
	if max == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / max
	}
	return out
}

// NormalizePeak scales a signal into [-1, 1] by its own peak amplitude. An
// all-zero frame stays zero.
func NormalizePeak(signal []float64) []float64 {
	peak := 0.0
	for _, x := range signal {
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}
	out := make([]float64, len(signal))
	if peak == 0 {
		return out
	}
	for i, x := range signal {
		out[i] = x / peak
	}
	return out
}

// RMSEnergy returns the mean square energy of a frame, the quantity the
// silence gate thresholds on.
func RMSEnergy(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range signal {
		sum += x * x
	}
	return sum / float64(len(signal))
}
