// Package listen consumes the live instrument signal. The input callback
// appends samples to a capture ring and pokes a worker goroutine; the worker
// extracts overlapping frames, gates silence, computes chroma features and
// asks the comparator whether the player hit the expected notes.
package listen

import (
	"context"
	"log"
	"sync"

	"github.com/metalblueberry/plectrum/pkg/chroma"
	"github.com/metalblueberry/plectrum/pkg/circular"
	"github.com/metalblueberry/plectrum/pkg/match"
	"github.com/metalblueberry/plectrum/pkg/score"
)

// DefaultSilenceThreshold is the mean square energy below which a frame
// counts as "no attempt" rather than a mismatch.
const DefaultSilenceThreshold = 0.01

// captureFrames sizes the capture ring in frames. Deep enough to absorb a
// late worker without dropping input.
const captureFrames = 8

// Expected is the shared expected-note state: single writer (the scheduler
// glue), single reader (the worker). The note set, its analytic chroma and
// the already-matched flag swap atomically under one lock.
type Expected struct {
	mutex   sync.Mutex
	notes   []score.Note
	chroma  []float64
	matched bool
}

// NewExpected creates an empty expected state; matched starts true so the
// worker stays idle until the first note set arrives.
func NewExpected() *Expected {
	return &Expected{matched: true}
}

// Swap installs a new note set with its analytic chroma and rearms matching.
func (e *Expected) Swap(notes []score.Note, expectedChroma []float64) {
	e.mutex.Lock()
	e.notes = notes
	e.chroma = expectedChroma
	e.matched = false
	e.mutex.Unlock()
}

// Clear empties the state, e.g. when playback stops.
func (e *Expected) Clear() {
	e.mutex.Lock()
	e.notes = nil
	e.chroma = nil
	e.matched = true
	e.mutex.Unlock()
}

// Snapshot returns the current note set, chroma and matched flag.
func (e *Expected) Snapshot() ([]score.Note, []float64, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.notes, e.chroma, e.matched
}

// MarkMatched records that the current note set has been matched; matching
// stays quiet until the next Swap.
func (e *Expected) MarkMatched() {
	e.mutex.Lock()
	e.matched = true
	e.mutex.Unlock()
}

// Thresholds groups the live-tunable detection thresholds behind one lock.
type Thresholds struct {
	mutex   sync.RWMutex
	silence float64
}

// NewThresholds creates the group with the default silence threshold.
func NewThresholds() *Thresholds {
	return &Thresholds{silence: DefaultSilenceThreshold}
}

// Silence returns the silence gate threshold.
func (t *Thresholds) Silence() float64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.silence
}

// SetSilence adjusts the silence gate threshold.
func (t *Thresholds) SetSilence(v float64) {
	t.mutex.Lock()
	t.silence = v
	t.mutex.Unlock()
}

// Listener is the capture side of the engine. It owns no audio device; the
// platform callback feeds it through Push.
type Listener struct {
	sampleRate float64
	options    chroma.Options

	capture   *circular.Buffer[float64]
	ready     chan struct{}
	extractor *chroma.Extractor

	expected   *Expected
	thresholds *Thresholds
	comparator *match.Comparator

	signalHistory *circular.Buffer[[]float64]

	results chan match.Result
	frame   []float64
}

// New creates a listener. Results are delivered on a buffered channel; the
// worker never blocks on it.
func New(sampleRate float64, options chroma.Options, comparator *match.Comparator) *Listener {
	return &Listener{
		sampleRate:    sampleRate,
		options:       options,
		capture:       circular.New[float64](captureFrames * options.FrameSize),
		ready:         make(chan struct{}, 1),
		extractor:     chroma.NewExtractor(sampleRate, options),
		expected:      NewExpected(),
		thresholds:    NewThresholds(),
		comparator:    comparator,
		signalHistory: circular.New[[]float64](match.MaxHistory),
		results:       make(chan match.Result, 16),
		frame:         make([]float64, options.FrameSize),
	}
}

// Options returns the feature pipeline configuration, shared by the
// measured and the expected chroma paths.
func (l *Listener) Options() chroma.Options {
	return l.options
}

// Expected exposes the shared expected-note state for the scheduler glue.
func (l *Listener) Expected() *Expected {
	return l.expected
}

// Thresholds exposes the live threshold group.
func (l *Listener) Thresholds() *Thresholds {
	return l.thresholds
}

// Comparator exposes the similarity configuration and histories.
func (l *Listener) Comparator() *match.Comparator {
	return l.comparator
}

// Results is the outbound verdict channel.
func (l *Listener) Results() <-chan match.Result {
	return l.results
}

// SignalHistory returns copies of the recent normalized input frames, for
// plotting.
func (l *Listener) SignalHistory() [][]float64 {
	return l.signalHistory.Snapshot()
}

// Push appends captured samples and wakes the worker. Called from the audio
// input callback: the ring lock is held for one copy and the wakeup never
// blocks.
func (l *Listener) Push(samples []float32) {
	converted := make([]float64, len(samples))
	for i, s := range samples {
		converted[i] = float64(s)
	}
	l.capture.Append(converted...)

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Run processes frames until the context is canceled. Start it on its own
// goroutine.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ready:
			l.drainFrames()
		}
	}
}

// drainFrames consumes every complete frame currently buffered, keeping the
// frame overlap in place by discarding only the hop size.
func (l *Listener) drainFrames() {
	for l.capture.Len() >= l.options.FrameSize {
		l.capture.Peek(l.frame)
		l.capture.Discard(l.options.HopSize)
		l.processFrame(l.frame)
	}
}

func (l *Listener) processFrame(frame []float64) {
	normalized := chroma.NormalizePeak(frame)

	// Silence is no attempt, not a mismatch.
	if chroma.RMSEnergy(normalized) < l.thresholds.Silence() {
		return
	}

	notes, expectedChroma, matched := l.expected.Snapshot()
	if len(notes) == 0 {
		return
	}

	inputChroma, err := l.extractor.Compute(normalized)
	if err != nil {
		log.Printf("listen: chroma extraction failed: %v", err)
		return
	}

	l.signalHistory.Append(normalized)
	l.comparator.Observe(inputChroma, expectedChroma)

	// The current note set already matched; keep collecting history but
	// stay quiet until the scheduler swaps in the next set.
	if matched {
		return
	}

	result := l.comparator.Compare(inputChroma, expectedChroma)
	if result.Matched {
		l.expected.MarkMatched()
	}
	l.deliver(result)
}

// deliver never blocks the processing path. A full channel means the
// consumer is gone or stalled; the result is dropped quietly.
func (l *Listener) deliver(r match.Result) {
	select {
	case l.results <- r:
	default:
		log.Println("listen: result receiver not keeping up, dropping verdict")
	}
}
