package listen

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/metalblueberry/plectrum/pkg/chroma"
	"github.com/metalblueberry/plectrum/pkg/guitar"
	"github.com/metalblueberry/plectrum/pkg/match"
	"github.com/metalblueberry/plectrum/pkg/score"
	"github.com/stretchr/testify/assert"
)

const testSampleRate = 44100

func testOptions() chroma.Options {
	opts := chroma.DefaultOptions()
	opts.Harmonics = 1
	opts.PreEmphasis = 0
	return opts
}

func sineChunk(frequency float64, n int) []float32 {
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = float32(0.5 * math.Sin(2*math.Pi*frequency*float64(i)/testSampleRate))
	}
	return chunk
}

func expectOpenHighE(l *Listener) []score.Note {
	notes := []score.Note{score.NewNote(1, 0, 1)}
	vec := chroma.Expected(notes, guitar.AcousticConfig(), l.Options())
	l.Expected().Swap(notes, vec)
	return notes
}

func TestMatchesPlayedNote(t *testing.T) {
	assert := assert.New(t)
	opts := testOptions()
	l := New(testSampleRate, opts, match.NewComparator(match.PeakSet, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	expectOpenHighE(l)

	// Feed the exact pitch the matcher expects.
	frequency := score.Frequency(score.NewNote(1, 0, 1), score.StandardScaleLength, 0)
	l.Push(sineChunk(frequency, 2*opts.FrameSize))

	select {
	case r := <-l.Results():
		assert.True(r.Matched)
		assert.Equal(1.0, r.Similarity)
	case <-time.After(2 * time.Second):
		t.Fatal("no match result delivered")
	}
}

func TestSilenceIsNotAnAttempt(t *testing.T) {
	opts := testOptions()
	l := New(testSampleRate, opts, match.NewComparator(match.PeakSet, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	expectOpenHighE(l)
	l.Push(make([]float32, 2*opts.FrameSize))

	select {
	case r := <-l.Results():
		t.Fatalf("silent frame produced a verdict: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNoExpectedNotesNoVerdict(t *testing.T) {
	opts := testOptions()
	l := New(testSampleRate, opts, match.NewComparator(match.PeakSet, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Push(sineChunk(440, 2*opts.FrameSize))

	select {
	case r := <-l.Results():
		t.Fatalf("verdict without expected notes: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMatchedFlagSuppressesRecomputation(t *testing.T) {
	assert := assert.New(t)
	opts := testOptions()
	l := New(testSampleRate, opts, match.NewComparator(match.PeakSet, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	frequency := score.Frequency(score.NewNote(1, 0, 1), score.StandardScaleLength, 0)
	expectOpenHighE(l)
	l.Push(sineChunk(frequency, 4*opts.FrameSize))

	// Exactly one verdict per note set.
	select {
	case r := <-l.Results():
		assert.True(r.Matched)
	case <-time.After(2 * time.Second):
		t.Fatal("no match result delivered")
	}
	select {
	case r := <-l.Results():
		t.Fatalf("verdict recomputed while chord sustained: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}

	// A new note set rearms matching.
	expectOpenHighE(l)
	l.Push(sineChunk(frequency, 4*opts.FrameSize))
	select {
	case r := <-l.Results():
		assert.True(r.Matched)
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict after swapping in new notes")
	}
}

func TestExpectedSwapClearsMatchedFlag(t *testing.T) {
	assert := assert.New(t)
	e := NewExpected()

	_, _, matched := e.Snapshot()
	assert.True(matched, "empty state starts disarmed")

	e.Swap([]score.Note{score.NewNote(1, 0, 1)}, []float64{1})
	notes, vec, matched := e.Snapshot()
	assert.Len(notes, 1)
	assert.Equal([]float64{1}, vec)
	assert.False(matched)

	e.MarkMatched()
	_, _, matched = e.Snapshot()
	assert.True(matched)

	e.Clear()
	notes, vec, matched = e.Snapshot()
	assert.Nil(notes)
	assert.Nil(vec)
	assert.True(matched)
}

func TestThresholds(t *testing.T) {
	assert := assert.New(t)
	th := NewThresholds()
	assert.Equal(DefaultSilenceThreshold, th.Silence())

	th.SetSilence(0.05)
	assert.Equal(0.05, th.Silence())
}

func TestSignalHistoryBounded(t *testing.T) {
	opts := testOptions()
	l := New(testSampleRate, opts, match.NewComparator(match.Cosine, 0.7))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	expectOpenHighE(l)
	for i := 0; i < 8; i++ {
		l.Push(sineChunk(440, opts.FrameSize))
	}

	assert.Eventually(t, func() bool {
		n := len(l.SignalHistory())
		return n > 0 && n <= match.MaxHistory
	}, 2*time.Second, 20*time.Millisecond)
}
