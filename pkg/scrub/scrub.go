// Package scrub drives playback time. A Scrubber walks a score against the
// wall clock and announces every (measure, division) boundary it crosses,
// together with the notes whose onset sits on it. Stopping discards the
// position; playback always restarts from the top.
package scrub

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/metalblueberry/plectrum/pkg/score"
)

// TickInterval bounds how often the position is re-derived from the clock,
// and therefore the worst-case latency of a stop request.
const TickInterval = 10 * time.Millisecond

// Event is emitted once per division change.
type Event struct {
	Notes    []score.Note
	Division int
	Measure  int
}

// Scrubber schedules one score. It is single-use per Run call but can run
// any number of times, always from (0, 0).
type Scrubber struct {
	score              *score.Score
	secondsPerDivision float64
	totalDuration      time.Duration

	playing atomic.Bool
	stop    atomic.Bool

	events chan Event
}

// New creates a scrubber. A tempoOverride > 0 replaces the score's own tempo.
func New(s *score.Score, tempoOverride int) *Scrubber {
	tempo := s.Tempo
	if tempoOverride > 0 {
		tempo = tempoOverride
	}
	secondsPerBeat := 60.0 / float64(tempo)
	secondsPerDivision := secondsPerBeat / float64(s.DivisionsPerQuarter)
	total := float64(len(s.Measures)) * float64(s.DivisionsPerMeasure) * secondsPerDivision

	return &Scrubber{
		score:              s,
		secondsPerDivision: secondsPerDivision,
		totalDuration:      time.Duration(total * float64(time.Second)),
		events:             make(chan Event, int(s.DivisionsPerMeasure)),
	}
}

// SecondsPerDivision returns the duration of one division in seconds.
func (t *Scrubber) SecondsPerDivision() float64 {
	return t.secondsPerDivision
}

// TotalDuration returns the full playback duration of the score.
func (t *Scrubber) TotalDuration() time.Duration {
	return t.totalDuration
}

// Events is the outbound channel of division changes. Events are dropped,
// not blocked on, when the consumer lags.
func (t *Scrubber) Events() <-chan Event {
	return t.events
}

// Playing reports whether a Run is in progress.
func (t *Scrubber) Playing() bool {
	return t.playing.Load()
}

// Stop requests the current Run to end. Observed within one tick.
func (t *Scrubber) Stop() {
	t.stop.Store(true)
}

// Position converts an elapsed time in seconds to a (measure, division)
// pair. The measure is clamped to the last one so a late tick never indexes
// out of range.
func (t *Scrubber) Position(elapsed float64) (measure, division int) {
	totalDivisions := int(elapsed / t.secondsPerDivision)
	perMeasure := int(t.score.DivisionsPerMeasure)
	measure = totalDivisions / perMeasure
	division = totalDivisions % perMeasure
	if last := len(t.score.Measures) - 1; measure > last {
		measure = last
	}
	return measure, division
}

// Run plays the score from the top until it ends, Stop is called, or the
// context is canceled. It blocks; callers start it on its own goroutine.
func (t *Scrubber) Run(ctx context.Context) {
	t.stop.Store(false)
	t.playing.Store(true)
	defer t.playing.Store(false)

	start := time.Now()
	lastMeasure, lastDivision := -1, -1

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if t.stop.Load() {
			return
		}

		elapsed := time.Since(start)
		if elapsed >= t.totalDuration {
			return
		}

		measure, division := t.Position(elapsed.Seconds())
		if measure >= len(t.score.Measures) {
			return
		}
		if measure == lastMeasure && division == lastDivision {
			continue
		}
		lastMeasure, lastDivision = measure, division

		t.dispatch(Event{
			Notes:    t.score.NotesAt(measure, division),
			Division: division,
			Measure:  measure,
		})
	}
}

// dispatch never blocks: a stalled or gone receiver costs an event, not the
// schedule.
func (t *Scrubber) dispatch(e Event) {
	select {
	case t.events <- e:
	default:
		log.Printf("scrub: dropping event for measure %d division %d, receiver not keeping up", e.Measure, e.Division)
	}
}
