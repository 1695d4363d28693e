package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequencyOpenStrings(t *testing.T) {
	assert := assert.New(t)

	expected := []float64{329.63, 246.94, 196.00, 146.83, 110.00, 82.41}
	for i, want := range expected {
		n := NewNote(uint8(i+1), 0, 1)
		assert.InDelta(want, Frequency(n, StandardScaleLength, 0), 1e-9)
	}
}

func TestFrequencyFretAndCapo(t *testing.T) {
	assert := assert.New(t)

	// Fret 12 doubles the open frequency.
	n := NewNote(6, 12, 1)
	assert.InDelta(2*82.41, Frequency(n, StandardScaleLength, 0), 1e-6)

	// Capo adds to the fret uniformly.
	fretted := NewNote(6, 5, 1)
	capoed := NewNote(6, 0, 1)
	assert.InDelta(
		Frequency(fretted, StandardScaleLength, 2),
		Frequency(capoed, StandardScaleLength, 7),
		1e-9,
	)
}

func TestFrequencyFretCap(t *testing.T) {
	// Beyond the last fret the pitch stops rising.
	high := NewNote(1, 20, 1)
	assert.Equal(t,
		Frequency(high, StandardScaleLength, 10),
		Frequency(high, StandardScaleLength, 4),
	)
}

func TestFrequencyScaleLength(t *testing.T) {
	n := NewNote(5, 0, 1)
	short := Frequency(n, StandardScaleLength/2, 0)
	standard := Frequency(n, StandardScaleLength, 0)
	assert.InDelta(t, 2*standard, short, 1e-9)
}

func TestPitchClass(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(9, PitchClass(440))    // A4
	assert.Equal(4, PitchClass(329.63)) // E4
	assert.Equal(4, PitchClass(82.41))  // E2, octave independent
	assert.Equal(0, PitchClass(261.63)) // C4
}

func TestFreqToMIDI(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(69, FreqToMIDI(440))
	assert.Equal(64, FreqToMIDI(329.63))
	assert.Equal(40, FreqToMIDI(82.41))
}

func TestNotesAt(t *testing.T) {
	assert := assert.New(t)
	s := Demo()

	assert.NotEmpty(s.NotesAt(0, 0))
	assert.Empty(s.NotesAt(0, 1))
	assert.Nil(s.NotesAt(-1, 0))
	assert.Nil(s.NotesAt(len(s.Measures), 0))
	assert.Nil(s.NotesAt(0, int(s.DivisionsPerMeasure)))
}

func TestMeasureInvariant(t *testing.T) {
	s := Demo()
	for _, m := range s.Measures {
		assert.Len(t, m.Positions, int(s.DivisionsPerMeasure))
	}
}
