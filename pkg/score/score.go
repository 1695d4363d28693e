// Package score holds the in-memory representation of a transcribed piece:
// measures subdivided into divisions, each division carrying the set of notes
// that start there. Parsing a score out of a file is somebody else's job;
// this package only models the result and the pitch math derived from it.
package score

import (
	"fmt"
	"math"
)

const (
	// StandardScaleLength is the reference scale length in inches that the
	// open string frequency table is tuned for.
	StandardScaleLength = 25.5

	// MaxFret caps effective fret numbers, capo included.
	MaxFret = 24
)

// openStringFrequencies holds the fundamentals of standard tuning, indexed by
// string number minus one (string 1 = high E).
var openStringFrequencies = [6]float64{329.63, 246.94, 196.00, 146.83, 110.00, 82.41}

// Pitch is the notated pitch of a note, kept around for display purposes.
type Pitch struct {
	Step   byte // 'A'..'G'
	Alter  int8 // -1 flat, +1 sharp
	Octave uint8
}

// Note is a single played position on the fretboard. String and fret are
// pointers because a score may carry notes (rests, unpitched events) that
// have neither.
type Note struct {
	String   *uint8
	Fret     *uint8
	Duration uint32 // in divisions
	Pitch    *Pitch
}

// Label renders the note for logs. The String field shadows fmt.Stringer, so
// this is a plain method instead.
func (n Note) Label() string {
	if n.String == nil || n.Fret == nil {
		return "rest"
	}
	return fmt.Sprintf("string %d fret %d", *n.String, *n.Fret)
}

// Fretted reports whether the note has both a string and a fret assigned.
func (n Note) Fretted() bool {
	return n.String != nil && n.Fret != nil
}

// NewNote is a convenience constructor for a fretted note.
func NewNote(stringNum, fret uint8, duration uint32) Note {
	s := stringNum
	f := fret
	return Note{String: &s, Fret: &f, Duration: duration}
}

// TimeSignature of the piece. Only informational for the engine; scheduling
// is driven by divisions.
type TimeSignature struct {
	BeatsPerMeasure uint8
	BeatValue       uint8
}

// Measure is an ordered sequence of divisions. Every division holds the notes
// whose onset falls on it; an empty slot is silence.
type Measure struct {
	Positions [][]Note
}

// NewMeasure allocates a measure with the given number of divisions.
func NewMeasure(totalDivisions int) Measure {
	return Measure{Positions: make([][]Note, totalDivisions)}
}

// Score is the full piece, immutable during playback.
type Score struct {
	Measures            []Measure
	TimeSignature       TimeSignature
	Tempo               int // BPM
	DivisionsPerQuarter uint8
	DivisionsPerMeasure uint8
}

// NotesAt returns the note set starting at the given slot, or nil when the
// slot is out of range or silent.
func (s *Score) NotesAt(measure, division int) []Note {
	if measure < 0 || measure >= len(s.Measures) {
		return nil
	}
	positions := s.Measures[measure].Positions
	if division < 0 || division >= len(positions) {
		return nil
	}
	return positions[division]
}

// Frequency computes the sounding fundamental of a note. The capo shifts the
// effective fret, and the frequency scales inversely with the scale length
// relative to the 25.5" standard.
func Frequency(n Note, scaleLength float64, capoFret uint8) float64 {
	stringIndex := 0
	if n.String != nil && *n.String >= 1 {
		stringIndex = int(*n.String) - 1
	}
	if stringIndex > len(openStringFrequencies)-1 {
		stringIndex = len(openStringFrequencies) - 1
	}
	open := openStringFrequencies[stringIndex]

	fret := uint8(0)
	if n.Fret != nil {
		fret = *n.Fret
	}
	effectiveFret := int(fret) + int(capoFret)
	if effectiveFret > MaxFret {
		effectiveFret = MaxFret
	}

	base := open * math.Pow(2, float64(effectiveFret)/12)
	if scaleLength <= 0 {
		scaleLength = StandardScaleLength
	}
	return base * (StandardScaleLength / scaleLength)
}

// FreqToMIDI converts a frequency in Hz to the nearest MIDI note number.
func FreqToMIDI(freq float64) int {
	return int(math.Round(69 + 12*math.Log2(freq/440)))
}

// PitchClass folds a frequency to its pitch class 0..11 (0 = C).
func PitchClass(freq float64) int {
	midi := FreqToMIDI(freq)
	return ((midi % 12) + 12) % 12
}
