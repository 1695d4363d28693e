package score

// Demo returns a small built-in exercise: two measures alternating an open
// E-minor shape with single notes. The command-line tools use it when no
// score collaborator is wired up.
func Demo() *Score {
	divisionsPerMeasure := 8

	m1 := NewMeasure(divisionsPerMeasure)
	m1.Positions[0] = []Note{
		NewNote(6, 0, 4), // E2
		NewNote(5, 2, 4), // B2
		NewNote(4, 2, 4), // E3
	}
	m1.Positions[4] = []Note{NewNote(1, 0, 2)} // E4
	m1.Positions[6] = []Note{NewNote(2, 0, 2)} // B3

	m2 := NewMeasure(divisionsPerMeasure)
	m2.Positions[0] = []Note{NewNote(3, 0, 2)} // G3
	m2.Positions[2] = []Note{NewNote(2, 0, 2)}
	m2.Positions[4] = []Note{
		NewNote(6, 0, 4),
		NewNote(3, 0, 4),
	}

	return &Score{
		Measures:            []Measure{m1, m2},
		TimeSignature:       TimeSignature{BeatsPerMeasure: 4, BeatValue: 4},
		Tempo:               120,
		DivisionsPerQuarter: 2,
		DivisionsPerMeasure: uint8(divisionsPerMeasure),
	}
}
