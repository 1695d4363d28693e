package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeakSetMatch(t *testing.T) {
	assert := assert.New(t)

	expected := []float64{0, 0, 0.5, 0, 0.5, 0, 0, 0, 0, 0, 0, 0}

	// Expected peaks are the two strongest input bins.
	input := []float64{0.1, 0, 0.9, 0, 0.8, 0.2, 0, 0, 0, 0, 0, 0}
	assert.True(PeakSetMatch(expected, input))

	// One expected peak is pushed out of the top two.
	input = []float64{0.9, 0, 0.8, 0, 0.1, 0.2, 0, 0, 0, 0, 0, 0}
	assert.False(PeakSetMatch(expected, input))
}

func TestPeakSetMatchVacuous(t *testing.T) {
	expected := make([]float64, 12)
	input := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	assert.True(t, PeakSetMatch(expected, input))
}

func TestPeakSetMatchSingleNote(t *testing.T) {
	assert := assert.New(t)
	expected := make([]float64, 12)
	expected[4] = 1

	input := make([]float64, 12)
	input[4] = 0.3
	input[7] = 0.2
	assert.True(PeakSetMatch(expected, input))

	input[7] = 0.5
	assert.False(PeakSetMatch(expected, input))
}

func TestCosineSimilarity(t *testing.T) {
	assert := assert.New(t)

	a := []float64{0.2, 0.3, 0.5}
	assert.InDelta(1.0, CosineSimilarity(a, a), 1e-12)

	assert.Zero(CosineSimilarity([]float64{1, 0}, []float64{0, 1}))
	assert.Zero(CosineSimilarity(a, []float64{0, 0, 0}))
}

func TestPearsonCorrelation(t *testing.T) {
	assert := assert.New(t)

	a := []float64{1, 2, 3, 4}
	assert.InDelta(1.0, PearsonCorrelation(a, a), 1e-12)
	assert.InDelta(-1.0, PearsonCorrelation(a, []float64{4, 3, 2, 1}), 1e-12)

	// A constant vector has no variance to correlate against.
	assert.Zero(PearsonCorrelation(a, []float64{2, 2, 2, 2}))
	assert.Zero(PearsonCorrelation(nil, nil))
}

func TestEuclideanDistance(t *testing.T) {
	assert := assert.New(t)
	assert.Zero(EuclideanDistance([]float64{1, 2}, []float64{1, 2}))
	assert.InDelta(5.0, EuclideanDistance([]float64{0, 0}, []float64{3, 4}), 1e-12)
}

func TestDTWSimilarityIdentity(t *testing.T) {
	assert := assert.New(t)

	seq := [][]float64{
		{0, 1, 0, 0},
		{0.5, 0.5, 0, 0},
		{0, 0, 1, 0},
	}
	// A sequence against itself warps with zero cost.
	assert.InDelta(1.0, DTWSimilarity(seq, seq), 1e-12)
}

func TestDTWSimilarityEmpty(t *testing.T) {
	assert := assert.New(t)
	assert.Zero(DTWSimilarity(nil, [][]float64{{1}}))
	assert.Zero(DTWSimilarity([][]float64{{1}}, nil))
}

func TestParseMetric(t *testing.T) {
	assert := assert.New(t)

	for _, name := range []string{"peakset", "cosine", "pearson", "euclidean", "dtw"} {
		m, err := ParseMetric(name)
		assert.NoError(err)
		assert.Equal(name, m.String())
	}

	_, err := ParseMetric("fancy")
	assert.Error(err)
}

func TestComparatorPeakSet(t *testing.T) {
	assert := assert.New(t)
	c := NewComparator(PeakSet, 1)

	expected := make([]float64, 12)
	expected[4] = 1
	input := make([]float64, 12)
	input[4] = 0.9

	r := c.Compare(input, expected)
	assert.True(r.Matched)
	assert.Equal(1.0, r.Similarity)
	assert.Equal(PeakSet, r.Metric)
}

func TestComparatorLiveReconfiguration(t *testing.T) {
	assert := assert.New(t)
	c := NewComparator(Cosine, 0.9)

	a := []float64{1, 0, 0}
	b := []float64{0.9, 0.1, 0}
	first := c.Compare(a, b)

	c.SetMetric(Euclidean)
	c.SetThreshold(0.5)
	second := c.Compare(a, b)

	assert.Equal(Cosine, first.Metric)
	assert.Equal(Euclidean, second.Metric)
	assert.True(second.Matched)
}

func TestComparatorHistoriesBounded(t *testing.T) {
	assert := assert.New(t)
	c := NewComparator(DTW, 0.5)

	v := []float64{1, 0, 0}
	for i := 0; i < MaxHistory+20; i++ {
		c.Observe(v, v)
	}
	assert.Len(c.InputHistory(), MaxHistory)
	assert.Len(c.ExpectedHistory(), MaxHistory)

	c.Reset()
	assert.Empty(c.InputHistory())
	assert.Empty(c.ExpectedHistory())
}
