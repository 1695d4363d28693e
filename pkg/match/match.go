// Package match decides whether the player hit the expected notes. It offers
// several interchangeable similarity strategies over chroma vectors, from a
// strict peak containment check to DTW over bounded feature histories.
package match

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/katalvlaran/lvlath/dtw"
	"github.com/metalblueberry/plectrum/pkg/circular"
)

// MaxHistory bounds the chroma histories used by the sequence metric and
// exposed for plotting.
const MaxHistory = 100

// Metric selects the similarity strategy.
type Metric int

const (
	// PeakSet matches when every expected pitch class is among the top
	// input pitch classes.
	PeakSet Metric = iota
	// Cosine thresholds the cosine similarity of the two vectors.
	Cosine
	// Pearson thresholds the Pearson correlation of the two vectors.
	Pearson
	// Euclidean thresholds a similarity derived from Euclidean distance.
	Euclidean
	// DTW warps the recent input history against the expected history and
	// thresholds the inverse distance.
	DTW
)

func (m Metric) String() string {
	switch m {
	case PeakSet:
		return "peakset"
	case Cosine:
		return "cosine"
	case Pearson:
		return "pearson"
	case Euclidean:
		return "euclidean"
	case DTW:
		return "dtw"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric resolves a metric by name.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "peakset", "peak-set", "peaks":
		return PeakSet, nil
	case "cosine":
		return Cosine, nil
	case "pearson":
		return Pearson, nil
	case "euclidean":
		return Euclidean, nil
	case "dtw":
		return DTW, nil
	}
	return PeakSet, fmt.Errorf("unknown similarity metric %q", name)
}

// Result is one verdict, pushed to the consumer per processed frame.
type Result struct {
	Metric     Metric
	Similarity float64
	Matched    bool
}

// PeakSetMatch reports whether every nonzero index of expected appears among
// the top-K input indices, K being the number of nonzero expected indices.
// Vacuously true when expected is all zero.
func PeakSetMatch(expected, input []float64) bool {
	var peaks []int
	for i, v := range expected {
		if v > 0 {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return true
	}

	indices := make([]int, len(input))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return input[indices[a]] > input[indices[b]]
	})
	if len(indices) > len(peaks) {
		indices = indices[:len(peaks)]
	}

	top := make(map[int]bool, len(indices))
	for _, i := range indices {
		top[i] = true
	}
	for _, p := range peaks {
		if !top[p] {
			return false
		}
	}
	return true
}

// CosineSimilarity of two vectors; 0 when either has no energy.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// PearsonCorrelation of two vectors; 0 when either is constant.
func PearsonCorrelation(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// EuclideanDistance between two vectors.
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DTWSimilarity warps the flattened input sequence against the flattened
// expected sequence. A distance of zero maps to similarity 1, anything else
// to 1/distance. Empty sequences yield 0.
func DTWSimilarity(input, expected [][]float64) float64 {
	if len(input) == 0 || len(expected) == 0 {
		return 0
	}
	a := flatten(input)
	b := flatten(expected)
	distance, _, err := dtw.DTW(a, b, &dtw.DTWOptions{
		MemoryMode: dtw.FullMatrix,
	})
	if err != nil {
		return 0
	}
	if distance == 0 {
		return 1
	}
	return 1 / distance
}

func flatten(seq [][]float64) []float64 {
	out := make([]float64, 0, len(seq)*12)
	for _, v := range seq {
		out = append(out, v...)
	}
	return out
}

// Comparator applies the configured metric to incoming chroma pairs and keeps
// the bounded histories the sequence metric and the plots feed on. Metric and
// threshold are mutable while the stream runs.
type Comparator struct {
	mutex     sync.RWMutex
	metric    Metric
	threshold float64

	input    *circular.Buffer[[]float64]
	expected *circular.Buffer[[]float64]
}

// NewComparator creates a comparator with the given initial strategy.
func NewComparator(metric Metric, threshold float64) *Comparator {
	return &Comparator{
		metric:    metric,
		threshold: threshold,
		input:     circular.New[[]float64](MaxHistory),
		expected:  circular.New[[]float64](MaxHistory),
	}
}

// Metric returns the active strategy.
func (c *Comparator) Metric() Metric {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.metric
}

// SetMetric switches strategies without restarting the stream.
func (c *Comparator) SetMetric(m Metric) {
	c.mutex.Lock()
	c.metric = m
	c.mutex.Unlock()
}

// Threshold returns the boolean-match threshold.
func (c *Comparator) Threshold() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.threshold
}

// SetThreshold adjusts the boolean-match threshold.
func (c *Comparator) SetThreshold(t float64) {
	c.mutex.Lock()
	c.threshold = t
	c.mutex.Unlock()
}

// Observe records one measured/expected chroma pair into the histories.
func (c *Comparator) Observe(input, expected []float64) {
	c.input.Append(input)
	c.expected.Append(expected)
}

// Compare computes the verdict for the current frame. The sequence metric
// compares histories, the pointwise metrics compare the vectors themselves.
func (c *Comparator) Compare(input, expected []float64) Result {
	c.mutex.RLock()
	metric := c.metric
	threshold := c.threshold
	c.mutex.RUnlock()

	var similarity float64
	switch metric {
	case PeakSet:
		if PeakSetMatch(expected, input) {
			similarity = 1
		}
	case Cosine:
		similarity = CosineSimilarity(input, expected)
	case Pearson:
		similarity = PearsonCorrelation(input, expected)
	case Euclidean:
		similarity = 1 / (1 + EuclideanDistance(input, expected))
	case DTW:
		similarity = DTWSimilarity(c.input.Snapshot(), c.expected.Snapshot())
	}

	return Result{
		Metric:     metric,
		Similarity: similarity,
		Matched:    similarity >= threshold,
	}
}

// InputHistory returns a copy of the recent measured chroma vectors.
func (c *Comparator) InputHistory() [][]float64 {
	return c.input.Snapshot()
}

// ExpectedHistory returns a copy of the recent expected chroma vectors.
func (c *Comparator) ExpectedHistory() [][]float64 {
	return c.expected.Snapshot()
}

// Reset drops both histories, typically on stop.
func (c *Comparator) Reset() {
	c.input.Reset()
	c.expected.Reset()
}
