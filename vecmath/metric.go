package vecmath

import (
	"fmt"
	"strings"
)

// Metric selects the similarity function used to score vectors.
// The zero value is MetricCosine.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric parses a metric name as produced by Metric.String.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "dot", "inner_product":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDot:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Func scores two vectors of equal dimension; higher is more similar.
type Func func(a, b []float32) (float32, error)

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return CosineSimilarity, nil
	case MetricEuclidean:
		return euclideanSimilarity, nil
	case MetricDot:
		return dotSimilarity, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Similarity scores a against b with the given metric.
func Similarity(m Metric, a, b []float32) (float32, error) {
	fn, err := Provider(m)
	if err != nil {
		return 0, err
	}
	return fn(a, b)
}

func euclideanSimilarity(a, b []float32) (float32, error) {
	d, err := EuclideanDistance(a, b)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + d), nil
}

func dotSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	return Dot(a, b), nil
}
