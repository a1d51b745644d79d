package ml

import (
	"fmt"
	"math"
	"sort"
)

// DefaultVarSmoothing is the share of the largest feature variance added to
// every class variance.
const DefaultVarSmoothing = 1e-9

var log2Pi = math.Log(2 * math.Pi)

// Params configures Fit.
type Params struct {
	VarSmoothing float64
}

// ClassStats are the per-class statistics of a fitted model. Variance already
// includes the smoothing term.
type ClassStats struct {
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
	Prior    float64   `json:"prior"`
	Count    int       `json:"count"`
}

// Model is a fitted Gaussian Naive Bayes classifier.
type Model struct {
	classes []int // ascending
	stats   []ClassStats
	dims    int
	epsilon float64

	// cached log terms, indexed like classes
	logPrior []float64
	logNorm  [][]float64 // -0.5*log(2*pi*var)
}

// Fit estimates per-class means, population variances and priors.
//
// features and labels must be the same length and every row must have the
// same non-zero width of finite values. At least two distinct labels are
// required. Sums are
// accumulated in row order so identical inputs always give identical models.
func Fit(features [][]float64, labels []int, params Params) (*Model, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature rows, %d labels", ErrShapeMismatch, len(features), len(labels))
	}

	dims := 0
	if len(features) > 0 {
		dims = len(features[0])
		if dims == 0 {
			return nil, fmt.Errorf("%w: row 0 has no features", ErrDimensionMismatch)
		}
		for i, row := range features {
			if len(row) != dims {
				return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), dims)
			}
			for d, x := range row {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return nil, fmt.Errorf("%w: row %d feature %d is %v", ErrNonFinite, i, d, x)
				}
			}
		}
	}

	classes := distinct(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 distinct labels, got %d", ErrInsufficientClasses, len(classes))
	}

	smoothing := params.VarSmoothing
	if smoothing <= 0 {
		smoothing = DefaultVarSmoothing
	}
	epsilon := smoothing * maxVariance(features, dims)
	if epsilon == 0 {
		epsilon = smoothing
	}
	if math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return nil, fmt.Errorf("%w: feature variance overflows", ErrNonFinite)
	}

	index := make(map[int]int, len(classes))
	stats := make([]ClassStats, len(classes))
	for k, c := range classes {
		index[c] = k
		stats[k] = ClassStats{
			Mean:     make([]float64, dims),
			Variance: make([]float64, dims),
		}
	}

	for i, row := range features {
		s := &stats[index[labels[i]]]
		s.Count++
		for d, x := range row {
			s.Mean[d] += x
		}
	}
	for k := range stats {
		n := float64(stats[k].Count)
		for d := range stats[k].Mean {
			stats[k].Mean[d] /= n
		}
	}

	for i, row := range features {
		s := &stats[index[labels[i]]]
		for d, x := range row {
			diff := x - s.Mean[d]
			s.Variance[d] += diff * diff
		}
	}

	total := float64(len(labels))
	m := &Model{
		classes:  classes,
		stats:    stats,
		dims:     dims,
		epsilon:  epsilon,
		logPrior: make([]float64, len(classes)),
		logNorm:  make([][]float64, len(classes)),
	}
	for k := range stats {
		s := &stats[k]
		n := float64(s.Count)
		s.Prior = n / total
		m.logPrior[k] = math.Log(s.Prior)
		m.logNorm[k] = make([]float64, dims)
		for d := range s.Variance {
			s.Variance[d] = s.Variance[d]/n + epsilon
			if math.IsInf(s.Variance[d], 0) || math.IsNaN(s.Variance[d]) {
				return nil, fmt.Errorf("%w: variance of class %d feature %d overflows", ErrNonFinite, classes[k], d)
			}
			m.logNorm[k][d] = -0.5 * (log2Pi + math.Log(s.Variance[d]))
		}
	}

	return m, nil
}

// Predict returns the class with the highest log-joint score for each row.
// Ties go to the lowest class label.
func (m *Model) Predict(rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	scores := make([]float64, len(m.classes))
	for i, row := range rows {
		if err := m.logJoint(row, scores); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		best := 0
		for k := 1; k < len(scores); k++ {
			if scores[k] > scores[best] {
				best = k
			}
		}
		out[i] = m.classes[best]
	}
	return out, nil
}

// LogJoint returns log P(class) + log P(row | class) for every class, in the
// order of Classes.
func (m *Model) LogJoint(row []float64) ([]float64, error) {
	scores := make([]float64, len(m.classes))
	if err := m.logJoint(row, scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// PredictProba returns the posterior probability of every class, in the order
// of Classes.
func (m *Model) PredictProba(row []float64) ([]float64, error) {
	scores, err := m.LogJoint(row)
	if err != nil {
		return nil, err
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for k, s := range scores {
		scores[k] = math.Exp(s - maxScore)
		sum += scores[k]
	}
	for k := range scores {
		scores[k] /= sum
	}
	return scores, nil
}

func (m *Model) logJoint(row []float64, scores []float64) error {
	if len(m.classes) == 0 {
		return ErrNotFitted
	}
	if len(row) != m.dims {
		return fmt.Errorf("%w: got %d features, model has %d", ErrDimensionMismatch, len(row), m.dims)
	}
	for k := range m.classes {
		s := m.logPrior[k]
		mean, variance, norm := m.stats[k].Mean, m.stats[k].Variance, m.logNorm[k]
		for d, x := range row {
			diff := x - mean[d]
			s += norm[d] - diff*diff/(2*variance[d])
		}
		scores[k] = s
	}
	return nil
}

// Classes returns the labels seen during Fit in ascending order.
func (m *Model) Classes() []int {
	out := make([]int, len(m.classes))
	copy(out, m.classes)
	return out
}

// Dims is the feature width the model was fitted on.
func (m *Model) Dims() int { return m.dims }

// Epsilon is the smoothing term added to every variance.
func (m *Model) Epsilon() float64 { return m.epsilon }

// Stats returns a copy of the statistics of class c.
func (m *Model) Stats(c int) (ClassStats, bool) {
	for k, class := range m.classes {
		if class == c {
			s := m.stats[k]
			return ClassStats{
				Mean:     append([]float64(nil), s.Mean...),
				Variance: append([]float64(nil), s.Variance...),
				Prior:    s.Prior,
				Count:    s.Count,
			}, true
		}
	}
	return ClassStats{}, false
}

func distinct(labels []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// maxVariance is the largest population variance of any feature column.
func maxVariance(features [][]float64, dims int) float64 {
	if len(features) == 0 {
		return 0
	}
	n := float64(len(features))
	maxVar := 0.0
	for d := 0; d < dims; d++ {
		var sum float64
		for _, row := range features {
			sum += row[d]
		}
		mean := sum / n
		var sq float64
		for _, row := range features {
			diff := row[d] - mean
			sq += diff * diff
		}
		if v := sq / n; v > maxVar {
			maxVar = v
		}
	}
	return maxVar
}
