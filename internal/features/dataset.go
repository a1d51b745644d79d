package features

import (
	"errors"
	"fmt"

	"tickbayes/internal/market"
)

// ErrInsufficientData is returned when there are too few observations to form
// a single labelled row.
var ErrInsufficientData = errors.New("insufficient data")

// MinObservations is the smallest series that yields one label.
const MinObservations = 2

// Binary next-tick labels.
const (
	LabelDown = 0 // next price equal or lower
	LabelUp   = 1 // next price strictly higher
)

// FeatureNames names the columns of a feature row.
var FeatureNames = []string{"price", "volume"}

// Dataset holds one feature row per observation and one label per adjacent
// pair, so len(Labels) == len(Features)-1. The last row has no label.
type Dataset struct {
	Features [][]float64
	Labels   []int
}

// Build derives the feature matrix and the next-tick label vector from an
// ordered series. obs is not modified.
func Build(obs []market.Observation) (*Dataset, error) {
	if len(obs) < MinObservations {
		return nil, fmt.Errorf("%w: need at least %d observations, got %d", ErrInsufficientData, MinObservations, len(obs))
	}

	rows := make([][]float64, len(obs))
	for i, o := range obs {
		rows[i] = []float64{o.Price, float64(o.Volume)}
	}

	labels := make([]int, len(obs)-1)
	for i := 0; i < len(obs)-1; i++ {
		if obs[i].Price < obs[i+1].Price {
			labels[i] = LabelUp
		} else {
			labels[i] = LabelDown
		}
	}

	return &Dataset{Features: rows, Labels: labels}, nil
}

// TrainingSet returns the rows that have a label, paired one-to-one with the
// labels. The returned slices share storage with the dataset.
func (d *Dataset) TrainingSet() ([][]float64, []int) {
	return d.Features[:len(d.Labels)], d.Labels
}
