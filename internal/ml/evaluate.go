package ml

import "fmt"

// Accuracy is the share of positions where predicted equals actual.
// Empty input is an error rather than 0 or 1.
func Accuracy(predicted, actual []int) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("%w: %d predictions, %d labels", ErrLengthMismatch, len(predicted), len(actual))
	}
	if len(actual) == 0 {
		return 0, fmt.Errorf("%w: nothing to evaluate", ErrEmptyInput)
	}

	correct := 0
	for i := range predicted {
		if predicted[i] == actual[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual)), nil
}

// MajorityBaseline is the accuracy of always predicting the most frequent
// label.
func MajorityBaseline(labels []int) (float64, error) {
	if len(labels) == 0 {
		return 0, fmt.Errorf("%w: no labels", ErrEmptyInput)
	}

	counts := make(map[int]int)
	best := 0
	for _, l := range labels {
		counts[l]++
		if counts[l] > best {
			best = counts[l]
		}
	}
	return float64(best) / float64(len(labels)), nil
}
