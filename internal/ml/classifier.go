// Package ml provides the Gaussian Naive Bayes classifier used to predict
// whether the next tick's price rises, and the evaluation helpers that score
// its predictions.
//
// A Model is produced once by Fit and is read-only afterwards, so a single
// Model may serve any number of concurrent Predict calls.
package ml

import "errors"

var (
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrInsufficientClasses = errors.New("insufficient classes")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrLengthMismatch      = errors.New("length mismatch")
	ErrEmptyInput          = errors.New("empty input")
	ErrNonFinite           = errors.New("non-finite value")
	ErrNotFitted           = errors.New("model not fitted")
)

// Classifier predicts a class label for each feature row.
type Classifier interface {
	// Predict returns one label per row, or an error if a row does not fit
	// the classifier.
	Predict(rows [][]float64) ([]int, error)
}

var _ Classifier = (*Model)(nil)
