// Package market turns raw intraday time-series documents into validated
// Observation values for a single instrument.
//
// Observations are plain values: they are created by the parser, never mutated,
// and carry the symbol declared by the source document.
package market

import (
	"errors"
	"sort"
)

// ErrMalformedInput is returned when the raw document does not have the
// expected intraday shape.
var ErrMalformedInput = errors.New("malformed input")

// Observation is one parsed price/volume sample of an instrument.
type Observation struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    uint64  `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// Inversions counts adjacent pairs whose timestamps run backwards.
// Intraday timestamps ("2006-01-02 15:04:05") order lexicographically.
func Inversions(obs []Observation) int {
	n := 0
	for i := 1; i < len(obs); i++ {
		if obs[i].Timestamp < obs[i-1].Timestamp {
			n++
		}
	}
	return n
}

// IsChronological reports whether obs is in non-decreasing timestamp order.
func IsChronological(obs []Observation) bool {
	return Inversions(obs) == 0
}

// SortChronological returns a copy of obs sorted by timestamp. Equal
// timestamps keep their relative order.
func SortChronological(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
