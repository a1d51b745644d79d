package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tickbayes/internal/features"
	"tickbayes/internal/market"
	"tickbayes/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Scenario(t *testing.T) {
	metrics := &MockMetrics{}
	runner := NewRunner(Config{Symbol: "IBM"}, metrics)

	res, err := runner.Run(intradayDoc("IBM", scenarioEntries...))
	require.NoError(t, err)

	assert.Equal(t, "IBM", res.Symbol)
	assert.Len(t, res.Observations, 4)
	assert.Equal(t, []int{1, 0, 1}, res.Labels)
	assert.Len(t, res.Predictions, 3)
	assert.GreaterOrEqual(t, res.Accuracy, 2.0/3.0)
	assert.InDelta(t, 2.0/3.0, res.Baseline, 1e-12)
	assert.GreaterOrEqual(t, res.Accuracy, res.Baseline)
	assert.Greater(t, res.MeanConfidence, 0.5)
	assert.LessOrEqual(t, res.MeanConfidence, 1.0)
	assert.Zero(t, res.Inversions)
	require.NotNil(t, res.Model)
	assert.Equal(t, []int{0, 1}, res.Model.Classes())

	assert.Equal(t, 4, metrics.parsed)
	assert.Equal(t, 1, metrics.fits)
	assert.Equal(t, 1, metrics.fitLatencies)
	assert.Equal(t, 3, metrics.predictions)
	assert.Equal(t, []float64{res.Accuracy}, metrics.accuracies)
	assert.Len(t, metrics.predictionScores, 1)
	assert.Equal(t, 1, metrics.runs)
	assert.Zero(t, metrics.failures)
}

func TestRunner_NewestFirstIsSortedByDefault(t *testing.T) {
	metrics := &MockMetrics{}
	runner := NewRunner(Config{}, metrics)

	res, err := runner.Run(intradayDoc("IBM", reversed(scenarioEntries)...))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Inversions)
	assert.Equal(t, 3, metrics.inversions)
	assert.True(t, market.IsChronological(res.Observations))
	assert.Equal(t, []int{1, 0, 1}, res.Labels)
}

func TestRunner_SourceOrderKept(t *testing.T) {
	runner := NewRunner(Config{Order: OrderSource}, nil)

	res, err := runner.Run(intradayDoc("IBM", reversed(scenarioEntries)...))
	require.NoError(t, err)

	// prices 102, 99, 101, 100 as delivered
	assert.Equal(t, 3, res.Inversions)
	assert.Equal(t, 102.0, res.Observations[0].Price)
	assert.Equal(t, []int{0, 1, 0}, res.Labels)
}

func TestRunner_FallbacksReported(t *testing.T) {
	metrics := &MockMetrics{}
	runner := NewRunner(Config{}, metrics)

	entries := append([]entry{}, scenarioEntries...)
	entries = append(entries, entry{"2024-05-03 09:34:00", "n/a", "x"})

	res, err := runner.Run(intradayDoc("IBM", entries...))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Report.PriceFallbacks)
	assert.Equal(t, 1, res.Report.VolumeFallbacks)
	assert.Equal(t, 2, metrics.fallbacks)
	// the degenerate row still takes part: 102 -> 0.0 is a fall
	assert.Equal(t, []int{1, 0, 1, 0}, res.Labels)
}

func TestRunner_StrictPolicyRejects(t *testing.T) {
	metrics := &MockMetrics{}
	runner := NewRunner(Config{Policy: market.PolicyStrict}, metrics)

	entries := append([]entry{}, scenarioEntries...)
	entries[1].open = "bad"

	res, err := runner.Run(intradayDoc("IBM", entries...))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, market.ErrMalformedInput)
	assert.Equal(t, 1, metrics.failures)
}

func TestRunner_StageErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		stage   string
		wantErr error
	}{
		{
			name:    "malformed document",
			raw:     []byte(`{"Meta Data": {}}`),
			stage:   "parse:",
			wantErr: market.ErrMalformedInput,
		},
		{
			name:    "single observation",
			raw:     intradayDoc("IBM", scenarioEntries[0]),
			stage:   "build:",
			wantErr: features.ErrInsufficientData,
		},
		{
			name:    "empty series",
			raw:     intradayDoc("IBM"),
			stage:   "build:",
			wantErr: features.ErrInsufficientData,
		},
		{
			name: "flat prices",
			raw: intradayDoc("IBM",
				entry{"2024-05-03 09:30:00", "100", "1"},
				entry{"2024-05-03 09:31:00", "100", "2"},
				entry{"2024-05-03 09:32:00", "100", "3"},
			),
			stage:   "fit:",
			wantErr: ml.ErrInsufficientClasses,
		},
		{
			name: "only rising prices",
			raw: intradayDoc("IBM",
				entry{"2024-05-03 09:30:00", "1", "1"},
				entry{"2024-05-03 09:31:00", "2", "1"},
				entry{"2024-05-03 09:32:00", "3", "1"},
			),
			stage:   "fit:",
			wantErr: ml.ErrInsufficientClasses,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &MockMetrics{}
			runner := NewRunner(Config{}, metrics)

			res, err := runner.Run(tt.raw)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.stage), "expected stage %s in %q", tt.stage, err)
			assert.Equal(t, 1, metrics.failures)
			assert.Zero(t, metrics.runs)
		})
	}
}

func TestRunner_MixedSymbols(t *testing.T) {
	obs := []market.Observation{
		{Symbol: "IBM", Price: 1, Timestamp: "a"},
		{Symbol: "MSFT", Price: 2, Timestamp: "b"},
	}

	_, err := NewRunner(Config{}, nil).RunObservations(obs, market.ParseReport{})
	assert.ErrorIs(t, err, market.ErrMalformedInput)
}

type failingLoader struct{ err error }

func (l failingLoader) Load(context.Context) ([]market.Observation, market.ParseReport, error) {
	return nil, market.ParseReport{}, l.err
}

func TestRunner_RunFromLoaderError(t *testing.T) {
	metrics := &MockMetrics{}
	boom := errors.New("boom")

	_, err := NewRunner(Config{}, metrics).RunFrom(context.Background(), failingLoader{boom})
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "load:"))
	assert.Equal(t, 1, metrics.failures)
}

func TestRunner_VarSmoothingPassedThrough(t *testing.T) {
	runner := NewRunner(Config{VarSmoothing: 1e-3}, nil)

	res, err := runner.Run(intradayDoc("IBM", scenarioEntries...))
	require.NoError(t, err)

	// largest column variance of the labelled rows is the volume one: 8/3
	assert.InDelta(t, 1e-3*8.0/3.0, res.Model.Epsilon(), 1e-12)
}
