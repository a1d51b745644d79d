package ml

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable returns n rows per class around well separated price levels.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	var rows [][]float64
	var labels []int
	for i := 0; i < n; i++ {
		rows = append(rows, []float64{100 + rng.NormFloat64(), 1000 + 50*rng.NormFloat64()})
		labels = append(labels, 0)
		rows = append(rows, []float64{110 + rng.NormFloat64(), 1000 + 50*rng.NormFloat64()})
		labels = append(labels, 1)
	}
	return rows, labels
}

func TestFit_Scenario(t *testing.T) {
	rows := [][]float64{{100, 10}, {101, 12}, {99, 8}}
	labels := []int{1, 0, 1}

	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	pred, err := model.Predict(rows)
	require.NoError(t, err)

	acc, err := Accuracy(pred, labels)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 2.0/3.0)
}

func TestFit_Statistics(t *testing.T) {
	rows := [][]float64{{1, 10}, {3, 30}, {10, 0}, {20, 0}}
	labels := []int{0, 0, 1, 1}

	model, err := Fit(rows, labels, Params{VarSmoothing: 1e-9})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, model.Classes())
	assert.Equal(t, 2, model.Dims())

	// population variance of the volume column is the largest one
	volMean := 10.0
	volVar := ((10-volMean)*(10-volMean) + (30-volMean)*(30-volMean) + 2*volMean*volMean) / 4
	assert.InDelta(t, 1e-9*volVar, model.Epsilon(), 1e-15)

	s0, ok := model.Stats(0)
	require.True(t, ok)
	assert.Equal(t, 2, s0.Count)
	assert.InDelta(t, 0.5, s0.Prior, 1e-12)
	assert.InDelta(t, 2.0, s0.Mean[0], 1e-12)
	assert.InDelta(t, 20.0, s0.Mean[1], 1e-12)
	assert.InDelta(t, 1.0+model.Epsilon(), s0.Variance[0], 1e-12)
	assert.InDelta(t, 100.0+model.Epsilon(), s0.Variance[1], 1e-12)

	s1, ok := model.Stats(1)
	require.True(t, ok)
	assert.InDelta(t, 15.0, s1.Mean[0], 1e-12)
	assert.InDelta(t, 25.0+model.Epsilon(), s1.Variance[0], 1e-12)
	// constant column within the class keeps only the smoothing term
	assert.Equal(t, model.Epsilon(), s1.Variance[1])

	_, ok = model.Stats(7)
	assert.False(t, ok)
}

func TestFit_PriorsSumToOne(t *testing.T) {
	rows, labels := separable(25, 1)
	rows = append(rows, []float64{105, 1000})
	labels = append(labels, 1)

	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	var sum float64
	for _, c := range model.Classes() {
		s, _ := model.Stats(c)
		sum += s.Prior
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	s1, _ := model.Stats(1)
	assert.Equal(t, 26, s1.Count)
}

func TestFit_ConstantFeaturesStillSmoothed(t *testing.T) {
	rows := [][]float64{{5, 5}, {5, 5}, {5, 5}}
	labels := []int{0, 1, 0}

	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)
	assert.Equal(t, DefaultVarSmoothing, model.Epsilon())

	pred, err := model.Predict(rows)
	require.NoError(t, err)
	// identical likelihoods, the larger prior wins
	assert.Equal(t, []int{0, 0, 0}, pred)
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]float64
		labels  []int
		wantErr error
	}{
		{
			name:    "all labels identical",
			rows:    [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}},
			labels:  []int{0, 0, 0, 0},
			wantErr: ErrInsufficientClasses,
		},
		{
			name:    "empty",
			rows:    nil,
			labels:  nil,
			wantErr: ErrInsufficientClasses,
		},
		{
			name:    "full feature matrix against labels",
			rows:    [][]float64{{100, 10}, {101, 12}, {99, 8}, {102, 20}},
			labels:  []int{1, 0, 1},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "more labels than rows",
			rows:    [][]float64{{1, 1}},
			labels:  []int{0, 1},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "ragged rows",
			rows:    [][]float64{{1, 1}, {2}},
			labels:  []int{0, 1},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "zero width rows",
			rows:    [][]float64{{}, {}},
			labels:  []int{0, 1},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "NaN feature",
			rows:    [][]float64{{1, math.NaN()}, {2, 2}},
			labels:  []int{0, 1},
			wantErr: ErrNonFinite,
		},
		{
			name:    "infinite feature",
			rows:    [][]float64{{1, 1}, {math.Inf(-1), 2}},
			labels:  []int{0, 1},
			wantErr: ErrNonFinite,
		},
		{
			name:    "variance overflows",
			rows:    [][]float64{{100, 10}, {101, 1e300}, {99, 8}},
			labels:  []int{1, 0, 1},
			wantErr: ErrNonFinite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := Fit(tt.rows, tt.labels, Params{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, model)
		})
	}
}

func TestFit_Deterministic(t *testing.T) {
	rows, labels := separable(50, 42)

	a, err := Fit(rows, labels, Params{})
	require.NoError(t, err)
	b, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	for _, c := range a.Classes() {
		sa, _ := a.Stats(c)
		sb, _ := b.Stats(c)
		assert.Equal(t, sa, sb)
	}
	assert.Equal(t, a.Epsilon(), b.Epsilon())
}

func TestPredict_SeparableBeatsBaseline(t *testing.T) {
	rows, labels := separable(100, 7)

	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	pred, err := model.Predict(rows)
	require.NoError(t, err)

	acc, err := Accuracy(pred, labels)
	require.NoError(t, err)
	baseline, err := MajorityBaseline(labels)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, acc, baseline)
	assert.Greater(t, acc, 0.95)
}

func TestPredict_TieGoesToLowestClass(t *testing.T) {
	// both classes get identical statistics and priors
	rows := [][]float64{{-1}, {1}, {-1}, {1}}
	labels := []int{7, 7, 3, 3}

	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, model.Classes())

	pred, err := model.Predict([][]float64{{0}, {-1}, {1}, {42}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 3}, pred)
}

func TestPredict_DimensionMismatch(t *testing.T) {
	rows, labels := separable(5, 3)
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	tests := []struct {
		name string
		rows [][]float64
	}{
		{"too few", [][]float64{{100}}},
		{"too many", [][]float64{{100, 1000, 1}}},
		{"empty row", [][]float64{{}}},
		{"second row bad", [][]float64{{100, 1000}, {100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := model.Predict(tt.rows)
			assert.ErrorIs(t, err, ErrDimensionMismatch)
			assert.Nil(t, pred)
		})
	}

	_, err = model.LogJoint([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = model.PredictProba([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPredict_ZeroModel(t *testing.T) {
	var m Model

	_, err := m.Predict([][]float64{{}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = m.PredictProba([]float64{})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPredict_EmptyRows(t *testing.T) {
	rows, labels := separable(5, 3)
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	pred, err := model.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, pred)
}

func TestLogJoint_MatchesFormula(t *testing.T) {
	rows := [][]float64{{1, 10}, {3, 30}, {10, 0}, {20, 0}}
	labels := []int{0, 1, 0, 1}
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	x := []float64{4, 12}
	scores, err := model.LogJoint(x)
	require.NoError(t, err)

	for k, c := range model.Classes() {
		s, _ := model.Stats(c)
		want := math.Log(s.Prior)
		for d := range x {
			want += -0.5*math.Log(2*math.Pi*s.Variance[d]) - (x[d]-s.Mean[d])*(x[d]-s.Mean[d])/(2*s.Variance[d])
		}
		assert.InDelta(t, want, scores[k], 1e-9)
	}
}

func TestPredictProba(t *testing.T) {
	rows, labels := separable(30, 11)
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	proba, err := model.PredictProba([]float64{110, 1000})
	require.NoError(t, err)
	require.Len(t, proba, 2)
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-12)
	assert.Greater(t, proba[1], 0.99)

	// far outside the training range densities underflow, log space does not
	proba, err = model.PredictProba([]float64{1e6, 1e9})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(proba[0]))
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-12)
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	rows, labels := separable(5, 5)
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	classes := model.Classes()
	classes[0] = 99
	assert.Equal(t, []int{0, 1}, model.Classes())

	s, _ := model.Stats(0)
	s.Mean[0] = -1
	again, _ := model.Stats(0)
	assert.NotEqual(t, -1.0, again.Mean[0])
}

func TestModel_ConcurrentPredict(t *testing.T) {
	rows, labels := separable(50, 9)
	model, err := Fit(rows, labels, Params{})
	require.NoError(t, err)

	want, err := model.Predict(rows)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = model.Predict(rows)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
