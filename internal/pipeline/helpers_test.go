package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	parsed           int
	fallbacks        int
	inversions       int
	fits             int
	fitLatencies     int
	predictions      int
	predictionScores []float64
	accuracies       []float64
	failures         int
	runs             int
}

func (m *MockMetrics) ObservationsParsedAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsed += n
}

func (m *MockMetrics) ParseFallbacksAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks += n
}

func (m *MockMetrics) OrderInversionsSet(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inversions = n
}

func (m *MockMetrics) MLFitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fits++
}

func (m *MockMetrics) MLFitLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitLatencies++
}

func (m *MockMetrics) MLPredictionsAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions += n
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracies = append(m.accuracies, v)
}

func (m *MockMetrics) RunFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) RunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

type entry struct {
	ts, open, volume string
}

// intradayDoc renders an intraday document with entries in the given order.
func intradayDoc(symbol string, entries ...entry) []byte {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf(`%q: {"1. open": %q, "2. high": "0", "3. low": "0", "4. close": "0", "5. volume": %q}`, e.ts, e.open, e.volume)
	}
	return []byte(fmt.Sprintf(`{"Meta Data": {"2. Symbol": %q, "4. Interval": "1min"}, "Time Series (1min)": {%s}}`,
		symbol, strings.Join(parts, ", ")))
}

// scenarioEntries are prices 100, 101, 99, 102 in chronological order.
var scenarioEntries = []entry{
	{"2024-05-03 09:30:00", "100", "10"},
	{"2024-05-03 09:31:00", "101", "12"},
	{"2024-05-03 09:32:00", "99", "8"},
	{"2024-05-03 09:33:00", "102", "20"},
}

func reversed(entries []entry) []entry {
	out := make([]entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
