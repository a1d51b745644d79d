package metrics

import "time"

// Wrapper adapts Metrics to the narrow metric interfaces of the pipeline and
// the data source client, so those packages do not import Prometheus.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) FetchesInc() {
	w.m.FetchesTotal.Inc()
}

func (w *Wrapper) FetchFailuresInc() {
	w.m.FetchFailures.Inc()
}

func (w *Wrapper) FetchLatencyObserve(v float64) {
	w.m.FetchLatency.Observe(v)
}

func (w *Wrapper) ObservationsParsedAdd(n int) {
	w.m.ObservationsParsed.Add(float64(n))
}

func (w *Wrapper) ParseFallbacksAdd(n int) {
	w.m.ParseFallbacks.Add(float64(n))
}

func (w *Wrapper) OrderInversionsSet(n int) {
	w.m.OrderInversions.Set(float64(n))
}

func (w *Wrapper) MLFitsInc() {
	w.m.MLFits.Inc()
}

func (w *Wrapper) MLFitLatencyObserve(v float64) {
	w.m.MLFitLatency.Observe(v)
}

func (w *Wrapper) MLPredictionsAdd(n int) {
	w.m.MLPredictions.Add(float64(n))
}

func (w *Wrapper) MLPredictionScoresObserve(v float64) {
	w.m.MLPredictionScores.Observe(v)
}

func (w *Wrapper) MLAccuracyObserve(v float64) {
	w.m.MLAccuracy.Observe(v)
	w.m.MLAccuracyLast.Set(v)
}

// RunFailuresInc counts a failed run once, whatever stage failed.
func (w *Wrapper) RunFailuresInc() {
	w.m.RunFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *Wrapper) RunsInc() {
	w.m.RunsTotal.Inc()
	w.m.LastRunTime.Set(float64(time.Now().Unix()))
}
