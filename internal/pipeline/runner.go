// Package pipeline runs the parse, build, fit, predict and evaluate stages
// over one intraday series and reports the outcome.
//
// Every stage depends on the previous one; the first failing stage aborts the
// run and no partial result is returned.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"tickbayes/internal/features"
	"tickbayes/internal/market"
	"tickbayes/internal/ml"

	"github.com/rs/zerolog/log"
)

// Ordering decides which sequence the next-tick labels are derived from.
type Ordering string

const (
	// OrderChronological sorts the series by timestamp before labelling.
	OrderChronological Ordering = "chronological"
	// OrderSource labels the series in the order the source produced it.
	OrderSource Ordering = "source"
)

// MetricsInterface defines metrics methods needed by the runner
type MetricsInterface interface {
	ObservationsParsedAdd(int)
	ParseFallbacksAdd(int)
	OrderInversionsSet(int)
	MLFitsInc()
	MLFitLatencyObserve(float64)
	MLPredictionsAdd(int)
	MLPredictionScoresObserve(float64)
	MLAccuracyObserve(float64)
	RunFailuresInc()
	RunsInc()
}

type noopMetrics struct{}

func (noopMetrics) ObservationsParsedAdd(int)         {}
func (noopMetrics) ParseFallbacksAdd(int)             {}
func (noopMetrics) OrderInversionsSet(int)            {}
func (noopMetrics) MLFitsInc()                        {}
func (noopMetrics) MLFitLatencyObserve(float64)       {}
func (noopMetrics) MLPredictionsAdd(int)              {}
func (noopMetrics) MLPredictionScoresObserve(float64) {}
func (noopMetrics) MLAccuracyObserve(float64)         {}
func (noopMetrics) RunFailuresInc()                   {}
func (noopMetrics) RunsInc()                          {}

// Config configures a Runner.
type Config struct {
	Symbol       string // expected symbol; a different declared symbol is logged
	Interval     string
	Policy       market.ParsePolicy
	Order        Ordering
	VarSmoothing float64
}

// ParseOptions returns the parser options implied by the config.
func (c Config) ParseOptions() market.ParseOptions {
	return market.ParseOptions{Interval: c.Interval, Policy: c.Policy}
}

// Result is the outcome of a successful run.
type Result struct {
	Symbol         string
	Observations   []market.Observation // series the labels were derived from
	Report         market.ParseReport
	Inversions     int
	Model          *ml.Model
	Labels         []int
	Predictions    []int
	Accuracy       float64
	Baseline       float64
	MeanConfidence float64
	StartedAt      time.Time
	Duration       time.Duration
}

// Runner executes runs. It holds no state between runs.
type Runner struct {
	cfg     Config
	metrics MetricsInterface
}

// NewRunner creates a runner; metrics may be nil.
func NewRunner(cfg Config, metrics MetricsInterface) *Runner {
	if cfg.Order == "" {
		cfg.Order = OrderChronological
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Runner{cfg: cfg, metrics: metrics}
}

// Run parses a raw intraday document and runs the remaining stages on it.
func (r *Runner) Run(raw []byte) (*Result, error) {
	obs, report, err := market.ParseIntraday(raw, r.cfg.ParseOptions())
	if err != nil {
		return nil, r.fail("parse", err)
	}
	return r.RunObservations(obs, report)
}

// RunFrom loads a series with loader and runs the remaining stages on it.
func (r *Runner) RunFrom(ctx context.Context, loader Loader) (*Result, error) {
	obs, report, err := loader.Load(ctx)
	if err != nil {
		return nil, r.fail("load", err)
	}
	return r.RunObservations(obs, report)
}

// RunObservations builds the dataset, fits a model on the labelled rows and
// scores it on the same rows.
func (r *Runner) RunObservations(obs []market.Observation, report market.ParseReport) (*Result, error) {
	start := time.Now()

	r.metrics.ObservationsParsedAdd(len(obs))
	r.metrics.ParseFallbacksAdd(report.Fallbacks())
	if report.Fallbacks() > 0 {
		log.Warn().
			Int("price_fallbacks", report.PriceFallbacks).
			Int("volume_fallbacks", report.VolumeFallbacks).
			Int("entries", report.Entries).
			Msg("Unparseable values replaced by fallbacks, affected rows are degenerate")
	}

	symbol, err := sessionSymbol(obs)
	if err != nil {
		return nil, r.fail("parse", err)
	}
	if r.cfg.Symbol != "" && symbol != "" && symbol != r.cfg.Symbol {
		log.Warn().Str("expected", r.cfg.Symbol).Str("declared", symbol).Msg("Series declares a different symbol")
	}

	obs, inversions := r.order(obs)

	ds, err := features.Build(obs)
	if err != nil {
		return nil, r.fail("build", err)
	}
	rows, labels := ds.TrainingSet()

	fitStart := time.Now()
	model, err := ml.Fit(rows, labels, ml.Params{VarSmoothing: r.cfg.VarSmoothing})
	if err != nil {
		return nil, r.fail("fit", err)
	}
	r.metrics.MLFitsInc()
	r.metrics.MLFitLatencyObserve(time.Since(fitStart).Seconds())

	predictions, err := model.Predict(rows)
	if err != nil {
		return nil, r.fail("predict", err)
	}
	r.metrics.MLPredictionsAdd(len(predictions))

	accuracy, err := ml.Accuracy(predictions, labels)
	if err != nil {
		return nil, r.fail("evaluate", err)
	}
	baseline, err := ml.MajorityBaseline(labels)
	if err != nil {
		return nil, r.fail("evaluate", err)
	}
	confidence := meanConfidence(model, rows)

	r.metrics.MLAccuracyObserve(accuracy)
	r.metrics.MLPredictionScoresObserve(confidence)
	r.metrics.RunsInc()

	result := &Result{
		Symbol:         symbol,
		Observations:   obs,
		Report:         report,
		Inversions:     inversions,
		Model:          model,
		Labels:         labels,
		Predictions:    predictions,
		Accuracy:       accuracy,
		Baseline:       baseline,
		MeanConfidence: confidence,
		StartedAt:      start,
		Duration:       time.Since(start),
	}

	log.Info().
		Str("symbol", symbol).
		Int("observations", len(obs)).
		Ints("classes", model.Classes()).
		Float64("accuracy", accuracy).
		Float64("baseline", baseline).
		Dur("duration", result.Duration).
		Msg("Run completed")

	return result, nil
}

// order applies the configured ordering. Inversions are always counted and
// logged so the choice is visible in every run.
func (r *Runner) order(obs []market.Observation) ([]market.Observation, int) {
	inversions := market.Inversions(obs)
	r.metrics.OrderInversionsSet(inversions)
	if inversions == 0 {
		return obs, 0
	}

	if r.cfg.Order == OrderSource {
		log.Warn().
			Int("inversions", inversions).
			Msg("Series is not chronological, labels follow source order")
		return obs, inversions
	}

	log.Info().
		Int("inversions", inversions).
		Msg("Series is not chronological, sorting by timestamp before labelling")
	return market.SortChronological(obs), inversions
}

func (r *Runner) fail(stage string, err error) error {
	r.metrics.RunFailuresInc()
	log.Error().Err(err).Str("stage", stage).Msg("Run failed")
	return fmt.Errorf("%s: %w", stage, err)
}

func sessionSymbol(obs []market.Observation) (string, error) {
	if len(obs) == 0 {
		return "", nil
	}
	symbol := obs[0].Symbol
	for _, o := range obs[1:] {
		if o.Symbol != symbol {
			return "", fmt.Errorf("%w: series mixes symbols %q and %q", market.ErrMalformedInput, symbol, o.Symbol)
		}
	}
	return symbol, nil
}

// meanConfidence averages the posterior of the most likely class over rows.
func meanConfidence(model *ml.Model, rows [][]float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, row := range rows {
		proba, err := model.PredictProba(row)
		if err != nil {
			continue
		}
		best := 0.0
		for _, p := range proba {
			if p > best {
				best = p
			}
		}
		sum += best
	}
	return sum / float64(len(rows))
}
