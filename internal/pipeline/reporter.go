package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tickbayes/internal/features"
	"tickbayes/internal/ml"

	"github.com/rs/zerolog/log"
)

// Report file names written by GenerateReport.
const (
	SummaryFile      = "run_summary.txt"
	ObservationsFile = "observations.csv"
	ResultsFile      = "run_results.json"
)

// Reporter writes the data a chart renderer needs: the series used, the
// labels and predictions per row and the accuracy.
type Reporter struct {
	result     *Result
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(result *Result, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateObservationLog(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	return nil
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := r.writeSummary(file); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) error {
	res := r.result
	fmt.Fprintf(w, "RUN SUMMARY\n")
	fmt.Fprintf(w, "===========\n\n")

	fmt.Fprintf(w, "Symbol: %s\n", res.Symbol)
	if n := len(res.Observations); n > 0 {
		fmt.Fprintf(w, "Series: %s to %s\n", res.Observations[0].Timestamp, res.Observations[n-1].Timestamp)
	}
	fmt.Fprintf(w, "Run At: %s (%s)\n\n", res.StartedAt.Format("2006-01-02 15:04:05"), res.Duration)

	fmt.Fprintf(w, "DATA\n")
	fmt.Fprintf(w, "----\n")
	fmt.Fprintf(w, "Observations: %d\n", len(res.Observations))
	fmt.Fprintf(w, "Labelled Rows: %d\n", len(res.Labels))
	fmt.Fprintf(w, "Price Fallbacks: %d\n", res.Report.PriceFallbacks)
	fmt.Fprintf(w, "Volume Fallbacks: %d\n", res.Report.VolumeFallbacks)
	fmt.Fprintf(w, "Order Inversions: %d\n\n", res.Inversions)

	fmt.Fprintf(w, "MODEL\n")
	fmt.Fprintf(w, "-----\n")
	if res.Model != nil {
		fmt.Fprintf(w, "Variance Smoothing: %g\n", res.Model.Epsilon())
		for _, c := range res.Model.Classes() {
			s, _ := res.Model.Stats(c)
			fmt.Fprintf(w, "Class %d: n=%d prior=%.4f", c, s.Count, s.Prior)
			for d, name := range features.FeatureNames {
				if d < len(s.Mean) {
					fmt.Fprintf(w, " %s(mean=%.4f var=%.4g)", name, s.Mean[d], s.Variance[d])
				}
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "EVALUATION\n")
	fmt.Fprintf(w, "----------\n")
	fmt.Fprintf(w, "Accuracy: %.2f%%\n", res.Accuracy*100)
	fmt.Fprintf(w, "Majority Baseline: %.2f%%\n", res.Baseline*100)
	_, err := fmt.Fprintf(w, "Mean Confidence: %.4f\n", res.MeanConfidence)
	return err
}

// generateObservationLog writes one CSV row per observation. The last row has
// no label and no prediction.
func (r *Reporter) generateObservationLog() error {
	csvPath := filepath.Join(r.outputPath, ObservationsFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create observation log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Timestamp", "Price", "Volume", "Label", "Predicted"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, o := range r.result.Observations {
		label, predicted := "", ""
		if i < len(r.result.Labels) {
			label = strconv.Itoa(r.result.Labels[i])
		}
		if i < len(r.result.Predictions) {
			predicted = strconv.Itoa(r.result.Predictions[i])
		}
		record := []string{
			o.Timestamp,
			strconv.FormatFloat(o.Price, 'f', -1, 64),
			strconv.FormatUint(o.Volume, 10),
			label,
			predicted,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write observation log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Observation log generated")
	return nil
}

type jsonReport struct {
	Summary      jsonSummary              `json:"summary"`
	Model        map[string]ml.ClassStats `json:"model"`
	Observations []jsonObservationRow     `json:"observations"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

type jsonSummary struct {
	Symbol          string    `json:"symbol"`
	StartedAt       time.Time `json:"started_at"`
	DurationMs      float64   `json:"duration_ms"`
	Observations    int       `json:"observations"`
	LabelledRows    int       `json:"labelled_rows"`
	PriceFallbacks  int       `json:"price_fallbacks"`
	VolumeFallbacks int       `json:"volume_fallbacks"`
	Inversions      int       `json:"inversions"`
	Accuracy        float64   `json:"accuracy"`
	Baseline        float64   `json:"baseline"`
	MeanConfidence  float64   `json:"mean_confidence"`
	Epsilon         float64   `json:"epsilon"`
}

type jsonObservationRow struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    uint64  `json:"volume"`
	Label     *int    `json:"label,omitempty"`
	Predicted *int    `json:"predicted,omitempty"`
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, ResultsFile)
	res := r.result

	report := jsonReport{
		Summary: jsonSummary{
			Symbol:          res.Symbol,
			StartedAt:       res.StartedAt,
			DurationMs:      float64(res.Duration) / float64(time.Millisecond),
			Observations:    len(res.Observations),
			LabelledRows:    len(res.Labels),
			PriceFallbacks:  res.Report.PriceFallbacks,
			VolumeFallbacks: res.Report.VolumeFallbacks,
			Inversions:      res.Inversions,
			Accuracy:        res.Accuracy,
			Baseline:        res.Baseline,
			MeanConfidence:  res.MeanConfidence,
		},
		Model:       make(map[string]ml.ClassStats),
		GeneratedAt: time.Now(),
	}

	if res.Model != nil {
		report.Summary.Epsilon = res.Model.Epsilon()
		for _, c := range res.Model.Classes() {
			s, _ := res.Model.Stats(c)
			report.Model[strconv.Itoa(c)] = s
		}
	}

	for i, o := range res.Observations {
		row := jsonObservationRow{Timestamp: o.Timestamp, Price: o.Price, Volume: o.Volume}
		if i < len(res.Labels) {
			row.Label = &res.Labels[i]
		}
		if i < len(res.Predictions) {
			row.Predicted = &res.Predictions[i]
		}
		report.Observations = append(report.Observations, row)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints a short summary to w
func (r *Reporter) PrintSummary(w io.Writer) {
	res := r.result
	fmt.Fprintln(w, "\n=== NAIVE BAYES RESULTS ===")
	fmt.Fprintf(w, "Symbol: %s\n", res.Symbol)
	fmt.Fprintf(w, "Observations: %d\n", len(res.Observations))
	if res.Report.Fallbacks() > 0 {
		fmt.Fprintf(w, "Fallback Values: %d\n", res.Report.Fallbacks())
	}
	fmt.Fprintf(w, "Naive Bayes Accuracy: %.2f%%\n", res.Accuracy*100)
	fmt.Fprintf(w, "Majority Baseline: %.2f%%\n", res.Baseline*100)
	fmt.Fprintln(w, "===========================")
}
