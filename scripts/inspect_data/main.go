package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"tickbayes/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		symbol   = flag.String("symbol", "IBM", "Symbol to inspect")
		days     = flag.Int("days", 7, "Show runs from the last N days")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	end := time.Now()
	if err := inspect(os.Stdout, store, *symbol, end.AddDate(0, 0, -*days), end); err != nil {
		log.Fatalf("Inspection failed: %v", err)
	}
}

func inspect(w io.Writer, store *storage.Store, symbol string, start, end time.Time) error {
	obs, err := store.GetObservations(symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch observations: %w", err)
	}

	fmt.Fprintf(w, "\nObservations for %s: %d\n", symbol, len(obs))
	if len(obs) > 0 {
		first, last := obs[0], obs[len(obs)-1]
		fmt.Fprintf(w, "  First: %s price=%.4f volume=%d\n", first.Timestamp, first.Price, first.Volume)
		fmt.Fprintf(w, "  Last:  %s price=%.4f volume=%d\n", last.Timestamp, last.Price, last.Volume)
	}

	runs, err := store.GetRuns(symbol, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch runs: %w", err)
	}

	fmt.Fprintf(w, "\nRuns since %s: %d\n", start.Format("2006-01-02"), len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s observations=%d fallbacks=%d inversions=%d accuracy=%.2f%% baseline=%.2f%%\n",
			r.Timestamp.Format(time.RFC3339), r.Observations, r.Fallbacks, r.Inversions, r.Accuracy*100, r.Baseline*100)
	}
	return nil
}
