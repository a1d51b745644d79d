package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"tickbayes/internal/features"
	"tickbayes/internal/market"
	"tickbayes/internal/storage"
)

// TrainingRecord is one labelled row of the exported dataset
type TrainingRecord struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    uint64  `json:"volume"`
	Label     int     `json:"label"`
}

func main() {
	var (
		dataPath   = flag.String("data", "data", "Data directory path")
		outputPath = flag.String("output", "scripts/training_data.json", "Output JSON file path")
		symbol     = flag.String("symbol", "IBM", "Symbol to export")
	)
	flag.Parse()

	log.Printf("Exporting %s from %s to %s", *symbol, *dataPath, *outputPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	obs, err := store.GetObservations(*symbol)
	if err != nil {
		log.Fatalf("Failed to read observations: %v", err)
	}

	records, err := trainingRecords(obs)
	if err != nil {
		log.Fatalf("Failed to build dataset: %v", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal records: %v", err)
	}
	if err := os.WriteFile(*outputPath, data, 0644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	up := 0
	for _, r := range records {
		up += r.Label
	}
	log.Printf("Exported %d records (%d up, %d down)", len(records), up, len(records)-up)
}

// trainingRecords labels a stored series; the newest observation has no
// successor and is left out.
func trainingRecords(obs []market.Observation) ([]TrainingRecord, error) {
	ds, err := features.Build(obs)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	records := make([]TrainingRecord, len(ds.Labels))
	for i, label := range ds.Labels {
		records[i] = TrainingRecord{
			Timestamp: obs[i].Timestamp,
			Symbol:    obs[i].Symbol,
			Price:     obs[i].Price,
			Volume:    obs[i].Volume,
			Label:     label,
		}
	}
	return records, nil
}
