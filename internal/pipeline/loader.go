package pipeline

import (
	"context"
	"fmt"
	"os"

	"tickbayes/internal/market"

	"github.com/rs/zerolog/log"
)

// Loader produces the series of one run.
type Loader interface {
	Load(ctx context.Context) ([]market.Observation, market.ParseReport, error)
}

// Fetcher retrieves a raw intraday document.
type Fetcher interface {
	FetchIntraday(ctx context.Context, symbol, interval string) ([]byte, error)
}

// ObservationSaver persists a parsed series.
type ObservationSaver interface {
	SaveObservations([]market.Observation) error
}

// ObservationReader reads a persisted series.
type ObservationReader interface {
	GetObservations(symbol string) ([]market.Observation, error)
}

// APILoader fetches and parses a series, optionally persisting it.
type APILoader struct {
	Fetcher Fetcher
	Symbol  string
	Options market.ParseOptions
	Saver   ObservationSaver // optional
}

func (l *APILoader) Load(ctx context.Context) ([]market.Observation, market.ParseReport, error) {
	interval := l.Options.Interval
	if interval == "" {
		interval = market.DefaultInterval
	}

	raw, err := l.Fetcher.FetchIntraday(ctx, l.Symbol, interval)
	if err != nil {
		return nil, market.ParseReport{}, fmt.Errorf("fetch %s: %w", l.Symbol, err)
	}

	obs, report, err := market.ParseIntraday(raw, l.Options)
	if err != nil {
		return nil, report, err
	}

	if l.Saver != nil {
		// a storage failure does not invalidate the series
		if err := l.Saver.SaveObservations(obs); err != nil {
			log.Warn().Err(err).Str("symbol", l.Symbol).Msg("Failed to persist observations")
		}
	}

	return obs, report, nil
}

// FileLoader parses a raw intraday document from disk.
type FileLoader struct {
	Path    string
	Options market.ParseOptions
}

func (l *FileLoader) Load(ctx context.Context) ([]market.Observation, market.ParseReport, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, market.ParseReport{}, fmt.Errorf("failed to read %s: %w", l.Path, err)
	}

	log.Info().Str("file", l.Path).Int("bytes", len(raw)).Msg("Loading series from file")
	return market.ParseIntraday(raw, l.Options)
}

// StoreLoader replays a persisted series. Stored series are already parsed,
// so the report only carries the entry count.
type StoreLoader struct {
	Store  ObservationReader
	Symbol string
}

func (l *StoreLoader) Load(ctx context.Context) ([]market.Observation, market.ParseReport, error) {
	obs, err := l.Store.GetObservations(l.Symbol)
	if err != nil {
		return nil, market.ParseReport{}, fmt.Errorf("failed to load %s from store: %w", l.Symbol, err)
	}

	log.Info().Str("symbol", l.Symbol).Int("observations", len(obs)).Msg("Loaded series from store")
	return obs, market.ParseReport{Entries: len(obs)}, nil
}
