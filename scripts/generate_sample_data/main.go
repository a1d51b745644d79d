package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tickbayes/internal/market"
	"tickbayes/internal/storage"
)

const timestampLayout = "2006-01-02 15:04:05"

type bar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type point struct {
	ts  time.Time
	bar bar
}

func main() {
	var (
		output     = flag.String("output", "data/sample_intraday.json", "Output JSON file")
		dataPath   = flag.String("data", "", "Also seed the store in this directory")
		symbol     = flag.String("symbol", "IBM", "Symbol to generate data for")
		interval   = flag.String("interval", market.DefaultInterval, "Intraday interval (1min, 5min, ...)")
		count      = flag.Int("count", 100, "Number of bars")
		startPrice = flag.Float64("start-price", 180, "Starting price")
		seed       = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	)
	flag.Parse()

	step, err := intervalStep(*interval)
	if err != nil {
		log.Fatalf("Invalid interval %q: %v", *interval, err)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	fmt.Printf("Generating sample data for %s...\n", *symbol)
	fmt.Printf("  Bars: %d every %s\n", *count, *interval)
	fmt.Printf("  Start Price: $%.2f\n", *startPrice)
	fmt.Printf("  Seed: %d\n", *seed)

	start := time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC)
	points := randomWalk(rand.New(rand.NewSource(*seed)), *count, *startPrice, start, step)

	doc, err := render(*symbol, *interval, points)
	if err != nil {
		log.Fatalf("Failed to render document: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(*output, doc, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
	fmt.Printf("✓ Wrote %s\n", *output)

	if *dataPath != "" {
		if err := seedStore(*dataPath, doc, *interval); err != nil {
			log.Fatalf("Failed to seed store: %v", err)
		}
		fmt.Printf("✓ Seeded store in %s\n", *dataPath)
	}
}

// intervalStep converts an Alpha Vantage interval such as "5min".
func intervalStep(interval string) (time.Duration, error) {
	if !strings.HasSuffix(interval, "min") {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return time.ParseDuration(strings.TrimSuffix(interval, "min") + "m")
}

// randomWalk simulates a geometric random walk with mild mean reversion.
func randomWalk(rng *rand.Rand, n int, startPrice float64, start time.Time, step time.Duration) []point {
	const (
		volatility            = 0.002
		meanReversionStrength = 0.01
	)

	points := make([]point, 0, n)
	price := startPrice
	for i := 0; i < n; i++ {
		open := price
		price += price*volatility*rng.NormFloat64() + meanReversionStrength*(startPrice-price)
		if price < 1 {
			price = 1
		}
		high := math.Max(open, price) * (1 + rng.Float64()*volatility/2)
		low := math.Min(open, price) * (1 - rng.Float64()*volatility/2)
		volume := 500 + rng.Intn(5000)

		points = append(points, point{
			ts: start.Add(time.Duration(i) * step),
			bar: bar{
				Open:   strconv.FormatFloat(open, 'f', 4, 64),
				High:   strconv.FormatFloat(high, 'f', 4, 64),
				Low:    strconv.FormatFloat(low, 'f', 4, 64),
				Close:  strconv.FormatFloat(price, 'f', 4, 64),
				Volume: strconv.Itoa(volume),
			},
		})
	}
	return points
}

// render writes the series newest first, the order the live API uses.
func render(symbol, interval string, points []point) ([]byte, error) {
	var buf bytes.Buffer
	meta, err := json.Marshal(map[string]string{
		"1. Information":    "Intraday (" + interval + ") open, high, low, close prices and volume",
		"2. Symbol":         symbol,
		"4. Interval":       interval,
		"5. Output Size":    "Compact",
		"6. Time Zone":      "US/Eastern",
		"3. Last Refreshed": lastRefreshed(points),
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "{\n  \"Meta Data\": %s,\n  \"Time Series (%s)\": {", meta, interval)
	for i := len(points) - 1; i >= 0; i-- {
		entry, err := json.Marshal(points[i].bar)
		if err != nil {
			return nil, err
		}
		if i != len(points)-1 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, "\n    %q: %s", points[i].ts.Format(timestampLayout), entry)
	}
	buf.WriteString("\n  }\n}\n")
	return buf.Bytes(), nil
}

func lastRefreshed(points []point) string {
	if len(points) == 0 {
		return ""
	}
	return points[len(points)-1].ts.Format(timestampLayout)
}

func seedStore(dataPath string, doc []byte, interval string) error {
	obs, _, err := market.ParseIntraday(doc, market.ParseOptions{Interval: interval})
	if err != nil {
		return err
	}

	store, err := storage.New(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveObservations(obs)
}
