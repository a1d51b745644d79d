package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Field names of the intraday document.
const (
	metaDataKey   = "Meta Data"
	symbolKey     = "2. Symbol"
	openPriceKey  = "1. open"
	volumeKey     = "5. volume"
	seriesKeyTmpl = "Time Series (%s)"

	DefaultInterval = "1min"
)

// Values substituted for unparseable numbers under PolicyFallback.
const (
	FallbackPrice  = 0.0
	FallbackVolume = uint64(0)
)

// ParsePolicy selects what happens when a price or volume string is present
// but is not a usable number.
type ParsePolicy string

const (
	// PolicyFallback substitutes FallbackPrice/FallbackVolume and keeps the
	// entry. Such entries become degenerate feature rows; they are counted in
	// ParseReport so callers can surface them.
	PolicyFallback ParsePolicy = "fallback"
	// PolicyStrict rejects the document with ErrMalformedInput.
	PolicyStrict ParsePolicy = "strict"
)

// ParseOptions configures ParseIntraday.
type ParseOptions struct {
	Interval string
	Policy   ParsePolicy
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.Interval == "" {
		o.Interval = DefaultInterval
	}
	if o.Policy == "" {
		o.Policy = PolicyFallback
	}
	return o
}

// ParseReport summarises a parse.
type ParseReport struct {
	Entries         int `json:"entries"`
	PriceFallbacks  int `json:"price_fallbacks"`
	VolumeFallbacks int `json:"volume_fallbacks"`
	Duplicates      int `json:"duplicates"` // repeated timestamps, last value kept
}

// Fallbacks is the number of substituted values.
func (r ParseReport) Fallbacks() int {
	return r.PriceFallbacks + r.VolumeFallbacks
}

// upstream messages returned by the API instead of a series
var upstreamMessageKeys = []string{"Error Message", "Note", "Information"}

// ParseIntraday parses an intraday time-series document. Observations are
// returned in the order the timestamps appear in the document; no re-sorting
// happens here.
func ParseIntraday(raw []byte, opts ParseOptions) ([]Observation, ParseReport, error) {
	opts = opts.withDefaults()
	var report ParseReport

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, report, fmt.Errorf("%w: decode document: %v", ErrMalformedInput, err)
	}
	if doc == nil {
		return nil, report, fmt.Errorf("%w: document is null", ErrMalformedInput)
	}

	seriesKey := fmt.Sprintf(seriesKeyTmpl, opts.Interval)
	rawSeries, ok := doc[seriesKey]
	if !ok {
		if msg := upstreamMessage(doc); msg != "" {
			return nil, report, fmt.Errorf("%w: no %q in response: %s", ErrMalformedInput, seriesKey, msg)
		}
		return nil, report, fmt.Errorf("%w: missing %q", ErrMalformedInput, seriesKey)
	}

	symbol, err := parseSymbol(doc)
	if err != nil {
		return nil, report, err
	}

	dec := json.NewDecoder(bytes.NewReader(rawSeries))
	tok, err := dec.Token()
	if err != nil {
		return nil, report, fmt.Errorf("%w: read %q: %v", ErrMalformedInput, seriesKey, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, report, fmt.Errorf("%w: %q is not an object", ErrMalformedInput, seriesKey)
	}

	var obs []Observation
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, report, fmt.Errorf("%w: read timestamp: %v", ErrMalformedInput, err)
		}
		ts, _ := tok.(string)

		var entry map[string]json.RawMessage
		if err := dec.Decode(&entry); err != nil || entry == nil {
			return nil, report, fmt.Errorf("%w: entry %s is not an object", ErrMalformedInput, ts)
		}

		o, err := parseEntry(symbol, ts, entry, opts.Policy, &report)
		if err != nil {
			return nil, report, err
		}
		if i, dup := seen[ts]; dup {
			if opts.Policy == PolicyStrict {
				return nil, report, fmt.Errorf("%w: duplicate timestamp %s", ErrMalformedInput, ts)
			}
			log.Warn().Str("timestamp", ts).Msg("Duplicate timestamp, keeping the last value")
			report.Duplicates++
			obs[i] = o
			continue
		}
		seen[ts] = len(obs)
		obs = append(obs, o)
	}

	report.Entries = len(obs)
	return obs, report, nil
}

func parseSymbol(doc map[string]json.RawMessage) (string, error) {
	rawMeta, ok := doc[metaDataKey]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedInput, metaDataKey)
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(rawMeta, &meta); err != nil || meta == nil {
		return "", fmt.Errorf("%w: %q is not an object", ErrMalformedInput, metaDataKey)
	}
	symbol, err := stringField(meta, symbolKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedInput, metaDataKey, err)
	}
	return symbol, nil
}

func parseEntry(symbol, ts string, entry map[string]json.RawMessage, policy ParsePolicy, report *ParseReport) (Observation, error) {
	priceText, err := stringField(entry, openPriceKey)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: entry %s: %v", ErrMalformedInput, ts, err)
	}
	volumeText, err := stringField(entry, volumeKey)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: entry %s: %v", ErrMalformedInput, ts, err)
	}

	price, err := strconv.ParseFloat(priceText, 64)
	if err != nil || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		if policy == PolicyStrict {
			return Observation{}, fmt.Errorf("%w: entry %s: invalid %q value %q", ErrMalformedInput, ts, openPriceKey, priceText)
		}
		log.Warn().Str("timestamp", ts).Str("value", priceText).Msg("Unusable price, substituting fallback")
		price = FallbackPrice
		report.PriceFallbacks++
	}

	volume, err := strconv.ParseUint(volumeText, 10, 64)
	if err != nil {
		if policy == PolicyStrict {
			return Observation{}, fmt.Errorf("%w: entry %s: invalid %q value %q", ErrMalformedInput, ts, volumeKey, volumeText)
		}
		log.Warn().Str("timestamp", ts).Str("value", volumeText).Msg("Unusable volume, substituting fallback")
		volume = FallbackVolume
		report.VolumeFallbacks++
	}

	return Observation{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: ts,
	}, nil
}

// stringField returns obj[key] when it is a JSON string.
func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	var s string
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &s) != nil {
		return "", fmt.Errorf("%q is not a string", key)
	}
	return s, nil
}

func upstreamMessage(doc map[string]json.RawMessage) string {
	for _, k := range upstreamMessageKeys {
		if raw, ok := doc[k]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			return string(raw)
		}
	}
	return ""
}
