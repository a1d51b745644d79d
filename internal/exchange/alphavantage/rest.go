// Package alphavantage fetches intraday time series from the Alpha Vantage
// REST API. It returns the raw response body; parsing is left to the market
// package.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ErrAPIMessage is returned when the API answers with an error, rate limit or
// information message instead of data.
var ErrAPIMessage = errors.New("alphavantage: api message")

const queryPath = "/query"

// MetricsInterface defines the fetch metrics recorded by the client
type MetricsInterface interface {
	FetchesInc()
	FetchFailuresInc()
	FetchLatencyObserve(float64)
}

type Client struct {
	key, base string
	rest      *resty.Client
	metrics   MetricsInterface
}

func NewREST(key, base string, timeout time.Duration) *Client {
	return NewRESTWithMetrics(key, base, timeout, nil)
}

func NewRESTWithMetrics(key, base string, timeout time.Duration, metrics MetricsInterface) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	return &Client{key: key, base: base, rest: r, metrics: metrics}
}

type apiMessage struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (m apiMessage) text() string {
	switch {
	case m.ErrorMessage != "":
		return m.ErrorMessage
	case m.Note != "":
		return m.Note
	default:
		return m.Information
	}
}

// FetchIntraday requests TIME_SERIES_INTRADAY for symbol at the given interval
// (1min, 5min, ...) and returns the response body untouched.
func (c *Client) FetchIntraday(ctx context.Context, symbol, interval string) ([]byte, error) {
	start := time.Now()
	if c.metrics != nil {
		c.metrics.FetchesInc()
	}

	body, err := c.fetchIntraday(ctx, symbol, interval)

	if c.metrics != nil {
		c.metrics.FetchLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			c.metrics.FetchFailuresInc()
		}
	}
	return body, err
}

func (c *Client) fetchIntraday(ctx context.Context, symbol, interval string) ([]byte, error) {
	params := map[string]string{
		"function": "TIME_SERIES_INTRADAY",
		"symbol":   symbol,
		"interval": interval,
		"apikey":   c.key,
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.base + queryPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", stripURL(err))
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	body := resp.Body()
	var msg apiMessage
	if err := json.Unmarshal(body, &msg); err == nil && msg.text() != "" {
		return nil, fmt.Errorf("%w: %s", ErrAPIMessage, msg.text())
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("bytes", len(body)).
		Msg("Fetched intraday series")

	return body, nil
}

// stripURL drops the request URL from transport errors; it carries the API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s %s: %w", uerr.Op, queryPath, uerr.Err)
	}
	return err
}
