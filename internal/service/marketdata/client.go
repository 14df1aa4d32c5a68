package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	"TrendScan/internal/service/ratelimit"
	"TrendScan/pkg/cache"
	xhttp "TrendScan/pkg/http"
	applogger "TrendScan/pkg/logger"
	xutil "TrendScan/pkg/util"
)

// maxKlinesPerRequest matches the exchange-side page limit.
const maxKlinesPerRequest = 1000

// Client implements a DataSource backed by a Binance-style klines REST API.
// All outbound requests pass through the shared rate limiter; fetched series
// are cached briefly so repeated scans do not re-hit the source.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	limiter  *ratelimit.Limiter
	cache    cache.Service
	cacheTTL time.Duration
	l        *applogger.Logger
}

type Option func(*Client)

// WithCache attaches a price-series cache.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(cl *Client) { cl.l = l }
}

func New(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter:  limiter,
		cacheTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// kline is one row of the exchange response:
// [openTime, open, high, low, close, volume, closeTime, ...]
// with numeric fields encoded as strings.
type kline []interface{}

// Fetch returns the OHLCV history for symbol over the lookback window.
// Fetch errors are classified: unknown symbol is permanent, everything
// else (timeouts, throttling, 5xx) is transient and retryable.
func (c *Client) Fetch(ctx context.Context, symbol string, interval domrepo.Timeframe, lookbackDays int) (models.PriceSeries, error) {
	key := fmt.Sprintf("klines:%s:%s:%d", symbol, interval, lookbackDays)
	if c.cache != nil {
		var cached models.PriceSeries
		if err := c.cache.Get(ctx, key, &cached); err == nil && cached.Len() > 0 {
			return cached, nil
		}
	}

	// Align the window start to a bar boundary so identical lookbacks hit
	// the same upstream range. The source caps each response at
	// maxKlinesPerRequest rows, so long lookbacks page forward from the
	// last returned open time until the window is covered.
	start := xutil.AlignToBar(time.Now().AddDate(0, 0, -lookbackDays), string(interval))
	estBars := time.Duration(lookbackDays) * 24 * time.Hour / interval.Duration()
	pageBudget := int(estBars)/maxKlinesPerRequest + 2

	var rows []kline
	for page := 0; page < pageBudget; page++ {
		raw, err := c.fetchPage(ctx, symbol, interval, start)
		if err != nil {
			return models.PriceSeries{}, err
		}
		rows = append(rows, raw...)
		if len(raw) < maxKlinesPerRequest {
			break
		}

		lastOpen, ok := raw[len(raw)-1][0].(float64)
		if !ok {
			return models.PriceSeries{}, models.NewPermanentFetchError(symbol, errors.New("bad open time in last kline"))
		}
		next := time.UnixMilli(int64(lastOpen)).Add(interval.Duration())
		if !next.Before(time.Now()) {
			break
		}
		start = next
	}
	if len(rows) == 0 {
		return models.PriceSeries{}, models.NewPermanentFetchError(symbol, errors.New("no data returned"))
	}

	series, err := parseSeries(symbol, interval, rows)
	if err != nil {
		return models.PriceSeries{}, models.NewPermanentFetchError(symbol, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, series, c.cacheTTL); err != nil && c.l != nil {
			c.l.Warn("price cache set failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
	return series, nil
}

// fetchPage requests one page of klines starting at start. Every page
// waits its turn on the shared limiter.
func (c *Client) fetchPage(ctx context.Context, symbol string, interval domrepo.Timeframe, start time.Time) ([]kline, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewTransientFetchError(symbol, err)
	}

	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":    {symbol},
			"interval":  {string(interval)},
			"startTime": {strconv.FormatInt(start.UnixMilli(), 10)},
			"limit":     {strconv.Itoa(maxKlinesPerRequest)},
		},
	})
	if err != nil {
		return nil, models.NewTransientFetchError(symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(symbol, resp.StatusCode)
	}
	var raw []kline
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, models.NewTransientFetchError(symbol, fmt.Errorf("decode klines: %w", err))
	}
	return raw, nil
}

// classifyStatus maps an HTTP status to a typed fetch error.
func classifyStatus(symbol string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		// Unknown or malformed symbol; retrying cannot help.
		return models.NewPermanentFetchError(symbol, err)
	case status == http.StatusTooManyRequests || status >= 500:
		return models.NewTransientFetchError(symbol, err)
	default:
		return models.NewPermanentFetchError(symbol, err)
	}
}

func parseSeries(symbol string, interval domrepo.Timeframe, rows []kline) (models.PriceSeries, error) {
	series := models.PriceSeries{
		Symbol:   symbol,
		Interval: string(interval),
		Candles:  make([]models.Candle, 0, len(rows)),
	}
	for i, row := range rows {
		if len(row) < 6 {
			return models.PriceSeries{}, fmt.Errorf("kline row %d too short", i)
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return models.PriceSeries{}, fmt.Errorf("kline row %d: bad open time", i)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			s, ok := row[j].(string)
			if !ok {
				return models.PriceSeries{}, fmt.Errorf("kline row %d col %d: not a string", i, j)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return models.PriceSeries{}, fmt.Errorf("kline row %d col %d: %w", i, j, err)
			}
			vals[j-1] = v
		}
		series.Candles = append(series.Candles, models.Candle{
			Timestamp: time.UnixMilli(int64(openTime)).UTC(),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	if err := series.Validate(); err != nil {
		return models.PriceSeries{}, err
	}
	return series, nil
}

var _ domrepo.DataSource = (*Client)(nil)
