package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	svccache "TrendScan/internal/service/cache"
	scanmetrics "TrendScan/internal/service/metrics"
	"TrendScan/internal/service/ratelimit"
	"TrendScan/internal/usecase"
	xhttp "TrendScan/pkg/http"
	"TrendScan/pkg/logger"
)

const (
	signalsCacheTTL = 10 * time.Second

	// inbound token bucket per client IP
	inboundBurst  = 20.0
	inboundPerSec = 10.0
)

// ScanHandler exposes the scan pipeline over HTTP.
type ScanHandler struct {
	scans     *usecase.ScanOrchestrator
	backtests *usecase.BacktestOrchestrator
	reader    domrepo.SignalReader
	cache     svccache.BytesCache
	limiter   *ratelimit.KeyedLimiter
	l         *logger.Logger
}

func NewScanHandler(
	scans *usecase.ScanOrchestrator,
	backtests *usecase.BacktestOrchestrator,
	reader domrepo.SignalReader,
	cache svccache.BytesCache,
	l *logger.Logger,
) *ScanHandler {
	return &ScanHandler{
		scans:     scans,
		backtests: backtests,
		reader:    reader,
		cache:     cache,
		limiter:   ratelimit.NewKeyed(),
		l:         l,
	}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	scanmetrics.Register()
	g := e.Group("/api")
	g.POST("/scan", h.Scan)
	g.GET("/signals", h.Signals)
	g.POST("/backtest", h.Backtest)
}

// Scan runs a synchronous batch scan and returns ranked signals.
func (h *ScanHandler) Scan(c echo.Context) error {
	defer h.observe("scan", time.Now())
	if !h.allow(c) {
		return h.tooManyRequests(c)
	}

	req := new(models.ScanRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		scanmetrics.EndpointErrors.WithLabelValues("scan").Inc()
		return xhttp.BadRequestResponse(c, errs)
	}

	result, err := h.scans.Scan(c.Request().Context(), req.Symbols, models.ScanParams{
		Degree:       req.Degree,
		KStd:         req.KStd,
		LookbackDays: req.LookbackDays,
		Interval:     req.Interval,
	})
	if err != nil {
		scanmetrics.EndpointErrors.WithLabelValues("scan").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("scan rejected: %v", err))
	}
	return xhttp.SuccessResponse(c, result)
}

// Signals serves recently stored signals, with a short response cache.
func (h *ScanHandler) Signals(c echo.Context) error {
	defer h.observe("signals", time.Now())
	if !h.allow(c) {
		return h.tooManyRequests(c)
	}

	req := new(models.SignalsRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		scanmetrics.EndpointErrors.WithLabelValues("signals").Inc()
		return xhttp.BadRequestResponse(c, errs)
	}

	if h.reader == nil {
		return xhttp.NotFoundResponse(c, "signal storage is not configured")
	}

	since := xhttp.ParseTimeDefault(c.QueryParam("since"), time.Time{})

	key := fmt.Sprintf("signals:%s:%d:%d", req.Symbol, req.Limit, since.Unix())
	if h.cache != nil {
		if b, ok, _ := h.cache.GetBytes(key); ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	rows, err := h.reader.LatestSignals(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		scanmetrics.EndpointErrors.WithLabelValues("signals").Inc()
		h.l.Error("latest signals query failed", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if !since.IsZero() {
		filtered := rows[:0]
		for _, r := range rows {
			if !r.Timestamp.Before(since) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	body := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    rows,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil {
		_ = h.cache.SetBytes(key, b, signalsCacheTTL)
	}
	return c.JSONBlob(http.StatusOK, b)
}

// Backtest replays the channel strategy for the requested symbols.
func (h *ScanHandler) Backtest(c echo.Context) error {
	defer h.observe("backtest", time.Now())
	if !h.allow(c) {
		return h.tooManyRequests(c)
	}

	req := new(models.BacktestRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		scanmetrics.EndpointErrors.WithLabelValues("backtest").Inc()
		return xhttp.BadRequestResponse(c, errs)
	}

	batch, err := h.backtests.Run(c.Request().Context(), req.Symbols, models.ScanParams{
		Degree:       req.Degree,
		KStd:         req.KStd,
		LookbackDays: req.LookbackDays,
		Interval:     req.Interval,
	}, req.Capital, req.CommissionPct)
	if err != nil {
		scanmetrics.EndpointErrors.WithLabelValues("backtest").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("backtest rejected: %v", err))
	}
	return xhttp.SuccessResponse(c, batch)
}

func (h *ScanHandler) allow(c echo.Context) bool {
	return h.limiter.Allow(c.RealIP(), inboundBurst, inboundPerSec)
}

func (h *ScanHandler) tooManyRequests(c echo.Context) error {
	return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
}

func (h *ScanHandler) observe(endpoint string, start time.Time) {
	scanmetrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

var _ xhttp.Handler = (*ScanHandler)(nil)
