package di

import (
	"context"
	"fmt"
	"time"

	domrepo "TrendScan/internal/domain/repository"
	domsvc "TrendScan/internal/domain/service"
	"TrendScan/internal/handler/api"
	internalrepo "TrendScan/internal/repository"
	svccache "TrendScan/internal/service/cache"
	"TrendScan/internal/service/marketdata"
	"TrendScan/internal/service/ratelimit"
	"TrendScan/internal/services/analytics"
	"TrendScan/internal/services/backtest"
	"TrendScan/internal/usecase"
	"TrendScan/pkg/cache"
	pkgch "TrendScan/pkg/clickhouse"
	"TrendScan/pkg/config"
	xhttp "TrendScan/pkg/http"
	pkgkafka "TrendScan/pkg/kafka"
	"TrendScan/pkg/logger"
	"TrendScan/pkg/metrics"
	"TrendScan/pkg/retry"
	"TrendScan/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRateLimiter creates the outbound market-data rate limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.MarketData.RateLimit.Requests, cfg.MarketData.RateLimit.Window)
}

// ProvidePriceCache creates the price-series cache: Redis when enabled,
// in-process otherwise.
func ProvidePriceCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix("trendscan"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	}
	return cache.NewMemoryCache(), nil
}

// ProvideDataSource creates the klines REST data source.
func ProvideDataSource(cfg *config.Config, limiter *ratelimit.Limiter, c cache.Service, l *logger.Logger) domrepo.DataSource {
	return marketdata.New(
		cfg.MarketData.BaseURL,
		cfg.MarketData.Timeout,
		limiter,
		marketdata.WithCache(c, cfg.MarketData.CacheTTL),
		marketdata.WithLogger(l),
	)
}

// ProvideChannelFitter creates the channel calculator.
func ProvideChannelFitter() domsvc.ChannelFitter {
	return analytics.NewChannelCalculator()
}

// ProvideSignalEvaluator creates the signal generator.
func ProvideSignalEvaluator() domsvc.SignalEvaluator {
	return analytics.NewSignalGenerator()
}

// ProvideRunnerFactory builds backtest runners with the configured strategy
// knobs; capital and commission come from each request.
func ProvideRunnerFactory(cfg *config.Config) usecase.RunnerFactory {
	return func(capital, commissionPct float64) domsvc.BacktestRunner {
		return backtest.New(backtest.Config{
			InitialCapital: capital,
			CommissionPct:  commissionPct,
			StopLossPct:    cfg.Backtest.StopLossPct,
			TakeProfitPct:  cfg.Backtest.TakeProfitPct,
			ExitThreshold:  cfg.Backtest.ExitThreshold,
		})
	}
}

// ProvideScanConfig maps config to orchestrator settings.
func ProvideScanConfig(cfg *config.Config) usecase.ScanConfig {
	return usecase.ScanConfig{
		Workers:      cfg.Scan.Workers,
		BatchTimeout: cfg.Scan.BatchTimeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.Scan.Retry.MaxAttempts,
			BaseDelay:   cfg.Scan.Retry.BaseDelay,
			Multiplier:  cfg.Scan.Retry.Multiplier,
		},
	}
}

// SinkSet bundles the configured result sinks with the optional read path.
// Reader is nil unless the sink supports queries.
type SinkSet struct {
	Sinks  []domrepo.ResultSink
	Reader domrepo.SignalReader
}

// Close releases all sink resources.
func (s *SinkSet) Close() error {
	var first error
	for _, sink := range s.Sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProvideSinkSet creates the configured result sinks.
func ProvideSinkSet(cfg *config.Config) (*SinkSet, error) {
	switch cfg.Sink.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := internalrepo.NewClickHouseStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse store: %w", err)
		}
		return &SinkSet{Sinks: []domrepo.ResultSink{store}, Reader: store}, nil

	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
			pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
			pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
			pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		return &SinkSet{Sinks: []domrepo.ResultSink{pub}}, nil

	default:
		return &SinkSet{}, nil
	}
}

// ProvideScanOrchestrator creates the batch scan use case.
func ProvideScanOrchestrator(
	source domrepo.DataSource,
	fitter domsvc.ChannelFitter,
	eval domsvc.SignalEvaluator,
	sinks *SinkSet,
	m domrepo.Metrics,
	cfg usecase.ScanConfig,
	l *logger.Logger,
) *usecase.ScanOrchestrator {
	return usecase.NewScanOrchestrator(source, fitter, eval, sinks.Sinks, m, cfg, l)
}

// ProvideBacktestOrchestrator creates the batch backtest use case.
func ProvideBacktestOrchestrator(
	source domrepo.DataSource,
	fitter domsvc.ChannelFitter,
	factory usecase.RunnerFactory,
	sinks *SinkSet,
	m domrepo.Metrics,
	cfg usecase.ScanConfig,
	l *logger.Logger,
) *usecase.BacktestOrchestrator {
	return usecase.NewBacktestOrchestrator(source, fitter, factory, sinks.Sinks, m, cfg, l)
}

// ProvideHTTPHandler creates the scan API handler.
func ProvideHTTPHandler(
	scans *usecase.ScanOrchestrator,
	backtests *usecase.BacktestOrchestrator,
	sinks *SinkSet,
	l *logger.Logger,
) xhttp.Handler {
	return api.NewScanHandler(scans, backtests, sinks.Reader, svccache.NewTTLCache(), l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	scans *usecase.ScanOrchestrator,
	handler xhttp.Handler,
	sinks *SinkSet,
	l *logger.Logger,
) *server.App {
	return server.New(cfg, scans, handler, sinks, l)
}
