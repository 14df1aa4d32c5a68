//go:build wireinject
// +build wireinject

package di

import (
	"TrendScan/pkg/config"
	"TrendScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics and logging
		ProvideLogger,
		ProvideMetrics,

		// Market data plumbing
		ProvideRateLimiter,
		ProvidePriceCache,
		ProvideDataSource,

		// Analytics services
		ProvideChannelFitter,
		ProvideSignalEvaluator,
		ProvideRunnerFactory,

		// Sinks
		ProvideSinkSet,

		// Use cases
		ProvideScanConfig,
		ProvideScanOrchestrator,
		ProvideBacktestOrchestrator,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
