//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SuperAlgo/pkg/config"
	"SuperAlgo/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// State and alerts
		ProvideCache,
		ProvideStateStore,
		ProvideAlertQueue,
		ProvideAlerter,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvidePostgresPool,
		ProvideTradeLog,

		// Market and broker adapters
		ProvideSession,
		ProvideAlpacaClient,
		ProvideBroker,
		ProvideMarketData,
		ProvideModelFactory,
		ProvideSentiment,
		ProvidePriceBook,
		ProvidePriceCollector,

		// Use cases
		ProvideDailyLossGuard,
		ProvideExecutionGateway,
		ProvideScheduler,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
