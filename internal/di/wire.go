//go:build wireinject
// +build wireinject

package di

import (
	"TrendSentry/pkg/config"
	"TrendSentry/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideEventPublisher,
		ProvideRegimeCache,

		// Repositories
		ProvideSignalStore,
		ProvideMarketData,
		ProvidePriceStream,

		// Services
		ProvideScorer,
		ProvideNotifier,

		// Engine
		ProvidePriceTable,
		ProvidePriceCollector,
		ProvidePipeline,
		ProvideSignalGate,
		ProvideManager,
		ProvideCommandBot,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
