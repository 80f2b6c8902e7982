//go:build wireinject
// +build wireinject

package di

import (
	"MarketScreener/pkg/config"
	"MarketScreener/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideIndicatorFeed,
		ProvideSignalHistory,
		ProvideNotificationStore,

		// Domain services
		ProvideState,
		ProvideClassifier,
		ProvideBindings,
		ProvideGate,
		ProvideDispatcher,

		// Use cases and transports
		ProvideHub,
		ProvideBroadcaster,
		ProvideEngine,
		ProvideKafkaConsumer,
		ProvideBarCollector,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
