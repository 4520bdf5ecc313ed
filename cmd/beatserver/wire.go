//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/cory-johannsen/hexbeat/internal/app"
	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/observability"
	"github.com/cory-johannsen/hexbeat/internal/server"
)

func initLifecycle(ctx context.Context, cfg config.Config) (*server.Lifecycle, func(), error) {
	wire.Build(
		wire.FieldsOf(new(config.Config), "Logging", "Simulation", "Transport", "Database", "Journal"),
		observability.NewLogging,
		observability.ProvideLogger,
		app.ProviderSet,
		newHub,
		newWSServer,
		newGRPCServer,
		newBeatLoop,
		newLifecycle,
	)
	return nil, nil, nil
}
