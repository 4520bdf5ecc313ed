//go:build !wireinject

// This file mirrors the injector in wire.go. It is kept by hand in the shape
// wire emits; regenerate with `wire ./cmd/beatserver` after changing the
// provider graph and review the diff.

package main

import (
	"context"

	"github.com/cory-johannsen/hexbeat/internal/app"
	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/observability"
	"github.com/cory-johannsen/hexbeat/internal/server"
)

// Injectors from wire.go:

func initLifecycle(ctx context.Context, cfg config.Config) (*server.Lifecycle, func(), error) {
	loggingConfig := cfg.Logging
	logging, err := observability.NewLogging(loggingConfig)
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup := observability.ProvideLogger(logging)
	simulationConfig := cfg.Simulation
	templates, err := app.LoadTemplates(simulationConfig, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	journalConfig := cfg.Journal
	databaseConfig := cfg.Database
	scenario, err := app.LoadScenario(simulationConfig, templates)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	recorder, cleanup2, err := app.NewRecorder(ctx, journalConfig, databaseConfig, scenario, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	manager, cleanup3, err := app.NewScripts(simulationConfig, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	world, err := app.NewWorld(scenario, manager, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	engine := app.NewEngine(world, recorder, simulationConfig, logger)
	simulation, err := app.NewSimulation(engine, scenario, templates, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	beatLoop := newBeatLoop(simulation, simulationConfig, logger)
	hub := newHub(logger, simulation, logging)
	transportConfig := cfg.Transport
	wsServer := newWSServer(hub, transportConfig)
	grpcapiServer := newGRPCServer(simulation, transportConfig, logger)
	lifecycle := newLifecycle(logger, recorder, beatLoop, wsServer, grpcapiServer)
	return lifecycle, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
