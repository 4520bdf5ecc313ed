package main

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/app"
	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/journal"
	"github.com/cory-johannsen/hexbeat/internal/observability"
	"github.com/cory-johannsen/hexbeat/internal/server"
	"github.com/cory-johannsen/hexbeat/internal/transport/grpcapi"
	"github.com/cory-johannsen/hexbeat/internal/transport/ws"
)

// newHub connects an observer hub to the simulation's grid and ownership
// notifications.
func newHub(logger *zap.Logger, sim *app.Simulation, logging *observability.Logging) *ws.Hub {
	hub := ws.NewHub(logger, sim.Engine, logging.Level)
	sim.Engine.Grid().AddObserver(hub)
	sim.Engine.World().AddTeamChangedListener(hub)
	return hub
}

func newWSServer(hub *ws.Hub, cfg config.TransportConfig) *ws.Server {
	return ws.NewServer(hub, cfg.WSAddr())
}

func newGRPCServer(sim *app.Simulation, cfg config.TransportConfig, logger *zap.Logger) *grpcapi.Server {
	return grpcapi.NewServer(cfg.GRPCAddr(), grpcapi.NewService(sim.Engine, logger), logger)
}

func newBeatLoop(sim *app.Simulation, cfg config.SimulationConfig, logger *zap.Logger) *app.BeatLoop {
	return app.NewBeatLoop(sim, cfg.BPM, logger)
}

// newLifecycle registers the journal first so that it stops last and drains
// every event the beat loop produced.
func newLifecycle(logger *zap.Logger, rec *journal.Recorder, loop *app.BeatLoop, wsSrv *ws.Server, grpcSrv *grpcapi.Server) *server.Lifecycle {
	lc := server.NewLifecycle(logger)
	lc.Add("journal", rec)
	lc.Add("beat", loop)
	lc.Add("ws", wsSrv)
	lc.Add("grpc", grpcSrv)
	return lc
}
