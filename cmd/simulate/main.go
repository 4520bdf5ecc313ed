// Package main runs a scenario headless for a fixed number of beats and
// prints the final snapshot as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/app"
	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and HEXBEAT_ environment")
	scenarioPath := flag.String("scenario", "", "scenario override")
	beats := flag.Int("beats", 60, "number of beats to simulate")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *scenarioPath != "" {
		cfg.Simulation.Scenario = *scenarioPath
	}
	if err := run(context.Background(), cfg, *beats, os.Stdout); err != nil {
		log.Fatalf("simulate: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromViper(config.NewViper())
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg config.Config, beats int, out io.Writer) error {
	if beats < 0 {
		return fmt.Errorf("beats must be >= 0, got %d", beats)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	templates, err := app.LoadTemplates(cfg.Simulation, logger)
	if err != nil {
		return err
	}
	s, err := app.LoadScenario(cfg.Simulation, templates)
	if err != nil {
		return err
	}
	mgr, closeScripts, err := app.NewScripts(cfg.Simulation, logger)
	if err != nil {
		return err
	}
	defer closeScripts()
	w, err := app.NewWorld(s, mgr, logger)
	if err != nil {
		return err
	}
	rec, closeStore, err := app.NewRecorder(ctx, cfg.Journal, cfg.Database, s, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	recDone := make(chan error, 1)
	go func() { recDone <- rec.Start() }()

	sim, err := app.NewSimulation(app.NewEngine(w, rec, cfg.Simulation, logger), s, templates, logger)
	if err != nil {
		rec.Stop()
		<-recDone
		return err
	}

	start := time.Now()
	sim.Step(beats, cfg.Simulation.Interval())
	rec.Stop()
	if err := <-recDone; err != nil {
		logger.Warn("closing journal", zap.Error(err))
	}

	snap := sim.Engine.Snapshot()
	logger.Info("simulation finished",
		zap.Int("beats", beats),
		zap.Int("player_units", snap.CountUnits(team.Player)),
		zap.Int("enemy_units", snap.CountUnits(team.Enemy)),
		zap.Uint64("journaled", rec.Written()),
		zap.Uint64("dropped", rec.Dropped()),
		zap.Duration("elapsed", time.Since(start)),
	)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
