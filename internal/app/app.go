// Package app assembles a runnable simulation from configuration. Its
// constructors double as the dependency-injection providers of the hosts.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/scenario"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
	"github.com/cory-johannsen/hexbeat/internal/journal"
	"github.com/cory-johannsen/hexbeat/internal/scripting"
	"github.com/cory-johannsen/hexbeat/internal/storage/postgres"
	"github.com/cory-johannsen/hexbeat/internal/storage/sqlite"
)

// Templates maps unit template IDs to templates.
type Templates map[string]*unit.Template

// Simulation is an engine with its scenario applied.
type Simulation struct {
	Engine   *engine.Engine
	Scenario *scenario.Scenario
	Director *scenario.Director
}

// LoadTemplates reads every unit template in cfg.TemplatesDir.
func LoadTemplates(cfg config.SimulationConfig, logger *zap.Logger) (Templates, error) {
	start := time.Now()
	list, err := unit.LoadTemplates(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("app.LoadTemplates: %w", err)
	}
	logger.Info("unit templates loaded",
		zap.Int("count", len(list)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return unit.Index(list), nil
}

// LoadScenario reads cfg.Scenario and checks it against the templates.
func LoadScenario(cfg config.SimulationConfig, templates Templates) (*scenario.Scenario, error) {
	s, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return nil, fmt.Errorf("app.LoadScenario: %w", err)
	}
	if err := s.Validate(templates); err != nil {
		return nil, fmt.Errorf("app.LoadScenario: %s: %w", cfg.Scenario, err)
	}
	return s, nil
}

// NewScripts loads cfg.ScriptDir as a script tree. It returns a nil Manager
// when scripting is disabled.
func NewScripts(cfg config.SimulationConfig, logger *zap.Logger) (*scripting.Manager, func(), error) {
	if cfg.ScriptDir == "" {
		return nil, func() {}, nil
	}
	mgr := scripting.NewManager(logger)
	limit := cfg.InstructionLimit
	if limit == 0 {
		limit = scripting.DefaultInstructionLimit
	}
	scopes, err := mgr.LoadTree(cfg.ScriptDir, limit)
	if err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("app.NewScripts: %w", err)
	}
	logger.Info("policy scripts loaded", zap.Strings("scopes", scopes))
	return mgr, mgr.Close, nil
}

// NewWorld builds the scenario's grid and a world on it. A non-nil mgr
// replaces the default capability policy with the scripted one.
func NewWorld(s *scenario.Scenario, mgr *scripting.Manager, logger *zap.Logger) (*world.World, error) {
	grid, err := s.Map.Build()
	if err != nil {
		return nil, fmt.Errorf("app.NewWorld: %w", err)
	}
	opts := []world.Option{world.WithLogger(logger)}
	if mgr != nil {
		opts = append(opts, world.WithPolicy(scripting.NewPolicy(mgr, world.DefaultPolicy{})))
	}
	return world.New(grid, reservation.NewLedger(), opts...), nil
}

// NewRecorder builds the journal recorder for cfg.Driver.
//
// Postcondition: The cleanup releases storage that the recorder's sinks do
// not own. The caller runs the recorder's Start.
func NewRecorder(ctx context.Context, cfg config.JournalConfig, db config.DatabaseConfig, s *scenario.Scenario, logger *zap.Logger) (*journal.Recorder, func(), error) {
	noop := func() {}
	var sink journal.Sink
	switch cfg.Driver {
	case config.JournalNone, "":
		return journal.NewRecorder(logger, cfg.Buffer), noop, nil
	case config.JournalFile:
		sink = journal.NewFileSink(cfg.Dir, s.Name)
	case config.JournalSQLite:
		j, err := sqlite.Open(ctx, cfg.SQLitePath, s.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("app.NewRecorder: %w", err)
		}
		logger.Info("journal run started", zap.String("driver", cfg.Driver), zap.String("run", j.RunID()))
		sink = j
	case config.JournalPostgres:
		pool, err := postgres.NewPool(ctx, db)
		if err != nil {
			return nil, nil, fmt.Errorf("app.NewRecorder: %w", err)
		}
		if err := pool.CheckSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("app.NewRecorder: %w", err)
		}
		repo, err := postgres.BeginRun(ctx, pool.DB(), s.Name)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("app.NewRecorder: %w", err)
		}
		logger.Info("journal run started", zap.String("driver", cfg.Driver), zap.Stringer("run", repo.RunID()))
		return journal.NewRecorder(logger, cfg.Buffer, repo), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("app.NewRecorder: unknown journal driver %q", cfg.Driver)
	}
	return journal.NewRecorder(logger, cfg.Buffer, sink), noop, nil
}

// NewEngine creates an engine on w journaling to rec.
func NewEngine(w *world.World, rec *journal.Recorder, cfg config.SimulationConfig, logger *zap.Logger) *engine.Engine {
	return engine.New(engine.Deps{
		World:      w,
		Bus:        beat.NewBus(),
		Logger:     logger,
		Recorder:   rec,
		CheerBeats: cfg.CheerBeats,
	})
}

// NewSimulation applies s to eng and prepares its wave director.
func NewSimulation(eng *engine.Engine, s *scenario.Scenario, templates Templates, logger *zap.Logger) (*Simulation, error) {
	if err := s.Apply(eng, templates); err != nil {
		return nil, fmt.Errorf("app.NewSimulation: %w", err)
	}
	snap := eng.Snapshot()
	logger.Info("scenario applied",
		zap.String("scenario", s.Name),
		zap.Int("units", len(snap.Units)),
		zap.Int("buildings", len(snap.Buildings)),
		zap.Int("waves", len(s.Waves)),
	)
	return &Simulation{
		Engine:   eng,
		Scenario: s,
		Director: s.NewDirector(eng, templates, logger),
	}, nil
}

// Step advances sim by n beats of duration d without a clock, running the
// wave director after each one.
func (sim *Simulation) Step(n int, d time.Duration) {
	next := beat.Sequence(d)
	for i := uint64(0); i < sim.Engine.Beat(); i++ {
		next()
	}
	for i := 0; i < n; i++ {
		b := next()
		sim.Engine.OnBeat(b)
		sim.Director.OnBeat(b)
	}
}
