package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hexbeat/internal/config"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
)

func testConfig() config.Config {
	return config.Config{
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
		Simulation: config.SimulationConfig{
			BPM:          120,
			Scenario:     "../../content/scenarios/border.yaml",
			TemplatesDir: "../../content/templates",
			CheerBeats:   2,
		},
		Journal: config.JournalConfig{Driver: config.JournalNone},
	}
}

func TestRun_PrintsSnapshot(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), testConfig(), 8, &out))

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, uint64(8), snap.Beat)
	assert.NotEmpty(t, snap.Buildings)
}

func TestRun_RejectsNegativeBeats(t *testing.T) {
	assert.Error(t, run(context.Background(), testConfig(), -1, &bytes.Buffer{}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Simulation.BPM)
	assert.Equal(t, config.JournalNone, cfg.Journal.Driver)
}
