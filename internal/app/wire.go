package app

import "github.com/google/wire"

// ProviderSet builds a Simulation from configuration.
var ProviderSet = wire.NewSet(
	LoadTemplates,
	LoadScenario,
	NewScripts,
	NewWorld,
	NewRecorder,
	NewEngine,
	NewSimulation,
)
