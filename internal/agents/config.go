package agents

import (
	"minerva/internal/adapters/config"
	"minerva/internal/domain/conversation"
)

// WorkerConfig captures runtime settings for one analysis worker.
type WorkerConfig struct {
	ID          string
	Name        string
	Model       string
	Temperature float64
	MaxTokens   int
	// MaxIterations bounds the reasoning loop: one iteration is one chat
	// call, so the worker makes at most MaxIterations model calls per turn.
	MaxIterations int
}

// DefaultWorkerConfigs holds the baseline limits per worker tier. The junior
// tier stays cheap and quick; the master tier gets the room a multi-ticker
// deep dive needs.
var DefaultWorkerConfigs = map[string]WorkerConfig{
	conversation.WorkerJunior: {
		ID:            conversation.WorkerJunior,
		Name:          "JuniorAnalyst",
		Temperature:   0.5,
		MaxTokens:     1500,
		MaxIterations: 5,
	},
	conversation.WorkerMaster: {
		ID:            conversation.WorkerMaster,
		Name:          "MasterAnalyst",
		Temperature:   0.7,
		MaxTokens:     4000,
		MaxIterations: 10,
	},
}

// WorkerConfigs builds the effective per-worker configs: defaults overlaid
// with the environment settings and the shared chat model.
func WorkerConfigs(model string, cfg config.WorkersConfig) map[string]WorkerConfig {
	junior := DefaultWorkerConfigs[conversation.WorkerJunior]
	junior.Model = model
	if cfg.JuniorMaxIterations > 0 {
		junior.MaxIterations = cfg.JuniorMaxIterations
	}
	if cfg.JuniorTemperature > 0 {
		junior.Temperature = cfg.JuniorTemperature
	}

	master := DefaultWorkerConfigs[conversation.WorkerMaster]
	master.Model = model
	if cfg.MasterMaxIterations > 0 {
		master.MaxIterations = cfg.MasterMaxIterations
	}
	if cfg.MasterTemperature > 0 {
		master.Temperature = cfg.MasterTemperature
	}

	return map[string]WorkerConfig{
		conversation.WorkerJunior: junior,
		conversation.WorkerMaster: master,
	}
}
