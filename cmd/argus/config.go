package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openfluke/argus"
)

// fileConfig is the YAML shape of a run configuration. Every field is
// optional; absent fields take the library defaults.
type fileConfig struct {
	PrepareEpochs int                `yaml:"prepare_epochs"`
	TrainEpochs   int                `yaml:"train_epochs"`
	PredictEpochs int                `yaml:"predict_epochs"`
	BatchSize     int                `yaml:"batch_size"`
	LearningRate  float64            `yaml:"learning_rate"`
	NCritic       int                `yaml:"n_critic"`
	GPU           bool               `yaml:"gpu"`
	Seed          int64              `yaml:"seed"`
	Weights       map[string]float64 `yaml:"weights"`

	Generator struct {
		HiddenDims     []int   `yaml:"hidden_dims"`
		ResidualBlocks int     `yaml:"residual_blocks"`
		MemorySlots    int     `yaml:"memory_slots"`
		Threshold      float32 `yaml:"threshold"`
		Temperature    float32 `yaml:"temperature"`
	} `yaml:"generator"`

	CriticHidden    []int `yaml:"critic_hidden"`
	PredictorHidden int   `yaml:"predictor_hidden"`
}

// loadConfig reads a YAML run configuration. An empty path yields the
// defaults.
func loadConfig(path string) (*argus.Config, error) {
	if path == "" {
		return argus.DefaultConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &argus.Config{
		PrepareEpochs: fc.PrepareEpochs,
		TrainEpochs:   fc.TrainEpochs,
		PredictEpochs: fc.PredictEpochs,
		BatchSize:     fc.BatchSize,
		LearningRate:  fc.LearningRate,
		NCritic:       fc.NCritic,
		GPU:           fc.GPU,
		Seed:          fc.Seed,
		Weights:       fc.Weights,
		Generator: argus.GeneratorConfig{
			HiddenDims:     fc.Generator.HiddenDims,
			ResidualBlocks: fc.Generator.ResidualBlocks,
			MemorySlots:    fc.Generator.MemorySlots,
			Threshold:      fc.Generator.Threshold,
			Temperature:    fc.Generator.Temperature,
		},
		CriticHidden:    fc.CriticHidden,
		PredictorHidden: fc.PredictorHidden,
	}, nil
}
