// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the benchsweep YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
	"github.com/AleutianAI/benchsweep/services/bench/sweep"
	"github.com/AleutianAI/benchsweep/services/bench/telemetry"
	"github.com/AleutianAI/benchsweep/services/bench/workload"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// configValidate is the validator for Config, with the "workload" tag
// registered.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("workload", validateWorkload)
}

// validateWorkload accepts names known to the workload registry.
func validateWorkload(fl validator.FieldLevel) bool {
	_, err := workload.Lookup(fl.Field().String())
	return err == nil
}

// Config is the top-level benchsweep configuration file.
type Config struct {
	Sweep     sweep.Config     `yaml:"sweep"`
	Workloads []WorkloadSpec   `yaml:"workloads" validate:"required,min=1,dive"`
	Output    OutputConfig     `yaml:"output"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// WorkloadSpec names a registered workload and its arguments.
type WorkloadSpec struct {
	Name string `yaml:"name" validate:"required,workload"`
	Args []int  `yaml:"args"`
}

// Invocation binds the named workload to Args.
func (w WorkloadSpec) Invocation() (benchmark.Invocation, error) {
	args := make([]any, len(w.Args))
	for i, a := range w.Args {
		args[i] = a
	}
	return workload.Invocation(w.Name, args...)
}

// OutputConfig selects where results go.
type OutputConfig struct {
	// ResultDir receives one JSON file per result. Empty disables files.
	ResultDir string `yaml:"result_dir"`

	// StorePath is a BadgerDB directory for result history. Empty disables it.
	StorePath string `yaml:"store_path"`

	// PromTextfile is written in Prometheus text format after the sweep.
	PromTextfile string `yaml:"prom_textfile"`

	// RawSamples keeps every trial time in the results.
	RawSamples bool `yaml:"raw_samples"`
}

// LoggingConfig configures the console and file logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto text json"`
	Dir    string `yaml:"dir"`
}

// DefaultConfig returns the stock sweep: just_wait(5) and grezzo(5) over
// 1, 2, 4 and 8 threads with 16 total repetitions and 16 trials.
func DefaultConfig() Config {
	tel := telemetry.DefaultConfig()
	return Config{
		Sweep: sweep.DefaultConfig(),
		Workloads: []WorkloadSpec{
			{Name: "just_wait", Args: []int{5}},
			{Name: "grezzo", Args: []int{5}},
		},
		Output: OutputConfig{
			ResultDir: "results",
		},
		Telemetry: tel,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks struct tags and that every thread count divides the
// total repetitions.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, describe(err))
	}
	if _, err := sweep.Plan(c.Sweep); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// describe flattens validator errors into one line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(parts, "; ")
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
