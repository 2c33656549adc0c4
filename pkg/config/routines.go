// PicoClaw - Ultra-lightweight personal AI agent
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RoutinesFile is the YAML-authored sibling of the JSON primary config,
// for the parts of the config surface operators tend to hand-edit as a
// list rather than a flat struct: contracts, budgets, cron routines.
type RoutinesFile struct {
	Contracts []ContractSpec `yaml:"contracts,omitempty"`
	Budgets   []BudgetSpec   `yaml:"budgets,omitempty"`
	Routines  []RoutineSpec  `yaml:"routines,omitempty"`
}

// LoadRoutinesFile reads a YAML routines file and merges it into cfg,
// appending to (not replacing) anything already loaded from the JSON
// config. A missing file is not an error.
func LoadRoutinesFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var rf RoutinesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return err
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	cfg.Contracts = append(cfg.Contracts, rf.Contracts...)
	cfg.Telemetry.Budgets = append(cfg.Telemetry.Budgets, rf.Budgets...)
	cfg.Routines = append(cfg.Routines, rf.Routines...)
	return nil
}
