// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sipeed/picoclaw/pkg/agentcore/assembler"
	"github.com/sipeed/picoclaw/pkg/agentcore/contracts"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/cron"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/agentcore/telemetry"
	"github.com/sipeed/picoclaw/pkg/agentcore/tools"
	"github.com/sipeed/picoclaw/pkg/config"
	"github.com/sipeed/picoclaw/pkg/logger"
	"github.com/sipeed/picoclaw/pkg/memory/sqlitestore"
	"github.com/sipeed/picoclaw/pkg/providers"
	"github.com/sipeed/picoclaw/pkg/providers/reactbridge"
)

// basePricing seeds the telemetry engine with the handful of models the
// bundled adapters talk to; operators add to it via
// cfg.Telemetry.PricingOverrides.
var basePricing = telemetry.PricingTable{
	"claude-sonnet-4.6": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-opus-4.6":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"gpt-4o":            {InputPerMillion: 2.5, OutputPerMillion: 10.0},
	"gpt-4o-mini":       {InputPerMillion: 0.15, OutputPerMillion: 0.6},
}

// runtime bundles everything a command needs to drive one or more ReAct
// turns: the loop itself, plus the pieces a CLI wants to report on
// directly (telemetry, cron).
type runtime struct {
	cfg       *config.Config
	loop      *react.Loop
	telemetry *telemetry.Engine
	scheduler *cron.Scheduler
	tools     *tools.Registry
	memory    *sqlitestore.Store
}

func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("agentcored: load config: %w", err)
	}
	if err := config.LoadRoutinesFile(filepath.Join(filepath.Dir(configPath), "routines.yaml"), cfg); err != nil {
		return nil, fmt.Errorf("agentcored: load routines: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkspacePath(), 0o755); err != nil {
		return nil, fmt.Errorf("agentcored: create workspace: %w", err)
	}
	if err := os.MkdirAll(cfg.DataPath(), 0o755); err != nil {
		return nil, fmt.Errorf("agentcored: create data dir: %w", err)
	}

	contractsEngine, err := buildContractsEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("agentcored: build contracts: %w", err)
	}

	telemetryEngine := buildTelemetryEngine(cfg)

	memoryStore, err := sqlitestore.Open(filepath.Join(cfg.DataPath(), "memory.db"))
	if err != nil {
		return nil, fmt.Errorf("agentcored: open memory store: %w", err)
	}

	toolRegistry := tools.NewRegistry(cfg.WorkspacePath())

	registry := providers.NewRegistry(cfg)
	cooldown := providers.NewCooldownTracker()
	chain := providers.NewFallbackChain(cooldown)
	modelConfig := providers.ModelConfigFromLLM(cfg)
	defaultProvider := cfg.LLM.Provider
	if defaultProvider == "" {
		defaultProvider = "anthropic"
	}
	bridge := reactbridge.New(registry, chain, modelConfig, defaultProvider)

	loop := react.New(bridge, toolRegistry, contractsEngine, telemetryEngine)
	loop.Streamer = bridge
	loop.Memory = memoryStore

	scheduler := cron.NewScheduler()
	if cfg.Heartbeat.Enabled {
		scheduler.SetHeartbeat(cron.Heartbeat{Enabled: true, IntervalMinutes: cfg.Heartbeat.IntervalMinutes})
	}
	for _, r := range cfg.Routines {
		if !r.Enabled {
			continue
		}
		task := cron.CronTask{
			ID:            r.Name,
			Expr:          r.Schedule,
			TargetChannel: r.TargetChannel,
			Action:        cron.TaskAction{Prompt: r.Instruction},
			Enabled:       true,
		}
		if err := scheduler.RegisterTask(task); err != nil {
			logger.WarnCF("agentcored", "skipping invalid routine", map[string]any{"name": r.Name, "error": err.Error()})
		}
	}

	return &runtime{cfg: cfg, loop: loop, telemetry: telemetryEngine, scheduler: scheduler, tools: toolRegistry, memory: memoryStore}, nil
}

func buildContractsEngine(cfg *config.Config) (*contracts.Engine, error) {
	if len(cfg.Contracts) == 0 {
		return contracts.New(contracts.DefaultContractSet())
	}
	set := contracts.ContractSet{Contracts: make([]contracts.Contract, 0, len(cfg.Contracts))}
	for _, spec := range cfg.Contracts {
		set.Contracts = append(set.Contracts, contracts.Contract{
			Name:        spec.Name,
			Description: spec.Description,
			Trigger:     contracts.ParseTrigger(spec.Trigger),
			Condition:   spec.Condition,
			Action:      contracts.Action(spec.Action),
			Message:     spec.Message,
			Enabled:     spec.Enabled,
			Priority:    spec.Priority,
		})
	}
	return contracts.New(set)
}

func buildTelemetryEngine(cfg *config.Config) *telemetry.Engine {
	pricing := make(telemetry.PricingTable, len(basePricing))
	for model, price := range basePricing {
		pricing[model] = price
	}
	for _, o := range cfg.Telemetry.PricingOverrides {
		pricing[o.Model] = telemetry.ModelPrice{InputPerMillion: o.InputPerMillion, OutputPerMillion: o.OutputPerMillion}
	}

	engine := telemetry.NewEngine(pricing)
	for _, b := range cfg.Telemetry.Budgets {
		engine.AddBudget(telemetry.Budget{
			Scope:    telemetry.BudgetScope(b.Scope),
			MaxUSD:   b.MaxUSD,
			OnExceed: telemetry.BudgetAction(b.OnExceed),
		})
	}
	return engine
}

func toolDefinitions(r *tools.Registry) []core.ToolDefinition {
	schemas := r.Definitions()
	defs := make([]core.ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, core.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return defs
}

func defaultBudget(cfg *config.Config) assembler.TokenBudget {
	tb := cfg.Agents.Defaults.TokenBudget
	capOf := func(n int) *int {
		if n <= 0 {
			return nil
		}
		return &n
	}
	return assembler.TokenBudget{Total: tb.Total, PerLayer: assembler.PerLayerBudget{
		LongTermMemory:      capOf(tb.Memory),
		WorkingMemory:       capOf(tb.Working),
		Knowledge:           capOf(tb.Knowledge),
		ToolSchemas:         capOf(tb.Tools),
		ConversationHistory: capOf(tb.History),
	}}
}
