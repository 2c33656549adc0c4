// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package config is the language-neutral settings surface the agent
// control plane reads at startup: provider defaults, token budgets,
// contracts, spending budgets, and cron routines (spec.md §6). It follows
// the teacher's own config style — caarlos0/env struct tags for
// environment overrides layered on top of a JSON file, label tags kept for
// the teacher's config-introspection UI even though this module has none.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers, so a
// tag list in the config file can be written as either strings or bare
// numbers without failing to parse.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// LLMConfig is the default provider the ReAct loop calls when a turn
// doesn't pin one explicitly.
type LLMConfig struct {
	Provider    string  `json:"provider" label:"Provider" env:"PICOCLAW_LLM_PROVIDER"`
	Model       string  `json:"model" label:"Model" env:"PICOCLAW_LLM_MODEL"`
	APIKey      string  `json:"api_key" label:"API Key" env:"PICOCLAW_LLM_API_KEY"`
	BaseURL     string  `json:"base_url" label:"Base URL" env:"PICOCLAW_LLM_BASE_URL"`
	Temperature float64 `json:"temperature" label:"Temperature" env:"PICOCLAW_LLM_TEMPERATURE"`
	MaxTokens   int     `json:"max_tokens" label:"Max Tokens" env:"PICOCLAW_LLM_MAX_TOKENS"`
	// Fallbacks is an ordered list of "provider/model" refs tried, in
	// order, after Provider/Model — consumed by providers.ResolveCandidates.
	Fallbacks []string `json:"fallbacks,omitempty" label:"Fallback Models"`
}

// TokenBudgetConfig mirrors assembler.TokenBudget: a total plus optional
// per-layer caps. A zero cap means "use all remaining": it is passed on as
// a nil *int, which assembler.go treats as unset.
type TokenBudgetConfig struct {
	Total     int `json:"total" label:"Total Budget" env:"PICOCLAW_BUDGET_TOTAL"`
	Memory    int `json:"memory,omitempty" label:"Memory Layer Cap"`
	Working   int `json:"working,omitempty" label:"Working Memory Cap"`
	Knowledge int `json:"knowledge,omitempty" label:"Knowledge Layer Cap"`
	Tools     int `json:"tools,omitempty" label:"Tool Schema Cap"`
	History   int `json:"history,omitempty" label:"History Cap"`
}

// AgentDefaults are the agent-wide workspace, data directory and per-turn
// settings. cmd/agentcored does not pass MaxToolIterations to the ReAct
// loop; its turns run with workingmemory.DefaultMaxIterations.
type AgentDefaults struct {
	Workspace         string            `json:"workspace" label:"Workspace" env:"PICOCLAW_AGENTS_DEFAULTS_WORKSPACE"`
	DataDir           string            `json:"data_dir" label:"Data Directory" env:"PICOCLAW_AGENTS_DEFAULTS_DATA_DIR"`
	MaxToolIterations int               `json:"max_tool_iterations" label:"Max Tool Iterations" env:"PICOCLAW_AGENTS_DEFAULTS_MAX_TOOL_ITERATIONS"`
	TokenBudget       TokenBudgetConfig `json:"token_budget" label:"Token Budget"`
}

// AgentsConfig groups the agent-wide defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults" label:"Defaults"`
}

// MemoryConfig holds the settings for the optional MemoryBackend the ReAct
// loop recalls from and auto-saves summaries to (spec.md §6). The loop does
// not read these fields: it recalls up to 5 entries and auto-saves a summary
// whenever a MemoryBackend is attached.
type MemoryConfig struct {
	AutoSave    bool `json:"auto_save" label:"Auto-Save Summaries" env:"PICOCLAW_MEMORY_AUTO_SAVE"`
	RecallLimit int  `json:"recall_limit" label:"Recall Limit" env:"PICOCLAW_MEMORY_RECALL_LIMIT"`
}

// HeartbeatConfig drives the cron scheduler's idle self-check tick
// (SPEC_FULL.md "Supplemented Features" §1).
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled" label:"Enabled" env:"PICOCLAW_HEARTBEAT_ENABLED"`
	IntervalMinutes int  `json:"interval_minutes" label:"Interval Minutes" env:"PICOCLAW_HEARTBEAT_INTERVAL_MINUTES"`
}

// BudgetSpec is one configured telemetry.Budget, in the file-friendly shape
// (scope/action as strings) that gets translated into telemetry.Budget at
// load time.
type BudgetSpec struct {
	Scope    string  `json:"scope"` // per_request | per_session | daily | monthly | total
	MaxUSD   float64 `json:"max_usd"`
	OnExceed string  `json:"on_exceed"` // deny | warn
}

// PricingOverride is one model's USD-per-million-token price, overriding
// (or adding to) the Telemetry Engine's built-in pricing table.
type PricingOverride struct {
	Model            string  `json:"model"`
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// TelemetryConfig configures the Telemetry Engine's pricing table and
// spending budgets.
type TelemetryConfig struct {
	PricingOverrides []PricingOverride `json:"pricing_overrides,omitempty" label:"Pricing Overrides"`
	Budgets          []BudgetSpec      `json:"budgets,omitempty" label:"Budgets"`
}

// ContractSpec is one configured contracts.Contract in its file-friendly
// shape (trigger as the "tool:<name>" | "tool:*" | "response" string form
// contracts.ParseTrigger understands).
type ContractSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Trigger     string `json:"trigger"`
	Condition   string `json:"condition"`
	Action      string `json:"action"` // allow | confirm | warn | deny
	Message     string `json:"message,omitempty"`
	Enabled     bool   `json:"enabled"`
	Priority    int32  `json:"priority"`
}

// RoutineActionKind selects what a RoutineSpec does when its schedule
// fires.
type RoutineActionKind string

const (
	RoutineAgentTask   RoutineActionKind = "agent_task"
	RoutineRunTool     RoutineActionKind = "run_tool"
	RoutineSendMessage RoutineActionKind = "send_message"
)

// RoutineSpec is one configured cron.CronTask in its file-friendly shape.
type RoutineSpec struct {
	Name          string            `json:"name"`
	Schedule      string            `json:"schedule"` // 5-field cron expression
	Action        RoutineActionKind `json:"action"`
	Instruction   string            `json:"instruction,omitempty"`
	TargetChannel string            `json:"target_channel,omitempty"`
	Enabled       bool              `json:"enabled"`
}

// Config is the full settings surface loaded from a JSON file (optionally
// a YAML routines file for Contracts/Budgets/Routines, see
// LoadRoutinesFile) and overlaid with environment variables.
type Config struct {
	LLM       LLMConfig       `json:"llm" label:"LLM"`
	Agents    AgentsConfig    `json:"agents" label:"Agent Defaults"`
	Memory    MemoryConfig    `json:"memory" label:"Memory"`
	Heartbeat HeartbeatConfig `json:"heartbeat" label:"Heartbeat"`
	Telemetry TelemetryConfig `json:"telemetry" label:"Telemetry"`
	Contracts []ContractSpec  `json:"contracts,omitempty" label:"Contracts"`
	Routines  []RoutineSpec   `json:"routines,omitempty" label:"Routines"`

	mu sync.RWMutex
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         "~/.picoclaw/workspace",
				DataDir:           "~/.picoclaw/data",
				MaxToolIterations: 20,
				TokenBudget: TokenBudgetConfig{
					Total: 32000,
				},
			},
		},
		Memory: MemoryConfig{
			AutoSave:    true,
			RecallLimit: 5,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalMinutes: 30,
		},
	}
}

// LoadConfig reads path as JSON over DefaultConfig, then applies any
// environment overrides. A missing file is not an error — DefaultConfig is
// returned as-is (still subject to env overrides).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if envErr := env.Parse(cfg); envErr != nil {
				return nil, envErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg to path as indented JSON.
func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return saveConfigLocked(path, cfg)
}

// SaveConfigLocked writes cfg to path without acquiring cfg's mutex. Use
// this when the caller manages synchronization externally.
func SaveConfigLocked(path string, cfg *Config) error {
	return saveConfigLocked(path, cfg)
}

func saveConfigLocked(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

// CopyFrom copies all configuration fields from src into c. The caller
// must hold c's write lock; src's mutex is not acquired.
func (c *Config) CopyFrom(src *Config) {
	c.LLM = src.LLM
	c.Agents = src.Agents
	c.Memory = src.Memory
	c.Heartbeat = src.Heartbeat
	c.Telemetry = src.Telemetry
	c.Contracts = src.Contracts
	c.Routines = src.Routines
}

// WorkspacePath returns Agents.Defaults.Workspace with ~ expanded.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agents.Defaults.Workspace)
}

// DataPath returns Agents.Defaults.DataDir with ~ expanded.
func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agents.Defaults.DataDir)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
