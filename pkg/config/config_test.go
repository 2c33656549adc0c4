package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_HeartbeatEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, 30, cfg.Heartbeat.IntervalMinutes)
}

func TestDefaultConfig_WorkspacePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.WorkspacePath(), ".picoclaw/workspace")
}

func TestDefaultConfig_TokenBudget(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 32000, cfg.Agents.Defaults.TokenBudget.Total)
}

func TestDefaultConfig_Memory(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Memory.AutoSave)
	assert.Equal(t, 5, cfg.Memory.RecallLimit)
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Agents.Defaults.MaxToolIterations, cfg.Agents.Defaults.MaxToolIterations)
}

func TestSaveAndLoadConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-opus"
	cfg.Contracts = []ContractSpec{{
		Name: "no-rm-rf", Trigger: "tool:shell", Condition: `args.command CONTAINS "rm -rf"`,
		Action: "deny", Enabled: true, Priority: 100,
	}}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.LLM.Provider)
	assert.Equal(t, "claude-opus", loaded.LLM.Model)
	require.Len(t, loaded.Contracts, 1)
	assert.Equal(t, "no-rm-rf", loaded.Contracts[0].Name)
}

func TestLoadRoutinesFile_MergesIntoConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routines.yaml")
	yamlContent := `
routines:
  - name: morning-digest
    schedule: "30 9 * * 1-5"
    action: agent_task
    instruction: "summarize overnight alerts"
    enabled: true
budgets:
  - scope: daily
    max_usd: 5
    on_exceed: deny
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, LoadRoutinesFile(path, cfg))

	require.Len(t, cfg.Routines, 1)
	assert.Equal(t, "morning-digest", cfg.Routines[0].Name)
	require.Len(t, cfg.Telemetry.Budgets, 1)
	assert.Equal(t, "daily", cfg.Telemetry.Budgets[0].Scope)
}

func TestLoadRoutinesFile_MissingFileIsNotError(t *testing.T) {
	cfg := DefaultConfig()
	err := LoadRoutinesFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg)
	assert.NoError(t, err)
}
