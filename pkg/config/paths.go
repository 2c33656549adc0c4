package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvPicoClawConfig = "PICOCLAW_CONFIG"
	EnvPicoClawHome   = "PICOCLAW_HOME"
)

type RuntimePaths struct {
	HomeDir         string
	ConfigPath      string
	AuthPath        string
	GlobalSkillsDir string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvPicoClawConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvPicoClawHome)))
	if homeDir == "" {
		homeDir = defaultPicoClawHome()
	}

	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func defaultPicoClawHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".picoclaw"
	}
	return filepath.Join(home, ".picoclaw")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:         homeDir,
		ConfigPath:      configPath,
		AuthPath:        filepath.Join(homeDir, "auth.json"),
		GlobalSkillsDir: filepath.Join(homeDir, "skills"),
	}
}

// configFileCandidates are tried in order under <home>/.picoclaw/ when no
// config file has been picked yet; config.json always wins over any of the
// alternate extensions if both are present.
var configFileCandidates = []string{"config.json", "config.yaml", "config.yml"}

// ResolveConfigPath finds the config file under userHome/.picoclaw, given an
// explicit home directory (as opposed to ResolveRuntimePaths, which reads
// the environment). If no config file exists yet, it returns the default
// config.json path so callers can create one there.
func ResolveConfigPath(userHome string) string {
	dir := filepath.Join(userHome, ".picoclaw")
	for _, name := range configFileCandidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dir, "config.json")
}
