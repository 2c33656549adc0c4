// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picoclaw/pkg/config"
	"github.com/sipeed/picoclaw/pkg/logger"
	"github.com/sipeed/picoclaw/pkg/tracing"
)

var (
	version   = "dev"
	gitCommit string
)

const logo = "🦞"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, otelEndpoint string

	root := &cobra.Command{
		Use:   "agentcored",
		Short: "Agent control plane daemon: ReAct loop, contracts, telemetry, cron.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("PICOCLAW_DEBUG") != "" {
				logger.SetLevel(logger.DEBUG)
			}
			if otelEndpoint != "" {
				if _, err := tracing.Init("agentcored", otelEndpoint); err != nil {
					return fmt.Errorf("agentcored: init tracing: %w", err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (defaults to ~/.picoclaw/config.json)")
	root.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP/HTTP collector address; enables span mirroring from the telemetry engine when set")

	root.AddCommand(newChatCmd(&configPath))
	root.AddCommand(newCronCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s agentcored %s (%s)\n", logo, version, gitCommit)
		},
	}
}

func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	paths := config.ResolveRuntimePaths()
	return paths.ConfigPath
}
