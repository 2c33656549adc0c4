// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sipeed/picoclaw/pkg/agentcore/assembler"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
)

func newChatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive ReAct session against the configured provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer rt.memory.Close()

			if rt.cfg.Heartbeat.Enabled || len(rt.cfg.Routines) > 0 {
				rt.scheduler.Start()
				defer rt.scheduler.Stop()
			}

			interactiveMode(rt)
			return nil
		},
	}
}

// session bundles the per-conversation state a turn needs, so runTurn's
// signature doesn't grow with every new field.
type session struct {
	rt           *runtime
	conversation *core.Conversation
	identity     core.Identity
	toolDefs     []core.ToolDefinition
	budget       assembler.TokenBudget
	model        string
}

func interactiveMode(rt *runtime) {
	s := &session{
		rt:           rt,
		conversation: core.NewConversation(uuid.NewString()),
		identity:     core.Identity{Name: "agentcored", SystemPrompt: "You are a careful, concise assistant with access to a small set of tools."},
		toolDefs:     toolDefinitions(rt.tools),
		budget:       defaultBudget(rt.cfg),
		model:        rt.cfg.LLM.Model,
	}

	prompt := fmt.Sprintf("%s You: ", logo)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".agentcored_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(s)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !s.runTurn(line) {
			return
		}
	}
}

func simpleInteractiveMode(s *session) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !s.runTurn(line) {
			return
		}
	}
}

func (s *session) runTurn(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Println("Goodbye!")
		return false
	}

	result, err := s.rt.loop.Run(context.Background(), react.RunInput{
		Conversation:    s.conversation,
		Identity:        s.identity,
		UserMessage:     input,
		ToolDefinitions: s.toolDefs,
		Model:           s.model,
		Budget:          s.budget,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return true
	}
	fmt.Printf("\n%s %s\n\n", logo, result.Answer)
	return true
}
