// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/cron"
)

// newCronCmd manages durably persisted jobs (pkg/cron) independent of the
// in-process heartbeat/routines scheduler (pkg/agentcore/cron.Scheduler)
// buildRuntime wires directly into the loop — this is the CLI surface for
// jobs an operator adds ad hoc and expects to survive a restart.
func newCronCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage durably persisted scheduled jobs.",
	}
	cmd.AddCommand(
		newCronListCmd(configPath),
		newCronAddCmd(configPath),
		newCronRemoveCmd(configPath),
		newCronRunCmd(configPath),
	)
	return cmd
}

func openCronService(configPath *string, rt *runtime) *cron.CronService {
	storePath := filepath.Join(rt.cfg.DataPath(), "cron_jobs.json")
	handler := func(job *cron.CronJob) (string, error) {
		conversation := core.NewConversation(job.ID)
		result, err := rt.loop.Run(context.Background(), react.RunInput{
			Conversation:    conversation,
			Identity:        core.Identity{Name: "agentcored", SystemPrompt: "You are a background routine runner."},
			UserMessage:     job.Payload.Message,
			ToolDefinitions: toolDefinitions(rt.tools),
			Model:           rt.cfg.LLM.Model,
			Budget:          defaultBudget(rt.cfg),
		})
		if err != nil {
			return "", err
		}
		return result.Answer, nil
	}
	return cron.NewCronService(storePath, handler)
}

func newCronListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer rt.memory.Close()
			svc := openCronService(configPath, rt)
			if err := svc.Load(); err != nil {
				return err
			}
			for _, j := range svc.ListJobs(true) {
				fmt.Printf("%s\t%s\tenabled=%v\n", j.ID, j.Name, j.Enabled)
			}
			return nil
		},
	}
}

func newCronAddCmd(configPath *string) *cobra.Command {
	var name, message, cronExpr string
	var everySeconds int64

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a new scheduled job",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer rt.memory.Close()
			svc := openCronService(configPath, rt)
			if err := svc.Load(); err != nil {
				return err
			}

			sched := cron.CronSchedule{}
			switch {
			case cronExpr != "":
				sched.Kind = "cron"
				sched.Expr = cronExpr
			case everySeconds > 0:
				sched.Kind = "every"
				ms := everySeconds * 1000
				sched.EveryMS = &ms
			default:
				return fmt.Errorf("agentcored: must set either --cron or --every")
			}

			job, err := svc.AddJob(name, sched, message, true, "cli", "")
			if err != nil {
				return err
			}
			fmt.Printf("created job %s\n", job.ID)
			return nil
		},
	}
	c.Flags().StringVarP(&name, "name", "n", "", "job name")
	c.MarkFlagRequired("name")
	c.Flags().StringVarP(&message, "message", "m", "", "instruction to run the agent with")
	c.MarkFlagRequired("message")
	c.Flags().Int64VarP(&everySeconds, "every", "e", 0, "run every N seconds")
	c.Flags().StringVarP(&cronExpr, "cron", "c", "", "5-field cron expression")
	return c
}

func newCronRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job_id>",
		Short: "Remove a job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer rt.memory.Close()
			svc := openCronService(configPath, rt)
			if err := svc.Load(); err != nil {
				return err
			}
			if !svc.RemoveJob(args[0]) {
				return fmt.Errorf("agentcored: job %q not found", args[0])
			}
			fmt.Println("removed")
			return nil
		},
	}
}

func newCronRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the cron daemon in the foreground, firing due jobs as they come up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer rt.memory.Close()
			svc := openCronService(configPath, rt)
			if err := svc.Load(); err != nil {
				return err
			}
			if err := svc.Start(); err != nil {
				return err
			}
			defer svc.Stop()

			fmt.Println("cron daemon running, press Ctrl+C to stop")
			select {}
		},
	}
}
