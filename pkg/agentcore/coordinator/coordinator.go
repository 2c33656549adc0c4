// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package coordinator implements multi-agent task delegation over the
// ReAct loop: a coordinator decomposes a complex request into sub-tasks,
// runs each through a named specialist worker (a plain react.Loop turn
// with a worker-specific Identity), and aggregates the workers' answers
// into one final response.
package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw/pkg/agentcore/assembler"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/agentcore/workingmemory"
	"github.com/sipeed/picoclaw/pkg/logger"
)

// defaultWorkerMaxIterations caps each worker's own turn independently of
// the coordinator's own iteration budget.
const defaultWorkerMaxIterations = 5

// WorkerConfig names one specialist a coordinator can delegate to.
type WorkerConfig struct {
	Name        string
	Description string
	// Identity overrides the coordinator's own Identity for this worker's
	// turns. Nil means "coordinator identity, renamed to this worker and
	// given a generic specialist personality".
	Identity *core.Identity
}

// SubTaskResult is one worker's contribution to a coordinated run.
type SubTaskResult struct {
	WorkerName    string
	Task          string
	Answer        string
	Trace         []workingmemory.TraceEntry
	Iterations    int
	ToolCallsMade int
}

// CoordinationResult is the outcome of one coordinated multi-agent turn.
type CoordinationResult struct {
	Answer             string
	SubResults         []SubTaskResult
	WorkingMemory      *workingmemory.WorkingMemory
	TotalIterations    int
	TotalToolCallsMade int
}

// RunInput is everything one coordinated turn needs, mirroring
// react.RunInput for the fields that mean the same thing here.
type RunInput struct {
	UserMessage     string
	ToolDefinitions []core.ToolDefinition
	Model           string
	Budget          assembler.TokenBudget
}

// Coordinator decomposes a task, delegates sub-tasks to workers, and
// aggregates their answers. It reuses Worker — the same react.Loop that
// would otherwise handle a plain turn — to actually run each worker and
// to ask the raw decompose/aggregate completions, so every coordinated
// call still goes through the configured Provider/Contracts/Telemetry.
type Coordinator struct {
	Worker   *react.Loop
	Identity core.Identity
	Workers  []WorkerConfig
}

// New builds a Coordinator with no workers configured yet; AddWorker wires
// them in. worker is the react.Loop used both for the coordinator's own
// decompose/aggregate completions and for running each delegated sub-task.
func New(worker *react.Loop, identity core.Identity) *Coordinator {
	return &Coordinator{Worker: worker, Identity: identity}
}

// AddWorker registers a specialist by name/description, falling back to a
// generic specialist Identity derived from the coordinator's own.
func (c *Coordinator) AddWorker(name, description string) *Coordinator {
	c.Workers = append(c.Workers, WorkerConfig{Name: name, Description: description})
	return c
}

// AddWorkerWithIdentity registers a specialist with a fully custom Identity.
func (c *Coordinator) AddWorkerWithIdentity(name, description string, identity core.Identity) *Coordinator {
	c.Workers = append(c.Workers, WorkerConfig{Name: name, Description: description, Identity: &identity})
	return c
}

// Run decomposes input.UserMessage into sub-tasks (one per matched worker,
// or the whole task verbatim if no workers are configured), executes each
// sub-task through Worker.Run, and aggregates the answers into a single
// final response.
func (c *Coordinator) Run(ctx context.Context, input RunInput) (*CoordinationResult, error) {
	wm := workingmemory.New(defaultWorkerMaxIterations * 2)

	logger.InfoCF("coordinator", "starting task decomposition", map[string]any{"workers": len(c.Workers)})

	subTasks, err := c.decomposeTask(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("coordinator: decompose: %w", err)
	}

	goals := make([]string, len(subTasks))
	for i, st := range subTasks {
		goals[i] = st.task
	}
	wm.SetPlan(input.UserMessage, goals)
	wm.AddThought(fmt.Sprintf("decomposed into %d sub-tasks for %d workers", len(subTasks), len(c.Workers)))

	var subResults []SubTaskResult
	totalIterations := 0
	totalToolCalls := 0

	for _, st := range subTasks {
		wm.AddAction(fmt.Sprintf("delegating to %s: %s", st.worker, st.task))

		workerIdentity := c.resolveWorkerIdentity(st.worker)
		conv := core.NewConversation(uuid.NewString())

		result, err := c.Worker.Run(ctx, react.RunInput{
			Conversation:    conv,
			Identity:        workerIdentity,
			UserMessage:     st.task,
			ToolDefinitions: input.ToolDefinitions,
			Model:           input.Model,
			Budget:          input.Budget,
			MaxIterations:   defaultWorkerMaxIterations,
		})
		if err != nil {
			wm.FailPlanStep(err.Error())
			return nil, fmt.Errorf("coordinator: worker %q: %w", st.worker, err)
		}

		wm.AddObservation(fmt.Sprintf("%s completed: %s", st.worker, truncate(result.Answer, 100)))
		wm.AdvancePlan(result.Answer)

		totalIterations += result.Iterations
		totalToolCalls += result.ToolCallsMade

		subResults = append(subResults, SubTaskResult{
			WorkerName:    st.worker,
			Task:          st.task,
			Answer:        result.Answer,
			Trace:         result.Trace,
			Iterations:    result.Iterations,
			ToolCallsMade: result.ToolCallsMade,
		})
	}

	wm.AddThought("aggregating results from all workers")
	answer, err := c.aggregateResults(ctx, input.UserMessage, subResults)
	if err != nil {
		return nil, fmt.Errorf("coordinator: aggregate: %w", err)
	}

	wm.AddReflection(fmt.Sprintf("coordination complete: %d sub-tasks, %d total iterations, %d tool calls",
		len(subResults), totalIterations, totalToolCalls))

	logger.InfoCF("coordinator", "coordination complete", map[string]any{
		"sub_tasks": len(subResults), "total_iterations": totalIterations, "total_tool_calls": totalToolCalls,
	})

	return &CoordinationResult{
		Answer:             answer,
		SubResults:         subResults,
		WorkingMemory:      wm,
		TotalIterations:    totalIterations,
		TotalToolCallsMade: totalToolCalls,
	}, nil
}

// subTask is one worker assignment produced by decomposeTask.
type subTask struct {
	worker string
	task   string
}

// resolveWorkerIdentity returns the configured worker's Identity override,
// or a generic specialist Identity derived from the coordinator's own.
func (c *Coordinator) resolveWorkerIdentity(workerName string) core.Identity {
	for _, w := range c.Workers {
		if strings.EqualFold(w.Name, workerName) && w.Identity != nil {
			return *w.Identity
		}
	}
	id := c.Identity
	id.Name = workerName
	id.Personality = "Specialist agent: " + workerName
	return id
}

// decomposeTask asks the LLM to split the task across configured workers.
// With no workers configured, or if the response can't be parsed into
// worker-assignable lines, the whole task is handed to a single "default"
// (or, if parsing failed, the first configured) worker.
func (c *Coordinator) decomposeTask(ctx context.Context, input RunInput) ([]subTask, error) {
	if len(c.Workers) == 0 {
		return []subTask{{worker: "default", task: input.UserMessage}}, nil
	}

	var workerList strings.Builder
	for _, w := range c.Workers {
		fmt.Fprintf(&workerList, "- %s: %s\n", w.Name, w.Description)
	}

	prompt := fmt.Sprintf(
		"You are a task coordinator. Decompose this task into sub-tasks for the available workers.\n\n"+
			"Available workers:\n%s\n"+
			"Task: %s\n\n"+
			"Respond with one line per sub-task in the format: WORKER_NAME: task description\n"+
			"Assign at least one task to each worker. Be concise.",
		workerList.String(), input.UserMessage,
	)

	resp, err := c.Worker.Provider.Chat(ctx, react.ChatRequest{
		Model:         input.Model,
		SystemMessage: prompt,
	})
	if err != nil {
		return nil, err
	}

	var subTasks []subTask
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, task, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		task = strings.TrimSpace(task)
		if c.hasWorker(name) {
			subTasks = append(subTasks, subTask{worker: name, task: task})
		}
	}

	if len(subTasks) == 0 {
		logger.WarnCF("coordinator", "decomposition unparseable, falling back to first worker", nil)
		return []subTask{{worker: strings.ToLower(c.Workers[0].Name), task: input.UserMessage}}, nil
	}
	return subTasks, nil
}

func (c *Coordinator) hasWorker(name string) bool {
	for _, w := range c.Workers {
		if strings.ToLower(w.Name) == name {
			return true
		}
	}
	return false
}

// aggregateResults asks the LLM to synthesize one answer from every
// sub-task's result.
func (c *Coordinator) aggregateResults(ctx context.Context, originalQuestion string, subResults []SubTaskResult) (string, error) {
	var results strings.Builder
	for _, sr := range subResults {
		fmt.Fprintf(&results, "## %s (%s)\n%s\n\n", sr.WorkerName, sr.Task, sr.Answer)
	}

	prompt := fmt.Sprintf(
		"You are synthesizing results from multiple specialist agents.\n\n"+
			"Original question: %s\n\n"+
			"Worker results:\n%s"+
			"Provide a unified, coherent answer that combines all worker results.",
		originalQuestion, results.String(),
	)

	resp, err := c.Worker.Provider.Chat(ctx, react.ChatRequest{
		Model:         "",
		SystemMessage: prompt,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
