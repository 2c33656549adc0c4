// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw/pkg/agentcore/contracts"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/agentcore/telemetry"
)

// scriptedProvider replays a fixed sequence of responses, one per call,
// mirroring pkg/agentcore/react's own test double.
type scriptedProvider struct {
	responses []react.ChatResponse
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req react.ChatRequest) (react.ChatResponse, error) {
	if p.calls >= len(p.responses) {
		return react.ChatResponse{}, fmt.Errorf("scriptedProvider: no more responses")
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

type noopTool struct{}

func (noopTool) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	return "ok", nil
}

func newCoordinator(provider *scriptedProvider) *Coordinator {
	loop := react.New(provider, noopTool{}, contracts.Empty(), telemetry.NewEngine(nil))
	return New(loop, core.Identity{Name: "pico", SystemPrompt: "You are helpful."})
}

func TestCoordinatorWithWorkers(t *testing.T) {
	provider := &scriptedProvider{responses: []react.ChatResponse{
		{Content: "researcher: find the population of France\nwriter: draft a one-paragraph summary"}, // decompose
		{Content: "France has about 68 million people."},                                              // researcher turn
		{Content: "France is a populous European country."},                                            // writer turn
		{Content: "France has roughly 68 million people and is a major European country."},             // aggregate
	}}
	c := newCoordinator(provider).
		AddWorker("researcher", "finds facts").
		AddWorker("writer", "writes prose")

	result, err := c.Run(context.Background(), RunInput{UserMessage: "Tell me about France"})
	require.NoError(t, err)
	require.Len(t, result.SubResults, 2)
	assert.Equal(t, "researcher", result.SubResults[0].WorkerName)
	assert.Equal(t, "writer", result.SubResults[1].WorkerName)
	assert.Contains(t, result.Answer, "68 million")
}

func TestCoordinatorWorkingMemory(t *testing.T) {
	provider := &scriptedProvider{responses: []react.ChatResponse{
		{Content: "alpha: do the thing"},
		{Content: "done"},
		{Content: "final answer"},
	}}
	c := newCoordinator(provider).AddWorker("alpha", "does the thing")

	result, err := c.Run(context.Background(), RunInput{UserMessage: "Do a thing"})
	require.NoError(t, err)
	require.NotNil(t, result.WorkingMemory)
	assert.NotNil(t, result.WorkingMemory.Plan)
	assert.NotEmpty(t, result.WorkingMemory.Trace)
}

func TestCoordinatorNoWorkersFallback(t *testing.T) {
	provider := &scriptedProvider{responses: []react.ChatResponse{
		{Content: "the whole task gets done here"}, // single worker turn
		{Content: "aggregated final answer"},
	}}
	c := newCoordinator(provider)

	result, err := c.Run(context.Background(), RunInput{UserMessage: "Just do it"})
	require.NoError(t, err)
	require.Len(t, result.SubResults, 1)
	assert.Equal(t, "default", result.SubResults[0].WorkerName)
	assert.Equal(t, "Just do it", result.SubResults[0].Task)
}

func TestCoordinatorTracksTotals(t *testing.T) {
	provider := &scriptedProvider{responses: []react.ChatResponse{
		{Content: "alpha: task one\nbeta: task two"},
		{Content: "alpha result"},
		{Content: "beta result"},
		{Content: "combined result"},
	}}
	c := newCoordinator(provider).
		AddWorker("alpha", "worker alpha").
		AddWorker("beta", "worker beta")

	result, err := c.Run(context.Background(), RunInput{UserMessage: "Do two things"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalIterations)
	assert.Equal(t, 0, result.TotalToolCallsMade)
}
