// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package cron

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw/pkg/logger"
)

// TaskAction is what a CronTask does when it fires. Only AgentTask exists
// today, but the field is its own type so the runtime's triggering logic
// doesn't need to know the shape of every future action kind.
type TaskAction struct {
	Prompt string
}

// CronTask is one registered schedule.
type CronTask struct {
	ID            string
	Expr          string
	TargetChannel string
	Action        TaskAction
	Enabled       bool

	compiled *CronExpr
	lastRun  time.Time // zero until the first fire
}

// TriggeredTask is what the scheduler sends downstream when a CronTask
// fires. The ReAct loop consumes these identically to a user turn.
type TriggeredTask struct {
	TaskID        string
	Instruction   string
	TargetChannel string
	Action        TaskAction
	FiredAt       time.Time
}

// Heartbeat configures the scheduler's idle self-check tick: once per
// IntervalMinutes, a synthetic TriggeredTask with Action.Prompt
// "__heartbeat__" is emitted regardless of any registered CronTask, letting
// a long-lived agent run periodic self-checks even with no schedules
// configured.
type Heartbeat struct {
	Enabled         bool
	IntervalMinutes int
}

const defaultQueueCapacity = 64

// Scheduler ticks once a minute, evaluates every enabled CronTask against
// the current time, and pushes a TriggeredTask onto a bounded channel for
// each one that fires. It is the runtime counterpart to the CronExpr
// parser/matcher in cron.go.
type Scheduler struct {
	mu        sync.Mutex
	tasks     map[string]*CronTask
	heartbeat Heartbeat
	lastBeat  time.Time

	out   chan TriggeredTask
	stop  chan struct{}
	wg    sync.WaitGroup
	Clock func() time.Time
}

// NewScheduler creates a scheduler with an empty task set and no heartbeat.
// Use RegisterTask and SetHeartbeat to configure it before Start.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*CronTask),
		out:   make(chan TriggeredTask, defaultQueueCapacity),
		stop:  make(chan struct{}),
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

// Out returns the channel TriggeredTask values are delivered on.
func (s *Scheduler) Out() <-chan TriggeredTask {
	return s.out
}

// SetHeartbeat configures (or disables, with Enabled: false) the idle
// heartbeat tick.
func (s *Scheduler) SetHeartbeat(hb Heartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = hb
}

// RegisterTask parses task.Expr and adds it to the schedule. Parse errors
// reject registration — the task is never added, so a malformed schedule
// can never silently fail to fire.
func (s *Scheduler) RegisterTask(task CronTask) error {
	compiled, err := Parse(task.Expr)
	if err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.compiled = compiled

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = &task
	return nil
}

// RemoveTask drops a task from the schedule. No-op if the ID is unknown.
func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Tick evaluates every enabled task against now and the heartbeat, sending
// a TriggeredTask for each firing. Exported directly so tests can drive the
// scheduler without waiting on a real 60-second timer.
func (s *Scheduler) Tick(now time.Time) {
	now = now.UTC()

	s.mu.Lock()
	var fired []TriggeredTask
	for _, task := range s.tasks {
		if !task.Enabled {
			continue
		}
		if !task.compiled.Matches(now) {
			continue
		}
		if sameMinute(task.lastRun, now) {
			continue
		}
		task.lastRun = now
		fired = append(fired, TriggeredTask{
			TaskID:        task.ID,
			Instruction:   task.Action.Prompt,
			TargetChannel: task.TargetChannel,
			Action:        task.Action,
			FiredAt:       now,
		})
	}

	var beat *TriggeredTask
	if s.heartbeat.Enabled && s.heartbeat.IntervalMinutes > 0 {
		if s.lastBeat.IsZero() || now.Sub(s.lastBeat) >= time.Duration(s.heartbeat.IntervalMinutes)*time.Minute {
			s.lastBeat = now
			beat = &TriggeredTask{
				TaskID:      "heartbeat",
				Instruction: "__heartbeat__",
				Action:      TaskAction{Prompt: "__heartbeat__"},
				FiredAt:     now,
			}
		}
	}
	s.mu.Unlock()

	for _, t := range fired {
		s.deliver(t)
	}
	if beat != nil {
		logger.DebugCF("cron", "heartbeat tick", map[string]interface{}{"fired_at": beat.FiredAt})
		s.deliver(*beat)
	}
}

// deliver sends onto the bounded output channel without blocking forever —
// a full queue drops the task and logs rather than stalling the ticker.
func (s *Scheduler) deliver(t TriggeredTask) {
	select {
	case s.out <- t:
	default:
		logger.WarnCF("cron", "triggered task dropped, queue full", map[string]interface{}{
			"task_id": t.TaskID,
		})
	}
}

func sameMinute(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}

// Start begins a background goroutine that calls Tick once per wall-clock
// minute, aligned to the minute boundary. Stop ends it.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			now := s.now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
				s.Tick(s.now())
			case <-s.stop:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop ends the background ticker started by Start and waits for it to
// exit. Safe to call once; the output channel is left open so any
// already-queued TriggeredTask values can still be drained.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}
