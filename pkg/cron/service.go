// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package cron is a small persistent job scheduler: jobs are "at" (fire
// once), "every" (fire on a fixed interval), or "cron" (5-field expression,
// validated with gronx at registration time — gronx accepts a richer
// grammar than this package's own tick loop understands, so it is used
// purely as an admission filter; evaluating a "cron" job's actual due time
// is delegated to pkg/agentcore/cron's spec-exact matcher).
package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/sipeed/picoclaw/pkg/logger"
	agentcron "github.com/sipeed/picoclaw/pkg/agentcore/cron"
)

// CronSchedule describes when a job is due. Kind selects which of the
// remaining fields is meaningful: "at" uses AtMS, "every" uses EveryMS,
// "cron" uses Expr.
type CronSchedule struct {
	Kind    string `json:"kind"`
	AtMS    *int64 `json:"at_ms,omitempty"`
	EveryMS *int64 `json:"every_ms,omitempty"`
	Expr    string `json:"expr,omitempty"`
}

// CronPayload is what runs when a job fires.
type CronPayload struct {
	Message string `json:"message,omitempty"`
	Command string `json:"command,omitempty"`
}

// CronJob is one persisted scheduled job.
type CronJob struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Schedule  CronSchedule `json:"schedule"`
	Payload   CronPayload  `json:"payload"`
	Enabled   bool         `json:"enabled"`
	CreatedBy string       `json:"created_by"`
	Channel   string       `json:"channel"`
	NextRunMS *int64       `json:"next_run_ms,omitempty"`
	CreatedAt int64        `json:"created_at"`
}

// JobHandler runs a job's payload and reports a result summary, or an
// error if it failed.
type JobHandler func(job *CronJob) (string, error)

// CronService persists a set of CronJob values to a JSON file and, once
// started, ticks a background loop firing due jobs through a JobHandler.
type CronService struct {
	storePath string
	handler   JobHandler

	mu      sync.Mutex
	jobs    map[string]*CronJob
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	Clock func() time.Time
}

// NewCronService creates a service backed by storePath. handler may be nil
// in tests that only exercise persistence/CRUD, never Start.
func NewCronService(storePath string, handler JobHandler) *CronService {
	cs := &CronService{
		storePath: storePath,
		handler:   handler,
		jobs:      make(map[string]*CronJob),
		Clock:     func() time.Time { return time.Now().UTC() },
	}
	cs.Load()
	return cs
}

func (cs *CronService) now() time.Time {
	if cs.Clock != nil {
		return cs.Clock()
	}
	return time.Now().UTC()
}

// AddJob validates the schedule, assigns an ID, persists, and returns the
// new job. A "cron" schedule whose expression gronx rejects never gets a
// job created for it.
func (cs *CronService) AddJob(name string, sched CronSchedule, message string, enabled bool, createdBy, channel string) (*CronJob, error) {
	if err := validateSchedule(sched); err != nil {
		return nil, err
	}

	job := &CronJob{
		ID:        uuid.NewString(),
		Name:      name,
		Schedule:  sched,
		Payload:   CronPayload{Message: message},
		Enabled:   enabled,
		CreatedBy: createdBy,
		Channel:   channel,
		CreatedAt: cs.now().UnixMilli(),
	}
	job.NextRunMS = cs.computeNextRun(&job.Schedule, job.CreatedAt)

	cs.mu.Lock()
	cs.jobs[job.ID] = job
	cs.mu.Unlock()

	if err := cs.save(); err != nil {
		return nil, err
	}
	return job, nil
}

func validateSchedule(sched CronSchedule) error {
	switch sched.Kind {
	case "at":
		if sched.AtMS == nil {
			return fmt.Errorf("cron: \"at\" schedule requires at_ms")
		}
	case "every":
		if sched.EveryMS == nil || *sched.EveryMS <= 0 {
			return fmt.Errorf("cron: \"every\" schedule requires a positive every_ms")
		}
	case "cron":
		if !gronx.IsValid(sched.Expr) {
			return fmt.Errorf("cron: invalid expression %q", sched.Expr)
		}
	default:
		return fmt.Errorf("cron: unknown schedule kind %q", sched.Kind)
	}
	return nil
}

// RemoveJob deletes a job by ID, reporting whether it existed.
func (cs *CronService) RemoveJob(id string) bool {
	cs.mu.Lock()
	_, ok := cs.jobs[id]
	delete(cs.jobs, id)
	cs.mu.Unlock()
	if ok {
		_ = cs.save()
	}
	return ok
}

// EnableJob toggles Enabled on a job and returns the updated job, or nil if
// the ID is unknown.
func (cs *CronService) EnableJob(id string, enabled bool) *CronJob {
	cs.mu.Lock()
	job, ok := cs.jobs[id]
	if ok {
		job.Enabled = enabled
	}
	cs.mu.Unlock()
	if !ok {
		return nil
	}
	_ = cs.save()
	return job
}

// UpdateJob overwrites an existing job by ID. Errors if the ID is unknown.
func (cs *CronService) UpdateJob(job *CronJob) error {
	cs.mu.Lock()
	_, ok := cs.jobs[job.ID]
	if ok {
		cs.jobs[job.ID] = job
	}
	cs.mu.Unlock()
	if !ok {
		return fmt.Errorf("cron: job %q not found", job.ID)
	}
	return cs.save()
}

// ListJobs returns all jobs, or only enabled ones if includeDisabled is
// false.
func (cs *CronService) ListJobs(includeDisabled bool) []*CronJob {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]*CronJob, 0, len(cs.jobs))
	for _, j := range cs.jobs {
		if !includeDisabled && !j.Enabled {
			continue
		}
		out = append(out, j)
	}
	return out
}

// computeNextRun returns the next fire time in epoch milliseconds for a
// schedule, given the current time (also in epoch milliseconds). For "cron"
// schedules it returns the start of the next minute: runDueJobs then fires
// the job only in a minute the agentcore matcher accepts, so a cron job
// fires at most once per minute.
func (cs *CronService) computeNextRun(sched *CronSchedule, nowMS int64) *int64 {
	switch sched.Kind {
	case "at":
		if sched.AtMS == nil {
			return nil
		}
		v := *sched.AtMS
		return &v
	case "every":
		if sched.EveryMS == nil {
			return nil
		}
		v := nowMS + *sched.EveryMS
		return &v
	case "cron":
		v := nowMS - nowMS%60000 + 60000
		return &v
	default:
		return nil
	}
}

// Status summarizes the service for diagnostics/CLI display.
func (cs *CronService) Status() map[string]interface{} {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return map[string]interface{}{
		"jobs":    len(cs.jobs),
		"enabled": cs.running,
	}
}

type storeFile struct {
	Jobs []*CronJob `json:"jobs"`
}

// Load reads the job store from disk, replacing in-memory state. Missing
// file is not an error — a fresh service simply starts empty.
func (cs *CronService) Load() error {
	data, err := os.ReadFile(cs.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.jobs = make(map[string]*CronJob, len(sf.Jobs))
	for _, j := range sf.Jobs {
		cs.jobs[j.ID] = j
	}
	return nil
}

// save writes the job store to disk with owner-only permissions — job
// payloads can carry arbitrary shell commands, so the file is treated like
// a secret.
func (cs *CronService) save() error {
	cs.mu.Lock()
	sf := storeFile{Jobs: make([]*CronJob, 0, len(cs.jobs))}
	for _, j := range cs.jobs {
		sf.Jobs = append(sf.Jobs, j)
	}
	cs.mu.Unlock()

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cs.storePath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(cs.storePath, data, 0o600)
}

// Start begins a background loop that checks for due jobs once a second.
// Safe to call again after Stop.
func (cs *CronService) Start() error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return nil
	}
	cs.running = true
	cs.stop = make(chan struct{})
	cs.mu.Unlock()

	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.runDueJobs()
			case <-cs.stop:
				return
			}
		}
	}()
	return nil
}

// Stop ends the background loop started by Start and waits for it to exit.
func (cs *CronService) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	stop := cs.stop
	cs.mu.Unlock()

	close(stop)
	cs.wg.Wait()
}

func (cs *CronService) runDueJobs() {
	now := cs.now().UnixMilli()

	cs.mu.Lock()
	var due []*CronJob
	for _, j := range cs.jobs {
		if !j.Enabled || j.NextRunMS == nil || *j.NextRunMS > now {
			continue
		}
		if j.Schedule.Kind == "cron" {
			expr, err := agentcron.Parse(j.Schedule.Expr)
			if err != nil || !expr.Matches(cs.now()) {
				continue
			}
		}
		due = append(due, j)
	}
	cs.mu.Unlock()

	for _, j := range due {
		cs.fire(j)
	}
}

func (cs *CronService) fire(job *CronJob) {
	if cs.handler != nil {
		if _, err := cs.handler(job); err != nil {
			logger.WarnCF("cron", "job handler failed", map[string]interface{}{
				"job_id": job.ID, "error": err.Error(),
			})
		}
	}

	cs.mu.Lock()
	next := cs.computeNextRun(&job.Schedule, cs.now().UnixMilli())
	job.NextRunMS = next
	if job.Schedule.Kind == "at" {
		job.Enabled = false // one-shot jobs don't re-arm
	}
	cs.mu.Unlock()
	_ = cs.save()
}
