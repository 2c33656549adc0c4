package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTaskRejectsBadExpression(t *testing.T) {
	s := NewScheduler()
	err := s.RegisterTask(CronTask{Expr: "not a cron expr", Enabled: true})
	require.Error(t, err)
}

func TestTickFiresOnMatchingMinute(t *testing.T) {
	s := NewScheduler()
	err := s.RegisterTask(CronTask{
		ID: "daily-standup", Expr: "30 9 * * 1-5", Enabled: true,
		TargetChannel: "slack", Action: TaskAction{Prompt: "summarize overnight alerts"},
	})
	require.NoError(t, err)

	monday930 := time.Date(2026, 2, 23, 9, 30, 0, 0, time.UTC)
	s.Tick(monday930)

	select {
	case triggered := <-s.Out():
		assert.Equal(t, "daily-standup", triggered.TaskID)
		assert.Equal(t, "summarize overnight alerts", triggered.Instruction)
		assert.Equal(t, "slack", triggered.TargetChannel)
	default:
		t.Fatal("expected a triggered task")
	}
}

func TestTickFiresAtMostOncePerMinute(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.RegisterTask(CronTask{
		ID: "t1", Expr: "* * * * *", Enabled: true, Action: TaskAction{Prompt: "tick"},
	}))

	now := time.Date(2026, 2, 23, 9, 30, 0, 0, time.UTC)
	s.Tick(now)
	s.Tick(now) // same wall-clock minute: should not fire again

	count := 0
	for {
		select {
		case <-s.Out():
			count++
		default:
			assert.Equal(t, 1, count)
			return
		}
	}
}

func TestTickSkipsDisabledTask(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.RegisterTask(CronTask{
		ID: "off", Expr: "* * * * *", Enabled: false, Action: TaskAction{Prompt: "never"},
	}))
	s.Tick(time.Date(2026, 2, 23, 9, 30, 0, 0, time.UTC))

	select {
	case <-s.Out():
		t.Fatal("disabled task should not fire")
	default:
	}
}

func TestHeartbeatFiresOncePerInterval(t *testing.T) {
	s := NewScheduler()
	s.SetHeartbeat(Heartbeat{Enabled: true, IntervalMinutes: 5})

	base := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	s.Tick(base) // first tick always beats

	var first bool
	select {
	case triggered := <-s.Out():
		first = true
		assert.Equal(t, "__heartbeat__", triggered.Instruction)
	default:
	}
	require.True(t, first)

	s.Tick(base.Add(2 * time.Minute))
	select {
	case <-s.Out():
		t.Fatal("heartbeat should not fire again before the interval elapses")
	default:
	}

	s.Tick(base.Add(5 * time.Minute))
	select {
	case <-s.Out():
	default:
		t.Fatal("heartbeat should fire again once the interval elapses")
	}
}

func TestHeartbeatDisabledByDefault(t *testing.T) {
	s := NewScheduler()
	s.Tick(time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC))
	select {
	case <-s.Out():
		t.Fatal("heartbeat should be off unless explicitly enabled")
	default:
	}
}

func TestRemoveTaskStopsFutureFires(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.RegisterTask(CronTask{
		ID: "t1", Expr: "* * * * *", Enabled: true, Action: TaskAction{Prompt: "tick"},
	}))
	s.RemoveTask("t1")
	s.Tick(time.Date(2026, 2, 23, 9, 30, 0, 0, time.UTC))

	select {
	case <-s.Out():
		t.Fatal("removed task should not fire")
	default:
	}
}
