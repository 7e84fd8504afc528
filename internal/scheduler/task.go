package scheduler

import (
	"time"

	"github.com/warpdl/pairwatch/internal/uid"
)

// Task is a scheduled Job with a fixed interval.
type Task struct {
	id        uid.UID
	job       Job
	interval  time.Duration
	nextRun   time.Time
	destroyed bool
}

func newTask(id uid.UID, job Job, interval time.Duration, now time.Time) *Task {
	return &Task{
		id:       id,
		job:      job,
		interval: interval,
		nextRun:  now.Add(interval),
	}
}

// ID returns the task identity.
func (t *Task) ID() uid.UID { return t.id }

func (t *Task) run() Result {
	return t.job.Execute()
}

func (t *Task) updateNextRun(now time.Time) {
	t.nextRun = now.Add(t.interval)
}

// destroy runs the job's cleanup, if any. Only the first call has an effect.
func (t *Task) destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if c, ok := t.job.(Cleaner); ok {
		c.Cleanup()
	}
}
