package scheduler

// Result tells the scheduler what to do with a task after it executed.
// Any value other than Repeat or Stop is treated as a fatal error.
type Result int

const (
	// Repeat reschedules the task one interval from now.
	Repeat Result = iota
	// Stop discards the task. Under the StopScheduler policy it also ends Run.
	Stop
)

func (r Result) String() string {
	switch r {
	case Repeat:
		return "repeat"
	case Stop:
		return "stop"
	default:
		return "fatal"
	}
}

// Job is a unit of periodic work.
type Job interface {
	Execute() Result
}

// Cleaner is implemented by jobs that must release resources when their
// task is destroyed.
type Cleaner interface {
	Cleanup()
}

// JobFunc adapts a function to the Job interface.
type JobFunc func() Result

// Execute calls f.
func (f JobFunc) Execute() Result { return f() }

type cleanupJob struct {
	Job
	cleanup func()
}

func (c cleanupJob) Cleanup() { c.cleanup() }

// WithCleanup returns a Job that runs cleanup when its task is destroyed.
func WithCleanup(job Job, cleanup func()) Job {
	if cleanup == nil {
		return job
	}
	return cleanupJob{Job: job, cleanup: cleanup}
}

// StopPolicy selects how far a Stop result reaches.
type StopPolicy int

const (
	// StopScheduler ends the whole Run loop when any task returns Stop.
	StopScheduler StopPolicy = iota
	// StopTask discards only the task that returned Stop.
	StopTask
)
