// Package uid generates process-wide unique identities used to name
// scheduler tasks. An identity combines a per-process counter with the
// owning process id and the generation time.
package uid

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// UID is a process-wide unique identity.
type UID struct {
	Counter uint64
	PID     int
	Time    int64
}

// Bad is returned when an identity could not be generated.
// Real identities start counting at 1, so Bad never collides with one.
var Bad = UID{Counter: 0, PID: -1, Time: -1}

// Equal reports whether u and other are the same identity.
func (u UID) Equal(other UID) bool {
	return u.Counter == other.Counter && u.PID == other.PID && u.Time == other.Time
}

// IsBad reports whether u is the failure sentinel.
func (u UID) IsBad() bool {
	return u.Equal(Bad)
}

func (u UID) String() string {
	return fmt.Sprintf("%d-%d-%d", u.PID, u.Time, u.Counter)
}

// Generator hands out identities with a strictly increasing counter.
type Generator struct {
	mu    sync.Mutex
	count uint64
	now   func() time.Time
	pid   func() int
}

// NewGenerator creates a Generator. Nil functions fall back to
// time.Now and os.Getpid.
func NewGenerator(now func() time.Time, pid func() int) *Generator {
	if now == nil {
		now = time.Now
	}
	if pid == nil {
		pid = os.Getpid
	}
	return &Generator{now: now, pid: pid}
}

// Generate returns a new identity, or Bad if the clock reading is unusable.
// The counter is not advanced on failure.
func (g *Generator) Generate() UID {
	t := g.now()
	if t.IsZero() || t.Unix() <= 0 {
		return Bad
	}

	g.mu.Lock()
	g.count++
	c := g.count
	g.mu.Unlock()

	return UID{Counter: c, PID: g.pid(), Time: t.Unix()}
}

var defaultGenerator = NewGenerator(nil, nil)

// Generate returns a new identity from the process-wide generator.
func Generate() UID {
	return defaultGenerator.Generate()
}
