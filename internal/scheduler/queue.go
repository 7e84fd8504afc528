package scheduler

import (
	"cmp"

	"github.com/warpdl/pairwatch/internal/heap"
)

// taskQueue orders tasks by next due time, earliest first. Tasks due at the
// same instant run in creation order.
type taskQueue struct {
	h *heap.Heap[*Task]
}

func newTaskQueue() *taskQueue {
	return &taskQueue{h: heap.New(compareDue)}
}

func compareDue(a, b *Task) int {
	if c := a.nextRun.Compare(b.nextRun); c != 0 {
		return c
	}
	return cmp.Compare(a.id.Counter, b.id.Counter)
}

func (q *taskQueue) Enqueue(t *Task) {
	q.h.Push(t)
}

// Dequeue removes and returns the earliest task.
func (q *taskQueue) Dequeue() (*Task, bool) {
	if q.h.IsEmpty() {
		return nil, false
	}
	return q.h.Pop(), true
}

// Peek returns the earliest task without removing it.
func (q *taskQueue) Peek() (*Task, bool) {
	if q.h.IsEmpty() {
		return nil, false
	}
	return q.h.Peek(), true
}

func (q *taskQueue) IsEmpty() bool { return q.h.IsEmpty() }

func (q *taskQueue) Count() int { return q.h.Len() }

// Erase removes the first task matching match.
func (q *taskQueue) Erase(match func(*Task) bool) (*Task, bool) {
	return q.h.Remove(match)
}

// Clear drains the queue and returns the drained tasks. It does not destroy
// them; that is the caller's job.
func (q *taskQueue) Clear() []*Task {
	drained := make([]*Task, 0, q.h.Len())
	for {
		t, ok := q.Dequeue()
		if !ok {
			return drained
		}
		drained = append(drained, t)
	}
}
