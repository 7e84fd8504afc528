// Package scheduler provides a single-goroutine cooperative task scheduler.
// Tasks live in a min-heap ordered by their next due time; Run sleeps until
// the earliest task is due, executes it to completion, and then reschedules
// or discards it based on the Result it returns. Sleeps are capped at
// MaxSleep so wall-clock steps (NTP, DST, system sleep) are noticed promptly.
//
// Tasks may add or remove tasks, including themselves, while they execute:
// the queue lock is never held while a task runs.
package scheduler
