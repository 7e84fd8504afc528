//go:build unix

// Package namedsem provides counting semaphores that are named in the
// filesystem and shared between processes. A semaphore is a FIFO: Post
// writes one token into it and Wait reads one token out. Tokens persist for
// as long as at least one process holds the semaphore open.
package namedsem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Mode is the permission of newly created semaphores.
const Mode = 0o600

var (
	// ErrExist is returned by Create when the semaphore already exists.
	ErrExist = fs.ErrExist

	// ErrNotSemaphore is returned when the name refers to something other than a FIFO.
	ErrNotSemaphore = errors.New("not a named semaphore")

	// ErrInvalidName is returned for empty names or names containing a path separator.
	ErrInvalidName = errors.New("invalid semaphore name")
)

// Semaphore is an open named semaphore.
type Semaphore struct {
	name string
	f    *os.File
	// turn admits one reader at a time; the read deadline is per file.
	turn chan struct{}
}

// Open opens the semaphore name in dir, creating it if it does not exist.
func Open(dir, name string) (*Semaphore, error) {
	path, err := semPath(dir, name)
	if err != nil {
		return nil, err
	}
	if err := unix.Mkfifo(path, Mode); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("create semaphore %s: %w", name, err)
	}
	return openFIFO(name, path)
}

// Create creates and opens the semaphore name in dir. It fails with ErrExist
// if the semaphore already exists.
func Create(dir, name string) (*Semaphore, error) {
	path, err := semPath(dir, name)
	if err != nil {
		return nil, err
	}
	if err := unix.Mkfifo(path, Mode); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("create semaphore %s: %w", name, ErrExist)
		}
		return nil, fmt.Errorf("create semaphore %s: %w", name, err)
	}
	return openFIFO(name, path)
}

// Unlink removes the semaphore name from dir. Processes that still hold it
// open keep working; a missing semaphore is not an error.
func Unlink(dir, name string) error {
	path, err := semPath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unlink semaphore %s: %w", name, err)
	}
	return nil
}

func semPath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}

// openFIFO opens path read-write so the open never blocks waiting for a peer
// and the pipe buffer outlives the other side closing.
func openFIFO(name, path string) (*Semaphore, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("open semaphore %s: %w", name, err)
	}
	if info.Mode()&fs.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("open semaphore %s: %w", name, ErrNotSemaphore)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open semaphore %s: %w", name, err)
	}
	return &Semaphore{name: name, f: f, turn: make(chan struct{}, 1)}, nil
}

// Post releases one waiter, or stores a token for the next Wait.
func (s *Semaphore) Post() error {
	if _, err := s.f.Write([]byte{1}); err != nil {
		return fmt.Errorf("post %s: %w", s.name, err)
	}
	return nil
}

// Wait blocks until a token is available or ctx is done. Concurrent waiters
// on one handle are served in turn, and cancelling one does not disturb the
// others.
func (s *Semaphore) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.turn }()

	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			// A deadline in the past aborts the pending read.
			_ = s.f.SetReadDeadline(time.Unix(1, 0))
		case <-stop:
		}
	}()

	var token [1]byte
	_, err := io.ReadFull(s.f, token[:])
	close(stop)
	<-watcherDone
	_ = s.f.SetReadDeadline(time.Time{})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("wait %s: %w", s.name, err)
	}
	return nil
}

// Close releases the handle. The semaphore itself stays until Unlink.
func (s *Semaphore) Close() error {
	return s.f.Close()
}
