//go:build !unix

package namedsem

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without FIFOs.
var ErrUnsupported = errors.New("named semaphores are not supported on this platform")

// Semaphore is unavailable on this platform.
type Semaphore struct{}

func Open(dir, name string) (*Semaphore, error)   { return nil, ErrUnsupported }
func Create(dir, name string) (*Semaphore, error) { return nil, ErrUnsupported }
func Unlink(dir, name string) error               { return ErrUnsupported }

func (s *Semaphore) Post() error                    { return ErrUnsupported }
func (s *Semaphore) Wait(ctx context.Context) error { return ErrUnsupported }
func (s *Semaphore) Close() error                   { return nil }
