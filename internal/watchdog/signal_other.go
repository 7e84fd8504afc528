//go:build !unix

package watchdog

import "errors"

// ErrUnsupported is returned on platforms without user signals.
var ErrUnsupported = errors.New("signal transport is not supported on this platform")

// SignalTransport is unavailable on this platform.
type SignalTransport struct{}

// NewSignalTransport returns a transport that always fails.
func NewSignalTransport() *SignalTransport { return &SignalTransport{} }

func (t *SignalTransport) Listen() (<-chan Delivery, error) { return nil, ErrUnsupported }
func (t *SignalTransport) Send(pid int, sig Signal) error  { return ErrUnsupported }
func (t *SignalTransport) Close() error                    { return nil }
