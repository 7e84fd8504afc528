//go:build unix

package watchdog

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// SignalTransport sends SIGUSR1 for heartbeats and SIGUSR2 for termination.
// os/signal does not report the sending pid, so every Delivery it produces
// has SenderUnknown and the supervisor cannot reject signals from a third
// process with the same uid. A stray SIGUSR1 resets the miss count and a
// stray SIGUSR2 shuts the pair down.
type SignalTransport struct {
	mu      sync.Mutex
	sigCh   chan os.Signal
	out     chan Delivery
	closeCh chan struct{}
	done    chan struct{}
}

// NewSignalTransport returns a transport over process signals.
func NewSignalTransport() *SignalTransport {
	return &SignalTransport{}
}

func toUnix(sig Signal) (unix.Signal, error) {
	switch sig {
	case Heartbeat:
		return unix.SIGUSR1, nil
	case Terminate:
		return unix.SIGUSR2, nil
	default:
		return 0, fmt.Errorf("unknown signal %d", int(sig))
	}
}

// Listen implements Transport.
func (t *SignalTransport) Listen() (<-chan Delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out != nil {
		return t.out, nil
	}

	t.sigCh = make(chan os.Signal, 8)
	t.out = make(chan Delivery, 8)
	t.closeCh = make(chan struct{})
	t.done = make(chan struct{})
	signal.Notify(t.sigCh, unix.SIGUSR1, unix.SIGUSR2)

	go t.forward()
	return t.out, nil
}

func (t *SignalTransport) forward() {
	defer close(t.done)
	defer close(t.out)
	for {
		select {
		case <-t.closeCh:
			return
		case s := <-t.sigCh:
			d := Delivery{Sender: SenderUnknown}
			switch s {
			case unix.SIGUSR1:
				d.Signal = Heartbeat
			case unix.SIGUSR2:
				d.Signal = Terminate
			default:
				continue
			}
			select {
			case t.out <- d:
			case <-t.closeCh:
				return
			}
		}
	}
}

// Send implements Transport.
func (t *SignalTransport) Send(pid int, sig Signal) error {
	if pid <= 0 {
		return ErrNoCounterpart
	}
	us, err := toUnix(sig)
	if err != nil {
		return err
	}
	if err := unix.Kill(pid, us); err != nil {
		return fmt.Errorf("send %s to %d: %w", sig, pid, err)
	}
	return nil
}

// Close implements Transport. The signals stay caught so a late heartbeat
// cannot kill the process.
func (t *SignalTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeCh == nil {
		return nil
	}
	select {
	case <-t.closeCh:
		return nil
	default:
	}
	signal.Ignore(unix.SIGUSR1, unix.SIGUSR2)
	close(t.closeCh)
	<-t.done
	return nil
}
