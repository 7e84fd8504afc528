package watchdog

import "errors"

// Signal is a protocol message sent between the pair.
type Signal int

const (
	// Heartbeat tells the receiver its counterpart is alive.
	Heartbeat Signal = iota + 1
	// Terminate asks the receiver to shut down.
	Terminate
)

func (s Signal) String() string {
	switch s {
	case Heartbeat:
		return "heartbeat"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// SenderUnknown is the Delivery sender when the transport cannot tell who
// sent a signal. Such deliveries are treated as coming from the counterpart.
const SenderUnknown = 0

// ErrNoCounterpart is returned by Send for a pid that cannot be a counterpart.
var ErrNoCounterpart = errors.New("no counterpart process")

// Delivery is a received signal.
type Delivery struct {
	Signal Signal
	Sender int
}

// Transport carries signals between the two processes.
type Transport interface {
	// Listen starts delivery of incoming signals. The channel is closed by Close.
	Listen() (<-chan Delivery, error)

	// Send delivers sig to the process pid.
	Send(pid int, sig Signal) error

	// Close stops delivery.
	Close() error
}
