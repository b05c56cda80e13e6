package driver

import (
	"context"
	"io"
)

// Port is the byte transport a driver talks through. Drivers own their
// port exclusively and close it when their session ends.
type Port interface {
	io.WriteCloser
	Name() string
}

// PortOpener opens a port at the given baud rate. The serial framing is
// always 8 data bits, no parity, one stop bit.
type PortOpener func(name string, baudRate int) (Port, error)

// PowerSupply is implemented by every supported supply family.
//
// A driver that cannot perform one of these operations returns an error
// wrapping ErrUnsupported. It must never silently do nothing.
type PowerSupply interface {
	// EnableOutput switches the output on or off without touching the
	// voltage or current limits.
	EnableOutput(ctx context.Context, enabled bool) error

	// SetVoltageLimit sets the voltage limit in volts. Values are not
	// clamped; the supply rejects what it cannot do.
	SetVoltageLimit(ctx context.Context, volts float64) error

	// SetCurrentLimit sets the current limit in amps.
	SetCurrentLimit(ctx context.Context, amps float64) error

	// Close hands the supply back to front panel control and releases the
	// port. It does not change the output state. Every call after Close
	// returns ErrSessionClosed.
	Close() error
}

// StatusReporter is implemented by drivers that can describe their session.
type StatusReporter interface {
	Status() StatusInfo
}
