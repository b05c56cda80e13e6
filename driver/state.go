package driver

import (
	"errors"
	"fmt"
	"time"
)

// SessionState is the driver side view of a remote session.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpen
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo describes a session for logs and the remote API.
type StatusInfo struct {
	State     string    `json:"state"`
	SessionID string    `json:"session_id"`
	Port      string    `json:"port"`
	Address   uint8     `json:"address"`
	OpenedAt  time.Time `json:"opened_at,omitempty"`
	Commands  int       `json:"commands"`
	LastError string    `json:"last_error,omitempty"`
}

var (
	// ErrUnsupported is wrapped by drivers for operations their supply
	// family cannot perform, and by Open for unknown config variants.
	ErrUnsupported = errors.New("not supported by this power supply")

	// ErrSessionClosed is returned by every call on a closed driver.
	ErrSessionClosed = errors.New("power supply session is closed")
)

// Unsupported reports that op is not available on the named supply family.
func Unsupported(family, op string) error {
	return fmt.Errorf("%s: %s: %w", family, op, ErrUnsupported)
}

// ConfigError is raised before any transport activity when a supply entry
// cannot be used.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Stage names the step of a session that a TransportError happened in.
type Stage string

const (
	StageOpen  Stage = "open"
	StageSend  Stage = "send"
	StageClose Stage = "close"
)

// TransportError is a failure to open, write to or release a port. Nothing
// is retried; after a send failure the supply is in an unknown state.
type TransportError struct {
	Stage   Stage
	Port    string
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("transport %s %s on %s: %v", e.Stage, e.Command, e.Port, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Stage, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
