package driver

import (
	"context"
	"errors"
	"fmt"
)

// Action is what a user asks of a supply in one invocation.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
	ActionSet Action = "set"
)

// Request is a resolved user command. Nil limits are left unchanged.
type Request struct {
	Action  Action   `json:"command"`
	Voltage *float64 `json:"voltage,omitempty"`
	Current *float64 `json:"current,omitempty"`
}

func (r Request) Validate() error {
	switch r.Action {
	case ActionOn, ActionSet:
		return nil
	case ActionOff:
		if r.Voltage != nil || r.Current != nil {
			return errors.New("off does not take voltage or current limits")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", r.Action)
	}
}

// Apply issues the commands for req in order: voltage limit, current limit,
// then the output state. The first failure stops the sequence.
func Apply(ctx context.Context, ps PowerSupply, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if req.Action == ActionOff {
		return ps.EnableOutput(ctx, false)
	}

	if req.Voltage != nil {
		if err := ps.SetVoltageLimit(ctx, *req.Voltage); err != nil {
			return fmt.Errorf("set voltage limit: %w", err)
		}
	}
	if req.Current != nil {
		if err := ps.SetCurrentLimit(ctx, *req.Current); err != nil {
			return fmt.Errorf("set current limit: %w", err)
		}
	}
	if req.Action == ActionOn {
		if err := ps.EnableOutput(ctx, true); err != nil {
			return fmt.Errorf("enable output: %w", err)
		}
	}
	return nil
}

// Execute applies req and then closes ps, on success and on failure alike.
func Execute(ctx context.Context, ps PowerSupply, req Request) error {
	err := Apply(ctx, ps, req)
	if cerr := ps.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close power supply interface: %w", cerr))
	}
	return err
}
