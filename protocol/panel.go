package protocol

import (
	"errors"
	"fmt"
)

var ErrNoSession = errors.New("no remote session open")

// PanelState is what a supply would show on its front panel.
type PanelState struct {
	Remote        bool    `json:"remote"`
	Voltage       float64 `json:"voltage"`
	Current       float64 `json:"current"`
	OutputEnabled bool    `json:"output_enabled"`
}

// Panel interprets commands the way a 196X does. It is used by the
// simulator and the mock port to check what a driver put on the wire.
type Panel struct {
	Address uint8

	state PanelState
}

func NewPanel(address uint8) *Panel {
	return &Panel{Address: address}
}

func (p *Panel) State() PanelState {
	return p.state
}

// Feed decodes one wire line and applies it. Lines for other addresses are
// ignored and reported as not applied.
func (p *Panel) Feed(line []byte) (applied bool, err error) {
	addr, cmd, err := Decode(line)
	if err != nil {
		return false, err
	}
	if addr != p.Address {
		return false, nil
	}
	return true, p.Apply(cmd)
}

// Apply updates the panel state for a decoded command.
func (p *Panel) Apply(cmd Command) error {
	if cmd.Op == OpOpenSession {
		p.state.Remote = true
		return nil
	}
	if !p.state.Remote {
		return fmt.Errorf("%s: %w", cmd.Op, ErrNoSession)
	}

	switch cmd.Op {
	case OpCloseSession:
		// Setpoints and output stay as they were; only control returns
		// to the front panel.
		p.state.Remote = false
	case OpSetVoltage:
		p.state.Voltage = Unscale(cmd.Value, VoltageScale)
	case OpSetCurrent:
		p.state.Current = Unscale(cmd.Value, CurrentScale)
	case OpSetOutput:
		p.state.OutputEnabled = cmd.Enabled
	default:
		return fmt.Errorf("%s: %w", cmd.Op, ErrUnknownCommand)
	}
	return nil
}
