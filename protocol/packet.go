package protocol

import (
	"fmt"
	"strings"
)

// Wire constants for the BK Precision 196X line protocol.
const (
	CR byte = '\r'

	MaxAddress = 99

	// Width of the numeric payload of VOLT and CURR.
	ValueDigits = 3
	MaxValue    = 999

	VoltageScale = 10
	CurrentScale = 100
)

// Op identifies one of the commands understood by the supply.
type Op int

const (
	OpOpenSession Op = iota
	OpCloseSession
	OpSetVoltage
	OpSetCurrent
	OpSetOutput
)

var opMnemonics = map[Op]string{
	OpOpenSession:  "SESS",
	OpCloseSession: "ENDS",
	OpSetVoltage:   "VOLT",
	OpSetCurrent:   "CURR",
	OpSetOutput:    "SOUT",
}

// String returns the four letter mnemonic sent on the wire.
func (o Op) String() string {
	if m, ok := opMnemonics[o]; ok {
		return m
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is a single request to the supply. It is plain data until Encode.
type Command struct {
	Op Op

	// Scaled setpoint for VOLT (tenths of a volt) and CURR (hundredths of an amp).
	Value int

	// Output state for SOUT.
	Enabled bool
}

func OpenSession() Command  { return Command{Op: OpOpenSession} }
func CloseSession() Command { return Command{Op: OpCloseSession} }

func SetOutput(enabled bool) Command {
	return Command{Op: OpSetOutput, Enabled: enabled}
}

// SetVoltage builds a VOLT command for the given limit in volts.
func SetVoltage(volts float64, mode RoundingMode) (Command, error) {
	v, err := Scale(volts, VoltageScale, mode)
	if err != nil {
		return Command{}, fmt.Errorf("voltage limit %gV: %w", volts, err)
	}
	return Command{Op: OpSetVoltage, Value: v}, nil
}

// SetCurrent builds a CURR command for the given limit in amps.
func SetCurrent(amps float64, mode RoundingMode) (Command, error) {
	v, err := Scale(amps, CurrentScale, mode)
	if err != nil {
		return Command{}, fmt.Errorf("current limit %gA: %w", amps, err)
	}
	return Command{Op: OpSetCurrent, Value: v}, nil
}

// Encode renders the command for the supply at address, including the
// trailing carriage return.
func (c Command) Encode(address uint8) ([]byte, error) {
	if address > MaxAddress {
		return nil, fmt.Errorf("address %d: %w", address, ErrAddressOutOfRange)
	}

	var b strings.Builder
	b.WriteString(c.Op.String())
	fmt.Fprintf(&b, "%02d", address)

	switch c.Op {
	case OpOpenSession, OpCloseSession:
	case OpSetVoltage, OpSetCurrent:
		if c.Value < 0 || c.Value > MaxValue {
			return nil, fmt.Errorf("%s value %d: %w", c.Op, c.Value, ErrValueOutOfRange)
		}
		fmt.Fprintf(&b, "%0*d", ValueDigits, c.Value)
	case OpSetOutput:
		// The supply uses 0 for "on" and 1 for "off".
		if c.Enabled {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	default:
		return nil, fmt.Errorf("%s: %w", c.Op, ErrUnknownCommand)
	}

	b.WriteByte(CR)
	return []byte(b.String()), nil
}

func (c Command) String() string {
	switch c.Op {
	case OpSetVoltage, OpSetCurrent:
		return fmt.Sprintf("%s %0*d", c.Op, ValueDigits, c.Value)
	case OpSetOutput:
		return fmt.Sprintf("%s enabled=%t", c.Op, c.Enabled)
	default:
		return c.Op.String()
	}
}
