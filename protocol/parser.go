package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformed = errors.New("malformed command")

// Decode parses one wire line back into the address and command it carries.
// The trailing carriage return is optional.
func Decode(line []byte) (uint8, Command, error) {
	line = bytes.TrimSuffix(line, []byte{CR})
	if len(line) < 6 {
		return 0, Command{}, fmt.Errorf("%q: %w", line, ErrMalformed)
	}

	readNumber := func(field []byte) (int, error) {
		for _, b := range field {
			if b < '0' || b > '9' {
				return 0, fmt.Errorf("%q: %w", line, ErrMalformed)
			}
		}
		return strconv.Atoi(string(field))
	}

	addr, err := readNumber(line[4:6])
	if err != nil {
		return 0, Command{}, err
	}
	address := uint8(addr)
	payload := line[6:]

	var cmd Command
	switch string(line[:4]) {
	case "SESS":
		cmd.Op = OpOpenSession
	case "ENDS":
		cmd.Op = OpCloseSession
	case "VOLT", "CURR":
		cmd.Op = OpSetVoltage
		if string(line[:4]) == "CURR" {
			cmd.Op = OpSetCurrent
		}
		if len(payload) != ValueDigits {
			return 0, Command{}, fmt.Errorf("%q: %w", line, ErrMalformed)
		}
		if cmd.Value, err = readNumber(payload); err != nil {
			return 0, Command{}, err
		}
		payload = nil
	case "SOUT":
		cmd.Op = OpSetOutput
		if len(payload) != 1 || (payload[0] != '0' && payload[0] != '1') {
			return 0, Command{}, fmt.Errorf("%q: %w", line, ErrMalformed)
		}
		cmd.Enabled = payload[0] == '0'
		payload = nil
	default:
		return 0, Command{}, fmt.Errorf("%q: %w", line[:4], ErrUnknownCommand)
	}

	if len(payload) != 0 {
		return 0, Command{}, fmt.Errorf("%q: %w", line, ErrMalformed)
	}
	return address, cmd, nil
}

// SplitLines is a bufio.SplitFunc that yields CR terminated commands.
func SplitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, CR); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
