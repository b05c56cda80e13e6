package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInvertsEncode(t *testing.T) {
	cmds := []Command{
		OpenSession(),
		CloseSession(),
		{Op: OpSetVoltage, Value: 123},
		{Op: OpSetCurrent, Value: 7},
		SetOutput(true),
		SetOutput(false),
	}

	for _, cmd := range cmds {
		raw, err := cmd.Encode(17)
		require.NoError(t, err)

		addr, got, err := Decode(raw)
		require.NoError(t, err, "decode %q", raw)
		assert.Equal(t, uint8(17), addr)
		assert.Equal(t, cmd, got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"SESS", ErrMalformed},
		{"SESSxx\r", ErrMalformed},
		{"VOLT0112\r", ErrMalformed},
		{"VOLT011234\r", ErrMalformed},
		{"SOUT002\r", ErrMalformed},
		{"SESS01X\r", ErrMalformed},
		{"GETD00\r", ErrUnknownCommand},
	}

	for _, tt := range tests {
		_, _, err := Decode([]byte(tt.line))
		assert.ErrorIs(t, err, tt.want, "line %q", tt.line)
	}
}

func TestSplitLines(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("SESS03\rVOLT03050\rENDS03"))
	sc.Split(SplitLines)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"SESS03", "VOLT03050", "ENDS03"}, lines)
}

func TestPanel(t *testing.T) {
	p := NewPanel(3)

	_, err := p.Feed([]byte("VOLT03050\r"))
	assert.ErrorIs(t, err, ErrNoSession)

	for _, line := range []string{"SESS03\r", "VOLT03050\r", "CURR03050\r", "SOUT030\r"} {
		applied, err := p.Feed([]byte(line))
		require.NoError(t, err, line)
		assert.True(t, applied, line)
	}

	applied, err := p.Feed([]byte("SOUT041\r"))
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, PanelState{Remote: true, Voltage: 5, Current: 0.5, OutputEnabled: true}, p.State())

	_, err = p.Feed([]byte("ENDS03\r"))
	require.NoError(t, err)
	assert.Equal(t, PanelState{Voltage: 5, Current: 0.5, OutputEnabled: true}, p.State())
}
