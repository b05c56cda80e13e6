package shell

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IamTheCarl/psu/driver"
	"github.com/IamTheCarl/psu/protocol"
)

func openTestSupply(t *testing.T, address uint8) (driver.PowerSupply, *driver.MockPort) {
	t.Helper()
	port := driver.NewMockPort(address)
	ps, err := driver.Open(context.Background(), driver.BK196XConfig{SerialInterface: "mock", Address: address},
		driver.WithPortOpener(port.Opener()), driver.WithPacing(0))
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	return ps, port
}

func newTestInterpreter(t *testing.T, address uint8) (*Interpreter, *driver.MockPort, *bytes.Buffer) {
	t.Helper()
	ps, port := openTestSupply(t, address)

	var out bytes.Buffer
	in, err := NewInterpreter(ps, &out)
	require.NoError(t, err)
	return in, port, &out
}

func TestParseStatements(t *testing.T) {
	p, err := newParser()
	require.NoError(t, err)

	v := func(f float64) *float64 { return &f }
	on, off := "on", "OFF"

	tests := []struct {
		line string
		want Statement
	}{
		{"volt 12.5", Statement{Voltage: v(12.5)}},
		{"v 5V", Statement{Voltage: v(5)}},
		{"VOLTAGE .5", Statement{Voltage: v(0.5)}},
		{"curr 0.25", Statement{Current: v(0.25)}},
		{"i 1 A", Statement{Current: v(1)}},
		{"on", Statement{Output: &on}},
		{"OFF", Statement{Output: &off}},
		{"status", Statement{Status: true}},
		{"?", Statement{Help: true}},
		{"exit", Statement{Quit: true}},
	}

	for _, tt := range tests {
		got, err := p.ParseString("", tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, *got, tt.line)
	}
}

func TestParseErrors(t *testing.T) {
	p, err := newParser()
	require.NoError(t, err)

	for _, line := range []string{"volt", "volt abc", "reboot", "on off", "curr 1 V"} {
		_, err := p.ParseString("", line)
		assert.Error(t, err, line)
	}
}

func TestInterpreterSession(t *testing.T) {
	in, port, out := newTestInterpreter(t, 4)
	ctx := context.Background()

	for _, line := range []string{"volt 12", "curr 1.5", "on", "", "status"} {
		quit, err := in.Exec(ctx, line)
		require.NoError(t, err, line)
		assert.False(t, quit)
	}

	assert.Equal(t, []string{"SESS04\r", "VOLT04120\r", "CURR04150\r", "SOUT040\r"}, port.Lines())
	assert.Equal(t, protocol.PanelState{Remote: true, Voltage: 12, Current: 1.5, OutputEnabled: true}, port.Panel())
	assert.Contains(t, out.String(), "Voltage limit set to 12.0 V")
	assert.Contains(t, out.String(), "Output enabled")
	assert.Contains(t, out.String(), "(address 04): OPEN, 4 commands sent")

	quit, err := in.Exec(ctx, "quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestInterpreterErrors(t *testing.T) {
	in, port, _ := newTestInterpreter(t, 0)

	_, err := in.Exec(context.Background(), "volt 250")
	assert.ErrorIs(t, err, protocol.ErrValueOutOfRange)

	_, err = in.Exec(context.Background(), "jump")
	assert.Error(t, err)

	assert.Equal(t, []string{"SESS00\r"}, port.Lines())
}

func TestInterpreterHelp(t *testing.T) {
	in, _, out := newTestInterpreter(t, 0)
	_, err := in.Exec(context.Background(), "help")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "volt <volts>")
}

func pipedConfig(stdin io.ReadCloser) *readline.Config {
	return &readline.Config{
		Prompt:         "test> ",
		Stdin:          stdin,
		Stdout:         io.Discard,
		Stderr:         io.Discard,
		FuncIsTerminal: func() bool { return false },
	}
}

func TestShellRunsScript(t *testing.T) {
	ps, port := openTestSupply(t, 1)

	sh, err := newShell(ps, pipedConfig(io.NopCloser(strings.NewReader("volt 5\nbogus\non\nquit\nvolt 9\n"))))
	require.NoError(t, err)
	require.NoError(t, sh.Run(context.Background()))

	assert.Equal(t, []string{"SESS01\r", "VOLT01050\r", "SOUT010\r"}, port.Lines())
}

func TestShellStopsWhenCanceled(t *testing.T) {
	ps, port := openTestSupply(t, 0)

	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	sh, err := newShell(ps, pipedConfig(stdin))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	// Let Run block waiting for input.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shell still waiting for input after cancel")
	}
	assert.Equal(t, []string{"SESS00\r"}, port.Lines())
}
