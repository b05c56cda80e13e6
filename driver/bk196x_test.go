package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IamTheCarl/psu/protocol"
)

func noSleep(time.Duration) {}

func openMock(t *testing.T, address uint8, opts ...Option) (*BK196X, *MockPort) {
	t.Helper()
	port := NewMockPort(address)
	opts = append([]Option{WithPortOpener(port.Opener()), WithSleep(noSleep)}, opts...)
	d, err := OpenBK196X(context.Background(), BK196XConfig{SerialInterface: "/dev/ttyUSB0", Address: address}, opts...)
	require.NoError(t, err)
	return d, port
}

func TestBK196XEndToEnd(t *testing.T) {
	ctx := context.Background()
	d, port := openMock(t, 3)

	require.NoError(t, d.SetVoltageLimit(ctx, 5.0))
	require.NoError(t, d.SetCurrentLimit(ctx, 0.5))
	require.NoError(t, d.EnableOutput(ctx, true))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"SESS03\r", "VOLT03050\r", "CURR03050\r", "SOUT030\r", "ENDS03\r"}, port.Lines())
	assert.True(t, port.Closed())
	assert.Equal(t, "/dev/ttyUSB0", port.Name())
	assert.Equal(t, BK196XBaudRate, port.BaudRate())
	assert.Empty(t, port.PanelErrors())
	assert.Equal(t, protocol.PanelState{Voltage: 5, Current: 0.5, OutputEnabled: true}, port.Panel())
}

func TestBK196XEncodings(t *testing.T) {
	ctx := context.Background()

	d, port := openMock(t, 5)
	require.NoError(t, d.SetVoltageLimit(ctx, 12.34))
	assert.Equal(t, "VOLT05123\r", port.Lines()[1])

	d, port = openMock(t, 0)
	require.NoError(t, d.SetCurrentLimit(ctx, 1.005))
	require.NoError(t, d.EnableOutput(ctx, true))
	require.NoError(t, d.EnableOutput(ctx, false))
	assert.Equal(t, []string{"SESS00\r", "CURR00101\r", "SOUT000\r", "SOUT001\r"}, port.Lines())

	d, port = openMock(t, 0, WithRounding(protocol.RoundHalfEven))
	require.NoError(t, d.SetCurrentLimit(ctx, 1.005))
	assert.Equal(t, "CURR00100\r", port.Lines()[1])
}

func TestBK196XRoundingFromConfig(t *testing.T) {
	port := NewMockPort(0)
	cfg := BK196XConfig{SerialInterface: "mock", Rounding: "half-even"}
	d, err := OpenBK196X(context.Background(), cfg, WithPortOpener(port.Opener()), WithSleep(noSleep))
	require.NoError(t, err)

	require.NoError(t, d.SetCurrentLimit(context.Background(), 1.005))
	assert.Equal(t, "CURR00100\r", port.Lines()[1])
}

func TestBK196XAddressOutOfRange(t *testing.T) {
	opened := false
	opener := func(string, int) (Port, error) {
		opened = true
		return NewMockPort(0), nil
	}

	for _, addr := range []uint8{100, 200, 255} {
		_, err := OpenBK196X(context.Background(), BK196XConfig{SerialInterface: "mock", Address: addr}, WithPortOpener(opener))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr, "address %d", addr)
		assert.Equal(t, "address", cfgErr.Field)
	}
	assert.False(t, opened, "port must not be opened for an invalid address")
}

func TestBK196XConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   BK196XConfig
		field string
	}{
		{"missing interface", BK196XConfig{}, "serial_interface"},
		{"pacing too short", BK196XConfig{SerialInterface: "x", Pacing: 50 * time.Millisecond}, "pacing"},
		{"unknown rounding", BK196XConfig{SerialInterface: "x", Rounding: "up"}, "rounding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigError
			require.ErrorAs(t, tt.cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, BK196XConfig{SerialInterface: "x", Address: 99, Pacing: 250 * time.Millisecond}.Validate())
}

func TestBK196XOpenFailure(t *testing.T) {
	opener := func(string, int) (Port, error) {
		return nil, errors.New("permission denied")
	}

	_, err := OpenBK196X(context.Background(), BK196XConfig{SerialInterface: "/dev/ttyUSB9"}, WithPortOpener(opener))
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StageOpen, tErr.Stage)
	assert.Equal(t, "/dev/ttyUSB9", tErr.Port)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestBK196XSessionStartFailureReleasesPort(t *testing.T) {
	port := NewMockPort(0)
	port.FailWriteAt(0, errors.New("unplugged"))

	_, err := OpenBK196X(context.Background(), BK196XConfig{SerialInterface: "mock"},
		WithPortOpener(port.Opener()), WithSleep(noSleep))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StageSend, tErr.Stage)
	assert.Equal(t, "SESS", tErr.Command)
	assert.True(t, port.Closed())
}

func TestBK196XPacing(t *testing.T) {
	const pacing = 20 * time.Millisecond
	ctx := context.Background()

	port := NewMockPort(1)
	d, err := OpenBK196X(ctx, BK196XConfig{SerialInterface: "mock", Address: 1},
		WithPortOpener(port.Opener()), WithPacing(pacing))
	require.NoError(t, err)

	require.NoError(t, d.SetVoltageLimit(ctx, 3.3))
	require.NoError(t, d.SetCurrentLimit(ctx, 0.1))
	require.NoError(t, d.EnableOutput(ctx, true))
	require.NoError(t, d.Close())

	writes := port.Writes()
	require.Len(t, writes, 5)
	for i := 1; i < len(writes); i++ {
		gap := writes[i].At.Sub(writes[i-1].At)
		assert.GreaterOrEqual(t, gap, pacing, "gap before %q", writes[i].Data)
	}
}

func TestBK196XPacesAfterEveryCommand(t *testing.T) {
	var waits []time.Duration
	sleep := func(d time.Duration) { waits = append(waits, d) }

	port := NewMockPort(0)
	d, err := OpenBK196X(context.Background(), BK196XConfig{SerialInterface: "mock"},
		WithPortOpener(port.Opener()), WithSleep(sleep))
	require.NoError(t, err)
	require.NoError(t, d.EnableOutput(context.Background(), false))
	require.NoError(t, d.Close())

	assert.Equal(t, []time.Duration{BK196XPacing, BK196XPacing, BK196XPacing}, waits)
}

func TestBK196XConfiguredPacing(t *testing.T) {
	var waits []time.Duration
	sleep := func(d time.Duration) { waits = append(waits, d) }

	port := NewMockPort(0)
	cfg := BK196XConfig{SerialInterface: "mock", Pacing: 250 * time.Millisecond}
	d, err := OpenBK196X(context.Background(), cfg, WithPortOpener(port.Opener()), WithSleep(sleep))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
}

func TestBK196XCloseAfterWriteFailure(t *testing.T) {
	ctx := context.Background()
	d, port := openMock(t, 7)
	port.FailWriteAt(1, errors.New("i/o error"))

	err := d.SetVoltageLimit(ctx, 5)
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StageSend, tErr.Stage)
	assert.Equal(t, "VOLT", tErr.Command)

	require.NoError(t, d.Close())
	lines := port.Lines()
	assert.Equal(t, "ENDS07\r", lines[len(lines)-1])
	assert.True(t, port.Closed())
}

func TestBK196XCloseReleasesPortWhenEndsFails(t *testing.T) {
	d, port := openMock(t, 0)
	port.FailWriteAt(1, errors.New("i/o error"))
	port.FailClose(errors.New("busy"))

	err := d.Close()
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Contains(t, err.Error(), "i/o error")
	assert.Contains(t, err.Error(), "busy")
	assert.True(t, port.Closed())
}

func TestBK196XUseAfterClose(t *testing.T) {
	ctx := context.Background()
	d, port := openMock(t, 0)
	require.NoError(t, d.Close())

	assert.ErrorIs(t, d.EnableOutput(ctx, true), ErrSessionClosed)
	assert.ErrorIs(t, d.SetVoltageLimit(ctx, 1), ErrSessionClosed)
	assert.ErrorIs(t, d.SetCurrentLimit(ctx, 1), ErrSessionClosed)
	assert.ErrorIs(t, d.Close(), ErrSessionClosed)
	assert.Len(t, port.Lines(), 2)
}

func TestBK196XValueOutOfRangeSendsNothing(t *testing.T) {
	d, port := openMock(t, 0)

	assert.ErrorIs(t, d.SetVoltageLimit(context.Background(), 120), protocol.ErrValueOutOfRange)
	assert.ErrorIs(t, d.SetCurrentLimit(context.Background(), -1), protocol.ErrValueOutOfRange)
	assert.Equal(t, []string{"SESS00\r"}, port.Lines())
}

func TestBK196XCanceledContext(t *testing.T) {
	d, port := openMock(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.EnableOutput(ctx, true), context.Canceled)
	require.NoError(t, d.Close())
	assert.Equal(t, []string{"SESS00\r", "ENDS00\r"}, port.Lines())
}

func TestBK196XStatus(t *testing.T) {
	d, _ := openMock(t, 12)
	require.NoError(t, d.EnableOutput(context.Background(), true))

	st := d.Status()
	assert.Equal(t, "OPEN", st.State)
	assert.Equal(t, uint8(12), st.Address)
	assert.Equal(t, "/dev/ttyUSB0", st.Port)
	assert.Equal(t, 2, st.Commands)
	assert.NotEmpty(t, st.SessionID)

	require.NoError(t, d.Close())
	assert.Equal(t, "CLOSED", d.Status().State)
}
