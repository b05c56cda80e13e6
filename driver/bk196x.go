package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IamTheCarl/psu/logger"
	"github.com/IamTheCarl/psu/monitoring"
	"github.com/IamTheCarl/psu/protocol"
)

const (
	// BK196XBaudRate is fixed by the supply; it has no baud setting.
	BK196XBaudRate = 9600

	// BK196XPacing is how long the supply needs between commands. Sending
	// faster makes its parser misread the following command.
	BK196XPacing = 100 * time.Millisecond

	bk196xFamily = "BK Precision 196X"
)

// BK196XConfig configures a supply of the BK Precision 1696/1697/1698 line.
type BK196XConfig struct {
	// SerialInterface is a device path such as /dev/serial/by-id/... (the
	// user usually needs to be in the dialout group), COM3 on Windows, or
	// tcp://host:port for a serial bridge.
	SerialInterface string `yaml:"serial_interface"`

	// Address only needs setting if it was changed on the supply.
	Address uint8 `yaml:"address"`

	// Pacing lengthens the pause between commands for slow adapters. It
	// can not be shorter than BK196XPacing.
	Pacing time.Duration `yaml:"pacing,omitempty"`

	// Rounding is "half-away-from-zero" (default) or "half-even".
	Rounding string `yaml:"rounding,omitempty"`
}

func (BK196XConfig) Kind() Kind    { return KindBK196X }
func (BK196XConfig) supplyConfig() {}

// Validate checks the entry without touching the port.
func (c BK196XConfig) Validate() error {
	if c.SerialInterface == "" {
		return &ConfigError{Field: "serial_interface", Msg: "is required"}
	}
	if c.Address > protocol.MaxAddress {
		return &ConfigError{Field: "address", Msg: fmt.Sprintf("%d is out of range 0-%d", c.Address, protocol.MaxAddress)}
	}
	if c.Pacing != 0 && c.Pacing < BK196XPacing {
		return &ConfigError{Field: "pacing", Msg: fmt.Sprintf("%s is shorter than the %s the supply needs", c.Pacing, BK196XPacing)}
	}
	if _, err := c.roundingMode(); err != nil {
		return err
	}
	return nil
}

func (c BK196XConfig) roundingMode() (protocol.RoundingMode, error) {
	switch c.Rounding {
	case "", protocol.RoundHalfAwayFromZero.String():
		return protocol.RoundHalfAwayFromZero, nil
	case protocol.RoundHalfEven.String():
		return protocol.RoundHalfEven, nil
	default:
		return 0, &ConfigError{Field: "rounding", Msg: fmt.Sprintf("unknown mode %q", c.Rounding)}
	}
}

// BK196X drives a BK Precision 196X supply. Most of its functionality comes
// from implementing PowerSupply.
type BK196X struct {
	port     Port
	address  uint8
	pacing   time.Duration
	rounding protocol.RoundingMode
	sleep    func(time.Duration)

	state    SessionState
	id       uuid.UUID
	openedAt time.Time
	sent     int
	lastErr  error
	log      *logrus.Entry
}

var (
	_ PowerSupply    = (*BK196X)(nil)
	_ StatusReporter = (*BK196X)(nil)
)

// OpenBK196X validates cfg, opens the port at 9600 8N1 and starts a remote
// session. On failure nothing is left open.
func OpenBK196X(ctx context.Context, cfg BK196XConfig, opts ...Option) (*BK196X, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	o.rounding, _ = cfg.roundingMode()
	for _, opt := range opts {
		opt(&o)
	}
	if o.pacing < 0 {
		o.pacing = BK196XPacing
		if cfg.Pacing > o.pacing {
			o.pacing = cfg.Pacing
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New()
	log := logger.L().WithFields(logrus.Fields{
		"session": id.String(),
		"address": cfg.Address,
	})
	log.Infof("Serial interface: %s", cfg.SerialInterface)

	port, err := o.openPort(cfg.SerialInterface, BK196XBaudRate)
	if err != nil {
		return nil, &TransportError{Stage: StageOpen, Port: cfg.SerialInterface, Err: err}
	}

	d := &BK196X{
		port:     port,
		address:  cfg.Address,
		pacing:   o.pacing,
		rounding: o.rounding,
		sleep:    o.sleep,
		state:    StateOpen,
		id:       id,
		openedAt: time.Now(),
		log:      log,
	}

	// Get the supply ready for commands.
	if err := d.send(ctx, protocol.OpenSession()); err != nil {
		d.state = StateClosed
		port.Close()
		return nil, err
	}

	monitoring.OpenSessions.Inc()
	return d, nil
}

func (d *BK196X) EnableOutput(ctx context.Context, enabled bool) error {
	if d.state != StateOpen {
		return ErrSessionClosed
	}
	return d.send(ctx, protocol.SetOutput(enabled))
}

func (d *BK196X) SetVoltageLimit(ctx context.Context, volts float64) error {
	if d.state != StateOpen {
		return ErrSessionClosed
	}
	cmd, err := protocol.SetVoltage(volts, d.rounding)
	if err != nil {
		return err
	}
	return d.send(ctx, cmd)
}

func (d *BK196X) SetCurrentLimit(ctx context.Context, amps float64) error {
	if d.state != StateOpen {
		return ErrSessionClosed
	}
	cmd, err := protocol.SetCurrent(amps, d.rounding)
	if err != nil {
		return err
	}
	return d.send(ctx, cmd)
}

// Close puts the supply back into manual control mode. ENDS is attempted
// even if an earlier command failed, and the port is released even if ENDS
// fails.
func (d *BK196X) Close() error {
	if d.state != StateOpen {
		return ErrSessionClosed
	}
	d.state = StateClosed
	monitoring.OpenSessions.Dec()

	sendErr := d.send(context.Background(), protocol.CloseSession())

	var closeErr error
	if err := d.port.Close(); err != nil {
		closeErr = &TransportError{Stage: StageClose, Port: d.port.Name(), Err: err}
	}

	d.log.WithField("commands", d.sent).Debug("session closed")
	return errors.Join(sendErr, closeErr)
}

// Status describes the session.
func (d *BK196X) Status() StatusInfo {
	info := StatusInfo{
		State:     d.state.String(),
		SessionID: d.id.String(),
		Port:      d.port.Name(),
		Address:   d.address,
		OpenedAt:  d.openedAt,
		Commands:  d.sent,
	}
	if d.lastErr != nil {
		info.LastError = d.lastErr.Error()
	}
	return info
}

// send writes one command and then waits out the pacing interval. The wait
// happens even when the write fails so that a following ENDS is not sent
// into a half-read command.
func (d *BK196X) send(ctx context.Context, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := cmd.Encode(d.address)
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Protocol(d.log.Data, "SEND", raw)

	_, err = d.port.Write(raw)
	d.sleep(d.pacing)
	monitoring.ObserveCommand(cmd.Op.String(), err, start)

	if err != nil {
		err = &TransportError{Stage: StageSend, Port: d.port.Name(), Command: cmd.Op.String(), Err: err}
		d.lastErr = err
		return err
	}

	d.sent++
	return nil
}
