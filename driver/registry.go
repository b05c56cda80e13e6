package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/IamTheCarl/psu/protocol"
)

// Kind is the config tag of a supply family.
type Kind string

const (
	KindBK196X Kind = "bk_precision_196x"
)

// Kinds lists every supported family.
func Kinds() []Kind {
	return []Kind{KindBK196X}
}

// SupplyConfig is the closed set of per-family configurations. Adding a
// family means adding a variant here, a driver file, and an arm in Open.
type SupplyConfig interface {
	Kind() Kind
	Validate() error

	supplyConfig()
}

// Open connects to the supply described by cfg.
func Open(ctx context.Context, cfg SupplyConfig, opts ...Option) (PowerSupply, error) {
	switch c := cfg.(type) {
	case BK196XConfig:
		return OpenBK196X(ctx, c, opts...)
	case *BK196XConfig:
		if c == nil {
			return nil, &ConfigError{Msg: "nil supply config"}
		}
		return OpenBK196X(ctx, *c, opts...)
	default:
		return nil, fmt.Errorf("supply config %T: %w", cfg, ErrUnsupported)
	}
}

type options struct {
	openPort PortOpener
	pacing   time.Duration
	rounding protocol.RoundingMode
	sleep    func(time.Duration)
}

// Option adjusts how a driver is opened.
type Option func(*options)

func defaultOptions() options {
	return options{
		openPort: OpenPort,
		pacing:   -1,
		rounding: protocol.RoundHalfAwayFromZero,
		sleep:    time.Sleep,
	}
}

// WithPortOpener replaces the serial/TCP opener, e.g. with MockPort.Opener.
func WithPortOpener(open PortOpener) Option {
	return func(o *options) { o.openPort = open }
}

// WithPacing overrides the pause after every command. Real hardware needs
// the default; shorter values are for tests and simulators.
func WithPacing(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.pacing = d
	}
}

// WithRounding selects how limits landing on a half unit are rounded.
func WithRounding(mode protocol.RoundingMode) Option {
	return func(o *options) { o.rounding = mode }
}

// WithSleep replaces time.Sleep for the pacing wait.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) { o.sleep = sleep }
}
