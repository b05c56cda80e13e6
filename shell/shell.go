// Package shell provides an interactive prompt that keeps one remote
// session open while the user adjusts the supply.
package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/chzyer/readline"

	"github.com/IamTheCarl/psu/driver"
)

// Interpreter executes shell statements against a supply.
type Interpreter struct {
	ps     driver.PowerSupply
	out    io.Writer
	parser *participle.Parser[Statement]
}

func NewInterpreter(ps driver.PowerSupply, out io.Writer) (*Interpreter, error) {
	parser, err := newParser()
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}
	return &Interpreter{ps: ps, out: out, parser: parser}, nil
}

// Exec runs one line. quit is set when the user asked to leave.
func (in *Interpreter) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	stmt, err := in.parser.ParseString("", line)
	if err != nil {
		return false, fmt.Errorf("%w (type 'help' for commands)", err)
	}

	switch {
	case stmt.Voltage != nil:
		if err := in.ps.SetVoltageLimit(ctx, *stmt.Voltage); err != nil {
			return false, err
		}
		fmt.Fprintf(in.out, "Voltage limit set to %.1f V\n", *stmt.Voltage)

	case stmt.Current != nil:
		if err := in.ps.SetCurrentLimit(ctx, *stmt.Current); err != nil {
			return false, err
		}
		fmt.Fprintf(in.out, "Current limit set to %.2f A\n", *stmt.Current)

	case stmt.Output != nil:
		on := strings.EqualFold(*stmt.Output, "on")
		if err := in.ps.EnableOutput(ctx, on); err != nil {
			return false, err
		}
		if on {
			fmt.Fprintln(in.out, "Output enabled")
		} else {
			fmt.Fprintln(in.out, "Output disabled")
		}

	case stmt.Status:
		sr, ok := in.ps.(driver.StatusReporter)
		if !ok {
			return false, driver.Unsupported(fmt.Sprintf("%T", in.ps), "status")
		}
		st := sr.Status()
		fmt.Fprintf(in.out, "Session %s on %s (address %02d): %s, %d commands sent\n",
			st.SessionID, st.Port, st.Address, st.State, st.Commands)
		if st.LastError != "" {
			fmt.Fprintf(in.out, "Last error: %s\n", st.LastError)
		}

	case stmt.Help:
		in.printHelp()

	case stmt.Quit:
		return true, nil
	}
	return false, nil
}

func (in *Interpreter) printHelp() {
	fmt.Fprintln(in.out, `Power supply commands:
    volt <volts>   - Set the voltage limit (e.g. volt 12.5)
    curr <amps>    - Set the current limit (e.g. curr 0.25)
    on | off       - Switch the output
    status         - Show the session
    help           - Show this help
    quit           - Leave (the output stays as it is)`)
}

// Shell is the readline front end of an Interpreter.
type Shell struct {
	in        *Interpreter
	rl        *readline.Instance
	closeOnce sync.Once
}

// New creates a shell for ps. The prompt shows the supply name.
func New(ps driver.PowerSupply, name string) (*Shell, error) {
	return newShell(ps, &readline.Config{
		Prompt:          name + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func newShell(ps driver.PowerSupply, cfg *readline.Config) (*Shell, error) {
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	in, err := NewInterpreter(ps, rl.Stdout())
	if err != nil {
		rl.Close()
		return nil, err
	}
	return &Shell{in: in, rl: rl}, nil
}

// Stdout coordinates log output with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *Shell) close() {
	s.closeOnce.Do(func() { s.rl.Close() })
}

// Run reads commands until quit, EOF or ctx is done. Cancelling ctx closes
// the prompt even while it waits for input. Command errors are printed and
// the prompt continues; the session is left for the caller to close.
func (s *Shell) Run(ctx context.Context) error {
	defer s.close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-done:
		}
	}()

	s.in.printHelp()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}

		quit, err := s.in.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.rl.Stderr(), "Error: %v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}
