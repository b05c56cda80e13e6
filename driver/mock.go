package driver

import (
	"io"
	"sync"
	"time"

	"github.com/IamTheCarl/psu/protocol"
)

// Write is one chunk of bytes accepted by a MockPort.
type Write struct {
	Data []byte
	At   time.Time
}

// MockPort is an in-memory Port that records every write with a timestamp
// and feeds it to a simulated front panel.
type MockPort struct {
	mu sync.Mutex

	name     string
	baudRate int
	writes   []Write
	attempts int
	closed   bool
	panel    *protocol.Panel
	panelErr []error

	failAt   int
	writeErr error
	closeErr error
}

var _ Port = (*MockPort)(nil)

// NewMockPort simulates a supply listening on address.
func NewMockPort(address uint8) *MockPort {
	return &MockPort{
		name:   "mock",
		panel:  protocol.NewPanel(address),
		failAt: -1,
	}
}

// Opener returns a PortOpener handing out this port.
func (m *MockPort) Opener() PortOpener {
	return func(name string, baudRate int) (Port, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.name = name
		m.baudRate = baudRate
		return m, nil
	}
}

// FailWriteAt makes the n-th write attempt (counting from zero) return err.
func (m *MockPort) FailWriteAt(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n
	m.writeErr = err
}

// FailClose makes Close return err after marking the port closed.
func (m *MockPort) FailClose(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}

	attempt := m.attempts
	m.attempts++
	if attempt == m.failAt {
		return 0, m.writeErr
	}

	m.writes = append(m.writes, Write{Data: append([]byte(nil), p...), At: time.Now()})
	if _, err := m.panel.Feed(p); err != nil {
		m.panelErr = append(m.panelErr, err)
	}
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *MockPort) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// BaudRate is the rate the port was opened with.
func (m *MockPort) BaudRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baudRate
}

func (m *MockPort) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// Lines returns the accepted writes as strings.
func (m *MockPort) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.writes))
	for i, w := range m.writes {
		lines[i] = string(w.Data)
	}
	return lines
}

func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Panel reports what the simulated supply would display.
func (m *MockPort) Panel() protocol.PanelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panel.State()
}

// PanelErrors are the commands the simulated supply refused.
func (m *MockPort) PanelErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.panelErr...)
}
