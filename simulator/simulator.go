// Package simulator pretends to be a BK Precision 196X behind a
// serial-to-TCP bridge. Point a supply entry at tcp://localhost:9999 to use
// it without a bench.
package simulator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/IamTheCarl/psu/logger"
	"github.com/IamTheCarl/psu/protocol"
)

// Server feeds every connection into one front panel, which outlives the
// connections like the real one would.
type Server struct {
	mu    sync.Mutex
	panel *protocol.Panel
	log   *logrus.Entry

	wg     sync.WaitGroup
	conns  map[net.Conn]struct{}
	closed bool
}

// New creates a simulated supply listening on the bus address.
func New(address uint8) (*Server, error) {
	if address > protocol.MaxAddress {
		return nil, fmt.Errorf("address %d is out of range 0-%d: %w", address, protocol.MaxAddress, protocol.ErrAddressOutOfRange)
	}
	return &Server{
		panel: protocol.NewPanel(address),
		log:   logger.L().WithFields(logrus.Fields{"component": "simulator", "address": address}),
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// State is what the front panel currently shows.
func (s *Server) State() protocol.PanelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.State()
}

// Serve accepts connections on l until ctx is done. It closes l and every
// open connection before returning.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.log.Infof("Simulating BK Precision 196X on tcp://%s", l.Addr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		l.Close()
		s.closeConns()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case open && s.closed:
		conn.Close()
	case open:
		s.conns[conn] = struct{}{}
	default:
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	log := s.log.WithField("client", conn.RemoteAddr().String())
	log.Info("client connected")

	sc := bufio.NewScanner(conn)
	sc.Split(protocol.SplitLines)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		logger.Protocol(log.Data, "RECV", line)
		s.feed(log, line)
	}
	log.Info("client disconnected")
}

func (s *Server) feed(log *logrus.Entry, line []byte) {
	s.mu.Lock()
	applied, err := s.panel.Feed(line)
	state := s.panel.State()
	s.mu.Unlock()

	switch {
	case err != nil:
		log.WithError(err).Warnf("%s rejected", line)
	case !applied:
		log.Debugf("%s ignored, other address", line)
	default:
		log.WithFields(logrus.Fields{
			"remote":  state.Remote,
			"voltage": state.Voltage,
			"current": state.Current,
			"output":  state.OutputEnabled,
		}).Infof("%s applied", line)
	}
}
