package sim

import (
	"context"
	"sync"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

// Serial is both ends of a simulated UART: firmware sees a hal.SerialPort,
// tests use Inject and Sent as the remote terminal. An optional Responder
// answers each write, e.g. an echo peer.
type Serial struct {
	mu     sync.Mutex
	rx     []byte
	tx     []byte
	baud   uint32
	format types.SerialFormat
	closed chan struct{}
	ready  chan struct{}

	Responder func(written []byte) []byte
}

func newSerial() *Serial {
	c := make(chan struct{})
	close(c)
	return &Serial{closed: c, ready: make(chan struct{}, 1)}
}

func (s *Serial) open(baud uint32, f types.SerialFormat) {
	s.mu.Lock()
	s.baud, s.format = baud, f
	s.closed = make(chan struct{})
	s.mu.Unlock()
}

// Settings returns the line settings of the last open.
func (s *Serial) Settings() (uint32, types.SerialFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud, s.format
}

// Inject queues bytes as if the remote end had sent them.
func (s *Serial) Inject(p []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, p...)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Serial) InjectString(v string) { s.Inject([]byte(v)) }

// Sent returns everything firmware has written.
func (s *Serial) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.tx...)
}

// TakeSent returns and clears the written bytes.
func (s *Serial) TakeSent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.tx
	s.tx = nil
	return out
}

func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return 0, errcode.New(errcode.Closed, "sim.uart", "port closed")
	default:
	}
	s.tx = append(s.tx, p...)
	resp := s.Responder
	s.mu.Unlock()
	if resp != nil {
		if out := resp(append([]byte(nil), p...)); len(out) > 0 {
			s.Inject(out)
		}
	}
	return len(p), nil
}

func (s *Serial) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		if len(s.rx) > 0 {
			n := copy(p, s.rx)
			s.rx = s.rx[n:]
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-closed:
			return 0, errcode.New(errcode.Closed, "sim.uart", "port closed")
		case <-s.ready:
		}
	}
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// Drain is immediate: the simulated wire has no TX FIFO.
func (s *Serial) Drain() error { return nil }
