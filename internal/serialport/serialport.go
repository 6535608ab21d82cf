// Package serialport routes hal UARTs to host serial devices (USB-UART
// adapters, /dev/ttyAMA0) with go.bug.st/serial, on top of any other backend.
package serialport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/types"
)

// Port is the subset of serial.Port the overlay uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Drain() error
	Close() error
}

// Overlay serves UART from host serial devices and everything else from
// the wrapped backend.
type Overlay struct {
	hal.Backend
	// Ports maps UART ids to device paths.
	Ports map[int]string
	// Open defaults to serial.Open.
	Open func(name string, mode *serial.Mode) (Port, error)
}

func openSerial(name string, mode *serial.Mode) (Port, error) { return serial.Open(name, mode) }

func (o *Overlay) Name() string { return o.Backend.Name() + "+serial" }

func (o *Overlay) UART(cfg hal.UARTConfig) (hal.SerialPort, error) {
	name, ok := o.Ports[cfg.ID]
	if !ok {
		return o.Backend.UART(cfg)
	}
	open := o.Open
	if open == nil {
		open = openSerial
	}
	p, err := open(name, ModeFor(cfg))
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownBus, "serialport.open "+name, err)
	}
	if err := p.SetReadTimeout(pollInterval); err != nil {
		_ = p.Close()
		return nil, errcode.Wrap(errcode.Unsupported, "serialport.timeout", err)
	}
	return &port{p: p, closed: make(chan struct{})}, nil
}

// ModeFor converts a UART configuration to serial line settings.
func ModeFor(cfg hal.UARTConfig) *serial.Mode {
	m := &serial.Mode{BaudRate: int(cfg.Baudrate), DataBits: int(cfg.Bits)}
	switch cfg.Parity {
	case types.ParityEven:
		m.Parity = serial.EvenParity
	case types.ParityOdd:
		m.Parity = serial.OddParity
	default:
		m.Parity = serial.NoParity
	}
	if cfg.Stop == 2 {
		m.StopBits = serial.TwoStopBits
	} else {
		m.StopBits = serial.OneStopBit
	}
	return m
}

// List returns the serial devices present on the host.
func List() ([]string, error) { return serial.GetPortsList() }

const pollInterval = 100 * time.Millisecond

type port struct {
	p Port

	once   sync.Once
	closed chan struct{}
}

func (s *port) Write(b []byte) (int, error) { return s.p.Write(b) }
func (s *port) Drain() error                { return s.p.Drain() }

// RecvSomeContext polls with the short read timeout until data, ctx end or
// close.
func (s *port) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-s.closed:
			return 0, errcode.New(errcode.Closed, "serialport.read", "port closed")
		default:
		}
		n, err := s.p.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			var pe *serial.PortError
			if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
				return 0, errcode.Wrap(errcode.Closed, "serialport.read", err)
			}
			return 0, err
		}
	}
}

func (s *port) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.p.Close()
	})
	return err
}
