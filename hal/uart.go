package hal

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"psoc6-go/errcode"
	"psoc6-go/types"
	"psoc6-go/x/shmring"
	"psoc6-go/x/timex"
)

// UART is an open serial port. One reader goroutine moves received bytes
// into a ring; reads consume from the ring and wait up to the configured
// timeout for data.
type UART struct {
	m    *Machine
	name string
	cfg  UARTConfig
	port SerialPort
	rx   *shmring.Ring

	rmu sync.Mutex // single consumer
	wmu sync.Mutex

	rxBytes atomic.Uint64
	txBytes atomic.Uint64
	rxDrops atomic.Uint64

	closed atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *Machine) UART(cfg UARTConfig) (*UART, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	name := "uart" + strconv.Itoa(cfg.ID)
	if err := m.claimBus(name, cfg.TX, cfg.RX); err != nil {
		return nil, err
	}
	port, err := m.be.UART(cfg)
	if err != nil {
		m.releaseBus(name, cfg.TX, cfg.RX)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), name, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	u := &UART{
		m:      m,
		name:   name,
		cfg:    cfg,
		port:   port,
		rx:     shmring.New(shmring.NextPow2(cfg.RXBuffer)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go u.reader(ctx)
	m.track(u, func() { _ = u.Deinit() })
	m.log.Debug("uart configured", "port", name, "baud", cfg.Baudrate, "format", cfg.Format().String())
	return u, nil
}

func (u *UART) reader(ctx context.Context) {
	defer close(u.done)
	buf := make([]byte, 64)
	for {
		n, err := u.port.RecvSomeContext(ctx, buf)
		if n > 0 {
			w := u.rx.WriteFrom(buf[:n])
			u.rxBytes.Add(uint64(n))
			if w < n {
				u.rxDrops.Add(uint64(n - w))
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errcode.Of(err) == errcode.Closed {
				return
			}
			u.m.log.Debug("uart receive error", "port", u.name, "err", err)
			if !timex.Sleep(ctx, u.m.clk, 10*time.Millisecond) {
				return
			}
		}
	}
}

func (u *UART) Config() UARTConfig { return u.cfg }

func (u *UART) check(op string) error {
	if u == nil || u.port == nil {
		return errcode.New(errcode.NotInitialised, op, "uart not initialised")
	}
	if u.closed.Load() {
		return errcode.New(errcode.NotInitialised, op, u.name+" is closed")
	}
	return nil
}

func (u *UART) Write(p []byte) (int, error) {
	if err := u.check("uart.write"); err != nil {
		return 0, err
	}
	u.wmu.Lock()
	defer u.wmu.Unlock()
	n, err := u.port.Write(p)
	u.txBytes.Add(uint64(n))
	if err != nil {
		return n, errcode.Wrap(errcode.MapDriverErr(err), "uart.write", err)
	}
	return n, nil
}

func (u *UART) WriteString(s string) (int, error) { return u.Write([]byte(s)) }

// Any reports how many received bytes are waiting.
func (u *UART) Any() int {
	if u.check("uart.any") != nil {
		return 0
	}
	return u.rx.Available()
}

// wait blocks until cond holds or the read timeout passes.
func (u *UART) wait(cond func() bool) bool {
	if cond() {
		return true
	}
	if u.cfg.Timeout < 0 {
		return false
	}
	t := u.m.clk.NewTimer(u.cfg.Timeout)
	defer t.Stop()
	for {
		select {
		case <-u.rx.Readable():
			if cond() {
				return true
			}
		case <-t.Chan():
			return cond()
		case <-u.done:
			return cond()
		}
	}
}

// Read returns up to n bytes, waiting up to the timeout for all n to
// arrive. It returns nil, nil when nothing arrived.
func (u *UART) Read(n int) ([]byte, error) {
	if err := u.check("uart.read"); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errcode.New(errcode.InvalidParams, "uart.read", "length must be positive")
	}
	u.rmu.Lock()
	defer u.rmu.Unlock()
	u.wait(func() bool { return u.rx.Available() >= min(n, u.rx.Cap()) })
	return u.take(n), nil
}

// ReadAll returns everything buffered, waiting up to the timeout for the
// first byte when the buffer is empty.
func (u *UART) ReadAll() ([]byte, error) {
	if err := u.check("uart.read"); err != nil {
		return nil, err
	}
	u.rmu.Lock()
	defer u.rmu.Unlock()
	u.wait(func() bool { return u.rx.Available() > 0 })
	return u.take(u.rx.Available()), nil
}

// ReadLine returns one line including its '\n'. On timeout it returns the
// partial line, or nil when nothing arrived. A full ring without a newline
// is returned as is.
func (u *UART) ReadLine() ([]byte, error) {
	if err := u.check("uart.readline"); err != nil {
		return nil, err
	}
	u.rmu.Lock()
	defer u.rmu.Unlock()
	u.wait(func() bool { return u.rx.IndexByte('\n') >= 0 || u.rx.Space() == 0 })
	if i := u.rx.IndexByte('\n'); i >= 0 {
		return u.take(i + 1), nil
	}
	return u.take(u.rx.Available()), nil
}

func (u *UART) take(n int) []byte {
	n = min(n, u.rx.Available())
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	return out[:u.rx.ReadInto(out)]
}

// Flush waits for queued TX bytes where the port supports it.
func (u *UART) Flush() error {
	if err := u.check("uart.flush"); err != nil {
		return err
	}
	if d, ok := u.port.(Drainer); ok {
		u.wmu.Lock()
		defer u.wmu.Unlock()
		if err := d.Drain(); err != nil {
			return errcode.Wrap(errcode.MapDriverErr(err), "uart.flush", err)
		}
	}
	return nil
}

func (u *UART) Stats() types.SerialStats {
	return types.SerialStats{
		RXBytes: u.rxBytes.Load(),
		TXBytes: u.txBytes.Load(),
		RXDrops: u.rxDrops.Load(),
	}
}

// Deinit stops the reader, closes the port and releases the pins.
func (u *UART) Deinit() error {
	if u == nil || u.port == nil {
		return nil
	}
	if !u.closed.CompareAndSwap(false, true) {
		return nil
	}
	u.cancel()
	err := u.port.Close()
	<-u.done
	u.m.releaseBus(u.name, u.cfg.TX, u.cfg.RX)
	u.m.untrack(u)
	if err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "uart.deinit", err)
	}
	return nil
}
