package hal

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
)

// I2C scan window; 0x00-0x07 and 0x78-0x7F are reserved addresses.
const (
	ScanFirst = 0x08
	ScanLast  = 0x77
	MaxAddr   = 0x7F
)

// i2cReq carries private copies of the caller's buffers. The owner only
// touches those, so a caller that gave up on a slow transaction can reuse
// its own slices at once.
type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error
}

// i2cOwner serialises every transaction on one controller through a single
// goroutine.
type i2cOwner struct {
	bus  drivers.I2C
	reqs chan i2cReq
	quit chan struct{}
	wg   sync.WaitGroup
}

func newI2COwner(bus drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		bus:  bus,
		reqs: make(chan i2cReq, 16),
		quit: make(chan struct{}),
	}
	o.wg.Add(1)
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	defer o.wg.Done()
	for {
		select {
		case req := <-o.reqs:
			err := o.bus.Tx(req.addr, req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() {
	close(o.quit)
	o.wg.Wait()
}

// I2C is an open I2C controller. It satisfies drivers.I2C so TinyGo sensor
// drivers can use it directly.
type I2C struct {
	m       *Machine
	name    string
	cfg     I2CConfig
	o       *i2cOwner
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

var _ drivers.I2C = (*I2C)(nil)

func (m *Machine) I2C(cfg I2CConfig) (*I2C, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	name := "i2c" + strconv.Itoa(cfg.ID)
	if err := m.claimBus(name, cfg.SCL, cfg.SDA); err != nil {
		return nil, err
	}
	bus, err := m.be.I2C(cfg)
	if err != nil {
		m.releaseBus(name, cfg.SCL, cfg.SDA)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), name, err)
	}
	i := &I2C{m: m, name: name, cfg: cfg, o: newI2COwner(bus), timeout: cfg.Timeout}
	m.track(i, func() { _ = i.Deinit() })
	m.log.Debug("i2c configured", "bus", name, "freq", cfg.Freq)
	return i, nil
}

func (i *I2C) Config() I2CConfig { return i.cfg }

// Tx runs one write-then-read transaction. A queue that stays full for the
// timeout yields Busy; a transaction that does not finish in time yields
// Timeout. r is written only when the transaction succeeds in time.
func (i *I2C) Tx(addr uint16, w, r []byte) error {
	if i == nil || i.o == nil {
		return errcode.New(errcode.NotInitialised, "i2c.tx", "i2c not initialised")
	}
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return errcode.New(errcode.NotInitialised, "i2c.tx", i.name+" is closed")
	}
	if addr > MaxAddr {
		return errcode.New(errcode.InvalidParams, "i2c.tx", "address "+hexAddr(addr)+" out of range")
	}
	req := i2cReq{addr: addr, w: bytes.Clone(w), done: make(chan error, 1)}
	if len(r) > 0 {
		req.r = make([]byte, len(r))
	}

	t := i.m.clk.NewTimer(i.timeout)
	defer t.Stop()
	select {
	case i.o.reqs <- req:
	case <-t.Chan():
		return errcode.New(errcode.Busy, "i2c.tx", i.name)
	case <-i.o.quit:
		return errcode.New(errcode.NotInitialised, "i2c.tx", i.name+" is closed")
	}
	select {
	case err := <-req.done:
		if err != nil {
			return errcode.Wrap(errcode.MapDriverErr(err), "i2c.tx "+hexAddr(addr), err)
		}
		copy(r, req.r)
		return nil
	case <-t.Chan():
		return errcode.New(errcode.Timeout, "i2c.tx", hexAddr(addr))
	}
}

// Scan probes every non-reserved address with a one-byte read and returns
// those that acknowledge, in ascending order.
func (i *I2C) Scan() ([]uint16, error) {
	var found []uint16
	var buf [1]byte
	for a := uint16(ScanFirst); a <= ScanLast; a++ {
		err := i.Tx(a, nil, buf[:])
		switch {
		case err == nil:
			found = append(found, a)
		case errcode.Of(err) == errcode.NotInitialised:
			return nil, err
		}
	}
	i.m.log.Debug("i2c scan", "bus", i.name, "found", len(found))
	return found, nil
}

func (i *I2C) ReadFrom(addr uint16, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errcode.New(errcode.InvalidParams, "i2c.readfrom", "length must be positive")
	}
	buf := make([]byte, n)
	if err := i.Tx(addr, nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (i *I2C) WriteTo(addr uint16, data []byte) error {
	return i.Tx(addr, data, nil)
}

// ReadFromMem writes the register address then reads n bytes in one
// transaction (repeated start).
func (i *I2C) ReadFromMem(addr uint16, reg uint8, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errcode.New(errcode.InvalidParams, "i2c.readfrom_mem", "length must be positive")
	}
	buf := make([]byte, n)
	if err := i.Tx(addr, []byte{reg}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (i *I2C) WriteToMem(addr uint16, reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	return i.Tx(addr, w, nil)
}

// Deinit stops the owner goroutine and releases the bus. Idempotent.
func (i *I2C) Deinit() error {
	if i == nil || i.o == nil {
		return nil
	}
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	i.o.stop()
	var err error
	if c, ok := i.o.bus.(interface{ Close() error }); ok {
		err = c.Close()
	}
	i.m.releaseBus(i.name, i.cfg.SCL, i.cfg.SDA)
	i.m.untrack(i)
	return err
}

// IsNACK reports whether err means no device acknowledged.
func IsNACK(err error) bool { return errors.Is(err, errcode.NACK) }

func hexAddr(a uint16) string { return fmt.Sprintf("0x%02X", a) }
