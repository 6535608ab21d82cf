package sim

import (
	"fmt"
	"sync"

	"psoc6-go/errcode"
)

// I2CDevice answers transactions addressed to it. w is what the controller
// wrote, r is filled by the device; either may be empty.
type I2CDevice interface {
	Tx(w, r []byte) error
}

// I2CTx records one transaction.
type I2CTx struct {
	Addr uint16
	W    []byte
	RLen int
	Err  error
}

// I2CBus routes transactions by address. Missing addresses NACK.
type I2CBus struct {
	mu   sync.Mutex
	devs map[uint16]I2CDevice
	log  []I2CTx
}

func newI2CBus() *I2CBus { return &I2CBus{devs: make(map[uint16]I2CDevice)} }

func (b *I2CBus) Attach(addr uint16, dev I2CDevice) {
	b.mu.Lock()
	b.devs[addr] = dev
	b.mu.Unlock()
}

func (b *I2CBus) Detach(addr uint16) {
	b.mu.Lock()
	delete(b.devs, addr)
	b.mu.Unlock()
}

func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	dev := b.devs[addr]
	b.mu.Unlock()

	var err error
	if dev == nil {
		err = &errcode.E{C: errcode.NACK, Op: "sim.i2c", Msg: fmt.Sprintf("no device at 0x%02X", addr)}
	} else {
		err = dev.Tx(w, r)
	}

	b.mu.Lock()
	b.log = append(b.log, I2CTx{Addr: addr, W: append([]byte(nil), w...), RLen: len(r), Err: err})
	b.mu.Unlock()
	return err
}

// Log returns every transaction seen so far, scans included.
func (b *I2CBus) Log() []I2CTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]I2CTx(nil), b.log...)
}

// Writes returns only the successful transactions to addr that wrote data.
func (b *I2CBus) Writes(addr uint16) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, t := range b.log {
		if t.Addr == addr && t.Err == nil && len(t.W) > 0 {
			out = append(out, t.W)
		}
	}
	return out
}

// RegisterFile is a device with 256 byte-wide registers and an
// auto-incrementing register pointer.
type RegisterFile struct {
	mu   sync.Mutex
	regs [256]byte
	ptr  uint8
}

func NewRegisterFile(init map[uint8]byte) *RegisterFile {
	f := &RegisterFile{}
	for k, v := range init {
		f.regs[k] = v
	}
	return f
}

func (f *RegisterFile) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(w) > 0 {
		f.ptr = w[0]
		for _, b := range w[1:] {
			f.regs[f.ptr] = b
			f.ptr++
		}
	}
	for i := range r {
		r[i] = f.regs[f.ptr]
		f.ptr++
	}
	return nil
}

func (f *RegisterFile) Reg(a uint8) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[a]
}

func (f *RegisterFile) SetReg(a uint8, v byte) {
	f.mu.Lock()
	f.regs[a] = v
	f.mu.Unlock()
}
