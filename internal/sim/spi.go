package sim

import "sync"

// SPIDevice produces one MISO byte for each MOSI byte. Devices may also
// implement Begin and End, called when chip select falls and rises, or
// around each transfer when no chip select is wired.
type SPIDevice interface {
	Exchange(mosi byte) byte
}

// Loopback echoes MOSI on MISO, like a jumper between the two pins.
type Loopback struct{}

func (Loopback) Exchange(b byte) byte { return b }

// SPIBus carries whole transfers to one device and records MOSI traffic.
type SPIBus struct {
	mu   sync.Mutex
	dev  SPIDevice
	mode uint8
	baud uint32
	cs   bool
	sent []byte
}

func (b *SPIBus) Attach(dev SPIDevice) {
	b.mu.Lock()
	b.dev = dev
	b.mu.Unlock()
}

func (b *SPIBus) setMode(mode uint8, baud uint32) {
	b.mu.Lock()
	b.mode, b.baud = mode, baud
	b.mu.Unlock()
}

// Mode returns the SPI mode and baudrate of the last open.
func (b *SPIBus) Mode() (uint8, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode, b.baud
}

func (b *SPIBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.cs {
		b.begin()
	}
	n := max(len(w), len(r))
	for i := range n {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in := b.dev.Exchange(out)
		b.sent = append(b.sent, out)
		if i < len(r) {
			r[i] = in
		}
	}
	if !b.cs {
		b.end()
	}
	return nil
}

func (b *SPIBus) begin() {
	if e, ok := b.dev.(interface{ Begin() }); ok {
		e.Begin()
	}
}

func (b *SPIBus) end() {
	if e, ok := b.dev.(interface{ End() }); ok {
		e.End()
	}
}

// chipSelect frames transactions from an active-low select line.
func (b *SPIBus) chipSelect(level bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if level {
		b.end()
	} else {
		b.begin()
	}
}

func (b *SPIBus) Transfer(v byte) (byte, error) {
	var r [1]byte
	err := b.Tx([]byte{v}, r[:])
	return r[0], err
}

// Sent returns every MOSI byte clocked so far.
func (b *SPIBus) Sent() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.sent...)
}

// SPIRegisters is a register-mapped SPI peripheral. The first byte of a
// transaction is an address; bit 7 set means read. Later bytes read or write
// consecutive registers.
type SPIRegisters struct {
	mu    sync.Mutex
	regs  [128]byte
	addr  uint8
	read  bool
	first bool
}

func NewSPIRegisters(init map[uint8]byte) *SPIRegisters {
	d := &SPIRegisters{}
	for k, v := range init {
		d.regs[k&0x7F] = v
	}
	return d
}

func (d *SPIRegisters) Begin() {
	d.mu.Lock()
	d.first = true
	d.mu.Unlock()
}

func (d *SPIRegisters) End() {}

func (d *SPIRegisters) Exchange(b byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.first {
		d.first = false
		d.read = b&0x80 != 0
		d.addr = b & 0x7F
		return 0
	}
	if d.read {
		v := d.regs[d.addr]
		d.addr = (d.addr + 1) & 0x7F
		return v
	}
	d.regs[d.addr] = b
	d.addr = (d.addr + 1) & 0x7F
	return 0
}

func (d *SPIRegisters) Reg(a uint8) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[a&0x7F]
}
