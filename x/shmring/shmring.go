// Package shmring is a lock-free single-producer single-consumer byte ring
// used as the receive buffer behind UART handles.
package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
// The producer calls WriteFrom; the consumer calls ReadInto, Peek, IndexByte
// and Discard. Available and Space are safe from either side.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // coalesced "new data" token
	writable chan struct{} // full -> not full edge
}

// New returns a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

// NextPow2 rounds n up to a valid ring size.
func NextPow2(n int) int {
	s := 2
	for s < n {
		s <<= 1
	}
	return s
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

func (r *Ring) Cap() int { return len(r.buf) }

func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Producer side

// WriteFrom copies as much of src as fits and returns the count.
// Every successful write posts a Readable token so a consumer waiting for
// more than one byte is woken on each arrival.
func (r *Ring) WriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	space := int(r.size() - (wr - rd))
	if space <= 0 {
		return 0
	}
	n = min(len(src), space)

	wrIdx := wr & r.mask
	first := min(int(r.size()-wrIdx), n)
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	select {
	case r.readable <- struct{}{}:
	default:
	}
	return n
}

// Consumer side

// Peek copies up to len(dst) buffered bytes without consuming them.
func (r *Ring) Peek(dst []byte) (n int) {
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	n = min(int(wr-rd), len(dst))
	if n <= 0 {
		return 0
	}
	rdIdx := rd & r.mask
	first := min(int(r.size()-rdIdx), n)
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	return n
}

// IndexByte returns the offset of the first c among buffered bytes, or -1.
func (r *Ring) IndexByte(c byte) int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	for i := rd; i != wr; i++ {
		if r.buf[i&r.mask] == c {
			return int(i - rd)
		}
	}
	return -1
}

// Discard drops up to n buffered bytes and returns the count dropped.
func (r *Ring) Discard(n int) int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	n = min(int(wr-rd), n)
	if n <= 0 {
		return 0
	}
	r.advance(rd, wr, uint32(n))
	return n
}

// ReadInto moves up to len(dst) buffered bytes into dst.
func (r *Ring) ReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	n = r.Peek(dst)
	if n == 0 {
		return 0
	}
	r.advance(r.rd.Load(), r.wr.Load(), uint32(n))
	return n
}

func (r *Ring) advance(rd, wr, n uint32) {
	r.rd.Store(rd + n) // release
	if wr-rd == r.size() {
		select {
		case r.writable <- struct{}{}:
		default:
		}
	}
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }
