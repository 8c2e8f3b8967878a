// Package arena implements the fixed-size bump region owned by a connection slot.
// Every per-request allocation is carved out of the region and invalidated
// en masse by Reset between requests.
package arena

import (
	"errors"
	"unsafe"
)

// DefaultSize is the region size used when New is given a non-positive size (64 KiB).
const DefaultSize = 1 << 16

const align = 8

// ErrExhausted is returned when an allocation does not fit in the remaining region.
var ErrExhausted = errors.New("arena: region exhausted")

// Arena is a bump allocator over one fixed backing region.
// It never grows: an allocation that does not fit fails with ErrExhausted.
// Not goroutine-safe; a slot's worker is its only user.
type Arena struct {
	buf        []byte
	offset     int
	highWater  int
	generation uint64
}

// New creates an Arena backed by size bytes.
func New(size int) *Arena {
	if size <= 0 {
		size = DefaultSize
	}
	return &Arena{
		buf:        make([]byte, size),
		generation: 1,
	}
}

// Alloc returns n zeroed bytes from the region.
// Returns nil, nil when n <= 0.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	off := (a.offset + align - 1) &^ (align - 1)
	if off+n > len(a.buf) || off+n < off {
		return nil, ErrExhausted
	}

	b := a.buf[off : off+n : off+n]
	clear(b)

	a.offset = off + n
	if a.offset > a.highWater {
		a.highWater = a.offset
	}
	return b, nil
}

// Bytes copies src into the region.
func (a *Arena) Bytes(src []byte) ([]byte, error) {
	b, err := a.Alloc(len(src))
	if err != nil {
		return nil, err
	}
	copy(b, src)
	return b, nil
}

// String copies s into the region and returns a string sharing the arena memory.
// The result must not be used after the next Reset.
func (a *Arena) String(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	b, err := a.Alloc(len(s))
	if err != nil {
		return "", err
	}
	copy(b, s)
	return unsafe.String(&b[0], len(b)), nil
}

// StringBytes copies src into the region and returns it as a string.
func (a *Arena) StringBytes(src []byte) (string, error) {
	if len(src) == 0 {
		return "", nil
	}
	b, err := a.Bytes(src)
	if err != nil {
		return "", err
	}
	return unsafe.String(&b[0], len(b)), nil
}

// Reset invalidates every prior allocation and advances the generation.
// The backing region is kept.
func (a *Arena) Reset() {
	a.offset = 0
	a.generation++
}

// Generation identifies the current allocation epoch; it changes on every Reset.
func (a *Arena) Generation() uint64 {
	return a.generation
}

// Used returns the number of bytes consumed since the last Reset, alignment included.
func (a *Arena) Used() int {
	return a.offset
}

// Cap returns the size of the backing region.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Remaining returns the bytes still available before alignment.
func (a *Arena) Remaining() int {
	return len(a.buf) - a.offset
}

// HighWater returns the largest Used value observed over the arena's lifetime.
func (a *Arena) HighWater() int {
	return a.highWater
}
