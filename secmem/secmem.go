// Package secmem provides byte buffers for plaintext, passphrases and
// derived keys: locked in memory where the OS allows it, and always zeroed
// on release, on every exit path including error paths. No other package in
// this module may hold long-lived plaintext outside a *Buffer.
package secmem

import (
	"sync"
)

// Buffer is a uniquely-owned region of secure memory. The zero value is not
// usable; obtain one from an Allocator. A Buffer must not be copied.
type Buffer struct {
	mu       sync.Mutex
	b        []byte
	locked   bool
	released bool
}

// Bytes returns the buffer's backing slice. The slice is only valid until
// Release is called; callers must not retain it past that point.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.b
}

// Len reports the buffer's length.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.b)
}

// Release zeroes the buffer's contents and unlocks its pages. It is safe to
// call Release more than once; subsequent calls are no-ops. Every function
// that receives ownership of a Buffer must call Release on all exit paths.
func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	zero(b.b)
	if b.locked {
		_ = munlock(b.b)
	}
	b.released = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Allocator produces secure buffers. Swappable for tests (see MockAllocator)
// and for platforms without mlock support.
type Allocator interface {
	Alloc(n int) (*Buffer, error)
}

// OSAllocator is the production Allocator: it mlocks the buffer's pages when
// the platform supports it and silently degrades (zero-on-release still
// applies) when it does not.
type OSAllocator struct{}

// Alloc returns a new n-byte Buffer.
func (OSAllocator) Alloc(n int) (*Buffer, error) {
	buf := &Buffer{b: make([]byte, n)}
	if n > 0 {
		if err := mlock(buf.b); err == nil {
			buf.locked = true
		}
	}
	return buf, nil
}

// New wraps an already-owned slice as a secure Buffer. Ownership of b
// transfers to the returned Buffer: the caller must not touch b directly
// again.
func New(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Copy returns a new secure Buffer holding a copy of src's bytes. Useful at
// boundaries where the caller only has a non-secure byte slice (e.g. a
// passphrase read from a terminal) and wants to hand ownership over.
func Copy(src []byte) *Buffer {
	b := make([]byte, len(src))
	copy(b, src)
	return New(b)
}
