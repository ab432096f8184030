package secmem

import "sync"

// MockAllocator is a test Allocator that records every Buffer it hands out,
// so tests can assert that Release actually zeroed them (Testable Property 7).
type MockAllocator struct {
	mu      sync.Mutex
	issued  []*Buffer
	allocFn func(n int) (*Buffer, error)
}

// Alloc returns a new n-byte Buffer and remembers it for Issued/AllReleasedAndZeroed.
func (m *MockAllocator) Alloc(n int) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		buf *Buffer
		err error
	)
	if m.allocFn != nil {
		buf, err = m.allocFn(n)
	} else {
		buf = New(make([]byte, n))
	}
	if err != nil {
		return nil, err
	}
	m.issued = append(m.issued, buf)
	return buf, nil
}

// Issued returns every buffer this allocator has ever produced.
func (m *MockAllocator) Issued() []*Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Buffer, len(m.issued))
	copy(out, m.issued)
	return out
}

// AllReleasedAndZeroed reports whether every issued buffer has been released
// and reads back as all-zero bytes.
func (m *MockAllocator) AllReleasedAndZeroed() bool {
	for _, b := range m.Issued() {
		b.mu.Lock()
		released := b.released
		raw := b.b
		b.mu.Unlock()
		if !released {
			return false
		}
		for _, c := range raw {
			if c != 0 {
				return false
			}
		}
	}
	return true
}
