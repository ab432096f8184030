package blockstore

import (
	"context"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/occlock/vault/errs"
)

// Memory is an in-process, mutex-guarded Store. It is used by tests and by
// stores opened with a mem:// URL; it is not a durable production
// transport.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string][]byte
	heads  map[string][]string
	named  map[Ref]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[string][]byte),
		heads:  make(map[string][]string),
		named:  make(map[Ref]string),
	}
}

func contentID(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (m *Memory) Put(_ context.Context, blockBytes []byte) (string, error) {
	id := contentID(blockBytes)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		cp := make([]byte, len(blockBytes))
		copy(cp, blockBytes)
		m.blocks[id] = cp
	}
	return id, nil
}

func (m *Memory) Get(_ context.Context, blockID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[blockID]
	if !ok {
		return nil, errs.E("blockstore.Memory.Get", errs.NotFound)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (m *Memory) ListHeads(_ context.Context, nodeID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hs := m.heads[nodeID]
	out := make([]string, len(hs))
	copy(out, hs)
	return out, nil
}

func (m *Memory) SetHead(_ context.Context, nodeID, blockID, expectedPrev string) error {
	const op = "blockstore.Memory.SetHead"
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := m.heads[nodeID]
	var cur string
	if len(hs) > 0 {
		cur = hs[len(hs)-1]
	}
	if cur != expectedPrev {
		return errs.E(op, errs.Conflict)
	}
	m.heads[nodeID] = append(hs, blockID)
	return nil
}

func (m *Memory) Named(_ context.Context, ref Ref) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.named[ref], nil
}

func (m *Memory) SetNamed(_ context.Context, ref Ref, blockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.named[ref] = blockID
	return nil
}

func (m *Memory) Nodes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.heads))
	for n := range m.heads {
		out = append(out, n)
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
