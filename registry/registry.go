// Package registry implements the process-level store registry: a
// daemon-wide map from store name to an opened vaultstore.Store, each
// guarding its own lock. It is the only component aware of multiple stores
// at once; every operation below it is single-store. The RPC transport
// that exposes these as remote calls stays external, out of scope here.
package registry

import (
	"crypto/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/config"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/events"
	"github.com/occlock/vault/secmem"
	"github.com/occlock/vault/suite"
	"github.com/occlock/vault/vaultstore"
)

// Opener connects a StoreConfig's store_url to a blockstore.Store. The
// registry is transport-agnostic: production url schemes (filesystem,
// sled, Dropbox, HTTP) are external collaborators, out of scope here. The
// only Opener in this package, MemoryOpener, resolves any URL (mem:// or
// otherwise) to an in-process memory store.
type Opener interface {
	Open(storeURL string) (blockstore.Store, error)
}

// MemoryOpener resolves every store_url to a fresh in-memory store, keyed
// by URL so repeated opens of the same URL share state within a process.
type MemoryOpener struct {
	mu    sync.Mutex
	byURL map[string]*blockstore.Memory
}

// NewMemoryOpener returns an empty MemoryOpener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{byURL: make(map[string]*blockstore.Memory)}
}

// Open returns the Memory store for storeURL, creating one on first use.
func (o *MemoryOpener) Open(storeURL string) (blockstore.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	bs, ok := o.byURL[storeURL]
	if !ok {
		bs = blockstore.NewMemory()
		o.byURL[storeURL] = bs
	}
	return bs, nil
}

type entry struct {
	cfg   config.StoreConfig
	store *vaultstore.Store
}

// Registry is the process-wide map of open stores.
type Registry struct {
	mu          sync.RWMutex
	stores      map[string]*entry
	defaultName string

	opener Opener
	suites *suite.Registry
	alloc  secmem.Allocator
	log    *zap.Logger
	sink   events.Sink
}

// New returns an empty Registry. opener resolves store_url values to
// transports; suites, alloc, log, and sink are shared across every store
// this registry opens (log and sink may be nil).
func New(opener Opener, suites *suite.Registry, alloc secmem.Allocator, log *zap.Logger, sink events.Sink) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Registry{
		stores: make(map[string]*entry),
		opener: opener,
		suites: suites,
		alloc:  alloc,
		log:    log,
		sink:   sink,
	}
}

// ListStores returns every registered store's configuration.
func (r *Registry) ListStores() []config.StoreConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.StoreConfig, 0, len(r.stores))
	for _, e := range r.stores {
		out = append(out, e.cfg)
	}
	return out
}

// UpsertStoreConfig creates or reconfigures a store by name, opening its
// block-store transport via the registry's Opener.
func (r *Registry) UpsertStoreConfig(cfg config.StoreConfig) error {
	const op = "registry.Registry.UpsertStoreConfig"
	r.mu.Lock()
	defer r.mu.Unlock()

	bs, err := r.opener.Open(cfg.StoreURL)
	if err != nil {
		return errs.E(op, errs.InvalidStoreURL, err)
	}
	store := vaultstore.Open(cfg, bs, r.suites, r.alloc, r.log, r.sink)
	r.stores[cfg.Name] = &entry{cfg: cfg, store: store}
	if r.defaultName == "" {
		r.defaultName = cfg.Name
	}
	return nil
}

// DeleteStoreConfig removes a store from the registry. It does not delete
// the store's underlying data.
func (r *Registry) DeleteStoreConfig(name string) error {
	const op = "registry.Registry.DeleteStoreConfig"
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return errs.E(op, errs.StoreNotFound)
	}
	delete(r.stores, name)
	if r.defaultName == name {
		r.defaultName = ""
	}
	return nil
}

// GetDefaultStore returns the name of the default store, if one is set.
func (r *Registry) GetDefaultStore() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName, r.defaultName != ""
}

// SetDefaultStore designates name as the default store.
func (r *Registry) SetDefaultStore(name string) error {
	const op = "registry.Registry.SetDefaultStore"
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return errs.E(op, errs.StoreNotFound)
	}
	r.defaultName = name
	return nil
}

// Store returns the opened vaultstore.Store for name; every remaining
// service operation (status, lock, unlock, identities, add_identity,
// change_passphrase, list, add, get, get_version, update_index) is a
// direct method call on the returned Store.
func (r *Registry) Store(name string) (*vaultstore.Store, error) {
	const op = "registry.Registry.Store"
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.stores[name]
	if !ok {
		return nil, errs.E(op, errs.StoreNotFound)
	}
	return e.store, nil
}

// GenerateID returns a fresh random secret or identity id.
func (r *Registry) GenerateID() string {
	return uuid.NewString()
}

// PasswordParams controls GeneratePassword's output.
type PasswordParams struct {
	Length    int
	Symbols   bool
	Digits    bool
	Uppercase bool
}

const (
	lowerAlphabet  = "abcdefghijklmnopqrstuvwxyz"
	upperAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitAlphabet  = "0123456789"
	symbolAlphabet = "!@#$%^&*()-_=+[]{}"
)

// GeneratePassword returns a random password drawn uniformly from the
// alphabet params selects (always including lowercase letters).
func GeneratePassword(params PasswordParams) (string, error) {
	const op = "registry.GeneratePassword"
	length := params.Length
	if length <= 0 {
		length = 20
	}
	alphabet := lowerAlphabet
	if params.Uppercase {
		alphabet += upperAlphabet
	}
	if params.Digits {
		alphabet += digitAlphabet
	}
	if params.Symbols {
		alphabet += symbolAlphabet
	}

	out := make([]byte, length)
	// Bytes at or past the last whole multiple of len(alphabet) are redrawn,
	// so every alphabet index is equally likely.
	limit := 256 - 256%len(alphabet)
	var b [1]byte
	for i := 0; i < length; {
		if _, err := rand.Read(b[:]); err != nil {
			return "", errs.E(op, errs.Cipher, err)
		}
		if int(b[0]) < limit {
			out[i] = alphabet[int(b[0])%len(alphabet)]
			i++
		}
	}
	return string(out), nil
}
