// Package vaultstore implements the store facade (C9): the single
// exclusive/shared-locked entry point composing the ring manager, the
// secret store, and the index engine into one store's public surface, plus
// autolock and event emission.
package vaultstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/config"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/events"
	"github.com/occlock/vault/ring"
	"github.com/occlock/vault/secmem"
	"github.com/occlock/vault/secretstore"
	"github.com/occlock/vault/suite"
)

// Version identifies the engine build a status() response reports.
const Version = "occlock/vault v0"

// Status is the response to status().
type Status struct {
	Locked          bool
	UnlockedBy      string
	AutolockAt      *time.Time
	Version         string
	AutolockTimeout time.Duration
}

// Store is one store's facade: a single sync.RWMutex guards the ring
// state, index state, and cipher key handles — shared for
// status/list/get/get_version, exclusive for everything that mutates ring
// or index state.
type Store struct {
	mu  sync.RWMutex
	cfg config.StoreConfig

	ring    *ring.Manager
	secrets *secretstore.Store
	sink    events.Sink
	log     *zap.Logger

	lastActivity time.Time
}

// Open constructs a Store over an already-connected block-store transport.
// log and sink may be nil.
func Open(cfg config.StoreConfig, bs blockstore.Store, registry *suite.Registry, alloc secmem.Allocator, log *zap.Logger, sink events.Sink) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	ringMgr := ring.New(registry, bs, alloc, log, sink)
	secrets := secretstore.New(bs, registry, ringMgr, cfg.ClientID)
	return &Store{
		cfg:          cfg,
		ring:         ringMgr,
		secrets:      secrets,
		sink:         sink,
		log:          log,
		lastActivity: time.Time{},
	}
}

func (s *Store) touch() {
	s.lastActivity = time.Now()
}

func (s *Store) autolockTimeout() time.Duration {
	return time.Duration(s.cfg.AutolockTimeoutSecs) * time.Second
}

// Status reports the store's lock state. Shared lock.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, unlocked := s.ring.UnlockedIdentity()
	st := Status{Locked: !unlocked, Version: Version, AutolockTimeout: s.autolockTimeout()}
	if unlocked {
		st.UnlockedBy = id
		at := s.lastActivity.Add(s.autolockTimeout())
		st.AutolockAt = &at
	}
	return st
}

// Bootstrap creates the first identity of a brand-new store. Exclusive
// lock.
func (s *Store) Bootstrap(ctx context.Context, name, email string, passphrase *secmem.Buffer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Bootstrap(ctx, name, email, passphrase)
}

// Unlock derives identityID's private keys, rebuilds the index projection
// from every reachable head in the block store, and marks the store
// active. Exclusive lock: Argon2 runs while held, by design, to prevent
// concurrent unlock attempts.
//
// The rebuild matters most on a freshly opened Store (e.g. after a daemon
// restart): its index.Engine starts with an empty in-memory projection, and
// without folding the block store's heads here, List/Get would see nothing
// until the next explicit UpdateIndex even though the underlying blocks are
// readable the moment the identity unlocks.
func (s *Store) Unlock(ctx context.Context, identityID string, passphrase *secmem.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ring.Unlock(ctx, identityID, passphrase); err != nil {
		return err
	}
	if err := s.secrets.UpdateIndex(ctx); err != nil {
		return err
	}
	s.touch()
	s.sink.Emit(events.Event{Type: events.StoreUnlocked, IdentityID: identityID})
	return nil
}

// Lock drops the unlocked identity's private keys.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Lock()
}

// Tick runs the autolock check: if the store has been unlocked for longer
// than its configured timeout with no activity, it is locked. Callers
// drive this from a periodic timer; now is passed in rather than read
// internally so callers control the clock.
func (s *Store) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, unlocked := s.ring.UnlockedIdentity(); !unlocked {
		return
	}
	if s.cfg.AutolockTimeoutSecs <= 0 {
		return
	}
	if now.Sub(s.lastActivity) >= s.autolockTimeout() {
		s.ring.Lock()
	}
}

// Identities returns the public ring projection, available Locked or
// Unlocked. Shared lock.
func (s *Store) Identities(ctx context.Context) (ring.PublicRing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.PublicRing(ctx)
}

// AddIdentity requires Unlocked. Exclusive lock.
func (s *Store) AddIdentity(ctx context.Context, name, email string, passphrase *secmem.Buffer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.ring.AddIdentity(ctx, name, email, passphrase)
}

// ChangePassphrase requires Unlocked. Exclusive lock.
func (s *Store) ChangePassphrase(ctx context.Context, passphrase *secmem.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.ring.ChangePassphrase(ctx, passphrase)
}

// List queries the index projection. Shared lock.
func (s *Store) List(filter secretstore.Filter) secretstore.ListResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets.List(filter)
}

// Add seals a new secret version and updates the projection. Exclusive
// lock, requires Unlocked.
func (s *Store) Add(ctx context.Context, sv secretstore.SecretVersion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blockID, err := s.secrets.Add(ctx, sv)
	if err != nil {
		return "", err
	}
	s.touch()
	s.sink.Emit(events.Event{Type: events.SecretVersionAdded, SecretID: sv.SecretID, VersionID: blockID})
	return blockID, nil
}

// Get resolves a secret's current version and history. Shared lock,
// requires Unlocked.
func (s *Store) Get(ctx context.Context, secretID string) (secretstore.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, unlocked := s.ring.UnlockedIdentity(); !unlocked {
		return secretstore.Secret{}, errs.E("vaultstore.Store.Get", errs.Locked)
	}
	secret, err := s.secrets.Get(ctx, secretID)
	if err != nil {
		return secretstore.Secret{}, err
	}
	s.sink.Emit(events.Event{Type: events.SecretOpened, SecretID: secretID, VersionID: secret.CurrentBlockID})
	return secret, nil
}

// GetVersion opens one historical version. Shared lock, requires Unlocked.
func (s *Store) GetVersion(ctx context.Context, blockID string) (secretstore.SecretVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, unlocked := s.ring.UnlockedIdentity(); !unlocked {
		return secretstore.SecretVersion{}, errs.E("vaultstore.Store.GetVersion", errs.Locked)
	}
	sv, err := s.secrets.GetVersion(ctx, blockID)
	if err != nil {
		return secretstore.SecretVersion{}, err
	}
	s.sink.Emit(events.Event{Type: events.SecretOpened, VersionID: blockID})
	return sv, nil
}

// UpdateIndex forces a merge and checkpoint write. Exclusive lock.
func (s *Store) UpdateIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secrets.UpdateIndex(ctx)
}
