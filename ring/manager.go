package ring

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/events"
	"github.com/occlock/vault/kdf"
	"github.com/occlock/vault/secmem"
	"github.com/occlock/vault/suite"
)

const (
	saltLen      = 16
	wrapNonceLen = 12
)

// Manager is the ring manager (C6): Locked or Unlocked, holding at most one
// identity's private keys in secure memory at a time.
type Manager struct {
	mu       sync.Mutex
	registry *suite.Registry
	store    blockstore.Store
	alloc    secmem.Allocator
	log      *zap.Logger
	sink     events.Sink

	unlockedID string
	privKeys   map[suite.KeyType]*secmem.Buffer
	cached     *Keyring
}

// New returns a Manager backed by store, generating keys with registry and
// allocating secure buffers with alloc. log and sink may be nil.
func New(registry *suite.Registry, store blockstore.Store, alloc secmem.Allocator, log *zap.Logger, sink events.Sink) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if alloc == nil {
		alloc = secmem.OSAllocator{}
	}
	return &Manager{registry: registry, store: store, alloc: alloc, log: log, sink: sink}
}

// IsUnlocked reports whether an identity is currently unlocked.
func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlockedID != ""
}

// UnlockedIdentity returns the currently unlocked identity id, if any.
func (m *Manager) UnlockedIdentity() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlockedID, m.unlockedID != ""
}

// PrivateKey returns the raw private key bytes for the unlocked identity's
// keypair in the given suite, if it has one.
func (m *Manager) PrivateKey(tag suite.KeyType) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.privKeys[tag]
	if !ok {
		return nil, false
	}
	return buf.Bytes(), true
}

func (m *Manager) load(ctx context.Context) (*Keyring, error) {
	const op = "ring.Manager.load"
	id, err := m.store.Named(ctx, blockstore.RefRing)
	if err != nil {
		return nil, errs.E(op, errs.IO, err)
	}
	if id == "" {
		return &Keyring{}, nil
	}
	raw, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, errs.E(op, errs.IO, err)
	}
	kr, err := Decode(raw)
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	return kr, nil
}

func (m *Manager) persist(ctx context.Context, kr *Keyring) (string, error) {
	const op = "ring.Manager.persist"
	encoded, err := Encode(kr)
	if err != nil {
		return "", errs.E(op, errs.JSON, err)
	}
	id, err := m.store.Put(ctx, encoded)
	if err != nil {
		return "", errs.E(op, errs.IO, err)
	}
	if err := m.store.SetNamed(ctx, blockstore.RefRing, id); err != nil {
		return "", errs.E(op, errs.IO, err)
	}
	m.cached = kr
	return id, nil
}

// PublicRing returns the read-only public projection of the ring, available
// regardless of lock state.
func (m *Manager) PublicRing(ctx context.Context) (PublicRing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kr, err := m.load(ctx)
	if err != nil {
		return PublicRing{}, err
	}
	return kr.Public(), nil
}

func wrapPrivateKey(passphrase *secmem.Buffer, tag suite.KeyType, raw []byte) (PrivateKeyRecord, error) {
	const op = "ring.wrapPrivateKey"
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return PrivateKeyRecord{}, errs.E(op, errs.Cipher, err)
	}
	nonce := make([]byte, wrapNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return PrivateKeyRecord{}, errs.E(op, errs.Cipher, err)
	}
	wrapKey, err := kdf.Derive(passphrase, salt, kdf.DefaultPreset)
	if err != nil {
		return PrivateKeyRecord{}, errs.E(op, errs.KeyDerivation, err)
	}
	defer wrapKey.Release()

	block, err := aes.NewCipher(wrapKey.Bytes())
	if err != nil {
		return PrivateKeyRecord{}, errs.E(op, errs.Cipher, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return PrivateKeyRecord{}, errs.E(op, errs.Cipher, err)
	}
	crypted := aead.Seal(nil, nonce, raw, nil)
	return PrivateKeyRecord{
		Suite:      tag,
		Preset:     kdf.DefaultPreset,
		Salt:       salt,
		AEADNonce:  nonce,
		CryptedKey: crypted,
	}, nil
}

func unwrapPrivateKey(alloc secmem.Allocator, passphrase *secmem.Buffer, rec PrivateKeyRecord) (*secmem.Buffer, error) {
	const op = "ring.unwrapPrivateKey"
	wrapKey, err := kdf.Derive(passphrase, rec.Salt, rec.Preset)
	if err != nil {
		return nil, errs.E(op, errs.KeyDerivation, err)
	}
	defer wrapKey.Release()

	block, err := aes.NewCipher(wrapKey.Bytes())
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	pt, err := aead.Open(nil, rec.AEADNonce, rec.CryptedKey, nil)
	if err != nil {
		return nil, errs.E(op, errs.InvalidPassphrase, err)
	}

	buf, err := alloc.Alloc(len(pt))
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	copy(buf.Bytes(), pt)
	for i := range pt {
		pt[i] = 0
	}
	return buf, nil
}

func (m *Manager) generateIdentity(name, email string, passphrase *secmem.Buffer) (Identity, error) {
	const op = "ring.Manager.generateIdentity"
	id := Identity{ID: uuid.NewString(), Name: name, Email: email}
	for _, tag := range m.registry.Order() {
		s, _ := m.registry.Get(tag)
		pub, priv, err := s.GenerateKeypair()
		if err != nil {
			return Identity{}, errs.E(op, errs.Cipher, err)
		}
		rec, err := wrapPrivateKey(passphrase, tag, priv.Bytes())
		priv.Release()
		if err != nil {
			return Identity{}, err
		}
		id.PublicKeys = append(id.PublicKeys, pub)
		id.PrivateKeys = append(id.PrivateKeys, rec)
	}
	return id, nil
}

// Bootstrap creates the first identity of a brand-new store. It fails if a
// ring already exists.
func (m *Manager) Bootstrap(ctx context.Context, name, email string, passphrase *secmem.Buffer) (string, error) {
	const op = "ring.Manager.Bootstrap"
	m.mu.Lock()
	defer m.mu.Unlock()

	kr, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if len(kr.Identities) > 0 {
		return "", errs.E(op, errs.Forbidden)
	}

	identity, err := m.generateIdentity(name, email, passphrase)
	if err != nil {
		return "", errs.E(op, err)
	}
	kr = &Keyring{Identities: []Identity{identity}}
	if _, err := m.persist(ctx, kr); err != nil {
		return "", errs.E(op, err)
	}
	m.log.Info("ring bootstrapped", zap.String("identity", identity.ID))
	return identity.ID, nil
}

// Unlock derives identityID's private keys from passphrase and, on success,
// holds them in secure memory until Lock is called.
func (m *Manager) Unlock(ctx context.Context, identityID string, passphrase *secmem.Buffer) error {
	const op = "ring.Manager.Unlock"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unlockedID != "" {
		return errs.E(op, errs.AlreadyUnlocked)
	}

	kr, err := m.load(ctx)
	if err != nil {
		return err
	}
	identity, ok := kr.Find(identityID)
	if !ok {
		return errs.E(op, errs.NotFound)
	}

	keys := make(map[suite.KeyType]*secmem.Buffer, len(identity.PrivateKeys))
	for _, rec := range identity.PrivateKeys {
		buf, err := unwrapPrivateKey(m.alloc, passphrase, rec)
		if err != nil {
			for _, b := range keys {
				b.Release()
			}
			return errs.E(op, errs.InvalidPassphrase, err)
		}
		keys[rec.Suite] = buf
	}

	m.unlockedID = identityID
	m.privKeys = keys
	m.cached = kr
	m.log.Info("ring unlocked", zap.String("identity", identityID))
	return nil
}

// Lock drops and zeroes all private keys held in secure memory.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.privKeys {
		b.Release()
	}
	m.privKeys = nil
	prev := m.unlockedID
	m.unlockedID = ""
	if prev != "" {
		m.log.Info("ring locked", zap.String("identity", prev))
		m.sink.Emit(events.Event{Type: events.StoreLocked})
	}
}

// AddIdentity generates a new identity with a fresh keypair per suite and
// appends it to the ring. Requires Unlocked. Blocks written before this
// call are not retroactively re-sealed to the new identity.
func (m *Manager) AddIdentity(ctx context.Context, name, email string, passphrase *secmem.Buffer) (string, error) {
	const op = "ring.Manager.AddIdentity"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unlockedID == "" {
		return "", errs.E(op, errs.Locked)
	}

	kr, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	identity, err := m.generateIdentity(name, email, passphrase)
	if err != nil {
		return "", errs.E(op, err)
	}
	kr.Identities = append(kr.Identities, identity)
	if _, err := m.persist(ctx, kr); err != nil {
		return "", errs.E(op, err)
	}
	m.log.Info("identity added", zap.String("identity", identity.ID))
	m.sink.Emit(events.Event{Type: events.IdentityAdded, IdentityID: identity.ID})
	return identity.ID, nil
}

// ChangePassphrase re-seals the unlocked identity's private keys under a
// fresh salt, preset, and nonce. Atomic: the ring block is rewritten once.
func (m *Manager) ChangePassphrase(ctx context.Context, newPassphrase *secmem.Buffer) error {
	const op = "ring.Manager.ChangePassphrase"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unlockedID == "" {
		return errs.E(op, errs.Locked)
	}

	kr, err := m.load(ctx)
	if err != nil {
		return err
	}
	identity, ok := kr.Find(m.unlockedID)
	if !ok {
		return errs.E(op, errs.NotFound)
	}

	newRecords := make([]PrivateKeyRecord, 0, len(identity.PrivateKeys))
	for _, rec := range identity.PrivateKeys {
		raw, ok := m.privKeys[rec.Suite]
		if !ok {
			return errs.E(op, errs.Mutex)
		}
		newRec, err := wrapPrivateKey(newPassphrase, rec.Suite, raw.Bytes())
		if err != nil {
			return errs.E(op, err)
		}
		newRecords = append(newRecords, newRec)
	}
	identity.PrivateKeys = newRecords

	if _, err := m.persist(ctx, kr); err != nil {
		return errs.E(op, err)
	}
	m.log.Info("passphrase changed", zap.String("identity", m.unlockedID))
	return nil
}
