// Package ring implements the ring manager (C6): identities, their public
// keys, and their passphrase-protected private keys, plus unlock/lock,
// passphrase change, and identity addition.
//
// The ring's on-disk form is deliberately not content-AEAD-sealed the way
// secret-version blocks are: callers must be able to read public_ring (every
// identity's name/email/public keys, and every PrivateKeyRecord's wrapped
// bytes) while Locked, with no private key in hand yet. If the ring block's
// content were itself wrapped under the standard multi-recipient envelope,
// unlocking the very first identity in a fresh process would require a
// private key to open that envelope before any private key has been
// recovered — circular. So the ring is stored as canonical JSON, addressed
// like any other block, while every PrivateKeyRecord inside it remains
// individually Argon2+AEAD-protected by its owner's passphrase. See
// DESIGN.md for the full reasoning.
package ring

import "github.com/occlock/vault/suite"

// Identity is one user of a store: an id, display info, and one keypair per
// supported cipher suite (public and private lists are parallel by suite).
type Identity struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Hidden      bool               `json:"hidden"`
	PublicKeys  []suite.PublicKey  `json:"public_keys"`
	PrivateKeys []PrivateKeyRecord `json:"private_keys"`
}

// PrivateKeyRecord is a suite private key at rest: AEAD-sealed under a key
// derived from a passphrase via Argon2.
type PrivateKeyRecord struct {
	Suite      suite.KeyType `json:"suite"`
	Preset     uint8         `json:"preset"`
	Salt       []byte        `json:"salt"`       // Argon2 salt
	AEADNonce  []byte        `json:"aead_nonce"` // nonce for the wrapping AEAD
	CryptedKey []byte        `json:"crypted_key"`
}

// Keyring is the full, persisted ring: every identity the store knows.
type Keyring struct {
	Identities []Identity `json:"identities"`
}

// PublicIdentity projects an Identity down to its public parts: what a
// sealer needs as a recipient, and all a Locked caller may see.
type PublicIdentity struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Hidden     bool              `json:"hidden"`
	PublicKeys []suite.PublicKey `json:"public_keys"`
}

// PublicRing is the read-only projection of a Keyring usable while Locked.
type PublicRing struct {
	Identities []PublicIdentity `json:"identities"`
}

// Public projects kr down to a PublicRing.
func (kr *Keyring) Public() PublicRing {
	pr := PublicRing{Identities: make([]PublicIdentity, len(kr.Identities))}
	for i, id := range kr.Identities {
		pr.Identities[i] = PublicIdentity{
			ID:         id.ID,
			Name:       id.Name,
			Email:      id.Email,
			Hidden:     id.Hidden,
			PublicKeys: id.PublicKeys,
		}
	}
	return pr
}

// Find returns the identity with the given id, if present.
func (kr *Keyring) Find(id string) (*Identity, bool) {
	for i := range kr.Identities {
		if kr.Identities[i].ID == id {
			return &kr.Identities[i], true
		}
	}
	return nil, false
}
