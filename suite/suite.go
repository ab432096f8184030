// Package suite implements the two interchangeable asymmetric+AEAD cipher
// suites a ring identity may use: RSA-4096 OAEP key transport with
// AES-256-GCM, and X25519 ECDH key agreement (with an Ed25519 signing key
// carried alongside for future use) with ChaCha20-Poly1305. Both are
// dispatched through the Suite interface by their KeyType tag, the way the
// teacher library dispatches its OPRF/AEAD helpers by plain function call —
// here promoted to an interface because there are two suites instead of one.
package suite

import (
	"github.com/occlock/vault/secmem"
)

// KeyType tags which suite a key or header belongs to. Numeric order matters:
// the registry picks the highest-tagged suite supported by every recipient.
type KeyType uint8

const (
	RSAAESGCM KeyType = iota
	EdX25519ChaCha20
)

func (k KeyType) String() string {
	switch k {
	case RSAAESGCM:
		return "rsa_aes_gcm"
	case EdX25519ChaCha20:
		return "ed25519_x25519_chacha20_poly1305"
	default:
		return "unknown"
	}
}

// DataKeyLen is the size of the per-block AEAD data key, independent of suite.
const DataKeyLen = 32

// PublicKey is the suite-tagged public half of an identity's keypair.
type PublicKey struct {
	Suite KeyType
	Bytes []byte
}

// Recipient is a public key entry eligible to receive a sealed data key.
type Recipient struct {
	IdentityID string
	PublicKey  []byte
}

// RecipientKey is one recipient's wrapped copy of a block's data key.
type RecipientKey struct {
	IdentityID string
	CryptedKey []byte
}

// Suite implements keygen, multi-recipient key wrap, and content AEAD for
// one cipher suite.
type Suite interface {
	Tag() KeyType

	// GenerateKeypair returns a new public key and the plaintext private
	// key material (suite-specific encoding) in secure memory.
	GenerateKeypair() (PublicKey, *secmem.Buffer, error)

	// SealDataKey wraps dataKey for every recipient, returning the
	// suite-level common key (ephemeral public, or empty for RSA) and one
	// RecipientKey per recipient. blockNonce is the block's content AEAD
	// nonce, used as the wrap-key HKDF salt by ECDH suites (ignored by
	// RSA, which transports dataKey directly under OAEP).
	SealDataKey(dataKey, blockNonce []byte, recipients []Recipient) (commonKey []byte, keys []RecipientKey, err error)

	// OpenDataKey unwraps the data key crypted for one recipient, given
	// that recipient's plaintext private key material, the header's
	// common key, and the block's content AEAD nonce.
	OpenDataKey(priv, commonKey, blockNonce, crypted []byte) (*secmem.Buffer, error)

	// NonceSize is the AEAD nonce length this suite's content cipher uses.
	NonceSize() int

	// AEADSeal/AEADOpen operate the suite's content cipher directly on the
	// random data key produced for a block.
	AEADSeal(dataKey, nonce, plaintext, aad []byte) ([]byte, error)
	AEADOpen(dataKey, nonce, ciphertext, aad []byte) ([]byte, error)
}

// Registry holds the suites a ring may use, keyed by tag.
type Registry struct {
	suites map[KeyType]Suite
	order  []KeyType
}

// NewRegistry returns a Registry containing exactly the given suites.
func NewRegistry(suites ...Suite) *Registry {
	r := &Registry{suites: make(map[KeyType]Suite, len(suites))}
	for _, s := range suites {
		r.suites[s.Tag()] = s
		r.order = append(r.order, s.Tag())
	}
	return r
}

// Default returns the standard registry: both suites this module implements.
func Default() *Registry {
	return NewRegistry(NewRSAAESGCM(), NewEdX25519ChaCha20())
}

// Get returns the suite implementation for tag, or false if unknown.
func (r *Registry) Get(tag KeyType) (Suite, bool) {
	s, ok := r.suites[tag]
	return s, ok
}

// Order returns the suite tags this registry holds, in registration order.
func (r *Registry) Order() []KeyType {
	out := make([]KeyType, len(r.order))
	copy(out, r.order)
	return out
}

// BestFor returns only the highest-tagged suite when some suite is supported
// by every identity in present. Otherwise it returns every suite at least
// one identity supports, ordered by number of supporting identities, then by
// tag, both descending, so a block can carry one header per suite actually
// needed instead of one per recipient. present maps identity id to the set
// of suite tags that identity supports.
func (r *Registry) BestFor(present map[string]map[KeyType]bool) []KeyType {
	covered := make(map[KeyType]int)
	for _, tags := range present {
		for tag := range tags {
			covered[tag]++
		}
	}
	total := len(present)

	// Suites covering every recipient, highest tag first.
	var full []KeyType
	for tag := range covered {
		if covered[tag] == total {
			full = append(full, tag)
		}
	}
	sortDesc(full)
	if len(full) > 0 {
		return full[:1]
	}

	// No single suite covers everyone: emit one header per suite that has
	// at least one supporting recipient, ordered by coverage size then tag.
	var split []KeyType
	for tag := range covered {
		split = append(split, tag)
	}
	sortByCoverageThenTag(split, covered)
	return split
}

func sortDesc(tags []KeyType) {
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && tags[j] > tags[j-1]; j-- {
			tags[j], tags[j-1] = tags[j-1], tags[j]
		}
	}
}

func sortByCoverageThenTag(tags []KeyType, covered map[KeyType]int) {
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0; j-- {
			a, b := tags[j], tags[j-1]
			if covered[a] > covered[b] || (covered[a] == covered[b] && a > b) {
				tags[j], tags[j-1] = tags[j-1], tags[j]
			} else {
				break
			}
		}
	}
}
