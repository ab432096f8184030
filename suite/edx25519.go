package suite

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/secmem"
)

// wrapInfo labels the HKDF expansion used to derive per-recipient wrap keys.
// Internal to this module: interoperability with any external key format is
// out of scope, so this label need not match any other implementation's.
var wrapInfo = []byte("occlock/vault wrap v1")

const (
	x25519PubLen  = 32
	ed25519PubLen = 32
	x25519SeedLen = 32
	ed25519SeedLen = 32
)

// EdX25519ChaCha20Suite implements the ed25519_x25519_chacha20_poly1305
// suite: ephemeral X25519 ECDH per block, HKDF-SHA256 wrap keys,
// ChaCha20-Poly1305 content AEAD. The Ed25519 keypair is carried for future
// signing and is not used for confidentiality.
type EdX25519ChaCha20Suite struct{}

// NewEdX25519ChaCha20 returns the ed25519_x25519_chacha20_poly1305 Suite.
func NewEdX25519ChaCha20() *EdX25519ChaCha20Suite { return &EdX25519ChaCha20Suite{} }

func (EdX25519ChaCha20Suite) Tag() KeyType { return EdX25519ChaCha20 }

func (EdX25519ChaCha20Suite) GenerateKeypair() (PublicKey, *secmem.Buffer, error) {
	const op = "suite.EdX25519ChaCha20.GenerateKeypair"
	xPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, nil, errs.E(op, errs.Cipher, err)
	}
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, nil, errs.E(op, errs.Cipher, err)
	}

	pubBytes := make([]byte, 0, x25519PubLen+ed25519PubLen)
	pubBytes = append(pubBytes, xPriv.PublicKey().Bytes()...)
	pubBytes = append(pubBytes, edPub...)

	privBytes := make([]byte, 0, x25519SeedLen+ed25519SeedLen)
	privBytes = append(privBytes, xPriv.Bytes()...)
	privBytes = append(privBytes, edPriv.Seed()...)

	return PublicKey{Suite: EdX25519ChaCha20, Bytes: pubBytes}, secmem.New(privBytes), nil
}

// recipientX25519Pub extracts the X25519 public key from a (possibly
// ed25519-appended) recipient public key encoding.
func recipientX25519Pub(b []byte) (*ecdh.PublicKey, error) {
	if len(b) < x25519PubLen {
		return nil, errs.E("suite.EdX25519ChaCha20", errs.InvalidBlock)
	}
	return ecdh.X25519().NewPublicKey(b[:x25519PubLen])
}

func wrapKey(shared, blockNonce []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, shared, blockNonce, wrapInfo)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s EdX25519ChaCha20Suite) SealDataKey(dataKey, blockNonce []byte, recipients []Recipient) ([]byte, []RecipientKey, error) {
	const op = "suite.EdX25519ChaCha20.SealDataKey"
	if len(recipients) == 0 {
		return nil, nil, errs.E(op, errs.NoRecipient)
	}
	ephPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errs.E(op, errs.Cipher, err)
	}
	commonKey := ephPriv.PublicKey().Bytes()

	keys := make([]RecipientKey, 0, len(recipients))
	for _, r := range recipients {
		recipPub, err := recipientX25519Pub(r.PublicKey)
		if err != nil {
			return nil, nil, errs.E(op, errs.InvalidBlock, err)
		}
		shared, err := ephPriv.ECDH(recipPub)
		if err != nil {
			return nil, nil, errs.E(op, errs.Cipher, err)
		}
		wk, err := wrapKey(shared, blockNonce)
		if err != nil {
			return nil, nil, errs.E(op, errs.Cipher, err)
		}
		aead, err := chacha20poly1305.New(wk)
		if err != nil {
			return nil, nil, errs.E(op, errs.Cipher, err)
		}
		zeroNonce := make([]byte, chacha20poly1305.NonceSize)
		crypted := aead.Seal(nil, zeroNonce, dataKey, nil)
		keys = append(keys, RecipientKey{IdentityID: r.IdentityID, CryptedKey: crypted})
	}
	return commonKey, keys, nil
}

func (EdX25519ChaCha20Suite) OpenDataKey(priv, commonKey, blockNonce, crypted []byte) (*secmem.Buffer, error) {
	const op = "suite.EdX25519ChaCha20.OpenDataKey"
	if len(priv) < x25519SeedLen {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	xPriv, err := ecdh.X25519().NewPrivateKey(priv[:x25519SeedLen])
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	ephPub, err := ecdh.X25519().NewPublicKey(commonKey)
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	shared, err := xPriv.ECDH(ephPub)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	wk, err := wrapKey(shared, blockNonce)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	aead, err := chacha20poly1305.New(wk)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	zeroNonce := make([]byte, chacha20poly1305.NonceSize)
	dataKey, err := aead.Open(nil, zeroNonce, crypted, nil)
	if err != nil {
		return nil, errs.E(op, errs.Forbidden, err)
	}
	return secmem.New(dataKey), nil
}

func (EdX25519ChaCha20Suite) NonceSize() int { return chacha20poly1305.NonceSize }

func (EdX25519ChaCha20Suite) AEADSeal(dataKey, nonce, plaintext, aad []byte) ([]byte, error) {
	const op = "suite.EdX25519ChaCha20.AEADSeal"
	aead, err := chacha20poly1305.New(dataKey)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (EdX25519ChaCha20Suite) AEADOpen(dataKey, nonce, ciphertext, aad []byte) ([]byte, error) {
	const op = "suite.EdX25519ChaCha20.AEADOpen"
	aead, err := chacha20poly1305.New(dataKey)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	return pt, nil
}
