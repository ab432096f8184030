package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/secmem"
)

const rsaKeyBits = 4096

// RSAAESGCMSuite implements the rsa_aes_gcm suite: RSA-4096 OAEP-SHA256 key
// transport, AES-256-GCM content AEAD.
type RSAAESGCMSuite struct{}

// NewRSAAESGCM returns the rsa_aes_gcm Suite implementation.
func NewRSAAESGCM() *RSAAESGCMSuite { return &RSAAESGCMSuite{} }

func (RSAAESGCMSuite) Tag() KeyType { return RSAAESGCM }

func (RSAAESGCMSuite) GenerateKeypair() (PublicKey, *secmem.Buffer, error) {
	const op = "suite.RSAAESGCM.GenerateKeypair"
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return PublicKey{}, nil, errs.E(op, errs.Cipher, err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return PublicKey{}, nil, errs.E(op, errs.Cipher, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return PublicKey{}, nil, errs.E(op, errs.Cipher, err)
	}
	return PublicKey{Suite: RSAAESGCM, Bytes: pubDER}, secmem.New(privDER), nil
}

// SealDataKey RSA-OAEP-encrypts dataKey once per recipient. common_key is
// always empty for this suite.
func (RSAAESGCMSuite) SealDataKey(dataKey, _ []byte, recipients []Recipient) ([]byte, []RecipientKey, error) {
	const op = "suite.RSAAESGCM.SealDataKey"
	if len(recipients) == 0 {
		return nil, nil, errs.E(op, errs.NoRecipient)
	}
	keys := make([]RecipientKey, 0, len(recipients))
	for _, r := range recipients {
		pub, err := x509.ParsePKIXPublicKey(r.PublicKey)
		if err != nil {
			return nil, nil, errs.E(op, errs.InvalidBlock, err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, nil, errs.E(op, errs.InvalidBlock)
		}
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaPub, dataKey, nil)
		if err != nil {
			return nil, nil, errs.E(op, errs.Cipher, err)
		}
		keys = append(keys, RecipientKey{IdentityID: r.IdentityID, CryptedKey: ct})
	}
	return nil, keys, nil
}

func (RSAAESGCMSuite) OpenDataKey(priv, _, _, crypted []byte) (*secmem.Buffer, error) {
	const op = "suite.RSAAESGCM.OpenDataKey"
	key, err := x509.ParsePKCS8PrivateKey(priv)
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, rsaKey, crypted, nil)
	if err != nil {
		return nil, errs.E(op, errs.Forbidden, err)
	}
	return secmem.New(pt), nil
}

func (RSAAESGCMSuite) NonceSize() int { return 12 }

func (s RSAAESGCMSuite) aead(dataKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s RSAAESGCMSuite) AEADSeal(dataKey, nonce, plaintext, aad []byte) ([]byte, error) {
	const op = "suite.RSAAESGCM.AEADSeal"
	aead, err := s.aead(dataKey)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (s RSAAESGCMSuite) AEADOpen(dataKey, nonce, ciphertext, aad []byte) ([]byte, error) {
	const op = "suite.RSAAESGCM.AEADOpen"
	aead, err := s.aead(dataKey)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	return pt, nil
}
