package block

import (
	"crypto/rand"

	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/suite"
)

// PublicIdentity is the minimal recipient shape Seal needs: an identity id
// plus the suite-tagged public keys it published.
type PublicIdentity struct {
	ID         string
	PublicKeys []suite.PublicKey
}

// Seal encrypts plaintext to every identity in recipients, choosing cipher
// suites via registry.BestFor: the highest-tagged suite every recipient
// supports, or a per-suite header split when they disagree.
func Seal(registry *suite.Registry, recipients []PublicIdentity, plaintext, aad []byte) (*Block, error) {
	const op = "block.Seal"
	if len(recipients) == 0 {
		return nil, errs.E(op, errs.NoRecipient)
	}

	present := make(map[string]map[suite.KeyType]bool, len(recipients))
	pubByIDAndTag := make(map[string]map[suite.KeyType][]byte)
	for _, id := range recipients {
		tags := make(map[suite.KeyType]bool)
		byTag := make(map[suite.KeyType][]byte)
		for _, pk := range id.PublicKeys {
			tags[pk.Suite] = true
			byTag[pk.Suite] = pk.Bytes
		}
		present[id.ID] = tags
		pubByIDAndTag[id.ID] = byTag
	}

	tags := registry.BestFor(present)
	if len(tags) == 0 {
		return nil, errs.E(op, errs.NoRecipient)
	}
	contentSuiteTag := tags[0]
	contentSuite, ok := registry.Get(contentSuiteTag)
	if !ok {
		return nil, errs.E(op, errs.InvalidBlock)
	}

	dataKey := make([]byte, suite.DataKeyLen)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	defer zero(dataKey)

	nonce := make([]byte, contentSuite.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}
	ciphertext, err := contentSuite.AEADSeal(dataKey, nonce, plaintext, aad)
	if err != nil {
		return nil, errs.E(op, errs.Cipher, err)
	}

	headers := make([]Header, 0, len(tags))
	for _, tag := range tags {
		s, ok := registry.Get(tag)
		if !ok {
			continue
		}
		var recips []suite.Recipient
		for _, id := range recipients {
			if pk, ok := pubByIDAndTag[id.ID][tag]; ok {
				recips = append(recips, suite.Recipient{IdentityID: id.ID, PublicKey: pk})
			}
		}
		if len(recips) == 0 {
			continue
		}
		commonKey, keys, err := s.SealDataKey(dataKey, nonce, recips)
		if err != nil {
			return nil, errs.E(op, errs.Cipher, err)
		}
		headers = append(headers, Header{Suite: tag, CommonKey: commonKey, Recipients: keys})
	}
	if len(headers) == 0 {
		return nil, errs.E(op, errs.NoRecipient)
	}

	content := make([]byte, 0, len(nonce)+len(ciphertext))
	content = append(content, nonce...)
	content = append(content, ciphertext...)

	b := &Block{Headers: headers, Content: content}
	Canonicalize(b)
	return b, nil
}

// Open decrypts a block for identityID using its plaintext private key
// material priv (suite.KeyType-specific raw bytes, as produced by that
// suite's GenerateKeypair/kept at rest under ring.PrivateKeyRecord).
func Open(registry *suite.Registry, b *Block, identityID string, priv []byte) ([]byte, error) {
	const op = "block.Open"
	header, recip, ok := b.HeaderFor(identityID)
	if !ok {
		return nil, errs.E(op, errs.Forbidden)
	}
	s, ok := registry.Get(header.Suite)
	if !ok {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	nonceSize := s.NonceSize()
	if len(b.Content) < nonceSize {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	nonce := b.Content[:nonceSize]
	ciphertext := b.Content[nonceSize:]

	dataKeyBuf, err := s.OpenDataKey(priv, header.CommonKey, nonce, recip.CryptedKey)
	if err != nil {
		return nil, errs.E(op, errs.Forbidden, err)
	}
	defer dataKeyBuf.Release()

	plaintext, err := s.AEADOpen(dataKeyBuf.Bytes(), nonce, ciphertext, nil)
	if err != nil {
		// In a split block the content is sealed once, under one suite that
		// need not be this identity's header suite: try the other headers'.
		for _, h := range b.Headers {
			cs, ok := registry.Get(h.Suite)
			if !ok || h.Suite == header.Suite || len(b.Content) < cs.NonceSize() {
				continue
			}
			n := cs.NonceSize()
			if pt, err2 := cs.AEADOpen(dataKeyBuf.Bytes(), b.Content[:n], b.Content[n:], nil); err2 == nil {
				return pt, nil
			}
		}
		return nil, errs.E(op, errs.Cipher, err)
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
