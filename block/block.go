// Package block implements the Block envelope: the canonical binary format
// shared by every at-rest artifact (ring, index checkpoint, secret
// version), and its content-addressed id.
package block

import "github.com/occlock/vault/suite"

// Header is one cipher suite's view of a block's recipients.
type Header struct {
	Suite      suite.KeyType
	CommonKey  []byte
	Recipients []suite.RecipientKey
}

// Block is the multi-header, multi-recipient encrypted envelope. Content is
// nonce_prefix || aead_ciphertext_with_tag, sealed once under the random
// data key that Headers wrap per-recipient.
type Block struct {
	Headers []Header
	Content []byte
}

// RecipientIDs returns the union of identity ids across all headers.
func (b *Block) RecipientIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range b.Headers {
		for _, r := range h.Recipients {
			if !seen[r.IdentityID] {
				seen[r.IdentityID] = true
				out = append(out, r.IdentityID)
			}
		}
	}
	return out
}

// HeaderFor returns the header (and its recipient key) that lets identity
// id open this block, or false if id is not a recipient.
func (b *Block) HeaderFor(id string) (Header, suite.RecipientKey, bool) {
	for _, h := range b.Headers {
		for _, r := range h.Recipients {
			if r.IdentityID == id {
				return h, r, true
			}
		}
	}
	return Header{}, suite.RecipientKey{}, false
}
