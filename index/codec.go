package index

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/occlock/vault/errs"
)

// Persisted is the on-disk checkpoint form of an Index: the latest known
// head per node plus the materialized entries, wrapped in a block the same
// way the ring is, as plain canonical JSON rather than AEAD content. An
// index checkpoint is a derived artifact rebuildable from the block store
// at any time, so it carries no confidentiality requirement of its own
// beyond what the underlying secret-version blocks already provide.
type Persisted struct {
	Heads   []HeadOp `json:"heads"`
	Entries []Entry  `json:"entries"`
}

// EncodeOp serializes a single HeadOp to its canonical bytes.
func EncodeOp(op HeadOp) ([]byte, error) {
	return json.Marshal(op)
}

// DecodeOp parses bytes produced by EncodeOp.
func DecodeOp(data []byte) (HeadOp, error) {
	var op HeadOp
	if err := json.Unmarshal(data, &op); err != nil {
		return HeadOp{}, errs.E("index.DecodeOp", errs.InvalidBlock, err)
	}
	return op, nil
}

// Encode serializes a checkpoint to its canonical bytes.
func Encode(p *Persisted) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Persisted, error) {
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.E("index.Decode", errs.InvalidBlock, err)
	}
	return &p, nil
}

// ID returns the content address of encoded bytes.
func ID(encoded []byte) string {
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
