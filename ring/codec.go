package ring

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/occlock/vault/errs"
)

// Encode serializes a Keyring to its canonical on-disk bytes.
func Encode(kr *Keyring) ([]byte, error) {
	return json.Marshal(kr)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Keyring, error) {
	var kr Keyring
	if err := json.Unmarshal(data, &kr); err != nil {
		return nil, errs.E("ring.Decode", errs.InvalidBlock, err)
	}
	return &kr, nil
}

// ID returns the content address of encoded ring bytes.
func ID(encoded []byte) string {
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
