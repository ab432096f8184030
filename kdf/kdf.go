// Package kdf turns a passphrase into a symmetric wrapping key via Argon2,
// the same derivation primitive the teacher library used for its OPRF
// output (golang.org/x/crypto/argon2), repurposed here as the ring's
// passphrase KDF. Presets are forward-only: once shipped, a preset's
// parameters never change, new ones are only appended.
package kdf

import (
	"errors"

	"golang.org/x/crypto/argon2"

	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/secmem"
)

// KeyLen is the size in bytes of every derived wrapping key.
const KeyLen = 32

// MinSaltLen is the minimum acceptable salt length (spec: nonce >= 16 bytes).
const MinSaltLen = 16

// Argon2idParams are the parameters of a single preset.
type Argon2idParams struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
}

// Presets is the forward-only table of key-derivation parameter sets,
// indexed by preset number. Never mutate an existing entry; append only.
var Presets = []Argon2idParams{
	0: {MemoryKiB: 64 * 1024, Time: 3, Threads: 4},
}

// DefaultPreset is the preset used for newly-written private keys.
const DefaultPreset uint8 = 0

// Derive derives a KeyLen-byte wrapping key from passphrase and salt under
// the given preset, returning it in secure memory. passphrase is read but
// not retained; callers remain responsible for releasing it.
func Derive(passphrase *secmem.Buffer, salt []byte, preset uint8) (*secmem.Buffer, error) {
	const op = "kdf.Derive"
	if int(preset) >= len(Presets) {
		return nil, errs.E(op, errs.KeyDerivation, errors.New("unknown preset"))
	}
	if len(salt) < MinSaltLen {
		return nil, errs.E(op, errs.KeyDerivation, errors.New("salt too short"))
	}
	p := Presets[preset]
	key := argon2.IDKey(passphrase.Bytes(), salt, p.Time, p.MemoryKiB, p.Threads, KeyLen)
	return secmem.New(key), nil
}
