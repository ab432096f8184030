// Package errs implements the store's error taxonomy as a single Kind-tagged
// error type, in the style of upspin's errors.E: callers match on Kind with
// errors.As, and the chain is inspectable with errors.Is/Unwrap.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the engine's callers need to react to it.
type Kind uint8

const (
	Other Kind = iota
	Locked
	AlreadyUnlocked
	InvalidPassphrase
	Forbidden
	NoRecipient
	Conflict
	NotFound
	Cipher
	KeyDerivation
	InvalidBlock
	Padding
	InvalidStoreURL
	StoreNotFound
	IO
	Mutex
	JSON
)

func (k Kind) String() string {
	switch k {
	case Locked:
		return "locked"
	case AlreadyUnlocked:
		return "already unlocked"
	case InvalidPassphrase:
		return "invalid passphrase"
	case Forbidden:
		return "forbidden"
	case NoRecipient:
		return "no recipient"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not found"
	case Cipher:
		return "cipher"
	case KeyDerivation:
		return "key derivation"
	case InvalidBlock:
		return "invalid block"
	case Padding:
		return "padding"
	case InvalidStoreURL:
		return "invalid store url"
	case StoreNotFound:
		return "store not found"
	case IO:
		return "io"
	case Mutex:
		return "mutex"
	case JSON:
		return "json"
	default:
		return "error"
	}
}

// Error is the concrete error type carried through the engine. Op names the
// failing operation ("ring.Unlock", "index.Merge", ...); Kind classifies it;
// Err, if set, is the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error from an operation name plus any mix of a Kind and an
// underlying error. Mirrors upspin's errors.E variadic constructor.
func E(op string, args ...interface{}) *Error {
	e := &Error{Op: op}
	for _, a := range args {
		switch v := a.(type) {
		case Kind:
			e.Kind = v
		case error:
			e.Err = v
			var inner *Error
			if errors.As(v, &inner) && e.Kind == Other {
				e.Kind = inner.Kind
			}
		case string:
			e.Err = errors.New(v)
		}
	}
	return e
}

// KindOf reports the Kind carried by err, or Other if err is not (or does
// not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(kind Kind, err error) bool {
	return KindOf(err) == kind
}
