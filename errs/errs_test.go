package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/errs"
)

func TestKindOf(t *testing.T) {
	err := errs.E("ring.Unlock", errs.InvalidPassphrase)
	require.Equal(t, errs.InvalidPassphrase, errs.KindOf(err))
	require.True(t, errs.Is(errs.InvalidPassphrase, err))
	require.False(t, errs.Is(errs.Locked, err))
}

func TestKindOfPropagatesThroughWrap(t *testing.T) {
	inner := errs.E("kdf.Derive", errs.KeyDerivation, errors.New("argon2 failed"))
	outer := errs.E("ring.Unlock", fmt.Errorf("deriving wrap key: %w", inner))
	require.Equal(t, errs.KeyDerivation, errs.KindOf(outer))
}

func TestKindOfDefaultsToOther(t *testing.T) {
	require.Equal(t, errs.Other, errs.KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := errs.E("index.Merge", errs.Conflict, errors.New("cas failed"))
	require.Equal(t, "index.Merge: conflict: cas failed", err.Error())
}
