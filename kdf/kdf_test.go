package kdf_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/kdf"
	"github.com/occlock/vault/secmem"
)

func TestDeriveIsDeterministic(t *testing.T) {
	pass := secmem.Copy([]byte("correct horse battery staple"))
	defer pass.Release()
	salt := make([]byte, 16)
	for i := range salt {
		salt[i] = byte(i)
	}

	k1, err := kdf.Derive(pass, salt, kdf.DefaultPreset)
	require.NoError(t, err)
	defer k1.Release()

	k2, err := kdf.Derive(pass, salt, kdf.DefaultPreset)
	require.NoError(t, err)
	defer k2.Release()

	require.Equal(t, k1.Bytes(), k2.Bytes())
	require.Len(t, k1.Bytes(), kdf.KeyLen)
}

func TestDeriveDiffersWithSalt(t *testing.T) {
	pass := secmem.Copy([]byte("pw"))
	defer pass.Release()
	salt1 := make([]byte, 16)
	salt2 := make([]byte, 16)
	salt2[0] = 1

	k1, err := kdf.Derive(pass, salt1, kdf.DefaultPreset)
	require.NoError(t, err)
	defer k1.Release()
	k2, err := kdf.Derive(pass, salt2, kdf.DefaultPreset)
	require.NoError(t, err)
	defer k2.Release()

	require.NotEqual(t, k1.Bytes(), k2.Bytes())
}

func TestDeriveRejectsShortSalt(t *testing.T) {
	pass := secmem.Copy([]byte("pw"))
	defer pass.Release()
	_, err := kdf.Derive(pass, []byte("short"), kdf.DefaultPreset)
	require.Error(t, err)
}

func TestDeriveRejectsUnknownPreset(t *testing.T) {
	pass := secmem.Copy([]byte("pw"))
	defer pass.Release()
	salt := make([]byte, 16)
	_, err := kdf.Derive(pass, salt, 200)
	require.Error(t, err)
}
