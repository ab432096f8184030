package secmem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/secmem"
)

func TestReleaseZeroes(t *testing.T) {
	buf, err := (secmem.OSAllocator{}).Alloc(32)
	require.NoError(t, err)
	b := buf.Bytes()
	for i := range b {
		b[i] = 0xAA
	}
	buf.Release()
	require.Nil(t, buf.Bytes())
	require.Equal(t, make([]byte, 32), b)
}

func TestReleaseIsIdempotent(t *testing.T) {
	buf, err := (secmem.OSAllocator{}).Alloc(16)
	require.NoError(t, err)
	buf.Release()
	require.NotPanics(t, func() { buf.Release() })
}

func TestMockAllocatorTracksZeroing(t *testing.T) {
	m := &secmem.MockAllocator{}
	b1, err := m.Alloc(8)
	require.NoError(t, err)
	b2, err := m.Alloc(8)
	require.NoError(t, err)

	copy(b1.Bytes(), []byte("secret!!"))
	copy(b2.Bytes(), []byte("passwrd!"))

	require.False(t, m.AllReleasedAndZeroed())

	b1.Release()
	require.False(t, m.AllReleasedAndZeroed())

	b2.Release()
	require.True(t, m.AllReleasedAndZeroed())
}
