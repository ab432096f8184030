package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/block"
	"github.com/occlock/vault/suite"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	registry := suite.Default()
	s, _ := registry.Get(suite.EdX25519ChaCha20)
	pubA, privA, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer privA.Release()
	pubB, privB, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer privB.Release()

	b, err := block.Seal(registry, []block.PublicIdentity{
		{ID: "bob", PublicKeys: []suite.PublicKey{pubB}},
		{ID: "alice", PublicKeys: []suite.PublicKey{pubA}},
	}, []byte("hello, world"), nil)
	require.NoError(t, err)

	encoded, err := block.Encode(b)
	require.NoError(t, err)

	decoded, err := block.Decode(encoded)
	require.NoError(t, err)

	reencoded, err := block.Encode(decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestBlockIDStable(t *testing.T) {
	registry := suite.Default()
	s, _ := registry.Get(suite.RSAAESGCM)
	pub, priv, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer priv.Release()

	b, err := block.Seal(registry, []block.PublicIdentity{
		{ID: "alice", PublicKeys: []suite.PublicKey{pub}},
	}, []byte("payload"), nil)
	require.NoError(t, err)

	encoded, err := block.Encode(b)
	require.NoError(t, err)
	id1 := block.ID(encoded)
	id2 := block.ID(encoded)
	require.Equal(t, id1, id2)

	reencoded, err := block.Encode(b)
	require.NoError(t, err)
	require.Equal(t, id1, block.ID(reencoded))
}

func TestSealOpenRoundTrip(t *testing.T) {
	registry := suite.Default()
	s, _ := registry.Get(suite.EdX25519ChaCha20)
	pubA, privA, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer privA.Release()
	pubB, privB, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer privB.Release()

	b, err := block.Seal(registry, []block.PublicIdentity{
		{ID: "alice", PublicKeys: []suite.PublicKey{pubA}},
		{ID: "bob", PublicKeys: []suite.PublicKey{pubB}},
	}, []byte("the password is hunter2"), []byte("aad"))
	require.NoError(t, err)

	pt, err := block.Open(registry, b, "bob", privB.Bytes())
	require.NoError(t, err)
	require.Equal(t, "the password is hunter2", string(pt))

	_, privC, err := s.GenerateKeypair()
	require.NoError(t, err)
	defer privC.Release()
	_, err = block.Open(registry, b, "carol", privC.Bytes())
	require.Error(t, err)
}

func TestSealSplitsHeadersAcrossSuites(t *testing.T) {
	registry := suite.Default()
	rsaSuite, _ := registry.Get(suite.RSAAESGCM)
	edSuite, _ := registry.Get(suite.EdX25519ChaCha20)

	pubRSA, privRSA, err := rsaSuite.GenerateKeypair()
	require.NoError(t, err)
	defer privRSA.Release()
	pubEd, privEd, err := edSuite.GenerateKeypair()
	require.NoError(t, err)
	defer privEd.Release()

	b, err := block.Seal(registry, []block.PublicIdentity{
		{ID: "rsa-only", PublicKeys: []suite.PublicKey{pubRSA}},
		{ID: "ed-only", PublicKeys: []suite.PublicKey{pubEd}},
	}, []byte("split"), nil)
	require.NoError(t, err)
	require.Len(t, b.Headers, 2)

	ptRSA, err := block.Open(registry, b, "rsa-only", privRSA.Bytes())
	require.NoError(t, err)
	require.Equal(t, "split", string(ptRSA))

	ptEd, err := block.Open(registry, b, "ed-only", privEd.Bytes())
	require.NoError(t, err)
	require.Equal(t, "split", string(ptEd))
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := block.Decode([]byte{0x01, 0x00})
	require.Error(t, err)
}
