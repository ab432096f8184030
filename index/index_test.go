package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/index"
)

type fakeSource struct {
	versions map[string]struct {
		secretID string
		ts       int64
		entry    index.SecretEntry
	}
}

func newFakeSource() *fakeSource {
	return &fakeSource{versions: make(map[string]struct {
		secretID string
		ts       int64
		entry    index.SecretEntry
	})}
}

func (f *fakeSource) put(blockID, secretID string, ts int64, entry index.SecretEntry) {
	f.versions[blockID] = struct {
		secretID string
		ts       int64
		entry    index.SecretEntry
	}{secretID, ts, entry}
}

func (f *fakeSource) Open(blockID string) (string, int64, index.SecretEntry, bool) {
	v, ok := f.versions[blockID]
	if !ok {
		return "", 0, index.SecretEntry{}, false
	}
	return v.secretID, v.ts, v.entry, true
}

func TestVersionHistoryOrdering(t *testing.T) {
	src := newFakeSource()
	src.put("blkV1", "sec1", 1000, index.SecretEntry{Name: "v1"})
	src.put("blkV2", "sec1", 2000, index.SecretEntry{Name: "v2"})

	ix := index.Rebuild([]index.HeadOp{
		{NodeID: "n1", Operation: index.Add, BlockID: "blkV1", Timestamp: 1000},
		{NodeID: "n1", Operation: index.Add, BlockID: "blkV2", Timestamp: 2000},
	}, src)

	e, ok := ix.Get("sec1")
	require.True(t, ok)
	require.Equal(t, "blkV2", e.CurrentBlock)
	require.Len(t, e.VersionRefs, 2)
	require.Equal(t, "blkV1", e.VersionRefs[0].BlockID)
	require.Equal(t, "blkV2", e.VersionRefs[1].BlockID)
}

func TestDeletionThenReadd(t *testing.T) {
	src := newFakeSource()
	src.put("blkV1", "sec1", 100, index.SecretEntry{Name: "v1", Deleted: false})
	src.put("blkDel", "sec1", 200, index.SecretEntry{Name: "v1", Deleted: true})
	src.put("blkV3", "sec1", 300, index.SecretEntry{Name: "v3", Deleted: false})

	ix := index.Rebuild([]index.HeadOp{
		{NodeID: "n1", Operation: index.Add, BlockID: "blkV1", Timestamp: 100},
		{NodeID: "n1", Operation: index.Delete, BlockID: "blkDel", Timestamp: 200},
		{NodeID: "n1", Operation: index.Add, BlockID: "blkV3", Timestamp: 300},
	}, src)

	e, ok := ix.Get("sec1")
	require.True(t, ok)
	require.False(t, e.Entry.Deleted)
	require.Equal(t, "blkV3", e.CurrentBlock)
}

func TestMergeDeterminismAcrossNodes(t *testing.T) {
	src := newFakeSource()
	src.put("blkA", "sec1", 500, index.SecretEntry{Name: "from n1"})
	src.put("blkB", "sec1", 500, index.SecretEntry{Name: "from n2"})

	ops := []index.HeadOp{
		{NodeID: "n1", Operation: index.Add, BlockID: "blkA", Timestamp: 500},
		{NodeID: "n2", Operation: index.Add, BlockID: "blkB", Timestamp: 500},
	}
	ix1 := index.Rebuild(ops, src)

	reversed := []index.HeadOp{ops[1], ops[0]}
	ix2 := index.Rebuild(reversed, src)

	e1, _ := ix1.Get("sec1")
	e2, _ := ix2.Get("sec1")
	require.Equal(t, e1.CurrentBlock, e2.CurrentBlock)
	require.Equal(t, "blkB", e1.CurrentBlock) // lexicographically greater of blkA/blkB
}

func TestEngineAppendAndRebuild(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()
	eng := index.NewEngine(store, "node1")

	src := newFakeSource()
	blockID, err := store.Put(ctx, []byte("sealed-secret-version-1"))
	require.NoError(t, err)
	src.put(blockID, "sec1", 111, index.SecretEntry{Name: "first"})

	_, err = eng.Append(ctx, index.Add, blockID, 111)
	require.NoError(t, err)

	require.NoError(t, eng.Rebuild(ctx, src))
	e, ok := eng.Projection().Get("sec1")
	require.True(t, ok)
	require.Equal(t, blockID, e.CurrentBlock)

	_, err = eng.Checkpoint(ctx)
	require.NoError(t, err)

	checkpointID, err := store.Named(ctx, blockstore.RefIndex)
	require.NoError(t, err)
	require.NotEmpty(t, checkpointID)
}
