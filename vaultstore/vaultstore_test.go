package vaultstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/config"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/secmem"
	"github.com/occlock/vault/secretstore"
	"github.com/occlock/vault/suite"
	"github.com/occlock/vault/vaultstore"
)

func openStore(bs blockstore.Store, clientID string) *vaultstore.Store {
	cfg := config.StoreConfig{Name: "test", ClientID: clientID, AutolockTimeoutSecs: 60}
	return vaultstore.Open(cfg, bs, suite.Default(), secmem.OSAllocator{}, nil, nil)
}

func TestS1SingleIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	s := openStore(bs, "n1")

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	_, err = s.Add(ctx, secretstore.SecretVersion{
		SecretID: "sec1",
		Name:     "gmail",
		Type:     "login",
		Properties: []secretstore.Property{
			{Name: "password", Value: "x"},
		},
	})
	require.NoError(t, err)

	s.Lock()
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	secret, err := s.Get(ctx, "sec1")
	require.NoError(t, err)
	require.Len(t, secret.Current.Properties, 1)
	require.Equal(t, "x", secret.Current.Properties[0].Value)
}

func TestS2TwoIdentities(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	s := openStore(bs, "n1")

	idA, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, idA, secmem.Copy([]byte("pw1"))))

	idB, err := s.AddIdentity(ctx, "B", "b@example.com", secmem.Copy([]byte("pw2")))
	require.NoError(t, err)

	_, err = s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "gmail", Type: "login"})
	require.NoError(t, err)

	s.Lock()
	require.NoError(t, s.Unlock(ctx, idB, secmem.Copy([]byte("pw2"))))

	name := ""
	res := s.List(secretstore.Filter{Name: &name})
	found := false
	for _, e := range res.Entries {
		if e.Entry.ID == "sec1" {
			found = true
		}
	}
	require.True(t, found)

	_, err = s.Get(ctx, "sec1")
	require.NoError(t, err)
}

func TestS3WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	s := openStore(bs, "n1")

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)

	err = s.Unlock(ctx, id, secmem.Copy([]byte("bad")))
	require.Equal(t, errs.InvalidPassphrase, errs.KindOf(err))
}

func TestS4VersionHistory(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	s := openStore(bs, "n1")

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	_, err = s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "v1", Type: "note", Timestamp: 1000})
	require.NoError(t, err)
	v2ID, err := s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "v2", Type: "note", Timestamp: 2000})
	require.NoError(t, err)

	secret, err := s.Get(ctx, "sec1")
	require.NoError(t, err)
	require.Equal(t, v2ID, secret.CurrentBlockID)
	require.Len(t, secret.Versions, 2)
}

func TestS5DeletionThenReadd(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	s := openStore(bs, "n1")

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	_, err = s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "v1", Type: "note", Timestamp: 100})
	require.NoError(t, err)
	_, err = s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "v1", Type: "note", Deleted: true, Timestamp: 200})
	require.NoError(t, err)
	v3ID, err := s.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "v3", Type: "note", Timestamp: 300})
	require.NoError(t, err)

	secret, err := s.Get(ctx, "sec1")
	require.NoError(t, err)
	require.False(t, secret.Current.Deleted)
	require.Equal(t, v3ID, secret.CurrentBlockID)
}

func TestS6MergeDeterminism(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	n1 := openStore(bs, "n1")

	id, err := n1.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, n1.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	n2 := openStore(bs, "n2")
	require.NoError(t, n2.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	_, err = n1.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "from n1", Type: "note", Timestamp: 500})
	require.NoError(t, err)
	_, err = n2.Add(ctx, secretstore.SecretVersion{SecretID: "sec1", Name: "from n2", Type: "note", Timestamp: 500})
	require.NoError(t, err)

	require.NoError(t, n1.UpdateIndex(ctx))
	require.NoError(t, n2.UpdateIndex(ctx))

	s1, err := n1.Get(ctx, "sec1")
	require.NoError(t, err)
	s2, err := n2.Get(ctx, "sec1")
	require.NoError(t, err)
	require.Equal(t, s1.CurrentBlockID, s2.CurrentBlockID)
}

func TestP6LockZeroesBuffers(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	mock := &secmem.MockAllocator{}
	cfg := config.StoreConfig{Name: "test", ClientID: "n1", AutolockTimeoutSecs: 60}
	s := vaultstore.Open(cfg, bs, suite.Default(), mock, nil, nil)

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))
	s.Lock()

	require.True(t, mock.AllReleasedAndZeroed())
}

func TestAutolockTick(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemory()
	cfg := config.StoreConfig{Name: "test", ClientID: uuid.NewString(), AutolockTimeoutSecs: 1}
	s := vaultstore.Open(cfg, bs, suite.Default(), secmem.OSAllocator{}, nil, nil)

	id, err := s.Bootstrap(ctx, "A", "a@example.com", secmem.Copy([]byte("pw1")))
	require.NoError(t, err)
	require.NoError(t, s.Unlock(ctx, id, secmem.Copy([]byte("pw1"))))

	s.Tick(time.Now().Add(2 * time.Second))
	require.True(t, s.Status().Locked)
}
