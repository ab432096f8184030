package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/occlock/vault/config"
	"github.com/occlock/vault/registry"
	"github.com/occlock/vault/secmem"
	"github.com/occlock/vault/suite"
)

func TestUpsertAndListStores(t *testing.T) {
	r := registry.New(registry.NewMemoryOpener(), suite.Default(), secmem.OSAllocator{}, nil, nil)

	err := r.UpsertStoreConfig(config.StoreConfig{Name: "personal", StoreURL: "mem://personal", ClientID: "n1", AutolockTimeoutSecs: 300})
	require.NoError(t, err)

	stores := r.ListStores()
	require.Len(t, stores, 1)
	require.Equal(t, "personal", stores[0].Name)

	name, ok := r.GetDefaultStore()
	require.True(t, ok)
	require.Equal(t, "personal", name)
}

func TestDeleteUnknownStoreFails(t *testing.T) {
	r := registry.New(registry.NewMemoryOpener(), suite.Default(), secmem.OSAllocator{}, nil, nil)
	err := r.DeleteStoreConfig("nope")
	require.Error(t, err)
}

func TestStoreLookupAndOperation(t *testing.T) {
	r := registry.New(registry.NewMemoryOpener(), suite.Default(), secmem.OSAllocator{}, nil, nil)
	require.NoError(t, r.UpsertStoreConfig(config.StoreConfig{Name: "s1", StoreURL: "mem://s1", ClientID: "n1"}))

	store, err := r.Store("s1")
	require.NoError(t, err)
	require.True(t, store.Status().Locked)
}

func TestGenerateIDAndPassword(t *testing.T) {
	r := registry.New(registry.NewMemoryOpener(), suite.Default(), secmem.OSAllocator{}, nil, nil)
	id1 := r.GenerateID()
	id2 := r.GenerateID()
	require.NotEqual(t, id1, id2)

	pw, err := registry.GeneratePassword(registry.PasswordParams{Length: 16, Digits: true, Symbols: true, Uppercase: true})
	require.NoError(t, err)
	require.Len(t, pw, 16)
}
