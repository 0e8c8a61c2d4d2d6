package algofi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageAddressStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	store, err := NewFileStorageAddressStore(path)
	require.Nil(t, err)

	_, err = store.GetStorageAddress(7, "user")
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.Nil(t, store.SetStorageAddress(7, "user", "storage"))

	reopened, err := NewFileStorageAddressStore(path)
	require.Nil(t, err)
	storage, err := reopened.GetStorageAddress(7, "user")
	assert.Nil(t, err)
	assert.Equal(t, "storage", storage)
}

func TestFileStorageAddressStore_NullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.Nil(t, os.WriteFile(path, []byte("null"), 0o644))

	store, err := NewFileStorageAddressStore(path)
	require.Nil(t, err)

	assert.NotPanics(t, func() {
		err = store.SetStorageAddress(7, "user", "storage")
	})
	require.Nil(t, err)

	storage, err := store.GetStorageAddress(7, "user")
	assert.Nil(t, err)
	assert.Equal(t, "storage", storage)
}

func TestManager_StorageAddress(t *testing.T) {
	ctx := testContext()
	ledger := newTestProtocol()
	user, storage := newTestAccount(), newTestAccount()
	ledger.bindStorage(user, storage, 0)

	cache := NewInMemoryStorageAddressStore()
	manager, err := NewManager(ctx, ledger, ManagerOptions{AppID: testManagerAppID, StorageAddresses: cache})
	require.Nil(t, err)

	address, err := manager.StorageAddress(ctx, user.address)
	require.Nil(t, err)
	assert.Equal(t, storage.address, address)

	cached, err := cache.GetStorageAddress(testManagerAppID, user.address)
	assert.Nil(t, err)
	assert.Equal(t, storage.address, cached)

	ledger.setAccount(AccountInfo{Address: user.address})
	address, err = manager.StorageAddress(ctx, user.address)
	assert.Nil(t, err)
	assert.Equal(t, storage.address, address, "bindings are served from the cache")

	_, err = manager.StorageAddress(ctx, newTestAccount().address)
	assert.ErrorIs(t, err, ErrNoStorageAddress)
}
