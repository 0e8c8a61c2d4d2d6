package algofi

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// StorageAddressStore remembers which storage account belongs to a user
// under a manager application.
type StorageAddressStore interface {
	GetStorageAddress(managerAppID uint64, address string) (string, error)
	SetStorageAddress(managerAppID uint64, address, storage string) error
}

func storageKey(managerAppID uint64, address string) string {
	return strconv.FormatUint(managerAppID, 10) + "/" + address
}

type InMemoryStorageAddressStore struct {
	mu        sync.RWMutex
	addresses map[string]string
}

var _ StorageAddressStore = &InMemoryStorageAddressStore{}

func NewInMemoryStorageAddressStore() *InMemoryStorageAddressStore {
	return &InMemoryStorageAddressStore{addresses: make(map[string]string)}
}

func (s *InMemoryStorageAddressStore) GetStorageAddress(managerAppID uint64, address string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storage, ok := s.addresses[storageKey(managerAppID, address)]
	if !ok {
		return "", errors.Wrapf(ErrStateNotFound, "no storage address cached for %s under app %d", address, managerAppID)
	}
	return storage, nil
}

func (s *InMemoryStorageAddressStore) SetStorageAddress(managerAppID uint64, address, storage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses[storageKey(managerAppID, address)] = storage
	return nil
}

// FileStorageAddressStore keeps the bindings in a JSON file so they survive
// restarts of the rpc service.
type FileStorageAddressStore struct {
	path string
	mem  *InMemoryStorageAddressStore
	mu   sync.Mutex
}

var _ StorageAddressStore = &FileStorageAddressStore{}

func NewFileStorageAddressStore(path string) (store *FileStorageAddressStore, err error) {
	store = &FileStorageAddressStore{
		path: path,
		mem:  NewInMemoryStorageAddressStore(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		err = errors.Wrap(err, "unable to read storage address file")
		return
	}

	addresses := map[string]string{}
	if err = json.Unmarshal(data, &addresses); err != nil {
		err = errors.Wrap(err, "unable to unmarshal storage address file")
		return
	}
	for key, storage := range addresses {
		store.mem.addresses[key] = storage
	}

	log.Info().Msgf("read %d storage addresses from file", len(store.mem.addresses))

	return
}

func (s *FileStorageAddressStore) GetStorageAddress(managerAppID uint64, address string) (string, error) {
	return s.mem.GetStorageAddress(managerAppID, address)
}

func (s *FileStorageAddressStore) SetStorageAddress(managerAppID uint64, address, storage string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.mem.SetStorageAddress(managerAppID, address, storage); err != nil {
		return
	}

	s.mem.mu.RLock()
	data, err := json.Marshal(s.mem.addresses)
	s.mem.mu.RUnlock()
	if err != nil {
		err = errors.Wrap(err, "unable to marshal storage addresses")
		return
	}

	if err = os.WriteFile(s.path, data, 0o644); err != nil {
		err = errors.Wrap(err, "unable to write storage address file")
		return
	}

	log.Debug().Msgf("wrote storage address for %s to file %s", address, s.path)

	return
}
