package algofi

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type stateSnapshot struct {
	Round   uint64
	Entries []StateEntry
}

type InMemoryDatabase struct {
	snapshots map[uint64][]stateSnapshot
	storage   *InMemoryStorageAddressStore
	mu        sync.RWMutex
}

var _ StateDatabase = &InMemoryDatabase{}

func NewInMemoryDatabase() *InMemoryDatabase {
	return &InMemoryDatabase{
		snapshots: make(map[uint64][]stateSnapshot),
		storage:   NewInMemoryStorageAddressStore(),
	}
}

// RecordState keeps snapshots sorted by round; a second snapshot for the
// same round replaces the first.
func (db *InMemoryDatabase) RecordState(appID, round uint64, entries []StateEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshots := db.snapshots[appID]
	i := sort.Search(len(snapshots), func(i int) bool { return snapshots[i].Round >= round })

	copied := append([]StateEntry(nil), entries...)
	if i < len(snapshots) && snapshots[i].Round == round {
		snapshots[i].Entries = copied
		return nil
	}

	snapshots = append(snapshots, stateSnapshot{})
	copy(snapshots[i+1:], snapshots[i:])
	snapshots[i] = stateSnapshot{Round: round, Entries: copied}
	db.snapshots[appID] = snapshots
	return nil
}

// GlobalStateAt returns the latest snapshot at or before round.
func (db *InMemoryDatabase) GlobalStateAt(_ context.Context, appID, round uint64) ([]StateEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snapshots := db.snapshots[appID]
	i := sort.Search(len(snapshots), func(i int) bool { return snapshots[i].Round > round })
	if i == 0 {
		return nil, errors.Wrapf(ErrStateNotFound, "no state for app %d at or before round %d", appID, round)
	}
	return snapshots[i-1].Entries, nil
}

func (db *InMemoryDatabase) RoundSpan(appID uint64) (first, last uint64, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snapshots := db.snapshots[appID]
	if len(snapshots) == 0 {
		return 0, 0, nil
	}
	return snapshots[0].Round, snapshots[len(snapshots)-1].Round, nil
}

func (db *InMemoryDatabase) GetStorageAddress(managerAppID uint64, address string) (string, error) {
	return db.storage.GetStorageAddress(managerAppID, address)
}

func (db *InMemoryDatabase) SetStorageAddress(managerAppID uint64, address, storage string) error {
	return db.storage.SetStorageAddress(managerAppID, address, storage)
}
