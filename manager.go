package algofi

import (
	"context"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/pkg/errors"
)

type ManagerOptions struct {
	AppID uint64
	// StorageAddresses caches user to storage account bindings. Optional.
	StorageAddresses StorageAddressStore
}

// Manager tracks the protocol manager application and its rewards program.
type Manager struct {
	appID   uint64
	address string
	reader  StateReader
	store   StorageAddressStore
	program RewardsProgram
	mu      sync.RWMutex
}

type ManagerStorageState struct {
	UserGlobalMaxBorrowInDollars uint64 `json:"userGlobalMaxBorrowInDollars"`
	UserGlobalBorrowedInDollars  uint64 `json:"userGlobalBorrowedInDollars"`
}

func NewManager(ctx context.Context, reader StateReader, options ManagerOptions) (manager *Manager, err error) {
	if options.AppID == 0 {
		err = errors.Wrap(ErrConfiguration, "manager app id must be specified")
		return
	}

	manager = &Manager{
		appID:   options.AppID,
		address: crypto.GetApplicationAddress(options.AppID).String(),
		reader:  reader,
		store:   options.StorageAddresses,
	}

	if err = manager.Refresh(ctx); err != nil {
		return nil, err
	}

	return
}

func (m *Manager) AppID() uint64 {
	return m.appID
}

func (m *Manager) Address() string {
	return m.address
}

func (m *Manager) RewardsProgram() RewardsProgram {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.program
}

// Refresh re-reads the rewards program from the manager's global state.
func (m *Manager) Refresh(ctx context.Context) (err error) {
	program, err := m.load(ctx)
	if err != nil {
		return
	}
	m.set(program)
	return
}

func (m *Manager) load(ctx context.Context) (program RewardsProgram, err error) {
	state, err := readGlobalState(ctx, m.reader, m.appID)
	if err != nil {
		return
	}
	return newRewardsProgram(state), nil
}

func (m *Manager) set(program RewardsProgram) {
	m.mu.Lock()
	m.program = program
	m.mu.Unlock()

	log.Debug().Msgf("refreshed manager %d (rewards program %d)", m.appID, program.RewardsProgramNumber)
}

// StorageAddress finds the storage account bound to a user. Bindings never
// change once made, so found addresses are cached.
func (m *Manager) StorageAddress(ctx context.Context, address string) (storage string, err error) {
	if m.store != nil {
		if storage, err = m.store.GetStorageAddress(m.appID, address); err == nil {
			return
		} else if !errors.Is(err, ErrStateNotFound) {
			return
		}
	}

	local, err := readLocalState(ctx, m.reader, address, m.appID)
	if err != nil {
		return
	}

	storage, err = local.Address(keyUserStorageAddress)
	if err != nil {
		err = errors.Wrapf(ErrNoStorageAddress, "account %s", address)
		return
	}

	if m.store != nil {
		if err = m.store.SetStorageAddress(m.appID, address, storage); err != nil {
			return
		}
	}

	return
}

func (m *Manager) StorageState(ctx context.Context, storageAddress string) (state ManagerStorageState, err error) {
	local, err := readLocalState(ctx, m.reader, storageAddress, m.appID)
	if err != nil {
		return
	}
	return ManagerStorageState{
		UserGlobalMaxBorrowInDollars: local.UintOrZero(keyUserGlobalMaxBorrowInDollars),
		UserGlobalBorrowedInDollars:  local.UintOrZero(keyUserGlobalBorrowedInDollars),
	}, nil
}

func (m *Manager) UserState(ctx context.Context, address string) (state ManagerStorageState, err error) {
	storage, err := m.StorageAddress(ctx, address)
	if err != nil {
		return
	}
	return m.StorageState(ctx, storage)
}

func (m *Manager) StorageUnrealizedRewards(ctx context.Context, storageAddress string, markets []*Market, now time.Time) (RewardsResult, error) {
	return m.RewardsProgram().StorageUnrealizedRewards(ctx, m.reader, m.appID, storageAddress, markets, now)
}

func (m *Manager) UserUnrealizedRewards(ctx context.Context, address string, markets []*Market, now time.Time) (result RewardsResult, err error) {
	storage, err := m.StorageAddress(ctx, address)
	if err != nil {
		return
	}
	return m.StorageUnrealizedRewards(ctx, storage, markets, now)
}
