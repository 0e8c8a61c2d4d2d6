package algofi

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// StakingContract pairs a staking manager with its single market.
type StakingContract struct {
	Name    string
	info    StakingContractInfo
	manager *Manager
	market  *Market
}

type StakingStorageState struct {
	UnrealizedRewards          uint64 `json:"unrealizedRewards"`
	SecondaryUnrealizedRewards uint64 `json:"secondaryUnrealizedRewards"`
	StakedBank                 uint64 `json:"stakedBank"`
	StakedUnderlying           uint64 `json:"stakedUnderlying"`
}

func NewStakingContract(ctx context.Context, reader StateReader, name string, info StakingContractInfo, storageAddresses StorageAddressStore, historical HistoricalStateSource) (contract *StakingContract, err error) {
	manager, err := NewManager(ctx, reader, ManagerOptions{
		AppID:            info.ManagerAppID,
		StorageAddresses: storageAddresses,
	})
	if err != nil {
		err = errors.WithMessagef(err, "staking contract '%s' manager", name)
		return
	}

	market, err := NewMarket(ctx, reader, MarketOptions{
		AppID:      info.MarketAppID,
		Decimals:   info.Decimals,
		Historical: historical,
	})
	if err != nil {
		err = errors.WithMessagef(err, "staking contract '%s' market", name)
		return
	}

	return &StakingContract{
		Name:    name,
		info:    info,
		manager: manager,
		market:  market,
	}, nil
}

func (s *StakingContract) Manager() *Manager {
	return s.manager
}

func (s *StakingContract) Market() *Market {
	return s.market
}

func (s *StakingContract) Info() StakingContractInfo {
	return s.info
}

func (s *StakingContract) OracleAppID() uint64 {
	if asset := s.market.Asset(); asset != nil && asset.Oracle != nil {
		return asset.Oracle.AppID
	}
	return 0
}

// Staked is the contract's total active collateral.
func (s *StakingContract) Staked() uint64 {
	return s.market.State().ActiveCollateral
}

func (s *StakingContract) Refresh(ctx context.Context) (err error) {
	apply, err := s.load(ctx)
	if err != nil {
		return
	}
	apply()
	return
}

// load reads the manager and market and returns the function that applies
// both.
func (s *StakingContract) load(ctx context.Context) (apply func(), err error) {
	program, err := s.manager.load(ctx)
	if err != nil {
		return
	}
	state, err := s.market.load(ctx)
	if err != nil {
		return
	}
	return func() {
		s.manager.set(program)
		s.market.set(state)
	}, nil
}

func (s *StakingContract) MarketRef() MarketRef {
	ref := MarketRef{AppID: s.market.AppID(), AssetID: s.info.UnderlyingAssetID, BankAssetID: s.info.BankAssetID}
	if asset := s.market.Asset(); asset != nil {
		ref.AssetID = asset.UnderlyingAssetID
		ref.BankAssetID = asset.BankAssetID
	}
	return ref
}

func (s *StakingContract) StorageState(ctx context.Context, storageAddress string, now time.Time) (state StakingStorageState, err error) {
	rewards, err := s.manager.StorageUnrealizedRewards(ctx, storageAddress, []*Market{s.market}, now)
	if err != nil {
		return
	}

	position, err := s.market.UserPosition(ctx, storageAddress)
	if err != nil {
		return
	}

	return StakingStorageState{
		UnrealizedRewards:          rewards.UnrealizedRewards,
		SecondaryUnrealizedRewards: rewards.SecondaryUnrealizedRewards,
		StakedBank:                 position.ActiveCollateralBank,
		StakedUnderlying:           position.ActiveCollateralUnderlying,
	}, nil
}

func (s *StakingContract) UserState(ctx context.Context, address string, now time.Time) (state StakingStorageState, err error) {
	storage, err := s.manager.StorageAddress(ctx, address)
	if err != nil {
		return
	}
	return s.StorageState(ctx, storage, now)
}
