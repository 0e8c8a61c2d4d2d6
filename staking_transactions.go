package algofi

// StakingGroupContext scopes a GroupContext to one staking contract: its
// manager, and its single market and oracle. An oracle id of 0 leaves the
// update prices call without foreign apps.
func StakingGroupContext(g GroupContext, managerAppID, marketAppID, oracleAppID uint64) GroupContext {
	g.ManagerAppID = managerAppID
	g.MarketAppIDs = []uint64{marketAppID}
	g.OracleAppIDs = nil
	if oracleAppID != 0 {
		g.OracleAppIDs = []uint64{oracleAppID}
	}
	return g
}

type StakeIn struct {
	Market MarketRef
	Amount uint64
}

type UnstakeIn struct {
	Market MarketRef
	Amount uint64
}

type ClaimStakingRewardsIn struct {
	RewardsAssetIDs []uint64
}

// PrepareStakeTransactions stakes underlying with a staking contract. g
// must come from StakingGroupContext.
func PrepareStakeTransactions(g GroupContext, in StakeIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationMintToCollateral, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyMintToCollateral), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyMintToCollateral), g.storage(), g.manager(), nil).
		transfer(in.Market.AssetID, in.Market.Address(), in.Amount).
		group()
}

func PrepareUnstakeTransactions(g GroupContext, in UnstakeIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	var assets []uint64
	if in.Market.AssetID > NativeAssetID {
		assets = []uint64{in.Market.AssetID}
	}
	return newGroupBuilder(OperationRemoveCollateralUnderlying, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyRemoveCollateralUnderlying, uint64Bytes(in.Amount)), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyRemoveCollateralUnderlying), g.storage(), g.manager(), assets).
		group()
}

func PrepareClaimStakingRewardsTransactions(g GroupContext, in ClaimStakingRewardsIn) (*TransactionGroup, error) {
	return newGroupBuilder(OperationClaimRewards, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyClaimRewards), g.storage(), nil, in.RewardsAssetIDs).
		group()
}
