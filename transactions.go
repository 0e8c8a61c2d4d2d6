package algofi

import (
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

// MarketRef identifies a market and its two assets.
type MarketRef struct {
	AppID       uint64 `json:"appId"`
	AssetID     uint64 `json:"assetId"`
	BankAssetID uint64 `json:"bankAssetId"`
}

func (m MarketRef) Address() string {
	return crypto.GetApplicationAddress(m.AppID).String()
}

func (m MarketRef) validate() error {
	if m.AppID == 0 {
		return errors.Wrap(ErrConfiguration, "market app id must be specified")
	}
	return nil
}

type MintIn struct {
	Market MarketRef
	Amount uint64
}

type MintToCollateralIn struct {
	Market MarketRef
	Amount uint64
}

type BurnIn struct {
	Market MarketRef
	Amount uint64
}

type AddCollateralIn struct {
	Market MarketRef
	Amount uint64
}

type RemoveCollateralIn struct {
	Market MarketRef
	Amount uint64
}

type RemoveCollateralUnderlyingIn struct {
	Market MarketRef
	Amount uint64
}

type BorrowIn struct {
	Market MarketRef
	Amount uint64
}

type RepayBorrowIn struct {
	Market MarketRef
	Amount uint64
}

type LiquidateIn struct {
	LiquidateeStorageAccount string
	BorrowMarket             MarketRef
	CollateralMarket         MarketRef
	Amount                   uint64
}

type ClaimRewardsIn struct {
	RewardsAssetIDs []uint64
}

// groupBuilder collects a preamble and a body, stopping at the first error.
type groupBuilder struct {
	g    GroupContext
	txns []types.Transaction
	err  error
}

func newGroupBuilder(op Operation, g GroupContext, storageAccount string) *groupBuilder {
	b := &groupBuilder{g: g}
	b.txns, b.err = preambleTransactions(op, g, storageAccount)
	return b
}

func (b *groupBuilder) call(appID uint64, args [][]byte, accounts []string, apps, assets []uint64) *groupBuilder {
	if b.err != nil {
		return b
	}
	txn, err := b.g.appCall(b.g.Params, appID, args, accounts, apps, assets, nil)
	if err != nil {
		b.err = err
		return b
	}
	b.txns = append(b.txns, txn)
	return b
}

func (b *groupBuilder) transfer(assetID uint64, receiver string, amount uint64) *groupBuilder {
	if b.err != nil {
		return b
	}
	txn, err := b.g.transfer(assetID, receiver, amount)
	if err != nil {
		b.err = err
		return b
	}
	b.txns = append(b.txns, txn)
	return b
}

func (b *groupBuilder) group() (*TransactionGroup, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewTransactionGroup(b.txns)
}

func (g GroupContext) storage() []string {
	return []string{g.StorageAccount}
}

func (g GroupContext) manager() []uint64 {
	return []uint64{g.ManagerAppID}
}

// PrepareMintTransactions supplies underlying to a market for bank assets.
func PrepareMintTransactions(g GroupContext, in MintIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationMint, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyMint), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyMint), g.storage(), g.manager(), []uint64{in.Market.BankAssetID}).
		transfer(in.Market.AssetID, in.Market.Address(), in.Amount).
		group()
}

// PrepareMintToCollateralTransactions supplies underlying and posts the
// resulting bank assets as collateral in one step.
func PrepareMintToCollateralTransactions(g GroupContext, in MintToCollateralIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationMintToCollateral, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyMintToCollateral), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyMintToCollateral), g.storage(), g.manager(), nil).
		transfer(in.Market.AssetID, in.Market.Address(), in.Amount).
		group()
}

// PrepareBurnTransactions returns bank assets to the market for underlying.
func PrepareBurnTransactions(g GroupContext, in BurnIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationBurn, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyBurn), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyBurn), g.storage(), g.manager(), []uint64{in.Market.AssetID}).
		transfer(in.Market.BankAssetID, in.Market.Address(), in.Amount).
		group()
}

func PrepareAddCollateralTransactions(g GroupContext, in AddCollateralIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationAddCollateral, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyAddCollateral), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyAddCollateral), g.storage(), g.manager(), nil).
		transfer(in.Market.BankAssetID, in.Market.Address(), in.Amount).
		group()
}

// PrepareRemoveCollateralTransactions withdraws collateral as bank assets.
func PrepareRemoveCollateralTransactions(g GroupContext, in RemoveCollateralIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationRemoveCollateral, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyRemoveCollateral, uint64Bytes(in.Amount)), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyRemoveCollateral), g.storage(), g.manager(), []uint64{in.Market.BankAssetID}).
		group()
}

// PrepareRemoveCollateralUnderlyingTransactions withdraws collateral as
// underlying.
func PrepareRemoveCollateralUnderlyingTransactions(g GroupContext, in RemoveCollateralUnderlyingIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationRemoveCollateralUnderlying, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyRemoveCollateralUnderlying, uint64Bytes(in.Amount)), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyRemoveCollateralUnderlying), g.storage(), g.manager(), []uint64{in.Market.AssetID}).
		group()
}

func PrepareBorrowTransactions(g GroupContext, in BorrowIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationBorrow, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyBorrow, uint64Bytes(in.Amount)), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyBorrow), g.storage(), g.manager(), []uint64{in.Market.AssetID}).
		group()
}

// PrepareRepayBorrowTransactions repays borrowed underlying. The native
// asset is never listed as a foreign asset.
func PrepareRepayBorrowTransactions(g GroupContext, in RepayBorrowIn) (*TransactionGroup, error) {
	if err := in.Market.validate(); err != nil {
		return nil, err
	}
	var assets []uint64
	if in.Market.AssetID != NativeAssetID {
		assets = []uint64{in.Market.AssetID}
	}
	return newGroupBuilder(OperationRepayBorrow, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyRepayBorrow), nil, nil, nil).
		call(in.Market.AppID, opArgs(keyRepayBorrow), g.storage(), g.manager(), assets).
		transfer(in.Market.AssetID, in.Market.Address(), in.Amount).
		group()
}

// PrepareLiquidateTransactions repays part of the liquidatee's borrow and
// seizes their collateral. The preamble is scoped to the liquidatee's
// storage account; g.StorageAccount is the liquidator's.
func PrepareLiquidateTransactions(g GroupContext, in LiquidateIn) (*TransactionGroup, error) {
	if err := in.BorrowMarket.validate(); err != nil {
		return nil, err
	}
	if err := in.CollateralMarket.validate(); err != nil {
		return nil, err
	}
	return newGroupBuilder(OperationLiquidate, g, in.LiquidateeStorageAccount).
		call(g.ManagerAppID, opArgs(keyLiquidate), nil, g.MarketAppIDs, nil).
		call(in.BorrowMarket.AppID, opArgs(keyLiquidate),
			[]string{in.LiquidateeStorageAccount},
			[]uint64{g.ManagerAppID, in.CollateralMarket.AppID}, nil).
		transfer(in.BorrowMarket.AssetID, in.BorrowMarket.Address(), in.Amount).
		call(in.CollateralMarket.AppID, opArgs(keyLiquidate),
			[]string{in.LiquidateeStorageAccount, g.StorageAccount},
			[]uint64{g.ManagerAppID, in.BorrowMarket.AppID},
			[]uint64{in.CollateralMarket.BankAssetID}).
		group()
}

func PrepareClaimRewardsTransactions(g GroupContext, in ClaimRewardsIn) (*TransactionGroup, error) {
	return newGroupBuilder(OperationClaimRewards, g, g.StorageAccount).
		call(g.ManagerAppID, opArgs(keyClaimRewards), g.storage(), nil, in.RewardsAssetIDs).
		group()
}
