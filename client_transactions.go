package algofi

import (
	"context"

	"github.com/pkg/errors"
)

func (c *Client) marketRef(symbol string) (ref MarketRef, err error) {
	market, err := c.Market(symbol)
	if err != nil {
		return
	}
	asset := market.Asset()
	if asset == nil {
		err = errors.Wrapf(ErrUnsupportedAsset, "market '%s' has no asset", symbol)
		return
	}
	return MarketRef{
		AppID:       market.AppID(),
		AssetID:     asset.UnderlyingAssetID,
		BankAssetID: asset.BankAssetID,
	}, nil
}

// GroupContext assembles the shared group inputs for address: default
// params, its storage account and every active market and oracle.
func (c *Client) GroupContext(ctx context.Context, address string) (g GroupContext, err error) {
	if address, err = c.address(address); err != nil {
		return
	}

	params, err := c.DefaultParams(ctx)
	if err != nil {
		return
	}

	storage, err := c.manager.StorageAddress(ctx, address)
	if err != nil {
		return
	}

	return GroupContext{
		Sender:         address,
		Params:         params,
		StorageAccount: storage,
		ManagerAppID:   c.manager.AppID(),
		MarketAppIDs:   c.ActiveMarketAppIDs(),
		OracleAppIDs:   c.ActiveOracleAppIDs(),
	}, nil
}

// checkBalance rejects a transfer the sender cannot cover when balance
// verification is on.
func (c *Client) checkBalance(ctx context.Context, address string, assetID, amount uint64) error {
	if !c.options.VerifyBalances {
		return nil
	}
	balance, err := c.UserBalance(ctx, assetID, address)
	if err != nil {
		return err
	}
	if balance < amount {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %d of asset %d, needs %d", address, balance, assetID, amount)
	}
	return nil
}

func (c *Client) prepareFunded(ctx context.Context, symbol string, amount uint64, address string, bank bool,
	prepare func(GroupContext, MarketRef) (*TransactionGroup, error)) (*TransactionGroup, error) {
	ref, err := c.marketRef(symbol)
	if err != nil {
		return nil, err
	}
	g, err := c.GroupContext(ctx, address)
	if err != nil {
		return nil, err
	}
	assetID := ref.AssetID
	if bank {
		assetID = ref.BankAssetID
	}
	if err = c.checkBalance(ctx, g.Sender, assetID, amount); err != nil {
		return nil, err
	}
	return prepare(g, ref)
}

func (c *Client) prepare(ctx context.Context, symbol, address string,
	prepare func(GroupContext, MarketRef) (*TransactionGroup, error)) (*TransactionGroup, error) {
	ref, err := c.marketRef(symbol)
	if err != nil {
		return nil, err
	}
	g, err := c.GroupContext(ctx, address)
	if err != nil {
		return nil, err
	}
	return prepare(g, ref)
}

func (c *Client) PrepareMintTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepareFunded(ctx, symbol, amount, address, false, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareMintTransactions(g, MintIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareMintToCollateralTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepareFunded(ctx, symbol, amount, address, false, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareMintToCollateralTransactions(g, MintToCollateralIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareBurnTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepareFunded(ctx, symbol, amount, address, true, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareBurnTransactions(g, BurnIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareAddCollateralTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepareFunded(ctx, symbol, amount, address, true, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareAddCollateralTransactions(g, AddCollateralIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareRemoveCollateralTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepare(ctx, symbol, address, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareRemoveCollateralTransactions(g, RemoveCollateralIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareRemoveCollateralUnderlyingTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepare(ctx, symbol, address, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareRemoveCollateralUnderlyingTransactions(g, RemoveCollateralUnderlyingIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareBorrowTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepare(ctx, symbol, address, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareBorrowTransactions(g, BorrowIn{Market: ref, Amount: amount})
	})
}

func (c *Client) PrepareRepayBorrowTransactions(ctx context.Context, symbol string, amount uint64, address string) (*TransactionGroup, error) {
	return c.prepareFunded(ctx, symbol, amount, address, false, func(g GroupContext, ref MarketRef) (*TransactionGroup, error) {
		return PrepareRepayBorrowTransactions(g, RepayBorrowIn{Market: ref, Amount: amount})
	})
}

// PrepareLiquidateTransactions repays amount of the borrow market for
// targetStorageAccount and seizes from its collateral market.
func (c *Client) PrepareLiquidateTransactions(ctx context.Context, targetStorageAccount, borrowSymbol string, amount uint64, collateralSymbol, address string) (group *TransactionGroup, err error) {
	borrowRef, err := c.marketRef(borrowSymbol)
	if err != nil {
		return
	}
	collateralRef, err := c.marketRef(collateralSymbol)
	if err != nil {
		return
	}
	g, err := c.GroupContext(ctx, address)
	if err != nil {
		return
	}
	if err = c.checkBalance(ctx, g.Sender, borrowRef.AssetID, amount); err != nil {
		return
	}
	return PrepareLiquidateTransactions(g, LiquidateIn{
		LiquidateeStorageAccount: targetStorageAccount,
		BorrowMarket:             borrowRef,
		CollateralMarket:         collateralRef,
		Amount:                   amount,
	})
}

func (c *Client) PrepareClaimRewardsTransactions(ctx context.Context, address string) (group *TransactionGroup, err error) {
	g, err := c.GroupContext(ctx, address)
	if err != nil {
		return
	}
	return PrepareClaimRewardsTransactions(g, ClaimRewardsIn{RewardsAssetIDs: c.manager.RewardsProgram().RewardsAssetIDs()})
}

// PrepareManagerOptinTransactions opts address into the protocol with the
// fresh storageAddress, covering the markets that fit one group.
func (c *Client) PrepareManagerOptinTransactions(ctx context.Context, storageAddress, address string) (group *TransactionGroup, err error) {
	if address, err = c.address(address); err != nil {
		return
	}
	params, err := c.DefaultParams(ctx)
	if err != nil {
		return
	}
	return PrepareManagerOptinTransactions(OptInIn{
		Sender:         address,
		StorageAccount: storageAddress,
		ManagerAppID:   c.manager.AppID(),
		MarketAppIDs:   c.MaxAtomicOptInMarketAppIDs(),
		Params:         params,
	})
}

func (c *Client) PrepareMarketOptinTransactions(ctx context.Context, symbol, address string) (group *TransactionGroup, err error) {
	market, err := c.Market(symbol)
	if err != nil {
		return
	}
	g, err := c.plainContext(ctx, address)
	if err != nil {
		return
	}
	return PrepareMarketOptinTransactions(g, market.AppID())
}

func (c *Client) PrepareAssetOptinTransactions(ctx context.Context, assetID uint64, address string) (group *TransactionGroup, err error) {
	g, err := c.plainContext(ctx, address)
	if err != nil {
		return
	}
	return PrepareAssetOptinTransactions(g, assetID)
}

func (c *Client) PreparePaymentTransaction(ctx context.Context, receiver string, amount uint64, address string) (group *TransactionGroup, err error) {
	g, err := c.plainContext(ctx, address)
	if err != nil {
		return
	}
	if err = c.checkBalance(ctx, g.Sender, NativeAssetID, amount); err != nil {
		return
	}
	return PreparePaymentTransaction(g, receiver, amount)
}

// plainContext is a GroupContext for groups without a preamble, which need
// no storage account.
func (c *Client) plainContext(ctx context.Context, address string) (g GroupContext, err error) {
	if g.Sender, err = c.address(address); err != nil {
		return
	}
	g.Params, err = c.DefaultParams(ctx)
	g.ManagerAppID = c.manager.AppID()
	return
}

func (c *Client) stakingContext(ctx context.Context, contract *StakingContract, address string) (g GroupContext, err error) {
	if address, err = c.address(address); err != nil {
		return
	}
	params, err := c.DefaultParams(ctx)
	if err != nil {
		return
	}
	storage, err := contract.Manager().StorageAddress(ctx, address)
	if err != nil {
		return
	}
	g = GroupContext{Sender: address, Params: params, StorageAccount: storage}
	return StakingGroupContext(g, contract.Manager().AppID(), contract.Market().AppID(), contract.OracleAppID()), nil
}

func (c *Client) PrepareStakingContractOptinTransactions(ctx context.Context, name, storageAddress, address string) (group *TransactionGroup, err error) {
	contract, err := c.StakingContract(name)
	if err != nil {
		return
	}
	if address, err = c.address(address); err != nil {
		return
	}
	params, err := c.DefaultParams(ctx)
	if err != nil {
		return
	}
	return PrepareStakingContractOptinTransactions(OptInIn{
		Sender:         address,
		StorageAccount: storageAddress,
		ManagerAppID:   contract.Manager().AppID(),
		MarketAppIDs:   []uint64{contract.Market().AppID()},
		Params:         params,
	})
}

func (c *Client) PrepareStakeTransactions(ctx context.Context, name string, amount uint64, address string) (group *TransactionGroup, err error) {
	contract, err := c.StakingContract(name)
	if err != nil {
		return
	}
	g, err := c.stakingContext(ctx, contract, address)
	if err != nil {
		return
	}
	ref := contract.MarketRef()
	if err = c.checkBalance(ctx, g.Sender, ref.AssetID, amount); err != nil {
		return
	}
	return PrepareStakeTransactions(g, StakeIn{Market: ref, Amount: amount})
}

func (c *Client) PrepareUnstakeTransactions(ctx context.Context, name string, amount uint64, address string) (group *TransactionGroup, err error) {
	contract, err := c.StakingContract(name)
	if err != nil {
		return
	}
	g, err := c.stakingContext(ctx, contract, address)
	if err != nil {
		return
	}
	return PrepareUnstakeTransactions(g, UnstakeIn{Market: contract.MarketRef(), Amount: amount})
}

func (c *Client) PrepareClaimStakingRewardsTransactions(ctx context.Context, name, address string) (group *TransactionGroup, err error) {
	contract, err := c.StakingContract(name)
	if err != nil {
		return
	}
	g, err := c.stakingContext(ctx, contract, address)
	if err != nil {
		return
	}
	return PrepareClaimStakingRewardsTransactions(g, ClaimStakingRewardsIn{
		RewardsAssetIDs: contract.Manager().RewardsProgram().RewardsAssetIDs(),
	})
}

// Submit sends signed group bytes, optionally waiting for confirmation for
// the configured number of rounds.
func (c *Client) Submit(ctx context.Context, signed []byte, wait bool) (txid string, err error) {
	txid, err = SubmitSigned(ctx, c.ledger, signed, wait, c.options.ConfirmationRounds)
	if err != nil {
		c.log.Error().Err(err).Msg("submission failed")
		return
	}
	c.log.Info().Msgf("submitted %s", txid)
	return
}

// RecordSnapshot stores the current global state of the manager, every
// active market and staking contract at the node's latest round.
func (c *Client) RecordSnapshot(ctx context.Context) (round uint64, err error) {
	if c.options.Recorder == nil {
		err = errors.Wrap(ErrUnsupportedOperation, "no state recorder configured")
		return
	}

	round, err = c.ledger.Status(ctx)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "status: %v", err)
		return
	}

	appIDs := append([]uint64{c.manager.AppID()}, c.ActiveMarketAppIDs()...)
	for _, contract := range c.stakingContracts {
		appIDs = append(appIDs, contract.Manager().AppID(), contract.Market().AppID())
	}

	for _, appID := range appIDs {
		var entries []StateEntry
		if entries, err = c.ledger.ApplicationGlobalState(ctx, appID); err != nil {
			err = errors.Wrapf(ErrStateRead, "app %d: %v", appID, err)
			return
		}
		if err = c.options.Recorder.RecordState(appID, round, entries); err != nil {
			return
		}
	}

	c.log.Info().Msgf("recorded %d applications at round %d", len(appIDs), round)
	return
}
