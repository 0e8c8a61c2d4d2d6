package algofi

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	algoRef = MarketRef{AppID: testAlgoMarketID, AssetID: NativeAssetID, BankAssetID: testAlgoBankID}
	usdcRef = MarketRef{AppID: testUSDCMarketID, AssetID: testUSDCAssetID, BankAssetID: testUSDCBankID}
)

func assertGrouped(t *testing.T, group *TransactionGroup) {
	require.NotNil(t, group)
	gid := group.GroupID()
	assert.False(t, gid == types.Digest{})
	for i, txn := range group.Transactions {
		assert.Equal(t, gid, txn.Group, "transaction %d", i)
	}
	assert.Nil(t, group.Verify())
}

func TestPrepareMintTransactions(t *testing.T) {
	g, sender, storage := testGroupContext(t)

	group, err := PrepareMintTransactions(g, MintIn{Market: algoRef, Amount: 5_000})
	require.Nil(t, err)
	assertGrouped(t, group)
	require.Equal(t, PreambleLength+3, group.Len())

	body := group.Transactions[PreambleLength:]

	assert.Equal(t, testManagerAppID, uint64(body[0].ApplicationID))
	assert.Equal(t, keyMint, firstArg(body[0]))

	assert.Equal(t, testAlgoMarketID, uint64(body[1].ApplicationID))
	assert.Equal(t, []string{storage.address}, addresses(body[1].Accounts))
	assert.Equal(t, []uint64{testManagerAppID}, appIDs(body[1].ForeignApps))
	assert.Equal(t, []uint64{testAlgoBankID}, assetIDs(body[1].ForeignAssets))

	payment := body[2]
	assert.Equal(t, types.PaymentTx, payment.Type, "the native asset moves as a payment")
	assert.Equal(t, sender.address, payment.Sender.String())
	assert.Equal(t, crypto.GetApplicationAddress(testAlgoMarketID), payment.Receiver)
	assert.Equal(t, types.MicroAlgos(5_000), payment.Amount)

	group, err = PrepareMintTransactions(g, MintIn{Market: usdcRef, Amount: 7})
	require.Nil(t, err)
	transfer := group.Transactions[group.Len()-1]
	assert.Equal(t, types.AssetTransferTx, transfer.Type)
	assert.Equal(t, testUSDCAssetID, uint64(transfer.XferAsset))
	assert.Equal(t, uint64(7), transfer.AssetAmount)
	assert.Equal(t, crypto.GetApplicationAddress(testUSDCMarketID), transfer.AssetReceiver)
}

func TestPrepareTransactions_Layouts(t *testing.T) {
	g, _, _ := testGroupContext(t)

	testCases := []struct {
		name     string
		prepare  func() (*TransactionGroup, error)
		key      string
		extraArg []byte
		assets   []uint64
		transfer uint64
	}{
		{"mint to collateral", func() (*TransactionGroup, error) {
			return PrepareMintToCollateralTransactions(g, MintToCollateralIn{Market: usdcRef, Amount: 9})
		}, keyMintToCollateral, nil, nil, testUSDCAssetID},
		{"burn", func() (*TransactionGroup, error) {
			return PrepareBurnTransactions(g, BurnIn{Market: usdcRef, Amount: 9})
		}, keyBurn, nil, []uint64{testUSDCAssetID}, testUSDCBankID},
		{"add collateral", func() (*TransactionGroup, error) {
			return PrepareAddCollateralTransactions(g, AddCollateralIn{Market: usdcRef, Amount: 9})
		}, keyAddCollateral, nil, nil, testUSDCBankID},
		{"remove collateral", func() (*TransactionGroup, error) {
			return PrepareRemoveCollateralTransactions(g, RemoveCollateralIn{Market: usdcRef, Amount: 9})
		}, keyRemoveCollateral, uint64Bytes(9), []uint64{testUSDCBankID}, 0},
		{"remove collateral underlying", func() (*TransactionGroup, error) {
			return PrepareRemoveCollateralUnderlyingTransactions(g, RemoveCollateralUnderlyingIn{Market: usdcRef, Amount: 9})
		}, keyRemoveCollateralUnderlying, uint64Bytes(9), []uint64{testUSDCAssetID}, 0},
		{"borrow", func() (*TransactionGroup, error) {
			return PrepareBorrowTransactions(g, BorrowIn{Market: usdcRef, Amount: 9})
		}, keyBorrow, uint64Bytes(9), []uint64{testUSDCAssetID}, 0},
		{"repay borrow", func() (*TransactionGroup, error) {
			return PrepareRepayBorrowTransactions(g, RepayBorrowIn{Market: usdcRef, Amount: 9})
		}, keyRepayBorrow, nil, []uint64{testUSDCAssetID}, testUSDCAssetID},
		{"repay native borrow", func() (*TransactionGroup, error) {
			return PrepareRepayBorrowTransactions(g, RepayBorrowIn{Market: algoRef, Amount: 9})
		}, keyRepayBorrow, nil, nil, NativeAssetID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			group, err := tc.prepare()
			require.Nil(t, err)
			assertGrouped(t, group)

			body := group.Transactions[PreambleLength:]
			expectedLen := 2
			if tc.transfer != 0 {
				expectedLen = 3
			}
			require.Len(t, body, expectedLen)

			assert.Equal(t, tc.key, firstArg(body[0]))
			if tc.extraArg != nil {
				require.Len(t, body[0].ApplicationArgs, 2)
				assert.Equal(t, tc.extraArg, body[0].ApplicationArgs[1])
			} else {
				assert.Len(t, body[0].ApplicationArgs, 1)
			}

			assert.Equal(t, tc.key, firstArg(body[1]))
			assert.Equal(t, tc.assets, assetIDs(body[1].ForeignAssets))

			if tc.transfer == NativeAssetID {
				assert.Equal(t, types.PaymentTx, body[2].Type)
			} else if tc.transfer != 0 {
				assert.Equal(t, types.AssetTransferTx, body[2].Type)
				assert.Equal(t, tc.transfer, uint64(body[2].XferAsset))
			}
		})
	}
}

func TestPrepareLiquidateTransactions(t *testing.T) {
	g, sender, storage := testGroupContext(t)
	liquidatee := newTestAccount()

	group, err := PrepareLiquidateTransactions(g, LiquidateIn{
		LiquidateeStorageAccount: liquidatee.address,
		BorrowMarket:             usdcRef,
		CollateralMarket:         algoRef,
		Amount:                   1_000,
	})
	require.Nil(t, err)
	assertGrouped(t, group)
	require.Equal(t, PreambleLength+4, group.Len())

	assert.Equal(t, []string{liquidatee.address}, addresses(group.Transactions[2].Accounts),
		"protocol data is updated for the liquidatee")

	body := group.Transactions[PreambleLength:]

	assert.Equal(t, keyLiquidate, firstArg(body[0]))
	assert.Equal(t, []uint64{testAlgoMarketID, testUSDCMarketID}, appIDs(body[0].ForeignApps))

	assert.Equal(t, testUSDCMarketID, uint64(body[1].ApplicationID))
	assert.Equal(t, []string{liquidatee.address}, addresses(body[1].Accounts))
	assert.Equal(t, []uint64{testManagerAppID, testAlgoMarketID}, appIDs(body[1].ForeignApps))

	assert.Equal(t, types.AssetTransferTx, body[2].Type)
	assert.Equal(t, testUSDCAssetID, uint64(body[2].XferAsset))
	assert.Equal(t, sender.address, body[2].Sender.String())

	assert.Equal(t, testAlgoMarketID, uint64(body[3].ApplicationID))
	assert.Equal(t, []string{liquidatee.address, storage.address}, addresses(body[3].Accounts))
	assert.Equal(t, []uint64{testManagerAppID, testUSDCMarketID}, appIDs(body[3].ForeignApps))
	assert.Equal(t, []uint64{testAlgoBankID}, assetIDs(body[3].ForeignAssets))
}

func TestPrepareClaimRewardsTransactions(t *testing.T) {
	g, _, storage := testGroupContext(t)

	group, err := PrepareClaimRewardsTransactions(g, ClaimRewardsIn{RewardsAssetIDs: []uint64{testRewardsAssetID}})
	require.Nil(t, err)
	require.Equal(t, PreambleLength+1, group.Len())

	claim := group.Transactions[PreambleLength]
	assert.Equal(t, keyClaimRewards, firstArg(claim))
	assert.Equal(t, []string{storage.address}, addresses(claim.Accounts))
	assert.Equal(t, []uint64{testRewardsAssetID}, assetIDs(claim.ForeignAssets))
	assert.Equal(t, types.MicroAlgos(FeeSensitiveFlatFee), group.Transactions[1].Fee)
}

func TestPrepareTransactions_InvalidInput(t *testing.T) {
	g, _, _ := testGroupContext(t)

	_, err := PrepareBorrowTransactions(g, BorrowIn{Market: MarketRef{}, Amount: 1})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = PrepareMintTransactions(g, MintIn{Market: MarketRef{AppID: 5}, Amount: 1})
	assert.ErrorIs(t, err, ErrConfiguration, "asset id 0 is rejected")
}

func TestPrepareStakingTransactions(t *testing.T) {
	g, _, storage := testGroupContext(t)
	g = StakingGroupContext(g, 900, 901, 902)
	ref := MarketRef{AppID: 901, AssetID: 777, BankAssetID: 778}

	group, err := PrepareStakeTransactions(g, StakeIn{Market: ref, Amount: 50})
	require.Nil(t, err)
	assertGrouped(t, group)
	require.Equal(t, PreambleLength+3, group.Len())
	assert.Equal(t, []uint64{901}, appIDs(group.Transactions[0].ForeignApps))
	assert.Equal(t, []uint64{902}, appIDs(group.Transactions[1].ForeignApps))
	assert.Equal(t, types.MicroAlgos(DefaultFlatFee), group.Transactions[1].Fee, "stake pays the default fee")
	assert.Equal(t, keyMintToCollateral, firstArg(group.Transactions[PreambleLength]))
	assert.Equal(t, uint64(900), uint64(group.Transactions[PreambleLength].ApplicationID))
	assert.Equal(t, uint64(777), uint64(group.Transactions[PreambleLength+2].XferAsset))

	group, err = PrepareUnstakeTransactions(g, UnstakeIn{Market: ref, Amount: 50})
	require.Nil(t, err)
	require.Equal(t, PreambleLength+2, group.Len())
	assert.Equal(t, []uint64{777}, assetIDs(group.Transactions[PreambleLength+1].ForeignAssets))

	group, err = PrepareUnstakeTransactions(g, UnstakeIn{Market: MarketRef{AppID: 901, AssetID: NativeAssetID}, Amount: 50})
	require.Nil(t, err)
	assert.Empty(t, group.Transactions[PreambleLength+1].ForeignAssets)

	group, err = PrepareClaimStakingRewardsTransactions(g, ClaimStakingRewardsIn{RewardsAssetIDs: []uint64{5}})
	require.Nil(t, err)
	claim := group.Transactions[PreambleLength]
	assert.Equal(t, []string{storage.address}, addresses(claim.Accounts))
	assert.Equal(t, uint64(900), uint64(claim.ApplicationID))
}

func TestPrepareTransactions_Preamble(t *testing.T) {
	g, _, storage := testGroupContext(t)
	liquidatee := newTestAccount()
	staking := StakingGroupContext(g, 900, 901, 902)
	stakingRef := MarketRef{AppID: 901, AssetID: 777, BankAssetID: 778}

	testCases := []struct {
		name      string
		prepare   func() (*TransactionGroup, error)
		sensitive bool
		storage   string
		manager   uint64
		markets   []uint64
		oracles   []uint64
	}{
		{"mint", func() (*TransactionGroup, error) {
			return PrepareMintTransactions(g, MintIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"mint to collateral", func() (*TransactionGroup, error) {
			return PrepareMintToCollateralTransactions(g, MintToCollateralIn{Market: usdcRef, Amount: 1})
		}, false, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"burn", func() (*TransactionGroup, error) {
			return PrepareBurnTransactions(g, BurnIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"add collateral", func() (*TransactionGroup, error) {
			return PrepareAddCollateralTransactions(g, AddCollateralIn{Market: usdcRef, Amount: 1})
		}, false, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"remove collateral", func() (*TransactionGroup, error) {
			return PrepareRemoveCollateralTransactions(g, RemoveCollateralIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"remove collateral underlying", func() (*TransactionGroup, error) {
			return PrepareRemoveCollateralUnderlyingTransactions(g, RemoveCollateralUnderlyingIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"borrow", func() (*TransactionGroup, error) {
			return PrepareBorrowTransactions(g, BorrowIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"repay borrow", func() (*TransactionGroup, error) {
			return PrepareRepayBorrowTransactions(g, RepayBorrowIn{Market: usdcRef, Amount: 1})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"liquidate", func() (*TransactionGroup, error) {
			return PrepareLiquidateTransactions(g, LiquidateIn{
				LiquidateeStorageAccount: liquidatee.address,
				BorrowMarket:             usdcRef,
				CollateralMarket:         algoRef,
				Amount:                   1,
			})
		}, true, liquidatee.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"claim rewards", func() (*TransactionGroup, error) {
			return PrepareClaimRewardsTransactions(g, ClaimRewardsIn{RewardsAssetIDs: []uint64{testRewardsAssetID}})
		}, true, storage.address, testManagerAppID, g.MarketAppIDs, g.OracleAppIDs},
		{"stake", func() (*TransactionGroup, error) {
			return PrepareStakeTransactions(staking, StakeIn{Market: stakingRef, Amount: 1})
		}, false, storage.address, 900, []uint64{901}, []uint64{902}},
		{"unstake", func() (*TransactionGroup, error) {
			return PrepareUnstakeTransactions(staking, UnstakeIn{Market: stakingRef, Amount: 1})
		}, true, storage.address, 900, []uint64{901}, []uint64{902}},
		{"claim staking rewards", func() (*TransactionGroup, error) {
			return PrepareClaimStakingRewardsTransactions(staking, ClaimStakingRewardsIn{RewardsAssetIDs: []uint64{5}})
		}, true, storage.address, 900, []uint64{901}, []uint64{902}},
	}

	expectedArgs := []string{"fmv", "up", "upd",
		"dummy_one", "dummy_two", "dummy_three", "dummy_four", "dummy_five",
		"dummy_six", "dummy_seven", "dummy_eight", "dummy_nine"}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			group, err := tc.prepare()
			require.Nil(t, err)
			require.Greater(t, group.Len(), PreambleLength)

			preamble := group.Transactions[:PreambleLength]
			for i, txn := range preamble {
				assert.Equal(t, types.ApplicationCallTx, txn.Type, "call %d", i)
				assert.Equal(t, tc.manager, uint64(txn.ApplicationID), "call %d", i)
				require.Len(t, txn.ApplicationArgs, 1, "call %d", i)
				assert.Equal(t, expectedArgs[i], firstArg(txn), "call %d", i)

				if i == 1 {
					assert.Equal(t, tc.oracles, appIDs(txn.ForeignApps))
					continue
				}
				assert.Equal(t, tc.markets, appIDs(txn.ForeignApps), "call %d", i)
				assert.Equal(t, types.MicroAlgos(DefaultFlatFee), txn.Fee, "call %d", i)
			}

			assert.Equal(t, uint64Bytes(42), preamble[0].Note)

			fee := types.MicroAlgos(DefaultFlatFee)
			if tc.sensitive {
				fee = types.MicroAlgos(FeeSensitiveFlatFee)
			}
			assert.Equal(t, fee, preamble[1].Fee)

			assert.Equal(t, []string{tc.storage}, addresses(preamble[2].Accounts))
			for _, txn := range append([]types.Transaction{preamble[0], preamble[1]}, preamble[3:]...) {
				assert.Empty(t, txn.Accounts)
			}
		})
	}
}

func TestStakingGroupContext_NoOracle(t *testing.T) {
	g, _, _ := testGroupContext(t)

	staking := StakingGroupContext(g, 900, 901, 0)
	assert.Empty(t, staking.OracleAppIDs)

	group, err := PrepareStakeTransactions(staking, StakeIn{Market: MarketRef{AppID: 901, AssetID: 777, BankAssetID: 778}, Amount: 1})
	require.Nil(t, err)
	assert.Empty(t, group.Transactions[1].ForeignApps, "no oracle means no foreign app")
}
