package algofi

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMarketState(t *testing.T) {
	ms, err := decodeMarketState(DecodeState(testMarketEntries(2, testUSDCAssetID, testUSDCBankID, "usdc")), 6)
	require.Nil(t, err)

	assert.Equal(t, "0.25", ms.BorrowUtil.String())
	assert.Equal(t, "20000000", ms.TotalSupplyInterestRate.String())
	assert.Equal(t, "0.02", ms.TotalSupplyInterestRateDecimal().String())
	assert.Equal(t, "0.08", ms.TotalBorrowInterestRateDecimal().String())
	assert.Equal(t, "1000250", ms.UnderlyingTVL().String())

	require.NotNil(t, ms.Asset)
	assert.Equal(t, testUSDCAssetID, ms.Asset.UnderlyingAssetID)
	assert.Equal(t, testUSDCBankID, ms.Asset.BankAssetID)
	require.NotNil(t, ms.Asset.Oracle)
	assert.Equal(t, "usdc", ms.Asset.Oracle.PriceField)

	assert.Nil(t, ms.LiquidationIncentive, "absent config stays nil")
	assert.Equal(t, uint64(800), *ms.CollateralFactor)
}

func TestDecodeMarketState_Empty(t *testing.T) {
	ms, err := decodeMarketState(State{}, 6)
	require.Nil(t, err)

	assert.True(t, ms.BorrowUtil.IsZero())
	assert.True(t, ms.TotalSupplyInterestRate.IsZero())
	assert.Nil(t, ms.Asset)
	assert.Nil(t, ms.MarketCounter)
	assert.Equal(t, uint64(0), ms.UnderlyingCash)
}

func TestDecodeMarketState_PartialOracle(t *testing.T) {
	state := DecodeState([]StateEntry{
		uintEntry(keyAssetID, 5),
		uintEntry(keyOracleAppID, 9),
	})
	_, err := decodeMarketState(state, 6)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMarketState_PositionFromState(t *testing.T) {
	asset, err := NewAsset(testUSDCAssetID, testUSDCBankID, 6, nil, nil, nil)
	require.Nil(t, err)

	cf := uint64(1200)
	ms := &MarketState{
		Asset:                    asset,
		AssetPrice:               decimal.NewFromInt(2),
		CollateralFactor:         &cf,
		BankToUnderlyingExchange: 1_200_000_000,
		UnderlyingBorrowed:       5_000_000,
		OutstandingBorrowShares:  10_000_000,
	}

	position, err := ms.PositionFromState(DecodeState([]StateEntry{
		uintEntry(keyUserActiveCollateral, 100_000),
		uintEntry(keyUserBorrowShares, 2_000_000),
	}))
	require.Nil(t, err)

	assert.Equal(t, uint64(100_000), position.ActiveCollateralBank)
	assert.Equal(t, uint64(120_000), position.ActiveCollateralUnderlying)
	assert.Equal(t, "0.24", position.ActiveCollateralUSD.String())
	assert.Equal(t, "0.288", position.ActiveCollateralMaxBorrowUSD.String())
	assert.Equal(t, uint64(1_000_000), position.BorrowUnderlying)
	assert.Equal(t, "2", position.BorrowUSD.String())

	ms.OutstandingBorrowShares = 0
	position, err = ms.PositionFromState(DecodeState([]StateEntry{uintEntry(keyUserBorrowShares, 2_000_000)}))
	require.Nil(t, err)
	assert.Equal(t, uint64(0), position.BorrowUnderlying, "no outstanding shares means nothing borrowed")

	ms.CollateralFactor = nil
	_, err = ms.PositionFromState(State{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMarket_Refresh(t *testing.T) {
	ctx := context.Background()
	ledger := newTestProtocol()

	market, err := NewMarket(ctx, ledger, MarketOptions{AppID: testAlgoMarketID, Decimals: 6})
	require.Nil(t, err)

	state := market.State()
	assert.Equal(t, uint64(1500), state.AssetRawPrice)
	assert.Equal(t, "1.5", state.AssetPrice.String())
	assert.True(t, market.Asset().IsNative())

	ledger.setGlobal(testOracleAppID, uintEntry("algo", 2000))
	require.Nil(t, market.Refresh(ctx))
	assert.Equal(t, "2", market.State().AssetPrice.String())
	assert.Equal(t, "1.5", state.AssetPrice.String(), "earlier snapshots are not mutated")

	ledger.readErr = errors.New("node down")
	err = market.Refresh(ctx)
	assert.ErrorIs(t, err, ErrStateRead)
	assert.Equal(t, "2", market.State().AssetPrice.String(), "failed refresh keeps the snapshot")
}

func TestNewMarket_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewMarket(ctx, newFakeLedger(), MarketOptions{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewMarket(ctx, newFakeLedger(), MarketOptions{AppID: 12345})
	assert.ErrorIs(t, err, ErrStateRead)
}

func TestMarket_UserPosition(t *testing.T) {
	ctx := context.Background()
	ledger := newTestProtocol()
	storage := newTestAccount()

	ledger.setAccount(AccountInfo{
		Address: storage.address,
		AppsLocalState: []AppLocalState{{
			AppID: testAlgoMarketID,
			KeyValue: []StateEntry{
				uintEntry(keyUserActiveCollateral, 2_000_000),
				uintEntry(keyUserBorrowShares, 125),
			},
		}},
	})

	market, err := NewMarket(ctx, ledger, MarketOptions{AppID: testAlgoMarketID, Decimals: 6})
	require.Nil(t, err)

	position, err := market.UserPosition(ctx, storage.address)
	require.Nil(t, err)
	assert.Equal(t, uint64(2_000_000), position.ActiveCollateralUnderlying)
	assert.Equal(t, "3", position.ActiveCollateralUSD.String())
	assert.Equal(t, "2.4", position.ActiveCollateralMaxBorrowUSD.String())
	assert.Equal(t, uint64(125), position.BorrowUnderlying)
}

func TestMarket_StateAt(t *testing.T) {
	ctx := context.Background()
	ledger := newTestProtocol()

	market, err := NewMarket(ctx, ledger, MarketOptions{AppID: testUSDCMarketID, Decimals: 6})
	require.Nil(t, err)

	_, err = market.StateAt(ctx, 10)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	db := NewInMemoryDatabase()
	require.Nil(t, db.RecordState(testUSDCMarketID, 10, []StateEntry{
		uintEntry(keyUnderlyingBorrowed, 11),
		uintEntry(keyUnderlyingCash, 22),
		uintEntry(keyTotalBorrowInterestRate, 33),
	}))

	market, err = NewMarket(ctx, ledger, MarketOptions{AppID: testUSDCMarketID, Decimals: 6, Historical: db})
	require.Nil(t, err)

	borrowed, err := market.UnderlyingBorrowedAt(ctx, 15)
	assert.Nil(t, err)
	assert.Equal(t, uint64(11), borrowed)

	cash, err := market.UnderlyingCashAt(ctx, 10)
	assert.Nil(t, err)
	assert.Equal(t, uint64(22), cash)

	rate, err := market.TotalBorrowInterestRateAt(ctx, 10)
	assert.Nil(t, err)
	assert.Equal(t, uint64(33), rate)

	_, err = market.UnderlyingReservesAt(ctx, 10)
	assert.ErrorIs(t, err, ErrStateNotFound)

	_, err = market.UnderlyingBorrowedAt(ctx, 9)
	assert.ErrorIs(t, err, ErrStateNotFound)

	ms, err := market.MarketStateAt(ctx, 10)
	require.Nil(t, err)
	assert.Equal(t, "0.3333333333333333", ms.BorrowUtil.String())
}
