package algofi

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAsset(t *testing.T) {
	appID := uint64(7)
	field := "price"
	scale := uint64(1_000)

	asset, err := NewAsset(5, 6, 6, nil, nil, nil)
	require.Nil(t, err)
	assert.Nil(t, asset.Oracle)
	assert.False(t, asset.IsNative())

	asset, err = NewAsset(NativeAssetID, 6, 6, &appID, &field, &scale)
	require.Nil(t, err)
	assert.Equal(t, &OracleRef{AppID: 7, PriceField: "price", PriceScaleFactor: 1_000}, asset.Oracle)
	assert.True(t, asset.IsNative())

	_, err = NewAsset(5, 6, 6, &appID, nil, &scale)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewAsset(5, 6, 6, nil, &field, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewAsset(0, 6, 6, nil, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAsset_Price(t *testing.T) {
	ctx := context.Background()
	ledger := newTestProtocol()

	appID := testOracleAppID
	field := "algo"
	scale := uint64(1_000_000)
	asset, err := NewAsset(NativeAssetID, testAlgoBankID, 6, &appID, &field, &scale)
	require.Nil(t, err)

	raw, err := asset.RawPrice(ctx, ledger)
	require.Nil(t, err)
	assert.Equal(t, uint64(1500), raw)

	price, err := asset.Price(ctx, ledger)
	require.Nil(t, err)
	assert.Equal(t, "1.5", price.String())

	usd, err := asset.ToUSDLive(ctx, ledger, 4_000_000)
	require.Nil(t, err)
	assert.Equal(t, "6", usd.String())

	missing := "nope"
	asset.Oracle.PriceField = missing
	_, err = asset.RawPrice(ctx, ledger)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAsset_PriceFromRaw(t *testing.T) {
	asset := &Asset{UnderlyingAssetID: 5, Decimals: 8, Oracle: &OracleRef{AppID: 1, PriceField: "p", PriceScaleFactor: 1_000_000_000}}

	price, err := asset.PriceFromRaw(40_000)
	require.Nil(t, err)
	assert.Equal(t, "4", price.String())
	assert.Equal(t, "2", asset.ToUSD(50_000_000, price).String())

	asset.Oracle.PriceScaleFactor = 0
	_, err = asset.PriceFromRaw(1)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = (&Asset{UnderlyingAssetID: 5}).PriceFromRaw(1)
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.True(t, (&Asset{Decimals: 6}).ToUSD(0, decimal.NewFromInt(3)).IsZero())
}
