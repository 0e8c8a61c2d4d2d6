package algofi

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OracleRef points at the oracle application and global field that prices
// an asset.
type OracleRef struct {
	AppID            uint64 `json:"appId"`
	PriceField       string `json:"priceField"`
	PriceScaleFactor uint64 `json:"priceScaleFactor"`
}

type Asset struct {
	UnderlyingAssetID uint64     `json:"underlyingAssetId"`
	BankAssetID       uint64     `json:"bankAssetId"`
	Decimals          uint64     `json:"decimals"`
	Oracle            *OracleRef `json:"oracle,omitempty"`
}

// NewAsset builds an asset. The oracle fields are all-or-none: an app id
// without a field name or scale factor is a configuration error.
func NewAsset(underlyingAssetID, bankAssetID, decimals uint64, oracleAppID *uint64, priceField *string, priceScaleFactor *uint64) (asset *Asset, err error) {
	if underlyingAssetID == 0 {
		err = errors.Wrap(ErrConfiguration, "asset id 0 is not a valid asset")
		return
	}

	asset = &Asset{
		UnderlyingAssetID: underlyingAssetID,
		BankAssetID:       bankAssetID,
		Decimals:          decimals,
	}

	set := 0
	for _, present := range []bool{oracleAppID != nil, priceField != nil, priceScaleFactor != nil} {
		if present {
			set++
		}
	}

	switch set {
	case 0:
	case 3:
		asset.Oracle = &OracleRef{
			AppID:            *oracleAppID,
			PriceField:       *priceField,
			PriceScaleFactor: *priceScaleFactor,
		}
	default:
		if oracleAppID == nil {
			err = errors.Wrap(ErrConfiguration, "oracle app id must be specified")
		} else if priceField == nil {
			err = errors.Wrap(ErrConfiguration, "oracle price field must be specified")
		} else {
			err = errors.Wrap(ErrConfiguration, "oracle price scale factor must be specified")
		}
		asset = nil
	}

	return
}

func (a *Asset) IsNative() bool {
	return a.UnderlyingAssetID == NativeAssetID
}

// RawPrice reads the oracle's price field as stored on chain.
func (a *Asset) RawPrice(ctx context.Context, reader StateReader) (price uint64, err error) {
	if a.Oracle == nil {
		err = errors.Wrapf(ErrConfiguration, "no oracle app id for asset %d", a.UnderlyingAssetID)
		return
	}

	state, err := readGlobalState(ctx, reader, a.Oracle.AppID)
	if err != nil {
		return
	}

	price, ok := state.Uint(a.Oracle.PriceField)
	if !ok {
		err = errors.Wrapf(ErrConfiguration, "oracle %d has no price field '%s'", a.Oracle.AppID, a.Oracle.PriceField)
	}
	return
}

// Price is the dollar price of one whole unit of the asset.
func (a *Asset) Price(ctx context.Context, reader StateReader) (price decimal.Decimal, err error) {
	raw, err := a.RawPrice(ctx, reader)
	if err != nil {
		return
	}
	return a.PriceFromRaw(raw)
}

// PriceFromRaw converts an oracle reading: raw × 10^decimals / (scale × 1000).
func (a *Asset) PriceFromRaw(raw uint64) (price decimal.Decimal, err error) {
	if a.Oracle == nil {
		err = errors.Wrapf(ErrConfiguration, "no oracle app id for asset %d", a.UnderlyingAssetID)
		return
	}
	if a.Oracle.PriceScaleFactor == 0 {
		err = errors.Wrapf(ErrConfiguration, "oracle %d has a zero price scale factor", a.Oracle.AppID)
		return
	}
	divisor := decimalFromUint(a.Oracle.PriceScaleFactor).Mul(decimal.NewFromInt(priceScaleFactor))
	price = decimalFromUint(raw).Mul(pow10(a.Decimals)).Div(divisor)
	return
}

// ToUSD values an amount of base units at price.
func (a *Asset) ToUSD(amount uint64, price decimal.Decimal) decimal.Decimal {
	return decimalFromUint(amount).Mul(price).Div(pow10(a.Decimals))
}

// ToUSDLive is ToUSD with a fresh oracle read.
func (a *Asset) ToUSDLive(ctx context.Context, reader StateReader, amount uint64) (usd decimal.Decimal, err error) {
	price, err := a.Price(ctx, reader)
	if err != nil {
		return
	}
	return a.ToUSD(amount, price), nil
}
