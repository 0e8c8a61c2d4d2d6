package algofi

import (
	"context"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MarketState is one decoded snapshot of a market application. Config and
// risk fields are nil when absent; aggregates default to zero.
type MarketState struct {
	MarketCounter            *uint64 `json:"marketCounter,omitempty"`
	UnderlyingAssetID        *uint64 `json:"underlyingAssetId,omitempty"`
	BankAssetID              *uint64 `json:"bankAssetId,omitempty"`
	OracleAppID              *uint64 `json:"oracleAppId,omitempty"`
	OraclePriceField         *string `json:"oraclePriceField,omitempty"`
	OraclePriceScaleFactor   *uint64 `json:"oraclePriceScaleFactor,omitempty"`
	CollateralFactor         *uint64 `json:"collateralFactor,omitempty"`
	LiquidationIncentive     *uint64 `json:"liquidationIncentive,omitempty"`
	ReserveFactor            *uint64 `json:"reserveFactor,omitempty"`
	BaseInterestRate         *uint64 `json:"baseInterestRate,omitempty"`
	Slope1                   *uint64 `json:"slope1,omitempty"`
	Slope2                   *uint64 `json:"slope2,omitempty"`
	UtilizationOptimal       *uint64 `json:"utilizationOptimal,omitempty"`
	MarketSupplyCapInDollars *uint64 `json:"marketSupplyCapInDollars,omitempty"`
	MarketBorrowCapInDollars *uint64 `json:"marketBorrowCapInDollars,omitempty"`

	ActiveCollateral         uint64 `json:"activeCollateral"`
	BankCirculation          uint64 `json:"bankCirculation"`
	BankToUnderlyingExchange uint64 `json:"bankToUnderlyingExchange"`
	UnderlyingBorrowed       uint64 `json:"underlyingBorrowed"`
	OutstandingBorrowShares  uint64 `json:"outstandingBorrowShares"`
	UnderlyingCash           uint64 `json:"underlyingCash"`
	UnderlyingReserves       uint64 `json:"underlyingReserves"`
	TotalBorrowInterestRate  uint64 `json:"totalBorrowInterestRate"`

	BorrowUtil              decimal.Decimal `json:"borrowUtil"`
	TotalSupplyInterestRate decimal.Decimal `json:"totalSupplyInterestRate"`

	Asset         *Asset          `json:"asset,omitempty"`
	AssetRawPrice uint64          `json:"assetRawPrice"`
	AssetPrice    decimal.Decimal `json:"assetPrice"`
}

// decodeMarketState applies the market default policy to decoded global
// state and derives utilisation and the supply rate.
func decodeMarketState(state State, decimals uint64) (ms *MarketState, err error) {
	ms = &MarketState{
		MarketCounter:            state.OptionalUint(keyManagerMarketCounter),
		UnderlyingAssetID:        state.OptionalUint(keyAssetID),
		BankAssetID:              state.OptionalUint(keyBankAssetID),
		OracleAppID:              state.OptionalUint(keyOracleAppID),
		OraclePriceField:         state.OptionalString(keyOraclePriceField),
		OraclePriceScaleFactor:   state.OptionalUint(keyOraclePriceScaleFactor),
		CollateralFactor:         state.OptionalUint(keyCollateralFactor),
		LiquidationIncentive:     state.OptionalUint(keyLiquidationIncentive),
		ReserveFactor:            state.OptionalUint(keyReserveFactor),
		BaseInterestRate:         state.OptionalUint(keyBaseInterestRate),
		Slope1:                   state.OptionalUint(keySlope1),
		Slope2:                   state.OptionalUint(keySlope2),
		UtilizationOptimal:       state.OptionalUint(keyUtilizationOptimal),
		MarketSupplyCapInDollars: state.OptionalUint(keyMarketSupplyCapInDollars),
		MarketBorrowCapInDollars: state.OptionalUint(keyMarketBorrowCapInDollars),
		ActiveCollateral:         state.UintOrZero(keyActiveCollateral),
		BankCirculation:          state.UintOrZero(keyBankCirculation),
		BankToUnderlyingExchange: state.UintOrZero(keyBankToUnderlyingExchange),
		UnderlyingBorrowed:       state.UintOrZero(keyUnderlyingBorrowed),
		OutstandingBorrowShares:  state.UintOrZero(keyOutstandingBorrowShares),
		UnderlyingCash:           state.UintOrZero(keyUnderlyingCash),
		UnderlyingReserves:       state.UintOrZero(keyUnderlyingReserves),
		TotalBorrowInterestRate:  state.UintOrZero(keyTotalBorrowInterestRate),
	}

	ms.BorrowUtil = borrowUtil(ms.UnderlyingBorrowed, ms.UnderlyingCash, ms.UnderlyingReserves)
	ms.TotalSupplyInterestRate = decimalFromUint(ms.TotalBorrowInterestRate).Mul(ms.BorrowUtil)

	if ms.UnderlyingAssetID != nil {
		var bankAssetID uint64
		if ms.BankAssetID != nil {
			bankAssetID = *ms.BankAssetID
		}
		ms.Asset, err = NewAsset(*ms.UnderlyingAssetID, bankAssetID, decimals,
			ms.OracleAppID, ms.OraclePriceField, ms.OraclePriceScaleFactor)
		if err != nil {
			return nil, err
		}
	}

	return
}

func borrowUtil(borrowed, cash, reserves uint64) decimal.Decimal {
	total := decimalFromUint(borrowed).Add(decimalFromUint(cash)).Add(decimalFromUint(reserves))
	if total.IsZero() {
		return decimal.Zero
	}
	return decimalFromUint(borrowed).Div(total)
}

// TotalBorrowInterestRateDecimal is the borrow rate as a fraction.
func (ms *MarketState) TotalBorrowInterestRateDecimal() decimal.Decimal {
	return decimalFromUint(ms.TotalBorrowInterestRate).Div(decimalScaleFactor)
}

// TotalSupplyInterestRateDecimal is the supply rate as a fraction.
func (ms *MarketState) TotalSupplyInterestRateDecimal() decimal.Decimal {
	return ms.TotalSupplyInterestRate.Div(decimalScaleFactor)
}

// UnderlyingTVL is borrowed plus collateral converted to underlying units.
func (ms *MarketState) UnderlyingTVL() decimal.Decimal {
	collateral := decimalFromUint(ms.ActiveCollateral).
		Mul(decimalFromUint(ms.BankToUnderlyingExchange)).
		Div(decimalScaleFactor)
	return decimalFromUint(ms.UnderlyingBorrowed).Add(collateral)
}

type UserPosition struct {
	ActiveCollateralBank         uint64          `json:"activeCollateralBank"`
	ActiveCollateralUnderlying   uint64          `json:"activeCollateralUnderlying"`
	ActiveCollateralUSD          decimal.Decimal `json:"activeCollateralUsd"`
	ActiveCollateralMaxBorrowUSD decimal.Decimal `json:"activeCollateralMaxBorrowUsd"`
	BorrowShares                 uint64          `json:"borrowShares"`
	BorrowUnderlying             uint64          `json:"borrowUnderlying"`
	BorrowUSD                    decimal.Decimal `json:"borrowUsd"`
}

// PositionFromState derives a user position from the user's local state
// under the market app.
func (ms *MarketState) PositionFromState(local State) (position UserPosition, err error) {
	if ms.Asset == nil {
		err = errors.Wrap(ErrConfiguration, "market has no asset")
		return
	}
	if ms.CollateralFactor == nil {
		err = errors.Wrap(ErrConfiguration, "market has no collateral factor")
		return
	}

	position.ActiveCollateralBank = local.UintOrZero(keyUserActiveCollateral)
	position.ActiveCollateralUnderlying = MulDiv(position.ActiveCollateralBank, ms.BankToUnderlyingExchange, ScaleFactor)
	position.ActiveCollateralUSD = ms.Asset.ToUSD(position.ActiveCollateralUnderlying, ms.AssetPrice)
	position.ActiveCollateralMaxBorrowUSD = position.ActiveCollateralUSD.
		Mul(decimalFromUint(*ms.CollateralFactor)).
		Div(decimalParameterScaleFactor)

	position.BorrowShares = local.UintOrZero(keyUserBorrowShares)
	position.BorrowUnderlying = MulDiv(ms.UnderlyingBorrowed, position.BorrowShares, ms.OutstandingBorrowShares)
	position.BorrowUSD = ms.Asset.ToUSD(position.BorrowUnderlying, ms.AssetPrice)

	return
}

type MarketOptions struct {
	AppID      uint64
	Decimals   uint64
	Historical HistoricalStateSource
}

// Market tracks one market application. The snapshot only changes when
// Refresh succeeds.
type Market struct {
	appID      uint64
	address    string
	decimals   uint64
	reader     StateReader
	historical HistoricalStateSource
	state      *MarketState
	mu         sync.RWMutex
}

func NewMarket(ctx context.Context, reader StateReader, options MarketOptions) (market *Market, err error) {
	if options.AppID == 0 {
		err = errors.Wrap(ErrConfiguration, "market app id must be specified")
		return
	}

	market = &Market{
		appID:      options.AppID,
		address:    crypto.GetApplicationAddress(options.AppID).String(),
		decimals:   options.Decimals,
		reader:     reader,
		historical: options.Historical,
	}

	if err = market.Refresh(ctx); err != nil {
		return nil, err
	}

	return
}

func (m *Market) AppID() uint64 {
	return m.appID
}

func (m *Market) Address() string {
	return m.address
}

// State returns the current snapshot. Callers must not modify it.
func (m *Market) State() *MarketState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Market) Asset() *Asset {
	return m.State().Asset
}

// Refresh reads the market's global state and the asset price and swaps in
// a new snapshot. On failure the previous snapshot is kept.
func (m *Market) Refresh(ctx context.Context) (err error) {
	next, err := m.load(ctx)
	if err != nil {
		return
	}
	m.set(next)
	return
}

func (m *Market) load(ctx context.Context) (next *MarketState, err error) {
	state, err := readGlobalState(ctx, m.reader, m.appID)
	if err != nil {
		return
	}

	next, err = decodeMarketState(state, m.decimals)
	if err != nil {
		return nil, err
	}

	if next.Asset != nil && next.Asset.Oracle != nil {
		if next.AssetRawPrice, err = next.Asset.RawPrice(ctx, m.reader); err != nil {
			return nil, err
		}
		if next.AssetPrice, err = next.Asset.PriceFromRaw(next.AssetRawPrice); err != nil {
			return nil, err
		}
	}
	return
}

func (m *Market) set(next *MarketState) {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	log.Debug().Msgf("refreshed market %d (borrowed %d, cash %d)", m.appID, next.UnderlyingBorrowed, next.UnderlyingCash)
}

// UserPosition reads the storage account's local state under the market.
func (m *Market) UserPosition(ctx context.Context, storageAddress string) (position UserPosition, err error) {
	local, err := readLocalState(ctx, m.reader, storageAddress, m.appID)
	if err != nil {
		return
	}
	return m.State().PositionFromState(local)
}

// StateAt decodes the market's global state as of round.
func (m *Market) StateAt(ctx context.Context, round uint64) (state State, err error) {
	if m.historical == nil {
		err = errors.Wrap(ErrUnsupportedOperation, "no historical state source")
		return
	}

	entries, err := m.historical.GlobalStateAt(ctx, m.appID, round)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			err = errors.Wrapf(ErrStateRead, "market %d at round %d: %v", m.appID, round, err)
		}
		return
	}

	return DecodeState(entries), nil
}

// MarketStateAt is StateAt with the market default policy applied.
func (m *Market) MarketStateAt(ctx context.Context, round uint64) (ms *MarketState, err error) {
	state, err := m.StateAt(ctx, round)
	if err != nil {
		return
	}
	return decodeMarketState(state, m.decimals)
}

func (m *Market) uintAt(ctx context.Context, round uint64, key string) (v uint64, err error) {
	state, err := m.StateAt(ctx, round)
	if err != nil {
		return
	}
	v, ok := state.Uint(key)
	if !ok {
		err = errors.Wrapf(ErrStateNotFound, "market %d has no '%s' at round %d", m.appID, key, round)
	}
	return
}

func (m *Market) UnderlyingBorrowedAt(ctx context.Context, round uint64) (uint64, error) {
	return m.uintAt(ctx, round, keyUnderlyingBorrowed)
}

func (m *Market) UnderlyingCashAt(ctx context.Context, round uint64) (uint64, error) {
	return m.uintAt(ctx, round, keyUnderlyingCash)
}

func (m *Market) UnderlyingReservesAt(ctx context.Context, round uint64) (uint64, error) {
	return m.uintAt(ctx, round, keyUnderlyingReserves)
}

func (m *Market) TotalBorrowInterestRateAt(ctx context.Context, round uint64) (uint64, error) {
	return m.uintAt(ctx, round, keyTotalBorrowInterestRate)
}
