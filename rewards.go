package algofi

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RewardsProgram is the manager's current liquidity mining program.
type RewardsProgram struct {
	LatestRewardsTime       uint64 `json:"latestRewardsTime"`
	RewardsProgramNumber    uint64 `json:"rewardsProgramNumber"`
	RewardsAmount           uint64 `json:"rewardsAmount"`
	RewardsPerSecond        uint64 `json:"rewardsPerSecond"`
	RewardsAssetID          uint64 `json:"rewardsAssetId"`
	RewardsSecondaryRatio   uint64 `json:"rewardsSecondaryRatio"`
	RewardsSecondaryAssetID uint64 `json:"rewardsSecondaryAssetId"`
}

func newRewardsProgram(managerState State) RewardsProgram {
	return RewardsProgram{
		LatestRewardsTime:       managerState.UintOrZero(keyLatestRewardsTime),
		RewardsProgramNumber:    managerState.UintOrZero(keyRewardsProgramNumber),
		RewardsAmount:           managerState.UintOrZero(keyRewardsAmount),
		RewardsPerSecond:        managerState.UintOrZero(keyRewardsPerSecond),
		RewardsAssetID:          managerState.UintOrZero(keyRewardsAssetID),
		RewardsSecondaryRatio:   managerState.UintOrZero(keyRewardsSecondaryRatio),
		RewardsSecondaryAssetID: managerState.UintOrZero(keyRewardsSecondaryAssetID),
	}
}

// RewardsAssetIDs lists the reward assets a claim must reference. The
// native asset and unset ids are skipped.
func (p RewardsProgram) RewardsAssetIDs() (ids []uint64) {
	if p.RewardsAssetID > NativeAssetID {
		ids = append(ids, p.RewardsAssetID)
	}
	if p.RewardsSecondaryAssetID > NativeAssetID {
		ids = append(ids, p.RewardsSecondaryAssetID)
	}
	return
}

type RewardsMarket struct {
	State    *MarketState
	Position UserPosition
}

type RewardsInput struct {
	Program      RewardsProgram
	ManagerState State
	UserState    State
	Markets      []RewardsMarket
	Now          time.Time
}

type RewardsResult struct {
	OnCurrentProgram           bool   `json:"onCurrentProgram"`
	PendingRewards             uint64 `json:"pendingRewards"`
	SecondaryPendingRewards    uint64 `json:"secondaryPendingRewards"`
	UnrealizedRewards          uint64 `json:"unrealizedRewards"`
	SecondaryUnrealizedRewards uint64 `json:"secondaryUnrealizedRewards"`
}

// ComputeUnrealizedRewards projects a storage account's rewards up to
// input.Now. UnrealizedRewards includes the stored pending amount when the
// account is on the current program.
func ComputeUnrealizedRewards(input RewardsInput) (result RewardsResult, err error) {
	program := input.Program

	userProgram := input.UserState.UintOrZero(keyUserRewardsProgramNumber)
	result.OnCurrentProgram = program.RewardsProgramNumber == userProgram

	if result.OnCurrentProgram {
		result.PendingRewards = input.UserState.UintOrZero(keyUserPendingRewards)
		result.SecondaryPendingRewards = input.UserState.UintOrZero(keyUserSecondaryPendingRewards)
	}

	totalUnrealized := uint256.NewInt(result.PendingRewards)
	totalSecondary := uint256.NewInt(result.SecondaryPendingRewards)

	borrowUSD := make([]decimal.Decimal, len(input.Markets))
	totalBorrowUSD := decimal.Zero
	for i, market := range input.Markets {
		if market.State == nil || market.State.Asset == nil {
			err = errors.Wrap(ErrConfiguration, "rewards market has no asset")
			return
		}
		borrowUSD[i] = market.State.Asset.ToUSD(market.State.UnderlyingBorrowed, market.State.AssetPrice)
		totalBorrowUSD = totalBorrowUSD.Add(borrowUSD[i])
	}

	var elapsed uint64
	if now := input.Now.Unix(); now > 0 && uint64(now) > program.LatestRewardsTime {
		elapsed = uint64(now) - program.LatestRewardsTime
	}

	rewardsIssued := decimal.Zero
	if program.RewardsAmount > 0 {
		rewardsIssued = decimalFromUint(program.RewardsPerSecond).Mul(decimalFromUint(elapsed))
	}

	rewardsScale := decimalFromUint(RewardsScaleFactor)

	for i, market := range input.Markets {
		if market.State.MarketCounter == nil {
			err = errors.Wrap(ErrConfiguration, "rewards market has no market counter")
			return
		}
		counter := *market.State.MarketCounter

		coefficient := input.ManagerState.UintOrZero(marketCounterKey(counter, suffixCounterIndexedRewardsCoefficient))

		var userCoefficient uint64
		if result.OnCurrentProgram {
			userCoefficient = input.UserState.UintOrZero(marketCounterKey(counter, suffixCounterToUserRewardsCoefficientInitial))
		}

		tvl := market.State.UnderlyingTVL()

		increment := decimal.Zero
		if !totalBorrowUSD.IsZero() && !tvl.IsZero() {
			increment = FloorDiv(
				rewardsIssued.Mul(rewardsScale).Mul(borrowUSD[i]),
				totalBorrowUSD.Mul(tvl),
			)
		}

		projected := new(uint256.Int).Add(uint256.NewInt(coefficient), uint256FromDecimal(increment))

		delta := new(uint256.Int)
		if projected.Gt(uint256.NewInt(userCoefficient)) {
			delta.Sub(projected, uint256.NewInt(userCoefficient))
		}

		exposure := new(uint256.Int).Add(
			uint256.NewInt(market.Position.ActiveCollateralUnderlying),
			uint256.NewInt(market.Position.BorrowUnderlying),
		)

		unrealized := MulDivBig(delta, exposure, uint256.NewInt(RewardsScaleFactor))
		secondary := MulDivBig(unrealized, uint256.NewInt(program.RewardsSecondaryRatio), uint256.NewInt(ParameterScaleFactor))

		totalUnrealized.Add(totalUnrealized, unrealized)
		totalSecondary.Add(totalSecondary, secondary)
	}

	if !totalUnrealized.IsUint64() || !totalSecondary.IsUint64() {
		err = errors.Wrap(ErrConfiguration, "unrealized rewards overflow")
		return
	}

	result.UnrealizedRewards = totalUnrealized.Uint64()
	result.SecondaryUnrealizedRewards = totalSecondary.Uint64()

	return
}

func uint256FromDecimal(d decimal.Decimal) *uint256.Int {
	if d.Sign() <= 0 {
		return new(uint256.Int)
	}
	z, overflow := uint256.FromBig(d.Floor().BigInt())
	if overflow {
		return new(uint256.Int)
	}
	return z
}

// StorageUnrealizedRewards gathers manager and market state for a storage
// account and projects its rewards across markets.
func (p RewardsProgram) StorageUnrealizedRewards(ctx context.Context, reader StateReader, managerAppID uint64, storageAddress string, markets []*Market, now time.Time) (result RewardsResult, err error) {
	managerState, err := readGlobalState(ctx, reader, managerAppID)
	if err != nil {
		return
	}

	account, err := reader.AccountInformation(ctx, storageAddress)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "account %s: %v", storageAddress, err)
		return
	}

	userState, _ := account.LocalState(managerAppID)

	input := RewardsInput{
		Program:      p,
		ManagerState: managerState,
		UserState:    userState,
		Now:          now,
	}

	for _, market := range markets {
		state := market.State()
		local, _ := account.LocalState(market.AppID())
		position, err2 := state.PositionFromState(local)
		if err2 != nil {
			err = err2
			return
		}
		input.Markets = append(input.Markets, RewardsMarket{State: state, Position: position})
	}

	return ComputeUnrealizedRewards(input)
}
