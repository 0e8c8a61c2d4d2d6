package algofi

import (
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// ScaleFactor is the fixed point base for exchange rates, interest rates
	// and utilisation.
	ScaleFactor uint64 = 1_000_000_000

	// RewardsScaleFactor is the fixed point base for rewards coefficients.
	RewardsScaleFactor uint64 = 100_000_000_000_000

	// ParameterScaleFactor is the base for risk parameters such as the
	// collateral factor and liquidation incentive.
	ParameterScaleFactor uint64 = 1_000

	// NativeAssetID stands in for the ledger's native currency. Transfers of
	// this id are payments instead of asset transfers.
	NativeAssetID uint64 = 1

	priceScaleFactor = 1_000
)

var (
	decimalScaleFactor          = decimal.NewFromInt(int64(ScaleFactor))
	decimalParameterScaleFactor = decimal.NewFromInt(int64(ParameterScaleFactor))
)

// MulDiv returns floor(a*b/c) with a 256 bit intermediate. A zero divisor
// yields zero; a result that does not fit in 64 bits saturates.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	z, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(a),
		uint256.NewInt(b),
		uint256.NewInt(c),
	)
	if overflow || !z.IsUint64() {
		log.Warn().Msgf("%d*%d/%d overflows uint64, saturating", a, b, c)
		return math.MaxUint64
	}
	return z.Uint64()
}

// MulDivBig is MulDiv for operands that may already exceed 64 bits.
func MulDivBig(a, b, c *uint256.Int) *uint256.Int {
	if c.IsZero() {
		return new(uint256.Int)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		return new(uint256.Int)
	}
	return z
}

// FloorDiv divides two decimals and rounds the quotient towards negative
// infinity.
func FloorDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	q, r := a.QuoRem(b, 0)
	if !r.IsZero() && (r.Sign() < 0) != (b.Sign() < 0) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q
}

// FloorDecimal truncates a non-negative decimal to a whole uint64,
// saturating above the uint64 range.
func FloorDecimal(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	f := d.Floor()
	if !f.BigInt().IsUint64() {
		log.Warn().Msgf("%s overflows uint64, saturating", f)
		return math.MaxUint64
	}
	return f.BigInt().Uint64()
}

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(uint256.Int).SetUint64(v).ToBig(), 0)
}

func pow10(n uint64) decimal.Decimal {
	return decimal.New(1, int32(n))
}
