package tickmath

import (
	"fmt"
	"math"
	"math/big"

	"positionkeeper/internal/model"
)

// Protocol tick bounds from Uniswap V3 TickMath.sol.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	ln10    = math.Log(10)
	lnTick  = math.Log(1.0001)
	q96     = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
	spacing = map[uint32]int32{100: 1, 500: 10, 3000: 60, 10000: 200}
)

// SpacingForFee returns the tick spacing for a fee tier.
func SpacingForFee(fee uint32) (int32, error) {
	s, ok := spacing[fee]
	if !ok {
		return 0, fmt.Errorf("%w: %d", model.ErrUnknownFeeTier, fee)
	}
	return s, nil
}

// PriceToTick converts a human price (token1 per token0) to the nearest tick
// at or below it, adjusting for the tokens' decimal precision.
//
// The decimal adjustment is folded into the logarithm rather than applied to
// the price first, so a large decimal gap cannot push the intermediate value
// outside float range before the log is taken:
//
//	tick = floor((ln p + (d1-d0)*ln 10) / ln 1.0001)
func PriceToTick(price float64, decimals0, decimals1 uint8) (int32, error) {
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, fmt.Errorf("%w: %v", model.ErrInvalidPrice, price)
	}

	shift := float64(int(decimals1) - int(decimals0))
	tick := math.Floor((math.Log(price) + shift*ln10) / lnTick)

	if tick < float64(MinTick) || tick > float64(MaxTick) {
		return 0, fmt.Errorf("%w: price %v maps to tick %v outside protocol bounds", model.ErrInvalidPrice, price, tick)
	}
	return int32(tick), nil
}

// AlignToSpacing rounds a tick down to the fee tier's spacing. Rounding is
// floor division toward negative infinity, never truncation toward zero, so
// both bounds of a range move the same direction.
func AlignToSpacing(tick int32, fee uint32) (int32, error) {
	s, err := SpacingForFee(fee)
	if err != nil {
		return 0, err
	}

	q := tick / s
	if tick%s != 0 && tick < 0 {
		q--
	}
	return q * s, nil
}

// ComputeRange derives aligned tick bounds from the current price and a pair
// of multiplicative range factors.
func ComputeRange(currentPrice float64, priceRange model.PriceRange, decimals0, decimals1 uint8, fee uint32) (int32, int32, error) {
	rawLower, err := PriceToTick(currentPrice*priceRange.Lower, decimals0, decimals1)
	if err != nil {
		return 0, 0, fmt.Errorf("lower bound: %w", err)
	}
	rawUpper, err := PriceToTick(currentPrice*priceRange.Upper, decimals0, decimals1)
	if err != nil {
		return 0, 0, fmt.Errorf("upper bound: %w", err)
	}

	tickLower, err := AlignToSpacing(rawLower, fee)
	if err != nil {
		return 0, 0, err
	}
	tickUpper, err := AlignToSpacing(rawUpper, fee)
	if err != nil {
		return 0, 0, err
	}

	if tickLower >= tickUpper {
		return 0, 0, fmt.Errorf("%w: lower %d >= upper %d (factors too close for spacing)", model.ErrInvalidRange, tickLower, tickUpper)
	}
	return tickLower, tickUpper, nil
}

// PriceFromSqrtX96 converts a pool's Q96 square-root price into a human
// price (token1 per token0), adjusted for token decimals.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("%w: sqrt price must be positive", model.ErrInvalidPrice)
	}

	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	raw := new(big.Float).Mul(ratio, ratio)

	shift := int(decimals0) - int(decimals1)
	if shift != 0 {
		exp := new(big.Float).SetFloat64(math.Pow(10, float64(shift)))
		raw.Mul(raw, exp)
	}

	price, _ := raw.Float64()
	if price <= 0 || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: sqrt price out of float range", model.ErrInvalidPrice)
	}
	return price, nil
}
