package model

import "math/big"

// Position is a read-through projection of one on-chain liquidity position.
// It is never cached beyond a single workflow invocation.
type Position struct {
	TokenID   *big.Int `json:"token_id"`
	Token0    string   `json:"token0"`
	Token1    string   `json:"token1"`
	Fee       uint32   `json:"fee"`
	TickLower int32    `json:"tick_lower"`
	TickUpper int32    `json:"tick_upper"`
	Liquidity *big.Int `json:"liquidity"`
	// Fees owed but not yet collected, raw token units.
	TokensOwed0 *big.Int `json:"tokens_owed0"`
	TokensOwed1 *big.Int `json:"tokens_owed1"`
}

// Open reports whether the position still holds liquidity.
func (p Position) Open() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}

// Pool captures the live state of a V3 pool needed for range decisions.
type Pool struct {
	Address      string   `json:"address"`
	Token0       string   `json:"token0"`
	Token1       string   `json:"token1"`
	Fee          uint32   `json:"fee"`
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	CurrentTick  int32    `json:"current_tick"`
}

// PriceRange holds the multiplicative factors applied to the current price
// to derive the tick bounds. Callers are expected to pass Lower < 1 < Upper;
// only Lower < Upper is enforced downstream.
type PriceRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}
