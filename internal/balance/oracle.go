package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenReader is the slice of the contract gateway the oracle reads through.
type TokenReader interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error)
}

// Oracle reads live ERC-20 balances and decimals. It is a pure read-through:
// nothing is cached, so pre-flight checks never see stale balances.
type Oracle struct {
	reader TokenReader
}

func NewOracle(reader TokenReader) *Oracle {
	return &Oracle{reader: reader}
}

// DecimalsOf returns the token's decimal precision.
func (o *Oracle) DecimalsOf(ctx context.Context, token common.Address) (uint8, error) {
	return o.reader.TokenDecimals(ctx, token)
}

// BalanceOf returns the owner's balance in whole-token units, i.e. the raw
// integer balance divided by 10^decimals.
func (o *Oracle) BalanceOf(ctx context.Context, owner, token common.Address, decimals uint8) (*big.Float, error) {
	raw, err := o.RawBalanceOf(ctx, owner, token)
	if err != nil {
		return nil, err
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return new(big.Float).Quo(new(big.Float).SetInt(raw), scale), nil
}

// RawBalanceOf returns the owner's balance in raw token units.
func (o *Oracle) RawBalanceOf(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	raw, err := o.reader.TokenBalance(ctx, owner, token)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", token.Hex(), err)
	}
	return raw, nil
}
