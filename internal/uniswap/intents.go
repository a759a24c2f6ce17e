package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"positionkeeper/internal/model"
)

// MintParams describes a new position to open.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// IncreaseParams describes adding liquidity to an existing position.
type IncreaseParams struct {
	TokenID        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

// DecreaseParams describes withdrawing liquidity from a position.
type DecreaseParams struct {
	TokenID    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

// CollectParams describes collecting accrued fees. Use MaxUint128 for both
// max amounts to collect everything.
type CollectParams struct {
	TokenID    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// BuildMint builds an unsigned mint intent.
func (g *Gateway) BuildMint(ctx context.Context, p MintParams) (model.TransactionIntent, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := managerABI.Pack("mint", struct {
		Token0         common.Address
		Token1         common.Address
		Fee            *big.Int
		TickLower      *big.Int
		TickUpper      *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Recipient      common.Address
		Deadline       *big.Int
	}{
		Token0:         p.Token0,
		Token1:         p.Token1,
		Fee:            big.NewInt(int64(p.Fee)),
		TickLower:      big.NewInt(int64(p.TickLower)),
		TickUpper:      big.NewInt(int64(p.TickUpper)),
		Amount0Desired: p.Amount0Desired,
		Amount1Desired: p.Amount1Desired,
		Amount0Min:     p.Amount0Min,
		Amount1Min:     p.Amount1Min,
		Recipient:      p.Recipient,
		Deadline:       p.Deadline,
	})
	if err != nil {
		return model.TransactionIntent{}, callError("manager", "mint", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, g.cfg.Manager, "mint", data, GasLimitMint)
}

// BuildIncreaseLiquidity builds an unsigned increaseLiquidity intent.
func (g *Gateway) BuildIncreaseLiquidity(ctx context.Context, p IncreaseParams) (model.TransactionIntent, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := managerABI.Pack("increaseLiquidity", struct {
		TokenId        *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Deadline       *big.Int
	}{
		TokenId:        p.TokenID,
		Amount0Desired: p.Amount0Desired,
		Amount1Desired: p.Amount1Desired,
		Amount0Min:     p.Amount0Min,
		Amount1Min:     p.Amount1Min,
		Deadline:       p.Deadline,
	})
	if err != nil {
		return model.TransactionIntent{}, callError("manager", "increaseLiquidity", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, g.cfg.Manager, "increaseLiquidity", data, GasLimitIncrease)
}

// BuildDecreaseLiquidity builds an unsigned decreaseLiquidity intent.
func (g *Gateway) BuildDecreaseLiquidity(ctx context.Context, p DecreaseParams) (model.TransactionIntent, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := managerABI.Pack("decreaseLiquidity", struct {
		TokenId    *big.Int
		Liquidity  *big.Int
		Amount0Min *big.Int
		Amount1Min *big.Int
		Deadline   *big.Int
	}{
		TokenId:    p.TokenID,
		Liquidity:  p.Liquidity,
		Amount0Min: p.Amount0Min,
		Amount1Min: p.Amount1Min,
		Deadline:   p.Deadline,
	})
	if err != nil {
		return model.TransactionIntent{}, callError("manager", "decreaseLiquidity", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, g.cfg.Manager, "decreaseLiquidity", data, GasLimitDecrease)
}

// BuildCollect builds an unsigned collect intent.
func (g *Gateway) BuildCollect(ctx context.Context, p CollectParams) (model.TransactionIntent, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := managerABI.Pack("collect", struct {
		TokenId    *big.Int
		Recipient  common.Address
		Amount0Max *big.Int
		Amount1Max *big.Int
	}{
		TokenId:    p.TokenID,
		Recipient:  p.Recipient,
		Amount0Max: p.Amount0Max,
		Amount1Max: p.Amount1Max,
	})
	if err != nil {
		return model.TransactionIntent{}, callError("manager", "collect", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, g.cfg.Manager, "collect", data, GasLimitCollect)
}

// BuildBurn builds an unsigned burn intent.
func (g *Gateway) BuildBurn(ctx context.Context, tokenID *big.Int) (model.TransactionIntent, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := managerABI.Pack("burn", tokenID)
	if err != nil {
		return model.TransactionIntent{}, callError("manager", "burn", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, g.cfg.Manager, "burn", data, GasLimitBurn)
}

// BuildApprove builds an unsigned ERC-20 approve intent.
func (g *Gateway) BuildApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (model.TransactionIntent, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return model.TransactionIntent{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return model.TransactionIntent{}, callError("erc20", "approve", fmt.Errorf("pack: %w", err))
	}
	return g.buildIntent(ctx, token, "approve", data, GasLimitApprove)
}

func (g *Gateway) buildIntent(ctx context.Context, to common.Address, method string, data []byte, gasLimit uint64) (model.TransactionIntent, error) {
	gasPrice, err := g.transport.SuggestGasPrice(ctx)
	if err != nil {
		return model.TransactionIntent{}, callError(to.Hex(), method, fmt.Errorf("suggest gas price: %w", err))
	}
	gasPrice = scaleGasPrice(gasPrice, g.cfg.GasMultiplier)

	return model.TransactionIntent{
		To:       to.Hex(),
		Data:     data,
		Value:    big.NewInt(0),
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Method:   method,
	}, nil
}

func scaleGasPrice(price *big.Int, multiplier float64) *big.Int {
	if multiplier <= 0 || multiplier == 1 {
		return price
	}
	scaled, _ := new(big.Float).Mul(new(big.Float).SetInt(price), big.NewFloat(multiplier)).Int(nil)
	return scaled
}
