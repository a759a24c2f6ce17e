package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionkeeper/internal/model"
)

// Canonical Uniswap V3 deployment addresses, identical across mainnet and
// the major EVM deployments the keeper targets.
const (
	PositionManagerAddress = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	FactoryAddress         = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
)

// Fixed conservative gas limits per operation type.
const (
	GasLimitApprove  uint64 = 60_000
	GasLimitBurn     uint64 = 150_000
	GasLimitCollect  uint64 = 150_000
	GasLimitDecrease uint64 = 300_000
	GasLimitIncrease uint64 = 400_000
	GasLimitMint     uint64 = 600_000
)

// MaxUint128 is the protocol's "collect everything" sentinel for fee amounts.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Transport is the slice of the chain client the gateway depends on.
type Transport interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Config holds gateway construction parameters.
type Config struct {
	Manager common.Address
	Factory common.Address
	// GasMultiplier scales the live suggested gas price for time-sensitive
	// sends. Values <= 0 mean no scaling.
	GasMultiplier float64
}

// Gateway is a typed facade over the four contracts the keeper talks to.
// Reads go straight to the chain; writes only build unsigned intents.
type Gateway struct {
	transport Transport
	logger    *zap.Logger
	cfg       Config
}

// NewGateway builds a Gateway. Zero addresses in cfg fall back to the
// canonical deployment constants.
func NewGateway(cfg Config, transport Transport, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Manager == (common.Address{}) {
		cfg.Manager = common.HexToAddress(PositionManagerAddress)
	}
	if cfg.Factory == (common.Address{}) {
		cfg.Factory = common.HexToAddress(FactoryAddress)
	}
	return &Gateway{transport: transport, logger: logger, cfg: cfg}
}

// Manager returns the position manager address the gateway targets.
func (g *Gateway) Manager() common.Address { return g.cfg.Manager }

// Position fetches the detail record for a token ID.
func (g *Gateway) Position(ctx context.Context, tokenID *big.Int) (model.Position, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse manager abi: %w", err)
	}

	values, err := g.call(ctx, g.cfg.Manager, managerABI, "manager", "positions", tokenID)
	if err != nil {
		if isRevert(err) {
			return model.Position{}, fmt.Errorf("%w: token %s", model.ErrPositionNotFound, tokenID)
		}
		return model.Position{}, err
	}
	if len(values) < 12 {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("short result: %d values", len(values)))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("token0: %w", err))
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("token1: %w", err))
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("fee: %w", err))
	}
	tickLower, err := int24Value(values[5])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("tick lower: %w", err))
	}
	tickUpper, err := int24Value(values[6])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("tick upper: %w", err))
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("liquidity: %w", err))
	}
	owed0, err := asBigInt(values[10])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("tokens owed0: %w", err))
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return model.Position{}, callError("manager", "positions", fmt.Errorf("tokens owed1: %w", err))
	}

	return model.Position{
		TokenID:     new(big.Int).Set(tokenID),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(fee.Uint64()),
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Liquidity:   liquidity,
		TokensOwed0: owed0,
		TokensOwed1: owed1,
	}, nil
}

// OwnerOf returns the current holder of a position token.
func (g *Gateway) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	managerABI, err := ManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse manager abi: %w", err)
	}
	values, err := g.call(ctx, g.cfg.Manager, managerABI, "manager", "ownerOf", tokenID)
	if err != nil {
		if isRevert(err) {
			return common.Address{}, fmt.Errorf("%w: token %s", model.ErrPositionNotFound, tokenID)
		}
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PoolAddress resolves the deterministic pool address for a pair and fee.
func (g *Gateway) PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error) {
	factoryABI, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := g.call(ctx, g.cfg.Factory, factoryABI, "factory", "getPool", token0, token1, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, callError("factory", "getPool", err)
	}
	if pool == (common.Address{}) {
		return common.Address{}, callError("factory", "getPool",
			fmt.Errorf("no pool for %s/%s fee %d", token0.Hex(), token1.Hex(), fee))
	}
	return pool, nil
}

// Slot0 reads the pool's live sqrt price and current tick.
func (g *Gateway) Slot0(ctx context.Context, pool common.Address) (*big.Int, int32, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := g.call(ctx, pool, poolABI, "pool", "slot0")
	if err != nil {
		return nil, 0, err
	}
	if len(values) < 2 {
		return nil, 0, callError("pool", "slot0", fmt.Errorf("short result: %d values", len(values)))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, callError("pool", "slot0", fmt.Errorf("sqrt price: %w", err))
	}
	tick, err := int24Value(values[1])
	if err != nil {
		return nil, 0, callError("pool", "slot0", fmt.Errorf("tick: %w", err))
	}
	return sqrtPrice, tick, nil
}

// TokenDecimals reads an ERC-20 token's decimals.
func (g *Gateway) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := g.call(ctx, token, erc20, "erc20", "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(values[0])
}

// TokenBalance reads an ERC-20 balance in raw token units.
func (g *Gateway) TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := g.call(ctx, token, erc20, "erc20", "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Allowance reads how much of owner's token the spender may move.
func (g *Gateway) Allowance(ctx context.Context, owner, spender, token common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := g.call(ctx, token, erc20, "erc20", "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (g *Gateway) call(ctx context.Context, to common.Address, parsed abi.ABI, contract, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, callError(contract, method, fmt.Errorf("pack: %w", err))
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := g.transport.CallContract(ctx, msg)
	if err != nil {
		return nil, callError(contract, method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, callError(contract, method, fmt.Errorf("unpack: %w", err))
	}
	return values, nil
}

func callError(contract, method string, err error) error {
	return &model.ContractCallError{Contract: contract, Method: method, Err: err}
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "invalid token id")
}
