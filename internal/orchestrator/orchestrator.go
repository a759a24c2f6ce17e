package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionkeeper/internal/model"
	"positionkeeper/internal/tickmath"
	"positionkeeper/internal/uniswap"
)

// State names the last completed step of a workflow. A workflow that fails
// reports the state it reached; everything up to that state is already
// settled on chain and safe to resume from.
type State string

const (
	StateNone State = ""

	StatePriceDiscovered State = "PriceDiscovered"
	StateRangeComputed   State = "RangeComputed"
	StateBalanceVerified State = "BalanceVerified"
	StateApproved        State = "Approved"
	StateMinted          State = "Minted"

	StateLiquidityQueried   State = "LiquidityQueried"
	StateLiquidityDecreased State = "LiquidityDecreased"
	StateFeesCollected      State = "FeesCollected"
	StateBurned             State = "Burned"
)

// Gateway is the slice of the contract gateway the orchestrator drives.
type Gateway interface {
	Manager() common.Address
	Position(ctx context.Context, tokenID *big.Int) (model.Position, error)
	PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error)
	Slot0(ctx context.Context, pool common.Address) (*big.Int, int32, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	Allowance(ctx context.Context, owner, spender, token common.Address) (*big.Int, error)
	BuildMint(ctx context.Context, p uniswap.MintParams) (model.TransactionIntent, error)
	BuildDecreaseLiquidity(ctx context.Context, p uniswap.DecreaseParams) (model.TransactionIntent, error)
	BuildCollect(ctx context.Context, p uniswap.CollectParams) (model.TransactionIntent, error)
	BuildBurn(ctx context.Context, tokenID *big.Int) (model.TransactionIntent, error)
	BuildApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (model.TransactionIntent, error)
}

// BalanceSource provides live pre-flight balance reads.
type BalanceSource interface {
	RawBalanceOf(ctx context.Context, owner, token common.Address) (*big.Int, error)
}

// Sender is the slice of the chain client that moves signed transactions.
type Sender interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer produces signed transactions from intents.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// Config holds workflow policy knobs.
type Config struct {
	// SlippageTolerance is the minimum acceptable fraction of each desired
	// amount, e.g. 0.7 accepts down to 70%.
	SlippageTolerance float64
	// DeadlineWindow bounds how long a submitted transaction stays valid.
	DeadlineWindow time.Duration
}

// Orchestrator drives the multi-step mutating workflows. Mutating calls for
// one wallet are serialized around the nonce fetch / send / receipt span so
// concurrent workflows cannot collide on a nonce.
type Orchestrator struct {
	cfg      Config
	gateway  Gateway
	balances BalanceSource
	sender   Sender
	signer   Signer
	logger   *zap.Logger

	sendMu sync.Mutex
}

// NewOrchestrator builds an Orchestrator with its dependencies.
func NewOrchestrator(cfg Config, gateway Gateway, balances BalanceSource, sender Sender, signer Signer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlippageTolerance <= 0 || cfg.SlippageTolerance > 1 {
		cfg.SlippageTolerance = 0.7
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = time.Hour
	}
	return &Orchestrator{
		cfg:      cfg,
		gateway:  gateway,
		balances: balances,
		sender:   sender,
		signer:   signer,
		logger:   logger,
	}
}

// WorkflowError reports a failed workflow step together with the last state
// the workflow completed. Effects of completed steps remain on chain.
type WorkflowError struct {
	Workflow string
	Reached  State
	Step     string
	Err      error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s halted after %q at step %s: %v", e.Workflow, e.Reached, e.Step, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// AddLiquidityRequest describes a position to open. Notional is expressed in
// whole units of TokenA, the reference token.
type AddLiquidityRequest struct {
	TokenA   common.Address
	TokenB   common.Address
	Fee      uint32
	Notional float64
	Range    model.PriceRange
}

// AddLiquidityResult reports the completed add-liquidity workflow.
type AddLiquidityResult struct {
	State         State
	TokenID       *big.Int
	TickLower     int32
	TickUpper     int32
	Amount0       *big.Int
	Amount1       *big.Int
	ApproveTxs    []common.Hash
	MintTx        common.Hash
	MintedAtBlock uint64
}

// AddLiquidity opens a new position: discover price, compute the tick range,
// verify balances, approve where needed, then mint.
func (o *Orchestrator) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*AddLiquidityResult, error) {
	const workflow = "add-liquidity"
	state := StateNone
	fail := func(step string, err error) (*AddLiquidityResult, error) {
		return nil, &WorkflowError{Workflow: workflow, Reached: state, Step: step, Err: err}
	}

	// The protocol orders pairs by ascending address; derive everything from
	// the resolved order instead of assuming the caller's.
	token0, token1 := orderTokens(req.TokenA, req.TokenB)
	aIsToken0 := token0 == req.TokenA

	pool, err := o.gateway.PoolAddress(ctx, token0, token1, req.Fee)
	if err != nil {
		return fail("resolve pool", err)
	}
	sqrtPrice, currentTick, err := o.gateway.Slot0(ctx, pool)
	if err != nil {
		return fail("read slot0", err)
	}
	decimals0, err := o.gateway.TokenDecimals(ctx, token0)
	if err != nil {
		return fail("token0 decimals", err)
	}
	decimals1, err := o.gateway.TokenDecimals(ctx, token1)
	if err != nil {
		return fail("token1 decimals", err)
	}
	price, err := tickmath.PriceFromSqrtX96(sqrtPrice, decimals0, decimals1)
	if err != nil {
		return fail("derive price", err)
	}
	state = StatePriceDiscovered
	o.logger.Info("price discovered",
		zap.String("pool", pool.Hex()),
		zap.Float64("price", price),
		zap.Int32("current_tick", currentTick),
	)

	tickLower, tickUpper, err := tickmath.ComputeRange(price, req.Range, decimals0, decimals1, req.Fee)
	if err != nil {
		return fail("compute range", err)
	}
	state = StateRangeComputed
	o.logger.Info("range computed", zap.Int32("tick_lower", tickLower), zap.Int32("tick_upper", tickUpper))

	amount0, amount1 := splitNotional(req.Notional, price, aIsToken0, decimals0, decimals1)

	// Live balances only; a cached read here could green-light a mint the
	// wallet can no longer fund. Amounts match addresses by index.
	owner := o.signer.Address()
	needs := []struct {
		token  common.Address
		amount *big.Int
	}{
		{token0, amount0},
		{token1, amount1},
	}
	for _, need := range needs {
		have, err := o.balances.RawBalanceOf(ctx, owner, need.token)
		if err != nil {
			return fail("balance check", err)
		}
		if have.Cmp(need.amount) < 0 {
			return fail("balance check", fmt.Errorf("%w: token %s needs %s, has %s",
				model.ErrInsufficientBalance, need.token.Hex(), need.amount, have))
		}
	}
	state = StateBalanceVerified

	var approveTxs []common.Hash
	for _, need := range needs {
		if need.amount.Sign() == 0 {
			continue
		}
		allowance, err := o.gateway.Allowance(ctx, owner, o.gateway.Manager(), need.token)
		if err != nil {
			return fail("allowance check", err)
		}
		if allowance.Cmp(need.amount) >= 0 {
			o.logger.Info("allowance sufficient, skipping approve", zap.String("token", need.token.Hex()))
			continue
		}
		intent, err := o.gateway.BuildApprove(ctx, need.token, o.gateway.Manager(), need.amount)
		if err != nil {
			return fail("build approve", err)
		}
		receipt, err := o.sendAndWait(ctx, intent)
		if err != nil {
			return fail("send approve", err)
		}
		approveTxs = append(approveTxs, receipt.TxHash)
	}
	state = StateApproved

	deadline := big.NewInt(time.Now().Add(o.cfg.DeadlineWindow).Unix())
	intent, err := o.gateway.BuildMint(ctx, uniswap.MintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            req.Fee,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     applyTolerance(amount0, o.cfg.SlippageTolerance),
		Amount1Min:     applyTolerance(amount1, o.cfg.SlippageTolerance),
		Recipient:      owner,
		Deadline:       deadline,
	})
	if err != nil {
		return fail("build mint", err)
	}
	receipt, err := o.sendAndWait(ctx, intent)
	if err != nil {
		return fail("send mint", err)
	}
	state = StateMinted

	result := &AddLiquidityResult{
		State:         state,
		TokenID:       mintedTokenID(receipt, o.gateway.Manager()),
		TickLower:     tickLower,
		TickUpper:     tickUpper,
		Amount0:       amount0,
		Amount1:       amount1,
		ApproveTxs:    approveTxs,
		MintTx:        receipt.TxHash,
		MintedAtBlock: receipt.BlockNumber.Uint64(),
	}
	o.logger.Info("position minted",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("block", result.MintedAtBlock),
		zap.String("token_id", tokenIDLabel(result.TokenID)),
	)
	return result, nil
}

// CloseResult reports the completed close-position workflow.
type CloseResult struct {
	State      State
	TokenID    *big.Int
	DecreaseTx common.Hash
	CollectTx  common.Hash
	BurnTx     common.Hash
}

// ClosePosition withdraws all liquidity, collects outstanding fees, and
// burns the position token. The decrease step is skipped entirely when the
// position already holds zero liquidity.
func (o *Orchestrator) ClosePosition(ctx context.Context, tokenID *big.Int) (*CloseResult, error) {
	const workflow = "close-position"
	state := StateNone
	fail := func(step string, err error) (*CloseResult, error) {
		return nil, &WorkflowError{Workflow: workflow, Reached: state, Step: step, Err: err}
	}

	position, err := o.gateway.Position(ctx, tokenID)
	if err != nil {
		return fail("fetch position", err)
	}
	state = StateLiquidityQueried

	result := &CloseResult{TokenID: new(big.Int).Set(tokenID)}
	deadline := big.NewInt(time.Now().Add(o.cfg.DeadlineWindow).Unix())

	if position.Open() {
		intent, err := o.gateway.BuildDecreaseLiquidity(ctx, uniswap.DecreaseParams{
			TokenID:    tokenID,
			Liquidity:  position.Liquidity,
			Amount0Min: big.NewInt(0),
			Amount1Min: big.NewInt(0),
			Deadline:   deadline,
		})
		if err != nil {
			return fail("build decrease", err)
		}
		receipt, err := o.sendAndWait(ctx, intent)
		if err != nil {
			return fail("send decrease", err)
		}
		result.DecreaseTx = receipt.TxHash
		state = StateLiquidityDecreased
	} else {
		o.logger.Info("liquidity already zero, skipping decrease", zap.String("token_id", tokenID.String()))
	}

	collectIntent, err := o.gateway.BuildCollect(ctx, uniswap.CollectParams{
		TokenID:    tokenID,
		Recipient:  o.signer.Address(),
		Amount0Max: uniswap.MaxUint128,
		Amount1Max: uniswap.MaxUint128,
	})
	if err != nil {
		return fail("build collect", err)
	}
	receipt, err := o.sendAndWait(ctx, collectIntent)
	if err != nil {
		return fail("send collect", err)
	}
	result.CollectTx = receipt.TxHash
	state = StateFeesCollected

	// Burn precondition is enforced here, not delegated to the remote
	// revert: re-read the position and require zero liquidity.
	position, err = o.gateway.Position(ctx, tokenID)
	if err != nil {
		return fail("re-check position", err)
	}
	if position.Open() {
		return fail("burn precondition", fmt.Errorf("token %s still holds liquidity %s", tokenID, position.Liquidity))
	}

	burnIntent, err := o.gateway.BuildBurn(ctx, tokenID)
	if err != nil {
		return fail("build burn", err)
	}
	receipt, err = o.sendAndWait(ctx, burnIntent)
	if err != nil {
		return fail("send burn", err)
	}
	result.BurnTx = receipt.TxHash
	state = StateBurned
	result.State = state

	o.logger.Info("position closed",
		zap.String("token_id", tokenID.String()),
		zap.String("burn_tx", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return result, nil
}

// sendAndWait runs the intent through nonce fetch, signing, broadcast, and
// receipt wait under the per-wallet send lock. No automatic retries: a
// failure surfaces as-is and the caller decides how to resume.
func (o *Orchestrator) sendAndWait(ctx context.Context, intent model.TransactionIntent) (*types.Receipt, error) {
	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	chainID, err := o.sender.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: get chain id: %w", intent.Method, err)
	}
	nonce, err := o.sender.PendingNonceAt(ctx, o.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("%s: fetch nonce: %w", intent.Method, err)
	}

	to := common.HexToAddress(intent.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    intent.Value,
		Gas:      intent.GasLimit,
		GasPrice: intent.GasPrice,
		Data:     intent.Data,
	})
	signed, err := o.signer.SignTx(chainID, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", intent.Method, err)
	}
	if err := o.sender.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%s: send: %w", intent.Method, err)
	}

	o.logger.Info("transaction sent",
		zap.String("method", intent.Method),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)

	receipt, err := o.sender.WaitReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", intent.Method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: transaction %s reverted in block %d", intent.Method, receipt.TxHash.Hex(), receipt.BlockNumber.Uint64())
	}

	o.logger.Info("transaction confirmed",
		zap.String("method", intent.Method),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return receipt, nil
}

func orderTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// splitNotional turns a reference-token notional into raw desired amounts
// for both legs, half the value on each side at the live price.
func splitNotional(notional, price float64, refIsToken0 bool, decimals0, decimals1 uint8) (*big.Int, *big.Int) {
	half := notional / 2
	var human0, human1 float64
	if refIsToken0 {
		human0 = half
		human1 = half * price
	} else {
		human1 = half
		human0 = half / price
	}
	return humanToRaw(human0, decimals0), humanToRaw(human1, decimals1)
}

func humanToRaw(amount float64, decimals uint8) *big.Int {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	raw, _ := new(big.Float).Mul(big.NewFloat(amount), scale).Int(nil)
	return raw
}

// applyTolerance floors an amount to tolerance*amount using exact integer
// math at parts-per-million resolution.
func applyTolerance(amount *big.Int, tolerance float64) *big.Int {
	ppm := big.NewInt(int64(tolerance*1e6 + 0.5))
	scaled := new(big.Int).Mul(amount, ppm)
	return scaled.Div(scaled, big.NewInt(1e6))
}

// mintedTokenID pulls the new token ID out of the mint receipt's Transfer
// log (mint transfers from the zero address). Nil when not present.
func mintedTokenID(receipt *types.Receipt, manager common.Address) *big.Int {
	transferTopic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	zero := common.Hash{}
	for _, entry := range receipt.Logs {
		if entry.Address != manager || len(entry.Topics) != 4 {
			continue
		}
		if entry.Topics[0] == transferTopic && entry.Topics[1] == zero {
			return entry.Topics[3].Big()
		}
	}
	return nil
}

func tokenIDLabel(id *big.Int) string {
	if id == nil {
		return "unknown"
	}
	return id.String()
}
