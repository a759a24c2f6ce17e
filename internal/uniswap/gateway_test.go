package uniswap

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionkeeper/internal/model"
)

type fakeTransport struct {
	respond  func(msg ethereum.CallMsg) ([]byte, error)
	gasPrice *big.Int
}

func (f *fakeTransport) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return f.respond(msg)
}

func (f *fakeTransport) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return big.NewInt(1), nil
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func newTestGateway(t *testing.T, transport *fakeTransport, multiplier float64) *Gateway {
	t.Helper()
	return NewGateway(Config{GasMultiplier: multiplier}, transport, zap.NewNop())
}

func TestSlot0(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)
	encoded, err := poolABI.Methods["slot0"].Outputs.Pack(
		sqrtPrice, big.NewInt(-15), uint16(0), uint16(0), uint16(0), uint8(0), true,
	)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		return encoded, nil
	}}
	gw := newTestGateway(t, transport, 0)

	gotSqrt, gotTick, err := gw.Slot0(context.Background(), common.HexToAddress("0x1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSqrt.Cmp(sqrtPrice) != 0 {
		t.Fatalf("sqrt price mismatch: %s", gotSqrt)
	}
	if gotTick != -15 {
		t.Fatalf("tick mismatch: %d", gotTick)
	}
}

func TestPositionDecoding(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	encoded, err := managerABI.Methods["positions"].Outputs.Pack(
		big.NewInt(0),    // nonce
		common.Address{}, // operator
		token0,
		token1,
		big.NewInt(3000),
		big.NewInt(-540),
		big.NewInt(480),
		big.NewInt(123456),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(11),
		big.NewInt(22),
	)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		return encoded, nil
	}}
	gw := newTestGateway(t, transport, 0)

	position, err := gw.Position(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position.Token0 != token0.Hex() || position.Token1 != token1.Hex() {
		t.Fatalf("token mismatch: %+v", position)
	}
	if position.Fee != 3000 || position.TickLower != -540 || position.TickUpper != 480 {
		t.Fatalf("range mismatch: %+v", position)
	}
	if position.Liquidity.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("liquidity mismatch: %s", position.Liquidity)
	}
	if position.TokensOwed0.Cmp(big.NewInt(11)) != 0 || position.TokensOwed1.Cmp(big.NewInt(22)) != 0 {
		t.Fatalf("owed fees mismatch: %+v", position)
	}
}

func TestPositionNotFoundOnRevert(t *testing.T) {
	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("execution reverted: Invalid token ID")
	}}
	gw := newTestGateway(t, transport, 0)

	_, err := gw.Position(context.Background(), big.NewInt(404))
	if !errors.Is(err, model.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestCallErrorCarriesContext(t *testing.T) {
	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("connection refused")
	}}
	gw := newTestGateway(t, transport, 0)

	_, err := gw.TokenDecimals(context.Background(), common.HexToAddress("0x1"))
	var callErr *model.ContractCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected ContractCallError, got %T: %v", err, err)
	}
	if callErr.Contract != "erc20" || callErr.Method != "decimals" {
		t.Fatalf("context mismatch: %+v", callErr)
	}
}

func TestPoolAddressZeroIsError(t *testing.T) {
	factoryABI, err := FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	encoded, err := factoryABI.Methods["getPool"].Outputs.Pack(common.Address{})
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		return encoded, nil
	}}
	gw := newTestGateway(t, transport, 0)

	_, err = gw.PoolAddress(context.Background(),
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		500,
	)
	var callErr *model.ContractCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("zero pool address must be an error, got %v", err)
	}
}

func TestIntentGasLimitsAndScaledPrice(t *testing.T) {
	transport := &fakeTransport{
		respond:  func(msg ethereum.CallMsg) ([]byte, error) { return nil, nil },
		gasPrice: big.NewInt(100),
	}
	gw := newTestGateway(t, transport, 1.5)

	token := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	spender := gw.Manager()

	approve, err := gw.BuildApprove(context.Background(), token, spender, big.NewInt(1))
	if err != nil {
		t.Fatalf("build approve: %v", err)
	}
	if approve.GasLimit != GasLimitApprove {
		t.Fatalf("approve gas limit mismatch: %d", approve.GasLimit)
	}
	if approve.To != token.Hex() {
		t.Fatalf("approve target mismatch: %s", approve.To)
	}
	if approve.GasPrice.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("gas price not scaled: %s", approve.GasPrice)
	}

	burn, err := gw.BuildBurn(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("build burn: %v", err)
	}
	if burn.GasLimit != GasLimitBurn {
		t.Fatalf("burn gas limit mismatch: %d", burn.GasLimit)
	}
	if burn.To != spender.Hex() {
		t.Fatalf("burn target mismatch: %s", burn.To)
	}
	if burn.Method != "burn" {
		t.Fatalf("method label mismatch: %s", burn.Method)
	}

	if GasLimitApprove >= GasLimitMint {
		t.Fatalf("mint bound must exceed approve bound")
	}
}

func TestBuildMintPacksTuple(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	gw := newTestGateway(t, transport, 0)

	intent, err := gw.BuildMint(context.Background(), MintParams{
		Token0:         common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1:         common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Fee:            3000,
		TickLower:      -540,
		TickUpper:      480,
		Amount0Desired: big.NewInt(1000),
		Amount1Desired: big.NewInt(2000),
		Amount0Min:     big.NewInt(700),
		Amount1Min:     big.NewInt(1400),
		Recipient:      common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
		Deadline:       big.NewInt(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("build mint: %v", err)
	}

	method := managerABI.Methods["mint"]
	if len(intent.Data) != 4+11*32 {
		t.Fatalf("packed size mismatch: %d", len(intent.Data))
	}
	for i, b := range method.ID {
		if intent.Data[i] != b {
			t.Fatalf("selector mismatch at byte %d", i)
		}
	}
	if _, err := method.Inputs.Unpack(intent.Data[4:]); err != nil {
		t.Fatalf("packed params do not round-trip: %v", err)
	}
}

func TestBuildDecreaseAndCollectSelectors(t *testing.T) {
	managerABI, err := ManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	transport := &fakeTransport{respond: func(msg ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	gw := newTestGateway(t, transport, 0)

	decrease, err := gw.BuildDecreaseLiquidity(context.Background(), DecreaseParams{
		TokenID:    big.NewInt(7),
		Liquidity:  big.NewInt(500),
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   big.NewInt(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("build decrease: %v", err)
	}
	for i, b := range managerABI.Methods["decreaseLiquidity"].ID {
		if decrease.Data[i] != b {
			t.Fatalf("decrease selector mismatch at byte %d", i)
		}
	}

	collect, err := gw.BuildCollect(context.Background(), CollectParams{
		TokenID:    big.NewInt(7),
		Recipient:  common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
		Amount0Max: MaxUint128,
		Amount1Max: MaxUint128,
	})
	if err != nil {
		t.Fatalf("build collect: %v", err)
	}
	for i, b := range managerABI.Methods["collect"].ID {
		if collect.Data[i] != b {
			t.Fatalf("collect selector mismatch at byte %d", i)
		}
	}

	increase, err := gw.BuildIncreaseLiquidity(context.Background(), IncreaseParams{
		TokenID:        big.NewInt(7),
		Amount0Desired: big.NewInt(1000),
		Amount1Desired: big.NewInt(2000),
		Amount0Min:     big.NewInt(700),
		Amount1Min:     big.NewInt(1400),
		Deadline:       big.NewInt(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("build increase: %v", err)
	}
	for i, b := range managerABI.Methods["increaseLiquidity"].ID {
		if increase.Data[i] != b {
			t.Fatalf("increase selector mismatch at byte %d", i)
		}
	}
	if increase.GasLimit != GasLimitIncrease {
		t.Fatalf("increase gas limit mismatch: %d", increase.GasLimit)
	}
}
