package balance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeTokenReader struct {
	decimals uint8
	balance  *big.Int
	err      error
}

func (f *fakeTokenReader) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	return f.decimals, f.err
}

func (f *fakeTokenReader) TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.balance), nil
}

func TestBalanceOfScalesByDecimals(t *testing.T) {
	raw, _ := new(big.Int).SetString("1500000000000000000", 10) // 1.5 with 18 decimals
	reader := &fakeTokenReader{decimals: 18, balance: raw}
	oracle := NewOracle(reader)

	got, err := oracle.BalanceOf(context.Background(), common.HexToAddress("0x1"), common.HexToAddress("0x2"), 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(big.NewFloat(1.5)) != 0 {
		t.Fatalf("scaled balance mismatch: %s", got.Text('f', 4))
	}
}

func TestBalanceOfSixDecimals(t *testing.T) {
	reader := &fakeTokenReader{decimals: 6, balance: big.NewInt(2_500_000)}
	oracle := NewOracle(reader)

	got, err := oracle.BalanceOf(context.Background(), common.HexToAddress("0x1"), common.HexToAddress("0x2"), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(big.NewFloat(2.5)) != 0 {
		t.Fatalf("scaled balance mismatch: %s", got.Text('f', 4))
	}
}

func TestRawBalanceOfWrapsError(t *testing.T) {
	cause := errors.New("rpc down")
	oracle := NewOracle(&fakeTokenReader{err: cause})

	_, err := oracle.RawBalanceOf(context.Background(), common.HexToAddress("0x1"), common.HexToAddress("0x2"))
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
