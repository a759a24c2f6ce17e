package tickmath

import (
	"errors"
	"math/big"
	"testing"

	"positionkeeper/internal/model"
)

func TestPriceToTickUnitPrice(t *testing.T) {
	tick, err := PriceToTick(1.0, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick != 0 {
		t.Fatalf("price 1.0 with equal decimals should map to tick 0, got %d", tick)
	}
}

func TestPriceToTickKnownValue(t *testing.T) {
	// ln(2)/ln(1.0001) = 6931.8..., floored.
	tick, err := PriceToTick(2.0, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick != 6931 {
		t.Fatalf("price 2.0 should map to tick 6931, got %d", tick)
	}
}

func TestPriceToTickInvalid(t *testing.T) {
	for _, price := range []float64{0, -1, -0.0001} {
		if _, err := PriceToTick(price, 18, 18); !errors.Is(err, model.ErrInvalidPrice) {
			t.Fatalf("price %v: expected ErrInvalidPrice, got %v", price, err)
		}
	}
}

func TestPriceToTickDecimalAdjustment(t *testing.T) {
	// A 6/18 decimal pair shifts the tick by 12 decades; the adjusted tick
	// must stay well positive and differ from the unadjusted one.
	adjusted, err := PriceToTick(1.0, 6, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adjusted <= 0 {
		t.Fatalf("decimal-adjusted tick should be positive, got %d", adjusted)
	}

	mirrored, err := PriceToTick(1.0, 18, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Flooring makes the mirror off by one: floor(-x) = -floor(x)-1 for
	// non-integral x.
	if mirrored != -adjusted-1 {
		t.Fatalf("mirrored decimal gap mismatch: %d vs %d", adjusted, mirrored)
	}
}

func TestAlignToSpacingFlooring(t *testing.T) {
	cases := []struct {
		tick int32
		fee  uint32
		want int32
	}{
		{119, 3000, 60},
		{-1, 3000, -60},
		{60, 3000, 60},
		{-60, 3000, -60},
		{0, 3000, 0},
		{-119, 3000, -120},
		{7, 100, 7},
		{15, 500, 10},
		{-15, 500, -20},
		{399, 10000, 200},
		{-399, 10000, -400},
	}
	for _, tc := range cases {
		got, err := AlignToSpacing(tc.tick, tc.fee)
		if err != nil {
			t.Fatalf("align(%d, %d): unexpected error: %v", tc.tick, tc.fee, err)
		}
		if got != tc.want {
			t.Fatalf("align(%d, %d) = %d, want %d", tc.tick, tc.fee, got, tc.want)
		}
	}
}

func TestAlignToSpacingUnknownFee(t *testing.T) {
	if _, err := AlignToSpacing(100, 2500); !errors.Is(err, model.ErrUnknownFeeTier) {
		t.Fatalf("expected ErrUnknownFeeTier, got %v", err)
	}
}

func TestAlignedTickIsSpacingMultiple(t *testing.T) {
	prices := []float64{0.0004, 0.97, 1.0, 1.31, 42.5, 1800}
	fees := []uint32{100, 500, 3000, 10000}
	for _, price := range prices {
		for _, fee := range fees {
			tick, err := PriceToTick(price, 18, 18)
			if err != nil {
				t.Fatalf("priceToTick(%v): %v", price, err)
			}
			aligned, err := AlignToSpacing(tick, fee)
			if err != nil {
				t.Fatalf("align(%d, %d): %v", tick, fee, err)
			}
			spacing, _ := SpacingForFee(fee)
			if aligned%spacing != 0 {
				t.Fatalf("aligned tick %d not a multiple of spacing %d", aligned, spacing)
			}
			if aligned > tick {
				t.Fatalf("aligned tick %d above raw tick %d", aligned, tick)
			}
		}
	}
}

func TestComputeRangeSymmetricScenario(t *testing.T) {
	lower, upper, err := ComputeRange(1.0, model.PriceRange{Lower: 0.95, Upper: 1.05}, 18, 18, 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lower != -540 || upper != 480 {
		t.Fatalf("range mismatch: got (%d, %d), want (-540, 480)", lower, upper)
	}
	if lower >= 0 || upper <= 0 {
		t.Fatalf("bounds should straddle tick 0: (%d, %d)", lower, upper)
	}
	if lower%60 != 0 || upper%60 != 0 {
		t.Fatalf("bounds must be multiples of 60: (%d, %d)", lower, upper)
	}
}

func TestComputeRangeCollapsed(t *testing.T) {
	// Both factors land in the same 200-wide spacing bucket.
	_, _, err := ComputeRange(1.0, model.PriceRange{Lower: 1.001, Upper: 1.002}, 18, 18, 10000)
	if !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestComputeRangeOrdering(t *testing.T) {
	factors := []model.PriceRange{
		{Lower: 0.5, Upper: 2.0},
		{Lower: 0.9, Upper: 1.1},
		{Lower: 0.99, Upper: 1.01},
	}
	for _, pr := range factors {
		lower, upper, err := ComputeRange(1.0, pr, 18, 18, 500)
		if err != nil {
			t.Fatalf("range %+v: %v", pr, err)
		}
		if lower >= upper {
			t.Fatalf("range %+v: lower %d >= upper %d", pr, lower, upper)
		}
	}
}

func TestPriceFromSqrtX96(t *testing.T) {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)

	price, err := PriceFromSqrtX96(q96, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1.0 {
		t.Fatalf("sqrt price 2^96 should give price 1.0, got %v", price)
	}

	price, err = PriceFromSqrtX96(q96, 6, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1e-12 {
		t.Fatalf("decimal-adjusted price mismatch: got %v, want 1e-12", price)
	}
}

func TestPriceFromSqrtX96Invalid(t *testing.T) {
	if _, err := PriceFromSqrtX96(nil, 18, 18); !errors.Is(err, model.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil, got %v", err)
	}
	if _, err := PriceFromSqrtX96(big.NewInt(0), 18, 18); !errors.Is(err, model.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero, got %v", err)
	}
}
