package analytics

import (
	"math"
	"testing"
)

func f(v float64) *float64 {
	return &v
}

func TestPercentChange(t *testing.T) {
	got := PercentChange(f(400.0), f(410.0))
	if math.Abs(got-2.5) > 1e-9 {
		t.Fatal("expected 2.5, got ", got)
	}
}

func TestPercentChangeSignFlipsWhenSwapped(t *testing.T) {
	up := PercentChange(f(400.0), f(410.0))
	down := PercentChange(f(410.0), f(400.0))
	if up <= 0 || down >= 0 {
		t.Fatal("expected opposite signs, got ", up, " and ", down)
	}
}

func TestPercentChangeSentinels(t *testing.T) {
	if got := PercentChange(nil, f(5.0)); got != 0.0 {
		t.Fatal("expected 0.0 for nil prev, got ", got)
	}
	if got := PercentChange(f(5.0), nil); got != 0.0 {
		t.Fatal("expected 0.0 for nil curr, got ", got)
	}
	if got := PercentChange(f(0.0), f(5.0)); got != 0.0 {
		t.Fatal("expected 0.0 for zero prev, got ", got)
	}
}

func TestVolatility(t *testing.T) {
	got := Volatility(f(410.0), f(400.0))
	if math.Abs(got-2.4691) > 0.002 {
		t.Fatal("expected ~2.4691, got ", got)
	}
}

func TestVolatilityEqualValues(t *testing.T) {
	if got := Volatility(f(421.5), f(421.5)); got != 0.0 {
		t.Fatal("expected 0.0 for equal values, got ", got)
	}
}

func TestVolatilitySentinels(t *testing.T) {
	if got := Volatility(nil, f(400.0)); got != 0.0 {
		t.Fatal("expected 0.0 for nil curr, got ", got)
	}
	if got := Volatility(f(400.0), nil); got != 0.0 {
		t.Fatal("expected 0.0 for nil prev, got ", got)
	}
	if got := Volatility(f(-1.0), f(400.0)); got != 0.0 {
		t.Fatal("expected 0.0 for non-positive curr, got ", got)
	}
	if got := Volatility(f(400.0), f(0.0)); got != 0.0 {
		t.Fatal("expected 0.0 for zero prev, got ", got)
	}
}

func TestVolatilityRoundsToFourDecimals(t *testing.T) {
	got := Volatility(f(410.0), f(400.0))
	if got != Round(got, 4) {
		t.Fatal("expected 4dp rounding, got ", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(415.0, 410.0, 420.0); math.Abs(got-0.5) > 1e-9 {
		t.Fatal("expected 0.5, got ", got)
	}
	if got := Normalize(410.0, 410.0, 420.0); got != 0.0 {
		t.Fatal("expected 0.0 at min, got ", got)
	}
	if got := Normalize(420.0, 410.0, 420.0); got != 1.0 {
		t.Fatal("expected 1.0 at max, got ", got)
	}
}

func TestNormalizeDegenerateRange(t *testing.T) {
	if got := Normalize(420.0, 420.0, 420.0); got != 0.5 {
		t.Fatal("expected 0.5 for min==max, got ", got)
	}
}
