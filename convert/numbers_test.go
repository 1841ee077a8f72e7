package convert

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCents(t *testing.T) {
	tests := []struct {
		price    string
		expected int64
	}{
		{"0.1234", 12},
		{"0.125", 13},
		{"0.0049", 0},
		{"1.5", 150},
		{"-0.015", -2},
	}
	for _, tt := range tests {
		if got := Cents(decimal.RequireFromString(tt.price)); got != tt.expected {
			t.Errorf("Cents(%s) expected %d, got %d", tt.price, tt.expected, got)
		}
	}
}

func TestTwoDecimals(t *testing.T) {
	got := TwoDecimals(decimal.RequireFromString("0.16154"))
	if got.String() != "0.16" {
		t.Errorf("TwoDecimals() expected 0.16, got %s", got)
	}
}

func TestRoundDecimal(t *testing.T) {
	got := RoundDecimal(decimal.RequireFromString("0.16155"), 4)
	if got.String() != "0.1616" {
		t.Errorf("RoundDecimal() expected 0.1616, got %s", got)
	}
}

func TestToFloat(t *testing.T) {
	if got := ToFloat(decimal.RequireFromString("0.25")); got != 0.25 {
		t.Errorf("ToFloat() expected 0.25, got %v", got)
	}
}
