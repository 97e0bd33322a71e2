package types

import (
	"encoding/json"
	"testing"
)

func TestAmountArithmetic(t *testing.T) {
	a, b := Tokens(3), Tokens(2)

	if got := a.Add(b); !got.Equal(Tokens(5)) {
		t.Errorf("3 + 2 = %s", got)
	}
	if got := a.Sub(b); !got.Equal(Tokens(1)) {
		t.Errorf("3 - 2 = %s", got)
	}
	// Multiplying two scaled quantities doubles the scale; ScaleDown
	// restores the settlement denomination.
	if got := a.Mul(b).ScaleDown(); !got.Equal(Tokens(6)) {
		t.Errorf("3 * 2 = %s", got)
	}
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("underflowing Sub should panic")
		}
	}()
	Tokens(1).Sub(Tokens(2))
}

func TestAmountMulBpsFloors(t *testing.T) {
	// 1 wei at 1 bps floors to zero; the remainder handling upstream
	// is what keeps totals conserved.
	if got := NewAmount(1).MulBps(1); !got.IsZero() {
		t.Errorf("1 * 1bps = %s, want 0", got)
	}
	if got := Tokens(100).MulBps(2500); !got.Equal(Tokens(25)) {
		t.Errorf("100 * 2500bps = %s, want 25", got)
	}
	if got := Tokens(100).MulBps(10_000); !got.Equal(Tokens(100)) {
		t.Errorf("100 * 10000bps = %s, want 100", got)
	}
}

func TestAmountMulDiv(t *testing.T) {
	// impact * funded / cost, the minting formula.
	if got := Tokens(50).MulDiv(Tokens(100), Tokens(100)); !got.Equal(Tokens(50)) {
		t.Errorf("50*100/100 = %s", got)
	}
	if got := Tokens(50).MulDiv(Tokens(1), Tokens(3)); got.String() != "16666666666666666666" {
		t.Errorf("50/3 = %s", got)
	}
}

func TestAmountJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		V Amount `json:"v"`
	}
	in := wrapper{V: Tokens(42)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"v":"42000000000000000000"}` {
		t.Fatalf("encoded as %s", data)
	}
	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.V.Equal(in.V) {
		t.Fatalf("round trip lost value: %s", out.V)
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("12x"); err == nil {
		t.Error("garbage should not parse")
	}
	if _, err := ParseAmount("-5"); err == nil {
		t.Error("negative amounts should not parse")
	}
	a, err := ParseAmount("7")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if !a.Equal(NewAmount(7)) {
		t.Fatalf("parsed %s", a)
	}
}

func TestZeroValueAmountIsUsable(t *testing.T) {
	var zero Amount
	if !zero.IsZero() {
		t.Error("zero value should be zero")
	}
	if got := zero.Add(Tokens(1)); !got.Equal(Tokens(1)) {
		t.Errorf("0 + 1 = %s", got)
	}
}
