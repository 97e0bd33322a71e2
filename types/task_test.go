package types

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusProposed, StatusFunded},
		{StatusFunded, StatusInProgress},
		{StatusInProgress, StatusVerified},
		{StatusInProgress, StatusRejected},
		{StatusVerified, StatusCompleted},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusProposed, StatusInProgress},
		{StatusProposed, StatusCompleted},
		{StatusFunded, StatusVerified},
		{StatusFunded, StatusProposed},
		{StatusVerified, StatusRejected},
		{StatusRejected, StatusInProgress},
		{StatusCompleted, StatusProposed},
		{StatusInProgress, StatusInProgress},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be denied", tr.from, tr.to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCompleted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusProposed, StatusFunded, StatusInProgress, StatusVerified} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestAddressHexRoundTrip(t *testing.T) {
	var a Address
	a[0], a[19] = 0xde, 0xad

	parsed, err := AddressFromHex(a.Hex())
	if err != nil {
		t.Fatalf("AddressFromHex: %v", err)
	}
	if parsed != a {
		t.Fatalf("round trip: %s != %s", parsed, a)
	}
	if _, err := AddressFromHex("nope"); err == nil {
		t.Error("garbage should not parse")
	}
}

func TestValidatorSetWeights(t *testing.T) {
	set := ValidatorSet{
		Version: 1,
		Members: []Validator{
			{Address: Address{1}, Weight: 3},
			{Address: Address{2}, Weight: 5},
		},
	}
	if got := set.TotalWeight(); got != 8 {
		t.Errorf("total weight = %d, want 8", got)
	}
	if got := set.WeightOf(Address{2}); got != 5 {
		t.Errorf("weight of member = %d, want 5", got)
	}
	if got := set.WeightOf(Address{9}); got != 0 {
		t.Errorf("weight of stranger = %d, want 0", got)
	}
}
