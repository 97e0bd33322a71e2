package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	if err := FakeRules().Validate(); err != nil {
		t.Fatalf("fake rules invalid: %v", err)
	}
}

func TestValidateRejectsBadRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ProtocolRules)
	}{
		{"unknown over-target policy", func(r *ProtocolRules) { r.Funding.OverTarget = "maybe" }},
		{"quorum below majority", func(r *ProtocolRules) { r.Verification.QuorumBps = 5000 }},
		{"quorum above full weight", func(r *ProtocolRules) { r.Verification.QuorumBps = 10_001 }},
		{"collateral share overflow", func(r *ProtocolRules) { r.Collateral.MinBps = 10_001 }},
		{"operator share overflow", func(r *ProtocolRules) { r.Settlement.OperatorShareBps = 10_001 }},
		{"zero-weight genesis validator", func(r *ProtocolRules) { r.Verification.Genesis[0].Weight = 0 }},
		{"duplicate genesis validator", func(r *ProtocolRules) {
			r.Verification.Genesis[1].Address = r.Verification.Genesis[0].Address
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := FakeRules()
			tc.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestQuorumWeightRoundsUp(t *testing.T) {
	r := DefaultRules() // 6667 bps
	cases := []struct{ total, want uint64 }{
		{0, 0},
		{1, 1},
		{3, 3},  // ceil(3 * 0.6667) = 3: two of three is not enough at 6667
		{100, 67},
		{10_000, 6667},
	}
	for _, tc := range cases {
		if got := r.QuorumWeight(tc.total); got != tc.want {
			t.Errorf("QuorumWeight(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}

	r.Verification.QuorumBps = 6666
	if got := r.QuorumWeight(3); got != 2 {
		t.Errorf("QuorumWeight(3) at 6666 bps = %d, want 2", got)
	}
}

func TestRulesJSONRoundTrip(t *testing.T) {
	in := FakeRules()
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Name != in.Name || out.Verification.QuorumBps != in.Verification.QuorumBps {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if len(out.Verification.Genesis) != len(in.Verification.Genesis) {
		t.Fatalf("genesis lost in round trip: %+v", out.Verification.Genesis)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
