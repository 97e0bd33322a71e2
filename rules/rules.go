// Package rules defines the configuration parameters of a Gaia
// protocol deployment.
//
// The ProtocolRules type is the central configuration structure: it
// carries every tunable the core consults: funding policy, quorum
// thresholds, settlement splits, collateral requirements and the
// genesis validator set. Rules are plain JSON so deployments can ship
// them as a file next to the node binary.
package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arko05roy/gaia-core/types"
)

// OverTargetPolicy decides what happens to a contribution that would
// push a task's funded total past its estimated cost.
type OverTargetPolicy string

const (
	// OverTargetClamp reduces the contribution to exactly reach the
	// target; the recorded contribution reflects the clamped amount.
	OverTargetClamp OverTargetPolicy = "clamp"
	// OverTargetReject fails the contribution with ExceedsTarget.
	OverTargetReject OverTargetPolicy = "reject"
)

// FundingRules govern escrow behavior.
type FundingRules struct {
	// OverTarget is the over-target contribution policy.
	OverTarget OverTargetPolicy `json:"over_target"`
}

// CollateralRules govern operator stake.
type CollateralRules struct {
	// MinBps is the minimum collateral as basis points of the
	// task's estimated cost.
	MinBps uint32 `json:"min_bps"`
}

// VerificationRules govern voting and quorum.
type VerificationRules struct {
	// QuorumBps is the weight a side must accumulate to finalize,
	// as basis points of the captured validator set's total weight.
	QuorumBps uint32 `json:"quorum_bps"`
	// Genesis validators, installed as set version 1 on first boot.
	Genesis []types.Validator `json:"genesis"`
}

// SettlementRules govern where released and slashed funds go.
type SettlementRules struct {
	// Treasury receives the non-operator share of releases and all
	// slashed collateral. A zero treasury burns those funds: the
	// zero address holds a balance no one can spend.
	Treasury types.Address `json:"treasury"`
	// OperatorShareBps of the escrow goes to the operator on
	// release; the remainder goes to the treasury.
	OperatorShareBps uint32 `json:"operator_share_bps"`
	// OperatorCreditBps of minted credits go to the operator; the
	// remainder is split pro-rata among funders.
	OperatorCreditBps uint32 `json:"operator_credit_bps"`
}

// GovernanceRules identify who may mutate the validator set. A zero
// authority disables governance: the validator set stays frozen at
// genesis.
type GovernanceRules struct {
	Authority types.Address `json:"authority"`
}

// ProtocolRules is the complete configuration of a deployment.
type ProtocolRules struct {
	Name         string            `json:"name"`
	Funding      FundingRules      `json:"funding"`
	Collateral   CollateralRules   `json:"collateral"`
	Verification VerificationRules `json:"verification"`
	Settlement   SettlementRules   `json:"settlement"`
	Governance   GovernanceRules   `json:"governance"`
}

// DefaultRules returns production defaults: clamp over-target
// funding, 10% minimum collateral, 2/3 quorum, 95/5 release split,
// operator keeps a quarter of minted credits.
//
// Treasury and governance authority are deployment addresses and are
// left unset: until a rules file provides them, the treasury share
// is burned and the validator set cannot be changed.
func DefaultRules() ProtocolRules {
	return ProtocolRules{
		Name: "main",
		Funding: FundingRules{
			OverTarget: OverTargetClamp,
		},
		Collateral: CollateralRules{
			MinBps: 1000,
		},
		Verification: VerificationRules{
			QuorumBps: 6667,
		},
		Settlement: SettlementRules{
			OperatorShareBps:  9500,
			OperatorCreditBps: 2500,
		},
	}
}

// FakeRules returns a test deployment: a 2-of-3 equal-weight quorum,
// a fixed treasury and governance authority, and the three numbered
// test validators.
func FakeRules() ProtocolRules {
	r := DefaultRules()
	r.Name = "fake"
	r.Verification.QuorumBps = 6666
	r.Settlement.Treasury = testAddress(0xee)
	r.Governance.Authority = testAddress(0xaa)
	for i := byte(1); i <= 3; i++ {
		r.Verification.Genesis = append(r.Verification.Genesis, types.Validator{
			Address: testAddress(i),
			Weight:  1,
		})
	}
	return r
}

func testAddress(n byte) types.Address {
	var a types.Address
	a[0] = n
	a[19] = n
	return a
}

// Validate checks internal consistency. A node refuses to start on
// invalid rules.
func (r ProtocolRules) Validate() error {
	switch r.Funding.OverTarget {
	case OverTargetClamp, OverTargetReject:
	default:
		return fmt.Errorf("rules: unknown over_target policy %q", r.Funding.OverTarget)
	}
	if r.Verification.QuorumBps == 0 || r.Verification.QuorumBps > 10000 {
		return fmt.Errorf("rules: quorum_bps %d out of range (0, 10000]", r.Verification.QuorumBps)
	}
	if r.Verification.QuorumBps <= 5000 {
		// Both sides could finalize at once below a majority.
		return fmt.Errorf("rules: quorum_bps %d must exceed 5000", r.Verification.QuorumBps)
	}
	if r.Settlement.OperatorShareBps > 10000 {
		return fmt.Errorf("rules: operator_share_bps %d exceeds 10000", r.Settlement.OperatorShareBps)
	}
	if r.Settlement.OperatorCreditBps > 10000 {
		return fmt.Errorf("rules: operator_credit_bps %d exceeds 10000", r.Settlement.OperatorCreditBps)
	}
	if r.Collateral.MinBps > 10000 {
		return fmt.Errorf("rules: collateral min_bps %d exceeds 10000", r.Collateral.MinBps)
	}
	seen := make(map[types.Address]bool, len(r.Verification.Genesis))
	for _, v := range r.Verification.Genesis {
		if v.Weight == 0 {
			return fmt.Errorf("rules: genesis validator %s has zero weight", v.Address)
		}
		if seen[v.Address] {
			return fmt.Errorf("rules: duplicate genesis validator %s", v.Address)
		}
		seen[v.Address] = true
	}
	return nil
}

// QuorumWeight returns the weight a side must reach to finalize
// against a set with the given total weight: ceil(total * bps / 10000).
func (r ProtocolRules) QuorumWeight(totalWeight uint64) uint64 {
	bps := uint64(r.Verification.QuorumBps)
	return (totalWeight*bps + 9999) / 10000
}

// Load reads and validates rules from a JSON file.
func Load(path string) (ProtocolRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProtocolRules{}, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var r ProtocolRules
	if err := json.Unmarshal(data, &r); err != nil {
		return ProtocolRules{}, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return ProtocolRules{}, err
	}
	return r, nil
}
