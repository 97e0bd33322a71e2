package types

// Decision is a validator's verdict on a task's proof of completion,
// or the finalized outcome of the vote.
type Decision uint8

const (
	DecisionApprove Decision = 1
	DecisionReject  Decision = 2
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Valid reports whether d is a recognized decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// VerificationVote is one validator's vote on one task. Votes are
// append-only and unique per (task, validator).
type VerificationVote struct {
	TaskID        uint64    `json:"task_id"`
	Validator     Address   `json:"validator"`
	Decision      Decision  `json:"decision"`
	ConfidenceBps uint32    `json:"confidence_bps"`
	Justification string    `json:"justification"`
	Timestamp     Timestamp `json:"timestamp"`
}

// VerificationOutcome is the finalized result of a task's vote.
// It is derived deterministically from the vote set and the weight
// table of the validator-set version captured for the task; it is
// never independently mutated.
type VerificationOutcome struct {
	TaskID        uint64    `json:"task_id"`
	Decision      Decision  `json:"decision"`
	ApproveWeight uint64    `json:"approve_weight"`
	RejectWeight  uint64    `json:"reject_weight"`
	FinalizedAt   Timestamp `json:"finalized_at"`
}

// Validator is one member of the validator set with its voting weight.
// Equal-weight deployments simply give every member weight 1.
type Validator struct {
	Address Address `json:"address"`
	Weight  uint64  `json:"weight"`
}

// ValidatorSet is the versioned validator configuration. It is
// explicit protocol state owned by governance, read by the
// verification manager at vote time, never a hidden singleton.
// Every membership change increments Version.
type ValidatorSet struct {
	Version uint64      `json:"version"`
	Members []Validator `json:"members"`
}

// TotalWeight is the sum of all member weights.
func (vs ValidatorSet) TotalWeight() uint64 {
	var total uint64
	for _, m := range vs.Members {
		total += m.Weight
	}
	return total
}

// WeightOf returns the weight of addr, or 0 if addr is not a member.
func (vs ValidatorSet) WeightOf(addr Address) uint64 {
	for _, m := range vs.Members {
		if m.Address == addr {
			return m.Weight
		}
	}
	return 0
}

// Contains reports whether addr is a member.
func (vs ValidatorSet) Contains(addr Address) bool {
	return vs.WeightOf(addr) > 0
}
