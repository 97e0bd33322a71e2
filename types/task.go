package types

import "fmt"

// Status is a task's lifecycle state. Transitions are strictly
// forward; Rejected and Completed are terminal.
type Status uint8

const (
	StatusProposed Status = iota + 1
	StatusFunded
	StatusInProgress
	StatusVerified
	StatusRejected
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusProposed:
		return "Proposed"
	case StatusFunded:
		return "Funded"
	case StatusInProgress:
		return "InProgress"
	case StatusVerified:
		return "Verified"
	case StatusRejected:
		return "Rejected"
	case StatusCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// statusSuccessors is the lifecycle transition table. A status absent
// from the table (or with an empty successor set) is terminal.
var statusSuccessors = map[Status][]Status{
	StatusProposed:   {StatusFunded},
	StatusFunded:     {StatusInProgress},
	StatusInProgress: {StatusVerified, StatusRejected},
	StatusVerified:   {StatusCompleted},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range statusSuccessors[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no successors.
func (s Status) Terminal() bool { return len(statusSuccessors[s]) == 0 }

// Task is a unit of funded environmental work. TaskRegistry
// exclusively owns Task records; every other component holds only the
// task id and validates existence and status before acting.
type Task struct {
	ID                uint64    `json:"id"`
	Proposer          Address   `json:"proposer"`
	Description       string    `json:"description"`
	Location          string    `json:"location"`
	EstimatedCost     Amount    `json:"estimated_cost"`
	ExpectedImpact    Amount    `json:"expected_impact"`
	ProofRequirements string    `json:"proof_requirements"`
	Deadline          Timestamp `json:"deadline"`
	EvidenceHash      Hash      `json:"evidence_hash"`
	Status            Status    `json:"status"`
	Operator          Address   `json:"operator"`
	FundedAmount      Amount    `json:"funded_amount"`
	CollateralAmount  Amount    `json:"collateral_amount"`
	CreatedAt         Timestamp `json:"created_at"`

	// Validator-set version captured when the task entered
	// InProgress. Quorum for this task is measured against that
	// set, so later governance changes cannot move the bar.
	ValidatorSetVersion uint64 `json:"validator_set_version"`

	// Idempotency guards for settlement. Exactly one of Released /
	// Refunded ever becomes true, and each settlement effect is
	// applied at most once.
	Released bool `json:"released"`
	Refunded bool `json:"refunded"`
	Minted   bool `json:"minted"`
}

// FundingProgress is the funding view of a task.
type FundingProgress struct {
	TaskID uint64 `json:"task_id"`
	Funded Amount `json:"funded"`
	Target Amount `json:"target"`
	Status Status `json:"status"`
}

// Complete reports whether the funding target has been reached.
func (p FundingProgress) Complete() bool { return p.Funded.GTE(p.Target) }
