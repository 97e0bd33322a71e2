package types

// CreateTaskParams carries the proposer-supplied fields of a new task.
type CreateTaskParams struct {
	Proposer          Address
	Description       string
	Location          string
	EstimatedCost     Amount
	ExpectedImpact    Amount
	ProofRequirements string
	Deadline          Timestamp
	EvidenceHash      Hash
}

// VoteParams carries one validator's vote submission.
type VoteParams struct {
	TaskID        uint64
	Validator     Address
	Decision      Decision
	ConfidenceBps uint32
	Justification string
}

// Tally is the verification standing of a task after a vote.
type Tally struct {
	TaskID        uint64 `json:"task_id"`
	ApproveWeight uint64 `json:"approve_weight"`
	RejectWeight  uint64 `json:"reject_weight"`
	QuorumWeight  uint64 `json:"quorum_weight"`
	Finalized     bool   `json:"finalized"`
	// Decision is meaningful only when Finalized is true.
	Decision Decision `json:"decision"`
}

// Trade is the result of a marketplace fill.
type Trade struct {
	OrderID        uint64  `json:"order_id"`
	TaskID         uint64  `json:"task_id"`
	Buyer          Address `json:"buyer"`
	Seller         Address `json:"seller"`
	Amount         Amount  `json:"amount"`
	Cost           Amount  `json:"cost"`
	OrderRemaining Amount  `json:"order_remaining"`
	OrderActive    bool    `json:"order_active"`
}

// TaskFilter selects tasks in list queries. Nil fields match
// everything.
type TaskFilter struct {
	Status    *Status
	Proposer  *Address
	Operator  *Address
	DueBefore *Timestamp
}

// Match reports whether t satisfies the filter.
func (f TaskFilter) Match(t Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Proposer != nil && t.Proposer != *f.Proposer {
		return false
	}
	if f.Operator != nil && t.Operator != *f.Operator {
		return false
	}
	if f.DueBefore != nil && !t.Deadline.Before(*f.DueBefore) {
		return false
	}
	return true
}

// OrderFilter selects marketplace orders in list queries.
type OrderFilter struct {
	TaskID     *uint64
	Seller     *Address
	ActiveOnly bool
}

// Match reports whether o satisfies the filter.
func (f OrderFilter) Match(o MarketOrder) bool {
	if f.ActiveOnly && !o.Active {
		return false
	}
	if f.TaskID != nil && o.TaskID != *f.TaskID {
		return false
	}
	if f.Seller != nil && o.Seller != *f.Seller {
		return false
	}
	return true
}
