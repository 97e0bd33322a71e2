package types

// FundingContribution is one funder's escrow deposit into a task.
// Contributions are append-only: corrections happen via new
// contributions or refund entries, never mutation. The sum of a
// task's contributions always equals the task's funded amount.
type FundingContribution struct {
	TaskID    uint64    `json:"task_id"`
	Funder    Address   `json:"funder"`
	Amount    Amount    `json:"amount"`
	Timestamp Timestamp `json:"timestamp"`
}

// Collateral is an operator's stake behind an in-progress task.
// Exactly one active collateral record exists per task; it is
// released or slashed exactly once.
type Collateral struct {
	TaskID   uint64  `json:"task_id"`
	Operator Address `json:"operator"`
	Amount   Amount  `json:"amount"`
	Locked   bool    `json:"locked"`
	Resolved bool    `json:"resolved"`
}
