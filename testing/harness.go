// Package gaiatest provides test utilities for protocol core
// development: a harness with Must-style command helpers and a
// deterministic clock, a fault-injecting store wrapper, and a core
// conformance suite.
package gaiatest

import (
	"context"
	"sync"
	"testing"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/types"
)

// Addr builds a deterministic test address from a single byte. With
// rules.FakeRules, Addr(1) through Addr(3) are the genesis
// validators, Addr(0xee) is the treasury and Addr(0xaa) the
// governance authority.
func Addr(n byte) types.Address {
	var a types.Address
	a[0] = n
	a[19] = n
	return a
}

// Clock is a mutable time source for driving deadline behavior
// deterministically. The zero value is not usable; use NewClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed point well clear of zero
// timestamps.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current test time. Pass this method to the
// engine's clock option.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Harness wraps a core with fatal-on-error command helpers so tests
// read as scenarios rather than error plumbing.
type Harness struct {
	t     *testing.T
	core  gaia.Core
	clock *Clock
}

// NewHarness creates a harness over the given core. The clock may be
// nil when the test never touches deadlines.
func NewHarness(t *testing.T, core gaia.Core, clock *Clock) *Harness {
	t.Helper()
	return &Harness{t: t, core: core, clock: clock}
}

// Core returns the wrapped core for direct access.
func (h *Harness) Core() gaia.Core { return h.core }

// Clock returns the harness clock.
func (h *Harness) Clock() *Clock { return h.clock }

// Deadline returns a deadline the given duration past the current
// clock time.
func (h *Harness) Deadline(d time.Duration) types.Timestamp {
	return types.TimeToTimestamp(h.clock.Now().Add(d))
}

// CreateTask registers a task and returns its id.
func (h *Harness) CreateTask(p types.CreateTaskParams) uint64 {
	h.t.Helper()
	id, err := h.core.CreateTask(context.Background(), p)
	if err != nil {
		h.t.Fatalf("CreateTask: %v", err)
	}
	return id
}

// Deposit credits a settlement balance.
func (h *Harness) Deposit(holder types.Address, amount types.Amount) {
	h.t.Helper()
	if err := h.core.Deposit(context.Background(), holder, amount); err != nil {
		h.t.Fatalf("Deposit %s to %s: %v", amount, holder, err)
	}
}

// Fund escrows a contribution.
func (h *Harness) Fund(taskID uint64, funder types.Address, amount types.Amount) types.FundingProgress {
	h.t.Helper()
	p, err := h.core.Fund(context.Background(), taskID, funder, amount)
	if err != nil {
		h.t.Fatalf("Fund task %d with %s: %v", taskID, amount, err)
	}
	return p
}

// PostCollateral stakes the operator behind the task.
func (h *Harness) PostCollateral(taskID uint64, operator types.Address, amount types.Amount) {
	h.t.Helper()
	if err := h.core.PostCollateral(context.Background(), taskID, operator, amount); err != nil {
		h.t.Fatalf("PostCollateral task %d: %v", taskID, err)
	}
}

// AssignOperator starts the work phase.
func (h *Harness) AssignOperator(taskID uint64, operator types.Address) {
	h.t.Helper()
	if err := h.core.AssignOperator(context.Background(), taskID, operator); err != nil {
		h.t.Fatalf("AssignOperator task %d: %v", taskID, err)
	}
}

// Vote casts an approve or reject vote.
func (h *Harness) Vote(taskID uint64, validator types.Address, decision types.Decision) types.Tally {
	h.t.Helper()
	tally, err := h.core.CastVote(context.Background(), types.VoteParams{
		TaskID:        taskID,
		Validator:     validator,
		Decision:      decision,
		ConfidenceBps: 9000,
	})
	if err != nil {
		h.t.Fatalf("CastVote task %d by %s: %v", taskID, validator, err)
	}
	return tally
}

// Task fetches a task record.
func (h *Harness) Task(id uint64) types.Task {
	h.t.Helper()
	task, err := h.core.Task(context.Background(), id)
	if err != nil {
		h.t.Fatalf("Task %d: %v", id, err)
	}
	return task
}

// Balance fetches a settlement balance.
func (h *Harness) Balance(holder types.Address) types.Amount {
	h.t.Helper()
	bal, err := h.core.SettlementBalance(context.Background(), holder)
	if err != nil {
		h.t.Fatalf("SettlementBalance %s: %v", holder, err)
	}
	return bal
}

// Credits fetches a credit balance.
func (h *Harness) Credits(holder types.Address, taskID uint64) types.CreditBalance {
	h.t.Helper()
	bal, err := h.core.CreditBalance(context.Background(), holder, taskID)
	if err != nil {
		h.t.Fatalf("CreditBalance %s task %d: %v", holder, taskID, err)
	}
	return bal
}

// FixtureSpec describes the standard funded-task fixture.
type FixtureSpec struct {
	Proposer   types.Address
	Operator   types.Address
	Funders    []types.Address // each funds an equal split of the cost
	Cost       types.Amount
	Impact     types.Amount
	Collateral types.Amount
	Deadline   time.Duration // from the current clock time
}

// InProgressTask drives a fresh task through funding, collateral and
// operator assignment, leaving it InProgress and ready for votes.
// Funder and operator balances are topped up as needed.
func (h *Harness) InProgressTask(spec FixtureSpec) uint64 {
	h.t.Helper()
	if spec.Deadline == 0 {
		spec.Deadline = 24 * time.Hour
	}
	id := h.CreateTask(types.CreateTaskParams{
		Proposer:       spec.Proposer,
		Description:    "mangrove restoration, northern shore",
		Location:       "12.97N 77.59E",
		EstimatedCost:  spec.Cost,
		ExpectedImpact: spec.Impact,
		Deadline:       h.Deadline(spec.Deadline),
	})

	share := spec.Cost.MulDiv(types.NewAmount(1), types.NewAmount(uint64(len(spec.Funders))))
	for i, funder := range spec.Funders {
		amount := share
		if i == len(spec.Funders)-1 {
			// Last funder tops up whatever integer division left over.
			task := h.Task(id)
			amount = task.EstimatedCost.Sub(task.FundedAmount)
		}
		h.Deposit(funder, amount)
		h.Fund(id, funder, amount)
	}

	h.Deposit(spec.Operator, spec.Collateral)
	h.PostCollateral(id, spec.Operator, spec.Collateral)
	h.AssignOperator(id, spec.Operator)
	return id
}
