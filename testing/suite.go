package gaiatest

import (
	"context"
	"testing"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/types"
)

// RunCoreSuite runs a conformance suite against a protocol core to
// verify lifecycle, settlement and marketplace behavior.
//
// The factory must return a fresh core configured with
// rules.FakeRules and the given clock for each call: the suite
// depends on the fake deployment's 2-of-3 quorum, treasury and
// share percentages.
func RunCoreSuite(t *testing.T, factory func(clock *Clock) gaia.Core) {
	t.Helper()
	ctx := context.Background()

	proposer, operator, funder := Addr(0x10), Addr(0x20), Addr(0x30)
	treasury := Addr(0xee)
	v1, v2, v3 := Addr(1), Addr(2), Addr(3)

	spec := func() FixtureSpec {
		return FixtureSpec{
			Proposer:   proposer,
			Operator:   operator,
			Funders:    []types.Address{funder},
			Cost:       types.Tokens(100),
			Impact:     types.Tokens(50),
			Collateral: types.Tokens(10),
		}
	}

	t.Run("create_and_query", func(t *testing.T) {
		h := NewHarness(t, factory(NewClock()), NewClock())
		id := h.CreateTask(types.CreateTaskParams{
			Proposer:       proposer,
			Description:    "reef survey",
			EstimatedCost:  types.Tokens(10),
			ExpectedImpact: types.Tokens(1),
			Deadline:       h.Deadline(time.Hour),
		})
		task := h.Task(id)
		if task.Status != types.StatusProposed {
			t.Fatalf("new task status = %s, want Proposed", task.Status)
		}
		if !task.FundedAmount.IsZero() {
			t.Fatalf("new task funded = %s, want 0", task.FundedAmount)
		}
	})

	t.Run("invalid_proposal_rejected", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		bad := []types.CreateTaskParams{
			{Proposer: proposer, Description: "x", ExpectedImpact: types.Tokens(1), Deadline: h.Deadline(time.Hour)},
			{Proposer: proposer, Description: "x", EstimatedCost: types.Tokens(1), Deadline: h.Deadline(time.Hour)},
			{Proposer: proposer, Description: "x", EstimatedCost: types.Tokens(1), ExpectedImpact: types.Tokens(1), Deadline: h.Deadline(-time.Hour)},
		}
		for i, p := range bad {
			if _, err := core.CreateTask(ctx, p); !gaia.IsCode(err, gaia.CodeInvalidParameters) {
				t.Errorf("proposal %d: got %v, want CodeInvalidParameters", i, err)
			}
		}
	})

	t.Run("funding_reaches_target", func(t *testing.T) {
		clock := NewClock()
		h := NewHarness(t, factory(clock), clock)
		id := h.CreateTask(types.CreateTaskParams{
			Proposer:       proposer,
			Description:    "wetland restoration",
			EstimatedCost:  types.Tokens(100),
			ExpectedImpact: types.Tokens(50),
			Deadline:       h.Deadline(time.Hour),
		})
		h.Deposit(funder, types.Tokens(100))
		p := h.Fund(id, funder, types.Tokens(40))
		if p.Status != types.StatusProposed || p.Complete() {
			t.Fatalf("after partial funding: status %s complete %v", p.Status, p.Complete())
		}
		p = h.Fund(id, funder, types.Tokens(60))
		if p.Status != types.StatusFunded || !p.Complete() {
			t.Fatalf("after full funding: status %s complete %v", p.Status, p.Complete())
		}
	})

	t.Run("funding_requires_balance", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		id := h.CreateTask(types.CreateTaskParams{
			Proposer:       proposer,
			Description:    "soil carbon sampling",
			EstimatedCost:  types.Tokens(100),
			ExpectedImpact: types.Tokens(50),
			Deadline:       h.Deadline(time.Hour),
		})
		_, err := core.Fund(ctx, id, funder, types.Tokens(1))
		if !gaia.IsCode(err, gaia.CodeInsufficientBalance) {
			t.Fatalf("got %v, want CodeInsufficientBalance", err)
		}
	})

	t.Run("approval_settles_and_mints", func(t *testing.T) {
		clock := NewClock()
		h := NewHarness(t, factory(clock), clock)
		id := h.InProgressTask(spec())

		tally := h.Vote(id, v1, types.DecisionApprove)
		if tally.Finalized {
			t.Fatalf("one of three votes should not finalize")
		}
		tally = h.Vote(id, v2, types.DecisionApprove)
		if !tally.Finalized || tally.Decision != types.DecisionApprove {
			t.Fatalf("second approval should finalize: %+v", tally)
		}

		task := h.Task(id)
		if task.Status != types.StatusCompleted {
			t.Fatalf("task status = %s, want Completed", task.Status)
		}
		// 95% of the 100-token escrow plus the returned 10-token
		// collateral.
		if got, want := h.Balance(operator), types.Tokens(105); !got.Equal(want) {
			t.Errorf("operator balance = %s, want %s", got, want)
		}
		if got, want := h.Balance(treasury), types.Tokens(5); !got.Equal(want) {
			t.Errorf("treasury balance = %s, want %s", got, want)
		}
		// 50 tokens of credits: operator 25%, sole funder 75%.
		if got := h.Credits(operator, id).Tradable; got.String() != "12500000000000000000" {
			t.Errorf("operator credits = %s", got)
		}
		if got := h.Credits(funder, id).Tradable; got.String() != "37500000000000000000" {
			t.Errorf("funder credits = %s", got)
		}
	})

	t.Run("rejection_refunds_and_slashes", func(t *testing.T) {
		clock := NewClock()
		h := NewHarness(t, factory(clock), clock)
		id := h.InProgressTask(spec())

		h.Vote(id, v1, types.DecisionReject)
		tally := h.Vote(id, v3, types.DecisionReject)
		if !tally.Finalized || tally.Decision != types.DecisionReject {
			t.Fatalf("second rejection should finalize: %+v", tally)
		}

		task := h.Task(id)
		if task.Status != types.StatusRejected {
			t.Fatalf("task status = %s, want Rejected", task.Status)
		}
		if got, want := h.Balance(funder), types.Tokens(100); !got.Equal(want) {
			t.Errorf("funder refund = %s, want %s", got, want)
		}
		if got, want := h.Balance(treasury), types.Tokens(10); !got.Equal(want) {
			t.Errorf("treasury slash = %s, want %s", got, want)
		}
		if got := h.Balance(operator); !got.IsZero() {
			t.Errorf("operator balance = %s, want 0", got)
		}
	})

	t.Run("duplicate_vote_rejected", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		id := h.InProgressTask(spec())

		h.Vote(id, v1, types.DecisionApprove)
		_, err := core.CastVote(ctx, types.VoteParams{TaskID: id, Validator: v1, Decision: types.DecisionReject})
		if !gaia.IsCode(err, gaia.CodeDuplicateVote) {
			t.Fatalf("got %v, want CodeDuplicateVote", err)
		}
	})

	t.Run("non_validator_vote_rejected", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		id := h.InProgressTask(spec())

		_, err := core.CastVote(ctx, types.VoteParams{TaskID: id, Validator: Addr(0x99), Decision: types.DecisionApprove})
		if !gaia.IsCode(err, gaia.CodeNotAValidator) {
			t.Fatalf("got %v, want CodeNotAValidator", err)
		}
	})

	t.Run("deadline_rejects_without_quorum", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		s := spec()
		s.Deadline = time.Hour
		id := h.InProgressTask(s)

		h.Vote(id, v1, types.DecisionApprove) // 1 of 3: no quorum
		clock.Advance(2 * time.Hour)

		finalized, err := core.FinalizeExpired(ctx)
		if err != nil {
			t.Fatalf("FinalizeExpired: %v", err)
		}
		if len(finalized) != 1 || finalized[0] != id {
			t.Fatalf("finalized = %v, want [%d]", finalized, id)
		}
		if got := h.Task(id).Status; got != types.StatusRejected {
			t.Fatalf("task status = %s, want Rejected", got)
		}
	})

	t.Run("market_roundtrip", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		id := h.InProgressTask(spec())
		h.Vote(id, v1, types.DecisionApprove)
		h.Vote(id, v2, types.DecisionApprove)

		buyer := Addr(0x40)
		h.Deposit(buyer, types.Tokens(100))

		// Funder lists 30 of their 37.5 credits at 2 tokens each.
		orderID, err := core.ListOrder(ctx, funder, id, types.Tokens(30), types.Tokens(2))
		if err != nil {
			t.Fatalf("ListOrder: %v", err)
		}
		trade, err := core.Buy(ctx, orderID, buyer, types.Tokens(20))
		if err != nil {
			t.Fatalf("Buy: %v", err)
		}
		if want := types.Tokens(40); !trade.Cost.Equal(want) {
			t.Errorf("trade cost = %s, want %s", trade.Cost, want)
		}
		if got, want := h.Credits(buyer, id).Tradable, types.Tokens(20); !got.Equal(want) {
			t.Errorf("buyer credits = %s, want %s", got, want)
		}

		if err := core.CancelOrder(ctx, orderID, funder); err != nil {
			t.Fatalf("CancelOrder: %v", err)
		}
		if _, err := core.Buy(ctx, orderID, buyer, types.Tokens(1)); !gaia.IsCode(err, gaia.CodeOrderInactive) {
			t.Fatalf("buy on cancelled order: got %v, want CodeOrderInactive", err)
		}
	})

	t.Run("retire_burns_credits", func(t *testing.T) {
		clock := NewClock()
		core := factory(clock)
		h := NewHarness(t, core, clock)
		id := h.InProgressTask(spec())
		h.Vote(id, v1, types.DecisionApprove)
		h.Vote(id, v2, types.DecisionApprove)

		if err := core.Retire(ctx, operator, id, types.Tokens(10)); err != nil {
			t.Fatalf("Retire: %v", err)
		}
		bal := h.Credits(operator, id)
		if got, want := bal.Retired, types.Tokens(10); !got.Equal(want) {
			t.Errorf("retired = %s, want %s", got, want)
		}
		if err := core.Retire(ctx, operator, id, types.Tokens(1_000)); !gaia.IsCode(err, gaia.CodeInsufficientBalance) {
			t.Errorf("over-retire: got %v, want CodeInsufficientBalance", err)
		}
	})
}
