package protocol_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/protocol"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	gaiatest "github.com/arko05roy/gaia-core/testing"
	"github.com/arko05roy/gaia-core/types"
)

func newEngine(t *testing.T, clock *gaiatest.Clock, r rules.ProtocolRules) *protocol.Engine {
	t.Helper()
	e, err := protocol.New(context.Background(), store.NewMemoryStore(), r, protocol.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}
	return e
}

func TestCoreConformance(t *testing.T) {
	gaiatest.RunCoreSuite(t, func(clock *gaiatest.Clock) gaia.Core {
		return newEngine(t, clock, rules.FakeRules())
	})
}

func standardSpec() gaiatest.FixtureSpec {
	return gaiatest.FixtureSpec{
		Proposer:   gaiatest.Addr(0x10),
		Operator:   gaiatest.Addr(0x20),
		Funders:    []types.Address{gaiatest.Addr(0x30)},
		Cost:       types.Tokens(100),
		Impact:     types.Tokens(50),
		Collateral: types.Tokens(10),
	}
}

func proposedTask(h *gaiatest.Harness) uint64 {
	return h.CreateTask(types.CreateTaskParams{
		Proposer:       gaiatest.Addr(0x10),
		Description:    "peatland rewetting",
		EstimatedCost:  types.Tokens(100),
		ExpectedImpact: types.Tokens(50),
		Deadline:       h.Deadline(24 * time.Hour),
	})
}

func TestOverTargetClamp(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	id := proposedTask(h)

	funder := gaiatest.Addr(0x30)
	h.Deposit(funder, types.Tokens(150))
	p := h.Fund(id, funder, types.Tokens(150))

	if p.Status != types.StatusFunded {
		t.Fatalf("status = %s, want Funded", p.Status)
	}
	if !p.Funded.Equal(types.Tokens(100)) {
		t.Fatalf("funded = %s, want exactly the 100-token target", p.Funded)
	}
	// Only the clamped contribution was escrowed.
	if got, want := h.Balance(funder), types.Tokens(50); !got.Equal(want) {
		t.Fatalf("funder balance = %s, want %s", got, want)
	}

	// Target reached: any further contribution overshoots.
	h.Deposit(funder, types.Tokens(1))
	if _, err := core.Fund(context.Background(), id, funder, types.Tokens(1)); !gaia.IsCode(err, gaia.CodeExceedsTarget) {
		t.Fatalf("fund at target: got %v, want CodeExceedsTarget", err)
	}
}

func TestOverTargetReject(t *testing.T) {
	r := rules.FakeRules()
	r.Funding.OverTarget = rules.OverTargetReject
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, r)
	h := gaiatest.NewHarness(t, core, clock)
	id := proposedTask(h)

	funder := gaiatest.Addr(0x30)
	h.Deposit(funder, types.Tokens(150))
	if _, err := core.Fund(context.Background(), id, funder, types.Tokens(150)); !gaia.IsCode(err, gaia.CodeExceedsTarget) {
		t.Fatalf("got %v, want CodeExceedsTarget", err)
	}
	// The rejected contribution must not move any funds.
	if got := h.Balance(funder); !got.Equal(types.Tokens(150)) {
		t.Fatalf("funder balance = %s, want untouched 150 tokens", got)
	}
}

func TestCollateralRules(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	ctx := context.Background()
	id := proposedTask(h)
	operator := gaiatest.Addr(0x20)
	h.Deposit(operator, types.Tokens(100))

	// Not yet Funded.
	if err := core.PostCollateral(ctx, id, operator, types.Tokens(10)); !gaia.IsCode(err, gaia.CodeInvalidStateTransition) {
		t.Fatalf("collateral on Proposed task: got %v, want CodeInvalidStateTransition", err)
	}

	funder := gaiatest.Addr(0x30)
	h.Deposit(funder, types.Tokens(100))
	h.Fund(id, funder, types.Tokens(100))

	// Below the 10% minimum of the 100-token cost.
	if err := core.PostCollateral(ctx, id, operator, types.Tokens(9)); !gaia.IsCode(err, gaia.CodeInvalidParameters) {
		t.Fatalf("under-collateralized: got %v, want CodeInvalidParameters", err)
	}
	h.PostCollateral(id, operator, types.Tokens(10))
	if err := core.PostCollateral(ctx, id, operator, types.Tokens(10)); !gaia.IsCode(err, gaia.CodeCollateralExists) {
		t.Fatalf("second collateral: got %v, want CodeCollateralExists", err)
	}
}

func TestAssignOperatorRequiresCollateral(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	id := proposedTask(h)

	funder := gaiatest.Addr(0x30)
	h.Deposit(funder, types.Tokens(100))
	h.Fund(id, funder, types.Tokens(100))

	err := core.AssignOperator(context.Background(), id, gaiatest.Addr(0x20))
	if !gaia.IsCode(err, gaia.CodeInvalidStateTransition) {
		t.Fatalf("got %v, want CodeInvalidStateTransition", err)
	}
}

func TestValidatorSetCapturedAtAssignment(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	ctx := context.Background()
	id := h.InProgressTask(standardSpec())

	// Membership changes after assignment do not affect this task's
	// vote.
	authority, late := gaiatest.Addr(0xaa), gaiatest.Addr(0x04)
	if err := core.AddValidator(ctx, authority, late, 100); err != nil {
		t.Fatalf("AddValidator: %v", err)
	}
	_, err := core.CastVote(ctx, types.VoteParams{TaskID: id, Validator: late, Decision: types.DecisionApprove})
	if !gaia.IsCode(err, gaia.CodeNotAValidator) {
		t.Fatalf("late validator on old task: got %v, want CodeNotAValidator", err)
	}

	// A task assigned after the change is judged by the new set.
	spec := standardSpec()
	spec.Funders = []types.Address{gaiatest.Addr(0x31)}
	id2 := h.InProgressTask(spec)
	tally, err := core.CastVote(ctx, types.VoteParams{TaskID: id2, Validator: late, Decision: types.DecisionApprove})
	if err != nil {
		t.Fatalf("late validator on new task: %v", err)
	}
	// Weight 100 against three weight-1 members clears quorum alone.
	if !tally.Finalized {
		t.Fatalf("heavyweight vote should finalize: %+v", tally)
	}
}

func TestGovernanceAuthority(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	ctx := context.Background()

	if err := core.AddValidator(ctx, gaiatest.Addr(0x99), gaiatest.Addr(0x05), 1); !gaia.IsCode(err, gaia.CodeNotAuthorized) {
		t.Fatalf("AddValidator by stranger: got %v, want CodeNotAuthorized", err)
	}
	if err := core.RemoveValidator(ctx, gaiatest.Addr(0xaa), gaiatest.Addr(0x77)); !gaia.IsCode(err, gaia.CodeInvalidParameters) {
		t.Fatalf("remove unknown member: got %v, want CodeInvalidParameters", err)
	}
	if err := core.RemoveValidator(ctx, gaiatest.Addr(0xaa), gaiatest.Addr(1)); err != nil {
		t.Fatalf("RemoveValidator: %v", err)
	}
	set, err := core.Validators(ctx)
	if err != nil {
		t.Fatalf("Validators: %v", err)
	}
	if set.Version != 2 || len(set.Members) != 2 {
		t.Fatalf("set after removal: version %d, %d members", set.Version, len(set.Members))
	}
}

func TestGovernanceDisabledWithoutAuthority(t *testing.T) {
	clock := gaiatest.NewClock()
	r := rules.FakeRules()
	r.Governance.Authority = types.ZeroAddress
	core := newEngine(t, clock, r)
	ctx := context.Background()

	// A zero caller must not match the unset authority.
	if err := core.AddValidator(ctx, types.ZeroAddress, gaiatest.Addr(0x05), 1); !gaia.IsCode(err, gaia.CodeNotAuthorized) {
		t.Fatalf("AddValidator with zero authority: got %v, want CodeNotAuthorized", err)
	}
	if err := core.RemoveValidator(ctx, types.ZeroAddress, gaiatest.Addr(1)); !gaia.IsCode(err, gaia.CodeNotAuthorized) {
		t.Fatalf("RemoveValidator with zero authority: got %v, want CodeNotAuthorized", err)
	}
	set, err := core.Validators(ctx)
	if err != nil {
		t.Fatalf("Validators: %v", err)
	}
	if set.Version != 1 || len(set.Members) != 3 {
		t.Fatalf("set mutated: version %d, %d members", set.Version, len(set.Members))
	}
}

func TestSettlementRollback(t *testing.T) {
	clock := gaiatest.NewClock()
	fault := gaiatest.NewFaultStore(store.NewMemoryStore())
	core, err := protocol.New(context.Background(), fault, rules.FakeRules(), protocol.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}
	h := gaiatest.NewHarness(t, core, clock)
	ctx := context.Background()
	id := h.InProgressTask(standardSpec())
	h.Vote(id, gaiatest.Addr(1), types.DecisionApprove)

	// Fail the credit mint inside the finalizing vote.
	boom := errors.New("disk full")
	fault.SetCreditBalanceFn = func(types.CreditBalance) error { return boom }

	_, err = core.CastVote(ctx, types.VoteParams{TaskID: id, Validator: gaiatest.Addr(2), Decision: types.DecisionApprove})
	if !gaia.IsCode(err, gaia.CodeSettlementFailed) {
		t.Fatalf("got %v, want CodeSettlementFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("settlement error should wrap the cause, got %v", err)
	}

	// Everything rolled back: task still InProgress, escrow intact,
	// the failed vote not recorded.
	if got := h.Task(id).Status; got != types.StatusInProgress {
		t.Fatalf("task status = %s, want InProgress", got)
	}
	if got := h.Balance(gaiatest.Addr(0x20)); !got.IsZero() {
		t.Fatalf("operator was paid %s despite rollback", got)
	}
	votes, err := core.Votes(ctx, id)
	if err != nil {
		t.Fatalf("Votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("recorded votes = %d, want only the first", len(votes))
	}

	// The retried vote succeeds once the fault clears.
	fault.SetCreditBalanceFn = nil
	tally, err := core.CastVote(ctx, types.VoteParams{TaskID: id, Validator: gaiatest.Addr(2), Decision: types.DecisionApprove})
	if err != nil {
		t.Fatalf("retried vote: %v", err)
	}
	if !tally.Finalized || tally.Decision != types.DecisionApprove {
		t.Fatalf("retried vote should finalize: %+v", tally)
	}
	if got := h.Task(id).Status; got != types.StatusCompleted {
		t.Fatalf("task status = %s, want Completed", got)
	}
}

func TestConcurrentFundingNeverOvershoots(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	ctx := context.Background()
	id := proposedTask(h)

	const funders = 32
	for i := 0; i < funders; i++ {
		h.Deposit(gaiatest.Addr(0x40+byte(i)), types.Tokens(10))
	}

	// 32 funders racing 10 tokens each at a 100-token target: the
	// clamp policy admits exactly 100 in total, rejecting the rest.
	var wg sync.WaitGroup
	for i := 0; i < funders; i++ {
		wg.Add(1)
		go func(funder types.Address) {
			defer wg.Done()
			_, err := core.Fund(ctx, id, funder, types.Tokens(10))
			if err != nil && !gaia.IsCode(err, gaia.CodeExceedsTarget) {
				t.Errorf("Fund: %v", err)
			}
		}(gaiatest.Addr(0x40 + byte(i)))
	}
	wg.Wait()

	task := h.Task(id)
	if !task.FundedAmount.Equal(types.Tokens(100)) {
		t.Fatalf("funded = %s, want exactly 100 tokens", task.FundedAmount)
	}
	if task.Status != types.StatusFunded {
		t.Fatalf("status = %s, want Funded", task.Status)
	}

	// Conservation: escrow plus remaining funder balances equals the
	// 320 tokens deposited.
	total := task.FundedAmount
	for i := 0; i < funders; i++ {
		total = total.Add(h.Balance(gaiatest.Addr(0x40 + byte(i))))
	}
	if !total.Equal(types.Tokens(320)) {
		t.Fatalf("conservation violated: %s accounted, want 320 tokens", total)
	}
}

func TestVoteAfterDeadlineRefused(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	spec := standardSpec()
	spec.Deadline = time.Hour
	id := h.InProgressTask(spec)

	clock.Advance(2 * time.Hour)
	_, err := core.CastVote(context.Background(), types.VoteParams{
		TaskID: id, Validator: gaiatest.Addr(1), Decision: types.DecisionApprove,
	})
	if !gaia.IsCode(err, gaia.CodeTaskNotInProgress) {
		t.Fatalf("got %v, want CodeTaskNotInProgress", err)
	}
}

func TestFinalizeExpiredSkipsSettledTasks(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	ctx := context.Background()

	// One task completes before its deadline, one lingers.
	spec := standardSpec()
	spec.Deadline = time.Hour
	done := h.InProgressTask(spec)
	h.Vote(done, gaiatest.Addr(1), types.DecisionApprove)
	h.Vote(done, gaiatest.Addr(2), types.DecisionApprove)

	spec = standardSpec()
	spec.Deadline = time.Hour
	spec.Funders = []types.Address{gaiatest.Addr(0x31)}
	stale := h.InProgressTask(spec)

	clock.Advance(2 * time.Hour)
	finalized, err := core.FinalizeExpired(ctx)
	if err != nil {
		t.Fatalf("FinalizeExpired: %v", err)
	}
	if len(finalized) != 1 || finalized[0] != stale {
		t.Fatalf("finalized = %v, want only task %d", finalized, stale)
	}
	if got := h.Task(done).Status; got != types.StatusCompleted {
		t.Fatalf("completed task disturbed: %s", got)
	}
	if got := h.Task(stale).Status; got != types.StatusRejected {
		t.Fatalf("stale task = %s, want Rejected", got)
	}

	// The sweep is idempotent.
	finalized, err = core.FinalizeExpired(ctx)
	if err != nil {
		t.Fatalf("second FinalizeExpired: %v", err)
	}
	if len(finalized) != 0 {
		t.Fatalf("second sweep finalized %v, want nothing", finalized)
	}
}

func TestEventSequence(t *testing.T) {
	clock := gaiatest.NewClock()
	var kinds []string
	core, err := protocol.New(context.Background(), store.NewMemoryStore(), rules.FakeRules(),
		protocol.WithClock(clock.Now),
		protocol.WithEventSink(func(e types.Event) { kinds = append(kinds, e.Kind) }))
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}
	h := gaiatest.NewHarness(t, core, clock)
	id := h.InProgressTask(standardSpec())
	h.Vote(id, gaiatest.Addr(1), types.DecisionApprove)
	h.Vote(id, gaiatest.Addr(2), types.DecisionApprove)

	want := []string{
		types.EventTaskCreated,
		types.EventDeposit,
		types.EventContribution,
		types.EventTaskTransition, // Proposed -> Funded
		types.EventDeposit,
		types.EventCollateralPost,
		types.EventTaskTransition, // Funded -> InProgress
		types.EventVoteCast,
		types.EventVoteCast,
		types.EventEscrowReleased,
		types.EventCollateralFree,
		types.EventCreditsMinted,
		types.EventTaskTransition, // InProgress -> Verified
		types.EventTaskTransition, // Verified -> Completed
		types.EventFinalized,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (full: %v)", i, kinds[i], want[i], kinds)
		}
	}
}

func TestMintSplitsAcrossFunders(t *testing.T) {
	clock := gaiatest.NewClock()
	core := newEngine(t, clock, rules.FakeRules())
	h := gaiatest.NewHarness(t, core, clock)
	spec := standardSpec()
	spec.Funders = []types.Address{gaiatest.Addr(0x30), gaiatest.Addr(0x31), gaiatest.Addr(0x32)}
	id := h.InProgressTask(spec)
	h.Vote(id, gaiatest.Addr(1), types.DecisionApprove)
	h.Vote(id, gaiatest.Addr(2), types.DecisionApprove)

	// 50 tokens minted. Operator takes 25%; three near-equal funders
	// split the rest. The bps rounding leftovers land on the largest
	// contributor, so every credit is accounted for.
	total := types.NewAmount(0)
	total = total.Add(h.Credits(gaiatest.Addr(0x20), id).Tradable)
	for _, f := range spec.Funders {
		total = total.Add(h.Credits(f, id).Tradable)
	}
	if !total.Equal(types.Tokens(50)) {
		t.Fatalf("minted total = %s, want exactly 50 tokens", total)
	}
}
