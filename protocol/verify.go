package protocol

import (
	"context"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// VerificationManager runs the quorum vote on in-progress tasks and
// settles the result. Votes are weighed against the validator set
// captured when the operator was assigned, so later membership
// changes cannot tip a vote already underway.
//
// Finalization is part of the same substrate transaction as the vote
// that triggers it. If any settlement step fails, the transaction
// rolls back, vote included, the task stays
// InProgress, and the validator can resubmit.
type VerificationManager struct {
	rules      rules.ProtocolRules
	registry   *TaskRegistry
	pool       *FundingPool
	collateral *CollateralManager
	minter     *CreditMinter
}

// CastVote records a validator's decision and, when either side
// reaches quorum, finalizes the task. Votes at or after the deadline
// are refused; FinalizeDue settles overdue tasks.
func (v VerificationManager) CastVote(ctx context.Context, tx store.Tx, p types.VoteParams, now time.Time, ev *eventLog) (types.Tally, error) {
	if !p.Decision.Valid() {
		return types.Tally{}, gaia.Errf(gaia.CodeInvalidParameters, p.TaskID, "unknown decision %d", p.Decision)
	}
	if p.ConfidenceBps > 10_000 {
		return types.Tally{}, gaia.Errf(gaia.CodeInvalidParameters, p.TaskID, "confidence above 10000 bps")
	}
	task, err := loadTask(ctx, tx, p.TaskID)
	if err != nil {
		return types.Tally{}, err
	}
	if task.Status != types.StatusInProgress {
		return types.Tally{}, gaia.Errf(gaia.CodeTaskNotInProgress, p.TaskID, "task is %s", task.Status)
	}
	if !types.TimeToTimestamp(now).Before(task.Deadline) {
		return types.Tally{}, gaia.Errf(gaia.CodeTaskNotInProgress, p.TaskID, "voting deadline elapsed")
	}
	set, err := v.votingSet(ctx, tx, task)
	if err != nil {
		return types.Tally{}, err
	}
	if set.WeightOf(p.Validator) == 0 {
		return types.Tally{}, gaia.Errf(gaia.CodeNotAValidator, p.TaskID,
			"%s is not in validator set version %d", p.Validator, set.Version)
	}

	votes, err := tx.ListVotes(ctx, p.TaskID)
	if err != nil {
		return types.Tally{}, err
	}
	for _, prior := range votes {
		if prior.Validator == p.Validator {
			return types.Tally{}, gaia.Errf(gaia.CodeDuplicateVote, p.TaskID,
				"%s already voted", p.Validator)
		}
	}

	vote := types.VerificationVote{
		TaskID:        p.TaskID,
		Validator:     p.Validator,
		Decision:      p.Decision,
		ConfidenceBps: p.ConfidenceBps,
		Justification: p.Justification,
		Timestamp:     types.TimeToTimestamp(now),
	}
	if err := tx.AppendVote(ctx, vote); err != nil {
		return types.Tally{}, err
	}
	votes = append(votes, vote)
	ev.emit(types.Event{Kind: types.EventVoteCast}.
		Attr("task", u64str(p.TaskID)).
		Attr("validator", p.Validator.Hex()).
		Attr("decision", p.Decision.String()))

	tally := tallyVotes(votes, set, v.rules)
	switch {
	case tally.ApproveWeight >= tally.QuorumWeight:
		if err := v.finalize(ctx, tx, &task, votes, tally, types.DecisionApprove, now, ev); err != nil {
			return types.Tally{}, gaia.WrapSettlement(p.TaskID, err)
		}
		tally.Finalized, tally.Decision = true, types.DecisionApprove
	case tally.RejectWeight >= tally.QuorumWeight:
		if err := v.finalize(ctx, tx, &task, votes, tally, types.DecisionReject, now, ev); err != nil {
			return types.Tally{}, gaia.WrapSettlement(p.TaskID, err)
		}
		tally.Finalized, tally.Decision = true, types.DecisionReject
	}
	return tally, nil
}

// FinalizeDue rejects a task whose deadline has passed without a
// quorum-triggered finalization. A vote reaching quorum finalizes in
// its own transaction, so by construction a task that is still
// InProgress past its deadline never reached quorum: it rejects,
// ties included.
func (v VerificationManager) FinalizeDue(ctx context.Context, tx store.Tx, taskID uint64, now time.Time, ev *eventLog) error {
	task, err := loadTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if task.Status != types.StatusInProgress {
		return nil
	}
	if types.TimeToTimestamp(now).Before(task.Deadline) {
		return nil
	}
	set, err := v.votingSet(ctx, tx, task)
	if err != nil {
		return err
	}
	votes, err := tx.ListVotes(ctx, taskID)
	if err != nil {
		return err
	}
	tally := tallyVotes(votes, set, v.rules)
	if err := v.finalize(ctx, tx, &task, votes, tally, types.DecisionReject, now, ev); err != nil {
		return gaia.WrapSettlement(taskID, err)
	}
	return nil
}

// finalize settles the task in the caller's transaction: escrow,
// collateral, credits and the lifecycle transition succeed or fail as
// one unit.
func (v VerificationManager) finalize(ctx context.Context, tx store.Tx, task *types.Task, votes []types.VerificationVote, tally types.Tally, decision types.Decision, now time.Time, ev *eventLog) error {
	if decision == types.DecisionApprove {
		if err := v.pool.Release(ctx, tx, task, ev); err != nil {
			return err
		}
		if err := v.collateral.Return(ctx, tx, task.ID, ev); err != nil {
			return err
		}
		if err := v.minter.Mint(ctx, tx, task, ev); err != nil {
			return err
		}
		if err := v.registry.Transition(ctx, tx, task, types.StatusVerified, ev); err != nil {
			return err
		}
		if err := v.registry.Transition(ctx, tx, task, types.StatusCompleted, ev); err != nil {
			return err
		}
	} else {
		if err := v.pool.Refund(ctx, tx, task, ev); err != nil {
			return err
		}
		if err := v.collateral.Slash(ctx, tx, task.ID, ev); err != nil {
			return err
		}
		if err := v.registry.Transition(ctx, tx, task, types.StatusRejected, ev); err != nil {
			return err
		}
	}

	err := tx.PutOutcome(ctx, types.VerificationOutcome{
		TaskID:        task.ID,
		Decision:      decision,
		ApproveWeight: tally.ApproveWeight,
		RejectWeight:  tally.RejectWeight,
		FinalizedAt:   types.TimeToTimestamp(now),
	})
	if err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventFinalized}.
		Attr("task", u64str(task.ID)).
		Attr("decision", decision.String()).
		Attr("approve_weight", u64str(tally.ApproveWeight)).
		Attr("reject_weight", u64str(tally.RejectWeight)).
		Attr("votes", u64str(uint64(len(votes)))))
	return nil
}

// votingSet resolves the validator set version the task was assigned
// under.
func (v VerificationManager) votingSet(ctx context.Context, tx store.Tx, task types.Task) (types.ValidatorSet, error) {
	set, ok, err := tx.ValidatorSetAt(ctx, task.ValidatorSetVersion)
	if err != nil {
		return types.ValidatorSet{}, err
	}
	if !ok {
		return types.ValidatorSet{}, gaia.Errf(gaia.CodeInvalidStateTransition, task.ID,
			"validator set version %d not found", task.ValidatorSetVersion)
	}
	return set, nil
}

// tallyVotes sums vote weights against the given set. Votes from
// addresses no longer carrying weight in the set count as zero.
func tallyVotes(votes []types.VerificationVote, set types.ValidatorSet, r rules.ProtocolRules) types.Tally {
	var tally types.Tally
	for _, vote := range votes {
		weight := set.WeightOf(vote.Validator)
		switch vote.Decision {
		case types.DecisionApprove:
			tally.ApproveWeight += weight
		case types.DecisionReject:
			tally.RejectWeight += weight
		}
	}
	if len(votes) > 0 {
		tally.TaskID = votes[0].TaskID
	}
	tally.QuorumWeight = r.QuorumWeight(set.TotalWeight())
	return tally
}

// AddValidator installs a new validator set version with the member
// added or its weight replaced. Only the governance authority may
// change membership.
func (v VerificationManager) AddValidator(ctx context.Context, tx store.Tx, authority, validator types.Address, weight uint64, ev *eventLog) error {
	if err := v.authorize(authority); err != nil {
		return err
	}
	if validator.IsZero() || weight == 0 {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "validator requires an address and a positive weight")
	}
	cur, err := tx.CurrentValidatorSet(ctx)
	if err != nil {
		return err
	}
	next := types.ValidatorSet{Version: cur.Version + 1}
	replaced := false
	for _, m := range cur.Members {
		if m.Address == validator {
			m.Weight = weight
			replaced = true
		}
		next.Members = append(next.Members, m)
	}
	if !replaced {
		next.Members = append(next.Members, types.Validator{Address: validator, Weight: weight})
	}
	if err := tx.PutValidatorSet(ctx, next); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventValidatorChange}.
		Attr("op", "add").
		Attr("validator", validator.Hex()).
		Attr("weight", u64str(weight)).
		Attr("version", u64str(next.Version)))
	return nil
}

// RemoveValidator installs a new validator set version without the
// member.
func (v VerificationManager) RemoveValidator(ctx context.Context, tx store.Tx, authority, validator types.Address, ev *eventLog) error {
	if err := v.authorize(authority); err != nil {
		return err
	}
	cur, err := tx.CurrentValidatorSet(ctx)
	if err != nil {
		return err
	}
	if !cur.Contains(validator) {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "%s is not a validator", validator)
	}
	next := types.ValidatorSet{Version: cur.Version + 1}
	for _, m := range cur.Members {
		if m.Address != validator {
			next.Members = append(next.Members, m)
		}
	}
	if err := tx.PutValidatorSet(ctx, next); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventValidatorChange}.
		Attr("op", "remove").
		Attr("validator", validator.Hex()).
		Attr("version", u64str(next.Version)))
	return nil
}

func (v VerificationManager) authorize(authority types.Address) error {
	// A zero configured authority disables governance entirely; a
	// zero-address caller must never match it.
	if v.rules.Governance.Authority.IsZero() {
		return gaia.Errf(gaia.CodeNotAuthorized, 0, "governance is disabled: no authority configured")
	}
	if authority != v.rules.Governance.Authority {
		return gaia.Errf(gaia.CodeNotAuthorized, 0, "%s is not the governance authority", authority)
	}
	return nil
}
