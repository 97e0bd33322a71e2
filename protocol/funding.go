package protocol

import (
	"context"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// FundingPool escrows funder contributions against a task and later
// disburses the escrow: to the operator and treasury on approval, or
// back to the funders on rejection. Escrowed value only ever leaves
// through exactly one of Release or Refund; the task record carries
// the flags that make both idempotent.
type FundingPool struct {
	rules rules.ProtocolRules
}

// Fund debits the funder's settlement balance and records a
// contribution. When the running total reaches the estimated cost the
// task transitions to Funded. A contribution that would overshoot the
// target is clamped or rejected per the deployment's over-target
// policy.
func (p FundingPool) Fund(ctx context.Context, tx store.Tx, registry *TaskRegistry, taskID uint64, funder types.Address, amount types.Amount, now time.Time, ev *eventLog) (types.FundingProgress, error) {
	if funder.IsZero() || !amount.IsPositive() {
		return types.FundingProgress{}, gaia.Errf(gaia.CodeInvalidParameters, taskID,
			"funding requires a funder and a positive amount")
	}
	task, err := loadTask(ctx, tx, taskID)
	if err != nil {
		return types.FundingProgress{}, err
	}
	if task.Status != types.StatusProposed && task.Status != types.StatusFunded {
		return types.FundingProgress{}, gaia.Errf(gaia.CodeTaskNotFundable, taskID,
			"task is %s", task.Status)
	}

	remaining := task.EstimatedCost.Sub(task.FundedAmount)
	contribution := amount
	if amount.Cmp(remaining) > 0 {
		if p.rules.Funding.OverTarget == rules.OverTargetReject || remaining.IsZero() {
			return types.FundingProgress{}, gaia.Errf(gaia.CodeExceedsTarget, taskID,
				"contribution %s exceeds remaining target %s", amount, remaining)
		}
		contribution = remaining
	}

	if err := debitSettlement(ctx, tx, funder, contribution); err != nil {
		return types.FundingProgress{}, err
	}
	err = tx.AppendContribution(ctx, types.FundingContribution{
		TaskID:    taskID,
		Funder:    funder,
		Amount:    contribution,
		Timestamp: types.TimeToTimestamp(now),
	})
	if err != nil {
		return types.FundingProgress{}, err
	}

	task.FundedAmount = task.FundedAmount.Add(contribution)
	ev.emit(types.Event{Kind: types.EventContribution}.
		Attr("task", u64str(taskID)).
		Attr("funder", funder.Hex()).
		Attr("amount", contribution.String()))

	if task.FundedAmount.GTE(task.EstimatedCost) && task.Status == types.StatusProposed {
		if err := registry.Transition(ctx, tx, &task, types.StatusFunded, ev); err != nil {
			return types.FundingProgress{}, err
		}
	} else if err := tx.PutTask(ctx, task); err != nil {
		return types.FundingProgress{}, err
	}

	return types.FundingProgress{
		TaskID: taskID,
		Funded: task.FundedAmount,
		Target: task.EstimatedCost,
		Status: task.Status,
	}, nil
}

// Release pays out the escrow after a successful verification: the
// operator receives the configured share of the funded amount and the
// treasury keeps the rest. The task's Released flag makes a second
// call fail rather than double-pay.
func (p FundingPool) Release(ctx context.Context, tx store.Tx, task *types.Task, ev *eventLog) error {
	if task.Released || task.Refunded {
		return gaia.Errf(gaia.CodeDoubleRelease, task.ID, "escrow already disbursed")
	}
	operatorShare := task.FundedAmount.MulBps(p.rules.Settlement.OperatorShareBps)
	treasuryShare := task.FundedAmount.Sub(operatorShare)

	if err := creditSettlement(ctx, tx, task.Operator, operatorShare); err != nil {
		return err
	}
	if treasuryShare.IsPositive() {
		if err := creditSettlement(ctx, tx, p.rules.Settlement.Treasury, treasuryShare); err != nil {
			return err
		}
	}
	task.Released = true
	ev.emit(types.Event{Kind: types.EventEscrowReleased}.
		Attr("task", u64str(task.ID)).
		Attr("operator", task.Operator.Hex()).
		Attr("operator_share", operatorShare.String()).
		Attr("treasury_share", treasuryShare.String()))
	return nil
}

// Refund returns every recorded contribution to its funder after a
// rejection. The escrow is never partially spent before this point,
// so each funder receives exactly what they put in.
func (p FundingPool) Refund(ctx context.Context, tx store.Tx, task *types.Task, ev *eventLog) error {
	if task.Released || task.Refunded {
		return gaia.Errf(gaia.CodeDoubleRelease, task.ID, "escrow already disbursed")
	}
	contributions, err := tx.ListContributions(ctx, task.ID)
	if err != nil {
		return err
	}
	for _, c := range contributions {
		if err := creditSettlement(ctx, tx, c.Funder, c.Amount); err != nil {
			return err
		}
	}
	task.Refunded = true
	ev.emit(types.Event{Kind: types.EventEscrowRefunded}.
		Attr("task", u64str(task.ID)).
		Attr("amount", task.FundedAmount.String()))
	return nil
}
