package protocol

import (
	"context"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// CollateralManager locks operator stakes against tasks and resolves
// them exactly once: returned on approval, slashed to the treasury on
// rejection.
type CollateralManager struct {
	rules rules.ProtocolRules
}

// Post locks collateral for a fully funded task. The amount must meet
// the configured minimum fraction of the estimated cost, and only one
// collateral record may exist per task.
func (c CollateralManager) Post(ctx context.Context, tx store.Tx, taskID uint64, operator types.Address, amount types.Amount, ev *eventLog) error {
	if operator.IsZero() || !amount.IsPositive() {
		return gaia.Errf(gaia.CodeInvalidParameters, taskID,
			"collateral requires an operator and a positive amount")
	}
	task, err := loadTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if task.Status != types.StatusFunded {
		return gaia.Errf(gaia.CodeInvalidStateTransition, taskID,
			"collateral can only be posted while the task is Funded, not %s", task.Status)
	}
	if _, exists, err := tx.GetCollateral(ctx, taskID); err != nil {
		return err
	} else if exists {
		return gaia.Errf(gaia.CodeCollateralExists, taskID, "collateral already posted")
	}
	minimum := task.EstimatedCost.MulBps(c.rules.Collateral.MinBps)
	if amount.LT(minimum) {
		return gaia.Errf(gaia.CodeInvalidParameters, taskID,
			"collateral %s is below the minimum %s", amount, minimum)
	}

	if err := debitSettlement(ctx, tx, operator, amount); err != nil {
		return err
	}
	err = tx.PutCollateral(ctx, types.Collateral{
		TaskID:   taskID,
		Operator: operator,
		Amount:   amount,
		Locked:   true,
	})
	if err != nil {
		return err
	}
	task.CollateralAmount = amount
	if err := tx.PutTask(ctx, task); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventCollateralPost}.
		Attr("task", u64str(taskID)).
		Attr("operator", operator.Hex()).
		Attr("amount", amount.String()))
	return nil
}

// Return releases the locked collateral back to the operator.
func (c CollateralManager) Return(ctx context.Context, tx store.Tx, taskID uint64, ev *eventLog) error {
	col, err := c.take(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if err := creditSettlement(ctx, tx, col.Operator, col.Amount); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventCollateralFree}.
		Attr("task", u64str(taskID)).
		Attr("operator", col.Operator.Hex()).
		Attr("amount", col.Amount.String()))
	return nil
}

// Slash forfeits the locked collateral to the treasury.
func (c CollateralManager) Slash(ctx context.Context, tx store.Tx, taskID uint64, ev *eventLog) error {
	col, err := c.take(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if err := creditSettlement(ctx, tx, c.rules.Settlement.Treasury, col.Amount); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventCollateralSlash}.
		Attr("task", u64str(taskID)).
		Attr("operator", col.Operator.Hex()).
		Attr("amount", col.Amount.String()))
	return nil
}

// take marks the collateral resolved and hands back the record.
// Resolution is one-shot: a second Return or Slash fails here.
func (c CollateralManager) take(ctx context.Context, tx store.Tx, taskID uint64) (types.Collateral, error) {
	col, ok, err := tx.GetCollateral(ctx, taskID)
	if err != nil {
		return types.Collateral{}, err
	}
	if !ok {
		return types.Collateral{}, gaia.Errf(gaia.CodeInvalidStateTransition, taskID, "no collateral for task")
	}
	if col.Resolved {
		return types.Collateral{}, gaia.Errf(gaia.CodeInvalidStateTransition, taskID, "collateral already resolved")
	}
	col.Locked = false
	col.Resolved = true
	if err := tx.PutCollateral(ctx, col); err != nil {
		return types.Collateral{}, err
	}
	return col, nil
}
