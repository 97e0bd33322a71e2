package protocol

import (
	"context"
	"strings"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// TaskRegistry owns task records and guards every lifecycle
// transition. All status changes in the protocol flow through
// Transition, so the successor table in types is the single source
// of truth for the state machine.
type TaskRegistry struct{}

// Create validates the proposal and registers a new task in the
// Proposed state.
func (TaskRegistry) Create(ctx context.Context, tx store.Tx, now time.Time, p types.CreateTaskParams, ev *eventLog) (types.Task, error) {
	switch {
	case p.Proposer.IsZero():
		return types.Task{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "proposer address is zero")
	case strings.TrimSpace(p.Description) == "":
		return types.Task{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "description is empty")
	case !p.EstimatedCost.IsPositive():
		return types.Task{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "estimated cost must be positive")
	case !p.ExpectedImpact.IsPositive():
		return types.Task{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "expected impact must be positive")
	case !types.TimeToTimestamp(now).Before(p.Deadline):
		return types.Task{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "deadline is not in the future")
	}

	task := types.Task{
		Proposer:          p.Proposer,
		Description:       p.Description,
		Location:          p.Location,
		EstimatedCost:     p.EstimatedCost,
		ExpectedImpact:    p.ExpectedImpact,
		ProofRequirements: p.ProofRequirements,
		Deadline:          p.Deadline,
		EvidenceHash:      p.EvidenceHash,
		Status:            types.StatusProposed,
		FundedAmount:      types.NewAmount(0),
		CollateralAmount:  types.NewAmount(0),
		CreatedAt:         types.TimeToTimestamp(now),
	}
	id, err := tx.CreateTask(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	task.ID = id

	ev.emit(types.Event{Kind: types.EventTaskCreated}.
		Attr("task", u64str(id)).
		Attr("proposer", p.Proposer.Hex()).
		Attr("cost", p.EstimatedCost.String()).
		Attr("impact", p.ExpectedImpact.String()))
	return task, nil
}

// Transition moves the task to next, rejecting edges absent from the
// successor table, and persists the updated record.
func (TaskRegistry) Transition(ctx context.Context, tx store.Tx, task *types.Task, next types.Status, ev *eventLog) error {
	if !task.Status.CanTransitionTo(next) {
		return &gaia.TransitionError{TaskID: task.ID, From: task.Status, To: next}
	}
	prev := task.Status
	task.Status = next
	if err := tx.PutTask(ctx, *task); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventTaskTransition}.
		Attr("task", u64str(task.ID)).
		Attr("from", prev.String()).
		Attr("to", next.String()))
	return nil
}

// AssignOperator binds an operator to a fully funded task and starts
// the work phase. The operator must already hold locked collateral
// for the task, and the current validator set is captured so votes
// are weighed against the membership that existed when work began.
func (r TaskRegistry) AssignOperator(ctx context.Context, tx store.Tx, taskID uint64, operator types.Address, ev *eventLog) error {
	task, err := loadTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if operator.IsZero() {
		return gaia.Errf(gaia.CodeInvalidParameters, taskID, "operator address is zero")
	}
	if task.Status != types.StatusFunded {
		return &gaia.TransitionError{TaskID: taskID, From: task.Status, To: types.StatusInProgress}
	}
	col, ok, err := tx.GetCollateral(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok || !col.Locked {
		return gaia.Errf(gaia.CodeInvalidStateTransition, taskID, "no locked collateral for task")
	}
	if col.Operator != operator {
		return gaia.Errf(gaia.CodeNotAuthorized, taskID,
			"collateral was posted by %s, not %s", col.Operator, operator)
	}
	set, err := tx.CurrentValidatorSet(ctx)
	if err != nil {
		return err
	}
	if len(set.Members) == 0 {
		return gaia.Errf(gaia.CodeInvalidStateTransition, taskID, "validator set is empty")
	}

	task.Operator = operator
	task.ValidatorSetVersion = set.Version
	return r.Transition(ctx, tx, &task, types.StatusInProgress, ev)
}

// loadTask fetches a task or reports CodeUnknownTask.
func loadTask(ctx context.Context, tx store.Tx, id uint64) (types.Task, error) {
	task, ok, err := tx.GetTask(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !ok {
		return types.Task{}, gaia.Errf(gaia.CodeUnknownTask, id, "no such task")
	}
	return task, nil
}
