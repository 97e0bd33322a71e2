package gaia

import (
	"errors"
	"fmt"

	"github.com/arko05roy/gaia-core/types"
)

// Code classifies protocol errors so callers can decide whether to
// correct input, re-query state, or retry.
type Code uint32

const (
	// CodeInvalidParameters: malformed input; recoverable by
	// correcting the call.
	CodeInvalidParameters Code = iota + 1
	// CodeUnknownTask: no task with that id exists.
	CodeUnknownTask
	// CodeInvalidStateTransition: lifecycle violation; re-query
	// state before retrying.
	CodeInvalidStateTransition
	// CodeTaskNotFundable: funding attempted outside
	// Proposed/Funded.
	CodeTaskNotFundable
	// CodeTaskNotInProgress: vote attempted outside InProgress.
	CodeTaskNotInProgress
	// CodeNotAValidator: caller is not in the task's validator set.
	CodeNotAValidator
	// CodeDuplicateVote: the validator already voted on this task.
	CodeDuplicateVote
	// CodeExceedsTarget: contribution would push funding past the
	// estimated cost under the reject policy.
	CodeExceedsTarget
	// CodeInsufficientBalance: accounting violation; adjust amount.
	CodeInsufficientBalance
	// CodeInvalidShareSplit: recipient shares do not sum to 100%.
	CodeInvalidShareSplit
	// CodeDoubleRelease: escrow release or refund attempted twice.
	CodeDoubleRelease
	// CodeAlreadyMinted: credits for the task were already minted.
	CodeAlreadyMinted
	// CodeCollateralExists: an active collateral is already posted.
	CodeCollateralExists
	// CodeOrderInactive: the order was cancelled or fully filled.
	CodeOrderInactive
	// CodeAmountExceedsAvailable: fill larger than the order's
	// remaining amount.
	CodeAmountExceedsAvailable
	// CodeNotAuthorized: caller lacks authority for the operation.
	CodeNotAuthorized
	// CodeSettlementFailed: a multi-step settlement aborted; no
	// effect was applied and the task remains retriable.
	CodeSettlementFailed
)

func (c Code) String() string {
	switch c {
	case CodeInvalidParameters:
		return "InvalidParameters"
	case CodeUnknownTask:
		return "UnknownTask"
	case CodeInvalidStateTransition:
		return "InvalidStateTransition"
	case CodeTaskNotFundable:
		return "TaskNotFundable"
	case CodeTaskNotInProgress:
		return "TaskNotInProgress"
	case CodeNotAValidator:
		return "NotAValidator"
	case CodeDuplicateVote:
		return "DuplicateVote"
	case CodeExceedsTarget:
		return "ExceedsTarget"
	case CodeInsufficientBalance:
		return "InsufficientBalance"
	case CodeInvalidShareSplit:
		return "InvalidShareSplit"
	case CodeDoubleRelease:
		return "DoubleRelease"
	case CodeAlreadyMinted:
		return "AlreadyMinted"
	case CodeCollateralExists:
		return "CollateralExists"
	case CodeOrderInactive:
		return "OrderInactive"
	case CodeAmountExceedsAvailable:
		return "AmountExceedsAvailable"
	case CodeNotAuthorized:
		return "NotAuthorized"
	case CodeSettlementFailed:
		return "SettlementFailed"
	default:
		return fmt.Sprintf("Code(%d)", uint32(c))
	}
}

// Error is a classified protocol error carrying enough context
// (task id, detail) for the caller to decide whether to retry.
type Error struct {
	Code   Code
	TaskID uint64 // 0 when not task-scoped
	Detail string
	Err    error // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.TaskID != 0 {
		msg = fmt.Sprintf("%s: task %d", msg, e.TaskID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errf creates a protocol error with a formatted detail message.
func Errf(code Code, taskID uint64, format string, args ...any) *Error {
	return &Error{Code: code, TaskID: taskID, Detail: fmt.Sprintf(format, args...)}
}

// WrapSettlement wraps a sub-step failure of a multi-step settlement.
// The settlement was rolled back; the task is unchanged.
func WrapSettlement(taskID uint64, err error) *Error {
	return &Error{Code: CodeSettlementFailed, TaskID: taskID, Err: err}
}

// TransitionError reports an out-of-order lifecycle transition.
// The attempted transition was not applied; all state is unchanged.
type TransitionError struct {
	TaskID uint64
	From   types.Status
	To     types.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("InvalidStateTransition: task %d: %s -> %s", e.TaskID, e.From, e.To)
}

// CodeOf extracts the protocol code from an error chain, or 0 if the
// error is not a protocol error.
func CodeOf(err error) Code {
	var te *TransitionError
	if errors.As(err, &te) {
		return CodeInvalidStateTransition
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsCode reports whether err carries the given protocol code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
