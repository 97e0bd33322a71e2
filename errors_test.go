package gaia

import (
	"errors"
	"fmt"
	"testing"

	"github.com/arko05roy/gaia-core/types"
)

func TestErrorFormatting(t *testing.T) {
	err := Errf(CodeDuplicateVote, 7, "validator %d already voted", 3)
	want := "DuplicateVote: task 7: validator 3 already voted"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	// Task id zero is omitted.
	err = Errf(CodeInvalidParameters, 0, "bad amount")
	if err.Error() != "InvalidParameters: bad amount" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	direct := Errf(CodeUnknownTask, 1, "no such task")
	if CodeOf(direct) != CodeUnknownTask {
		t.Errorf("direct: got %s", CodeOf(direct))
	}

	wrapped := fmt.Errorf("command failed: %w", direct)
	if CodeOf(wrapped) != CodeUnknownTask {
		t.Errorf("wrapped: got %s", CodeOf(wrapped))
	}

	if CodeOf(errors.New("plain")) != 0 {
		t.Error("plain errors should carry no code")
	}
	if CodeOf(nil) != 0 {
		t.Error("nil should carry no code")
	}
}

func TestTransitionErrorCode(t *testing.T) {
	err := &TransitionError{TaskID: 4, From: types.StatusProposed, To: types.StatusCompleted}
	if !IsCode(err, CodeInvalidStateTransition) {
		t.Fatal("TransitionError should map to CodeInvalidStateTransition")
	}
	want := "InvalidStateTransition: task 4: Proposed -> Completed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapSettlementKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapSettlement(9, cause)

	if !IsCode(err, CodeSettlementFailed) {
		t.Fatal("wrapped settlement error should carry CodeSettlementFailed")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should survive unwrapping")
	}
	if err.TaskID != 9 {
		t.Errorf("task id = %d, want 9", err.TaskID)
	}
}
