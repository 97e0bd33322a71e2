package store

import (
	"context"
	"errors"
	"testing"

	"github.com/arko05roy/gaia-core/types"
)

func addr(n byte) types.Address {
	var a types.Address
	a[0] = n
	return a
}

func TestMemoryStoreAtomicRollback(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	boom := errors.New("no")
	err := st.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.CreateTask(ctx, types.Task{Description: "a"}); err != nil {
			return err
		}
		if err := tx.SetSettlementBalance(ctx, addr(1), types.Tokens(5)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want %v", err, boom)
	}

	// Nothing committed, and the id sequence did not advance.
	if tasks, _ := st.ListTasks(ctx, types.TaskFilter{}); len(tasks) != 0 {
		t.Fatalf("rolled-back task visible: %v", tasks)
	}
	if bal, _ := st.GetSettlementBalance(ctx, addr(1)); !bal.IsZero() {
		t.Fatalf("rolled-back balance visible: %s", bal)
	}
	var id uint64
	err = st.Atomic(ctx, func(tx Tx) error {
		var err error
		id, err = tx.CreateTask(ctx, types.Task{Description: "b"})
		return err
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}
	if id != 1 {
		t.Fatalf("first committed task id = %d, want 1", id)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.Atomic(ctx, func(tx Tx) error {
		return tx.SetSettlementBalance(ctx, addr(1), types.Tokens(1))
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	// A reader holding a snapshot from before a write keeps seeing
	// the old value.
	err = st.Atomic(ctx, func(tx Tx) error {
		if err := tx.SetSettlementBalance(ctx, addr(1), types.Tokens(2)); err != nil {
			return err
		}
		// Uncommitted write is visible inside the transaction.
		bal, err := tx.GetSettlementBalance(ctx, addr(1))
		if err != nil {
			return err
		}
		if !bal.Equal(types.Tokens(2)) {
			t.Errorf("in-tx balance = %s, want 2 tokens", bal)
		}
		// But not outside it.
		out, err := st.GetSettlementBalance(ctx, addr(1))
		if err != nil {
			return err
		}
		if !out.Equal(types.Tokens(1)) {
			t.Errorf("outside balance = %s, want 1 token", out)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	if bal, _ := st.GetSettlementBalance(ctx, addr(1)); !bal.Equal(types.Tokens(2)) {
		t.Fatalf("committed balance = %s, want 2 tokens", bal)
	}
}

func TestMemoryStoreFiltersAndOrdering(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	proposed := types.StatusProposed
	err := st.Atomic(ctx, func(tx Tx) error {
		for i := byte(1); i <= 3; i++ {
			task := types.Task{
				Proposer: addr(i),
				Status:   types.StatusProposed,
				Deadline: types.Timestamp{Seconds: int64(i) * 100},
			}
			if i == 2 {
				task.Status = types.StatusCompleted
			}
			if _, err := tx.CreateTask(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	tasks, err := st.ListTasks(ctx, types.TaskFilter{Status: &proposed})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].ID != 3 {
		t.Fatalf("filtered tasks = %+v, want ids [1 3]", tasks)
	}

	due := types.Timestamp{Seconds: 250}
	tasks, err = st.ListTasks(ctx, types.TaskFilter{Status: &proposed, DueBefore: &due})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 1 {
		t.Fatalf("due tasks = %+v, want id 1 only", tasks)
	}
}

func TestMemoryStoreValidatorSetVersions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	for v := uint64(1); v <= 3; v++ {
		set := types.ValidatorSet{
			Version: v,
			Members: []types.Validator{{Address: addr(byte(v)), Weight: v}},
		}
		if err := st.Atomic(ctx, func(tx Tx) error { return tx.PutValidatorSet(ctx, set) }); err != nil {
			t.Fatalf("PutValidatorSet v%d: %v", v, err)
		}
	}

	cur, err := st.CurrentValidatorSet(ctx)
	if err != nil {
		t.Fatalf("CurrentValidatorSet: %v", err)
	}
	if cur.Version != 3 {
		t.Fatalf("current version = %d, want 3", cur.Version)
	}
	old, ok, err := st.ValidatorSetAt(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("ValidatorSetAt(1): ok=%v err=%v", ok, err)
	}
	if old.Members[0].Weight != 1 {
		t.Fatalf("archived set corrupted: %+v", old)
	}
	if _, ok, _ := st.ValidatorSetAt(ctx, 9); ok {
		t.Fatal("ValidatorSetAt(9) should report absence")
	}
}

func TestMemoryStoreCloneIsDeep(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.Atomic(ctx, func(tx Tx) error {
		return tx.AppendContribution(ctx, types.FundingContribution{TaskID: 1, Funder: addr(1), Amount: types.Tokens(1)})
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	// A failed transaction that appends must not leak into the
	// committed slice.
	boom := errors.New("no")
	_ = st.Atomic(ctx, func(tx Tx) error {
		if err := tx.AppendContribution(ctx, types.FundingContribution{TaskID: 1, Funder: addr(2), Amount: types.Tokens(9)}); err != nil {
			return err
		}
		return boom
	})

	got, err := st.ListContributions(ctx, 1)
	if err != nil {
		t.Fatalf("ListContributions: %v", err)
	}
	if len(got) != 1 || got[0].Funder != addr(1) {
		t.Fatalf("contributions = %+v, want the single committed one", got)
	}
}
