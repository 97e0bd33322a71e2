package local_test

import (
	"context"
	"testing"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/local"
	"github.com/arko05roy/gaia-core/protocol"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	gaiatest "github.com/arko05roy/gaia-core/testing"
	"github.com/arko05roy/gaia-core/types"
)

func TestLocalConnection(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	clock := gaiatest.NewClock()
	core, err := protocol.New(ctx, st, rules.FakeRules(), protocol.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}

	var conn gaia.Connection = local.NewConnection(core, st)
	defer conn.Close()

	id, err := conn.CreateTask(ctx, types.CreateTaskParams{
		Proposer:       gaiatest.Addr(1),
		Description:    "riverbank planting",
		EstimatedCost:  types.Tokens(5),
		ExpectedImpact: types.Tokens(2),
		Deadline:       types.TimeToTimestamp(clock.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task, err := conn.Task(ctx, id)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.Status != types.StatusProposed {
		t.Fatalf("status = %s, want Proposed", task.Status)
	}
}
