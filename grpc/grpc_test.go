package gaiagrpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	gaia "github.com/arko05roy/gaia-core"
	gaiagrpc "github.com/arko05roy/gaia-core/grpc"
	"github.com/arko05roy/gaia-core/protocol"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	gaiatest "github.com/arko05roy/gaia-core/testing"
	"github.com/arko05roy/gaia-core/types"
)

// startServer starts a gRPC server on a random port and returns the
// listener address and a cleanup function.
func startServer(t *testing.T, core gaia.Core) (string, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := grpc.NewServer()
	gaiagrpc.NewGRPCServer(core).Register(s)
	go func() {
		_ = s.Serve(lis)
	}()

	return lis.Addr().String(), s.GracefulStop
}

func dial(t *testing.T, addr string) *gaiagrpc.Client {
	t.Helper()
	client, err := gaiagrpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func startCore(t *testing.T) (*gaiagrpc.Client, *gaiatest.Clock) {
	t.Helper()
	clock := gaiatest.NewClock()
	core, err := protocol.New(context.Background(), store.NewMemoryStore(), rules.FakeRules(),
		protocol.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("protocol.New: %v", err)
	}
	addr, cleanup := startServer(t, core)
	t.Cleanup(cleanup)
	return dial(t, addr), clock
}

func TestGRPCLifecycle(t *testing.T) {
	client, clock := startCore(t)
	h := gaiatest.NewHarness(t, client, clock)

	id := h.InProgressTask(gaiatest.FixtureSpec{
		Proposer:   gaiatest.Addr(0x10),
		Operator:   gaiatest.Addr(0x20),
		Funders:    []types.Address{gaiatest.Addr(0x30)},
		Cost:       types.Tokens(100),
		Impact:     types.Tokens(50),
		Collateral: types.Tokens(10),
	})

	tally := h.Vote(id, gaiatest.Addr(1), types.DecisionApprove)
	if tally.Finalized {
		t.Fatal("first vote should not finalize")
	}
	tally = h.Vote(id, gaiatest.Addr(2), types.DecisionApprove)
	if !tally.Finalized || tally.Decision != types.DecisionApprove {
		t.Fatalf("tally = %+v, want approve finalization", tally)
	}

	task := h.Task(id)
	if task.Status != types.StatusCompleted {
		t.Fatalf("task status over the wire = %s, want Completed", task.Status)
	}
	if got, want := h.Balance(gaiatest.Addr(0x20)), types.Tokens(105); !got.Equal(want) {
		t.Fatalf("operator balance = %s, want %s", got, want)
	}

	outcome, err := client.Outcome(context.Background(), id)
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if outcome.Decision != types.DecisionApprove || outcome.ApproveWeight != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestGRPCErrorCodesSurviveTheWire(t *testing.T) {
	client, _ := startCore(t)
	ctx := context.Background()

	// Unknown task.
	if _, err := client.Fund(ctx, 999, gaiatest.Addr(0x30), types.Tokens(1)); !gaia.IsCode(err, gaia.CodeUnknownTask) {
		t.Fatalf("got %v, want CodeUnknownTask", err)
	}

	// Invalid proposal.
	_, err := client.CreateTask(ctx, types.CreateTaskParams{Proposer: gaiatest.Addr(1), Description: "x"})
	if !gaia.IsCode(err, gaia.CodeInvalidParameters) {
		t.Fatalf("got %v, want CodeInvalidParameters", err)
	}

	// Withdraw without funds.
	if err := client.Withdraw(ctx, gaiatest.Addr(0x31), types.Tokens(5)); !gaia.IsCode(err, gaia.CodeInsufficientBalance) {
		t.Fatalf("got %v, want CodeInsufficientBalance", err)
	}
}

func TestGRPCQueries(t *testing.T) {
	client, clock := startCore(t)
	h := gaiatest.NewHarness(t, client, clock)
	ctx := context.Background()

	id := h.CreateTask(types.CreateTaskParams{
		Proposer:       gaiatest.Addr(0x10),
		Description:    "seagrass meadow survey",
		EstimatedCost:  types.Tokens(10),
		ExpectedImpact: types.Tokens(4),
		Deadline:       h.Deadline(time.Hour),
	})
	h.Deposit(gaiatest.Addr(0x30), types.Tokens(4))
	h.Fund(id, gaiatest.Addr(0x30), types.Tokens(4))

	proposed := types.StatusProposed
	tasks, err := client.Tasks(ctx, types.TaskFilter{Status: &proposed})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != id {
		t.Fatalf("tasks = %+v, want the single proposed task", tasks)
	}

	progress, err := client.FundingProgress(ctx, id)
	if err != nil {
		t.Fatalf("FundingProgress: %v", err)
	}
	if !progress.Funded.Equal(types.Tokens(4)) || progress.Complete() {
		t.Fatalf("progress = %+v", progress)
	}

	contribs, err := client.Contributions(ctx, id)
	if err != nil {
		t.Fatalf("Contributions: %v", err)
	}
	if len(contribs) != 1 || contribs[0].Funder != gaiatest.Addr(0x30) {
		t.Fatalf("contributions = %+v", contribs)
	}

	set, err := client.Validators(ctx)
	if err != nil {
		t.Fatalf("Validators: %v", err)
	}
	if set.Version != 1 || len(set.Members) != 3 {
		t.Fatalf("validator set = %+v", set)
	}

	r, err := client.Rules(ctx)
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if r.Verification.QuorumBps != rules.FakeRules().Verification.QuorumBps {
		t.Fatalf("rules quorum = %d", r.Verification.QuorumBps)
	}
}
