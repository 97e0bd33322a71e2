// Package store is the ledger substrate of the protocol core: atomic,
// ordered transaction execution over durable record storage.
//
// The core is written against the Store interface only. Two
// implementations are provided: MemoryStore (snapshot clone-on-write,
// the default for tests and single-node deployments) and
// PostgresStore (database/sql over the pgx driver).
package store

import (
	"context"

	"github.com/arko05roy/gaia-core/types"
)

// Reader provides consistent reads of committed protocol state.
// Reads never observe a mid-transaction view: outside Atomic they see
// the last committed snapshot, inside Atomic they see the
// transaction's own writes.
type Reader interface {
	GetTask(ctx context.Context, id uint64) (types.Task, bool, error)
	ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error)

	ListContributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error)
	GetCollateral(ctx context.Context, taskID uint64) (types.Collateral, bool, error)

	ListVotes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error)
	GetOutcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, bool, error)

	GetCreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error)
	GetSettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error)

	GetOrder(ctx context.Context, id uint64) (types.MarketOrder, bool, error)
	ListOrders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error)

	CurrentValidatorSet(ctx context.Context) (types.ValidatorSet, error)
	ValidatorSetAt(ctx context.Context, version uint64) (types.ValidatorSet, bool, error)
}

// Tx extends Reader with writes. A Tx is only valid inside the
// Atomic callback that produced it.
type Tx interface {
	Reader

	// CreateTask persists a new task, assigning the next monotonic
	// id, and returns it.
	CreateTask(ctx context.Context, t types.Task) (uint64, error)
	PutTask(ctx context.Context, t types.Task) error

	// AppendContribution adds to the task's append-only funding log.
	AppendContribution(ctx context.Context, c types.FundingContribution) error
	PutCollateral(ctx context.Context, c types.Collateral) error

	// AppendVote adds to the task's append-only vote log.
	AppendVote(ctx context.Context, v types.VerificationVote) error
	PutOutcome(ctx context.Context, o types.VerificationOutcome) error

	SetCreditBalance(ctx context.Context, b types.CreditBalance) error
	SetSettlementBalance(ctx context.Context, holder types.Address, amount types.Amount) error

	// CreateOrder persists a new order, assigning the next monotonic
	// id, and returns it.
	CreateOrder(ctx context.Context, o types.MarketOrder) (uint64, error)
	PutOrder(ctx context.Context, o types.MarketOrder) error

	// PutValidatorSet installs vs as the current set and archives it
	// under its version for vote-time reads.
	PutValidatorSet(ctx context.Context, vs types.ValidatorSet) error
}

// Store is the substrate's persistence surface.
type Store interface {
	Reader

	// Atomic executes fn against a transactional view. All writes
	// commit if and only if fn returns nil; on error or panic
	// nothing is applied. Transactions are serialized: two Atomic
	// calls never interleave.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
