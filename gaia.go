// Package gaia defines the Gaia protocol core, the task lifecycle
// and verification protocol coordinating funded environmental work:
// proposers register tasks, funders escrow capital, operators post
// collateral and execute work, validators reach quorum on proof of
// completion, and verified impact is tokenized into tradable credits.
//
// The core is written against an abstract ledger substrate providing
// atomic, ordered transaction execution and durable storage (package
// store). The [Core] interface is the complete command/query surface;
// the reference implementation lives in package protocol, and
// transports (gRPC, in-process) expose it as a [Connection].
package gaia

import (
	"context"

	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/types"
)

// Core is the full command and query surface of the protocol.
//
// Commands touching the same task are serialized: two concurrent
// commands never interleave their reads and writes on one task.
// Every multi-step settlement (finalization, marketplace fill) is
// all-or-nothing: on any sub-step failure the whole operation rolls
// back and the task remains in its pre-call state for a later retry.
//
// All methods are safe for concurrent use.
type Core interface {
	// CreateTask registers a new task in Proposed status and returns
	// its id. Fails with CodeInvalidParameters if cost or impact is
	// not positive or the deadline is not in the future.
	CreateTask(ctx context.Context, p types.CreateTaskParams) (uint64, error)

	// Deposit credits the holder's settlement-currency balance.
	Deposit(ctx context.Context, holder types.Address, amount types.Amount) error

	// Withdraw debits the holder's free settlement-currency balance.
	// Fails with CodeInsufficientBalance.
	Withdraw(ctx context.Context, holder types.Address, amount types.Amount) error

	// Fund escrows amount from the funder's settlement balance into
	// the task. Valid only while the task is Proposed or Funded.
	// When the funded total reaches the estimated cost the task
	// transitions to Funded. Over-target behavior (clamp or reject)
	// is a rules choice.
	Fund(ctx context.Context, taskID uint64, funder types.Address, amount types.Amount) (types.FundingProgress, error)

	// PostCollateral stakes the operator's settlement balance behind
	// a Funded task. Exactly one active collateral per task.
	PostCollateral(ctx context.Context, taskID uint64, operator types.Address, amount types.Amount) error

	// AssignOperator moves a fully funded task with posted
	// collateral to InProgress and captures the validator-set
	// version the task will be judged against.
	AssignOperator(ctx context.Context, taskID uint64, operator types.Address) error

	// CastVote records a validator's verdict on an InProgress task.
	// If the vote pushes either side past quorum, finalization runs
	// in the same atomic step: on approval the escrow is released,
	// collateral returned, credits minted and the task completed; on
	// rejection funders are refunded pro-rata and the collateral is
	// slashed.
	CastVote(ctx context.Context, p types.VoteParams) (types.Tally, error)

	// FinalizeExpired rejects every InProgress task whose deadline
	// has elapsed without quorum (ties included; unresolved work
	// does not get paid) and returns the ids finalized.
	FinalizeExpired(ctx context.Context) ([]uint64, error)

	// Retire permanently burns tradable credits, recording them as
	// retired. Fails with CodeInsufficientBalance.
	Retire(ctx context.Context, holder types.Address, taskID uint64, amount types.Amount) error

	// ListOrder places a sell order for the seller's credits,
	// locking the listed amount. Returns the order id.
	ListOrder(ctx context.Context, seller types.Address, taskID uint64, amount, pricePerUnit types.Amount) (uint64, error)

	// CancelOrder deactivates the seller's active order and returns
	// the unfilled credits.
	CancelOrder(ctx context.Context, orderID uint64, seller types.Address) error

	// Buy fills up to amount of an active order: debits the buyer's
	// settlement balance, credits the seller, and transfers credits,
	// all atomically.
	Buy(ctx context.Context, orderID uint64, buyer types.Address, amount types.Amount) (types.Trade, error)

	// AddValidator adds or reweights a validator set member.
	// Restricted to the governance authority.
	AddValidator(ctx context.Context, authority, validator types.Address, weight uint64) error

	// RemoveValidator removes a validator set member. Restricted to
	// the governance authority.
	RemoveValidator(ctx context.Context, authority, validator types.Address) error

	// --- Read queries (consistent per-task snapshots) ---

	Task(ctx context.Context, id uint64) (types.Task, error)
	Tasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error)
	FundingProgress(ctx context.Context, taskID uint64) (types.FundingProgress, error)
	Contributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error)
	Votes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error)
	Outcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, error)
	CreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error)
	SettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error)
	Orders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error)
	Validators(ctx context.Context) (types.ValidatorSet, error)
	Rules(ctx context.Context) (rules.ProtocolRules, error)
}

// Connection is a transport-agnostic handle on a protocol core.
// Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Core

	// Close releases the connection.
	Close() error
}
