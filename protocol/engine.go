// Package protocol implements the Gaia protocol core: the task
// lifecycle state machine, escrow and collateral accounting, the
// quorum-based verification algorithm, credit minting and the credit
// marketplace.
//
// The Engine is the reference gaia.Core implementation. It executes
// every command as a single substrate transaction (store.Atomic), so
// a command either applies all of its effects or none of them.
// Commands touching the same task are additionally serialized by a
// per-task mutex, and deadlines are evaluated by comparing stored
// timestamps against the engine clock; the core never sleeps.
package protocol

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// Compile-time interface check.
var _ gaia.Core = (*Engine)(nil)

// eventLog collects the events of one command. Events are emitted
// only after the command commits.
type eventLog []types.Event

func (l *eventLog) emit(e types.Event) { *l = append(*l, e) }

// Engine is the protocol core over a ledger substrate.
type Engine struct {
	st    store.Store
	rules rules.ProtocolRules
	log   zerolog.Logger
	clock func() time.Time
	sink  func(types.Event)

	registry   TaskRegistry
	pool       FundingPool
	collateral CollateralManager
	verifier   VerificationManager
	minter     CreditMinter
	market     Marketplace

	// Per-task mutexes. Values are *sync.Mutex, created on first use
	// and never removed: the id space is monotonic and task-bound
	// work is finite.
	taskLocks sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger for lifecycle events.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides the time source. Tests use this to drive
// deadline behavior deterministically.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithEventSink registers a callback receiving every committed event.
func WithEventSink(sink func(types.Event)) Option {
	return func(e *Engine) { e.sink = sink }
}

// New creates an Engine over the given substrate. On first boot with
// an empty validator set, the genesis validators from the rules are
// installed as set version 1.
func New(ctx context.Context, st store.Store, r rules.ProtocolRules, opts ...Option) (*Engine, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		st:    st,
		rules: r,
		log:   zerolog.Nop(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = TaskRegistry{}
	e.pool = FundingPool{rules: r}
	e.collateral = CollateralManager{rules: r}
	e.minter = CreditMinter{rules: r}
	e.market = Marketplace{}
	e.verifier = VerificationManager{
		rules:      r,
		registry:   &e.registry,
		pool:       &e.pool,
		collateral: &e.collateral,
		minter:     &e.minter,
	}

	if len(r.Verification.Genesis) > 0 {
		if err := e.seedGenesis(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) seedGenesis(ctx context.Context) error {
	return e.st.Atomic(ctx, func(tx store.Tx) error {
		cur, err := tx.CurrentValidatorSet(ctx)
		if err != nil {
			return err
		}
		if cur.Version != 0 {
			return nil
		}
		return tx.PutValidatorSet(ctx, types.ValidatorSet{
			Version: 1,
			Members: append([]types.Validator(nil), e.rules.Verification.Genesis...),
		})
	})
}

func (e *Engine) lockTask(id uint64) func() {
	mu, _ := e.taskLocks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// run executes fn as one substrate transaction and emits collected
// events after commit.
func (e *Engine) run(ctx context.Context, fn func(tx store.Tx, ev *eventLog) error) error {
	var ev eventLog
	err := e.st.Atomic(ctx, func(tx store.Tx) error {
		ev = ev[:0]
		return fn(tx, &ev)
	})
	if err != nil {
		return err
	}
	for _, event := range ev {
		e.emit(event)
	}
	return nil
}

func (e *Engine) emit(event types.Event) {
	entry := e.log.Info().Str("kind", event.Kind)
	for _, a := range event.Attributes {
		entry = entry.Str(a.Key, a.Value)
	}
	entry.Msg("protocol event")
	if e.sink != nil {
		e.sink(event)
	}
}

// --- Commands ---

func (e *Engine) CreateTask(ctx context.Context, p types.CreateTaskParams) (uint64, error) {
	now := e.clock()
	var id uint64
	err := e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		task, err := e.registry.Create(ctx, tx, now, p, ev)
		if err != nil {
			return err
		}
		id = task.ID
		return nil
	})
	return id, err
}

func (e *Engine) Deposit(ctx context.Context, holder types.Address, amount types.Amount) error {
	if holder.IsZero() || !amount.IsPositive() {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "deposit requires a holder and a positive amount")
	}
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		if err := creditSettlement(ctx, tx, holder, amount); err != nil {
			return err
		}
		ev.emit(types.Event{Kind: types.EventDeposit}.
			Attr("holder", holder.Hex()).
			Attr("amount", amount.String()))
		return nil
	})
}

func (e *Engine) Withdraw(ctx context.Context, holder types.Address, amount types.Amount) error {
	if holder.IsZero() || !amount.IsPositive() {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "withdraw requires a holder and a positive amount")
	}
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		if err := debitSettlement(ctx, tx, holder, amount); err != nil {
			return err
		}
		ev.emit(types.Event{Kind: types.EventWithdraw}.
			Attr("holder", holder.Hex()).
			Attr("amount", amount.String()))
		return nil
	})
}

func (e *Engine) Fund(ctx context.Context, taskID uint64, funder types.Address, amount types.Amount) (types.FundingProgress, error) {
	defer e.lockTask(taskID)()
	now := e.clock()
	var progress types.FundingProgress
	err := e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		p, err := e.pool.Fund(ctx, tx, &e.registry, taskID, funder, amount, now, ev)
		if err != nil {
			return err
		}
		progress = p
		return nil
	})
	return progress, err
}

func (e *Engine) PostCollateral(ctx context.Context, taskID uint64, operator types.Address, amount types.Amount) error {
	defer e.lockTask(taskID)()
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.collateral.Post(ctx, tx, taskID, operator, amount, ev)
	})
}

func (e *Engine) AssignOperator(ctx context.Context, taskID uint64, operator types.Address) error {
	defer e.lockTask(taskID)()
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.registry.AssignOperator(ctx, tx, taskID, operator, ev)
	})
}

func (e *Engine) CastVote(ctx context.Context, p types.VoteParams) (types.Tally, error) {
	defer e.lockTask(p.TaskID)()
	now := e.clock()
	var tally types.Tally
	err := e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		t, err := e.verifier.CastVote(ctx, tx, p, now, ev)
		if err != nil {
			return err
		}
		tally = t
		return nil
	})
	return tally, err
}

func (e *Engine) FinalizeExpired(ctx context.Context) ([]uint64, error) {
	now := e.clock()
	due, err := e.st.ListTasks(ctx, types.TaskFilter{
		Status:    statusPtr(types.StatusInProgress),
		DueBefore: tsPtr(types.TimeToTimestamp(now.Add(time.Nanosecond))),
	})
	if err != nil {
		return nil, err
	}

	var finalized []uint64
	for _, task := range due {
		taskID := task.ID
		err := func() error {
			defer e.lockTask(taskID)()
			return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
				return e.verifier.FinalizeDue(ctx, tx, taskID, now, ev)
			})
		}()
		if err != nil {
			return finalized, err
		}
		finalized = append(finalized, taskID)
	}
	return finalized, nil
}

func (e *Engine) Retire(ctx context.Context, holder types.Address, taskID uint64, amount types.Amount) error {
	defer e.lockTask(taskID)()
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.minter.Retire(ctx, tx, holder, taskID, amount, ev)
	})
}

func (e *Engine) ListOrder(ctx context.Context, seller types.Address, taskID uint64, amount, pricePerUnit types.Amount) (uint64, error) {
	defer e.lockTask(taskID)()
	now := e.clock()
	var orderID uint64
	err := e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		id, err := e.market.List(ctx, tx, seller, taskID, amount, pricePerUnit, now, ev)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	return orderID, err
}

func (e *Engine) CancelOrder(ctx context.Context, orderID uint64, seller types.Address) error {
	order, ok, err := e.st.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "unknown order %d", orderID)
	}
	defer e.lockTask(order.TaskID)()
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.market.Cancel(ctx, tx, orderID, seller, ev)
	})
}

func (e *Engine) Buy(ctx context.Context, orderID uint64, buyer types.Address, amount types.Amount) (types.Trade, error) {
	order, ok, err := e.st.GetOrder(ctx, orderID)
	if err != nil {
		return types.Trade{}, err
	}
	if !ok {
		return types.Trade{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "unknown order %d", orderID)
	}
	defer e.lockTask(order.TaskID)()
	var trade types.Trade
	err = e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		t, err := e.market.Buy(ctx, tx, orderID, buyer, amount, ev)
		if err != nil {
			return err
		}
		trade = t
		return nil
	})
	return trade, err
}

func (e *Engine) AddValidator(ctx context.Context, authority, validator types.Address, weight uint64) error {
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.verifier.AddValidator(ctx, tx, authority, validator, weight, ev)
	})
}

func (e *Engine) RemoveValidator(ctx context.Context, authority, validator types.Address) error {
	return e.run(ctx, func(tx store.Tx, ev *eventLog) error {
		return e.verifier.RemoveValidator(ctx, tx, authority, validator, ev)
	})
}

// --- Read queries ---

func (e *Engine) Task(ctx context.Context, id uint64) (types.Task, error) {
	task, ok, err := e.st.GetTask(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !ok {
		return types.Task{}, gaia.Errf(gaia.CodeUnknownTask, id, "no such task")
	}
	return task, nil
}

func (e *Engine) Tasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	return e.st.ListTasks(ctx, f)
}

func (e *Engine) FundingProgress(ctx context.Context, taskID uint64) (types.FundingProgress, error) {
	task, err := e.Task(ctx, taskID)
	if err != nil {
		return types.FundingProgress{}, err
	}
	return types.FundingProgress{
		TaskID: task.ID,
		Funded: task.FundedAmount,
		Target: task.EstimatedCost,
		Status: task.Status,
	}, nil
}

func (e *Engine) Contributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error) {
	return e.st.ListContributions(ctx, taskID)
}

func (e *Engine) Votes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error) {
	return e.st.ListVotes(ctx, taskID)
}

func (e *Engine) Outcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, error) {
	o, ok, err := e.st.GetOutcome(ctx, taskID)
	if err != nil {
		return types.VerificationOutcome{}, err
	}
	if !ok {
		return types.VerificationOutcome{}, gaia.Errf(gaia.CodeUnknownTask, taskID, "no verification outcome")
	}
	return o, nil
}

func (e *Engine) CreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error) {
	return e.st.GetCreditBalance(ctx, holder, taskID)
}

func (e *Engine) SettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error) {
	return e.st.GetSettlementBalance(ctx, holder)
}

func (e *Engine) Orders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error) {
	return e.st.ListOrders(ctx, f)
}

func (e *Engine) Validators(ctx context.Context) (types.ValidatorSet, error) {
	return e.st.CurrentValidatorSet(ctx)
}

func (e *Engine) Rules(ctx context.Context) (rules.ProtocolRules, error) {
	return e.rules, nil
}

// --- Shared balance helpers ---

func creditSettlement(ctx context.Context, tx store.Tx, holder types.Address, amount types.Amount) error {
	bal, err := tx.GetSettlementBalance(ctx, holder)
	if err != nil {
		return err
	}
	return tx.SetSettlementBalance(ctx, holder, bal.Add(amount))
}

func debitSettlement(ctx context.Context, tx store.Tx, holder types.Address, amount types.Amount) error {
	bal, err := tx.GetSettlementBalance(ctx, holder)
	if err != nil {
		return err
	}
	if bal.LT(amount) {
		return gaia.Errf(gaia.CodeInsufficientBalance, 0,
			"holder %s has %s, needs %s", holder, bal, amount)
	}
	return tx.SetSettlementBalance(ctx, holder, bal.Sub(amount))
}

func u64str(v uint64) string { return strconv.FormatUint(v, 10) }

func statusPtr(s types.Status) *types.Status { return &s }

func tsPtr(ts types.Timestamp) *types.Timestamp { return &ts }
