package store

import (
	"context"
	"sort"
	"sync"

	"github.com/arko05roy/gaia-core/types"
)

type creditKey struct {
	Holder types.Address
	TaskID uint64
}

// memState is the complete in-memory protocol state. Amounts are
// immutable values, so a shallow copy of map entries is a deep copy
// in effect; only the container maps and slices need cloning.
type memState struct {
	nextTaskID  uint64
	nextOrderID uint64

	tasks         map[uint64]types.Task
	contributions map[uint64][]types.FundingContribution
	collateral    map[uint64]types.Collateral
	votes         map[uint64][]types.VerificationVote
	outcomes      map[uint64]types.VerificationOutcome
	credits       map[creditKey]types.CreditBalance
	settlement    map[types.Address]types.Amount
	orders        map[uint64]types.MarketOrder

	validatorSets map[uint64]types.ValidatorSet
	currentSet    uint64
}

func newMemState() *memState {
	return &memState{
		nextTaskID:    1,
		nextOrderID:   1,
		tasks:         make(map[uint64]types.Task),
		contributions: make(map[uint64][]types.FundingContribution),
		collateral:    make(map[uint64]types.Collateral),
		votes:         make(map[uint64][]types.VerificationVote),
		outcomes:      make(map[uint64]types.VerificationOutcome),
		credits:       make(map[creditKey]types.CreditBalance),
		settlement:    make(map[types.Address]types.Amount),
		orders:        make(map[uint64]types.MarketOrder),
		validatorSets: make(map[uint64]types.ValidatorSet),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextTaskID:    s.nextTaskID,
		nextOrderID:   s.nextOrderID,
		tasks:         make(map[uint64]types.Task, len(s.tasks)),
		contributions: make(map[uint64][]types.FundingContribution, len(s.contributions)),
		collateral:    make(map[uint64]types.Collateral, len(s.collateral)),
		votes:         make(map[uint64][]types.VerificationVote, len(s.votes)),
		outcomes:      make(map[uint64]types.VerificationOutcome, len(s.outcomes)),
		credits:       make(map[creditKey]types.CreditBalance, len(s.credits)),
		settlement:    make(map[types.Address]types.Amount, len(s.settlement)),
		orders:        make(map[uint64]types.MarketOrder, len(s.orders)),
		validatorSets: make(map[uint64]types.ValidatorSet, len(s.validatorSets)),
		currentSet:    s.currentSet,
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.contributions {
		c.contributions[k] = append([]types.FundingContribution(nil), v...)
	}
	for k, v := range s.collateral {
		c.collateral[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = append([]types.VerificationVote(nil), v...)
	}
	for k, v := range s.outcomes {
		c.outcomes[k] = v
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	for k, v := range s.settlement {
		c.settlement[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.validatorSets {
		c.validatorSets[k] = v
	}
	return c
}

// MemoryStore is the in-memory substrate. Atomic clones the committed
// snapshot, applies all writes to the clone, and swaps it in on
// success, so a failed transaction leaves no trace and concurrent
// readers always see a consistent committed snapshot.
type MemoryStore struct {
	// writeMu serializes transactions; mu guards the snapshot swap.
	writeMu sync.Mutex
	mu      sync.RWMutex
	cur     *memState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cur: newMemState()}
}

func (m *MemoryStore) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Atomic implements Store.
func (m *MemoryStore) Atomic(_ context.Context, fn func(tx Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next := m.snapshot().clone()
	if err := fn(&memTx{st: next}); err != nil {
		return err
	}

	m.mu.Lock()
	m.cur = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// --- Reader (committed snapshot) ---

func (m *MemoryStore) GetTask(ctx context.Context, id uint64) (types.Task, bool, error) {
	return (&memTx{st: m.snapshot()}).GetTask(ctx, id)
}

func (m *MemoryStore) ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	return (&memTx{st: m.snapshot()}).ListTasks(ctx, f)
}

func (m *MemoryStore) ListContributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error) {
	return (&memTx{st: m.snapshot()}).ListContributions(ctx, taskID)
}

func (m *MemoryStore) GetCollateral(ctx context.Context, taskID uint64) (types.Collateral, bool, error) {
	return (&memTx{st: m.snapshot()}).GetCollateral(ctx, taskID)
}

func (m *MemoryStore) ListVotes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error) {
	return (&memTx{st: m.snapshot()}).ListVotes(ctx, taskID)
}

func (m *MemoryStore) GetOutcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, bool, error) {
	return (&memTx{st: m.snapshot()}).GetOutcome(ctx, taskID)
}

func (m *MemoryStore) GetCreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error) {
	return (&memTx{st: m.snapshot()}).GetCreditBalance(ctx, holder, taskID)
}

func (m *MemoryStore) GetSettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error) {
	return (&memTx{st: m.snapshot()}).GetSettlementBalance(ctx, holder)
}

func (m *MemoryStore) GetOrder(ctx context.Context, id uint64) (types.MarketOrder, bool, error) {
	return (&memTx{st: m.snapshot()}).GetOrder(ctx, id)
}

func (m *MemoryStore) ListOrders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error) {
	return (&memTx{st: m.snapshot()}).ListOrders(ctx, f)
}

func (m *MemoryStore) CurrentValidatorSet(ctx context.Context) (types.ValidatorSet, error) {
	return (&memTx{st: m.snapshot()}).CurrentValidatorSet(ctx)
}

func (m *MemoryStore) ValidatorSetAt(ctx context.Context, version uint64) (types.ValidatorSet, bool, error) {
	return (&memTx{st: m.snapshot()}).ValidatorSetAt(ctx, version)
}

// --- Transaction view ---

type memTx struct {
	st *memState
}

func (t *memTx) GetTask(_ context.Context, id uint64) (types.Task, bool, error) {
	task, ok := t.st.tasks[id]
	return task, ok, nil
}

func (t *memTx) ListTasks(_ context.Context, f types.TaskFilter) ([]types.Task, error) {
	out := make([]types.Task, 0, len(t.st.tasks))
	for _, task := range t.st.tasks {
		if f.Match(task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ListContributions(_ context.Context, taskID uint64) ([]types.FundingContribution, error) {
	return append([]types.FundingContribution(nil), t.st.contributions[taskID]...), nil
}

func (t *memTx) GetCollateral(_ context.Context, taskID uint64) (types.Collateral, bool, error) {
	c, ok := t.st.collateral[taskID]
	return c, ok, nil
}

func (t *memTx) ListVotes(_ context.Context, taskID uint64) ([]types.VerificationVote, error) {
	return append([]types.VerificationVote(nil), t.st.votes[taskID]...), nil
}

func (t *memTx) GetOutcome(_ context.Context, taskID uint64) (types.VerificationOutcome, bool, error) {
	o, ok := t.st.outcomes[taskID]
	return o, ok, nil
}

func (t *memTx) GetCreditBalance(_ context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error) {
	b, ok := t.st.credits[creditKey{Holder: holder, TaskID: taskID}]
	if !ok {
		return types.CreditBalance{Holder: holder, TaskID: taskID}, nil
	}
	return b, nil
}

func (t *memTx) GetSettlementBalance(_ context.Context, holder types.Address) (types.Amount, error) {
	return t.st.settlement[holder], nil
}

func (t *memTx) GetOrder(_ context.Context, id uint64) (types.MarketOrder, bool, error) {
	o, ok := t.st.orders[id]
	return o, ok, nil
}

func (t *memTx) ListOrders(_ context.Context, f types.OrderFilter) ([]types.MarketOrder, error) {
	out := make([]types.MarketOrder, 0, len(t.st.orders))
	for _, o := range t.st.orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CurrentValidatorSet(_ context.Context) (types.ValidatorSet, error) {
	return t.st.validatorSets[t.st.currentSet], nil
}

func (t *memTx) ValidatorSetAt(_ context.Context, version uint64) (types.ValidatorSet, bool, error) {
	vs, ok := t.st.validatorSets[version]
	return vs, ok, nil
}

func (t *memTx) CreateTask(_ context.Context, task types.Task) (uint64, error) {
	task.ID = t.st.nextTaskID
	t.st.nextTaskID++
	t.st.tasks[task.ID] = task
	return task.ID, nil
}

func (t *memTx) PutTask(_ context.Context, task types.Task) error {
	t.st.tasks[task.ID] = task
	return nil
}

func (t *memTx) AppendContribution(_ context.Context, c types.FundingContribution) error {
	t.st.contributions[c.TaskID] = append(t.st.contributions[c.TaskID], c)
	return nil
}

func (t *memTx) PutCollateral(_ context.Context, c types.Collateral) error {
	t.st.collateral[c.TaskID] = c
	return nil
}

func (t *memTx) AppendVote(_ context.Context, v types.VerificationVote) error {
	t.st.votes[v.TaskID] = append(t.st.votes[v.TaskID], v)
	return nil
}

func (t *memTx) PutOutcome(_ context.Context, o types.VerificationOutcome) error {
	t.st.outcomes[o.TaskID] = o
	return nil
}

func (t *memTx) SetCreditBalance(_ context.Context, b types.CreditBalance) error {
	t.st.credits[creditKey{Holder: b.Holder, TaskID: b.TaskID}] = b
	return nil
}

func (t *memTx) SetSettlementBalance(_ context.Context, holder types.Address, amount types.Amount) error {
	t.st.settlement[holder] = amount
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, o types.MarketOrder) (uint64, error) {
	o.ID = t.st.nextOrderID
	t.st.nextOrderID++
	t.st.orders[o.ID] = o
	return o.ID, nil
}

func (t *memTx) PutOrder(_ context.Context, o types.MarketOrder) error {
	t.st.orders[o.ID] = o
	return nil
}

func (t *memTx) PutValidatorSet(_ context.Context, vs types.ValidatorSet) error {
	t.st.validatorSets[vs.Version] = vs
	if vs.Version > t.st.currentSet {
		t.st.currentSet = vs.Version
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Tx = (*memTx)(nil)
