package gaiatest

import (
	"context"

	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// Compile-time check.
var _ store.Store = (*FaultStore)(nil)

// FaultStore wraps a substrate and injects failures into individual
// write operations. Hooks fire before the wrapped call; a non-nil
// return aborts the enclosing transaction, which is how settlement
// rollback is exercised in tests. Nil hooks pass through.
type FaultStore struct {
	store.Store

	SetSettlementBalanceFn func(holder types.Address, amount types.Amount) error
	SetCreditBalanceFn     func(b types.CreditBalance) error
	PutOutcomeFn           func(o types.VerificationOutcome) error
	PutCollateralFn        func(c types.Collateral) error
}

// NewFaultStore wraps st.
func NewFaultStore(st store.Store) *FaultStore {
	return &FaultStore{Store: st}
}

func (f *FaultStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.Atomic(ctx, func(tx store.Tx) error {
		return fn(&faultTx{Tx: tx, f: f})
	})
}

type faultTx struct {
	store.Tx
	f *FaultStore
}

func (t *faultTx) SetSettlementBalance(ctx context.Context, holder types.Address, amount types.Amount) error {
	if fn := t.f.SetSettlementBalanceFn; fn != nil {
		if err := fn(holder, amount); err != nil {
			return err
		}
	}
	return t.Tx.SetSettlementBalance(ctx, holder, amount)
}

func (t *faultTx) SetCreditBalance(ctx context.Context, b types.CreditBalance) error {
	if fn := t.f.SetCreditBalanceFn; fn != nil {
		if err := fn(b); err != nil {
			return err
		}
	}
	return t.Tx.SetCreditBalance(ctx, b)
}

func (t *faultTx) PutOutcome(ctx context.Context, o types.VerificationOutcome) error {
	if fn := t.f.PutOutcomeFn; fn != nil {
		if err := fn(o); err != nil {
			return err
		}
	}
	return t.Tx.PutOutcome(ctx, o)
}

func (t *faultTx) PutCollateral(ctx context.Context, c types.Collateral) error {
	if fn := t.f.PutCollateralFn; fn != nil {
		if err := fn(c); err != nil {
			return err
		}
	}
	return t.Tx.PutCollateral(ctx, c)
}
