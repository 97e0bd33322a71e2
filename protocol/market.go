package protocol

import (
	"context"
	"time"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// Marketplace trades minted credits for settlement currency. Listing
// an order locks the seller's credits up front, so a fill can never
// fail on the seller's side; a buyer pays amount times unit price,
// scaled back to the settlement denomination.
type Marketplace struct{}

// List escrows amount credits from the seller and opens a sell order
// at pricePerUnit.
func (Marketplace) List(ctx context.Context, tx store.Tx, seller types.Address, taskID uint64, amount, pricePerUnit types.Amount, now time.Time, ev *eventLog) (uint64, error) {
	if seller.IsZero() || !amount.IsPositive() || !pricePerUnit.IsPositive() {
		return 0, gaia.Errf(gaia.CodeInvalidParameters, taskID,
			"listing requires a seller, a positive amount and a positive price")
	}
	bal, err := tx.GetCreditBalance(ctx, seller, taskID)
	if err != nil {
		return 0, err
	}
	if bal.Tradable.LT(amount) {
		return 0, gaia.Errf(gaia.CodeInsufficientBalance, taskID,
			"seller %s has %s tradable credits, needs %s", seller, bal.Tradable, amount)
	}
	bal.Tradable = bal.Tradable.Sub(amount)
	if err := tx.SetCreditBalance(ctx, bal); err != nil {
		return 0, err
	}

	id, err := tx.CreateOrder(ctx, types.MarketOrder{
		Seller:        seller,
		TaskID:        taskID,
		InitialAmount: amount,
		Remaining:     amount,
		PricePerUnit:  pricePerUnit,
		Active:        true,
		CreatedAt:     types.TimeToTimestamp(now),
	})
	if err != nil {
		return 0, err
	}
	ev.emit(types.Event{Kind: types.EventOrderListed}.
		Attr("order", u64str(id)).
		Attr("task", u64str(taskID)).
		Attr("seller", seller.Hex()).
		Attr("amount", amount.String()).
		Attr("price", pricePerUnit.String()))
	return id, nil
}

// Buy fills up to the order's remaining amount. The buyer's
// settlement debit and the seller's settlement credit are the same
// figure, and credits move to the buyer in the same transaction. A
// fully consumed order deactivates.
func (Marketplace) Buy(ctx context.Context, tx store.Tx, orderID uint64, buyer types.Address, amount types.Amount, ev *eventLog) (types.Trade, error) {
	if buyer.IsZero() || !amount.IsPositive() {
		return types.Trade{}, gaia.Errf(gaia.CodeInvalidParameters, 0,
			"buying requires a buyer and a positive amount")
	}
	order, ok, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return types.Trade{}, err
	}
	if !ok {
		return types.Trade{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "unknown order %d", orderID)
	}
	if !order.Active {
		return types.Trade{}, gaia.Errf(gaia.CodeOrderInactive, order.TaskID, "order %d is closed", orderID)
	}
	if amount.Cmp(order.Remaining) > 0 {
		return types.Trade{}, gaia.Errf(gaia.CodeAmountExceedsAvailable, order.TaskID,
			"order %d has %s remaining, requested %s", orderID, order.Remaining, amount)
	}

	cost := amount.Mul(order.PricePerUnit).ScaleDown()
	if err := debitSettlement(ctx, tx, buyer, cost); err != nil {
		return types.Trade{}, err
	}
	if err := creditSettlement(ctx, tx, order.Seller, cost); err != nil {
		return types.Trade{}, err
	}
	bal, err := tx.GetCreditBalance(ctx, buyer, order.TaskID)
	if err != nil {
		return types.Trade{}, err
	}
	bal.Tradable = bal.Tradable.Add(amount)
	if err := tx.SetCreditBalance(ctx, bal); err != nil {
		return types.Trade{}, err
	}

	order.Remaining = order.Remaining.Sub(amount)
	if order.Remaining.IsZero() {
		order.Active = false
	}
	if err := tx.PutOrder(ctx, order); err != nil {
		return types.Trade{}, err
	}

	ev.emit(types.Event{Kind: types.EventOrderFilled}.
		Attr("order", u64str(orderID)).
		Attr("task", u64str(order.TaskID)).
		Attr("buyer", buyer.Hex()).
		Attr("amount", amount.String()).
		Attr("cost", cost.String()))
	if !order.Active {
		ev.emit(types.Event{Kind: types.EventOrderClosed}.
			Attr("order", u64str(orderID)).
			Attr("reason", "filled"))
	}
	return types.Trade{
		OrderID:        orderID,
		TaskID:         order.TaskID,
		Buyer:          buyer,
		Seller:         order.Seller,
		Amount:         amount,
		Cost:           cost,
		OrderRemaining: order.Remaining,
		OrderActive:    order.Active,
	}, nil
}

// Cancel closes an order and returns its unfilled credits to the
// seller. Only the seller may cancel.
func (Marketplace) Cancel(ctx context.Context, tx store.Tx, orderID uint64, seller types.Address, ev *eventLog) error {
	order, ok, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return gaia.Errf(gaia.CodeInvalidParameters, 0, "unknown order %d", orderID)
	}
	if !order.Active {
		return gaia.Errf(gaia.CodeOrderInactive, order.TaskID, "order %d is closed", orderID)
	}
	if order.Seller != seller {
		return gaia.Errf(gaia.CodeNotAuthorized, order.TaskID,
			"order %d belongs to %s", orderID, order.Seller)
	}

	bal, err := tx.GetCreditBalance(ctx, seller, order.TaskID)
	if err != nil {
		return err
	}
	bal.Tradable = bal.Tradable.Add(order.Remaining)
	if err := tx.SetCreditBalance(ctx, bal); err != nil {
		return err
	}
	order.Active = false
	if err := tx.PutOrder(ctx, order); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventOrderClosed}.
		Attr("order", u64str(orderID)).
		Attr("reason", "cancelled"))
	return nil
}
