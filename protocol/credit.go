package protocol

import (
	"bytes"
	"context"
	"sort"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
	"github.com/arko05roy/gaia-core/types"
)

// CreditMinter issues carbon credits for approved tasks and retires
// them on demand. The minted total scales the expected impact by the
// fraction of the estimated cost actually funded, and the split
// between operator and funders is expressed in basis points that
// must cover the whole issue exactly.
type CreditMinter struct {
	rules rules.ProtocolRules
}

// Mint issues the task's credits once. The operator receives the
// configured share; the rest is split across funders pro-rata to
// their contributions. Integer division remainders go to the largest
// share, ties broken by lowest address, so the minted amounts always
// sum to the computed total.
func (m CreditMinter) Mint(ctx context.Context, tx store.Tx, task *types.Task, ev *eventLog) error {
	if task.Minted {
		return gaia.Errf(gaia.CodeAlreadyMinted, task.ID, "credits already minted")
	}
	total := task.ExpectedImpact.MulDiv(task.FundedAmount, task.EstimatedCost)
	recipients, err := m.buildRecipients(ctx, tx, task)
	if err != nil {
		return err
	}
	if err := validateShares(task.ID, recipients); err != nil {
		return err
	}

	amounts := splitByShares(total, recipients)
	for i, r := range recipients {
		if amounts[i].IsZero() {
			continue
		}
		bal, err := tx.GetCreditBalance(ctx, r.Recipient, task.ID)
		if err != nil {
			return err
		}
		bal.Tradable = bal.Tradable.Add(amounts[i])
		if err := tx.SetCreditBalance(ctx, bal); err != nil {
			return err
		}
	}

	task.Minted = true
	ev.emit(types.Event{Kind: types.EventCreditsMinted}.
		Attr("task", u64str(task.ID)).
		Attr("total", total.String()).
		Attr("recipients", u64str(uint64(len(recipients)))))
	return nil
}

// Retire permanently removes credits from circulation. Retired
// credits stay on the holder's record but can never trade again.
func (m CreditMinter) Retire(ctx context.Context, tx store.Tx, holder types.Address, taskID uint64, amount types.Amount, ev *eventLog) error {
	if holder.IsZero() || !amount.IsPositive() {
		return gaia.Errf(gaia.CodeInvalidParameters, taskID,
			"retirement requires a holder and a positive amount")
	}
	bal, err := tx.GetCreditBalance(ctx, holder, taskID)
	if err != nil {
		return err
	}
	if bal.Tradable.LT(amount) {
		return gaia.Errf(gaia.CodeInsufficientBalance, taskID,
			"holder %s has %s tradable credits, needs %s", holder, bal.Tradable, amount)
	}
	bal.Tradable = bal.Tradable.Sub(amount)
	bal.Retired = bal.Retired.Add(amount)
	if err := tx.SetCreditBalance(ctx, bal); err != nil {
		return err
	}
	ev.emit(types.Event{Kind: types.EventCreditsRetired}.
		Attr("task", u64str(taskID)).
		Attr("holder", holder.Hex()).
		Attr("amount", amount.String()))
	return nil
}

// buildRecipients derives the share table for a task: the operator's
// configured cut first, then the funders pro-rata to what they
// contributed. Shares are in basis points and closed to exactly
// 10000 by assigning rounding leftovers to the largest contributor.
func (m CreditMinter) buildRecipients(ctx context.Context, tx store.Tx, task *types.Task) ([]types.CreditRecipient, error) {
	contributions, err := tx.ListContributions(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	// Collapse repeat contributions by the same funder.
	totals := make(map[types.Address]types.Amount)
	var order []types.Address
	for _, c := range contributions {
		if cur, ok := totals[c.Funder]; ok {
			totals[c.Funder] = cur.Add(c.Amount)
		} else {
			totals[c.Funder] = c.Amount
			order = append(order, c.Funder)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	operatorBps := m.rules.Settlement.OperatorCreditBps
	funderBps := 10_000 - operatorBps

	recipients := []types.CreditRecipient{{Recipient: task.Operator, ShareBps: operatorBps}}
	assigned := operatorBps
	for _, funder := range order {
		share := uint32(types.NewAmount(uint64(funderBps)).MulDiv(totals[funder], task.FundedAmount).Uint64())
		recipients = append(recipients, types.CreditRecipient{Recipient: funder, ShareBps: share})
		assigned += share
	}
	if leftover := 10_000 - assigned; leftover > 0 {
		recipients[largestShare(recipients)].ShareBps += leftover
	}
	return recipients, nil
}

// splitByShares allocates total across recipients by basis-point
// share, floor division, with the remainder added to the largest
// share.
func splitByShares(total types.Amount, recipients []types.CreditRecipient) []types.Amount {
	amounts := make([]types.Amount, len(recipients))
	allocated := types.NewAmount(0)
	for i, r := range recipients {
		amounts[i] = total.MulBps(r.ShareBps)
		allocated = allocated.Add(amounts[i])
	}
	if remainder := total.Sub(allocated); remainder.IsPositive() {
		i := largestShare(recipients)
		amounts[i] = amounts[i].Add(remainder)
	}
	return amounts
}

// largestShare picks the index of the recipient with the biggest
// share, breaking ties by lowest address.
func largestShare(recipients []types.CreditRecipient) int {
	best := 0
	for i := 1; i < len(recipients); i++ {
		switch {
		case recipients[i].ShareBps > recipients[best].ShareBps:
			best = i
		case recipients[i].ShareBps == recipients[best].ShareBps &&
			bytes.Compare(recipients[i].Recipient[:], recipients[best].Recipient[:]) < 0:
			best = i
		}
	}
	return best
}

func validateShares(taskID uint64, recipients []types.CreditRecipient) error {
	if len(recipients) == 0 {
		return gaia.Errf(gaia.CodeInvalidShareSplit, taskID, "no recipients")
	}
	var sum uint32
	for _, r := range recipients {
		if r.Recipient.IsZero() {
			return gaia.Errf(gaia.CodeInvalidShareSplit, taskID, "zero recipient address")
		}
		sum += r.ShareBps
	}
	if sum != 10_000 {
		return gaia.Errf(gaia.CodeInvalidShareSplit, taskID, "shares sum to %d bps, want 10000", sum)
	}
	return nil
}
