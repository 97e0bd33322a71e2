package types

// CreditRecipient is one beneficiary of a task's credit mint, with
// its share in basis points. A recipient set is valid when the
// shares sum to exactly 10000.
type CreditRecipient struct {
	Recipient Address `json:"recipient"`
	ShareBps  uint32  `json:"share_bps"`
}

// CreditBalance is a holder's credit position for one task class.
// Tradable is spendable (transfer, list, retire); Retired is burned
// permanently and never transferable again.
type CreditBalance struct {
	Holder   Address `json:"holder"`
	TaskID   uint64  `json:"task_id"`
	Tradable Amount  `json:"tradable"`
	Retired  Amount  `json:"retired"`
}

// MarketOrder is a sell order for a task's credits against the
// settlement currency. Remaining decreases monotonically and never
// goes negative; the order deactivates atomically with the fill that
// takes Remaining to zero.
type MarketOrder struct {
	ID            uint64    `json:"id"`
	Seller        Address   `json:"seller"`
	TaskID        uint64    `json:"task_id"`
	InitialAmount Amount    `json:"initial_amount"`
	Remaining     Amount    `json:"remaining"`
	PricePerUnit  Amount    `json:"price_per_unit"`
	Active        bool      `json:"active"`
	CreatedAt     Timestamp `json:"created_at"`
}
