package types

// EventAttribute is a single key-value tag within an event.
type EventAttribute struct {
	Key   string `cramberry:"1" json:"key"`
	Value string `cramberry:"2" json:"value"`
}

// Event is a protocol-emitted observability record. Every state
// change produces one; within a single task's lifecycle, events are
// observed in the exact order transitions occur.
type Event struct {
	Kind       string           `cramberry:"1" json:"kind"`
	Attributes []EventAttribute `cramberry:"2" json:"attributes"`
}

// Attr appends a key-value attribute and returns the event, allowing
// fluent construction.
func (e Event) Attr(key, value string) Event {
	e.Attributes = append(e.Attributes, EventAttribute{Key: key, Value: value})
	return e
}

// Get returns the value of the first attribute with the given key.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Event kinds emitted by the protocol core.
const (
	EventTaskCreated     = "task_created"
	EventTaskTransition  = "task_transition"
	EventDeposit         = "deposit"
	EventWithdraw        = "withdraw"
	EventContribution    = "contribution"
	EventCollateralPost  = "collateral_posted"
	EventCollateralFree  = "collateral_returned"
	EventCollateralSlash = "collateral_slashed"
	EventVoteCast        = "vote_cast"
	EventFinalized       = "verification_finalized"
	EventEscrowReleased  = "escrow_released"
	EventEscrowRefunded  = "escrow_refunded"
	EventCreditsMinted   = "credits_minted"
	EventCreditsRetired  = "credits_retired"
	EventOrderListed     = "order_listed"
	EventOrderFilled     = "order_filled"
	EventOrderClosed     = "order_closed"
	EventValidatorChange = "validator_set_changed"
)
