package gaiagrpc

import "github.com/arko05roy/gaia-core/types"

// Read queries travel through the generic Query RPC: a path selects
// the query and JSON carries parameters and results. The shapes
// below are shared by server and client.

const (
	QueryTask       = "/task"
	QueryTasks      = "/tasks"
	QueryFunding    = "/funding"
	QueryContribs   = "/contributions"
	QueryVotes      = "/votes"
	QueryOutcome    = "/outcome"
	QueryCredits    = "/credits"
	QueryBalance    = "/balance"
	QueryOrders     = "/orders"
	QueryValidators = "/validators"
	QueryRules      = "/rules"
)

type taskQuery struct {
	TaskID uint64 `json:"task_id"`
}

type holderQuery struct {
	Holder types.Address `json:"holder"`
}

type creditQuery struct {
	Holder types.Address `json:"holder"`
	TaskID uint64        `json:"task_id"`
}

type tasksQuery struct {
	Status    *types.Status    `json:"status,omitempty"`
	Proposer  *types.Address   `json:"proposer,omitempty"`
	Operator  *types.Address   `json:"operator,omitempty"`
	DueBefore *types.Timestamp `json:"due_before,omitempty"`
}

func (q tasksQuery) filter() types.TaskFilter {
	return types.TaskFilter{
		Status:    q.Status,
		Proposer:  q.Proposer,
		Operator:  q.Operator,
		DueBefore: q.DueBefore,
	}
}

type ordersQuery struct {
	TaskID     *uint64        `json:"task_id,omitempty"`
	Seller     *types.Address `json:"seller,omitempty"`
	ActiveOnly bool           `json:"active_only,omitempty"`
}

func (q ordersQuery) filter() types.OrderFilter {
	return types.OrderFilter{
		TaskID:     q.TaskID,
		Seller:     q.Seller,
		ActiveOnly: q.ActiveOnly,
	}
}

type balanceResult struct {
	Balance types.Amount `json:"balance"`
}
