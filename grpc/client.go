package gaiagrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/types"
)

// Compile-time interface check.
var _ gaia.Connection = (*Client)(nil)

// Client implements gaia.Connection over gRPC using cramberry
// serialization. In-band status codes are turned back into typed
// protocol errors, so gaia.IsCode works across the wire.
type Client struct {
	cc *grpc.ClientConn
}

// Dial opens a client for a remote protocol core. The underlying
// channel connects lazily on first use.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("gaia client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// err rebuilds the typed protocol error from an in-band status.
func (st Status) err() error {
	if st.Code == 0 {
		return nil
	}
	return &gaia.Error{Code: gaia.Code(st.Code), TaskID: st.TaskID, Detail: st.Info}
}

// --- Commands ---

func (c *Client) CreateTask(ctx context.Context, p types.CreateTaskParams) (uint64, error) {
	req := &CreateTaskRequest{
		Proposer:          p.Proposer,
		Description:       p.Description,
		Location:          p.Location,
		EstimatedCost:     p.EstimatedCost.String(),
		ExpectedImpact:    p.ExpectedImpact.String(),
		ProofRequirements: p.ProofRequirements,
		Deadline:          p.Deadline,
		EvidenceHash:      p.EvidenceHash,
	}
	resp := new(CreateTaskResponse)
	if err := c.cc.Invoke(ctx, fullMethod("CreateTask"), req, resp); err != nil {
		return 0, err
	}
	if err := resp.Status.err(); err != nil {
		return 0, err
	}
	return resp.TaskID, nil
}

func (c *Client) Deposit(ctx context.Context, holder types.Address, amount types.Amount) error {
	return c.balanceOp(ctx, "Deposit", holder, amount)
}

func (c *Client) Withdraw(ctx context.Context, holder types.Address, amount types.Amount) error {
	return c.balanceOp(ctx, "Withdraw", holder, amount)
}

func (c *Client) balanceOp(ctx context.Context, method string, holder types.Address, amount types.Amount) error {
	req := &BalanceRequest{Holder: holder, Amount: amount.String()}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) Fund(ctx context.Context, taskID uint64, funder types.Address, amount types.Amount) (types.FundingProgress, error) {
	req := &FundRequest{TaskID: taskID, Funder: funder, Amount: amount.String()}
	resp := new(FundResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Fund"), req, resp); err != nil {
		return types.FundingProgress{}, err
	}
	if err := resp.Status.err(); err != nil {
		return types.FundingProgress{}, err
	}
	funded, err := types.ParseAmount(resp.Funded)
	if err != nil {
		return types.FundingProgress{}, fmt.Errorf("gaia client: funded amount: %w", err)
	}
	target, err := types.ParseAmount(resp.Target)
	if err != nil {
		return types.FundingProgress{}, fmt.Errorf("gaia client: target amount: %w", err)
	}
	return types.FundingProgress{
		TaskID: taskID,
		Funded: funded,
		Target: target,
		Status: types.Status(resp.State),
	}, nil
}

func (c *Client) PostCollateral(ctx context.Context, taskID uint64, operator types.Address, amount types.Amount) error {
	req := &CollateralRequest{TaskID: taskID, Operator: operator, Amount: amount.String()}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("PostCollateral"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) AssignOperator(ctx context.Context, taskID uint64, operator types.Address) error {
	req := &AssignOperatorRequest{TaskID: taskID, Operator: operator}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("AssignOperator"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) CastVote(ctx context.Context, p types.VoteParams) (types.Tally, error) {
	req := &VoteRequest{
		TaskID:        p.TaskID,
		Validator:     p.Validator,
		Decision:      uint8(p.Decision),
		ConfidenceBps: p.ConfidenceBps,
		Justification: p.Justification,
	}
	resp := new(VoteResponse)
	if err := c.cc.Invoke(ctx, fullMethod("CastVote"), req, resp); err != nil {
		return types.Tally{}, err
	}
	if err := resp.Status.err(); err != nil {
		return types.Tally{}, err
	}
	return types.Tally{
		TaskID:        p.TaskID,
		ApproveWeight: resp.ApproveWeight,
		RejectWeight:  resp.RejectWeight,
		QuorumWeight:  resp.QuorumWeight,
		Finalized:     resp.Finalized,
		Decision:      types.Decision(resp.Decision),
	}, nil
}

func (c *Client) FinalizeExpired(ctx context.Context) ([]uint64, error) {
	resp := new(FinalizeExpiredResponse)
	if err := c.cc.Invoke(ctx, fullMethod("FinalizeExpired"), &FinalizeExpiredRequest{}, resp); err != nil {
		return nil, err
	}
	if err := resp.Status.err(); err != nil {
		return resp.TaskIDs, err
	}
	return resp.TaskIDs, nil
}

func (c *Client) Retire(ctx context.Context, holder types.Address, taskID uint64, amount types.Amount) error {
	req := &RetireRequest{Holder: holder, TaskID: taskID, Amount: amount.String()}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Retire"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) ListOrder(ctx context.Context, seller types.Address, taskID uint64, amount, pricePerUnit types.Amount) (uint64, error) {
	req := &ListOrderRequest{
		Seller:       seller,
		TaskID:       taskID,
		Amount:       amount.String(),
		PricePerUnit: pricePerUnit.String(),
	}
	resp := new(ListOrderResponse)
	if err := c.cc.Invoke(ctx, fullMethod("ListOrder"), req, resp); err != nil {
		return 0, err
	}
	if err := resp.Status.err(); err != nil {
		return 0, err
	}
	return resp.OrderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID uint64, seller types.Address) error {
	req := &CancelOrderRequest{OrderID: orderID, Seller: seller}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("CancelOrder"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) Buy(ctx context.Context, orderID uint64, buyer types.Address, amount types.Amount) (types.Trade, error) {
	req := &BuyRequest{OrderID: orderID, Buyer: buyer, Amount: amount.String()}
	resp := new(BuyResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Buy"), req, resp); err != nil {
		return types.Trade{}, err
	}
	if err := resp.Status.err(); err != nil {
		return types.Trade{}, err
	}
	trade := types.Trade{
		OrderID:     orderID,
		TaskID:      resp.TaskID,
		Buyer:       buyer,
		Seller:      resp.Seller,
		OrderActive: resp.OrderActive,
	}
	var err error
	if trade.Amount, err = types.ParseAmount(resp.Amount); err != nil {
		return types.Trade{}, fmt.Errorf("gaia client: trade amount: %w", err)
	}
	if trade.Cost, err = types.ParseAmount(resp.Cost); err != nil {
		return types.Trade{}, fmt.Errorf("gaia client: trade cost: %w", err)
	}
	if trade.OrderRemaining, err = types.ParseAmount(resp.OrderRemaining); err != nil {
		return types.Trade{}, fmt.Errorf("gaia client: order remaining: %w", err)
	}
	return trade, nil
}

func (c *Client) AddValidator(ctx context.Context, authority, validator types.Address, weight uint64) error {
	req := &ValidatorRequest{Authority: authority, Validator: validator, Weight: weight}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("AddValidator"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

func (c *Client) RemoveValidator(ctx context.Context, authority, validator types.Address) error {
	req := &ValidatorRequest{Authority: authority, Validator: validator}
	resp := new(StatusResponse)
	if err := c.cc.Invoke(ctx, fullMethod("RemoveValidator"), req, resp); err != nil {
		return err
	}
	return resp.Status.err()
}

// --- Read queries ---

// query invokes the generic Query RPC and decodes the JSON payload
// into out.
func (c *Client) query(ctx context.Context, path string, params, out any) error {
	var data []byte
	if params != nil {
		var err error
		if data, err = json.Marshal(params); err != nil {
			return fmt.Errorf("gaia client: encode query params: %w", err)
		}
	}
	resp := new(QueryResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Query"), &QueryRequest{Path: path, Data: data}, resp); err != nil {
		return err
	}
	if err := resp.Status.err(); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("gaia client: decode %s payload: %w", path, err)
	}
	return nil
}

func (c *Client) Task(ctx context.Context, id uint64) (types.Task, error) {
	var task types.Task
	err := c.query(ctx, QueryTask, taskQuery{TaskID: id}, &task)
	return task, err
}

func (c *Client) Tasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	var tasks []types.Task
	q := tasksQuery{Status: f.Status, Proposer: f.Proposer, Operator: f.Operator, DueBefore: f.DueBefore}
	err := c.query(ctx, QueryTasks, q, &tasks)
	return tasks, err
}

func (c *Client) FundingProgress(ctx context.Context, taskID uint64) (types.FundingProgress, error) {
	var p types.FundingProgress
	err := c.query(ctx, QueryFunding, taskQuery{TaskID: taskID}, &p)
	return p, err
}

func (c *Client) Contributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error) {
	var cs []types.FundingContribution
	err := c.query(ctx, QueryContribs, taskQuery{TaskID: taskID}, &cs)
	return cs, err
}

func (c *Client) Votes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error) {
	var votes []types.VerificationVote
	err := c.query(ctx, QueryVotes, taskQuery{TaskID: taskID}, &votes)
	return votes, err
}

func (c *Client) Outcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, error) {
	var o types.VerificationOutcome
	err := c.query(ctx, QueryOutcome, taskQuery{TaskID: taskID}, &o)
	return o, err
}

func (c *Client) CreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error) {
	var b types.CreditBalance
	err := c.query(ctx, QueryCredits, creditQuery{Holder: holder, TaskID: taskID}, &b)
	return b, err
}

func (c *Client) SettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error) {
	var r balanceResult
	err := c.query(ctx, QueryBalance, holderQuery{Holder: holder}, &r)
	return r.Balance, err
}

func (c *Client) Orders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error) {
	var orders []types.MarketOrder
	q := ordersQuery{TaskID: f.TaskID, Seller: f.Seller, ActiveOnly: f.ActiveOnly}
	err := c.query(ctx, QueryOrders, q, &orders)
	return orders, err
}

func (c *Client) Validators(ctx context.Context) (types.ValidatorSet, error) {
	var set types.ValidatorSet
	err := c.query(ctx, QueryValidators, nil, &set)
	return set, err
}

func (c *Client) Rules(ctx context.Context) (rules.ProtocolRules, error) {
	var r rules.ProtocolRules
	err := c.query(ctx, QueryRules, nil, &r)
	return r, err
}
