package gaiagrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/types"
)

// Compile-time interface check.
var _ GaiaServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a protocol core over gRPC. Protocol errors map
// to in-band status codes so clients can recover the typed error;
// only infrastructure failures surface as transport errors.
type GRPCServer struct {
	core gaia.Core
}

// NewGRPCServer wraps the given core.
func NewGRPCServer(core gaia.Core) *GRPCServer {
	return &GRPCServer{core: core}
}

// Register adds the Gaia service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterGaiaServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// statusOf splits an error into an in-band status and a transport
// error. Protocol errors (those carrying a code) go in-band;
// anything else aborts the RPC.
func statusOf(err error) (Status, error) {
	if err == nil {
		return Status{}, nil
	}
	code := gaia.CodeOf(err)
	if code == 0 {
		return Status{}, err
	}
	st := Status{Code: uint32(code), Info: err.Error()}
	var perr *gaia.Error
	if errors.As(err, &perr) {
		st.TaskID = perr.TaskID
	}
	var terr *gaia.TransitionError
	if errors.As(err, &terr) {
		st.TaskID = terr.TaskID
	}
	return st, nil
}

func statusResponse(err error) (*StatusResponse, error) {
	st, rpcErr := statusOf(err)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &StatusResponse{Status: st}, nil
}

func parseWireAmount(s, field string) (types.Amount, error) {
	a, err := types.ParseAmount(s)
	if err != nil {
		return types.Amount{}, gaia.Errf(gaia.CodeInvalidParameters, 0, "%s: %v", field, err)
	}
	return a, nil
}

// --- Commands ---

func (s *GRPCServer) CreateTask(ctx context.Context, req *CreateTaskRequest) (*CreateTaskResponse, error) {
	p := types.CreateTaskParams{
		Proposer:          req.Proposer,
		Description:       req.Description,
		Location:          req.Location,
		ProofRequirements: req.ProofRequirements,
		Deadline:          req.Deadline,
		EvidenceHash:      req.EvidenceHash,
	}
	var err error
	if p.EstimatedCost, err = parseWireAmount(req.EstimatedCost, "estimated_cost"); err == nil {
		p.ExpectedImpact, err = parseWireAmount(req.ExpectedImpact, "expected_impact")
	}
	if err == nil {
		var id uint64
		if id, err = s.core.CreateTask(ctx, p); err == nil {
			return &CreateTaskResponse{TaskID: id}, nil
		}
	}
	st, rpcErr := statusOf(err)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &CreateTaskResponse{Status: st}, nil
}

func (s *GRPCServer) Deposit(ctx context.Context, req *BalanceRequest) (*StatusResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		err = s.core.Deposit(ctx, req.Holder, amount)
	}
	return statusResponse(err)
}

func (s *GRPCServer) Withdraw(ctx context.Context, req *BalanceRequest) (*StatusResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		err = s.core.Withdraw(ctx, req.Holder, amount)
	}
	return statusResponse(err)
}

func (s *GRPCServer) Fund(ctx context.Context, req *FundRequest) (*FundResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		var p types.FundingProgress
		if p, err = s.core.Fund(ctx, req.TaskID, req.Funder, amount); err == nil {
			return &FundResponse{
				Funded: p.Funded.String(),
				Target: p.Target.String(),
				State:  uint8(p.Status),
			}, nil
		}
	}
	st, rpcErr := statusOf(err)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &FundResponse{Status: st}, nil
}

func (s *GRPCServer) PostCollateral(ctx context.Context, req *CollateralRequest) (*StatusResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		err = s.core.PostCollateral(ctx, req.TaskID, req.Operator, amount)
	}
	return statusResponse(err)
}

func (s *GRPCServer) AssignOperator(ctx context.Context, req *AssignOperatorRequest) (*StatusResponse, error) {
	return statusResponse(s.core.AssignOperator(ctx, req.TaskID, req.Operator))
}

func (s *GRPCServer) CastVote(ctx context.Context, req *VoteRequest) (*VoteResponse, error) {
	tally, err := s.core.CastVote(ctx, types.VoteParams{
		TaskID:        req.TaskID,
		Validator:     req.Validator,
		Decision:      types.Decision(req.Decision),
		ConfidenceBps: req.ConfidenceBps,
		Justification: req.Justification,
	})
	if err != nil {
		st, rpcErr := statusOf(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &VoteResponse{Status: st}, nil
	}
	return &VoteResponse{
		ApproveWeight: tally.ApproveWeight,
		RejectWeight:  tally.RejectWeight,
		QuorumWeight:  tally.QuorumWeight,
		Finalized:     tally.Finalized,
		Decision:      uint8(tally.Decision),
	}, nil
}

func (s *GRPCServer) FinalizeExpired(ctx context.Context, _ *FinalizeExpiredRequest) (*FinalizeExpiredResponse, error) {
	ids, err := s.core.FinalizeExpired(ctx)
	if err != nil {
		st, rpcErr := statusOf(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &FinalizeExpiredResponse{Status: st, TaskIDs: ids}, nil
	}
	return &FinalizeExpiredResponse{TaskIDs: ids}, nil
}

func (s *GRPCServer) Retire(ctx context.Context, req *RetireRequest) (*StatusResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		err = s.core.Retire(ctx, req.Holder, req.TaskID, amount)
	}
	return statusResponse(err)
}

func (s *GRPCServer) ListOrder(ctx context.Context, req *ListOrderRequest) (*ListOrderResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	var price types.Amount
	if err == nil {
		price, err = parseWireAmount(req.PricePerUnit, "price_per_unit")
	}
	if err == nil {
		var id uint64
		if id, err = s.core.ListOrder(ctx, req.Seller, req.TaskID, amount, price); err == nil {
			return &ListOrderResponse{OrderID: id}, nil
		}
	}
	st, rpcErr := statusOf(err)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &ListOrderResponse{Status: st}, nil
}

func (s *GRPCServer) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*StatusResponse, error) {
	return statusResponse(s.core.CancelOrder(ctx, req.OrderID, req.Seller))
}

func (s *GRPCServer) Buy(ctx context.Context, req *BuyRequest) (*BuyResponse, error) {
	amount, err := parseWireAmount(req.Amount, "amount")
	if err == nil {
		var trade types.Trade
		if trade, err = s.core.Buy(ctx, req.OrderID, req.Buyer, amount); err == nil {
			return &BuyResponse{
				TaskID:         trade.TaskID,
				Seller:         trade.Seller,
				Amount:         trade.Amount.String(),
				Cost:           trade.Cost.String(),
				OrderRemaining: trade.OrderRemaining.String(),
				OrderActive:    trade.OrderActive,
			}, nil
		}
	}
	st, rpcErr := statusOf(err)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &BuyResponse{Status: st}, nil
}

func (s *GRPCServer) AddValidator(ctx context.Context, req *ValidatorRequest) (*StatusResponse, error) {
	return statusResponse(s.core.AddValidator(ctx, req.Authority, req.Validator, req.Weight))
}

func (s *GRPCServer) RemoveValidator(ctx context.Context, req *ValidatorRequest) (*StatusResponse, error) {
	return statusResponse(s.core.RemoveValidator(ctx, req.Authority, req.Validator))
}

// --- Query ---

func (s *GRPCServer) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	result, err := s.query(ctx, req.Path, req.Data)
	if err != nil {
		st, rpcErr := statusOf(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &QueryResponse{Status: st}, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode query result: %w", err)
	}
	return &QueryResponse{Payload: payload}, nil
}

func (s *GRPCServer) query(ctx context.Context, path string, data []byte) (any, error) {
	decode := func(v any) error {
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, v); err != nil {
			return gaia.Errf(gaia.CodeInvalidParameters, 0, "query params: %v", err)
		}
		return nil
	}

	switch path {
	case QueryTask:
		var q taskQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Task(ctx, q.TaskID)
	case QueryTasks:
		var q tasksQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Tasks(ctx, q.filter())
	case QueryFunding:
		var q taskQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.FundingProgress(ctx, q.TaskID)
	case QueryContribs:
		var q taskQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Contributions(ctx, q.TaskID)
	case QueryVotes:
		var q taskQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Votes(ctx, q.TaskID)
	case QueryOutcome:
		var q taskQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Outcome(ctx, q.TaskID)
	case QueryCredits:
		var q creditQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.CreditBalance(ctx, q.Holder, q.TaskID)
	case QueryBalance:
		var q holderQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		bal, err := s.core.SettlementBalance(ctx, q.Holder)
		if err != nil {
			return nil, err
		}
		return balanceResult{Balance: bal}, nil
	case QueryOrders:
		var q ordersQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return s.core.Orders(ctx, q.filter())
	case QueryValidators:
		return s.core.Validators(ctx)
	case QueryRules:
		return s.core.Rules(ctx)
	default:
		return nil, gaia.Errf(gaia.CodeInvalidParameters, 0, "unknown query path %q", path)
	}
}
