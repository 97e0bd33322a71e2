package gaiagrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "github.com/arko05roy/gaia-core.v1.GaiaService"

// GaiaServiceServer is the server-side interface of the Gaia gRPC
// service.
type GaiaServiceServer interface {
	CreateTask(context.Context, *CreateTaskRequest) (*CreateTaskResponse, error)
	Deposit(context.Context, *BalanceRequest) (*StatusResponse, error)
	Withdraw(context.Context, *BalanceRequest) (*StatusResponse, error)
	Fund(context.Context, *FundRequest) (*FundResponse, error)
	PostCollateral(context.Context, *CollateralRequest) (*StatusResponse, error)
	AssignOperator(context.Context, *AssignOperatorRequest) (*StatusResponse, error)
	CastVote(context.Context, *VoteRequest) (*VoteResponse, error)
	FinalizeExpired(context.Context, *FinalizeExpiredRequest) (*FinalizeExpiredResponse, error)
	Retire(context.Context, *RetireRequest) (*StatusResponse, error)
	ListOrder(context.Context, *ListOrderRequest) (*ListOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*StatusResponse, error)
	Buy(context.Context, *BuyRequest) (*BuyResponse, error)
	AddValidator(context.Context, *ValidatorRequest) (*StatusResponse, error)
	RemoveValidator(context.Context, *ValidatorRequest) (*StatusResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
}

// RegisterGaiaServiceServer registers the service on a gRPC server.
func RegisterGaiaServiceServer(s *grpc.Server, srv GaiaServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary builds a grpc.MethodDesc handler around a typed server
// method.
func unary[Req, Resp any](call func(GaiaServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		return call(srv.(GaiaServiceServer), ctx, req)
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GaiaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTask", Handler: unary(GaiaServiceServer.CreateTask)},
		{MethodName: "Deposit", Handler: unary(GaiaServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unary(GaiaServiceServer.Withdraw)},
		{MethodName: "Fund", Handler: unary(GaiaServiceServer.Fund)},
		{MethodName: "PostCollateral", Handler: unary(GaiaServiceServer.PostCollateral)},
		{MethodName: "AssignOperator", Handler: unary(GaiaServiceServer.AssignOperator)},
		{MethodName: "CastVote", Handler: unary(GaiaServiceServer.CastVote)},
		{MethodName: "FinalizeExpired", Handler: unary(GaiaServiceServer.FinalizeExpired)},
		{MethodName: "Retire", Handler: unary(GaiaServiceServer.Retire)},
		{MethodName: "ListOrder", Handler: unary(GaiaServiceServer.ListOrder)},
		{MethodName: "CancelOrder", Handler: unary(GaiaServiceServer.CancelOrder)},
		{MethodName: "Buy", Handler: unary(GaiaServiceServer.Buy)},
		{MethodName: "AddValidator", Handler: unary(GaiaServiceServer.AddValidator)},
		{MethodName: "RemoveValidator", Handler: unary(GaiaServiceServer.RemoveValidator)},
		{MethodName: "Query", Handler: unary(GaiaServiceServer.Query)},
	},
	Metadata: "github.com/arko05roy/gaia-core/v1/service.cram",
}
