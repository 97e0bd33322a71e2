package gaiagrpc

import "github.com/arko05roy/gaia-core/types"

// Wire envelopes for the RPC boundary. Amounts travel as base-10 raw
// integer strings so the fixed-point values cross the wire exactly;
// everything else maps directly onto cramberry struct tags.

// Status carries the in-band outcome of a command. A zero Code is
// success; any other value is a protocol error code plus detail.
type Status struct {
	Code   uint32 `cramberry:"1"`
	Info   string `cramberry:"2"`
	TaskID uint64 `cramberry:"3"`
}

// StatusResponse is the response of commands returning nothing else.
type StatusResponse struct {
	Status Status `cramberry:"1"`
}

type CreateTaskRequest struct {
	Proposer          types.Address   `cramberry:"1"`
	Description       string          `cramberry:"2"`
	Location          string          `cramberry:"3"`
	EstimatedCost     string          `cramberry:"4"`
	ExpectedImpact    string          `cramberry:"5"`
	ProofRequirements string          `cramberry:"6"`
	Deadline          types.Timestamp `cramberry:"7"`
	EvidenceHash      types.Hash      `cramberry:"8"`
}

type CreateTaskResponse struct {
	Status Status `cramberry:"1"`
	TaskID uint64 `cramberry:"2"`
}

// BalanceRequest serves both Deposit and Withdraw.
type BalanceRequest struct {
	Holder types.Address `cramberry:"1"`
	Amount string        `cramberry:"2"`
}

type FundRequest struct {
	TaskID uint64        `cramberry:"1"`
	Funder types.Address `cramberry:"2"`
	Amount string        `cramberry:"3"`
}

type FundResponse struct {
	Status Status `cramberry:"1"`
	Funded string `cramberry:"2"`
	Target string `cramberry:"3"`
	State  uint8  `cramberry:"4"`
}

type CollateralRequest struct {
	TaskID   uint64        `cramberry:"1"`
	Operator types.Address `cramberry:"2"`
	Amount   string        `cramberry:"3"`
}

type AssignOperatorRequest struct {
	TaskID   uint64        `cramberry:"1"`
	Operator types.Address `cramberry:"2"`
}

type VoteRequest struct {
	TaskID        uint64        `cramberry:"1"`
	Validator     types.Address `cramberry:"2"`
	Decision      uint8         `cramberry:"3"`
	ConfidenceBps uint32        `cramberry:"4"`
	Justification string        `cramberry:"5"`
}

type VoteResponse struct {
	Status        Status `cramberry:"1"`
	ApproveWeight uint64 `cramberry:"2"`
	RejectWeight  uint64 `cramberry:"3"`
	QuorumWeight  uint64 `cramberry:"4"`
	Finalized     bool   `cramberry:"5"`
	Decision      uint8  `cramberry:"6"`
}

type FinalizeExpiredRequest struct{}

type FinalizeExpiredResponse struct {
	Status  Status   `cramberry:"1"`
	TaskIDs []uint64 `cramberry:"2"`
}

type RetireRequest struct {
	Holder types.Address `cramberry:"1"`
	TaskID uint64        `cramberry:"2"`
	Amount string        `cramberry:"3"`
}

type ListOrderRequest struct {
	Seller       types.Address `cramberry:"1"`
	TaskID       uint64        `cramberry:"2"`
	Amount       string        `cramberry:"3"`
	PricePerUnit string        `cramberry:"4"`
}

type ListOrderResponse struct {
	Status  Status `cramberry:"1"`
	OrderID uint64 `cramberry:"2"`
}

type CancelOrderRequest struct {
	OrderID uint64        `cramberry:"1"`
	Seller  types.Address `cramberry:"2"`
}

type BuyRequest struct {
	OrderID uint64        `cramberry:"1"`
	Buyer   types.Address `cramberry:"2"`
	Amount  string        `cramberry:"3"`
}

type BuyResponse struct {
	Status         Status        `cramberry:"1"`
	TaskID         uint64        `cramberry:"2"`
	Seller         types.Address `cramberry:"3"`
	Amount         string        `cramberry:"4"`
	Cost           string        `cramberry:"5"`
	OrderRemaining string        `cramberry:"6"`
	OrderActive    bool          `cramberry:"7"`
}

type ValidatorRequest struct {
	Authority types.Address `cramberry:"1"`
	Validator types.Address `cramberry:"2"`
	Weight    uint64        `cramberry:"3"`
}

// QueryRequest is the generic read query: a path selecting the
// query, and JSON-encoded parameters.
type QueryRequest struct {
	Path string `cramberry:"1"`
	Data []byte `cramberry:"2"`
}

// QueryResponse carries the JSON-encoded query result.
type QueryResponse struct {
	Status  Status `cramberry:"1"`
	Payload []byte `cramberry:"2"`
}
