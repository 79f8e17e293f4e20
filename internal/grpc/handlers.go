package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/factory"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/types"
)

// GetInstanceRequest represents a request to get instance information.
type GetInstanceRequest struct {
	// Instance is the 20-byte identity of the instance
	Instance types.AccountID
}

// GetInstanceResponse represents the response containing instance information.
type GetInstanceResponse struct {
	// Instance is the identity of the instance
	Instance types.AccountID

	// FeeRate is the loan fee rate in parts per million
	FeeRate uint32

	// FeeRecipient is the account credited with loan fees
	FeeRecipient types.AccountID

	// Reserves maps asset identifiers to tracked reserve totals
	Reserves map[types.AssetID]uint64
}

// GetInstance retrieves the parameters and reserves of a deployed instance.
func (s *Server) GetInstance(ctx context.Context, req *GetInstanceRequest) (*GetInstanceResponse, error) {
	if s.settlement == nil {
		return nil, status.Error(codes.Internal, "settlement service not available")
	}

	inst, err := s.settlement.Instance(req.Instance)
	if err != nil {
		if errors.Is(err, factory.ErrInstanceNotFound) {
			return nil, status.Error(codes.NotFound, "instance not found")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	_, reserves := inst.Snapshot()
	reserveMap := make(map[types.AssetID]uint64, len(reserves))
	for assetID, qty := range reserves {
		reserveMap[assetID] = uint64(qty)
	}

	return &GetInstanceResponse{
		Instance:     inst.Identity(),
		FeeRate:      uint32(inst.FeeRate()),
		FeeRecipient: inst.FeeRecipient(),
		Reserves:     reserveMap,
	}, nil
}

// ListInstancesRequest represents a request to list deployed instances.
type ListInstancesRequest struct{}

// ListInstancesResponse represents the response containing instance identities.
type ListInstancesResponse struct {
	// Instances holds the identities of all deployed instances
	Instances []types.AccountID

	// OperationSeq is the service-wide operation sequence number
	OperationSeq uint64
}

// ListInstances retrieves the identities of all deployed instances.
func (s *Server) ListInstances(ctx context.Context, req *ListInstancesRequest) (*ListInstancesResponse, error) {
	if s.settlement == nil {
		return nil, status.Error(codes.Internal, "settlement service not available")
	}

	info := s.settlement.Info()
	return &ListInstancesResponse{
		Instances:    s.settlement.Instances(),
		OperationSeq: info.Seq,
	}, nil
}

// GetBalanceRequest represents a request to get an account balance.
type GetBalanceRequest struct {
	// Instance is the identity of the instance to query
	Instance types.AccountID

	// Asset is the asset identifier
	Asset types.AssetID

	// Account is the account whose balance is requested
	Account types.AccountID
}

// GetBalanceResponse represents the response containing an account balance.
type GetBalanceResponse struct {
	// Balance is the credited balance of the account
	Balance uint64

	// Reserves is the tracked reserve total for the asset
	Reserves uint64
}

// GetBalance retrieves the credited balance of an account for an asset.
func (s *Server) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	if s.settlement == nil {
		return nil, status.Error(codes.Internal, "settlement service not available")
	}

	inst, err := s.settlement.Instance(req.Instance)
	if err != nil {
		if errors.Is(err, factory.ErrInstanceNotFound) {
			return nil, status.Error(codes.NotFound, "instance not found")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &GetBalanceResponse{
		Balance:  uint64(inst.BalanceOf(req.Asset, req.Account)),
		Reserves: uint64(inst.ReserveTotal(req.Asset)),
	}, nil
}

// GetLoanQuoteRequest represents a request to quote a flash loan.
type GetLoanQuoteRequest struct {
	// Instance is the identity of the instance to query
	Instance types.AccountID

	// Asset is the asset identifier
	Asset types.AssetID

	// Amount is the desired loan amount. When zero only the maximum
	// lendable amount is reported and no fee is quoted.
	Amount uint64
}

// GetLoanQuoteResponse represents the response containing a loan quote.
type GetLoanQuoteResponse struct {
	// MaxLoan is the largest amount lendable for the asset
	MaxLoan uint64

	// Fee is the fee for borrowing the requested amount
	Fee uint64
}

// GetLoanQuote quotes the maximum lendable amount and, when an amount is
// given, the fee for borrowing it.
func (s *Server) GetLoanQuote(ctx context.Context, req *GetLoanQuoteRequest) (*GetLoanQuoteResponse, error) {
	if s.settlement == nil {
		return nil, status.Error(codes.Internal, "settlement service not available")
	}

	maxLoan, err := s.settlement.MaxFlashLoan(req.Instance, req.Asset)
	if err != nil {
		if errors.Is(err, factory.ErrInstanceNotFound) {
			return nil, status.Error(codes.NotFound, "instance not found")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &GetLoanQuoteResponse{MaxLoan: uint64(maxLoan)}

	if req.Amount > 0 {
		fee, err := s.settlement.FlashFee(req.Instance, req.Asset, amount.Quantity(req.Amount))
		if err != nil {
			if errors.Is(err, flashloan.ErrUnsupportedAsset) {
				return nil, status.Error(codes.FailedPrecondition, "asset has no reserves")
			}
			return nil, status.Error(codes.Internal, err.Error())
		}
		resp.Fee = uint64(fee)
	}

	return resp, nil
}
