package rpc

import (
	"errors"

	"github.com/LeJamon/goflashd/internal/core/factory"
	"github.com/LeJamon/goflashd/internal/core/flashloan"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/service"
	"github.com/LeJamon/goflashd/internal/storage/statestore"
)

// RpcError is the wire form of a failed call.
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Message     string `json:"error_message,omitempty"`
}

func (e *RpcError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorString
}

// Error codes. Negative values follow JSON-RPC conventions; positive values
// are domain results.
const (
	RpcJSON_RPC         = -32600
	RpcMETHOD_NOT_FOUND = -32601
	RpcINVALID_PARAMS   = -32602
	RpcINTERNAL         = -32603

	RpcGENERAL          = 1
	RpcMISSING_COMMAND  = 2
	RpcINSTANCE_EXISTS  = 10
	RpcINSTANCE_UNKNOWN = 11
	RpcBAD_DEPOSIT      = 12
	RpcNO_FUNDS         = 13
	RpcREENTRANT        = 14
	RpcBAD_ASSET        = 15
	RpcBAD_AMOUNT       = 16
	RpcCALLBACK         = 17
	RpcSHORTFALL        = 18
	RpcMOVE_FAILED      = 19
	RpcNOT_FOUND        = 20
	RpcNO_HISTORY       = 21
)

func NewRpcError(code int, errorString, message string) *RpcError {
	return &RpcError{Code: code, ErrorString: errorString, Message: message}
}

func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(RpcMETHOD_NOT_FOUND, "unknownCmd", "Unknown method: "+method)
}

func RpcErrorInvalidParams(message string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", message)
}

func RpcErrorInternal(message string) *RpcError {
	return NewRpcError(RpcINTERNAL, "internal", message)
}

// WrapError maps a settlement error to its wire form.
func WrapError(err error) *RpcError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, factory.ErrInstanceExists):
		return NewRpcError(RpcINSTANCE_EXISTS, "instanceExists", err.Error())
	case errors.Is(err, factory.ErrInstanceNotFound):
		return NewRpcError(RpcINSTANCE_UNKNOWN, "instanceNotFound", err.Error())
	case errors.Is(err, ledger.ErrInvalidDeposit):
		return NewRpcError(RpcBAD_DEPOSIT, "invalidDeposit", err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return NewRpcError(RpcNO_FUNDS, "insufficientBalance", err.Error())
	case errors.Is(err, ledger.ErrReentrant):
		return NewRpcError(RpcREENTRANT, "reentrant", err.Error())
	case errors.Is(err, ledger.ErrAssetTransferFailed):
		return NewRpcError(RpcMOVE_FAILED, "assetTransferFailed", err.Error())
	case errors.Is(err, flashloan.ErrUnsupportedAsset):
		return NewRpcError(RpcBAD_ASSET, "unsupportedAsset", err.Error())
	case errors.Is(err, flashloan.ErrInvalidLoanAmount):
		return NewRpcError(RpcBAD_AMOUNT, "invalidLoanAmount", err.Error())
	case errors.Is(err, flashloan.ErrCallbackRejected):
		return NewRpcError(RpcCALLBACK, "callbackRejected", err.Error())
	case errors.Is(err, flashloan.ErrRepaymentShortfall):
		return NewRpcError(RpcSHORTFALL, "repaymentShortfall", err.Error())
	case errors.Is(err, statestore.ErrNotFound):
		return NewRpcError(RpcNOT_FOUND, "notFound", err.Error())
	case errors.Is(err, service.ErrHistoryDisabled):
		return NewRpcError(RpcNO_HISTORY, "noHistory", err.Error())
	default:
		return NewRpcError(RpcGENERAL, "general", err.Error())
	}
}
