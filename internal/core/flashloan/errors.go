package flashloan

import "errors"

var (
	// ErrUnsupportedAsset is returned when the pool holds no reserve for the
	// requested asset.
	ErrUnsupportedAsset = errors.New("flashloan: unsupported asset")

	// ErrInvalidLoanAmount is returned when the requested amount is zero or
	// exceeds the pool's lendable holdings.
	ErrInvalidLoanAmount = errors.New("flashloan: invalid loan amount")

	// ErrCallbackRejected is returned when the borrower callback fails or does
	// not return the acknowledgment constant.
	ErrCallbackRejected = errors.New("flashloan: callback rejected")

	// ErrRepaymentShortfall is returned when the pool's holdings after the
	// callback do not cover the disbursed amount plus the fee.
	ErrRepaymentShortfall = errors.New("flashloan: repayment shortfall")

	// ErrPoolNotRevertible is returned by NewLender when the pool's asset
	// mover cannot roll back partial state.
	ErrPoolNotRevertible = errors.New("flashloan: pool mover does not support rollback")
)
