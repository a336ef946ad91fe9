package pool

import "errors"

// Validation errors.
var (
	ErrInvalidAmount  = errors.New("pool engine: amount must be positive")
	ErrInvalidPercent = errors.New("pool engine: percentage out of range")
	ErrInvalidConfig  = errors.New("pool engine: invalid configuration")
)

// Capacity errors.
var (
	ErrDepositLimit          = errors.New("pool engine: amount exceeds depositable limit")
	ErrInsufficientLiquidity = errors.New("pool engine: insufficient liquidity")
	ErrInsufficientShares    = errors.New("pool engine: insufficient shares")
	ErrNothingToWithdraw     = errors.New("pool engine: nothing to withdraw")
)

// Authorization errors.
var (
	ErrUnauthorized = errors.New("pool engine: caller not authorized")
)

// Per-loan idempotency errors.
var (
	ErrLoanAlreadyFunded = errors.New("pool engine: loan funds already released")
	ErrLoanNotFunded     = errors.New("pool engine: loan funds not released")
	ErrLoanClosed        = errors.New("pool engine: loan already closed")
)

// State errors.
var (
	ErrPoolPaused          = errors.New("pool engine: pool paused")
	ErrPoolClosed          = errors.New("pool engine: pool closed")
	ErrPoolNotClosable     = errors.New("pool engine: pool cannot be closed")
	ErrReentrantCall       = errors.New("pool engine: reentrant call")
	ErrAccountingUnderflow = errors.New("pool engine: accounting underflow")
	ErrInvariantViolation  = errors.New("pool engine: ledger invariant violated")
	errNilState            = errors.New("pool engine: state not configured")
)
