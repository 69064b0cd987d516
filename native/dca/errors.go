package dca

import "errors"

var (
	errNilState     = errors.New("dca engine: state not configured")
	errNilVenue     = errors.New("dca engine: venue not configured")
	errNilRegistrar = errors.New("dca engine: task registrar not configured")
)

// Structural and authorization failures. These abort the entire call with no
// state change.
var (
	ErrUnauthorized        = errors.New("dca engine: unauthorized")
	ErrLengthMismatch      = errors.New("dca engine: input length mismatch")
	ErrNoPosition          = errors.New("dca engine: no position")
	ErrZeroAmount          = errors.New("dca engine: amount must be positive")
	ErrGuardLengthMismatch = errors.New("dca engine: guard length mismatch")
	ErrNotMature           = errors.New("dca engine: dca not mature")
	ErrTaskAlreadyArmed    = errors.New("dca engine: task already armed")
	ErrNotPreFunded        = errors.New("dca engine: position is not pre-funded")
	ErrInvalidFundingMode  = errors.New("dca engine: invalid funding mode")
)

// SetPosition validation failures, one distinct error per violated invariant.
var (
	ErrAssetNotAllowed    = errors.New("dca engine: asset not allowed")
	ErrWeightSumInvalid   = errors.New("dca engine: leg weights must sum to 10000")
	ErrZeroWeight         = errors.New("dca engine: leg weight must be positive")
	ErrSameAssetBothSides = errors.New("dca engine: leg asset equals principal asset")
	ErrPairBlacklisted    = errors.New("dca engine: asset pair blacklisted")
	ErrZeroCycleAmount    = errors.New("dca engine: cycle amount must be positive")
	ErrIntervalTooShort   = errors.New("dca engine: cycle interval below minimum")
	ErrInvalidRoute       = errors.New("dca engine: invalid route")
	ErrSlippageBelowFloor = errors.New("dca engine: slippage below configured floor")
	ErrSlippageAboveCap   = errors.New("dca engine: slippage above 10000 bps")
)

// Funding deficiencies reported by arming checks and fund movements.
var (
	ErrInsufficientTreasury      = errors.New("dca engine: insufficient treasury")
	ErrInsufficientPrincipal     = errors.New("dca engine: insufficient principal")
	ErrInsufficientAllowance     = errors.New("dca engine: insufficient wallet allowance")
	ErrInsufficientWalletBalance = errors.New("dca engine: insufficient wallet balance")
)
