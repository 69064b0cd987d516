package dca

import "math/big"

// TaskRegistrar is the external automation boundary. Arm registers a recurring
// trigger whose predicate is CheckExecutable for the owner and whose target is
// ExecuteDCA; it returns an opaque handle used to disarm the trigger later.
type TaskRegistrar interface {
	Arm(owner [20]byte) (string, error)
	Disarm(handle string) error
}

// Venue is the external quote and exchange boundary. Quote sizes the expected
// output for an input amount without side effects; Convert performs the
// conversion and fails when the realised output would fall below minOut.
type Venue interface {
	Quote(assetIn, assetOut, route string, amountIn *big.Int) (*big.Int, error)
	Convert(assetIn, assetOut, route string, amountIn, minOut *big.Int) (*big.Int, error)
}
