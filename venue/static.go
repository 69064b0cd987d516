package venue

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrUnknownRoute is returned when a quote or conversion names a route the
	// venue has no rate for.
	ErrUnknownRoute = errors.New("venue: unknown route")
	// ErrRouteMismatch is returned when a route exists but does not connect
	// the requested asset pair.
	ErrRouteMismatch = errors.New("venue: route does not serve asset pair")
	// ErrOutputBelowMin is returned when the realised output would fall below
	// the caller's guard.
	ErrOutputBelowMin = errors.New("venue: insufficient output amount")
)

type route struct {
	assetIn  string
	assetOut string
	num      *big.Int
	den      *big.Int
}

// Static is a deterministic in-process exchange venue. Every named route
// converts a fixed asset pair at a fixed rational rate. It stands in for the
// external exchange during local operation and tests.
type Static struct {
	mu     sync.RWMutex
	routes map[string]route
}

// NewStatic creates an empty venue.
func NewStatic() *Static {
	return &Static{routes: make(map[string]route)}
}

// SetRoute installs or replaces a named route converting assetIn to assetOut
// at rate num/den.
func (v *Static) SetRoute(name, assetIn, assetOut string, num, den *big.Int) error {
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 {
		return fmt.Errorf("venue: rate for route %q must be positive", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.routes[name] = route{
		assetIn:  assetIn,
		assetOut: assetOut,
		num:      new(big.Int).Set(num),
		den:      new(big.Int).Set(den),
	}
	return nil
}

func (v *Static) lookup(assetIn, assetOut, name string) (route, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r, ok := v.routes[name]
	if !ok {
		return route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	if r.assetIn != assetIn || r.assetOut != assetOut {
		return route{}, fmt.Errorf("%w: %s", ErrRouteMismatch, name)
	}
	return r, nil
}

// Quote sizes the output for amountIn without side effects.
func (v *Static) Quote(assetIn, assetOut, name string, amountIn *big.Int) (*big.Int, error) {
	r, err := v.lookup(assetIn, assetOut, name)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(amountIn, r.num)
	return out.Quo(out, r.den), nil
}

// Convert performs the conversion and fails when the output would fall below
// minOut.
func (v *Static) Convert(assetIn, assetOut, name string, amountIn, minOut *big.Int) (*big.Int, error) {
	out, err := v.Quote(assetIn, assetOut, name, amountIn)
	if err != nil {
		return nil, err
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrOutputBelowMin
	}
	return out, nil
}
