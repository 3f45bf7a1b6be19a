// Package vol implements the per-symbol rolling log-return volatility
// estimator: a bounded price window feeding a bounded log-return window,
// producing a single scalar standard-deviation estimate on demand.
package vol

import (
	"math"

	"marketmaker/internal/ring"
)

// DefaultWindowSize is used when a caller does not configure one explicitly.
const DefaultWindowSize = 100

// Estimator tracks recent mid prices and their log-returns for one symbol.
// Not safe for concurrent use; callers (risk engine, market maker) hold
// their own component-wide lock around Update/Volatility.
type Estimator struct {
	prices  *ring.Buffer[float64]
	returns *ring.Buffer[float64]
}

// New allocates an estimator with the given window size (number of prices
// retained; the return window is windowSize-1).
func New(windowSize int) *Estimator {
	if windowSize < 2 {
		windowSize = DefaultWindowSize
	}
	return &Estimator{
		prices:  ring.New[float64](windowSize),
		returns: ring.New[float64](windowSize - 1),
	}
}

// Update appends price to the window and, once a prior price is known,
// appends its log-return. Non-positive prices are rejected; the caller
// should skip the observation entirely rather than corrupt the window.
func (e *Estimator) Update(price float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}
	prev, hadPrev := e.prices.Last()
	e.prices.Push(price)
	if !hadPrev {
		// First observation seeds the price window only; it must not
		// manufacture a spurious return against an undefined base.
		return
	}
	if prev <= 0 {
		return
	}
	r := math.Log(price / prev)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return
	}
	e.returns.Push(r)
}

// Volatility returns sqrt(mean(r^2) - mean(r)^2) over the current log-return
// window, or 0 when fewer than two returns exist or the result would be
// degenerate (negative variance from floating point error, NaN).
func (e *Estimator) Volatility() float64 {
	n := e.returns.Len()
	if n < 2 {
		return 0
	}
	var sum, sumSq float64
	e.returns.Each(func(r float64) {
		sum += r
		sumSq += r * r
	})
	mean := sum / float64(n)
	meanSq := sumSq / float64(n)
	variance := meanSq - mean*mean
	if variance <= 0 || math.IsNaN(variance) {
		return 0
	}
	sd := math.Sqrt(variance)
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0
	}
	return sd
}

// Reset discards all observations.
func (e *Estimator) Reset() {
	e.prices.Reset()
	e.returns.Reset()
}
