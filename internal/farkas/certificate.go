// Package farkas checks Farkas-style dual certificates. A certificate
// (alpha, beta, gamma) for a history witnesses that no distribution of
// voters over ballots makes that history a chain of profitable deviations
// from swap-stable committees. Every check is exact rational arithmetic.
package farkas

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Dicklesworthstone/pavcore/internal/history"
)

// ErrMalformedCertificate reports a certificate whose shape does not match
// the history it claims to certify.
var ErrMalformedCertificate = errors.New("malformed certificate")

// SwapIndex addresses a beta coefficient: the swap of committee member X for
// non-member Y at the given step of the history.
type SwapIndex struct {
	Step int
	X, Y int
}

// Certificate holds the dual multipliers. Beta entries that are absent are
// zero; Gamma has one entry per step.
type Certificate struct {
	Alpha *big.Rat
	Beta  map[SwapIndex]*big.Rat
	Gamma []*big.Rat
}

// BetaAt returns the beta coefficient of a swap, or nil when it is zero.
func (c *Certificate) BetaAt(step, x, y int) *big.Rat {
	v := c.Beta[SwapIndex{Step: step, X: x, Y: y}]
	if v == nil || v.Sign() == 0 {
		return nil
	}
	return v
}

// Validate checks that c has a coefficient for everything the verifier
// reads when certifying h.
func (c *Certificate) Validate(h history.History) error {
	if c == nil {
		return fmt.Errorf("%w: %s: no certificate", ErrMalformedCertificate, h.Label())
	}
	if c.Alpha == nil {
		return fmt.Errorf("%w: %s: alpha missing", ErrMalformedCertificate, h.Label())
	}
	if len(c.Gamma) != h.Depth() {
		return fmt.Errorf("%w: %s: %d gamma coefficients for %d steps", ErrMalformedCertificate, h.Label(), len(c.Gamma), h.Depth())
	}
	for i, g := range c.Gamma {
		if g == nil {
			return fmt.Errorf("%w: %s: gamma[%d] missing", ErrMalformedCertificate, h.Label(), i)
		}
	}
	for idx := range c.Beta {
		if idx.Step < 0 || idx.Step >= h.Depth() {
			return fmt.Errorf("%w: %s: beta for step %d of %d", ErrMalformedCertificate, h.Label(), idx.Step, h.Depth())
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Certificate) Clone() *Certificate {
	out := &Certificate{
		Alpha: new(big.Rat).Set(c.Alpha),
		Beta:  make(map[SwapIndex]*big.Rat, len(c.Beta)),
		Gamma: make([]*big.Rat, len(c.Gamma)),
	}
	for k, v := range c.Beta {
		out.Beta[k] = new(big.Rat).Set(v)
	}
	for i, g := range c.Gamma {
		out.Gamma[i] = new(big.Rat).Set(g)
	}
	return out
}
