package farkas

import (
	"fmt"
	"math/big"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
	"github.com/Dicklesworthstone/pavcore/internal/history"
)

// Inequality names the condition a certificate failed.
type Inequality string

const (
	// InequalityBallot is the per-ballot dual feasibility condition lhs >= 0.
	InequalityBallot Inequality = "ballot"
	// InequalityObjective is alpha - sum(|T_i|/k * gamma_i) <= -1.
	InequalityObjective Inequality = "objective"
	// InequalitySign is the non-negativity of beta and gamma in strict mode.
	InequalitySign Inequality = "sign"
)

// UnsoundError reports a certificate that does not prove what it claims.
type UnsoundError struct {
	History    history.History
	Inequality Inequality
	// Ballot is the voter type whose inequality failed (ballot checks only).
	Ballot ballot.Set
	// Coefficient names the offending multiplier (sign checks only).
	Coefficient string
	// Value is the failing left-hand side, objective or coefficient.
	Value *big.Rat
}

func (e *UnsoundError) Error() string {
	switch e.Inequality {
	case InequalityBallot:
		return fmt.Sprintf("certificate for %s unsound: ballot %v has slack %s < 0",
			e.History.Label(), e.Ballot, e.Value.RatString())
	case InequalityObjective:
		return fmt.Sprintf("certificate for %s unsound: objective %s > -1",
			e.History.Label(), e.Value.RatString())
	default:
		return fmt.Sprintf("certificate for %s unsound: %s = %s is negative",
			e.History.Label(), e.Coefficient, e.Value.RatString())
	}
}

// Params fixes the instance every certificate of one results map is checked
// against. It is read-only once built and safe to share between workers.
type Params struct {
	NumAlts int
	K       int
	Ballots []ballot.Set
	// RequireNonNegative additionally rejects negative beta or gamma
	// coefficients, the sign conditions weak duality relies on.
	RequireNonNegative bool
}

// NewParams returns the parameters for committees of size k over numAlts
// alternatives with the full ballot universe.
func NewParams(numAlts, k int) (Params, error) {
	if err := ballot.ValidateNumAlts(numAlts); err != nil {
		return Params{}, err
	}
	if k < 1 || k > numAlts {
		return Params{}, fmt.Errorf("committee size %d out of range for %d alternatives", k, numAlts)
	}
	return Params{NumAlts: numAlts, K: k, Ballots: ballot.Universe(numAlts)}, nil
}

var minusOne = big.NewRat(-1, 1)

// swapTerm is a nonzero beta coefficient with its contribution precomputed
// for every utility a ballot can have under the step's committee.
type swapTerm struct {
	swap ballot.Swap
	loss []*big.Rat // loss[u] = beta * (H(u-1) - H(u)) = -beta/u
	gain []*big.Rat // gain[u] = beta * (H(u+1) - H(u)) = beta/(u+1)
}

type checker struct {
	params Params
	h      history.History
	cert   *Certificate
	terms  [][]swapTerm
}

// Verify checks that cert proves h infeasible. For every ballot b the slack
//
//	alpha + sum over steps i while b is active of
//	        sum over swaps (x, y) of beta[i,x,y] * (H(u') - H(u))
//	      - gamma[i] at the first step whose deviation b strictly prefers
//
// must be non-negative, where u and u' are b's utility for the step's
// committee before and after the swap. A ballot that prefers a step's
// deviation is charged that step's gamma and ignored from then on: only its
// first preferred deviation counts, a modelling assumption of the proof.
// Independently, alpha - sum(|T_i|/k * gamma[i]) must be at most -1.
//
// The ballots are p.Ballots, which by default are the nonempty proper
// subsets of the alternatives. The full set is not a ballot, so there is no
// constraint alpha >= 0 among them.
//
// It returns nil, an error wrapping ErrMalformedCertificate or
// history.ErrMalformedHistory, or an *UnsoundError.
func Verify(p Params, h history.History, cert *Certificate) error {
	if err := h.Validate(p.NumAlts, p.K); err != nil {
		return err
	}
	if err := cert.Validate(h); err != nil {
		return err
	}
	c := &checker{params: p, h: h, cert: cert}
	if p.RequireNonNegative {
		if err := c.checkSigns(); err != nil {
			return err
		}
	}
	if err := c.checkObjective(); err != nil {
		return err
	}
	c.buildTerms()
	for _, b := range p.Ballots {
		if slack := c.slack(b); slack.Sign() < 0 {
			return &UnsoundError{History: h, Inequality: InequalityBallot, Ballot: b, Value: slack}
		}
	}
	return nil
}

func (c *checker) checkSigns() error {
	for i, g := range c.cert.Gamma {
		if g.Sign() < 0 {
			return &UnsoundError{History: c.h, Inequality: InequalitySign,
				Coefficient: fmt.Sprintf("gamma[%d]", i), Value: new(big.Rat).Set(g)}
		}
	}
	for idx, v := range c.cert.Beta {
		if v.Sign() < 0 {
			return &UnsoundError{History: c.h, Inequality: InequalitySign,
				Coefficient: fmt.Sprintf("beta[%d,%d,%d]", idx.Step, idx.X, idx.Y), Value: new(big.Rat).Set(v)}
		}
	}
	return nil
}

// objective returns alpha - sum(|T_i|/k * gamma[i]).
func (c *checker) objective() *big.Rat {
	obj := new(big.Rat).Set(c.cert.Alpha)
	term := new(big.Rat)
	for i, s := range c.h {
		term.SetFrac64(int64(s.Deviation.Len()), int64(c.params.K))
		obj.Sub(obj, term.Mul(term, c.cert.Gamma[i]))
	}
	return obj
}

func (c *checker) checkObjective() error {
	if obj := c.objective(); obj.Cmp(minusOne) > 0 {
		return &UnsoundError{History: c.h, Inequality: InequalityObjective, Value: obj}
	}
	return nil
}

func (c *checker) buildTerms() {
	c.terms = make([][]swapTerm, len(c.h))
	for i, s := range c.h {
		seats := s.Committee.Len()
		for _, sw := range ballot.Swaps(c.params.NumAlts, s.Committee) {
			beta := c.cert.BetaAt(i, sw.X, sw.Y)
			if beta == nil {
				continue
			}
			t := swapTerm{
				swap: sw,
				loss: make([]*big.Rat, seats+1),
				gain: make([]*big.Rat, seats+1),
			}
			for u := 0; u <= seats; u++ {
				if u >= 1 {
					t.loss[u] = new(big.Rat).Mul(beta, ballot.HarmonicDelta(u, u-1))
				}
				if u < seats {
					t.gain[u] = new(big.Rat).Mul(beta, ballot.HarmonicDelta(u, u+1))
				}
			}
			c.terms[i] = append(c.terms[i], t)
		}
	}
}

// slack returns the left-hand side of b's dual inequality.
func (c *checker) slack(b ballot.Set) *big.Rat {
	lhs := new(big.Rat).Set(c.cert.Alpha)
	for i, s := range c.h {
		u := ballot.Utility(b, s.Committee)
		for _, t := range c.terms[i] {
			switch t.swap.Delta(b, s.Committee) {
			case -1:
				lhs.Add(lhs, t.loss[u])
			case 1:
				lhs.Add(lhs, t.gain[u])
			}
		}
		if ballot.Utility(b, s.Deviation) > u {
			lhs.Sub(lhs, c.cert.Gamma[i])
			break
		}
	}
	return lhs
}
