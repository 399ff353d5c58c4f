package history

import (
	"fmt"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
	"github.com/Dicklesworthstone/pavcore/internal/symmetry"
)

// Continuations returns every symmetry-reduced one-step extension of h for a
// ground set of numAlts alternatives and committees of size k.
//
// A new committee keeps every alternative some deviation of h has used and
// fills the remaining seats with a canonical choice of newcomers under the
// partition induced by h's deviations and committees. For each new
// committee, a deviation is any canonical subset of size 1..k, under the
// partition refined by that committee, that is not already inside it.
//
// The output order is fixed: committees in lexicographic order of their
// newcomers, then deviations by size and lexicographically within a size.
// The completeness check relies on this matching the enumeration that
// produced the persisted results exactly.
func Continuations(numAlts, k int, h History) ([]History, error) {
	if err := ballot.ValidateNumAlts(numAlts); err != nil {
		return nil, err
	}
	if k < 1 || k > numAlts {
		return nil, fmt.Errorf("committee size %d out of range for %d alternatives", k, numAlts)
	}

	ground := ballot.Ground(numAlts)
	fixed := h.Fixed()
	if !fixed.SubsetOf(ground) {
		return nil, fmt.Errorf("%w: %s: deviations use %v outside the ground set", ErrMalformedHistory, h.Label(), fixed.Minus(ground))
	}
	slots := k - fixed.Len()
	if slots < 0 {
		return nil, fmt.Errorf("%w: %s: deviations fix %d alternatives, more than k=%d", ErrMalformedHistory, h.Label(), fixed.Len(), k)
	}

	sets := h.DistinguishingSets()
	partition := symmetry.BuildPartition(numAlts, sets)

	var committees []ballot.Set
	ballot.Combinations(ground.Minus(fixed), slots, func(newcomers ballot.Set) bool {
		if symmetry.IsCanonical(newcomers, partition) {
			committees = append(committees, fixed.Union(newcomers))
		}
		return true
	})

	var out []History
	for _, committee := range committees {
		refined := symmetry.BuildPartition(numAlts, append(sets[:len(sets):len(sets)], committee))
		for size := 1; size <= k; size++ {
			ballot.Combinations(ground, size, func(t ballot.Set) bool {
				if !t.SubsetOf(committee) && symmetry.IsCanonical(t, refined) {
					out = append(out, h.Extend(Step{Committee: committee, Deviation: t}))
				}
				return true
			})
		}
	}
	return out, nil
}
