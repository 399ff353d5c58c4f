package ballot

import (
	"fmt"
	"math/big"
)

// harmonic[r] holds H(r) = 1 + 1/2 + ... + 1/r exactly; harmonic[0] is 0.
var harmonic = func() []*big.Rat {
	table := make([]*big.Rat, MaxAlternatives+1)
	table[0] = new(big.Rat)
	for r := 1; r <= MaxAlternatives; r++ {
		table[r] = new(big.Rat).Add(table[r-1], big.NewRat(1, int64(r)))
	}
	return table
}()

// Harmonic returns the r-th harmonic number, the PAV score of a voter who
// approves r members of the committee. The result is a fresh value owned by
// the caller.
func Harmonic(r int) *big.Rat {
	if r < 0 || r > MaxAlternatives {
		panic(fmt.Sprintf("ballot: harmonic number of %d out of range", r))
	}
	return new(big.Rat).Set(harmonic[r])
}

// HarmonicDelta returns H(to) - H(from), the change in a voter's PAV score
// when their utility moves from one value to another.
func HarmonicDelta(from, to int) *big.Rat {
	d := Harmonic(to)
	return d.Sub(d, harmonic[from])
}

// Score returns the PAV score of committee under a profile given as ballot
// weights: the weighted sum of H(utility).
func Score(profile map[Set]*big.Rat, committee Set) *big.Rat {
	total := new(big.Rat)
	term := new(big.Rat)
	for b, w := range profile {
		total.Add(total, term.Mul(w, harmonic[Utility(b, committee)]))
	}
	return total
}
