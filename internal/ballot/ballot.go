// Package ballot models the ground set of alternatives, approval ballots and
// committees. Every subset of the ground set is a bitmask, so membership,
// utility and comparisons are constant time and subsets are map keys as is.
package ballot

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// MaxAlternatives is the largest ground set a Set can describe.
const MaxAlternatives = 32

// Set is a subset of the ground set {0, ..., MaxAlternatives-1}. Bit i is set
// when alternative i is a member.
type Set uint32

// Of returns the set containing the given alternatives.
func Of(alts ...int) Set {
	var s Set
	for _, a := range alts {
		s |= 1 << uint(a)
	}
	return s
}

// Ground returns the ground set {0, ..., numAlts-1}.
func Ground(numAlts int) Set {
	if numAlts >= MaxAlternatives {
		return ^Set(0)
	}
	return Set(1)<<uint(numAlts) - 1
}

// ValidateNumAlts reports whether numAlts describes a usable ground set.
func ValidateNumAlts(numAlts int) error {
	if numAlts < 1 || numAlts > MaxAlternatives {
		return fmt.Errorf("num_alts must be in [1, %d], got %d", MaxAlternatives, numAlts)
	}
	return nil
}

// Has reports whether x is a member of s.
func (s Set) Has(x int) bool { return s&(1<<uint(x)) != 0 }

// Len returns the number of members.
func (s Set) Len() int { return bits.OnesCount32(uint32(s)) }

// Union returns s ∪ t.
func (s Set) Union(t Set) Set { return s | t }

// Intersect returns s ∩ t.
func (s Set) Intersect(t Set) Set { return s & t }

// Minus returns s \ t.
func (s Set) Minus(t Set) Set { return s &^ t }

// SubsetOf reports whether s ⊆ t.
func (s Set) SubsetOf(t Set) bool { return s&^t == 0 }

// Elems returns the members in ascending order.
func (s Set) Elems() []int {
	out := make([]int, 0, s.Len())
	for r := uint32(s); r != 0; r &= r - 1 {
		out = append(out, bits.TrailingZeros32(r))
	}
	return out
}

// Lowest returns the n smallest members of s. If s has fewer than n members
// all of s is returned.
func (s Set) Lowest(n int) Set {
	var out Set
	for r := uint32(s); r != 0 && n > 0; r &= r - 1 {
		out |= Set(r & -r)
		n--
	}
	return out
}

// Less orders sets lexicographically by their ascending member lists, the
// order Python gives sorted tuples. A proper prefix sorts first.
func (s Set) Less(t Set) bool {
	a, b := uint32(s), uint32(t)
	for {
		if a == b {
			return false
		}
		if a == 0 {
			return true
		}
		if b == 0 {
			return false
		}
		la, lb := a&-a, b&-b
		if la != lb {
			return la < lb
		}
		a &= a - 1
		b &= b - 1
	}
}

// String renders the set as "{0,2,5}".
func (s Set) String() string {
	elems := s.Elems()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = strconv.Itoa(e)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Show renders a ballot compactly by concatenating its members ("025").
// It is only unambiguous for ground sets of at most ten alternatives.
func (s Set) Show() string {
	var sb strings.Builder
	for _, e := range s.Elems() {
		sb.WriteString(strconv.Itoa(e))
	}
	return sb.String()
}

// Universe returns every ballot over a ground set of numAlts alternatives in
// ascending Less order. A ballot is a non-empty proper subset of the ground
// set: the voter approving everything is indifferent between all committees
// of a given size and is left out, as in the proof's linear programs.
func Universe(numAlts int) []Set {
	var out []Set
	for size := 1; size < numAlts; size++ {
		Combinations(Ground(numAlts), size, func(s Set) bool {
			out = append(out, s)
			return true
		})
	}
	sortSets(out)
	return out
}

func sortSets(sets []Set) {
	sort.Slice(sets, func(i, j int) bool { return sets[i].Less(sets[j]) })
}

// Utility returns the number of members of committee approved by b.
func Utility(b, committee Set) int {
	return b.Intersect(committee).Len()
}

// Combinations calls fn with every r-element subset of pool in lexicographic
// order of ascending member lists, the order of itertools.combinations. It
// stops early when fn returns false.
func Combinations(pool Set, r int, fn func(Set) bool) {
	elems := pool.Elems()
	n := len(elems)
	if r < 0 || r > n {
		return
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		var s Set
		for _, i := range idx {
			s |= 1 << uint(elems[i])
		}
		if !fn(s) {
			return
		}
		i := r - 1
		for i >= 0 && idx[i] == i+n-r {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Swap replaces committee member X by non-member Y.
type Swap struct {
	X, Y int
}

// Swaps returns every single-seat swap of committee within a ground set of
// numAlts alternatives, ordered by X then Y.
func Swaps(numAlts int, committee Set) []Swap {
	outside := Ground(numAlts).Minus(committee)
	out := make([]Swap, 0, committee.Len()*outside.Len())
	for _, x := range committee.Elems() {
		for _, y := range outside.Elems() {
			out = append(out, Swap{X: x, Y: y})
		}
	}
	return out
}

// Delta returns the change in b's utility when the swap is applied to
// committee: -1 when an approved seat is lost, +1 when one is gained, else 0.
func (sw Swap) Delta(b, committee Set) int {
	if !committee.Has(sw.X) || committee.Has(sw.Y) {
		return 0
	}
	switch hasX, hasY := b.Has(sw.X), b.Has(sw.Y); {
	case hasX && !hasY:
		return -1
	case !hasX && hasY:
		return 1
	}
	return 0
}
