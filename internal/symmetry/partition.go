// Package symmetry collapses alternatives that no set seen so far can tell
// apart. Two alternatives with the same membership pattern across every
// distinguishing set are interchangeable, so only one representative of each
// class of subsets (the canonical, or wlog, subset) needs to be explored.
package symmetry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
)

var (
	// ErrOverlappingBlocks reports a partition whose blocks share a member.
	ErrOverlappingBlocks = errors.New("symmetry: partition blocks overlap")
	// ErrUncovered reports a subset with members outside every block.
	ErrUncovered = errors.New("symmetry: subset not covered by partition")
)

// Partition is an ordered list of blocks of interchangeable alternatives.
type Partition []ballot.Set

// BuildPartition groups the alternatives 0..numAlts-1 by their membership
// pattern across sets. Blocks are ordered by pattern the way
// itertools.product([True, False], repeat=len(sets)) enumerates them, so the
// block inside every set comes first and the block outside all of them last.
// Patterns no alternative has produce no block.
func BuildPartition(numAlts int, sets []ballot.Set) Partition {
	blocks := make(map[string]ballot.Set)
	sig := make([]byte, len(sets))
	for a := 0; a < numAlts; a++ {
		for j, s := range sets {
			if s.Has(a) {
				sig[j] = '0'
			} else {
				sig[j] = '1'
			}
		}
		blocks[string(sig)] |= ballot.Of(a)
	}

	patterns := make([]string, 0, len(blocks))
	for p := range blocks {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	out := make(Partition, len(patterns))
	for i, p := range patterns {
		out[i] = blocks[p]
	}
	return out
}

// Validate reports whether the blocks are pairwise disjoint.
func (p Partition) Validate() error {
	var seen ballot.Set
	for i, block := range p {
		if overlap := seen.Intersect(block); overlap != 0 {
			return fmt.Errorf("%w: block %d repeats %v", ErrOverlappingBlocks, i, overlap)
		}
		seen = seen.Union(block)
	}
	return nil
}

// Covers reports whether every member of x lies in some block.
func (p Partition) Covers(x ballot.Set) bool {
	var all ballot.Set
	for _, block := range p {
		all = all.Union(block)
	}
	return x.SubsetOf(all)
}

// mustAccept panics when p cannot be used to judge x. Both conditions hold
// for every partition BuildPartition returns, so a failure here is a bug in
// the caller rather than bad input.
func (p Partition) mustAccept(x ballot.Set) {
	if err := p.Validate(); err != nil {
		panic(err)
	}
	if !p.Covers(x) {
		panic(fmt.Errorf("%w: %v", ErrUncovered, x))
	}
}

// Canonicalize returns the canonical representative of x's symmetry class:
// from each block, as many of its smallest members as x takes from it.
func Canonicalize(x ballot.Set, p Partition) ballot.Set {
	p.mustAccept(x)
	var out ballot.Set
	for _, block := range p {
		out = out.Union(block.Lowest(x.Intersect(block).Len()))
	}
	return out
}

// IsCanonical reports whether x takes the smallest members of every block it
// touches. It panics if the blocks overlap or fail to cover x.
func IsCanonical(x ballot.Set, p Partition) bool {
	p.mustAccept(x)
	for _, block := range p {
		taken := x.Intersect(block)
		if taken != block.Lowest(taken.Len()) {
			return false
		}
	}
	return true
}

// String renders the partition for diagnostics, e.g. "[{0} {1,2}]".
func (p Partition) String() string {
	return fmt.Sprint([]ballot.Set(p))
}
