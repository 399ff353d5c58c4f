// Package history describes chains of (committee, deviation) steps, the
// nodes of the proof's search tree, and generates the symmetry-reduced
// continuations of a node.
package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
)

// ErrMalformedHistory reports a history that breaks the structural
// invariants of the search tree.
var ErrMalformedHistory = errors.New("malformed history")

// Step is one round of the deviation argument: the committee in place and
// the deviation T a coalition proposes against it.
type Step struct {
	Committee ballot.Set
	Deviation ballot.Set
}

func (s Step) String() string {
	return joinElems(s.Committee) + ">" + joinElems(s.Deviation)
}

// History is an ordered sequence of steps. The empty history is the root of
// the search tree.
type History []Step

// Root returns the empty history.
func Root() History { return History{} }

// Depth returns the number of steps.
func (h History) Depth() int { return len(h) }

// IsRoot reports whether h is the empty history.
func (h History) IsRoot() bool { return len(h) == 0 }

// String encodes h as its steps joined by ";", each step written as
// "committee>deviation" with comma separated members, e.g. "0,1>2;0,2>1,3".
// The root encodes as the empty string. The encoding is the map key of a
// history and round-trips through Parse.
func (h History) String() string {
	parts := make([]string, len(h))
	for i, s := range h {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}

// Key returns the stable key of h used by result maps.
func (h History) Key() string { return h.String() }

// Label renders h for humans; the root is shown as "()".
func (h History) Label() string {
	if h.IsRoot() {
		return "()"
	}
	return h.String()
}

// Extend returns a new history with step appended; h is not modified.
func (h History) Extend(step Step) History {
	out := make(History, len(h)+1)
	copy(out, h)
	out[len(h)] = step
	return out
}

// Parent returns h without its last step. The parent of the root is the root.
func (h History) Parent() History {
	if len(h) == 0 {
		return h
	}
	return h[:len(h)-1:len(h)-1]
}

// Fixed returns the union of every deviation in h: the alternatives every
// later committee has to contain.
func (h History) Fixed() ballot.Set {
	var fixed ballot.Set
	for _, s := range h {
		fixed = fixed.Union(s.Deviation)
	}
	return fixed
}

// DistinguishingSets returns the deviations of h followed by its committees,
// the sets that break the symmetry between alternatives.
func (h History) DistinguishingSets() []ballot.Set {
	sets := make([]ballot.Set, 0, 2*len(h))
	for _, s := range h {
		sets = append(sets, s.Deviation)
	}
	for _, s := range h {
		sets = append(sets, s.Committee)
	}
	return sets
}

// Equal reports whether h and other have the same steps.
func (h History) Equal(other History) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks the invariants every history of the search tree satisfies
// for a ground set of numAlts alternatives and committees of size k: every
// committee has exactly k members and contains all earlier deviations, and
// every deviation has 1..k members and is not contained in its committee.
func (h History) Validate(numAlts, k int) error {
	ground := ballot.Ground(numAlts)
	var fixed ballot.Set
	for i, s := range h {
		switch {
		case !s.Committee.SubsetOf(ground) || !s.Deviation.SubsetOf(ground):
			return fmt.Errorf("%w: %s: step %d leaves the ground set of %d alternatives", ErrMalformedHistory, h.Label(), i, numAlts)
		case s.Committee.Len() != k:
			return fmt.Errorf("%w: %s: step %d committee %v has %d members, want %d", ErrMalformedHistory, h.Label(), i, s.Committee, s.Committee.Len(), k)
		case s.Deviation.Len() < 1 || s.Deviation.Len() > k:
			return fmt.Errorf("%w: %s: step %d deviation %v has %d members, want 1..%d", ErrMalformedHistory, h.Label(), i, s.Deviation, s.Deviation.Len(), k)
		case s.Deviation.SubsetOf(s.Committee):
			return fmt.Errorf("%w: %s: step %d deviation %v is inside its committee", ErrMalformedHistory, h.Label(), i, s.Deviation)
		case !fixed.SubsetOf(s.Committee):
			return fmt.Errorf("%w: %s: step %d committee %v drops earlier deviations %v", ErrMalformedHistory, h.Label(), i, s.Committee, fixed.Minus(s.Committee))
		}
		fixed = fixed.Union(s.Deviation)
	}
	return nil
}

// Parse decodes the String form of a history.
func Parse(text string) (History, error) {
	if text == "" {
		return Root(), nil
	}
	rawSteps := strings.Split(text, ";")
	h := make(History, 0, len(rawSteps))
	for i, raw := range rawSteps {
		committee, deviation, ok := strings.Cut(raw, ">")
		if !ok {
			return nil, fmt.Errorf("parse history %q: step %d lacks '>'", text, i)
		}
		c, err := parseElems(committee)
		if err != nil {
			return nil, fmt.Errorf("parse history %q: step %d committee: %w", text, i, err)
		}
		d, err := parseElems(deviation)
		if err != nil {
			return nil, fmt.Errorf("parse history %q: step %d deviation: %w", text, i, err)
		}
		h = append(h, Step{Committee: c, Deviation: d})
	}
	return h, nil
}

// FromElems builds a history from per-step member lists, the shape used by
// the YAML artifacts.
func FromElems(steps [][2][]int) (History, error) {
	h := make(History, len(steps))
	for i, s := range steps {
		for _, list := range s {
			for _, a := range list {
				if a < 0 || a >= ballot.MaxAlternatives {
					return nil, fmt.Errorf("step %d: alternative %d out of range", i, a)
				}
			}
		}
		h[i] = Step{Committee: ballot.Of(s[0]...), Deviation: ballot.Of(s[1]...)}
	}
	return h, nil
}

func joinElems(s ballot.Set) string {
	elems := s.Elems()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = strconv.Itoa(e)
	}
	return strings.Join(parts, ",")
}

func parseElems(text string) (ballot.Set, error) {
	if text == "" {
		return 0, nil
	}
	var s ballot.Set
	for _, field := range strings.Split(text, ",") {
		a, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return 0, err
		}
		if a < 0 || a >= ballot.MaxAlternatives {
			return 0, fmt.Errorf("alternative %d out of range", a)
		}
		if s.Has(a) {
			return 0, fmt.Errorf("alternative %d repeated", a)
		}
		s |= ballot.Of(a)
	}
	return s, nil
}
