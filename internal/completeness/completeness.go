// Package completeness checks that a result map covers the whole
// symmetry-reduced search tree: starting from the root, every successful
// history must have all of its continuations recorded, and every recorded
// dead end must carry a certificate.
package completeness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dicklesworthstone/pavcore/internal/history"
	"github.com/Dicklesworthstone/pavcore/internal/results"
)

// Kind classifies a completeness violation.
type Kind string

const (
	// KindMissingHistory is a reachable history absent from the map.
	KindMissingHistory Kind = "missing history"
	// KindMissingCertificate is an unsuccessful continuation without a
	// certificate.
	KindMissingCertificate Kind = "missing certificate"
	// KindUnjustified is a history on the worklist that is neither
	// certified nor successful.
	KindUnjustified Kind = "unjustified"
	// KindMalformed is a successful history whose continuations cannot be
	// generated.
	KindMalformed Kind = "malformed"
)

// Violation identifies a hole in the proof.
type Violation struct {
	Kind    Kind
	History history.History
	// Parent is the history whose expansion produced History; nil for the
	// root and for histories popped from the worklist.
	Parent history.History
	Err    error
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("completeness violation: %s: %s", v.Kind, v.History.Label())
	if v.Parent != nil {
		msg += " (continuation of " + v.Parent.Label() + ")"
	}
	if v.Err != nil {
		msg += ": " + v.Err.Error()
	}
	return msg
}

func (v *Violation) Unwrap() error { return v.Err }

// Stats describes a successful traversal. Visited counts histories popped
// from the worklist; Certified counts every certified dead end reached.
type Stats struct {
	Visited       int `json:"visited"`
	Expanded      int `json:"expanded"`
	Certified     int `json:"certified"`
	Continuations int `json:"continuations"`
	MaxDepth      int `json:"max_depth"`
}

// Options configures Check.
type Options struct {
	Logger *slog.Logger
}

// Check walks the search tree of m depth first with an explicit stack,
// seeded with the root. A popped history that carries a certificate is
// terminal. Otherwise it must be successful, all of its continuations must
// be recorded, successful continuations are pushed, and unsuccessful ones
// must carry a certificate. The most recently discovered branch is checked
// next, so diagnostics are deterministic.
//
// Check never modifies m. It returns the first *Violation found, or the
// context's error if ctx is cancelled first.
func Check(ctx context.Context, m *results.Map, opts Options) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var stats Stats
	root := history.Root()
	if _, ok := m.Lookup(root); !ok {
		return stats, &Violation{Kind: KindMissingHistory, History: root}
	}

	stack := []history.History{root}
	for len(stack) > 0 {
		if stats.Visited%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stats.Visited++
		if h.Depth() > stats.MaxDepth {
			stats.MaxDepth = h.Depth()
		}

		rec, _ := m.Lookup(h)
		if rec.Certified() {
			stats.Certified++
			continue
		}
		if !rec.Successful {
			return stats, &Violation{Kind: KindUnjustified, History: h}
		}

		conts, err := history.Continuations(m.NumAlts, m.K, h)
		if err != nil {
			return stats, &Violation{Kind: KindMalformed, History: h, Err: err}
		}
		stats.Expanded++
		stats.Continuations += len(conts)

		for _, c := range conts {
			if c.Depth() > stats.MaxDepth {
				stats.MaxDepth = c.Depth()
			}
			child, ok := m.Lookup(c)
			switch {
			case !ok:
				return stats, &Violation{Kind: KindMissingHistory, History: c, Parent: h}
			case child.Successful:
				stack = append(stack, c)
			case !child.Certified():
				return stats, &Violation{Kind: KindMissingCertificate, History: c, Parent: h}
			default:
				stats.Certified++
			}
		}
		logger.Debug("expanded history",
			"history", h.Label(),
			"continuations", len(conts),
			"pending", len(stack),
		)
	}

	logger.Info("search tree complete",
		"num_alts", m.NumAlts,
		"k", m.K,
		"visited", stats.Visited,
		"certified", stats.Certified,
	)
	return stats, nil
}
