// Package results holds the persisted outcome of the proof search: for each
// explored history, whether its search was successful and, for histories
// proven infeasible, the certificate that proves it.
package results

import (
	"fmt"
	"sort"

	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/history"
)

// Record is the stored outcome for one history.
type Record struct {
	History    history.History
	Successful bool
	// Certificate is set when the history was proven infeasible.
	Certificate *farkas.Certificate
}

// Certified reports whether the record carries a certificate.
func (r Record) Certified() bool { return r.Certificate != nil }

// Map is a read-only result map for one (num_alts, k) configuration, keyed
// by the text form of each history. Nothing in this module mutates a Map
// after Build returns.
type Map struct {
	NumAlts int
	K       int
	records map[string]Record
	keys    []string
}

// Build indexes records. Duplicate histories are rejected.
func Build(numAlts, k int, records []Record) (*Map, error) {
	m := &Map{
		NumAlts: numAlts,
		K:       k,
		records: make(map[string]Record, len(records)),
		keys:    make([]string, 0, len(records)),
	}
	for _, r := range records {
		key := r.History.Key()
		if _, dup := m.records[key]; dup {
			return nil, fmt.Errorf("duplicate history %s", r.History.Label())
		}
		m.records[key] = r
		m.keys = append(m.keys, key)
	}
	sort.Slice(m.keys, func(i, j int) bool {
		a, b := m.records[m.keys[i]].History, m.records[m.keys[j]].History
		if a.Depth() != b.Depth() {
			return a.Depth() < b.Depth()
		}
		return m.keys[i] < m.keys[j]
	})
	return m, nil
}

// Lookup returns the record stored for h.
func (m *Map) Lookup(h history.History) (Record, bool) {
	r, ok := m.records[h.Key()]
	return r, ok
}

// Len returns the number of stored histories.
func (m *Map) Len() int { return len(m.records) }

// Each calls fn for every record in order of depth, then key, until fn
// returns false.
func (m *Map) Each(fn func(Record) bool) {
	for _, key := range m.keys {
		if !fn(m.records[key]) {
			return
		}
	}
}

// Records returns every record in Each order.
func (m *Map) Records() []Record {
	out := make([]Record, 0, len(m.keys))
	m.Each(func(r Record) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Jobs returns a verification job for every unsuccessful record, in Each
// order. A record without a certificate still gets a job, with a nil
// Certificate, so verifying it fails. Successful records are never
// verified, even when they carry a certificate.
func (m *Map) Jobs() []farkas.Job {
	var jobs []farkas.Job
	m.Each(func(r Record) bool {
		if !r.Successful {
			jobs = append(jobs, farkas.Job{History: r.History, Certificate: r.Certificate})
		}
		return true
	})
	return jobs
}

// Stats summarises a map.
type Stats struct {
	Histories  int         `json:"histories"`
	Successful int         `json:"successful"`
	Certified  int         `json:"certified"`
	ByDepth    map[int]int `json:"by_depth"`
	MaxDepth   int         `json:"max_depth"`
}

// Summarize counts the records of m.
func (m *Map) Summarize() Stats {
	s := Stats{ByDepth: map[int]int{}}
	m.Each(func(r Record) bool {
		s.Histories++
		if r.Successful {
			s.Successful++
		}
		if r.Certified() {
			s.Certified++
		}
		d := r.History.Depth()
		s.ByDepth[d]++
		if d > s.MaxDepth {
			s.MaxDepth = d
		}
		return true
	})
	return s
}
