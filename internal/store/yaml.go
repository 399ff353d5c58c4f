package store

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/history"
	"github.com/Dicklesworthstone/pavcore/internal/results"
)

type yamlArtifact struct {
	NumAlts   int          `yaml:"num_alts"`
	K         int          `yaml:"k"`
	Histories []yamlRecord `yaml:"histories"`
}

type yamlRecord struct {
	Steps      []yamlStep       `yaml:"steps"`
	Successful bool             `yaml:"successful"`
	Farkas     *yamlCertificate `yaml:"farkas,omitempty"`
}

type yamlStep struct {
	Committee []int `yaml:"committee,flow"`
	Deviation []int `yaml:"deviation,flow"`
}

type yamlCertificate struct {
	Alpha string     `yaml:"alpha"`
	Gamma []string   `yaml:"gamma,flow"`
	Beta  []yamlBeta `yaml:"beta,omitempty"`
}

type yamlBeta struct {
	Step  int    `yaml:"step"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Value string `yaml:"value"`
}

func loadYAML(path string) (*results.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m, err := decodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func decodeYAML(r io.Reader) (*results.Map, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlArtifact
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedArtifact)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	records := make([]results.Record, 0, len(doc.Histories))
	for i, yr := range doc.Histories {
		rec, err := yr.record(doc.NumAlts, doc.K)
		if err != nil {
			return nil, fmt.Errorf("histories[%d]: %w", i, err)
		}
		records = append(records, rec)
	}
	m, err := results.Build(doc.NumAlts, doc.K, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	return m, nil
}

func (yr yamlRecord) record(numAlts, k int) (results.Record, error) {
	steps := make([][2][]int, len(yr.Steps))
	for i, s := range yr.Steps {
		steps[i] = [2][]int{s.Committee, s.Deviation}
	}
	h, err := history.FromElems(steps)
	if err != nil {
		return results.Record{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if err := h.Validate(numAlts, k); err != nil {
		return results.Record{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	rec := results.Record{History: h, Successful: yr.Successful}
	if yr.Farkas == nil {
		return rec, nil
	}
	cert := &farkas.Certificate{Beta: map[farkas.SwapIndex]*big.Rat{}}
	if cert.Alpha, err = parseRat(yr.Farkas.Alpha); err != nil {
		return rec, fmt.Errorf("%s: alpha: %w", h.Label(), err)
	}
	for i, g := range yr.Farkas.Gamma {
		v, err := parseRat(g)
		if err != nil {
			return rec, fmt.Errorf("%s: gamma[%d]: %w", h.Label(), i, err)
		}
		cert.Gamma = append(cert.Gamma, v)
	}
	for _, b := range yr.Farkas.Beta {
		v, err := parseRat(b.Value)
		if err != nil {
			return rec, fmt.Errorf("%s: beta[%d,%d,%d]: %w", h.Label(), b.Step, b.X, b.Y, err)
		}
		cert.Beta[farkas.SwapIndex{Step: b.Step, X: b.X, Y: b.Y}] = v
	}
	rec.Certificate = cert
	return rec, nil
}

func saveYAML(path string, m *results.Map) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encodeYAML(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func encodeYAML(w io.Writer, m *results.Map) error {
	doc := yamlArtifact{NumAlts: m.NumAlts, K: m.K}
	m.Each(func(r results.Record) bool {
		yr := yamlRecord{Successful: r.Successful, Steps: make([]yamlStep, len(r.History))}
		for i, s := range r.History {
			yr.Steps[i] = yamlStep{Committee: s.Committee.Elems(), Deviation: s.Deviation.Elems()}
		}
		if c := r.Certificate; c != nil {
			yc := &yamlCertificate{Alpha: formatRat(c.Alpha)}
			for _, g := range c.Gamma {
				yc.Gamma = append(yc.Gamma, formatRat(g))
			}
			for _, idx := range sortedBeta(c) {
				yc.Beta = append(yc.Beta, yamlBeta{Step: idx.Step, X: idx.X, Y: idx.Y, Value: formatRat(c.Beta[idx])})
			}
			yr.Farkas = yc
		}
		doc.Histories = append(doc.Histories, yr)
		return true
	})

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// Canonical renders m in the YAML artifact encoding. Two maps holding the
// same records render identically whatever format they were loaded from.
func Canonical(m *results.Map) (string, error) {
	var buf strings.Builder
	if err := encodeYAML(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}
