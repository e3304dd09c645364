// Package equivalence runs every backend of a primitive over a shared
// corpus and reports the inputs on which their outputs diverge.
//
// No backend is assumed correct. Outputs are grouped by value; when one
// group holds a strict majority the others are flagged, otherwise every
// group is listed and the backends outside the reference's group are
// flagged, the reference being only the point of comparison.
package equivalence

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/metrics"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/runner"
)

// Options configures a Checker.
type Options struct {
	Workers     int
	CaseTimeout time.Duration
	Logger      logging.Logger
}

// Checker is the cross-backend equivalence checker.
type Checker struct {
	workers int
	timeout time.Duration
	log     logging.Logger
}

// New returns a Checker.
func New(opts Options) *Checker {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = runner.DefaultCaseTimeout
	}
	return &Checker{workers: opts.Workers, timeout: opts.CaseTimeout, log: logging.OrDiscard(opts.Logger)}
}

// Outcome collects what a check produced.
type Outcome struct {
	Findings []result.EquivalenceFinding
	// Errors records backends that faulted on an input; they take no part
	// in the grouping of that input.
	Errors []result.RunResult
	// Compared is the number of (primitive, input) pairs evaluated.
	Compared int
}

type job struct {
	primitive string
	backends  []primitive.Backend
	c         corpus.Case
}

type caseOutcome struct {
	finding *result.EquivalenceFinding
	errors  []result.RunResult
}

// Check compares the backends of every primitive in set that has at least
// two of them. corpora maps a primitive to its shared input corpus.
func (c *Checker) Check(ctx context.Context, set *registry.Set, corpora map[string][]corpus.Case) (*Outcome, error) {
	var jobs []job
	for _, p := range set.Primitives() {
		bs := set.Backends(p)
		if len(bs) < 2 {
			c.log.Debug(ctx, "skipping equivalence, single backend", "primitive", p)
			continue
		}
		for _, cs := range corpora[p] {
			jobs = append(jobs, job{primitive: p, backends: bs, c: cs})
		}
	}

	outs, err := runner.Dispatch(ctx, c.workers, len(jobs), func(i int) caseOutcome {
		return c.compare(jobs[i])
	})

	o := &Outcome{Compared: len(outs)}
	for _, co := range outs {
		o.Errors = append(o.Errors, co.errors...)
		if co.finding != nil {
			o.Findings = append(o.Findings, *co.finding)
			metrics.EquivalenceCounter().WithLabelValues(co.finding.Primitive).Inc()
		}
	}
	if len(o.Findings) > 0 {
		c.log.Warn(ctx, "backends diverge", "findings", len(o.Findings), "inputs", o.Compared)
	}
	return o, err
}

func (c *Checker) compare(j job) caseOutcome {
	var co caseOutcome
	outputs := make(map[string]string, len(j.backends))
	refID := ""

	for _, b := range j.backends {
		if b.Descriptor.Reference && refID == "" {
			refID = b.ID()
		}
		var out []byte
		err := runner.Invoke(c.timeout, "equivalence", func() error {
			var err error
			out, err = Output(b, j.c)
			return err
		})
		if err != nil {
			co.errors = append(co.errors, result.RunResult{
				Kind:      result.KindEquivalence,
				CaseID:    j.c.ID,
				Primitive: b.Descriptor.Primitive,
				Backend:   b.Descriptor.Backend,
				Outcome:   result.Error,
				Detail:    err.Error(),
			})
			continue
		}
		outputs[b.ID()] = hex.EncodeToString(out)
	}

	groups := Group(outputs)
	if len(groups) < 2 {
		return co
	}

	f := &result.EquivalenceFinding{
		Primitive: j.primitive,
		CaseID:    j.c.ID,
		Input:     j.c.Fields(),
		Groups:    groups,
	}
	f.Majority, f.Disagreeing = Disagreeing(groups, refID)
	co.finding = f
	return co
}

// Output computes the value compared across backends for one input:
// the digest for a hash, encrypt(input) followed by decrypt(input) for a
// block cipher, and the verify verdict (0x00 or 0x01) for a signature
// scheme, whose signing may legitimately be randomized.
func Output(b primitive.Backend, c corpus.Case) ([]byte, error) {
	switch b.Descriptor.Category {
	case primitive.CategoryHash:
		return b.Hash().Digest(c.Input)
	case primitive.CategoryBlockCipher:
		bc := b.BlockCipher()
		key := c.Params[primitive.ParamKey]
		enc, err := bc.EncryptBlock(key, c.Input)
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
		dec, err := bc.DecryptBlock(key, c.Input)
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
		return append(append([]byte(nil), enc...), dec...), nil
	case primitive.CategorySignature:
		if b.Signature().Verify(c.Params[primitive.ParamPublicKey], c.Input, c.Expected) {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	}
	return nil, fmt.Errorf("unknown category %q", b.Descriptor.Category)
}

// Group partitions backend IDs by output. Groups are ordered largest first,
// ties broken by output; backends within a group are sorted.
func Group(outputs map[string]string) []result.OutputGroup {
	byOutput := map[string][]string{}
	for id, out := range outputs {
		byOutput[out] = append(byOutput[out], id)
	}
	groups := make([]result.OutputGroup, 0, len(byOutput))
	for out, ids := range byOutput {
		sort.Strings(ids)
		groups = append(groups, result.OutputGroup{Output: out, Backends: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Backends) != len(groups[j].Backends) {
			return len(groups[i].Backends) > len(groups[j].Backends)
		}
		return groups[i].Output < groups[j].Output
	})
	return groups
}

// Disagreeing decides which backends a finding names. With a strict
// majority group, every backend outside it. Without one, every backend
// outside the reference's group, or outside the first group if the
// reference produced no output.
func Disagreeing(groups []result.OutputGroup, refID string) (bool, []string) {
	total := 0
	for _, g := range groups {
		total += len(g.Backends)
	}

	anchor := 0
	majority := 2*len(groups[0].Backends) > total
	if !majority {
		for i, g := range groups {
			if contains(g.Backends, refID) {
				anchor = i
				break
			}
		}
	}

	var out []string
	for i, g := range groups {
		if i != anchor {
			out = append(out, g.Backends...)
		}
	}
	sort.Strings(out)
	return majority, out
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
