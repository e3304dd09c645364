// Package ctaudit is the constant-time auditor. For each secret field of a
// backend it builds inputs that agree on every public field and differ only
// in that secret, then looks for two signals:
//
//   - trace divergence: backends implementing primitive.Instrumentable report
//     their branches and table accesses, and any difference between the
//     traces of two secret values is flagged;
//   - timing variance: repeated interleaved measurements of two secret values
//     are compared, and a between-class variance exceeding Threshold times
//     the within-class variance is flagged.
//
// Both are heuristics. A clean audit is not a proof of constant-time
// behavior, and the timing signal can raise rare false positives on a busy
// machine. Findings are therefore warnings and never fail a run on their own.
package ctaudit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/metrics"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/runner"
)

// Options carries the auditor's collaborators.
type Options struct {
	Logger logging.Logger
	// CaseTimeout bounds the first execution of every secret variant and
	// any single call made during the timing trials.
	CaseTimeout time.Duration
}

// Auditor runs constant-time audits.
type Auditor struct {
	cfg     Config
	timeout time.Duration
	log     logging.Logger
}

// New returns an Auditor, or an error when cfg is invalid.
func New(cfg Config, opts Options) (*Auditor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit configuration: %w", err)
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = runner.DefaultCaseTimeout
	}
	return &Auditor{cfg: cfg, timeout: opts.CaseTimeout, log: logging.OrDiscard(opts.Logger)}, nil
}

// Config returns the auditor configuration.
func (a *Auditor) Config() Config {
	return a.cfg
}

// Target is one secret field of one backend.
type Target struct {
	Backend primitive.Backend
	Field   string
}

// Overrides maps a primitive name to per-field sensitivity overrides.
type Overrides map[string]map[string]primitive.Sensitivity

// ValidateOverrides checks that every override names a registered primitive
// and fields of its category.
func ValidateOverrides(set *registry.Set, overrides Overrides) error {
	var errs primitive.ConfigErrors
	for name, o := range overrides {
		cat, ok := set.Category(name)
		if !ok {
			errs = append(errs, primitive.NewConfigError(primitive.ErrUnknownPrimitive, name, "",
				"secret classification given for an unregistered primitive"))
			continue
		}
		if err := primitive.DefaultClassification(cat).Merge(o).Validate(cat); err != nil {
			errs = append(errs, primitive.NewConfigError(primitive.ErrInvalidClassification, name, "", "%v", err))
		}
	}
	return errs.Err()
}

// Targets lists the secret fields of every backend in set. Overrides for
// primitives absent from set are ignored.
func Targets(set *registry.Set, overrides Overrides) ([]Target, error) {
	var (
		targets []Target
		errs    primitive.ConfigErrors
	)
	for _, name := range set.Primitives() {
		cat, _ := set.Category(name)
		cls := primitive.DefaultClassification(cat).Merge(overrides[name])
		if err := cls.Validate(cat); err != nil {
			errs = append(errs, primitive.NewConfigError(primitive.ErrInvalidClassification, name, "", "%v", err))
			continue
		}
		for _, b := range set.Backends(name) {
			for _, f := range cls.SecretFields() {
				targets = append(targets, Target{Backend: b, Field: f})
			}
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// Outcome collects what an audit produced.
type Outcome struct {
	Findings []result.TimingFinding
	// Errors records targets whose backend faulted during the audit.
	Errors []result.RunResult
	// Audited is the number of targets whose audit completed.
	Audited int
}

// TargetReport is the outcome of auditing one target.
type TargetReport struct {
	Findings []result.TimingFinding
	Fault    *result.RunResult
	// Complete is false when the audit was cancelled.
	Complete bool
}

// Audit audits every secret field of every backend in set, Parallel targets
// at a time. Trials of one target always run sequentially. On cancellation
// the findings of the targets that completed are returned with ctx.Err().
func (a *Auditor) Audit(ctx context.Context, set *registry.Set, overrides Overrides) (*Outcome, error) {
	if a.cfg.Mode == ModeOff {
		return &Outcome{}, nil
	}
	targets, err := Targets(set, overrides)
	if err != nil {
		return nil, err
	}

	a.log.Info(ctx, "constant-time audit started", "targets", len(targets), "mode", string(a.cfg.Mode))
	reports, err := runner.Dispatch(ctx, a.cfg.Parallel, len(targets), func(i int) TargetReport {
		return a.AuditTarget(ctx, targets[i])
	})

	out := &Outcome{}
	for _, r := range reports {
		out.Findings = append(out.Findings, r.Findings...)
		if r.Fault != nil {
			out.Errors = append(out.Errors, *r.Fault)
		}
		if r.Complete {
			out.Audited++
		}
	}
	a.log.Info(ctx, "constant-time audit finished", "audited", out.Audited, "findings", len(out.Findings), "errors", len(out.Errors))
	return out, err
}

// AuditTarget audits a single secret field.
func (a *Auditor) AuditTarget(ctx context.Context, t Target) TargetReport {
	b := t.Backend
	log := a.log.With("backend", b.ID(), "field", t.Field)

	size, err := fieldSize(b, t.Field)
	if err != nil {
		return TargetReport{Fault: fault(t, err), Complete: true}
	}
	r := corpus.NewRand(a.cfg.Seed, "ctaudit/"+b.ID()+"/"+t.Field)
	fx := newFixture(r, b)
	vs := secretVariants(r, size)

	var rep TargetReport
	if a.cfg.Mode.Trace() {
		f, err := a.traceTarget(t, fx, vs)
		if err != nil {
			log.Warn(ctx, "backend faulted during trace audit", "error", err)
			return TargetReport{Fault: fault(t, err), Complete: true}
		}
		if f != nil {
			rep.Findings = append(rep.Findings, *f)
		}
	}
	if a.cfg.Mode.Timing() {
		f, err := a.timingTarget(ctx, t, fx, vs, r)
		if ctx.Err() != nil {
			return rep
		}
		if err != nil {
			log.Warn(ctx, "backend faulted during timing audit", "error", err)
			rep.Fault = fault(t, err)
			rep.Complete = true
			return rep
		}
		if f != nil {
			rep.Findings = append(rep.Findings, *f)
		}
	}

	for _, f := range rep.Findings {
		metrics.TimingCounter().WithLabelValues(f.Primitive, string(f.Evidence.Kind)).Inc()
		log.Warn(ctx, "secret-dependent behavior", "evidence", string(f.Evidence.Kind), "detail", f.Evidence.Detail)
	}
	if len(rep.Findings) == 0 {
		log.Debug(ctx, "no secret-dependent behavior observed")
	}
	rep.Complete = true
	return rep
}

// traceTarget compares the traces of every configured variant pair and
// reports the first divergence. Backends that are not instrumentable yield
// no finding.
func (a *Auditor) traceTarget(t Target, fx fixture, vs []variant) (*result.TimingFinding, error) {
	instr, ok := t.Backend.Impl.(primitive.Instrumentable)
	if !ok {
		return nil, nil
	}
	cat := t.Backend.Descriptor.Category

	traces := make([]*recorder, len(vs))
	for i, v := range vs {
		rec := &recorder{}
		err := runner.Invoke(a.timeout, "trace", func() error {
			fn, err := prepare(cat, instr.Instrumented(rec), t.Field, fx, v.value)
			if err != nil {
				return err
			}
			return fn()
		})
		if err != nil {
			return nil, err
		}
		traces[i] = rec
	}

	for _, p := range variantPairs[:a.cfg.Pairs] {
		if d := divergence(traces[p[0]], traces[p[1]]); d != "" {
			f := finding(t, result.Evidence{
				Kind:   result.EvidenceTrace,
				Detail: fmt.Sprintf("%s vs %s: %s", vs[p[0]].name, vs[p[1]].name, d),
			})
			return &f, nil
		}
	}
	return nil, nil
}

// timingTarget times every configured variant pair and reports the pair
// with the largest variance ratio when it exceeds the threshold.
func (a *Auditor) timingTarget(ctx context.Context, t Target, fx fixture, vs []variant, r *rand.Rand) (*result.TimingFinding, error) {
	cat := t.Backend.Descriptor.Category
	fns := make([]func() error, len(vs))
	for i, v := range vs {
		var fn func() error
		err := runner.Invoke(a.timeout, "timing", func() error {
			f, err := prepare(cat, t.Backend.Impl, t.Field, fx, v.value)
			if err != nil {
				return err
			}
			fn = f
			return f()
		})
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}

	var (
		best     pairTiming
		bestPair [2]int
	)
	for _, p := range variantPairs[:a.cfg.Pairs] {
		pt, err := a.guardedTimePair(ctx, fns[p[0]], fns[p[1]], r)
		if err != nil {
			return nil, err
		}
		if pt.ratio > best.ratio {
			best, bestPair = pt, p
		}
	}
	if best.ratio <= a.cfg.Threshold {
		return nil, nil
	}

	f := finding(t, result.Evidence{
		Kind:      result.EvidenceTiming,
		Detail:    fmt.Sprintf("%s vs %s: pooled variance %.1fx within-class variance", vs[bestPair[0]].name, vs[bestPair[1]].name, best.ratio),
		Ratio:     math.Round(best.ratio*100) / 100,
		Threshold: a.cfg.Threshold,
		Trials:    best.trials,
	})
	return &f, nil
}

// guardedTimePair runs timePair on its own goroutine. A panic becomes an
// execution fault, and so does a pair whose variant calls make no progress
// for a whole CaseTimeout. Cancelling ctx abandons the trials.
func (a *Auditor) guardedTimePair(ctx context.Context, fa, fb func() error, r *rand.Rand) (pairTiming, error) {
	var calls atomic.Uint64
	counted := func(fn func() error) func() error {
		return func() error {
			err := fn()
			calls.Add(1)
			return err
		}
	}

	type timed struct {
		pt  pairTiming
		err error
	}
	done := make(chan timed, 1)
	// The trials get their own stream so an abandoned goroutine never shares r.
	tr := rand.New(rand.NewPCG(r.Uint64(), r.Uint64()))
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- timed{err: &primitive.ExecutionFault{Op: "timing", Err: fmt.Errorf("%w: %v", primitive.ErrPanic, p)}}
			}
		}()
		pt, err := a.timePair(ctx, counted(fa), counted(fb), tr)
		done <- timed{pt: pt, err: err}
	}()

	ticker := time.NewTicker(a.timeout)
	defer ticker.Stop()
	var seen uint64
	for {
		select {
		case res := <-done:
			var fe *primitive.ExecutionFault
			if res.err != nil && ctx.Err() == nil && !errors.As(res.err, &fe) {
				res.err = &primitive.ExecutionFault{Op: "timing", Err: res.err}
			}
			return res.pt, res.err
		case <-ctx.Done():
			return pairTiming{}, ctx.Err()
		case <-ticker.C:
			n := calls.Load()
			if n == seen {
				return pairTiming{}, &primitive.ExecutionFault{Op: "timing", Err: fmt.Errorf("%w after %s", primitive.ErrCaseTimeout, a.timeout)}
			}
			seen = n
		}
	}
}

func finding(t Target, ev result.Evidence) result.TimingFinding {
	d := t.Backend.Descriptor
	return result.TimingFinding{
		Primitive: d.Primitive,
		Backend:   d.Backend,
		Category:  d.Category,
		Field:     t.Field,
		Severity:  result.SeverityWarning,
		Evidence:  ev,
	}
}

func fault(t Target, err error) *result.RunResult {
	d := t.Backend.Descriptor
	return &result.RunResult{
		Kind:      result.KindAudit,
		CaseID:    "ctaudit:" + t.Field,
		Primitive: d.Primitive,
		Backend:   d.Backend,
		Outcome:   result.Error,
		Detail:    err.Error(),
	}
}
