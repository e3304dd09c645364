// Package suite runs the complete verification pipeline: it loads and
// validates test vectors, runs every backend against them, compares the
// backends of each primitive, audits secret-dependent behavior and
// aggregates everything into one report.
package suite

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/remiblancher/primlab/internal/backends"
	"github.com/remiblancher/primlab/internal/config"
	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/ctaudit"
	"github.com/remiblancher/primlab/internal/equivalence"
	"github.com/remiblancher/primlab/internal/journal"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/metrics"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/report"
	"github.com/remiblancher/primlab/internal/runner"
	"github.com/remiblancher/primlab/internal/vectors"
)

// Options carries the suite's collaborators. Only Config is required.
type Options struct {
	Config *config.Config
	Logger logging.Logger
	// Journal receives run events; nil disables journaling.
	Journal journal.Writer
	// Actor overrides the journal actor of every event.
	Actor *journal.Actor
	// Registry replaces the built-in backends.
	Registry *registry.Registry
	// SignKey seals every report when set.
	SignKey ed25519.PrivateKey
}

// Suite owns the backends of a process and runs the pipeline over them.
type Suite struct {
	cfg     *config.Config
	log     logging.Logger
	journal journal.Writer
	actor   *journal.Actor
	reg     *registry.Registry
	closer  io.Closer
	signKey ed25519.PrivateKey
}

// New builds a suite. Unless opts.Registry is set, the built-in backends
// are registered, including the token backend when PKCS#11 is configured;
// Close releases it.
func New(ctx context.Context, opts Options) (*Suite, error) {
	if opts.Config == nil {
		return nil, errors.New("suite: configuration is required")
	}
	s := &Suite{
		cfg:     opts.Config,
		log:     logging.OrDiscard(opts.Logger),
		journal: opts.Journal,
		actor:   opts.Actor,
		reg:     opts.Registry,
		closer:  nopCloser{},
		signKey: opts.SignKey,
	}
	if s.journal == nil {
		s.journal = journal.NopWriter{}
	}
	if s.reg == nil {
		s.reg = registry.New()
		closer, err := backends.RegisterDefaults(ctx, s.reg, backends.Options{
			PKCS11: s.cfg.PKCS11,
			Logger: s.log,
		})
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		s.closer = closer
	}
	return s, nil
}

// Close releases backend resources.
func (s *Suite) Close() error {
	return s.closer.Close()
}

// Config returns the configuration the suite runs with.
func (s *Suite) Config() *config.Config {
	return s.cfg
}

// Backends returns the backends a run would exercise, after filtering.
func (s *Suite) Backends() (*registry.Set, error) {
	all, err := s.reg.Snapshot()
	if err != nil {
		return nil, err
	}
	return all.Filter(s.cfg.Primitives, s.cfg.Backends)
}

// LoadVectors reads the embedded corpus, if enabled, and every configured
// path into one store. Every load problem is reported together.
func (s *Suite) LoadVectors() (*vectors.Store, error) {
	var (
		all  []vectors.Vector
		errs []error
	)
	if s.cfg.Vectors.Embedded {
		vs, err := vectors.LoadEmbedded()
		if err != nil {
			errs = append(errs, fmt.Errorf("embedded vectors: %w", err))
		}
		all = append(all, vs...)
	}
	for _, p := range s.cfg.Vectors.Paths {
		vs, err := vectors.LoadPath(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		all = append(all, vs...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return vectors.NewStore(all)
}

// Plan prepares a run: it snapshots and filters the backends, checks the
// secret classification overrides and validates the vectors. Any
// ConfigurationError is returned before a backend executes.
func (s *Suite) Plan() (*registry.Set, *vectors.Plan, ctaudit.Overrides, error) {
	all, err := s.reg.Snapshot()
	if err != nil {
		return nil, nil, nil, err
	}
	set, err := all.Filter(s.cfg.Primitives, s.cfg.Backends)
	if err != nil {
		return nil, nil, nil, err
	}
	overrides, err := s.cfg.Overrides()
	if err != nil {
		return nil, nil, nil, primitive.NewConfigError(primitive.ErrInvalidClassification, "", "", "%v", err)
	}
	if err := ctaudit.ValidateOverrides(all, overrides); err != nil {
		return nil, nil, nil, err
	}
	st, err := s.LoadVectors()
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := st.Validate(set)
	if err != nil {
		return nil, nil, nil, err
	}
	return set, plan, overrides, nil
}

// Outcome is what a run produced.
type Outcome struct {
	Report *report.Report
	// Sealed is the COSE_Sign1 seal of Report, when a signing key is set.
	Sealed []byte
	// Skipped lists vectors whose primitive had no selected backend.
	Skipped []vectors.Vector
}

// Run executes the pipeline once. A ConfigurationError aborts the run and
// is returned without a report. Cancelling ctx stops the pipeline at the
// next case boundary and returns a report marked Partial, holding only the
// results that completed, together with ctx.Err().
func (s *Suite) Run(ctx context.Context) (*Outcome, error) {
	cfg := s.cfg
	if err := s.record(journal.EventRunStarted, journal.ResultSuccess, journal.Details{Seed: cfg.Seed}); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "run started", "seed", cfg.Seed, "random_inputs", cfg.RandomInputs, "audit", string(cfg.Audit.Mode))

	set, plan, overrides, err := s.Plan()
	if err != nil {
		s.log.Error(ctx, "configuration rejected", "error", err)
		if jerr := s.record(journal.EventConfigRejected, journal.ResultFailure, journal.Details{
			Seed:   cfg.Seed,
			Reason: err.Error(),
		}); jerr != nil {
			return nil, errors.Join(err, jerr)
		}
		return nil, err
	}
	if err := s.record(journal.EventVectorsLoaded, journal.ResultSuccess, journal.Details{
		Seed:     cfg.Seed,
		Backends: set.Len(),
		Vectors:  plan.Store.Len(),
	}); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "vectors loaded", "backends", set.Len(), "vectors", plan.Store.Len(), "skipped", len(plan.Skipped))

	in, runErr := s.execute(ctx, set, plan.Store, overrides)
	in.Seed = cfg.Seed
	in.Partial = runErr != nil
	for _, b := range set.All() {
		in.Backends = append(in.Backends, b.Descriptor)
	}

	r, err := report.Build(in)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	out := &Outcome{Report: r, Skipped: plan.Skipped}

	metrics.StatusGauge().Set(float64(r.Status.Level()))
	metrics.RunCounter().WithLabelValues(string(r.Status)).Inc()

	details := journal.Details{
		RunID:    r.RunID,
		Seed:     r.Seed,
		Status:   string(r.Status),
		Backends: r.Summary.Backends,
		Cases:    r.Summary.Cases,
		Findings: r.Summary.Equivalence + r.Summary.Timing,
	}
	if runErr != nil {
		details.Reason = runErr.Error()
		s.log.Warn(ctx, "run aborted", "run_id", r.RunID, "cases", r.Summary.Cases, "error", runErr)
		if err := s.record(journal.EventRunAborted, journal.ResultFailure, details); err != nil {
			return out, errors.Join(runErr, err)
		}
		return out, runErr
	}

	s.log.Info(ctx, "run completed", "run_id", r.RunID, "status", string(r.Status),
		"cases", r.Summary.Cases, "failures", r.Summary.Fail+r.Summary.Error,
		"equivalence_findings", r.Summary.Equivalence, "timing_findings", r.Summary.Timing)
	if err := s.record(journal.EventRunCompleted, journal.ResultSuccess, details); err != nil {
		return out, err
	}

	if s.signKey != nil {
		sealed, err := report.Seal(r, s.signKey)
		if err != nil {
			return out, fmt.Errorf("failed to seal report: %w", err)
		}
		out.Sealed = sealed
		kid := hex.EncodeToString(report.KeyID(s.signKey.Public().(ed25519.PublicKey)))
		if err := s.record(journal.EventReportSealed, journal.ResultSuccess, journal.Details{
			RunID:  r.RunID,
			Seed:   r.Seed,
			Status: string(r.Status),
			KeyID:  kid,
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// execute runs every stage in order and stops after the first stage that
// was cancelled. The input it returns holds whatever completed.
func (s *Suite) execute(ctx context.Context, set *registry.Set, st *vectors.Store, overrides ctaudit.Overrides) (report.Input, error) {
	cfg := s.cfg
	var in report.Input

	corpora := make(map[string][]corpus.Case, len(set.Primitives()))
	for _, p := range set.Primitives() {
		ref, _ := set.Reference(p)
		cases, faults := corpus.Build(ctx, ref, st.For(p), corpus.Options{Seed: cfg.Seed, Count: cfg.RandomInputs})
		corpora[p] = cases
		in.Results = append(in.Results, faults...)
	}
	if err := ctx.Err(); err != nil {
		return in, err
	}

	run := runner.New(runner.Options{Workers: cfg.Workers, CaseTimeout: cfg.CaseTimeout, Logger: s.log})
	results, err := run.Run(ctx, set, st)
	in.Results = append(in.Results, results...)
	if err != nil {
		return in, err
	}

	props, err := run.Properties(ctx, set, corpora)
	in.Results = append(in.Results, props...)
	if err != nil {
		return in, err
	}

	eq, err := equivalence.New(equivalence.Options{
		Workers:     cfg.Workers,
		CaseTimeout: cfg.CaseTimeout,
		Logger:      s.log,
	}).Check(ctx, set, corpora)
	if eq != nil {
		in.Equivalence = eq.Findings
		in.Results = append(in.Results, eq.Errors...)
	}
	if err != nil {
		return in, err
	}

	audit := cfg.Audit
	audit.Seed = cfg.Seed
	auditor, err := ctaudit.New(audit, ctaudit.Options{Logger: s.log, CaseTimeout: cfg.CaseTimeout})
	if err != nil {
		return in, err
	}
	ct, err := auditor.Audit(ctx, set, overrides)
	if ct != nil {
		in.Timing = ct.Findings
		in.Results = append(in.Results, ct.Errors...)
	}
	return in, err
}

func (s *Suite) record(t journal.EventType, res journal.Result, d journal.Details) error {
	e := journal.NewEvent(t, res, d)
	if s.actor != nil {
		e.WithActor(*s.actor)
	}
	if err := s.journal.Write(e); err != nil {
		return fmt.Errorf("failed to journal %s: %w", t, err)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
