// Package runner executes backends against their test vectors and checks
// the contract properties every backend of a category must satisfy.
package runner

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/metrics"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/vectors"
)

// DefaultCaseTimeout bounds a single test case.
const DefaultCaseTimeout = 5 * time.Second

// Options configures a Runner.
type Options struct {
	Workers     int
	CaseTimeout time.Duration
	Logger      logging.Logger
}

// Runner is the vector runner. It is safe for concurrent use.
type Runner struct {
	workers int
	timeout time.Duration
	log     logging.Logger
}

// New returns a Runner. Zero options select GOMAXPROCS workers and
// DefaultCaseTimeout.
func New(opts Options) *Runner {
	r := &Runner{
		workers: opts.Workers,
		timeout: opts.CaseTimeout,
		log:     logging.OrDiscard(opts.Logger),
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultCaseTimeout
	}
	return r
}

// Timeout returns the per-case timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Workers returns the worker pool size.
func (r *Runner) Workers() int {
	return r.workers
}

type job struct {
	backend primitive.Backend
	vector  vectors.Vector
}

// Run executes every backend in set against every vector of its primitive.
// The vectors must have been validated against set. On cancellation the
// results of cases that completed are returned along with ctx.Err().
func (r *Runner) Run(ctx context.Context, set *registry.Set, st *vectors.Store) ([]result.RunResult, error) {
	var jobs []job
	for _, b := range set.All() {
		for _, v := range st.For(b.Descriptor.Primitive) {
			jobs = append(jobs, job{backend: b, vector: v})
		}
	}
	r.log.Debug(ctx, "running vectors", "cases", len(jobs), "workers", r.workers)

	results, err := Dispatch(ctx, r.workers, len(jobs), func(i int) result.RunResult {
		return r.Check(jobs[i].backend, jobs[i].vector)
	})
	if err != nil {
		r.log.Warn(ctx, "vector run interrupted", "completed", len(results), "planned", len(jobs))
	}
	return results, err
}

// Check executes one backend on one vector.
func (r *Runner) Check(b primitive.Backend, v vectors.Vector) result.RunResult {
	res := result.RunResult{
		Kind:      result.KindVector,
		CaseID:    v.ID,
		Primitive: b.Descriptor.Primitive,
		Backend:   b.Descriptor.Backend,
	}

	var mismatch string
	start := time.Now()
	err := Invoke(r.timeout, string(b.Descriptor.Category), func() error {
		var err error
		mismatch, err = evaluate(b, v)
		return err
	})
	metrics.CaseObserver().Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		res.Outcome = result.Error
		res.Detail = err.Error()
	case mismatch != "":
		res.Outcome = result.Fail
		res.Detail = mismatch
	default:
		res.Outcome = result.Pass
	}
	metrics.CaseCounter().WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
	return res
}

// evaluate returns a non-empty mismatch description for a wrong answer and
// an error when the backend could not complete.
func evaluate(b primitive.Backend, v vectors.Vector) (string, error) {
	d := b.Descriptor
	switch d.Category {
	case primitive.CategoryHash:
		got, err := b.Hash().Digest(v.Input)
		if err != nil {
			return "", fmt.Errorf("digest: %w", err)
		}
		return diff("digest", got, v.Expected), nil

	case primitive.CategoryBlockCipher:
		c := b.BlockCipher()
		key := v.Param(primitive.ParamKey)
		ct, err := c.EncryptBlock(key, v.Input)
		if err != nil {
			return "", fmt.Errorf("encrypt: %w", err)
		}
		if m := diff("encrypt", ct, v.Expected); m != "" {
			return m, nil
		}
		pt, err := c.DecryptBlock(key, v.Expected)
		if err != nil {
			return "", fmt.Errorf("decrypt: %w", err)
		}
		return diff("decrypt", pt, v.Input), nil

	case primitive.CategorySignature:
		s := b.Signature()
		pk := v.Param(primitive.ParamPublicKey)
		ok := s.Verify(pk, v.Input, v.Expected)
		if v.ExpectFailure {
			if ok {
				return "verify accepted a signature that must be rejected", nil
			}
			return "", nil
		}
		if !ok {
			return "verify rejected a valid signature", nil
		}

		seed, hasSeed := v.Params[primitive.ParamSeed]
		if !hasSeed {
			return "", nil
		}
		genPK, sk, err := s.GenerateKey(seed)
		if err != nil {
			return "", fmt.Errorf("keygen: %w", err)
		}
		if m := diff("keygen public key", genPK, pk); m != "" {
			return m, nil
		}
		if !d.Capabilities.DeterministicSign {
			return "", nil
		}
		sig, err := s.Sign(sk, v.Input)
		if err != nil {
			return "", fmt.Errorf("sign: %w", err)
		}
		return diff("sign", sig, v.Expected), nil
	}
	return "", errors.New("unknown category " + string(d.Category))
}

func diff(op string, got, want []byte) string {
	if bytes.Equal(got, want) {
		return ""
	}
	return fmt.Sprintf("%s: got %s, want %s", op, abbrev(got), abbrev(want))
}

func abbrev(b []byte) string {
	const limit = 48
	if len(b) <= limit {
		return hex.EncodeToString(b)
	}
	return fmt.Sprintf("%s…(%d bytes)", hex.EncodeToString(b[:limit]), len(b))
}
