package runner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/metrics"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/result"
)

// Contract properties checked on every backend over the shared corpus.
const (
	PropDeterminism = "determinism"
	PropStreaming   = "streaming"
	PropRoundTrip   = "round-trip"
	PropSignVerify  = "sign-verify"
)

// streamChunks are the write sizes used to feed a streaming hash.
var streamChunks = []int{1, 3, 7, 64, 5, 128}

type propJob struct {
	backend primitive.Backend
	name    string
	c       corpus.Case
}

// Properties checks the category contract of every backend in set over the
// corpus of its primitive:
//   - hash: digest is deterministic; streaming equals one-shot when declared
//   - block cipher: decrypt(key, encrypt(key, block)) == block
//   - signature: for every case carrying a seed, verify accepts a fresh
//     signature and rejects a mutated message, a foreign key and a mutated
//     signature without faulting
func (r *Runner) Properties(ctx context.Context, set *registry.Set, corpora map[string][]corpus.Case) ([]result.RunResult, error) {
	var jobs []propJob
	for _, b := range set.All() {
		for _, c := range corpora[b.Descriptor.Primitive] {
			switch b.Descriptor.Category {
			case primitive.CategoryHash:
				jobs = append(jobs, propJob{b, PropDeterminism, c})
				if b.Descriptor.Capabilities.Streaming {
					jobs = append(jobs, propJob{b, PropStreaming, c})
				}
			case primitive.CategoryBlockCipher:
				jobs = append(jobs, propJob{b, PropRoundTrip, c})
			case primitive.CategorySignature:
				if _, ok := c.Params[primitive.ParamSeed]; ok {
					jobs = append(jobs, propJob{b, PropSignVerify, c})
				}
			}
		}
	}

	return Dispatch(ctx, r.workers, len(jobs), func(i int) result.RunResult {
		return r.checkProperty(jobs[i])
	})
}

func (r *Runner) checkProperty(j propJob) result.RunResult {
	res := result.RunResult{
		Kind:      result.KindProperty,
		CaseID:    j.name + ":" + j.c.ID,
		Primitive: j.backend.Descriptor.Primitive,
		Backend:   j.backend.Descriptor.Backend,
	}

	var violation string
	err := Invoke(r.timeout, j.name, func() error {
		var err error
		violation, err = property(j)
		return err
	})
	switch {
	case err != nil:
		res.Outcome = result.Error
		res.Detail = err.Error()
	case violation != "":
		res.Outcome = result.Fail
		res.Detail = violation
	default:
		res.Outcome = result.Pass
	}
	metrics.CaseCounter().WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
	return res
}

func property(j propJob) (string, error) {
	b, c := j.backend, j.c
	switch j.name {
	case PropDeterminism:
		h := b.Hash()
		first, err := h.Digest(c.Input)
		if err != nil {
			return "", err
		}
		second, err := h.Digest(c.Input)
		if err != nil {
			return "", err
		}
		if len(first) != h.Size() {
			return fmt.Sprintf("digest is %d bytes, declared %d", len(first), h.Size()), nil
		}
		return diff("repeated digest", second, first), nil

	case PropStreaming:
		oneShot, err := b.Hash().Digest(c.Input)
		if err != nil {
			return "", err
		}
		st := b.Streamer().New()
		rest := c.Input
		for i := 0; len(rest) > 0; i++ {
			n := min(streamChunks[i%len(streamChunks)], len(rest))
			if _, err := st.Write(rest[:n]); err != nil {
				return "", err
			}
			rest = rest[n:]
		}
		return diff("streamed digest", st.Sum(nil), oneShot), nil

	case PropRoundTrip:
		bc := b.BlockCipher()
		key := c.Params[primitive.ParamKey]
		ct, err := bc.EncryptBlock(key, c.Input)
		if err != nil {
			return "", fmt.Errorf("encrypt: %w", err)
		}
		pt, err := bc.DecryptBlock(key, ct)
		if err != nil {
			return "", fmt.Errorf("decrypt: %w", err)
		}
		return diff("decrypt(encrypt(block))", pt, c.Input), nil

	case PropSignVerify:
		return signVerify(b.Signature(), c.Params[primitive.ParamSeed], c.Input)
	}
	return "", fmt.Errorf("unknown property %q", j.name)
}

func signVerify(s primitive.SignatureScheme, seed, msg []byte) (string, error) {
	pk, sk, err := s.GenerateKey(seed)
	if err != nil {
		return "", fmt.Errorf("keygen: %w", err)
	}
	sig, err := s.Sign(sk, msg)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	if !s.Verify(pk, msg, sig) {
		return "verify rejected its own signature", nil
	}

	otherSeed := flipFirstBit(seed)
	otherPK, _, err := s.GenerateKey(otherSeed)
	if err != nil {
		return "", fmt.Errorf("keygen: %w", err)
	}
	if bytes.Equal(otherPK, pk) {
		return "distinct seeds produced the same public key", nil
	}

	switch {
	case s.Verify(pk, appendOrFlip(msg), sig):
		return "verify accepted a mutated message", nil
	case s.Verify(otherPK, msg, sig):
		return "verify accepted a signature under a foreign key", nil
	case s.Verify(pk, msg, flipFirstBit(sig)):
		return "verify accepted a mutated signature", nil
	}
	return "", nil
}

func flipFirstBit(b []byte) []byte {
	out := append([]byte(nil), b...)
	if len(out) > 0 {
		out[0] ^= 0x01
	}
	return out
}

func appendOrFlip(b []byte) []byte {
	if len(b) == 0 {
		return []byte{0}
	}
	return flipFirstBit(b)
}
