package equivalence

import (
	"context"
	"crypto/aes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/backends/aesref"
	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/runner"
	"github.com/remiblancher/primlab/internal/vectors"
)

// swappedSchedule exchanges the first two bytes of the round-0 key and
// leaves every later round key intact.
func swappedSchedule(key []byte) (*aesref.Schedule, error) {
	s, err := aesref.ExpandKey(key)
	if err != nil {
		return nil, err
	}
	w := s.Words()
	w[0] = w[0]&0x0000ffff | (w[0]>>16&0xff)<<24 | (w[0]>>24)<<16
	return aesref.NewScheduleFromWords(w)
}

type stdAES struct{}

func (stdAES) BlockSize() int  { return aes.BlockSize }
func (stdAES) KeySizes() []int { return []int{16, 24, 32} }

func (stdAES) EncryptBlock(key, block []byte) ([]byte, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

func (stdAES) DecryptBlock(key, block []byte) ([]byte, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize)
	c.Decrypt(out, block)
	return out, nil
}

func TestF_Equivalence_KeyScheduleBug(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.RegisterBlockCipher(primitive.Descriptor{Primitive: "aes", Backend: "portable", Reference: true}, aesref.Cipher{}))
	require.NoError(t, reg.RegisterBlockCipher(primitive.Descriptor{Primitive: "aes", Backend: "stdlib"}, stdAES{}))
	require.NoError(t, reg.RegisterBlockCipher(primitive.Descriptor{Primitive: "aes", Backend: "buggy"}, aesref.Cipher{Schedule: swappedSchedule}))
	set, err := reg.Snapshot()
	require.NoError(t, err)

	all, err := vectors.LoadEmbedded()
	require.NoError(t, err)
	st, err := vectors.NewStore(all)
	require.NoError(t, err)
	plan, err := st.Validate(set)
	require.NoError(t, err)
	aesVectors := plan.Store.For("aes")
	require.Len(t, aesVectors, 10)

	// Every embedded AES key has distinct leading bytes, so every vector fails.
	results, err := runner.New(runner.Options{Workers: 4}).Run(context.Background(), set, plan.Store)
	require.NoError(t, err)
	counts := map[string]map[result.Outcome]int{}
	for _, r := range results {
		if counts[r.Backend] == nil {
			counts[r.Backend] = map[result.Outcome]int{}
		}
		counts[r.Backend][r.Outcome]++
	}
	assert.Equal(t, 10, counts["portable"][result.Pass])
	assert.Equal(t, 10, counts["stdlib"][result.Pass])
	assert.Equal(t, 10, counts["buggy"][result.Fail])
	assert.Zero(t, counts["buggy"][result.Error])

	ref, _ := set.Reference("aes")
	built, faults := corpus.Build(context.Background(), ref, aesVectors, corpus.Options{Seed: 2024, Count: 120})
	require.Empty(t, faults)

	// A key whose first two bytes are equal makes the swap a no-op, so the
	// random inputs are the first 100 keys where the swap takes effect.
	var cases []corpus.Case
	random := 0
	for _, c := range built {
		if strings.HasPrefix(c.ID, "vec:") {
			cases = append(cases, c)
			continue
		}
		if k := c.Params[primitive.ParamKey]; k[0] != k[1] && random < 100 {
			cases = append(cases, c)
			random++
		}
	}
	require.Equal(t, 100, random)
	require.Len(t, cases, 110)

	out, err := New(Options{Workers: 4}).Check(context.Background(), set, map[string][]corpus.Case{"aes": cases})
	require.NoError(t, err)
	assert.Equal(t, len(cases), out.Compared)
	assert.Len(t, out.Findings, 110)
	for _, f := range out.Findings {
		assert.True(t, f.Majority)
		assert.Equal(t, []string{"aes/buggy"}, f.Disagreeing)
		assert.Equal(t, []string{"aes/portable", "aes/stdlib"}, f.Groups[0].Backends)
	}
}
