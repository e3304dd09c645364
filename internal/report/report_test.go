package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/result"
)

// =============================================================================
// Fixtures
// =============================================================================

func pass(p, b, id string) result.RunResult {
	return result.RunResult{Kind: result.KindVector, CaseID: id, Primitive: p, Backend: b, Outcome: result.Pass}
}

func sampleInput() Input {
	return Input{
		Seed: 42,
		Backends: []primitive.Descriptor{
			{Category: primitive.CategoryHash, Primitive: "sha256", Backend: "stdlib", Reference: true},
			{Category: primitive.CategoryBlockCipher, Primitive: "aes", Backend: "stdlib"},
			{Category: primitive.CategoryBlockCipher, Primitive: "aes", Backend: "portable", Reference: true},
		},
		Results: []result.RunResult{
			pass("sha256", "stdlib", "vec:abc"),
			pass("aes", "stdlib", "vec:fips-197-c1"),
			pass("aes", "portable", "vec:fips-197-c1"),
		},
	}
}

func timingFinding() result.TimingFinding {
	return result.TimingFinding{
		Primitive: "aes", Backend: "stdlib", Category: primitive.CategoryBlockCipher,
		Field: primitive.FieldKey, Severity: result.SeverityWarning,
		Evidence: result.Evidence{Kind: result.EvidenceTiming, Detail: "zero vs random-1", Ratio: 5.25, Threshold: 3, Trials: 400},
	}
}

func equivalenceFinding() result.EquivalenceFinding {
	return result.EquivalenceFinding{
		Primitive: "aes", CaseID: "rand:3",
		Input: []result.Field{{Name: "key", Value: "000102"}, {Name: "block", Value: "ff"}},
		Groups: []result.OutputGroup{
			{Output: "00aa", Backends: []string{"aes/portable"}},
			{Output: "00bb", Backends: []string{"aes/stdlib"}},
		},
		Disagreeing: []string{"aes/stdlib"},
	}
}

// =============================================================================
// Status
// =============================================================================

func TestU_ComputeStatus(t *testing.T) {
	ok := []result.RunResult{pass("sha256", "stdlib", "vec:a")}
	failed := append(ok, result.RunResult{Outcome: result.Fail})
	errored := append(ok, result.RunResult{Outcome: result.Error})
	eq := []result.EquivalenceFinding{equivalenceFinding()}
	timing := []result.TimingFinding{timingFinding()}

	tests := []struct {
		name   string
		status Status
		got    Status
	}{
		{"[Unit] Status: all pass", Green, ComputeStatus(ok, nil, nil)},
		{"[Unit] Status: empty run", Green, ComputeStatus(nil, nil, nil)},
		{"[Unit] Status: timing only", Yellow, ComputeStatus(ok, nil, timing)},
		{"[Unit] Status: fail", Red, ComputeStatus(failed, nil, nil)},
		{"[Unit] Status: error", Red, ComputeStatus(errored, nil, timing)},
		{"[Unit] Status: equivalence", Red, ComputeStatus(ok, eq, timing)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.got)
		})
	}

	assert.Equal(t, 0, Green.Level())
	assert.Equal(t, 1, Yellow.Level())
	assert.Equal(t, 2, Red.Level())
}

// =============================================================================
// Build
// =============================================================================

func TestU_Build_SortsAndSummarizes(t *testing.T) {
	in := sampleInput()
	in.Results = append(in.Results, result.RunResult{
		Kind: result.KindEquivalence, CaseID: "rand:1", Primitive: "aes", Backend: "stdlib", Outcome: result.Error, Detail: "timeout",
	})
	in.Timing = []result.TimingFinding{timingFinding()}

	r, err := Build(in)
	require.NoError(t, err)

	assert.Equal(t, Red, r.Status)
	assert.Equal(t, Summary{Primitives: 2, Backends: 3, Cases: 4, Pass: 3, Error: 1, Timing: 1}, r.Summary)

	var ids []string
	for _, d := range r.Backends {
		ids = append(ids, d.ID())
	}
	assert.Equal(t, []string{"aes/portable", "aes/stdlib", "sha256/stdlib"}, ids)

	assert.Equal(t, "aes/portable", r.Results[0].BackendID())
	assert.Equal(t, result.KindEquivalence, r.Results[1].Kind)
	assert.Equal(t, result.KindVector, r.Results[2].Kind)
	require.Len(t, r.Failures(), 1)

	// The input is left untouched.
	assert.Equal(t, "sha256", in.Results[0].Primitive)
}

func TestU_Build_Deterministic(t *testing.T) {
	a, err := Build(sampleInput())
	require.NoError(t, err)

	shuffled := sampleInput()
	shuffled.Results[0], shuffled.Results[2] = shuffled.Results[2], shuffled.Results[0]
	shuffled.Backends[0], shuffled.Backends[1] = shuffled.Backends[1], shuffled.Backends[0]
	b, err := Build(shuffled)
	require.NoError(t, err)

	assert.Equal(t, a.RunID, b.RunID)
	for _, f := range []Format{FormatJSON, FormatYAML, FormatCBOR, FormatText} {
		x, err := Marshal(a, f)
		require.NoError(t, err)
		y, err := Marshal(b, f)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(x, y), "format %s", f)
	}

	other := sampleInput()
	other.Seed = 43
	c, err := Build(other)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, c.RunID)
}

// =============================================================================
// Encoding
// =============================================================================

func TestU_Format_Parse(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatCBOR, FormatFromPath("out/report.cbor"))
	assert.Equal(t, FormatYAML, FormatFromPath("report.yml"))
	assert.Equal(t, FormatJSON, FormatFromPath("report"))
}

func TestU_Encode_Decodable(t *testing.T) {
	in := sampleInput()
	in.Equivalence = []result.EquivalenceFinding{equivalenceFinding()}
	in.Timing = []result.TimingFinding{timingFinding()}
	r, err := Build(in)
	require.NoError(t, err)

	for _, f := range []Format{FormatJSON, FormatYAML, FormatCBOR} {
		t.Run("[Unit] Encode: "+string(f), func(t *testing.T) {
			data, err := Marshal(r, f)
			require.NoError(t, err)
			got, err := Unmarshal(data, f)
			require.NoError(t, err)
			assert.Equal(t, r.RunID, got.RunID)
			assert.Equal(t, Red, got.Status)
			assert.Equal(t, r.Summary, got.Summary)
			assert.Equal(t, r.Equivalence, got.Equivalence)
			assert.Equal(t, r.Timing, got.Timing)
		})
	}

	_, err = Unmarshal([]byte(`{"status":"purple"}`), FormatJSON)
	assert.Error(t, err)
	_, err = Unmarshal([]byte("x"), FormatText)
	assert.Error(t, err)
}

func TestU_Encode_Text(t *testing.T) {
	in := sampleInput()
	in.Equivalence = []result.EquivalenceFinding{equivalenceFinding()}
	in.Timing = []result.TimingFinding{timingFinding()}
	in.Partial = true
	r, err := Build(in)
	require.NoError(t, err)

	data, err := Marshal(r, FormatText)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "RED")
	assert.Contains(t, out, "Partial:")
	assert.Contains(t, out, "rand:3")
	assert.Contains(t, out, "[aes/stdlib]=00bb")
	assert.Contains(t, out, "timing-variance")
}

// =============================================================================
// Sealing
// =============================================================================

func TestU_Seal_RoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)
	r, err := Build(sampleInput())
	require.NoError(t, err)

	sealed, err := Seal(r, priv)
	require.NoError(t, err)

	got, err := Open(sealed, pub)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, Green, got.Status)

	t.Run("[Unit] Seal: wrong key", func(t *testing.T) {
		other, _, err := GenerateKey()
		require.NoError(t, err)
		_, err = Open(sealed, other)
		assert.ErrorIs(t, err, ErrBadSeal)
	})

	t.Run("[Unit] Seal: tampered", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		i := bytes.Index(tampered, []byte("green"))
		require.Positive(t, i)
		copy(tampered[i:], "red  ")
		_, err := Open(tampered, pub)
		assert.Error(t, err)
	})

	t.Run("[Unit] Seal: garbage", func(t *testing.T) {
		_, err := Open([]byte{0x01, 0x02}, pub)
		assert.Error(t, err)
	})
}

func TestU_Keys_PEM(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)
	dir := t.TempDir()

	privPEM, err := EncodePrivateKeyPEM(priv)
	require.NoError(t, err)
	pubPEM, err := EncodePublicKeyPEM(pub)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seal.key"), privPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seal.pub"), pubPEM, 0o644))

	gotPriv, err := LoadPrivateKey(filepath.Join(dir, "seal.key"))
	require.NoError(t, err)
	assert.True(t, priv.Equal(gotPriv))
	gotPub, err := LoadPublicKey(filepath.Join(dir, "seal.pub"))
	require.NoError(t, err)
	assert.True(t, pub.Equal(gotPub))
	assert.Len(t, KeyID(pub), 8)

	_, err = LoadPublicKey(filepath.Join(dir, "seal.key"))
	assert.Error(t, err)
	_, err = LoadPrivateKey(filepath.Join(dir, "missing.key"))
	assert.Error(t, err)
}
