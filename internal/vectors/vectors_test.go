package vectors

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
)

// =============================================================================
// Fixtures
// =============================================================================

type sha struct{}

func (sha) Size() int { return sha256.Size }

func (sha) Digest(m []byte) ([]byte, error) {
	d := sha256.Sum256(m)
	return d[:], nil
}

type nopCipher struct{}

func (nopCipher) BlockSize() int                           { return 16 }
func (nopCipher) KeySizes() []int                          { return []int{16, 24, 32} }
func (nopCipher) EncryptBlock(_, b []byte) ([]byte, error) { return b, nil }
func (nopCipher) DecryptBlock(_, b []byte) ([]byte, error) { return b, nil }

func testSet(t *testing.T) *registry.Set {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.RegisterHash(primitive.Descriptor{Primitive: "sha256", Backend: "stdlib", Reference: true}, sha{}))
	require.NoError(t, r.RegisterBlockCipher(primitive.Descriptor{Primitive: "aes", Backend: "nop", Reference: true}, nopCipher{}))
	set, err := r.Snapshot()
	require.NoError(t, err)
	return set
}

const sampleYAML = `version: 1
source: test
primitive: sha256
category: hash
vectors:
  - id: empty
    input: ""
    expected: "e3b0c442 98fc1c14 9afbf4c8 996fb924 27ae41e4 649b934c a495991b 7852b855"
  - id: abc
    input: "0x616263"
    expected: ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad
`

// =============================================================================
// Loading
// =============================================================================

func TestU_LoadBytes_YAML(t *testing.T) {
	vs, err := LoadBytes("sha.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, vs, 2)

	assert.Equal(t, "sha256", vs[0].Primitive, "file default applies")
	assert.Equal(t, primitive.CategoryHash, vs[0].Category)
	assert.NotNil(t, vs[0].Input, "empty input is an empty slice, not nil")
	assert.Empty(t, vs[0].Input)
	assert.Equal(t, []byte("abc"), vs[1].Input)
	assert.Len(t, vs[0].Expected, 32)
	assert.Equal(t, "sha.yaml", vs[0].Origin)
}

func TestU_LoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"[Unit] LoadBytes: bad extension", "v.txt", sampleYAML},
		{"[Unit] LoadBytes: bad hex", "v.yaml", "version: 1\nprimitive: x\nvectors:\n  - id: a\n    input: zz\n    expected: \"\"\n"},
		{"[Unit] LoadBytes: missing id", "v.yaml", "version: 1\nprimitive: x\nvectors:\n  - input: \"00\"\n    expected: \"00\"\n"},
		{"[Unit] LoadBytes: missing primitive", "v.yaml", "version: 1\nvectors:\n  - id: a\n    input: \"00\"\n    expected: \"00\"\n"},
		{"[Unit] LoadBytes: unknown category", "v.yaml", "version: 1\nprimitive: x\ncategory: mac\nvectors:\n  - id: a\n    input: \"00\"\n    expected: \"00\"\n"},
		{"[Unit] LoadBytes: wrong version", "v.yaml", "version: 2\nvectors: []\n"},
		{"[Unit] LoadBytes: unknown field", "v.json", `{"version":1,"vectors":[],"extra":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes(tt.file, []byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, primitive.ErrMalformedVector))
		})
	}
}

func TestU_LoadEmbedded(t *testing.T) {
	vs, err := LoadEmbedded()
	require.NoError(t, err)

	st, err := NewStore(vs)
	require.NoError(t, err)
	assert.Equal(t, []string{"aes", "blake2b-256", "ed25519", "ed448", "ripemd160", "secp256k1-ecdsa", "sha256", "sha3-256"}, st.Primitives())
	assert.Len(t, st.For("aes"), 10)
	assert.Len(t, st.For("sha256"), 4)

	negatives := 0
	for _, v := range st.For("ed25519") {
		if v.ExpectFailure {
			negatives++
		}
	}
	assert.Equal(t, 4, negatives)
}

func TestU_LoadFS_SkipsUnknownFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a/sha.yaml": {Data: []byte(sampleYAML)},
		"README.md":  {Data: []byte("# vectors")},
	}
	vs, err := LoadFS(fsys, ".")
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, "a/sha.yaml", vs[0].Origin)
}

func TestU_WriteFile_CompressedCBOR(t *testing.T) {
	vs, err := LoadBytes("sha.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "sha.cbor.lz4")
	require.NoError(t, WriteFile(p, "test", vs))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x22, 0x4d, 0x18}, raw[:4], "LZ4 frame magic")

	back, err := LoadPath(p)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, vs[1].Input, back[1].Input)
	assert.Equal(t, vs[1].Expected, back[1].Expected)
	assert.Equal(t, "sha256", back[1].Primitive)
}

func TestU_LoadPath_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sha.yaml"), []byte(sampleYAML), 0o644))

	vs, err := LoadPath(dir)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, filepath.Join(dir, "sha.yaml"), vs[0].Origin)
}

// =============================================================================
// Store and validation
// =============================================================================

func TestU_NewStore_Duplicate(t *testing.T) {
	v := Vector{ID: "a", Primitive: "sha256"}
	_, err := NewStore([]Vector{v, v})
	assert.True(t, errors.Is(err, primitive.ErrMalformedVector))

	other := Vector{ID: "a", Primitive: "sha3-256"}
	_, err = NewStore([]Vector{v, other})
	assert.NoError(t, err, "ids are scoped per primitive")
}

func TestU_Validate(t *testing.T) {
	set := testSet(t)
	good := Vector{ID: "ok", Primitive: "sha256", Input: []byte{}, Expected: make([]byte, 32)}

	t.Run("[Unit] Validate: accepts and fills category", func(t *testing.T) {
		st, err := NewStore([]Vector{good})
		require.NoError(t, err)
		plan, err := st.Validate(set)
		require.NoError(t, err)
		assert.Equal(t, primitive.CategoryHash, plan.Store.For("sha256")[0].Category)
	})

	t.Run("[Unit] Validate: unknown primitive is skipped", func(t *testing.T) {
		st, err := NewStore([]Vector{good, {ID: "x", Primitive: "md5"}})
		require.NoError(t, err)
		plan, err := st.Validate(set)
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Store.Len())
		require.Len(t, plan.Skipped, 1)
		assert.Equal(t, "md5", plan.Skipped[0].Primitive)
	})

	bad := []struct {
		name string
		v    Vector
		kind error
	}{
		{"category mismatch", Vector{ID: "c", Primitive: "sha256", Category: primitive.CategoryBlockCipher, Expected: make([]byte, 32)}, primitive.ErrCategoryMismatch},
		{"digest length", Vector{ID: "d", Primitive: "sha256", Expected: make([]byte, 31)}, primitive.ErrMalformedVector},
		{"missing key", Vector{ID: "k", Primitive: "aes", Input: make([]byte, 16), Expected: make([]byte, 16)}, primitive.ErrMalformedVector},
		{"bad key size", Vector{ID: "k", Primitive: "aes", Input: make([]byte, 16), Expected: make([]byte, 16), Params: map[string][]byte{"key": make([]byte, 15)}}, primitive.ErrMalformedVector},
		{"unknown param", Vector{ID: "p", Primitive: "aes", Input: make([]byte, 16), Expected: make([]byte, 16), Params: map[string][]byte{"key": make([]byte, 16), "iv": {1}}}, primitive.ErrMalformedVector},
		{"negative hash", Vector{ID: "n", Primitive: "sha256", Expected: make([]byte, 32), ExpectFailure: true}, primitive.ErrMalformedVector},
	}
	for _, tt := range bad {
		t.Run("[Unit] Validate: "+tt.name, func(t *testing.T) {
			st, err := NewStore([]Vector{tt.v})
			require.NoError(t, err)
			_, err = st.Validate(set)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), err.Error())
			assert.True(t, primitive.IsConfigurationError(err))
		})
	}
}

func TestU_ParseHex(t *testing.T) {
	b, err := ParseHex(" 0xDE AD\nbeef ")
	require.NoError(t, err)
	assert.Equal(t, HexBytes{0xde, 0xad, 0xbe, 0xef}, b)
	assert.Equal(t, "deadbeef", b.String())

	_, err = ParseHex("abc")
	assert.Error(t, err)
}
