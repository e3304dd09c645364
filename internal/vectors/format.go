package vectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

// Format is a vector file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// FileVersion is the only vector file version understood.
const FileVersion = 1

// File is the on-disk shape of a vector file. Primitive and Category set
// defaults for every record that omits them.
type File struct {
	Version   int      `yaml:"version" json:"version" cbor:"version"`
	Source    string   `yaml:"source,omitempty" json:"source,omitempty" cbor:"source,omitempty"`
	Primitive string   `yaml:"primitive,omitempty" json:"primitive,omitempty" cbor:"primitive,omitempty"`
	Category  string   `yaml:"category,omitempty" json:"category,omitempty" cbor:"category,omitempty"`
	Vectors   []Record `yaml:"vectors" json:"vectors" cbor:"vectors"`
}

// Record is one vector as written in a file.
type Record struct {
	ID            string              `yaml:"id" json:"id" cbor:"id"`
	Primitive     string              `yaml:"primitive,omitempty" json:"primitive,omitempty" cbor:"primitive,omitempty"`
	Category      string              `yaml:"category,omitempty" json:"category,omitempty" cbor:"category,omitempty"`
	Input         HexBytes            `yaml:"input" json:"input" cbor:"input"`
	Params        map[string]HexBytes `yaml:"params,omitempty" json:"params,omitempty" cbor:"params,omitempty"`
	Expected      HexBytes            `yaml:"expected" json:"expected" cbor:"expected"`
	ExpectFailure bool                `yaml:"expect_failure,omitempty" json:"expect_failure,omitempty" cbor:"expect_failure,omitempty"`
	Comment       string              `yaml:"comment,omitempty" json:"comment,omitempty" cbor:"comment,omitempty"`
}

var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// DetectFormat infers the format and compression of a file from its name,
// e.g. "aes.yaml", "sha.cbor.lz4".
func DetectFormat(name string) (Format, bool, error) {
	compressed := false
	if strings.HasSuffix(name, ".lz4") {
		compressed = true
		name = strings.TrimSuffix(name, ".lz4")
	}
	switch path.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML, compressed, nil
	case ".json":
		return FormatJSON, compressed, nil
	case ".cbor":
		return FormatCBOR, compressed, nil
	default:
		return "", false, fmt.Errorf("unsupported vector file extension: %s", name)
	}
}

// DecodeFile parses raw file content.
func DecodeFile(data []byte, format Format, compressed bool) (*File, error) {
	if compressed {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		data = buf.Bytes()
	}

	var f File
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&f)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &f)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("unsupported vector file version %d", f.Version)
	}
	return &f, nil
}

// EncodeFile serializes f, optionally LZ4-compressed.
func EncodeFile(f *File, format Format, compressed bool) ([]byte, error) {
	var data []byte
	var err error
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(f)
	case FormatJSON:
		data, err = json.MarshalIndent(f, "", "  ")
	case FormatCBOR:
		data, err = cborEnc.Marshal(f)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if !compressed {
		return data, nil
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}
