package vectors

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/remiblancher/primlab/internal/primitive"
)

// LoadBytes parses one vector file. name selects the format by extension.
func LoadBytes(name string, data []byte) ([]Vector, error) {
	format, compressed, err := DetectFormat(name)
	if err != nil {
		return nil, malformed(name, "", "%v", err)
	}
	f, err := DecodeFile(data, format, compressed)
	if err != nil {
		return nil, malformed(name, "", "%v", err)
	}

	var errs primitive.ConfigErrors
	out := make([]Vector, 0, len(f.Vectors))
	for i, r := range f.Vectors {
		v := fromRecord(f, r, name)
		if v.ID == "" {
			errs = append(errs, malformed(name, "", "record %d has no id", i))
			continue
		}
		if v.Primitive == "" {
			errs = append(errs, malformed(name, v.ID, "no primitive"))
			continue
		}
		if v.Category != "" && !v.Category.IsValid() {
			errs = append(errs, malformed(name, v.ID, "unknown category %q", v.Category))
			continue
		}
		out = append(out, v)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFile loads a vector file from disk.
func LoadFile(p string) ([]Vector, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector file: %w", err)
	}
	return LoadBytes(p, data)
}

// LoadFS loads every vector file below root in fsys. Files with an
// unsupported extension are ignored.
func LoadFS(fsys fs.FS, root string) ([]Vector, error) {
	var names []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, _, err := DetectFormat(d.Name()); err != nil {
			return nil
		}
		names = append(names, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk vector directory: %w", err)
	}
	sort.Strings(names)

	var all []Vector
	var errs primitive.ConfigErrors
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		vs, err := LoadBytes(path.Clean(name), data)
		if err != nil {
			errs = appendConfigErr(errs, err)
			continue
		}
		all = append(all, vs...)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// LoadPath loads a single file or every file in a directory tree.
func LoadPath(p string) ([]Vector, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat vector path: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(p)
	}
	vs, err := LoadFS(os.DirFS(p), ".")
	if err != nil {
		return nil, err
	}
	for i := range vs {
		vs[i].Origin = filepath.Join(p, vs[i].Origin)
	}
	return vs, nil
}

// WriteFile writes vectors to p in the format its extension selects.
func WriteFile(p, source string, vs []Vector) error {
	format, compressed, err := DetectFormat(p)
	if err != nil {
		return err
	}
	f := &File{Version: FileVersion, Source: source}
	for _, v := range vs {
		f.Vectors = append(f.Vectors, toRecord(v))
	}
	data, err := EncodeFile(f, format, compressed)
	if err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write vector file: %w", err)
	}
	return nil
}

func malformed(origin, id, format string, args ...any) *primitive.ConfigurationError {
	e := primitive.NewConfigError(primitive.ErrMalformedVector, "", "", format, args...)
	e.Vector = id
	if origin != "" {
		e.Detail = origin + ": " + e.Detail
	}
	return e
}

func appendConfigErr(errs primitive.ConfigErrors, err error) primitive.ConfigErrors {
	switch e := err.(type) {
	case primitive.ConfigErrors:
		return append(errs, e...)
	case *primitive.ConfigurationError:
		return append(errs, e)
	default:
		return append(errs, &primitive.ConfigurationError{Kind: primitive.ErrMalformedVector, Detail: err.Error()})
	}
}
