package registry

import (
	"sort"
	"strings"

	"github.com/remiblancher/primlab/internal/primitive"
)

// Set is an immutable snapshot of registered backends.
type Set struct {
	backends    []primitive.Backend
	byPrimitive map[string][]primitive.Backend
	byID        map[string]primitive.Backend
}

func newSet(all []primitive.Backend) (*Set, error) {
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Descriptor, all[j].Descriptor
		if a.Primitive != b.Primitive {
			return a.Primitive < b.Primitive
		}
		if a.Reference != b.Reference {
			return a.Reference
		}
		return a.Backend < b.Backend
	})

	s := &Set{
		backends:    all,
		byPrimitive: make(map[string][]primitive.Backend),
		byID:        make(map[string]primitive.Backend, len(all)),
	}
	for _, b := range all {
		p := b.Descriptor.Primitive
		s.byPrimitive[p] = append(s.byPrimitive[p], b)
		s.byID[b.ID()] = b
	}

	var errs primitive.ConfigErrors
	for _, p := range s.Primitives() {
		if _, ok := s.Reference(p); !ok {
			errs = append(errs, primitive.NewConfigError(primitive.ErrMissingReference, p, "",
				"no backend is designated reference"))
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// All returns every backend ordered by primitive, reference first, then by name.
func (s *Set) All() []primitive.Backend {
	return append([]primitive.Backend(nil), s.backends...)
}

// Len returns the number of backends.
func (s *Set) Len() int {
	return len(s.backends)
}

// Primitives returns the primitive names in sorted order.
func (s *Set) Primitives() []string {
	names := make([]string, 0, len(s.byPrimitive))
	for p := range s.byPrimitive {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Backends returns the backends of a primitive, reference first.
func (s *Set) Backends(name string) []primitive.Backend {
	return append([]primitive.Backend(nil), s.byPrimitive[name]...)
}

// Reference returns the reference backend of a primitive. When several are
// designated, the first by name is the point of comparison.
func (s *Set) Reference(name string) (primitive.Backend, bool) {
	for _, b := range s.byPrimitive[name] {
		if b.Descriptor.Reference {
			return b, true
		}
	}
	return primitive.Backend{}, false
}

// Category returns the category of a primitive.
func (s *Set) Category(name string) (primitive.Category, bool) {
	bs := s.byPrimitive[name]
	if len(bs) == 0 {
		return "", false
	}
	return bs[0].Descriptor.Category, true
}

// Lookup finds a backend by "<primitive>/<backend>".
func (s *Set) Lookup(id string) (primitive.Backend, bool) {
	b, ok := s.byID[id]
	return b, ok
}

// Filter returns a subset restricted to the named primitives and backends.
// Empty lists select everything. Backends match by name or by ID. The
// reference of every selected primitive is always kept so that it remains
// the point of comparison.
func (s *Set) Filter(primitives, backends []string) (*Set, error) {
	if len(primitives) == 0 && len(backends) == 0 {
		return s, nil
	}

	wantPrim := toSet(primitives)
	wantBackend := toSet(backends)

	for p := range wantPrim {
		if _, ok := s.byPrimitive[p]; !ok {
			return nil, primitive.NewConfigError(primitive.ErrUnknownPrimitive, p, "", "no backend registered")
		}
	}

	var out []primitive.Backend
	for _, p := range s.Primitives() {
		if len(wantPrim) > 0 && !wantPrim[p] {
			continue
		}
		var picked []primitive.Backend
		for _, b := range s.byPrimitive[p] {
			if len(wantBackend) == 0 || wantBackend[b.Descriptor.Backend] || wantBackend[b.ID()] {
				picked = append(picked, b)
			}
		}
		if len(picked) == 0 {
			continue
		}
		if ref, ok := s.Reference(p); ok && !containsID(picked, ref.ID()) {
			picked = append(picked, ref)
		}
		out = append(out, picked...)
	}
	return newSet(out)
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			m[it] = true
		}
	}
	return m
}

func containsID(bs []primitive.Backend, id string) bool {
	for _, b := range bs {
		if b.ID() == id {
			return true
		}
	}
	return false
}
