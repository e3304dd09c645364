package vectors

import (
	"sort"

	"github.com/remiblancher/primlab/internal/primitive"
)

// Store is an immutable snapshot of test vectors grouped by primitive.
type Store struct {
	vectors     []Vector
	byPrimitive map[string][]Vector
}

// NewStore builds a store. Vector IDs must be unique per primitive.
func NewStore(vs []Vector) (*Store, error) {
	sorted := append([]Vector(nil), vs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Primitive != sorted[j].Primitive {
			return sorted[i].Primitive < sorted[j].Primitive
		}
		return sorted[i].ID < sorted[j].ID
	})

	s := &Store{
		vectors:     sorted,
		byPrimitive: make(map[string][]Vector),
	}
	var errs primitive.ConfigErrors
	for i, v := range sorted {
		if i > 0 && sorted[i-1].Primitive == v.Primitive && sorted[i-1].ID == v.ID {
			errs = append(errs, malformed(v.Origin, v.ID, "duplicate vector id for %s (also in %s)", v.Primitive, sorted[i-1].Origin))
			continue
		}
		s.byPrimitive[v.Primitive] = append(s.byPrimitive[v.Primitive], v)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of vectors.
func (s *Store) Len() int {
	return len(s.vectors)
}

// All returns every vector ordered by primitive then ID.
func (s *Store) All() []Vector {
	return append([]Vector(nil), s.vectors...)
}

// Primitives returns the primitives that have vectors, sorted.
func (s *Store) Primitives() []string {
	names := make([]string, 0, len(s.byPrimitive))
	for p := range s.byPrimitive {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// For returns the vectors of a primitive ordered by ID.
func (s *Store) For(name string) []Vector {
	return append([]Vector(nil), s.byPrimitive[name]...)
}
