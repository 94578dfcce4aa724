// Package registry holds the closed identifier vocabularies (schemas, modes,
// gates) and normalizes identifiers read from tables and requests.
package registry

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/schema-engine/internal/model"
)

// NormalizeID canonicalizes an identifier: NFKC, case-folded, trimmed, with
// runs of whitespace, '-' and '/' collapsed to a single '_'.
func NormalizeID(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '/' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Registry is an immutable closed set of identifiers.
type Registry[T ~string] struct {
	ids []T
	set map[T]struct{}
}

// New builds a registry from raw identifiers, normalizing and de-duplicating.
// Empty identifiers are dropped.
func New[T ~string](raw []string) *Registry[T] {
	r := &Registry[T]{set: make(map[T]struct{}, len(raw))}
	for _, s := range raw {
		id := T(NormalizeID(s))
		if id == "" {
			continue
		}
		if _, dup := r.set[id]; dup {
			continue
		}
		r.set[id] = struct{}{}
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r
}

// Lookup normalizes raw and reports whether it is in the registry. A nil
// registry is open-world and accepts every non-empty identifier.
func (r *Registry[T]) Lookup(raw string) (T, bool) {
	id := T(NormalizeID(raw))
	if id == "" {
		return id, false
	}
	if r == nil {
		return id, true
	}
	_, ok := r.set[id]
	return id, ok
}

// Contains reports whether an already-normalized id is in the registry.
func (r *Registry[T]) Contains(id T) bool {
	if r == nil {
		return true
	}
	_, ok := r.set[id]
	return ok
}

// Closed reports whether the registry restricts identifiers.
func (r *Registry[T]) Closed() bool {
	return r != nil
}

// IDs returns the identifiers in sorted order.
func (r *Registry[T]) IDs() []T {
	if r == nil {
		return nil
	}
	out := make([]T, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of identifiers.
func (r *Registry[T]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

// Schemas is the schema-id registry type.
type Schemas = Registry[model.SchemaID]

// Modes is the mode-id registry type.
type Modes = Registry[model.ModeID]

// Canonical returns the built-in 18-id schema registry.
func Canonical() *Schemas {
	raw := make([]string, len(model.CanonicalSchemaIDs))
	for i, id := range model.CanonicalSchemaIDs {
		raw[i] = string(id)
	}
	return New[model.SchemaID](raw)
}
