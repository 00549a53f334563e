package matcher

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/model"
)

// Resolver maps a raw order restaurant name to its curated restaurant entry.
type Resolver interface {
	Resolve(name string) (model.MappingEntry, bool)
}

// Matcher resolves order restaurant names through a static, normalized
// mapping. It is safe for concurrent use; nothing mutates it after New.
type Matcher struct {
	byName map[string]model.MappingEntry
}

// New builds a Matcher from raw mapping keys. Keys are normalized; when two
// keys collapse to the same normalized name the first in sorted key order
// wins and the collision is logged.
func New(entries map[string]model.MappingEntry) *Matcher {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := &Matcher{byName: make(map[string]model.MappingEntry, len(entries))}
	for _, k := range keys {
		e := entries[k]
		if e.CAMIS == "" {
			zap.L().Warn("matcher: mapping entry without camis skipped", zap.String("name", k))
			continue
		}
		e.Boro = model.ParseBorough(string(e.Boro))

		n := Normalize(k)
		if n == "" {
			continue
		}
		if prev, ok := m.byName[n]; ok {
			if prev.CAMIS != e.CAMIS {
				zap.L().Warn("matcher: conflicting mapping keys",
					zap.String("normalized", n),
					zap.String("kept_camis", prev.CAMIS),
					zap.String("dropped_camis", e.CAMIS),
				)
			}
			continue
		}
		m.byName[n] = e
	}
	return m
}

// Resolve normalizes name and looks it up. Exact match only.
func (m *Matcher) Resolve(name string) (model.MappingEntry, bool) {
	e, ok := m.byName[Normalize(name)]
	return e, ok
}

// Len returns the number of normalized names in the mapping.
func (m *Matcher) Len() int {
	return len(m.byName)
}

// CAMISes returns every distinct CAMIS in the mapping, sorted.
func (m *Matcher) CAMISes() []string {
	seen := make(map[string]struct{}, len(m.byName))
	out := make([]string, 0, len(m.byName))
	for _, e := range m.byName {
		if _, ok := seen[e.CAMIS]; ok {
			continue
		}
		seen[e.CAMIS] = struct{}{}
		out = append(out, e.CAMIS)
	}
	sort.Strings(out)
	return out
}

// Table is a precomputed resolution of every distinct raw restaurant name in
// an order set. Names absent from the table are unmatched.
type Table map[string]model.MappingEntry

// Resolve looks up a raw name in the precomputed table.
func (t Table) Resolve(name string) (model.MappingEntry, bool) {
	e, ok := t[name]
	return e, ok
}

// BuildTable resolves each distinct raw restaurant name in orders once.
func (m *Matcher) BuildTable(orders []model.Order) Table {
	t := make(Table)
	seen := make(map[string]struct{})
	for _, o := range orders {
		if _, ok := seen[o.RestaurantName]; ok {
			continue
		}
		seen[o.RestaurantName] = struct{}{}
		if e, ok := m.Resolve(o.RestaurantName); ok {
			t[o.RestaurantName] = e
		}
	}
	return t
}
