package domain

import (
	"sort"
	"strings"
	"sync"
)

// ElementType identifies the IFC element family a record belongs to.
type ElementType string

// Built-in element types. Additional types can be registered at start-up.
const (
	Door             ElementType = "door"
	Wall             ElementType = "wall"
	Slab             ElementType = "slab"
	Window           ElementType = "window"
	Proxy            ElementType = "proxy"
	WallStandardCase ElementType = "wallstandardcase"
)

var (
	typesMu     sync.RWMutex
	typeOrder   = []ElementType{Door, Wall, Slab, Window, Proxy, WallStandardCase}
	typeAliases = map[string]ElementType{
		"door":             Door,
		"doors":            Door,
		"wall":             Wall,
		"walls":            Wall,
		"slab":             Slab,
		"slabs":            Slab,
		"window":           Window,
		"windows":          Window,
		"proxy":            Proxy,
		"proxies":          Proxy,
		"wallstandardcase": WallStandardCase,
	}
)

// RegisterElementType adds a new element type (and optional aliases) to the
// known set. Registering an existing type only adds the aliases.
func RegisterElementType(name string, aliases ...string) ElementType {
	t := ElementType(strings.ToLower(strings.TrimSpace(name)))
	typesMu.Lock()
	defer typesMu.Unlock()
	if _, ok := typeAliases[string(t)]; !ok {
		typeOrder = append(typeOrder, t)
	}
	typeAliases[string(t)] = t
	for _, a := range aliases {
		typeAliases[strings.ToLower(strings.TrimSpace(a))] = t
	}
	return t
}

// ParseElementType resolves a type token case-insensitively, accepting plural
// aliases such as "windows".
func ParseElementType(s string) (ElementType, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// ElementTypes returns the registered types in registration order.
func ElementTypes() []ElementType {
	typesMu.RLock()
	defer typesMu.RUnlock()
	out := make([]ElementType, len(typeOrder))
	copy(out, typeOrder)
	return out
}

// Known reports whether t is a registered element type.
func (t ElementType) Known() bool {
	got, ok := ParseElementType(string(t))
	return ok && got == t
}

func (t ElementType) String() string { return string(t) }

// ElementRecord is one normalized BIM element: identity, type, parameters and
// the embedding computed from its canonical text.
type ElementRecord struct {
	GlobalID  string
	Type      ElementType
	Params    Parameters
	Text      string
	Embedding []float64
}

// CanonicalText serializes a record as "key: value" pairs for embedding.
// Empty values are skipped; the type comes first so that type words weigh in
// the similarity.
func CanonicalText(globalID string, t ElementType, params Parameters) string {
	var b strings.Builder
	b.WriteString("ElementType: ")
	b.WriteString(string(t))
	b.WriteString(" GlobalId: ")
	b.WriteString(globalID)
	for _, f := range params.Fields() {
		if f.Value.Empty() {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(string(f.Name))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(f.Value.Text))
	}
	return b.String()
}

// CountByType tallies records per element type, returned in registration order
// followed by any unregistered types sorted by name.
func CountByType(records []ElementRecord) []TypeCount {
	counts := make(map[ElementType]int)
	for i := range records {
		counts[records[i].Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for _, t := range ElementTypes() {
		if n, ok := counts[t]; ok {
			out = append(out, TypeCount{Type: t, Count: n})
			delete(counts, t)
		}
	}
	rest := make([]ElementType, 0, len(counts))
	for t := range counts {
		rest = append(rest, t)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, t := range rest {
		out = append(out, TypeCount{Type: t, Count: counts[t]})
	}
	return out
}

// TypeCount is a record count for one element type.
type TypeCount struct {
	Type  ElementType
	Count int
}
