package domain

import (
	"strings"
	"sync"
)

// ParameterName is a case-sensitive parameter (column) name.
type ParameterName string

// Value is a nullable parameter value as read from the source data.
type Value struct {
	Text  string
	Valid bool
}

// StringValue returns a non-null value.
func StringValue(s string) Value { return Value{Text: s, Valid: true} }

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// Empty reports whether the value is null or blank.
func (v Value) Empty() bool {
	return !v.Valid || strings.TrimSpace(v.Text) == ""
}

// Field is a single named parameter value.
type Field struct {
	Name  ParameterName
	Value Value
}

// Parameters holds the parameters of one element. Names from the element
// type's catalog land in the recognized bucket; everything else is kept in the
// unrecognized bucket. Insertion order is preserved.
type Parameters struct {
	recognized   map[ParameterName]Value
	unrecognized map[ParameterName]Value
	order        []ParameterName
}

// NewParameters builds the parameter mapping for an element of type t. When a
// name repeats, the last value wins and the first position is kept.
func NewParameters(t ElementType, fields ...Field) Parameters {
	p := Parameters{
		recognized:   make(map[ParameterName]Value),
		unrecognized: make(map[ParameterName]Value),
	}
	for _, f := range fields {
		if _, seen := p.Get(f.Name); !seen {
			p.order = append(p.order, f.Name)
		}
		if Recognizes(t, f.Name) {
			p.recognized[f.Name] = f.Value
		} else {
			p.unrecognized[f.Name] = f.Value
		}
	}
	return p
}

// Get looks a parameter up in both buckets.
func (p Parameters) Get(name ParameterName) (Value, bool) {
	if v, ok := p.recognized[name]; ok {
		return v, true
	}
	v, ok := p.unrecognized[name]
	return v, ok
}

// Missing reports whether name is absent or holds an empty value.
func (p Parameters) Missing(name ParameterName) bool {
	v, ok := p.Get(name)
	return !ok || v.Empty()
}

// Len returns the number of distinct parameters.
func (p Parameters) Len() int { return len(p.order) }

// Names returns the parameter names in insertion order.
func (p Parameters) Names() []ParameterName {
	out := make([]ParameterName, len(p.order))
	copy(out, p.order)
	return out
}

// Fields returns every parameter in insertion order.
func (p Parameters) Fields() []Field {
	out := make([]Field, 0, len(p.order))
	for _, n := range p.order {
		v, _ := p.Get(n)
		out = append(out, Field{Name: n, Value: v})
	}
	return out
}

// Unrecognized returns the parameters outside the type's catalog, in
// insertion order.
func (p Parameters) Unrecognized() []Field {
	var out []Field
	for _, n := range p.order {
		if v, ok := p.unrecognized[n]; ok {
			out = append(out, Field{Name: n, Value: v})
		}
	}
	return out
}

var (
	identityParameters = []ParameterName{
		"Name", "Tag", "ObjectType", "Storey", "Material", "IfcEntity", "PredefinedType",
	}
	commonProperties = []ParameterName{
		"IsExternal", "LoadBearing", "FireRating", "ThermalTransmittance", "AcousticRating",
		"Reference", "Status", "Renovation Status", "MMI", "MMI dato", "MMI signatur",
	}
	baseQuantities = []ParameterName{
		"Length", "Width", "Height", "Depth", "Thickness", "Perimeter", "Area", "Volume",
		"GrossArea", "NetArea", "GrossVolume", "NetVolume",
	}
	catalogMu sync.RWMutex
	catalogs  = map[ElementType]map[ParameterName]struct{}{}
)

func init() {
	RegisterParameters(Wall, identityParameters...)
	RegisterParameters(Wall, commonProperties...)
	RegisterParameters(Wall, baseQuantities...)
	RegisterParameters(Wall, "GrossFootprintArea", "NetFootprintArea", "GrossSideArea", "NetSideArea")
	RegisterParameters(WallStandardCase, catalogNames(Wall)...)

	RegisterParameters(Slab, identityParameters...)
	RegisterParameters(Slab, commonProperties...)
	RegisterParameters(Slab, baseQuantities...)
	RegisterParameters(Slab, "PitchAngle", "Combustible", "SurfaceSpreadOfFlame")

	for _, t := range []ElementType{Door, Window} {
		RegisterParameters(t, identityParameters...)
		RegisterParameters(t, commonProperties...)
		RegisterParameters(t, baseQuantities...)
		RegisterParameters(t, "OverallHeight", "OverallWidth", "Infiltration", "SecurityRating",
			"HandicapAccessible", "FireExit", "GlazingAreaFraction", "SmokeStop", "SelfClosing")
	}

	RegisterParameters(Proxy, identityParameters...)
	RegisterParameters(Proxy, baseQuantities...)
}

// RegisterParameters adds names to the recognized catalog of type t.
func RegisterParameters(t ElementType, names ...ParameterName) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	c, ok := catalogs[t]
	if !ok {
		c = make(map[ParameterName]struct{}, len(names))
		catalogs[t] = c
	}
	for _, n := range names {
		c[n] = struct{}{}
	}
}

// Recognizes reports whether name belongs to the catalog of type t.
func Recognizes(t ElementType, name ParameterName) bool {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	_, ok := catalogs[t][name]
	return ok
}

func catalogNames(t ElementType) []ParameterName {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make([]ParameterName, 0, len(catalogs[t]))
	for n := range catalogs[t] {
		out = append(out, n)
	}
	return out
}
