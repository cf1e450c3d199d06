package domain

// TypeSchema is the expected parameter set of one element type.
type TypeSchema struct {
	Type        ElementType
	Parameters  []ParameterName
	Required    []ParameterName
	Description string
}

// IsRequired reports whether name is in the required set.
func (s TypeSchema) IsRequired(name ParameterName) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Optional returns the declared parameters that are not required, in
// declaration order.
func (s TypeSchema) Optional() []ParameterName {
	out := make([]ParameterName, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		if !s.IsRequired(p) {
			out = append(out, p)
		}
	}
	return out
}

// Check verifies that parameters are unique and that required parameters are
// a subset of them.
func (s TypeSchema) Check() error {
	declared := make(map[ParameterName]struct{}, len(s.Parameters))
	for _, p := range s.Parameters {
		if p == "" {
			return NewMalformedSchemaError("%s: empty parameter name", s.Type)
		}
		if _, dup := declared[p]; dup {
			return NewMalformedSchemaError("%s: duplicate parameter %q", s.Type, p)
		}
		declared[p] = struct{}{}
	}
	seen := make(map[ParameterName]struct{}, len(s.Required))
	for _, r := range s.Required {
		if _, ok := declared[r]; !ok {
			return NewMalformedSchemaError("%s: required parameter %q is not in parameters", s.Type, r)
		}
		if _, dup := seen[r]; dup {
			return NewMalformedSchemaError("%s: duplicate required parameter %q", s.Type, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// Schema maps element types to their expected parameters. Types keep the
// order they were declared in.
type Schema struct {
	defs  []TypeSchema
	index map[ElementType]int
}

// NewSchema builds a schema from type definitions. Definitions are not
// checked here so that a malformed entry surfaces when its type is validated;
// duplicate types are rejected.
func NewSchema(defs ...TypeSchema) (*Schema, error) {
	s := &Schema{index: make(map[ElementType]int, len(defs))}
	for _, d := range defs {
		if _, dup := s.index[d.Type]; dup {
			return nil, NewMalformedSchemaError("duplicate element type %q", d.Type)
		}
		s.index[d.Type] = len(s.defs)
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// Lookup returns the definition of type t.
func (s *Schema) Lookup(t ElementType) (TypeSchema, bool) {
	if s == nil {
		return TypeSchema{}, false
	}
	i, ok := s.index[t]
	if !ok {
		return TypeSchema{}, false
	}
	return s.defs[i], true
}

// Types returns the declared types in document order.
func (s *Schema) Types() []ElementType {
	if s == nil {
		return nil
	}
	out := make([]ElementType, len(s.defs))
	for i, d := range s.defs {
		out[i] = d.Type
	}
	return out
}

// Definitions returns every type definition in document order.
func (s *Schema) Definitions() []TypeSchema {
	if s == nil {
		return nil
	}
	out := make([]TypeSchema, len(s.defs))
	copy(out, s.defs)
	return out
}
