package schema

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	"bimrag/internal/domain"
)

// typeDoc is one element type entry of the schema document.
type typeDoc struct {
	Parameters  *[]string `json:"parameters"`
	Required    *[]string `json:"required_parameters"`
	Description string    `json:"description,omitempty"`
}

// Load reads and parses the schema document at path.
func Load(path string) (*domain.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.WithHintf(errors.Wrapf(err, "schema document %s", path),
				"derive one with: bimrag schema derive --out %s", path)
		}
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a schema document, keeping the document order of types.
// Element type keys accept the same aliases as the command line. Keys naming
// no known type are registered as new element types once the whole document
// has parsed.
func Parse(r io.Reader) (*domain.Schema, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, domain.NewMalformedSchemaError("invalid JSON: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, domain.NewMalformedSchemaError("document must be a JSON object")
	}

	var (
		defs  []domain.TypeSchema
		added []domain.ElementType
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, domain.NewMalformedSchemaError("invalid JSON: %v", err)
		}
		key, _ := tok.(string)
		t, ok := domain.ParseElementType(key)
		if !ok {
			t = domain.ElementType(strings.ToLower(strings.TrimSpace(key)))
			if t == "" || strings.ContainsFunc(string(t), unicode.IsSpace) {
				return nil, domain.NewMalformedSchemaError("invalid element type key %q", key)
			}
			added = append(added, t)
		}

		var doc typeDoc
		if err := dec.Decode(&doc); err != nil {
			return nil, domain.NewMalformedSchemaError("%s: %v", key, err)
		}
		if doc.Parameters == nil {
			return nil, domain.NewMalformedSchemaError("%s: missing \"parameters\"", key)
		}
		if doc.Required == nil {
			return nil, domain.NewMalformedSchemaError("%s: missing \"required_parameters\"", key)
		}

		def := domain.TypeSchema{
			Type:        t,
			Parameters:  names(*doc.Parameters),
			Required:    names(*doc.Required),
			Description: doc.Description,
		}
		if err := def.Check(); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if _, err := dec.Token(); err != nil {
		return nil, domain.NewMalformedSchemaError("invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, domain.NewMalformedSchemaError("trailing data after schema object")
	}
	sch, err := domain.NewSchema(defs...)
	if err != nil {
		return nil, err
	}
	for _, t := range added {
		domain.RegisterElementType(string(t))
	}
	return sch, nil
}

func names(in []string) []domain.ParameterName {
	out := make([]domain.ParameterName, len(in))
	for i, s := range in {
		out[i] = domain.ParameterName(s)
	}
	return out
}

// Encode writes s in the document format, types in schema order.
func Encode(w io.Writer, s *domain.Schema) error {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	defs := s.Definitions()
	for i, d := range defs {
		key, err := json.Marshal(string(d.Type))
		if err != nil {
			return errors.Wrap(err, "encode schema key")
		}
		params, required := strs(d.Parameters), strs(d.Required)
		doc := typeDoc{
			Parameters:  &params,
			Required:    &required,
			Description: d.Description,
		}
		body, err := json.MarshalIndent(doc, "  ", "  ")
		if err != nil {
			return errors.Wrapf(err, "encode schema for %s", d.Type)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(body)
		if i < len(defs)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// Save writes s to path, creating directories as needed.
func Save(path string, s *domain.Schema) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create schema directory")
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write schema %s", path)
}

func strs(in []domain.ParameterName) []string {
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = string(n)
	}
	return out
}
