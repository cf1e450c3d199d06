package vectorstore

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"bimrag/internal/domain"
)

// storedParam is the persisted form of one parameter. A nil Value is null.
type storedParam struct {
	Name  string  `json:"n"`
	Value *string `json:"v"`
}

// EncodeParams serializes parameters in insertion order, keeping nulls.
func EncodeParams(p domain.Parameters) (string, error) {
	fields := p.Fields()
	out := make([]storedParam, len(fields))
	for i, f := range fields {
		out[i].Name = string(f.Name)
		if f.Value.Valid {
			v := f.Value.Text
			out[i].Value = &v
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "encode parameters")
	}
	return string(data), nil
}

// DecodeParams rebuilds the parameters of an element of type t.
func DecodeParams(t domain.ElementType, data string) (domain.Parameters, error) {
	var in []storedParam
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return domain.Parameters{}, errors.Wrap(err, "decode parameters")
	}
	fields := make([]domain.Field, len(in))
	for i, sp := range in {
		fields[i].Name = domain.ParameterName(sp.Name)
		if sp.Value != nil {
			fields[i].Value = domain.StringValue(*sp.Value)
		}
	}
	return domain.NewParameters(t, fields...), nil
}

// CheckDimension verifies every record carries an embedding of length dim.
func CheckDimension(records []domain.ElementRecord, dim int) error {
	for i := range records {
		if len(records[i].Embedding) != dim {
			return domain.NewInvalidArgumentError("record %q has embedding length %d, storage expects %d",
				records[i].GlobalID, len(records[i].Embedding), dim)
		}
	}
	return nil
}
