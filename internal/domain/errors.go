package domain

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors. Wrap them with context and check with errors.Is.
var (
	// ErrMalformedSchema indicates an unparseable or inconsistent schema document.
	ErrMalformedSchema = errors.New("malformed schema")

	// ErrSchemaNotFound indicates the requested element type has no schema entry.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrNoData indicates the store has no records of the requested type.
	ErrNoData = errors.New("no data")

	// ErrEmptyCandidateSet indicates a query filter eliminated every record.
	ErrEmptyCandidateSet = errors.New("empty candidate set")

	// ErrUnknownFilter indicates an unrecognized filter: directive.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrInvalidArgument indicates a caller error such as a non-positive top-k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRetrievalTimeout indicates the embedding call did not complete in time.
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// ErrGenerationTimeout indicates the language-model call did not complete in time.
	ErrGenerationTimeout = errors.New("generation timed out")
)

// NewSchemaNotFoundError reports a type absent from the schema document.
func NewSchemaNotFoundError(t ElementType) error {
	return errors.WithHint(
		errors.Wrapf(ErrSchemaNotFound, "element type %q", t),
		"add the element type to the schema document")
}

// NewNoDataError reports a type without records in the store.
func NewNoDataError(t ElementType) error {
	return errors.WithHint(
		errors.Wrapf(ErrNoData, "element type %q", t),
		"run convert with the export file for this element type")
}

// NewUnknownFilterError reports an unrecognized filter directive token.
func NewUnknownFilterError(token string) error {
	return errors.WithHintf(
		errors.Wrapf(ErrUnknownFilter, "filter:%s", token),
		"known element types: %v", ElementTypes())
}

// NewEmptyCandidateSetError reports a filter that matched no records.
func NewEmptyCandidateSetError(t ElementType) error {
	if t == "" {
		return errors.Wrap(ErrEmptyCandidateSet, "store is empty")
	}
	return errors.Wrapf(ErrEmptyCandidateSet, "no %s records", t)
}

// NewMalformedSchemaError wraps a schema problem with a formatted message.
func NewMalformedSchemaError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedSchema, format, args...)
}

// NewInvalidArgumentError wraps a caller error with a formatted message.
func NewInvalidArgumentError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
