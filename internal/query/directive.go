package query

import (
	"strings"
	"unicode"

	"bimrag/internal/domain"
)

const filterPrefix = "filter:"

// ParseDirective strips an optional leading "filter:<type>" token from text.
// It returns the remaining text, the parsed type (empty when no directive is
// present) and an error wrapping domain.ErrUnknownFilter for an unrecognized
// type.
func ParseDirective(text string) (string, domain.ElementType, error) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if len(trimmed) < len(filterPrefix) || !strings.EqualFold(trimmed[:len(filterPrefix)], filterPrefix) {
		return text, "", nil
	}
	rest := trimmed[len(filterPrefix):]
	end := strings.IndexFunc(rest, unicode.IsSpace)
	token := rest
	if end >= 0 {
		token = rest[:end]
		rest = rest[end:]
	} else {
		rest = ""
	}
	t, ok := domain.ParseElementType(token)
	if !ok {
		return "", "", domain.NewUnknownFilterError(token)
	}
	return strings.TrimSpace(rest), t, nil
}
