// Package shell resolves interactive input into commands.
package shell

import (
	"strings"

	"bimrag/internal/domain"
)

// Kind enumerates the interactive commands.
type Kind int

const (
	Query Kind = iota
	Analyze
	Compare
	ParamsFor
	Summary
	Help
	Exit
)

func (k Kind) String() string {
	switch k {
	case Analyze:
		return "analyze"
	case Compare:
		return "compare"
	case ParamsFor:
		return "params"
	case Summary:
		return "summary"
	case Help:
		return "help"
	case Exit:
		return "exit"
	default:
		return "query"
	}
}

// Command is one resolved input line. Arg holds the schema path for
// Compare and the question for Query; Type is set for ParamsFor.
type Command struct {
	Kind Kind
	Arg  string
	Type domain.ElementType
}

// HelpText lists what Parse understands.
const HelpText = `Ask questions about the building model in natural language.
Prefix a question with filter:<type> to search one element type only.

Commands:
  analyze                  validate all element types against the schema
  compare <schema_file>    compare the data with a schema document
  <type> parameters        show missing parameters for one element type
  analysis summary         show the overall analysis summary
  help                     show this help
  exit, quit, q            leave the shell`

// Parse resolves a line of input. Blank input yields ok=false; anything
// that is not a command is a query.
func Parse(input string) (Command, bool) {
	line := strings.TrimSpace(input)
	if line == "" {
		return Command{}, false
	}
	lower := strings.ToLower(line)
	switch lower {
	case "exit", "quit", "q":
		return Command{Kind: Exit}, true
	case "help", "?":
		return Command{Kind: Help}, true
	case "analyze", "analyse":
		return Command{Kind: Analyze}, true
	case "analysis summary", "summary":
		return Command{Kind: Summary}, true
	case "compare":
		return Command{Kind: Compare}, true
	}
	if strings.HasPrefix(lower, "compare ") {
		return Command{Kind: Compare, Arg: strings.TrimSpace(line[len("compare "):])}, true
	}
	if t, ok := paramsFor(lower); ok {
		return Command{Kind: ParamsFor, Type: t}, true
	}
	return Command{Kind: Query, Arg: line}, true
}

// paramsFor matches "<type> parameters", "<type> params" and
// "missing <type> parameters".
func paramsFor(lower string) (domain.ElementType, bool) {
	words := strings.Fields(lower)
	if len(words) == 3 && words[0] == "missing" {
		words = words[1:]
	}
	if len(words) != 2 {
		return "", false
	}
	switch words[1] {
	case "parameters", "params":
	default:
		return "", false
	}
	return domain.ParseElementType(words[0])
}
