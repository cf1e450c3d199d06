package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"bimrag/internal/display"
	"bimrag/internal/domain"
)

// QueryCmd answers one free-text question.
var QueryCmd = &cobra.Command{
	Use:   "query <question...>",
	Short: "Ask a question about the building model",
	Long: `Rank element records against a free-text question and compose an answer.

Prefix the question with filter:<type> (or pass --filter) to search one
element type only. Questions asking for missing parameters of a type are
answered from schema validation.

Examples:
  bimrag query "which doors have a fire rating"
  bimrag query filter:wall thermal transmittance
  bimrag query --top-k 3 --filter window office`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	topKFlag   int
	filterFlag string
)

func init() {
	QueryCmd.Flags().IntVarP(&topKFlag, "top-k", "k", 0, "Number of records to retrieve (default: query.top_k from config)")
	QueryCmd.Flags().StringVar(&filterFlag, "filter", "", "Restrict retrieval to one element type")
}

func runQuery(cmd *cobra.Command, args []string) error {
	var filter *domain.ElementType
	if filterFlag != "" {
		t, ok := domain.ParseElementType(filterFlag)
		if !ok {
			return domain.NewUnknownFilterError(filterFlag)
		}
		filter = &t
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.loadSchema("", true); err != nil {
		return err
	}
	ans, err := a.svc.Ask(ctx, strings.Join(args, " "), topKFlag, filter)
	if err != nil {
		return err
	}
	return display.Answer(cmd.OutOrStdout(), ans)
}
