package commands

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bimrag/internal/display"
	"bimrag/internal/domain"
	"bimrag/internal/schema"
)

// AnalyzeCmd validates every schema type.
var AnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Validate element parameters against the expected schema",
	RunE:  runAnalyze,
}

// SummaryCmd prints the cross-type analysis summary.
var SummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the overall missing-parameter summary",
	RunE:  runSummary,
}

// ParamsCmd prints the missing-parameter report for one element type.
var ParamsCmd = &cobra.Command{
	Use:   "params <type>",
	Short: "Show missing parameters for one element type",
	Long: `Show missing parameters for one element type.

Types: ` + typeList(),
	Args: cobra.ExactArgs(1),
	RunE: runParams,
}

// CompareCmd diffs the observed columns against a schema document.
var CompareCmd = &cobra.Command{
	Use:   "compare <schema_file>",
	Short: "Compare the data with an expected schema document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

var (
	schemaFlag  string
	profileFlag bool
)

func init() {
	for _, c := range []*cobra.Command{AnalyzeCmd, SummaryCmd, ParamsCmd} {
		c.Flags().StringVar(&schemaFlag, "schema", "", "Schema document (default: schema.path from config)")
	}
	CompareCmd.Flags().BoolVar(&profileFlag, "profile", false, "Also print per-type column profiles")
}

func typeList() string {
	types := domain.ElementTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return strings.Join(out, ", ")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.loadSchema(schemaFlag, false); err != nil {
		return err
	}
	res, err := a.svc.Analyze(ctx)
	if err != nil {
		return err
	}
	return display.Analysis(cmd.OutOrStdout(), res)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.loadSchema(schemaFlag, false); err != nil {
		return err
	}
	res, err := a.svc.Analyze(ctx)
	if err != nil {
		return err
	}
	return display.Summary(cmd.OutOrStdout(), res.Summary)
}

func runParams(cmd *cobra.Command, args []string) error {
	t, ok := domain.ParseElementType(args[0])
	if !ok {
		return errors.WithHintf(domain.NewInvalidArgumentError("unknown element type %q", args[0]),
			"known types: %s", typeList())
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
	if err := a.loadSchema(schemaFlag, false); err != nil {
		return err
	}
	rep, err := a.svc.MissingParameters(ctx, t)
	if errors.Is(err, domain.ErrNoData) && rep != nil {
		pterm.Fprintln(cmd.OutOrStdout(), pterm.Warning.Sprintf("no %s records in the data", t))
	} else if err != nil {
		return err
	}
	return display.Report(cmd.OutOrStdout(), rep)
}

func runCompare(cmd *cobra.Command, args []string) error {
	sch, err := schema.Load(args[0])
	if err != nil {
		return err
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
	out := cmd.OutOrStdout()
	if profileFlag {
		profiles, err := a.svc.Profile()
		if err != nil {
			return err
		}
		if err := display.Profiles(out, profiles); err != nil {
			return err
		}
	}
	c, err := a.svc.Compare(sch)
	if err != nil {
		return err
	}
	return display.Comparison(out, c)
}
