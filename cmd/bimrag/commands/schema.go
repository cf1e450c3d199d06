package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bimrag/internal/schema"
)

// SchemaCmd groups schema document operations.
var SchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with expected-parameter schema documents",
}

var schemaDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive an expected schema from the current data",
	Long: `Derive an expected schema from the current data. Every observed column
becomes a parameter; columns filled in more than analysis.derive_threshold
of the records become required.`,
	RunE: runSchemaDerive,
}

var deriveOutFlag string

func init() {
	SchemaCmd.AddCommand(schemaDeriveCmd)
	schemaDeriveCmd.Flags().StringVarP(&deriveOutFlag, "out", "o", "", "Write the schema here instead of stdout")
}

func runSchemaDerive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.load(ctx); err != nil {
		return err
	}
	sch, err := a.svc.DeriveSchema()
	if err != nil {
		return err
	}
	if deriveOutFlag == "" {
		return schema.Encode(cmd.OutOrStdout(), sch)
	}
	if err := schema.Save(deriveOutFlag, sch); err != nil {
		return err
	}
	pterm.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Wrote schema for %d element types to %s", len(sch.Types()), deriveOutFlag))
	return nil
}
