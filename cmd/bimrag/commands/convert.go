package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bimrag/internal/display"
)

// ConvertCmd ingests the spreadsheet exports and persists the records.
var ConvertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Ingest IFC spreadsheet exports into the vector store",
	Long: `Read ifc_<type>_export.xlsx files, embed every element record and
replace the contents of the configured vector store.

Without arguments the files listed under data.files, or every export in
data.folder, are ingested.

Examples:
  bimrag convert
  bimrag convert data/ifc_wall_export.xlsx data/ifc_door_export.xlsx`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.exportFiles(args)
	if err != nil {
		return err
	}
	st, err := a.svc.Convert(ctx, files)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	pterm.Fprintln(out, pterm.Success.Sprintf("Stored %d element records in %s", st.Len(), a.storage.Name()))
	if a.storage.Name() == "memory" {
		pterm.Fprintln(out, pterm.Warning.Sprint("memory storage does not persist; other commands re-ingest the exports"))
	}
	return display.Counts(out, st.Counts())
}
