package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ReportCmd writes the HTML data-quality report.
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the HTML data-quality report",
	RunE:  runReport,
}

var reportOutFlag string

func init() {
	ReportCmd.Flags().StringVarP(&reportOutFlag, "out", "o", "", "Report path (default: analysis.report_path from config)")
}

func runReport(cmd *cobra.Command, _ []string) error {
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
	path := reportOutFlag
	if path == "" {
		path = a.cfg.Analysis.ReportPath
	}
	out, err := a.svc.WriteReport(path, a.cfg.Data.Folder)
	if err != nil {
		return err
	}
	pterm.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Report written to %s", out))
	return nil
}
