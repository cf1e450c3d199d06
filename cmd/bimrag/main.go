package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bimrag/cmd/bimrag/commands"
)

var rootCmd = &cobra.Command{
	Use:   "bimrag",
	Short: "Question answering and parameter validation for BIM exports",
	Long: `bimrag - ask questions about a building model and check its parameters.

Element records come from IFC spreadsheet exports (ifc_<type>_export.xlsx).
They are embedded, persisted in the configured vector store and validated
against an expected-parameter schema document.

Examples:
  bimrag convert                         # ingest data/ifc_*_export.xlsx
  bimrag analyze                         # validate against expected_schema.json
  bimrag params wall                     # missing wall parameters
  bimrag query filter:door fire rating   # ask about doors only
  bimrag shell                           # interactive session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in .env; a missing file is fine.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to YAML config (default: ./bimrag.yaml or ~/.config/bimrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&commands.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&commands.JSONLogs, "json-logs", false, "Emit JSON logs")

	rootCmd.AddCommand(commands.ConvertCmd)
	rootCmd.AddCommand(commands.AnalyzeCmd)
	rootCmd.AddCommand(commands.CompareCmd)
	rootCmd.AddCommand(commands.ParamsCmd)
	rootCmd.AddCommand(commands.SummaryCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.ShellCmd)
	rootCmd.AddCommand(commands.SchemaCmd)
	rootCmd.AddCommand(commands.ReportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", h)
		}
		stop()
		os.Exit(1)
	}
}
