package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"bimrag/internal/tui"
)

// ShellCmd starts the interactive shell.
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive question shell",
	RunE:  runShell,
}

var shellLogFlag string

func init() {
	ShellCmd.Flags().StringVar(&shellLogFlag, "log-file", "bimrag.log", "Log file used while the shell owns the terminal")
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, shellLogFlag)
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

	st := a.svc.Store()
	summary := fmt.Sprintf("%d element records from %s storage", st.Len(), a.storage.Name())
	if sch := a.svc.Schema(); sch != nil {
		summary += fmt.Sprintf(", schema %s", a.cfg.Schema.Path)
	}
	m := tui.New(ctx, a.svc, a.cfg.Query.TopK, summary)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
