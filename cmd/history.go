package cmd

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lampbench/internal/storage"
	"lampbench/internal/tui/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("archive")
		if path == "" {
			path = filepath.Join(resultsDir(), archiveFile)
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		p := tea.NewProgram(history.NewModel(store, resultsDir()), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	historyCmd.Flags().String("archive", "", "archive database (default <results-dir>/"+archiveFile+")")
}
