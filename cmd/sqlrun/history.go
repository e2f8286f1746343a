package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sqlrun/sqlrun/pkg/history"
)

var clearHistory bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the statements executed in previous runs",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if clearHistory {
			if err := os.Remove(historyFilePath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			return nil
		}

		hist := history.New(historyCapacity)
		loadHistory(hist)
		if hist.Len() == 0 {
			pterm.Println("history is empty")
			return nil
		}
		for i, stmt := range hist.Entries() {
			pterm.Printfln("%3d  %s", i+1, stmt)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the saved history")
	rootCmd.AddCommand(historyCmd)
}

func historyFilePath() string {
	if path := viper.GetString("history_file"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sqlrun_history"
	}
	return filepath.Join(home, ".sqlrun_history")
}

func loadHistory(h *history.History) {
	f, err := os.Open(historyFilePath())
	if err != nil {
		return
	}
	defer f.Close()
	if err := h.Load(f); err != nil {
		pterm.Warning.Printfln("failed to load history: %v", err)
	}
}

func saveHistory(h *history.History) {
	f, err := os.Create(historyFilePath())
	if err != nil {
		pterm.Warning.Printfln("failed to save history: %v", err)
		return
	}
	defer f.Close()
	if err := h.Save(f); err != nil {
		pterm.Warning.Printfln("failed to save history: %v", err)
	}
}
