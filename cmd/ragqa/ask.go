package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragqa/internal/app"
	"ragqa/internal/tui"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions interactively in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := app.Load(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	summary := fmt.Sprintf("%d records indexed with %s", a.Service.IndexSize(), a.Service.Model())
	m := tui.New(a.Service, summary, cfg.Generator.Timeout()+cfg.Captioner.Timeout())
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
