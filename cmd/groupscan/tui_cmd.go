package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/dmikhno/groupscan/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	// The alternate screen owns the terminal; keep log noise out of it.
	app.log.SetOutput(io.Discard)

	return tui.New(app.mgr, app.log).Run()
}
