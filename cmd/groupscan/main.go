package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "groupscan",
	Short: "groupscan - Telegram group parser client",
	Long:  `groupscan is a client for the group parser bot: it submits parse tasks, tracks their progress, and manages the local result collection.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
