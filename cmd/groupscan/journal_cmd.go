package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmikhno/groupscan/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the task lifecycle journal",
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent journal entries",
	RunE:  runJournalRecent,
}

var journalTaskCmd = &cobra.Command{
	Use:   "task [task-id]",
	Short: "Show every entry for one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTask,
}

var journalLimit int

func init() {
	journalCmd.AddCommand(journalRecentCmd, journalTaskCmd)
	journalRecentCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of entries to show")
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.journal == nil {
		return fmt.Errorf("journal is disabled")
	}
	entries, err := app.journal.Recent(journalLimit)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func runJournalTask(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.journal == nil {
		return fmt.Errorf("journal is disabled")
	}
	entries, err := app.journal.ForTask(args[0])
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTASK\tACTION\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(e.TaskID), e.Action, e.Detail)
	}
	w.Flush()
}
