package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/models"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage the local result collection",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached results",
	RunE:  runResultsList,
}

var resultsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search results by title or filename",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsSearch,
}

var resultsRmCmd = &cobra.Command{
	Use:   "rm [result-id]",
	Short: "Delete one result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsRm,
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached result",
	RunE:  runResultsClear,
}

var resultsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics",
	RunE:  runResultsStats,
}

var resultsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Merge the backend's results into the local collection",
	RunE:  runResultsRefresh,
}

var resultsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export results (or the full state) to a JSON file",
	RunE:  runResultsExport,
}

var (
	resultsPeriod string
	exportFull    bool
)

func init() {
	resultsCmd.AddCommand(resultsListCmd, resultsSearchCmd, resultsRmCmd, resultsClearCmd, resultsStatsCmd, resultsRefreshCmd, resultsExportCmd)

	resultsListCmd.Flags().StringVar(&resultsPeriod, "period", "all", "Filter by period (all, today, week, month)")
	resultsExportCmd.Flags().BoolVar(&exportFull, "full", false, "Export the full state snapshot instead of results only")
}

func runResultsList(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	period := cache.Period(resultsPeriod)
	if !cache.ValidPeriod(period) {
		return fmt.Errorf("unknown period %q (want all, today, week or month)", resultsPeriod)
	}
	printResults(app.cache.Filter(period))
	return nil
}

func runResultsSearch(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	printResults(app.cache.Search(args[0]))
	return nil
}

func runResultsRm(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.mgr.RemoveResult(args[0])
	fmt.Println("deleted")
	return nil
}

func runResultsClear(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.mgr.ClearResults()
	fmt.Println("cleared")
	return nil
}

func runResultsStats(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	stats := app.cache.Stats()
	fmt.Printf("Groups parsed:  %d\n", stats.Count)
	fmt.Printf("Members total:  %d\n", stats.TotalItems)
	fmt.Printf("Avg coverage:   %d%%\n", stats.AvgCoverage)
	return nil
}

func runResultsRefresh(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := app.mgr.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("merged %d results\n", n)
	return nil
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var path string
	if exportFull {
		path, err = app.store.ExportState(app.mgr.Snapshot())
	} else {
		path, err = app.store.ExportResults(app.cache.List())
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func printResults(results []models.Result) {
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMEMBERS\tCOVERAGE\tCREATED")
	for _, r := range results {
		cov := "-"
		if c := r.Coverage(); c > 0 {
			cov = fmt.Sprintf("%.0f%%", c)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			shortID(r.ID), r.Title, r.ItemCount, cov, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
