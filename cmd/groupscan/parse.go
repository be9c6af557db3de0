package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmikhno/groupscan/internal/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [group-reference]",
	Short: "Parse a group and wait for the result",
	Long:  `Submits a parse task for a group reference (@handle, https://t.me/name or an invite link) and follows it to completion. Ctrl+C cancels the task.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	task, err := app.mgr.Submit(args[0], app.mgr.ParseOptions())
	if err != nil {
		return err
	}
	fmt.Printf("Started task %s\n", task.ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("\ncancelling...")
			if err := app.mgr.Cancel(task.ID); err != nil {
				return err
			}

		case <-ticker.C:
			cur := app.mgr.Active()
			if cur == nil || cur.ID != task.ID {
				// Slot already cleared; the terminal line was printed.
				return nil
			}

			switch cur.State {
			case models.TaskStateSubmitting:
				fmt.Printf("\rsubmitting...          ")
			case models.TaskStateRunning:
				label := ""
				if cur.Estimated {
					label = " (estimated)"
				}
				fmt.Printf("\rparsing %s: %.0f%%%s   ", displayTitle(cur), cur.Progress, label)
			case models.TaskStateCompleted:
				fmt.Printf("\rdone: %s, 100%%          \n", displayTitle(cur))
				printLatestResult(app)
				return nil
			case models.TaskStateCancelled:
				fmt.Println("\rcancelled                ")
				return nil
			case models.TaskStateFailed:
				fmt.Println("\rfailed                   ")
				return fmt.Errorf("parse failed: %s", cur.Error)
			}
		}
	}
}

func displayTitle(t *models.Task) string {
	if t.Title != "" {
		return t.Title
	}
	return t.Input
}

func printLatestResult(app *appContext) {
	results := app.cache.List()
	if len(results) == 0 {
		return
	}
	r := results[0]
	fmt.Printf("  %s: %d members -> %s\n", r.Title, r.ItemCount, r.Filename)
	if cov := r.Coverage(); cov > 0 {
		fmt.Printf("  coverage: %.0f%%\n", cov)
	}
}
