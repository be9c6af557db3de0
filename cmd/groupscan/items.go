package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmikhno/groupscan/internal/models"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage backend list items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backend items",
	RunE:  runItemsList,
}

var itemsAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a backend item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsAdd,
}

var itemsRmCmd = &cobra.Command{
	Use:   "rm [item-id]",
	Short: "Delete a backend item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsRm,
}

var (
	itemPriority string
	itemCategory string
)

func init() {
	itemsCmd.AddCommand(itemsListCmd, itemsAddCmd, itemsRmCmd)

	itemsAddCmd.Flags().StringVar(&itemPriority, "priority", "", "Item priority")
	itemsAddCmd.Flags().StringVar(&itemCategory, "category", "", "Item category")
}

func itemsContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func runItemsList(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := itemsContext()
	defer cancel()

	items, err := app.mgr.FetchItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no items")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRIORITY\tCATEGORY\tDONE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", shortID(it.ID), it.Title, it.Priority, it.Category, it.Done)
	}
	return w.Flush()
}

func runItemsAdd(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := itemsContext()
	defer cancel()

	created, err := app.mgr.CreateItem(ctx, models.Item{
		Title:    args[0],
		Priority: itemPriority,
		Category: itemCategory,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created item %s\n", created.ID)
	return nil
}

func runItemsRm(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := itemsContext()
	defer cancel()

	if err := app.mgr.DeleteItem(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}
