package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge corpus",
	Long: `Searches the ingested corpus. With an embedding engine configured the
results are ranked by semantic similarity; otherwise by keyword match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(args, " ")
	entries, err := store.Search(context.Background(), query, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("--- %d. %s", i+1, e.Source)
		if e.Similarity > 0 {
			fmt.Printf(" (%.3f)", e.Similarity)
		}
		fmt.Println(" ---")
		fmt.Println(strings.TrimSpace(e.Content))
		fmt.Println()
	}
	return nil
}
