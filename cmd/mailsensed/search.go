package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchOwner string
	searchTopK  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search one owner's indexed emails",
	Long: `Search an owner's indexed emails by semantic similarity.

Examples:
  # Top 10 matches
  mailsensed search --owner alice "hotel booking confirmation"

  # Top 3 matches
  mailsensed search --owner alice --top-k 3 "invoice from march"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchOwner, "owner", "", "owner id to search as (required)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "maximum number of matches")
	_ = searchCmd.MarkFlagRequired("owner")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	matches, err := a.index.Query(ctx, query, searchOwner, searchTopK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for i, m := range matches {
		subject, _ := m.Metadata["subject"].(string)
		category, _ := m.Metadata["category"].(string)
		fmt.Printf("%2d. [%.3f] %s", i+1, m.Score, m.EmailID)
		if subject != "" {
			fmt.Printf("  %q", subject)
		}
		if category != "" {
			fmt.Printf("  (%s)", category)
		}
		fmt.Println()

		snippet := m.Content
		if len(snippet) > 160 {
			snippet = snippet[:160] + "..."
		}
		fmt.Printf("    %s\n", strings.ReplaceAll(snippet, "\n", " "))
	}
	return nil
}
