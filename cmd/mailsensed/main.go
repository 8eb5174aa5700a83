// Mailsensed is the email enrichment and semantic indexing pipeline.
//
// It derives structured metadata (category, priority, summary, action
// items, contact info) from email content via an OpenAI-compatible
// completion service, and stores embeddings in a vector store (Qdrant or
// embedded chromem) scoped per owner.
//
// Usage:
//
//	# Process a batch of emails from a JSON file
//	mailsensed process --config mailsense.yaml emails.json
//
//	# Search one owner's indexed emails
//	mailsensed search --owner alice "travel plans for march"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailsensed",
	Short: "Email enrichment and semantic indexing pipeline",
	Long: `mailsensed enriches emails with LLM-derived metadata and indexes
their embeddings in a vector store for per-owner semantic search.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailsensed by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(searchCmd)
}
