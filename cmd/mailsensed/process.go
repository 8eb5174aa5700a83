package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/mail"
	"github.com/fyrsmithlabs/mailsense/internal/pipeline"
)

var (
	processMode  string
	processOwner string
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Process a batch of emails from a JSON file or stdin",
	Long: `Process a batch of emails through enrichment and indexing.

The input is a JSON array of email objects. Each email needs an id, an
owner_id (or pass --owner to set one for the whole batch), a subject,
and a body.

Examples:
  # Enrich and index
  mailsensed process emails.json

  # Index without any LLM calls
  mailsensed process --mode index_only emails.json

  # Read from stdin
  cat emails.json | mailsensed process -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processMode, "mode", string(pipeline.ModeFull),
		"processing mode: full, index_only, or analyze_only")
	processCmd.Flags().StringVar(&processOwner, "owner", "",
		"owner id applied to emails that carry none")
}

func parseMode(raw string) (pipeline.Mode, error) {
	switch pipeline.Mode(raw) {
	case pipeline.ModeFull, pipeline.ModeIndexOnly, pipeline.ModeAnalyzeOnly:
		return pipeline.Mode(raw), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want full, index_only, or analyze_only)", raw)
	}
}

func readEmails(path string) ([]*mail.Email, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	var emails []*mail.Email
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("parsing email batch: %w", err)
	}

	// JSON null elements unmarshal to nil entries; drop them.
	kept := emails[:0]
	for _, e := range emails {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(processMode)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	emails, err := readEmails(path)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return fmt.Errorf("no emails in batch")
	}
	if processOwner != "" {
		for _, e := range emails {
			if e.OwnerID == "" {
				e.OwnerID = processOwner
			}
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, mode != pipeline.ModeIndexOnly)
	if err != nil {
		return err
	}
	defer a.close()

	processor := a.processor
	if processor == nil {
		processor = a.indexOnlyProcessor()
	}

	result, err := processor.ProcessBatch(ctx, emails, mode)
	if err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}

	for _, o := range result.Outcomes {
		if o.Err != "" {
			a.logger.Warn("email failed",
				zap.String("email_id", o.EmailID),
				zap.String("error", o.Err))
		}
	}

	fmt.Printf("processed %d emails: %d succeeded, %d degraded, %d failed\n",
		result.TotalCount,
		result.SucceededCount,
		result.DegradedCount,
		result.TotalCount-result.SucceededCount-result.DegradedCount)

	if result.SucceededCount == 0 && result.TotalCount > 0 {
		return fmt.Errorf("no emails processed successfully")
	}
	return nil
}
