package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

var batchConcurrency int

var processCmd = &cobra.Command{
	Use:   "process <container> <key>...",
	Short: "Enrich individual documents",
	Long: `Runs each document through the enrichment pipeline: fingerprint,
duplicate check, text extraction, analysis and persistence.

Transient failures are retried with backoff. Documents that still fail
are written to the dead letter store.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runProcess,
}

var batchCmd = &cobra.Command{
	Use:   "batch <container>",
	Short: "Enrich every document in a container",
	Long: `Lists every document in the container and enriches them concurrently.
Documents are independent: one failure does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0,
		"documents processed at once (default from settings)")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(batchCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if runner == nil {
		return errors.New("pipeline not configured")
	}

	container := args[0]
	failed := 0
	for _, key := range args[1:] {
		ref := domain.DocumentRef{ContainerID: container, ObjectKey: key}
		out, err := runner.Run(cmd.Context(), ref)
		printOutcome(cmd, out, err)
		if err != nil {
			failed++
		}
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args)-1)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	if runner == nil || documentSource == nil {
		return errors.New("pipeline not configured")
	}

	container := args[0]
	refs, err := documentSource.List(cmd.Context(), container)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", container, err)
	}
	if len(refs) == 0 {
		cmd.Printf("No documents found in %s.\n", container)
		return nil
	}

	n := batchConcurrency
	if n <= 0 {
		n = concurrency
	}
	cmd.Printf("Enriching %d documents from %s (%d at a time)...\n", len(refs), container, n)

	report, err := runner.RunBatch(cmd.Context(), refs, n)
	if report != nil {
		for _, out := range report.Outcomes {
			printOutcome(cmd, out, nil)
		}
		cmd.Println()
		cmd.Printf("Processed: %d  Duplicates: %d  Failed: %d\n",
			report.Processed, report.Duplicates, report.Failed)
	}
	if err != nil {
		failed := 0
		if report != nil {
			failed = report.Failed
		}
		return fmt.Errorf("%d of %d documents failed: %w", failed, len(refs), err)
	}
	return nil
}
