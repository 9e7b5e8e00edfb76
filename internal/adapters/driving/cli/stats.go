package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	counts, err := recordService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	for _, s := range []domain.RecordStatus{domain.StatusProcessed, domain.StatusDuplicate, domain.StatusFailed} {
		cmd.Printf("%-9s %d\n", statusLabel(s), counts[s])
	}

	letters, err := recordService.DeadLetters(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	cmd.Printf("Dead letters: %d\n", len(letters))
	return nil
}
