package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deadletterCmd = &cobra.Command{
	Use:     "deadletter",
	Aliases: []string{"dlq"},
	Short:   "Inspect and redrive permanently failed documents",
}

var deadletterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered documents",
	RunE:  runDeadletterList,
}

var deadletterRedriveCmd = &cobra.Command{
	Use:   "redrive <id>",
	Short: "Re-run a dead-lettered document",
	Long: `Runs the document through the pipeline again. The dead letter is removed
when the run succeeds and updated with the new attempt count otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeadletterRedrive,
}

func init() {
	deadletterCmd.AddCommand(deadletterListCmd)
	deadletterCmd.AddCommand(deadletterRedriveCmd)
	rootCmd.AddCommand(deadletterCmd)
}

func runDeadletterList(cmd *cobra.Command, _ []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	letters, err := recordService.DeadLetters(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	if len(letters) == 0 {
		cmd.Println("No dead letters.")
		return nil
	}

	for i := range letters {
		dl := &letters[i]
		cmd.Printf("%s  %s\n", dl.ID, dl.DocumentID)
		cmd.Printf("    %s after %d attempts at %s\n",
			failedColor.Sprint(dl.Code), dl.Attempts, dl.FailedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("    %s\n", truncate(dl.Reason, 120))
	}
	return nil
}

func runDeadletterRedrive(cmd *cobra.Command, args []string) error {
	if runner == nil {
		return errors.New("pipeline not configured")
	}

	out, err := runner.Redrive(cmd.Context(), args[0])
	printOutcome(cmd, out, err)
	if err != nil {
		return fmt.Errorf("redrive failed: %w", err)
	}
	return nil
}
