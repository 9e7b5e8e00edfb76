package cli

import (
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/core/services"
)

var watchCmd = &cobra.Command{
	Use:   "watch <container>",
	Short: "Enrich documents as they arrive",
	Long: `Watches a container and enriches every document that is created or
rewritten, until interrupted with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if runner == nil || documentSource == nil {
		return errors.New("pipeline not configured")
	}

	container := args[0]
	cmd.Printf("Watching %s (Ctrl+C to stop)...\n", container)

	var mu sync.Mutex
	handle := func(out *driving.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		printOutcome(cmd, out, err)
	}

	return services.Watch(cmd.Context(), documentSource, container, runner, concurrency, handle)
}
