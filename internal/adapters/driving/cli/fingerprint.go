package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>",
	Short: "Fingerprint a local file",
	Long: `Computes the SHA-256 content fingerprint of a file and reports whether
the same content has already been enriched.`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

var fingerprintLookupCmd = &cobra.Command{
	Use:   "lookup <hash>",
	Short: "Look up a fingerprint in the duplicate registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runFingerprintLookup,
}

func init() {
	fingerprintCmd.AddCommand(fingerprintLookupCmd)
	rootCmd.AddCommand(fingerprintCmd)
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	if contentHasher == nil {
		return errors.New("hasher not configured")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	fp, err := contentHasher.Hash(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", args[0], err)
	}
	cmd.Println(fp.String())

	if recordService == nil {
		return nil
	}
	return printRegistryEntry(cmd, fp.String())
}

func runFingerprintLookup(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}
	return printRegistryEntry(cmd, args[0])
}

func printRegistryEntry(cmd *cobra.Command, hexDigest string) error {
	rec, err := recordService.LookupFingerprint(cmd.Context(), hexDigest)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Println("Not seen before.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up fingerprint: %w", err)
	}

	const layout = "2006-01-02 15:04:05 MST"
	cmd.Printf("First document:  %s (%s)\n", rec.FirstDocumentID, rec.FirstSeen.Format(layout))
	cmd.Printf("Latest document: %s (%s)\n", rec.LatestDocumentID, rec.LastSeen.Format(layout))
	cmd.Printf("Occurrences:     %d\n", rec.Occurrences)
	return nil
}
