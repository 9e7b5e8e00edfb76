package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

var (
	recordHistory bool
	recordOutput  string
	languageLimit int
	languageAfter string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Read enrichment records",
}

var recordGetCmd = &cobra.Command{
	Use:   "get <container/key>",
	Short: "Show the latest record for a document",
	Long: `Shows the latest enrichment record for a document.
Use --history to list every record, newest first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordGet,
}

var recordLanguageCmd = &cobra.Command{
	Use:   "language <code>",
	Short: "List records by detected language",
	Long: `Lists records whose detected language matches the ISO code, newest
first. Use "unknown" for documents whose language could not be detected.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordLanguage,
}

func init() {
	recordGetCmd.Flags().BoolVar(&recordHistory, "history", false, "show every record for the document")
	recordCmd.PersistentFlags().StringVarP(&recordOutput, "output", "o", formatText, "output format: text, json or yaml")
	recordLanguageCmd.Flags().IntVarP(&languageLimit, "limit", "n", domain.DefaultPageLimit, "maximum number of records")
	recordLanguageCmd.Flags().StringVar(&languageAfter, "cursor", "", "continue after this cursor")
	recordCmd.AddCommand(recordGetCmd)
	recordCmd.AddCommand(recordLanguageCmd)
	rootCmd.AddCommand(recordCmd)
}

func runRecordGet(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	if recordHistory {
		records, err := recordService.History(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		return writeFormatted(cmd, recordOutput, records, func() {
			for i := range records {
				if i > 0 {
					cmd.Println()
				}
				printRecord(cmd, &records[i])
			}
		})
	}

	record, err := recordService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	return writeFormatted(cmd, recordOutput, record, func() {
		printRecord(cmd, record)
	})
}

func runRecordLanguage(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	page, err := recordService.ListByLanguage(cmd.Context(), args[0], domain.Page{
		Limit:  languageLimit,
		Cursor: languageAfter,
	})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	view := struct {
		Records    []domain.EnrichmentRecord `json:"records" yaml:"records"`
		NextCursor string                    `json:"nextCursor,omitempty" yaml:"nextCursor,omitempty"`
	}{page.Records, page.NextCursor}

	return writeFormatted(cmd, recordOutput, view, func() {
		if len(page.Records) == 0 {
			cmd.Println("No records found.")
			return
		}
		for i := range page.Records {
			r := &page.Records[i]
			cmd.Printf("%-9s %s  %s\n", statusLabel(r.Status), r.DocumentID,
				dimColor.Sprint(r.ProcessingTimestamp.Format("2006-01-02 15:04:05")))
		}
		if page.NextCursor != "" {
			cmd.Println()
			cmd.Printf("More results: --cursor %s\n", page.NextCursor)
		}
	})
}
