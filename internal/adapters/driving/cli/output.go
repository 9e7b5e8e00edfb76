package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	processedColor = color.New(color.FgGreen, color.Bold)
	duplicateColor = color.New(color.FgYellow, color.Bold)
	failedColor    = color.New(color.FgRed, color.Bold)
	dimColor       = color.New(color.Faint)
)

// statusLabel colours a record status. Colour is dropped when stdout is
// not a terminal.
func statusLabel(s domain.RecordStatus) string {
	switch s {
	case domain.StatusProcessed:
		return processedColor.Sprint(s)
	case domain.StatusDuplicate:
		return duplicateColor.Sprint(s)
	default:
		return failedColor.Sprint(s)
	}
}

// printOutcome writes a one-line summary of a pipeline run.
func printOutcome(cmd *cobra.Command, out *driving.Outcome, err error) {
	if out == nil {
		cmd.Printf("%s %v\n", statusLabel(domain.StatusFailed), err)
		return
	}

	line := fmt.Sprintf("%-9s %s", statusLabel(out.Status()), out.Ref)
	if out.Record != nil && out.Record.Status == domain.StatusDuplicate {
		line += dimColor.Sprintf(" (duplicate of %s)", out.Record.DuplicateOfDocumentID)
	}
	if err != nil {
		line += fmt.Sprintf(" [%s] %v", domain.ErrorCode(err), err)
	}
	cmd.Println(line)
}

// writeFormatted renders v as JSON or YAML, or calls text for plain output.
func writeFormatted(cmd *cobra.Command, format string, v any, text func()) error {
	switch strings.ToLower(format) {
	case "", formatText:
		text()
		return nil
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		cmd.Println(string(data))
		return nil
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		cmd.Print(string(data))
		return nil
	default:
		return fmt.Errorf("%w: unknown output format %q (use text, json or yaml)", domain.ErrInvalidInput, format)
	}
}

// printRecord writes a record in the plain text layout.
func printRecord(cmd *cobra.Command, r *domain.EnrichmentRecord) {
	cmd.Printf("Document:  %s\n", r.DocumentID)
	cmd.Printf("Status:    %s\n", statusLabel(r.Status))
	cmd.Printf("Record ID: %s\n", r.ID)
	cmd.Printf("Processed: %s\n", r.ProcessingTimestamp.Format("2006-01-02 15:04:05 MST"))
	if r.ContentHash != "" {
		cmd.Printf("Hash:      %s\n", r.ContentHash)
	}

	switch r.Status {
	case domain.StatusDuplicate:
		cmd.Printf("Duplicate of: %s\n", r.DuplicateOfDocumentID)
		return
	case domain.StatusFailed:
		cmd.Printf("Reason:    %s\n", r.FailureReason)
		return
	}

	cmd.Printf("Language:  %s\n", r.Language)
	cmd.Printf("Length:    %d characters\n", r.FullTextLength)

	if len(r.Entities) > 0 {
		cmd.Println("Entities:")
		for _, e := range r.Entities {
			cmd.Printf("  - %s (%s, %.2f)\n", e.Text, e.Type, e.Confidence)
		}
	}
	if len(r.KeyPhrases) > 0 {
		cmd.Println("Key phrases:")
		for _, p := range r.KeyPhrases {
			cmd.Printf("  - %s (%.2f)\n", p.Text, p.Confidence)
		}
	}
	if r.Summary != "" {
		cmd.Println("Summary:")
		cmd.Printf("  %s\n", r.Summary)
	}
	if r.Insights != "" {
		cmd.Println("Insights:")
		cmd.Printf("  %s\n", r.Insights)
	}
	if r.ExtractedTextPreview != "" {
		cmd.Println("Preview:")
		cmd.Printf("  %s\n", truncate(r.ExtractedTextPreview, 200))
	}
}

// truncate shortens s to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= maxLen {
		return s
	}
	return domain.TruncateRunes(s, maxLen-3) + "..."
}
