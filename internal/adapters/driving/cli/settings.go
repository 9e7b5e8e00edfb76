package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

var (
	analyzerModel  string
	analyzerAPIKey string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure storage, analyzer provider, limits and retry policy.

Use subcommands to configure specific settings.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsAnalyzerCmd = &cobra.Command{
	Use:   "analyzer [provider]",
	Short: "Configure the summary provider",
	Long: `Configure which provider writes document summaries.

Available providers:
  local  - Built-in extractive summaries (offline, no setup required)
  ollama - Summaries from a local Ollama model
  openai - Summaries from the OpenAI API (requires an API key)

Without a provider argument an interactive menu is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsAnalyzer,
}

func init() {
	settingsAnalyzerCmd.Flags().StringVar(&analyzerModel, "model", "", "model name (default per provider)")
	settingsAnalyzerCmd.Flags().StringVar(&analyzerAPIKey, "api-key", "", "API key for cloud providers")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsAnalyzerCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage)
	if settings.Storage == domain.StorageSQLite {
		cmd.Printf("  Data dir: %s\n", settings.DataDir)
	}
	cmd.Printf("  Source root: %s\n", settings.SourceRoot)
	cmd.Printf("  Concurrency: %d\n", settings.Concurrency)
	cmd.Println()

	cmd.Println("[Analyzers]")
	a := settings.Analyzers
	cmd.Printf("  Provider: %s\n", a.Provider.Description())
	if a.Provider != domain.AnalyzerLocal {
		cmd.Printf("  Model: %s\n", a.Model)
		cmd.Printf("  Base URL: %s\n", a.BaseURL)
	}
	if a.Provider.RequiresAPIKey() {
		if a.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(a.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	cmd.Printf("  Timeout: %s\n", a.Timeout)
	if a.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %g requests/s\n", a.RequestsPerSecond)
	}
	status := "configured"
	if !a.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Limits]")
	l := settings.Limits
	cmd.Printf("  Language input: %d chars\n", l.LanguageInputChars)
	cmd.Printf("  Analysis input: %d chars\n", l.AnalysisInputChars)
	cmd.Printf("  Summary input: %d chars\n", l.SummaryInputChars)
	cmd.Printf("  Max items: %d\n", l.MaxItems)
	cmd.Printf("  Preview: %d chars\n", l.PreviewChars)
	cmd.Printf("  Summary/insights: %d bytes\n", l.MaxTextBytes)
	cmd.Printf("  Structured field: %d bytes\n", l.MaxFieldBytes)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max attempts: %d\n", settings.Retry.MaxAttempts)
	cmd.Printf("  Backoff: %s doubling, capped at %s\n", settings.Retry.BaseBackoff, settings.Retry.MaxBackoff)
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'enricher settings analyzer' to fix analyzer configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsAnalyzer(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	var provider domain.AnalyzerProvider
	if len(args) == 1 {
		provider = domain.AnalyzerProvider(strings.ToLower(args[0]))
		if !provider.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, args[0])
		}
	} else {
		cmd.Println("Select Summary Provider")
		providers := domain.AllAnalyzerProviders()
		for i, p := range providers {
			cmd.Printf("  %d. %s\n", i+1, p.Description())
		}
		cmd.Print("\nEnter choice [1]: ")
		idx := parseChoice(readLine(reader), len(providers), 1)
		provider = providers[idx-1]
	}

	model := analyzerModel
	if model == "" && provider != domain.AnalyzerLocal {
		defaultModel := domain.DefaultLLMModels()[provider]
		if len(args) == 1 {
			model = defaultModel
		} else {
			cmd.Printf("Enter model name [%s]: ", defaultModel)
			model = readLine(reader)
			if model == "" {
				model = defaultModel
			}
		}
	}

	apiKey := analyzerAPIKey
	if provider.RequiresAPIKey() && apiKey == "" {
		if current, err := settingsService.Get(); err == nil && current.Analyzers.Provider == provider {
			apiKey = current.Analyzers.APIKey
		}
		if apiKey == "" {
			cmd.Print("Enter API key: ")
			apiKey = readPassword(cmd.InOrStdin(), reader)
			cmd.Println()
		}
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetAnalyzerProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure analyzer provider: %w", err)
	}

	// Validate the configuration by pinging the service
	if provider != domain.AnalyzerLocal {
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateAnalyzerConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			cmd.Println("Settings were saved; enrichment falls back to local summaries until this is fixed.")
			return fmt.Errorf("analyzer configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	if model != "" {
		cmd.Printf("Summary provider configured: %s (%s)\n", provider.Description(), model)
	} else {
		cmd.Printf("Summary provider configured: %s\n", provider.Description())
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when in is a terminal and
// falls back to a plain line read otherwise.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
