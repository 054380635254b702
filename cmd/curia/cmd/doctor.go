package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/extract"
	"github.com/curia-rag/curia/internal/ollama"
	"github.com/curia-rag/curia/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure curia can index and answer.

Checks:
  - Data directory exists and holds documents
  - Database directory is writable and has 256 MiB free
  - Open file limit (warning below 256)
  - pdftotext is installed
  - Ollama is reachable and the configured models are pulled

A missing pdftotext or language model is a warning: text documents
still index and retrieve works without a language model.`,
		Example: `  # Run diagnostics
  curia doctor

  # JSON output for scripting
  curia doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	client := ollama.NewClient(a.cfg.Models.OllamaHost, nil)
	defer client.CloseIdleConnections()

	checker := preflight.New(
		preflight.WithOllama(client, a.cfg.Models.EmbedModelName, a.cfg.Models.LLMName),
		preflight.WithSupports(extract.New().Supports),
	)
	report := checker.RunAll(cmd.Context(), preflight.Paths{
		DataDir: a.cfg.Data.DataPath,
		DBDir:   a.cfg.Data.DBPath,
	})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		report.Print(cmd.OutOrStdout(), verbose)
	}

	if report.Failed() {
		return errors.New(errors.ErrCodeDependencyMissing, "system check failed", nil).
			WithSuggestion("fix the failed checks above and run curia doctor again")
	}
	return nil
}
