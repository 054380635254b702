package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/ollama"
	"github.com/curia-rag/curia/internal/output"
)

func newPullCmd() *cobra.Command {
	var embedOnly bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download the configured Ollama models",
		Long: `Pull the embedding model and the language model named in the
configuration from the Ollama registry. Models that are already installed
are left alone.`,
		Example: `  # Pull both models
  curia pull

  # Pull only the embedding model (enough for index and retrieve)
  curia pull --embed-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}

			models := []string{a.cfg.Models.EmbedModelName}
			if !embedOnly && a.cfg.Models.LLMName != "" {
				models = append(models, a.cfg.Models.LLMName)
			}

			client := ollama.NewClient(a.cfg.Models.OllamaHost, nil)
			defer client.CloseIdleConnections()

			out := output.New(cmd.OutOrStdout())
			for _, model := range models {
				out.Statusf("⬇", "Pulling %s", model)
				var last string
				err := client.Pull(cmd.Context(), model, func(p ollama.PullProgress) {
					if p.Total > 0 {
						out.Progress(int(p.Completed), int(p.Total), p.Status)
						return
					}
					if p.Status != last {
						last = p.Status
						out.Statusf(" ", "%s", p.Status)
					}
				})
				if err != nil {
					return err
				}
				a.logger.Info("model_ready", slog.String("model", model))
				out.Successf("%s ready", model)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&embedOnly, "embed-only", false, "Pull only the embedding model")

	return cmd
}
