package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size, models and Ollama reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := a.openStack(ctx, stackOptions{LLM: true, Offline: true})
			if err != nil {
				return err
			}
			defer s.Close(a.logger)

			st, err := s.manager.Status(ctx)
			if err != nil {
				return err
			}

			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			reachable := s.embedder.Available(pingCtx)
			cancel()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*index.Status
					DataPath        string `json:"data_path"`
					OllamaReachable bool   `json:"ollama_reachable"`
				}{st, a.cfg.Data.DataPath, reachable})
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading("curia index")
			out.KeyValue("Collection", st.Collection)
			out.KeyValue("Chunks", st.Records)
			out.KeyValue("Documents", st.LedgerFiles)
			out.KeyValue("Data", a.cfg.Data.DataPath)
			out.KeyValue("Ledger", st.LedgerPath)
			out.KeyValue("Embed model", st.EmbedModel)
			out.KeyValue("LLM", st.LLMModel)
			out.KeyValue("Top K", st.TopK)
			out.Newline()
			if reachable {
				out.Successf("Ollama reachable at %s", a.cfg.Models.OllamaHost)
			} else {
				out.Warningf("Ollama not reachable at %s", a.cfg.Models.OllamaHost)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}
