package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		noStream   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieve the passages most similar to the question and ask the
configured language model to answer from them. The answer is streamed as
it is generated, followed by the source documents.`,
		Example: `  curia query "What happens in case about Parfums Marcel Rochas, in detail?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			s, err := a.openStack(ctx, stackOptions{LLM: true})
			if err != nil {
				return err
			}
			defer s.Close(a.logger)

			question := strings.Join(args, " ")
			w := cmd.OutOrStdout()

			if jsonOutput {
				ans, err := s.manager.Query(ctx, question)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(answerJSON(ans))
			}

			var ans *index.Answer
			if noStream {
				if ans, err = s.manager.Query(ctx, question); err != nil {
					return err
				}
				fmt.Fprint(w, ans.Text)
			} else {
				ans, err = s.manager.QueryStream(ctx, question, func(tok string) {
					fmt.Fprint(w, tok)
				})
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(w)

			out := output.New(w)
			out.Newline()
			out.Heading("Sources")
			for i, r := range ans.Sources {
				out.Passage(i+1, float64(r.Score), r.Source, r.Text)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Print the answer once it is complete")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the answer and sources as JSON")

	return cmd
}

func newRetrieveCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "retrieve <text>",
		Short: "Show the passages most similar to a text",
		Long: `Embed the text and print the top-K most similar passages from the
vector store, best first, without calling the language model.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			s, err := a.openStack(ctx, stackOptions{})
			if err != nil {
				return err
			}
			defer s.Close(a.logger)

			results, err := s.manager.Retrieve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(passagesJSON(results))
			}

			out := output.New(cmd.OutOrStdout())
			if len(results) == 0 {
				out.Warning("No passages found. Run 'curia index' first.")
				return nil
			}
			for i, r := range results {
				out.Passage(i+1, float64(r.Score), r.Source, r.Text)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output passages as JSON")

	return cmd
}

type passageJSON struct {
	Source string  `json:"source"`
	Seq    int     `json:"seq"`
	Score  float32 `json:"score"`
	Text   string  `json:"text"`
}

func passagesJSON(results []index.Result) []passageJSON {
	out := make([]passageJSON, len(results))
	for i, r := range results {
		out[i] = passageJSON{Source: r.Source, Seq: r.Seq, Score: r.Score, Text: r.Text}
	}
	return out
}

func answerJSON(ans *index.Answer) any {
	return struct {
		Answer  string        `json:"answer"`
		Sources []passageJSON `json:"sources"`
	}{Answer: ans.Text, Sources: passagesJSON(ans.Sources)}
}
