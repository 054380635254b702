package cmd

import (
	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/ui"
)

func newChatCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. Answers stream as they are generated and
list the documents they were drawn from. Press enter on an empty prompt to
ask the example question; type exit or press esc to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			return ui.RunChat(ctx, ui.ChatConfig{
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
				Asker:      s.manager,
				ForcePlain: plain,
				NoColor:    ui.DetectNoColor(),
				Model:      a.cfg.Models.LLMName,
			})
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Use line mode even on a terminal")

	return cmd
}
