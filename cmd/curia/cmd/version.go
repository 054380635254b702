package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/output"
	"github.com/curia-rag/curia/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short, verbose bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the curia version",
		Annotations: map[string]string{skipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetInfo())
			case verbose:
				info := version.GetInfo()
				out := output.New(w)
				out.Heading("curia " + info.Version)
				out.KeyValue("commit", info.Commit)
				out.KeyValue("built", info.Date)
				out.KeyValue("go", info.GoVersion)
				out.KeyValue("platform", info.OS+"/"+info.Arch)
				if info.Modified {
					out.KeyValue("tree", "modified")
				}
				return nil
			}
			_, err := fmt.Fprintln(w, version.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every build field on its own line")
	cmd.MarkFlagsMutuallyExclusive("json", "short", "verbose")

	return cmd
}
