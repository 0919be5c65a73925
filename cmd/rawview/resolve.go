package main

import (
	"fmt"

	"github.com/joeychilson/rawview/resolve"
	"github.com/spf13/cobra"
)

var (
	resolveSource string
	resolveKind   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve --source URL REF...",
	Short: "Resolve relative references against a raw file URL",
	Long: `Resolve each REF as it would be seen from the document at --source and print
one absolute URL per line. References are printed unchanged when the source
is not a recognized raw file URL.`,
	Example: `  rawview resolve --source https://raw.githubusercontent.com/octo/docs/main/guide/README.md ../CONTRIBUTING.md
  rawview resolve --source https://raw.githubusercontent.com/octo/docs/main/README.md --kind raw img/logo.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveSource == "" {
			return fmt.Errorf("--source is required")
		}
		kind, err := resolve.ParseKind(resolveKind)
		if err != nil {
			return err
		}

		origin := resolve.Classify(resolveSource)
		if origin == nil {
			newLogger().Warn("source url not recognized, references left as written", "source_url", resolveSource)
		}

		out := cmd.OutOrStdout()
		for _, ref := range args {
			fmt.Fprintln(out, resolve.Resolve(ref, origin, kind))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveSource, "source", "s", "", "Raw file URL the references appear in")
	resolveCmd.Flags().StringVarP(&resolveKind, "kind", "k", "page", "Reference kind: page (links) or raw (images)")
	rootCmd.AddCommand(resolveCmd)
}
