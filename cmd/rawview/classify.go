package main

import (
	"errors"
	"fmt"

	"github.com/joeychilson/rawview/resolve"
	"github.com/spf13/cobra"
)

var errUnrecognized = errors.New("unrecognized")

var classifyCmd = &cobra.Command{
	Use:   "classify URL",
	Short: "Show the repository a raw file URL belongs to",
	Long: `Classify a raw file URL and print its owner, repository, branch and the
directory containing the file. Exits with status 1 when the URL is not a
recognized raw file URL.`,
	Example: `  rawview classify https://raw.githubusercontent.com/octo/docs/main/guide/README.md`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		origin := resolve.Classify(args[0])
		if origin == nil {
			return errUnrecognized
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "owner:     %s\n", origin.Owner)
		fmt.Fprintf(out, "repo:      %s\n", origin.Repo)
		fmt.Fprintf(out, "branch:    %s\n", origin.Branch)
		fmt.Fprintf(out, "base path: %s\n", origin.BasePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
