package main

import (
	"fmt"

	"github.com/joeychilson/rawview/client"
	"github.com/spf13/cobra"
)

var (
	renderConfig   string
	renderMarkdown bool
)

var renderCmd = &cobra.Command{
	Use:   "render URL",
	Short: "Fetch a markdown document and print it as HTML",
	Long: `Fetch the document at URL and print the rendered HTML with every relative
link and image resolved. GitHub blob URLs are fetched from the raw mirror.`,
	Example: `  rawview render https://github.com/octo/docs/blob/main/README.md
  rawview render --markdown https://raw.githubusercontent.com/octo/docs/main/README.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(renderConfig)
		if err != nil {
			return err
		}
		defer c.Close()
		c = c.WithLogger(newLogger())

		page, err := c.Render(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if renderMarkdown {
			fmt.Fprint(cmd.OutOrStdout(), page.Markdown)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), page.HTML)
		return nil
	},
}

func newClient(configPath string) (*client.Client, error) {
	if configPath != "" {
		return client.NewFromFile(configPath)
	}
	return client.New(nil)
}

func init() {
	renderCmd.Flags().StringVarP(&renderConfig, "config", "c", "", "Path to a YAML config file")
	renderCmd.Flags().BoolVar(&renderMarkdown, "markdown", false, "Print the fetched markdown instead of HTML")
	rootCmd.AddCommand(renderCmd)
}
