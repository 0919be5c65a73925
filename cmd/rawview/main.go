package main

import (
	"fmt"
	"os"

	"github.com/joeychilson/rawview/logger"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "rawview",
	Short: "Render GitHub-hosted markdown with its relative links resolved",
	Long: `rawview fetches markdown documents from raw.githubusercontent.com and
rewrites their relative links and images so they point back at GitHub.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

// newLogger writes human-readable logs to stderr.
func newLogger() logger.Logger {
	level, err := logger.ParseLevel(logLevel)
	log := logger.NewText(os.Stderr, level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", logLevel)
	}
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
