// Package main provides dprctl, a command line tool for running the plan
// selection pipeline, rendering results pages and fetching quotes.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/logging"
)

type rootOptions struct {
	logLevel string
	config   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dprctl",
		Short:         "Plan ranking and visibility engine tools",
		Long:          "dprctl runs the plan selection cascade, renders results pages with the visibility rules and fetches quotes from the quoting API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "Path to a config file (defaults to the usual search paths)")

	cmd.AddCommand(newSelectCmd(opts))
	cmd.AddCommand(newRenderCmd(opts))
	cmd.AddCommand(newQuoteCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *logrus.Logger {
	return logging.New(domain.LoggingConfig{Level: o.logLevel, Format: "text", Output: "stderr"})
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
