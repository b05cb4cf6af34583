package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpr-plan-engine/internal/config"
	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/pkg/external"
)

type quoteFlags struct {
	applicant    string
	confirmation string
	baseURL      string
	timeout      time.Duration
}

func newQuoteCmd(root *rootOptions) *cobra.Command {
	flags := &quoteFlags{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch quotes for an applicant, or the application URL of a quote",
		Long:  "Posts the applicant to the quoting API and prints the quote set with parsed recommendation ranks. With --confirmation, prints the application URL instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuote(cmd.Context(), cmd.OutOrStdout(), root, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.applicant, "applicant", "a", "", "Path to the applicant JSON")
	cmd.Flags().StringVarP(&flags.confirmation, "confirmation", "c", "", "Confirmation number to resolve to an application URL")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "Quote API base URL (overrides configuration)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", time.Minute, "Overall request timeout")
	cmd.MarkFlagsMutuallyExclusive("applicant", "confirmation")
	cmd.MarkFlagsOneRequired("applicant", "confirmation")
	return cmd
}

func runQuote(ctx context.Context, out io.Writer, root *rootOptions, flags *quoteFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	var configFile []string
	if root.config != "" {
		configFile = append(configFile, root.config)
	}
	manager, err := config.NewManager(configFile...)
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()
	apiConfig := cfg.QuoteAPI
	if flags.baseURL != "" {
		apiConfig.BaseURL = flags.baseURL
	}

	logger := root.logger()
	var cache *external.QuoteCache
	if cfg.Cache.Enabled {
		if cache, err = external.NewQuoteCache(cfg.Cache); err != nil {
			logger.WithError(err).Warn("Quote cache unavailable")
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	client := external.NewResilientQuoteClient(external.NewQuoteClient(apiConfig), cache, logger)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if flags.confirmation != "" {
		url, err := client.GetApplicationURL(ctx, flags.confirmation)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]string{"url": url})
	}

	raw, err := os.ReadFile(flags.applicant)
	if err != nil {
		return fmt.Errorf("failed to read applicant file %s: %w", flags.applicant, err)
	}
	var applicant domain.Applicant
	if err := json.Unmarshal(raw, &applicant); err != nil {
		return fmt.Errorf("failed to unmarshal applicant JSON: %w", err)
	}

	set, err := client.CreateQuoteSet(ctx, &applicant)
	if err != nil {
		return err
	}
	return enc.Encode(set)
}
