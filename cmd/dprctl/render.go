package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dpr-plan-engine/internal/api"
	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/render"
	"github.com/dpr-plan-engine/internal/service"
	"github.com/dpr-plan-engine/internal/storage"
)

type renderFlags struct {
	filterFlags
	page     string
	mode     string
	out      string
	hospital bool
	compare  []string
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a results page for a set of applicant attributes",
		Long:  "Loads a results page, applies the visibility rules for the applicant attributes and display mode, and writes the resulting HTML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), root, flags)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&flags.page, "page", "p", "", "Path to the results page HTML (defaults to the built-in page)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", string(domain.DisplayShowAll), "Display mode (showAll, limit, hideOnly, suggested, all)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file (defaults to stdout)")
	cmd.Flags().BoolVar(&flags.hospital, "hospital-accommodation", false, "Include the Hospital Accommodation option in premiums")
	cmd.Flags().StringArrayVar(&flags.compare, "compare", nil, "Plan to pin for comparison (repeatable, at most 3)")
	return cmd
}

func runRender(ctx context.Context, out io.Writer, root *rootOptions, flags *renderFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := root.logger()

	opts, err := flags.options()
	if err != nil {
		return err
	}
	mode, ok := domain.ParseDisplayMode(flags.mode)
	if !ok {
		return fmt.Errorf("unknown display mode %q", flags.mode)
	}
	opts.DisplayMode = mode

	page := api.DefaultResultsPage()
	if flags.page != "" {
		if page, err = os.ReadFile(flags.page); err != nil {
			return fmt.Errorf("failed to read page %s: %w", flags.page, err)
		}
	}
	doc, err := render.ParseDocument(bytes.NewReader(page))
	if err != nil {
		return err
	}

	quotes, err := flags.loadQuotes()
	if err != nil {
		return err
	}

	persistent := storage.NewMemoryStore(0, 0)
	formData := make(map[string]string)
	for name, value := range flags.values() {
		if value != "" {
			formData[name] = value
		}
	}
	if err := storage.SetJSON(ctx, persistent, domain.KeyFormData, formData); err != nil {
		return err
	}

	engine := service.NewEngine(service.EngineConfig{
		Persistent: persistent,
		Session:    storage.NewMemoryStore(0, 0),
		View:       doc,
		Form:       doc,
		Options:    opts,
		Logger:     logger,
	})
	engine.Refresh(ctx)
	if quotes != nil {
		engine.ApplyQuotes(ctx, quotes)
	}
	if flags.hospital {
		doc.SetHospitalAccommodation(true)
		engine.SetHospitalAccommodation(ctx, true)
	}

	if len(flags.compare) > 0 {
		for _, plan := range flags.compare {
			if _, err := engine.AddToComparison(domain.PlanID(plan)); err != nil {
				return fmt.Errorf("failed to pin %s: %w", plan, err)
			}
		}
		if _, err := engine.Compare(ctx); err != nil {
			return err
		}
	}

	html, err := doc.HTML()
	if err != nil {
		return fmt.Errorf("failed to serialise page: %w", err)
	}

	if flags.out == "" {
		_, err = io.WriteString(out, html)
		return err
	}
	if dir := filepath.Dir(flags.out); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(flags.out, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", flags.out, err)
	}
	fmt.Fprintf(out, "Rendered %s (%s)\n", flags.out, opts.DisplayMode)
	return nil
}
