package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/service"
	"github.com/dpr-plan-engine/pkg/external"
)

// filterFlags are the applicant attributes and widget options shared by select and render.
type filterFlags struct {
	reason      string
	tier        string
	preExisting string
	coverage    string
	variant     string
	staticShape string
	recommend   bool
	quotes      string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.reason, "reason", "r", "", "Insurance reason (0, 1, 2 or all)")
	cmd.Flags().StringVarP(&f.tier, "tier", "t", "", "Coverage tier (basic, comprehensive or all)")
	cmd.Flags().StringVar(&f.preExisting, "pre-existing", "", "Pre-existing condition answer (yes or no)")
	cmd.Flags().StringVar(&f.coverage, "pre-existing-coverage", "", "Pre-existing coverage answer (yes or no)")
	cmd.Flags().StringVar(&f.variant, "variant", string(domain.VariantIncludedSet), "Selector variant (included or topThree)")
	cmd.Flags().StringVar(&f.staticShape, "static-shape", string(domain.StaticIncluded), "Static scenario shape (included or ordered)")
	cmd.Flags().BoolVar(&f.recommend, "sort-by-recommendation", false, "Rank by the quote's recommendation ranks")
	cmd.Flags().StringVarP(&f.quotes, "quotes", "q", "", "Path to a quote set JSON response")
}

func (f *filterFlags) values() map[string]string {
	return map[string]string{
		domain.FieldInsuranceReason:     f.reason,
		domain.FieldCoverageTier:        f.tier,
		domain.FieldPreExisting:         f.preExisting,
		domain.FieldPreExistingCoverage: f.coverage,
	}
}

func (f *filterFlags) options() (domain.WidgetOptions, error) {
	opts := domain.DefaultWidgetOptions()
	switch domain.SelectorVariant(f.variant) {
	case domain.VariantIncludedSet, domain.VariantTopThree:
		opts.Variant = domain.SelectorVariant(f.variant)
	default:
		return opts, fmt.Errorf("unknown variant %q", f.variant)
	}
	switch domain.StaticShape(f.staticShape) {
	case domain.StaticIncluded, domain.StaticOrdered:
		opts.StaticShape = domain.StaticShape(f.staticShape)
	default:
		return opts, fmt.Errorf("unknown static shape %q", f.staticShape)
	}
	opts.SortByRecommendation = f.recommend
	return opts, nil
}

// loadQuotes reads the quote file, if one was given.
func (f *filterFlags) loadQuotes() (*domain.QuoteSet, error) {
	if f.quotes == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(f.quotes)
	if err != nil {
		return nil, fmt.Errorf("failed to read quotes file %s: %w", f.quotes, err)
	}
	set, err := external.DecodeQuoteSet(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode quotes file %s: %w", f.quotes, err)
	}
	return set, nil
}

type selectOutput struct {
	Filter    domain.FilterState     `json:"filter"`
	Selection domain.SelectionResult `json:"selection"`
	Shape     string                 `json:"shape"`
}

func newSelectCmd(root *rootOptions) *cobra.Command {
	flags := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run the plan selection cascade for a set of applicant attributes",
		Long:  "Normalises the applicant attributes, runs static scenarios, recommendation ranking and the set or top-three rules, and prints the selection as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSelect(cmd.OutOrStdout(), root, flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func runSelect(out io.Writer, root *rootOptions, flags *filterFlags) error {
	logger := root.logger()
	opts, err := flags.options()
	if err != nil {
		return err
	}
	quotes, err := flags.loadQuotes()
	if err != nil {
		return err
	}

	state := service.NewFilterResolver(logger).Normalize(flags.values())
	selectOpts := domain.SelectOptions{
		Variant:              opts.Variant,
		StaticShape:          opts.StaticShape,
		SortByRecommendation: opts.SortByRecommendation,
		Trigger:              domain.TriggerFieldChange,
	}
	if quotes != nil {
		selectOpts.Trigger = domain.TriggerQuoteFetched
		selectOpts.Quotes = quotes.PlanQuotes
	}

	result := service.NewPlanSelector(logger).Select(state, selectOpts)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(selectOutput{Filter: state, Selection: result, Shape: result.Shape.String()})
}
