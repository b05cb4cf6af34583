package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/render"
	"github.com/dpr-plan-engine/internal/storage"
)

// PriceView is a view that can show plan premiums.
type PriceView interface {
	SetPrices(prices map[domain.PlanID]int64)
}

// ComparisonDisplay is a view that can show the comparison overlay controls.
type ComparisonDisplay interface {
	ApplyComparison(view domain.ComparisonView)
}

// Snapshot is the observable state of an engine after an event.
type Snapshot struct {
	Filter     domain.FilterState      `json:"filter"`
	Selection  domain.SelectionResult  `json:"selection"`
	Mode       domain.DisplayMode      `json:"displayMode"`
	Trigger    domain.Trigger          `json:"trigger,omitempty"`
	Elements   []render.Element        `json:"elements"`
	Comparison domain.ComparisonView   `json:"comparison"`
	Prices     map[domain.PlanID]int64 `json:"prices,omitempty"`
	RenderedAt time.Time               `json:"renderedAt"`
}

// EngineConfig wires an engine to its page and stores.
type EngineConfig struct {
	Persistent domain.KeyValueStore
	Session    domain.KeyValueStore
	View       render.View
	Form       render.Form
	Options    domain.WidgetOptions
	Logger     *logrus.Logger
	// OnRender, if set, receives every snapshot after an event completes.
	OnRender func(Snapshot)
}

type hospitalAccommodation struct {
	Enabled bool `json:"enabled"`
}

// Engine owns one widget session: the filter pipeline, the comparison overlay
// and the reentrancy guard. Events are serialised by a mutex so each one runs
// resolver, selector and renderer to completion before the next starts.
type Engine struct {
	mu sync.Mutex

	persistent domain.KeyValueStore
	session    domain.KeyValueStore
	view       render.View
	form       render.Form
	opts       domain.WidgetOptions
	logger     *logrus.Logger
	onRender   func(Snapshot)

	resolver   *FilterResolver
	selector   *PlanSelector
	renderer   *render.Renderer
	comparison Comparison
	guard      reentrancyGuard

	last Snapshot
}

// NewEngine creates an engine and subscribes it to the form's change events.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	persistent := cfg.Persistent
	if persistent == nil {
		persistent = storage.NewSafeStore("persistent", nil, logger)
	}
	session := cfg.Session
	if session == nil {
		session = storage.NewSafeStore("session", nil, logger)
	}
	form := cfg.Form
	if form == nil {
		form = render.NewFieldSet(nil)
	}
	view := cfg.View
	if view == nil {
		view = render.NewSequence()
	}

	e := &Engine{
		persistent: persistent,
		session:    session,
		view:       view,
		form:       form,
		opts:       cfg.Options,
		logger:     logger,
		onRender:   cfg.OnRender,
		resolver:   NewFilterResolver(logger),
		selector:   NewPlanSelector(logger),
		renderer:   render.NewRenderer(logger),
	}
	e.last = Snapshot{Mode: cfg.Options.DisplayMode, Selection: domain.NoFiltering(), Filter: domain.NoConstraint()}
	form.OnChange(e.OnFieldChange)
	return e
}

// Refresh restores the form from the persistent store and renders. It is the page load event.
func (e *Engine) Refresh(ctx context.Context) Snapshot {
	e.mu.Lock()
	values := e.resolver.FormData(ctx, e.persistent)
	e.writeForm(func() {
		for _, name := range domain.FilterFields {
			if v, ok := values[name]; ok {
				e.form.SetValue(name, v)
			}
		}
	})

	var snap Snapshot
	if e.comparison.Active() {
		e.form.SetDisabled(true)
		e.renderer.ShowOnly(e.view, e.comparison.Plans())
		e.showComparison()
		snap = e.snapshotLocked()
	} else {
		snap = e.runPipeline(ctx, domain.TriggerPageLoad)
	}
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// SetField records a filter field change, updates the form and re-renders.
func (e *Engine) SetField(ctx context.Context, name, value string) (Snapshot, error) {
	e.mu.Lock()
	snap, err := e.setField(ctx, name, value)
	e.mu.Unlock()

	if err != nil {
		return snap, err
	}
	e.notify(snap)
	return snap, nil
}

func (e *Engine) setField(ctx context.Context, name, value string) (Snapshot, error) {
	if e.comparison.Active() {
		return e.snapshotLocked(), domain.ErrComparisonActive
	}
	if !isFilterField(name) {
		return e.snapshotLocked(), domain.ErrUnknownField
	}

	e.persistFields(ctx, map[string]string{name: value})
	e.writeForm(func() { e.form.SetValue(name, value) })

	e.logger.WithFields(logrus.Fields{
		"field": name,
		"value": value,
	}).Debug("Filter field changed")
	return e.runPipeline(ctx, domain.TriggerFieldChange), nil
}

// OnFieldChange is the form change listener. Changes caused by the engine's own
// form writes are ignored.
func (e *Engine) OnFieldChange(name, value string) {
	if e.guard.active() || !isFilterField(name) {
		return
	}
	if _, err := e.SetField(context.Background(), name, value); err != nil {
		e.logger.WithError(err).WithField("field", name).Debug("Ignored field change")
	}
}

// RecordApplicant merges the applicant into the stored form data and the form.
// It does not render; ApplyQuotes or QuoteFailed follows. While comparing, the
// filter fields keep their reset values.
func (e *Engine) RecordApplicant(ctx context.Context, applicant *domain.Applicant) {
	if applicant == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := applicant.FormFields()
	if e.comparison.Active() {
		for _, name := range domain.FilterFields {
			delete(fields, name)
		}
	}
	e.persistFields(ctx, fields)
	e.writeForm(func() {
		for _, name := range domain.FilterFields {
			if v, ok := fields[name]; ok {
				e.form.SetValue(name, v)
			}
		}
	})
}

// ApplyQuotes stores a fetched quote set and renders with the quote trigger.
func (e *Engine) ApplyQuotes(ctx context.Context, set *domain.QuoteSet) Snapshot {
	e.mu.Lock()
	if set != nil {
		if err := storage.SetJSON(ctx, e.session, domain.KeyQuoteSet, set); err != nil {
			e.logger.WithError(err).Warn("Failed to store quote set")
		}
	}
	snap := e.runPipeline(ctx, domain.TriggerQuoteFetched)
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// QuoteFailed renders after a failed quote request so the page stays consistent.
func (e *Engine) QuoteFailed(ctx context.Context, cause error) Snapshot {
	e.mu.Lock()
	e.logger.WithError(cause).Warn("Quote request failed, rendering with filter rules")
	snap := e.runPipeline(ctx, domain.TriggerQuoteFailed)
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// SetHospitalAccommodation toggles the Hospital Accommodation option in displayed premiums.
func (e *Engine) SetHospitalAccommodation(ctx context.Context, on bool) Snapshot {
	e.mu.Lock()
	if err := storage.SetJSON(ctx, e.session, domain.KeyHospitalAccommodation, hospitalAccommodation{Enabled: on}); err != nil {
		e.logger.WithError(err).Warn("Failed to store hospital accommodation toggle")
	}
	e.last.Prices = e.applyPrices(ctx, e.loadQuotes(ctx))
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// AddToComparison pins a plan for comparison.
func (e *Engine) AddToComparison(id domain.PlanID) (domain.ComparisonView, error) {
	return e.updateComparison(func() error { return e.comparison.Add(id) })
}

// RemoveFromComparison unpins a plan. Removing the last plan returns to Idle.
func (e *Engine) RemoveFromComparison(id domain.PlanID) (domain.ComparisonView, error) {
	return e.updateComparison(func() error { return e.comparison.Remove(id) })
}

func (e *Engine) updateComparison(change func() error) (domain.ComparisonView, error) {
	e.mu.Lock()
	err := change()
	e.showComparison()
	view := e.comparison.View()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if err != nil {
		return view, err
	}
	e.notify(snap)
	return view, nil
}

// Compare activates the comparison overlay: filters are reset and disabled and
// only the pinned plans stay visible.
func (e *Engine) Compare(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	if err := e.comparison.Activate(); err != nil {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, err
	}

	reset := make(map[string]string, len(domain.FilterFields))
	for _, name := range domain.FilterFields {
		reset[name] = noConstraintValue(name)
	}
	e.persistFields(ctx, reset)
	e.writeForm(func() {
		for _, name := range domain.FilterFields {
			e.form.SetValue(name, reset[name])
		}
	})
	e.form.SetDisabled(true)

	e.renderer.ShowOnly(e.view, e.comparison.Plans())
	e.showComparison()
	e.last.Filter = domain.NoConstraint()
	e.last.Selection = domain.NoFiltering()

	e.logger.WithField("plans", e.comparison.Plans()).Info("Comparison activated")
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return snap, nil
}

// ClearComparison returns the overlay to Idle. When it was active the filters are
// re-enabled and the pipeline runs again for the current filter state.
func (e *Engine) ClearComparison(ctx context.Context) Snapshot {
	e.mu.Lock()
	wasActive := e.comparison.Clear()

	var snap Snapshot
	if wasActive {
		e.form.SetDisabled(false)
		e.renderer.ShowEverything(e.view)
		e.showComparison()
		e.logger.Info("Comparison cleared")
		snap = e.runPipeline(ctx, domain.TriggerComparison)
	} else {
		e.showComparison()
		snap = e.snapshotLocked()
	}
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// Snapshot returns the current state without running the pipeline.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Options returns the widget options the engine renders with.
func (e *Engine) Options() domain.WidgetOptions {
	return e.opts
}

// runPipeline resolves, selects and renders. The comparison overlay suspends it.
func (e *Engine) runPipeline(ctx context.Context, trigger domain.Trigger) Snapshot {
	if e.comparison.Active() {
		e.logger.WithField("trigger", trigger).Debug("Comparison active, skipping render")
		return e.snapshotLocked()
	}

	state := e.resolver.Resolve(ctx, e.persistent)
	quotes := e.loadQuotes(ctx)

	opts := domain.SelectOptions{
		Variant:              e.opts.Variant,
		StaticShape:          e.opts.StaticShape,
		SortByRecommendation: e.opts.SortByRecommendation,
		Trigger:              trigger,
	}
	if quotes != nil {
		opts.Quotes = quotes.PlanQuotes
	}

	result := e.selector.Select(state, opts)
	e.renderer.Render(e.view, result, e.opts.DisplayMode)

	e.last.Filter = state
	e.last.Selection = result
	e.last.Trigger = trigger
	e.last.Prices = e.applyPrices(ctx, quotes)

	e.logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"shape":   result.Shape.String(),
		"source":  result.Source,
		"plans":   len(result.Plans),
	}).Debug("Pipeline completed")
	return e.snapshotLocked()
}

func (e *Engine) loadQuotes(ctx context.Context) *domain.QuoteSet {
	var set domain.QuoteSet
	if err := storage.GetJSON(ctx, e.session, domain.KeyQuoteSet, &set); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.WithError(err).Warn("Stored quote set is unreadable")
		}
		return nil
	}
	return &set
}

func (e *Engine) applyPrices(ctx context.Context, quotes *domain.QuoteSet) map[domain.PlanID]int64 {
	if quotes == nil {
		return nil
	}
	var toggle hospitalAccommodation
	if err := storage.GetJSON(ctx, e.session, domain.KeyHospitalAccommodation, &toggle); err != nil {
		toggle.Enabled = false
	}

	prices := PlanPrices(quotes, toggle.Enabled)
	if pv, ok := e.view.(PriceView); ok {
		pv.SetPrices(prices)
	}
	return prices
}

// persistFields merges fields into the stored form data.
func (e *Engine) persistFields(ctx context.Context, fields map[string]string) {
	data := make(map[string]interface{})
	if err := storage.GetJSON(ctx, e.persistent, domain.KeyFormData, &data); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.WithError(err).Warn("Stored form data is unreadable, starting over")
		}
		data = make(map[string]interface{})
	}
	for name, value := range fields {
		data[name] = value
	}
	if err := storage.SetJSON(ctx, e.persistent, domain.KeyFormData, data); err != nil {
		e.logger.WithError(err).Warn("Failed to store form data")
	}
}

// writeForm runs programmatic form writes with the reentrancy guard held.
func (e *Engine) writeForm(fn func()) {
	if !e.guard.run(fn) {
		e.logger.Debug("Form write already in progress, skipping nested write")
	}
}

func (e *Engine) showComparison() {
	if cd, ok := e.view.(ComparisonDisplay); ok {
		cd.ApplyComparison(e.comparison.View())
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := e.last
	snap.Mode = e.opts.DisplayMode
	snap.Elements = e.view.Elements()
	snap.Comparison = e.comparison.View()
	snap.RenderedAt = time.Now()
	return snap
}

func (e *Engine) notify(snap Snapshot) {
	if e.onRender != nil {
		e.onRender(snap)
	}
}

func isFilterField(name string) bool {
	for _, f := range domain.FilterFields {
		if f == name {
			return true
		}
	}
	return false
}

func noConstraintValue(field string) string {
	switch field {
	case domain.FieldInsuranceReason, domain.FieldCoverageTier:
		return "all"
	default:
		return ""
	}
}
