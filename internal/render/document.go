package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dpr-plan-engine/internal/domain"
)

// Page attributes recognised by Document.
const (
	AttrPlan           = "dpr-results-plan"
	AttrInjected       = "dpr-results-injected"
	AttrPrice          = "dpr-results-price"
	AttrCompareBox     = "dpr-compare-checkbox"
	AttrCompareButton  = "dpr-compare-button"
	AttrCompareRemove  = "dpr-compare-remove"
	AttrCompareClear   = "dpr-compare-clear"
	AttrComparePinned  = "dpr-compare-pinned"
	AttrHospitalToggle = "dpr-hospital-accommodation"
)

var errNoContainer = errors.New("plan elements do not share a parent container")

// Document is an HTML results page. It implements View and Form; plan elements
// carry the dpr-results-plan attribute and filter controls are named form fields.
type Document struct {
	mu        sync.Mutex
	doc       *goquery.Document
	listeners []ChangeListener
}

// ParseDocument reads an HTML page.
func ParseDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseDocumentString reads an HTML page from a string.
func ParseDocumentString(page string) (*Document, error) {
	return ParseDocument(strings.NewReader(page))
}

// HTML serialises the current page.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

func (d *Document) plans() *goquery.Selection {
	return d.doc.Find("[" + AttrPlan + "]")
}

func (d *Document) managed() *goquery.Selection {
	return d.plans().Not("[" + AttrInjected + "]")
}

func (d *Document) Elements() []Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Element
	d.plans().Each(func(_ int, s *goquery.Selection) {
		plan, _ := s.Attr(AttrPlan)
		_, injected := s.Attr(AttrInjected)
		out = append(out, Element{
			Plan:     domain.PlanID(plan),
			Injected: injected,
			Hidden:   isHidden(s),
		})
	})
	return out
}

func (d *Document) Apply(p Patch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	managed := d.managed()
	if len(p.Entries) != managed.Length() {
		return fmt.Errorf("patch has %d entries for %d managed elements", len(p.Entries), managed.Length())
	}
	if managed.Length() == 0 {
		return nil
	}

	parent := managed.Nodes[0].Parent
	for _, n := range managed.Nodes {
		if n.Parent == nil || n.Parent != parent {
			return errNoContainer
		}
	}

	seen := make([]bool, managed.Length())
	for _, e := range p.Entries {
		if e.Index < 0 || e.Index >= managed.Length() || seen[e.Index] {
			return fmt.Errorf("patch entry index %d is invalid", e.Index)
		}
		seen[e.Index] = true
	}

	ordered := make([]*html.Node, 0, len(p.Entries))
	for _, e := range p.Entries {
		node := managed.Eq(e.Index)
		setVisible(node, e.Visible)
		ordered = append(ordered, managed.Nodes[e.Index])
	}

	if p.Reorder {
		d.doc.FindNodes(parent).AppendNodes(ordered...)
	}
	return nil
}

// SetPrices writes whole-unit premiums into each plan's price slot.
// Plans without a price are left untouched.
func (d *Document) SetPrices(prices map[domain.PlanID]int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.plans().Each(func(_ int, s *goquery.Selection) {
		plan, _ := s.Attr(AttrPlan)
		price, ok := prices[domain.PlanID(plan)]
		if !ok {
			return
		}
		s.Find("[" + AttrPrice + "]").SetText(strconv.FormatInt(price, 10))
	})
}

// Prices reads the price slot text of each plan.
func (d *Document) Prices() map[domain.PlanID]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[domain.PlanID]string)
	d.plans().Each(func(_ int, s *goquery.Selection) {
		plan, _ := s.Attr(AttrPlan)
		if slot := s.Find("[" + AttrPrice + "]"); slot.Length() > 0 {
			out[domain.PlanID(plan)] = strings.TrimSpace(slot.First().Text())
		}
	})
	return out
}

// ApplyComparison reflects the comparison overlay in the page controls.
func (d *Document) ApplyComparison(view domain.ComparisonView) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.plans().Each(func(_ int, s *goquery.Selection) {
		plan, _ := s.Attr(AttrPlan)
		pinned := view.Selected(domain.PlanID(plan))

		box := s.Find("[" + AttrCompareBox + "]")
		setFlag(box, "checked", pinned)
		setFlag(box, "disabled", (view.SelectionDisabled && !pinned) || view.State == domain.ComparisonActive)

		if pinned {
			s.SetAttr(AttrComparePinned, "")
		} else {
			s.RemoveAttr(AttrComparePinned)
		}
	})

	setFlag(d.doc.Find("["+AttrCompareButton+"]"), "disabled", !view.CompareEnabled)
	setVisible(d.doc.Find("["+AttrCompareRemove+"]"), view.RemoveVisible)
	setVisible(d.doc.Find("["+AttrCompareClear+"]"), view.State == domain.ComparisonActive)
}

// HospitalAccommodation reports whether the hospital accommodation toggle is checked.
func (d *Document) HospitalAccommodation() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, checked := d.doc.Find("[" + AttrHospitalToggle + "]").First().Attr("checked")
	return checked
}

// SetHospitalAccommodation sets the hospital accommodation toggle.
func (d *Document) SetHospitalAccommodation(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setFlag(d.doc.Find("["+AttrHospitalToggle+"]"), "checked", on)
}

func (d *Document) controls(name string) *goquery.Selection {
	sel := fmt.Sprintf(`input[name=%q], select[name=%q]`, name, name)
	return d.doc.Find(sel)
}

func (d *Document) SetValue(name, value string) {
	d.mu.Lock()
	ctl := d.controls(name)
	if _, disabled := ctl.First().Attr("disabled"); disabled {
		d.mu.Unlock()
		return
	}
	ctl.Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "select":
			s.Find("option").Each(func(_ int, opt *goquery.Selection) {
				setFlag(opt, "selected", optionValue(opt) == value)
			})
		case "input":
			kind, _ := s.Attr("type")
			switch strings.ToLower(kind) {
			case "radio", "checkbox":
				v, _ := s.Attr("value")
				setFlag(s, "checked", v == value)
			default:
				s.SetAttr("value", value)
			}
		}
	})
	listeners := append([]ChangeListener(nil), d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
}

func (d *Document) Value(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var value string
	d.controls(name).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "select":
			if opt := s.Find("option[selected]").First(); opt.Length() > 0 {
				value = optionValue(opt)
				return false
			}
		case "input":
			kind, _ := s.Attr("type")
			switch strings.ToLower(kind) {
			case "radio", "checkbox":
				if _, checked := s.Attr("checked"); checked {
					value, _ = s.Attr("value")
					return false
				}
			default:
				value, _ = s.Attr("value")
				return false
			}
		}
		return true
	})
	return value
}

func (d *Document) SetDisabled(disabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range domain.FilterFields {
		setFlag(d.controls(name), "disabled", disabled)
	}
}

func (d *Document) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range domain.FilterFields {
		ctl := d.controls(name)
		if ctl.Length() == 0 {
			continue
		}
		if _, ok := ctl.First().Attr("disabled"); !ok {
			return false
		}
	}
	return true
}

func (d *Document) OnChange(fn ChangeListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

func setFlag(s *goquery.Selection, attr string, on bool) {
	if on {
		s.SetAttr(attr, attr)
	} else {
		s.RemoveAttr(attr)
	}
}

// setVisible resets the inline display declaration, restoring the stylesheet default,
// and adds display:none when hiding.
func setVisible(s *goquery.Selection, visible bool) {
	s.Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		kept := stripDisplay(style)
		if !visible {
			kept = append(kept, "display: none")
		}
		if len(kept) == 0 {
			el.RemoveAttr("style")
			return
		}
		el.SetAttr("style", strings.Join(kept, "; ")+";")
	})
}

func isHidden(s *goquery.Selection) bool {
	style, _ := s.Attr("style")
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "display") &&
			strings.EqualFold(strings.TrimSpace(val), "none") {
			return true
		}
	}
	return false
}

func stripDisplay(style string) []string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		kept = append(kept, decl)
	}
	return kept
}
