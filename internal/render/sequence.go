// Package render partitions plan elements into shown-first, shown and hidden groups
// and applies the result to a page. The renderer works on an abstract ordered
// sequence; Document applies the same patches to an HTML page through goquery.
package render

import (
	"fmt"

	"github.com/dpr-plan-engine/internal/domain"
)

// Element is one plan element on the page.
type Element struct {
	Plan     domain.PlanID `json:"plan"`
	Injected bool          `json:"injected,omitempty"`
	Hidden   bool          `json:"hidden"`
}

// Entry places one managed element. Index refers to the element's position among
// the managed (non-injected) elements as returned by View.Elements.
type Entry struct {
	Index   int           `json:"index"`
	Plan    domain.PlanID `json:"plan"`
	Visible bool          `json:"visible"`
}

// Patch lists every managed element in its final order with its visibility.
// When Reorder is false the entries are in current order and only visibility changes.
type Patch struct {
	Entries []Entry `json:"entries"`
	Reorder bool    `json:"reorder"`
}

// Empty reports whether the patch touches nothing.
func (p Patch) Empty() bool {
	return len(p.Entries) == 0
}

// Order returns the plan identifiers in patch order.
func (p Patch) Order() []domain.PlanID {
	out := make([]domain.PlanID, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Plan
	}
	return out
}

// View is a render target holding plan elements in page order.
type View interface {
	Elements() []Element
	Apply(p Patch) error
}

// Managed returns the non-injected elements in order.
func Managed(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		if !el.Injected {
			out = append(out, el)
		}
	}
	return out
}

// Sequence is an in-memory View. Applying a reordering patch mirrors remove-and-reappend:
// managed elements are taken out and appended after the injected ones.
type Sequence struct {
	items []Element
}

// NewSequence builds a sequence from elements in page order.
func NewSequence(elements ...Element) *Sequence {
	items := make([]Element, len(elements))
	copy(items, elements)
	return &Sequence{items: items}
}

// PlanSequence builds a sequence of visible managed elements.
func PlanSequence(plans ...domain.PlanID) *Sequence {
	items := make([]Element, len(plans))
	for i, p := range plans {
		items[i] = Element{Plan: p}
	}
	return &Sequence{items: items}
}

func (s *Sequence) Elements() []Element {
	out := make([]Element, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Sequence) Apply(p Patch) error {
	var managedPos []int
	for i, el := range s.items {
		if !el.Injected {
			managedPos = append(managedPos, i)
		}
	}
	if len(p.Entries) != len(managedPos) {
		return fmt.Errorf("patch has %d entries for %d managed elements", len(p.Entries), len(managedPos))
	}

	seen := make([]bool, len(managedPos))
	for _, e := range p.Entries {
		if e.Index < 0 || e.Index >= len(managedPos) || seen[e.Index] {
			return fmt.Errorf("patch entry index %d is invalid", e.Index)
		}
		seen[e.Index] = true
	}

	if !p.Reorder {
		for _, e := range p.Entries {
			s.items[managedPos[e.Index]].Hidden = !e.Visible
		}
		return nil
	}

	next := make([]Element, 0, len(s.items))
	for _, el := range s.items {
		if el.Injected {
			next = append(next, el)
		}
	}
	for _, e := range p.Entries {
		el := s.items[managedPos[e.Index]]
		el.Hidden = !e.Visible
		next = append(next, el)
	}
	s.items = next
	return nil
}

// PlanOrder returns the plan identifiers of elements in order.
func PlanOrder(elements []Element) []domain.PlanID {
	out := make([]domain.PlanID, len(elements))
	for i, el := range elements {
		out[i] = el.Plan
	}
	return out
}

// Order returns the plan identifiers of all elements in order.
func (s *Sequence) Order() []domain.PlanID {
	return PlanOrder(s.items)
}

// Visible returns the visible plan identifiers in order.
func (s *Sequence) Visible() []domain.PlanID {
	var out []domain.PlanID
	for _, el := range s.items {
		if !el.Hidden {
			out = append(out, el.Plan)
		}
	}
	return out
}

// Hidden returns the hidden plan identifiers in order.
func (s *Sequence) Hidden() []domain.PlanID {
	var out []domain.PlanID
	for _, el := range s.items {
		if el.Hidden {
			out = append(out, el.Plan)
		}
	}
	return out
}
