package render

import (
	"sync"

	"github.com/dpr-plan-engine/internal/domain"
)

// ChangeListener is notified after a form field value is written.
type ChangeListener func(name, value string)

// Form is the set of filter controls on the page. SetValue writes a control and
// notifies every listener synchronously, the way a dispatched change event does.
// While disabled, writes to filter controls are dropped without notifying.
type Form interface {
	SetValue(name, value string)
	Value(name string) string
	SetDisabled(disabled bool)
	Disabled() bool
	OnChange(fn ChangeListener)
}

// FieldSet is an in-memory Form.
type FieldSet struct {
	mu        sync.Mutex
	values    map[string]string
	disabled  bool
	listeners []ChangeListener
}

// NewFieldSet creates a form with the given initial values.
func NewFieldSet(values map[string]string) *FieldSet {
	fs := &FieldSet{values: make(map[string]string, len(values))}
	for k, v := range values {
		fs.values[k] = v
	}
	return fs
}

func (f *FieldSet) SetValue(name, value string) {
	f.mu.Lock()
	if f.disabled && filterField(name) {
		f.mu.Unlock()
		return
	}
	f.values[name] = value
	listeners := append([]ChangeListener(nil), f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
}

func (f *FieldSet) Value(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

func (f *FieldSet) SetDisabled(disabled bool) {
	f.mu.Lock()
	f.disabled = disabled
	f.mu.Unlock()
}

func (f *FieldSet) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

func (f *FieldSet) OnChange(fn ChangeListener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func filterField(name string) bool {
	for _, f := range domain.FilterFields {
		if f == name {
			return true
		}
	}
	return false
}
