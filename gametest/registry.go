package gametest

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/worldtest/world"
)

// Hook runs before or after every physical batch of a named batch.
type Hook func(w world.World)

// Registry maps test names to descriptors. It is filled once at startup and
// only read afterwards.
type Registry struct {
	byName map[string]*Descriptor
	order  []*Descriptor
	before map[string]Hook
	after  map[string]Hook
}

func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]*Descriptor{},
		before: map[string]Hook{},
		after:  map[string]Hook{},
	}
}

func (r *Registry) Register(d Descriptor) error {
	d = d.withDefaults()
	if err := d.Validate(); err != nil {
		return err
	}
	if _, found := r.byName[d.Name]; found {
		return errors.Errorf("test %q registered twice", d.Name)
	}
	r.byName[d.Name] = &d
	r.order = append(r.order, &d)
	return nil
}

// MustRegister panics on the first invalid descriptor.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Before sets the hook run before each physical batch of batch.
func (r *Registry) Before(batch string, h Hook) {
	r.before[batch] = h
}

// After sets the hook run after each physical batch of batch.
func (r *Registry) After(batch string, h Hook) {
	r.after[batch] = h
}

func (r *Registry) Hooks(batch string) (before, after Hook) {
	return r.before[batch], r.after[batch]
}

func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, found := r.byName[name]
	return d, found
}

// All returns every descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	return append([]*Descriptor(nil), r.order...)
}

// Matching returns the descriptors whose name or class equals selector, or
// whose name starts with it. An empty selector matches everything.
func (r *Registry) Matching(selector string) []*Descriptor {
	var res []*Descriptor
	for _, d := range r.order {
		if selector == "" || d.Name == selector || d.Class() == selector || strings.HasPrefix(d.Name, selector) {
			res = append(res, d)
		}
	}
	return res
}

func (r *Registry) Len() int {
	return len(r.order)
}
