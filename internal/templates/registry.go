package templates

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyTemplateID   = errors.New("template id is required")
	ErrDuplicateTemplate = errors.New("duplicate template id")
	ErrDuplicateField    = errors.New("duplicate field key")
	ErrNoFields          = errors.New("template has no fields")
	ErrUnknownDefault    = errors.New("default template is not registered")
)

// FieldDescriptor describes one expected field of a document template.
type FieldDescriptor struct {
	Key       string `yaml:"key" json:"key"`
	Label     string `yaml:"label" json:"label"`
	Icon      string `yaml:"icon" json:"icon"`
	FullWidth bool   `yaml:"full_width" json:"full_width"`
}

// TemplateDescriptor is a named, ordered field schema.
type TemplateDescriptor struct {
	ID     string            `yaml:"id" json:"id"`
	Name   string            `yaml:"name" json:"name"`
	Fields []FieldDescriptor `yaml:"fields" json:"fields"`
}

// Registry is an immutable mapping from template id to its field schema.
// Lookups for unknown ids fall back to the default template.
type Registry struct {
	order     []string
	byID      map[string]TemplateDescriptor
	defaultID string
}

func NewRegistry(defaultID string, descriptors ...TemplateDescriptor) (*Registry, error) {
	r := &Registry{
		byID:      make(map[string]TemplateDescriptor, len(descriptors)),
		defaultID: defaultID,
	}

	for _, d := range descriptors {
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, d.ID)
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = clone(d)
	}

	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefault, defaultID)
	}

	return r, nil
}

func validate(d TemplateDescriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyTemplateID
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %s", ErrNoFields, d.ID)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("template %s: field key is required", d.ID)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: %s in template %s", ErrDuplicateField, f.Key, d.ID)
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

func clone(d TemplateDescriptor) TemplateDescriptor {
	fields := make([]FieldDescriptor, len(d.Fields))
	copy(fields, d.Fields)
	if d.Name == "" {
		d.Name = d.ID
	}
	d.Fields = fields
	return d
}

// FieldsFor returns the ordered fields of the template, or the default
// template's fields when id is not registered.
func (r *Registry) FieldsFor(id string) []FieldDescriptor {
	d, _ := r.Resolve(id)
	return d.Fields
}

// Resolve returns the descriptor for id, falling back to the default
// template. The boolean reports whether id itself was registered.
func (r *Registry) Resolve(id string) (TemplateDescriptor, bool) {
	if d, ok := r.byID[id]; ok {
		return clone(d), true
	}
	return clone(r.byID[r.defaultID]), false
}

func (r *Registry) Lookup(id string) (TemplateDescriptor, bool) {
	d, ok := r.byID[id]
	if !ok {
		return TemplateDescriptor{}, false
	}
	return clone(d), true
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

func (r *Registry) Default() TemplateDescriptor {
	return clone(r.byID[r.defaultID])
}

// List returns all templates in registration order.
func (r *Registry) List() []TemplateDescriptor {
	out := make([]TemplateDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clone(r.byID[id]))
	}
	return out
}
