package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func keys(fields []FieldDescriptor) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Key
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFieldsFor(t *testing.T) {
	r := NewBuiltinRegistry()

	tests := []struct {
		name     string
		id       string
		expected []string
	}{
		{
			name:     "standard",
			id:       "standard",
			expected: []string{"full_name", "dob", "address", "aadhaar", "pan", "phone"},
		},
		{
			name:     "aadhaar",
			id:       "aadhaar",
			expected: []string{"full_name", "dob", "address", "aadhaar"},
		},
		{
			name:     "pan",
			id:       "pan",
			expected: []string{"full_name", "dob", "address", "pan", "phone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keys(r.FieldsFor(tt.id))
			if !equalKeys(got, tt.expected) {
				t.Errorf("expected fields %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFieldsFor_UnknownFallsBackToDefault(t *testing.T) {
	r := NewBuiltinRegistry()
	expected := keys(r.FieldsFor(DefaultID))

	for _, id := range []string{"", "passport", "STANDARD", "voter-id", " standard"} {
		t.Run(id, func(t *testing.T) {
			got := r.FieldsFor(id)
			if len(got) == 0 {
				t.Fatalf("expected default fields for %q, got none", id)
			}
			if !equalKeys(keys(got), expected) {
				t.Errorf("expected %v for %q, got %v", expected, id, keys(got))
			}

			d, known := r.Resolve(id)
			if known {
				t.Errorf("expected %q to be reported as unknown", id)
			}
			if d.ID != DefaultID {
				t.Errorf("expected fallback to %s, got %s", DefaultID, d.ID)
			}
		})
	}
}

func TestFieldsFor_ReturnsCopy(t *testing.T) {
	r := NewBuiltinRegistry()

	fields := r.FieldsFor("standard")
	fields[0].Label = "Changed"

	if r.FieldsFor("standard")[0].Label != "Full Name" {
		t.Error("registry descriptors were mutated through a returned slice")
	}
}

func TestAddressIsFullWidth(t *testing.T) {
	r := NewBuiltinRegistry()
	for _, d := range r.List() {
		for _, f := range d.Fields {
			if f.FullWidth != (f.Key == "address") {
				t.Errorf("template %s field %s: unexpected FullWidth=%v", d.ID, f.Key, f.FullWidth)
			}
		}
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	field := FieldDescriptor{Key: "a", Label: "A"}

	tests := []struct {
		name        string
		defaultID   string
		descriptors []TemplateDescriptor
		expectErr   error
	}{
		{
			name:        "missing default",
			defaultID:   "nope",
			descriptors: []TemplateDescriptor{{ID: "x", Fields: []FieldDescriptor{field}}},
			expectErr:   ErrUnknownDefault,
		},
		{
			name:      "duplicate template",
			defaultID: "x",
			descriptors: []TemplateDescriptor{
				{ID: "x", Fields: []FieldDescriptor{field}},
				{ID: "x", Fields: []FieldDescriptor{field}},
			},
			expectErr: ErrDuplicateTemplate,
		},
		{
			name:        "duplicate field",
			defaultID:   "x",
			descriptors: []TemplateDescriptor{{ID: "x", Fields: []FieldDescriptor{field, field}}},
			expectErr:   ErrDuplicateField,
		},
		{
			name:        "no fields",
			defaultID:   "x",
			descriptors: []TemplateDescriptor{{ID: "x"}},
			expectErr:   ErrNoFields,
		},
		{
			name:        "empty id",
			defaultID:   "x",
			descriptors: []TemplateDescriptor{{ID: " ", Fields: []FieldDescriptor{field}}},
			expectErr:   ErrEmptyTemplateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defaultID, tt.descriptors...)
			if !errors.Is(err, tt.expectErr) {
				t.Errorf("expected %v, got %v", tt.expectErr, err)
			}
		})
	}
}

func TestLoadOverlay(t *testing.T) {
	base := NewBuiltinRegistry()

	t.Run("adds and replaces", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "templates.yaml")
		content := `
templates:
  - id: voter
    name: Voter ID
    fields:
      - {key: full_name, label: Full Name, icon: "👤"}
      - {key: epic, label: EPIC Number, icon: "🗳"}
  - id: pan
    name: PAN Card v2
    fields:
      - {key: pan, label: PAN Number}
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write overlay: %v", err)
		}

		r, err := LoadOverlay(base, path)
		if err != nil {
			t.Fatalf("Failed to load overlay: %v", err)
		}

		list := r.List()
		if len(list) != 4 {
			t.Fatalf("expected 4 templates, got %d", len(list))
		}
		if list[2].ID != "pan" || list[2].Name != "PAN Card v2" {
			t.Errorf("expected pan replaced in place, got %+v", list[2])
		}
		if list[3].ID != "voter" {
			t.Errorf("expected voter appended, got %s", list[3].ID)
		}
		if got := keys(r.FieldsFor("voter")); !equalKeys(got, []string{"full_name", "epic"}) {
			t.Errorf("unexpected voter fields %v", got)
		}
		if base.Has("voter") {
			t.Error("base registry was modified by overlay")
		}
	})

	t.Run("duplicate field key rejected", func(t *testing.T) {
		data := []byte(`
templates:
  - id: broken
    fields:
      - {key: a}
      - {key: a}
`)
		if _, err := ParseOverlay(base, data); !errors.Is(err, ErrDuplicateField) {
			t.Errorf("expected ErrDuplicateField, got %v", err)
		}
	})

	t.Run("unknown default rejected", func(t *testing.T) {
		if _, err := ParseOverlay(base, []byte("default: nothing\n")); !errors.Is(err, ErrUnknownDefault) {
			t.Errorf("expected ErrUnknownDefault, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadOverlay(base, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
