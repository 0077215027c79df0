package templates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the on-disk format of a templates file:
//
//	default: standard
//	templates:
//	  - id: voter
//	    name: Voter ID
//	    fields:
//	      - {key: full_name, label: Full Name, icon: "👤"}
type Overlay struct {
	Default   string               `yaml:"default,omitempty"`
	Templates []TemplateDescriptor `yaml:"templates"`
}

// LoadOverlay reads path and merges its templates over base. Templates with
// an existing id replace the base entry in place; new ids are appended.
func LoadOverlay(base *Registry, path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	return ParseOverlay(base, data)
}

func ParseOverlay(base *Registry, data []byte) (*Registry, error) {
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}

	merged := base.List()
	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.ID] = i
	}

	seen := make(map[string]struct{}, len(overlay.Templates))
	for _, d := range overlay.Templates {
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, d.ID)
		}
		seen[d.ID] = struct{}{}

		if i, ok := index[d.ID]; ok {
			merged[i] = d
			continue
		}
		index[d.ID] = len(merged)
		merged = append(merged, d)
	}

	defaultID := base.DefaultID()
	if overlay.Default != "" {
		defaultID = overlay.Default
	}

	return NewRegistry(defaultID, merged...)
}
