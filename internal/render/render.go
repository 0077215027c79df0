package render

import (
	"strings"

	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/templates"
)

type FieldState string

const (
	StateNotProcessed FieldState = "not_processed"
	StateNotFound     FieldState = "not_found"
	StateFilled       FieldState = "filled"
)

const (
	PlaceholderNotProcessed = "Not processed"
	PlaceholderNotFound     = "Not found"
)

// FieldView is one rendered field, keyed by the template's field key.
type FieldView struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon"`
	FullWidth bool       `json:"full_width"`
	Value     string     `json:"value"`
	State     FieldState `json:"state"`
	Filled    bool       `json:"filled"`
}

// DocInfo is the document-metadata summary shown next to the fields.
type DocInfo struct {
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	PageCount int    `json:"page_count"`
	Template  string `json:"template"`
}

// Fields renders the schema in order against result. A nil result marks
// every field as not processed; otherwise fields without a value are not
// found. The output depends only on the inputs.
func Fields(fields []templates.FieldDescriptor, result *extraction.Result) []FieldView {
	out := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		v := FieldView{
			Key:       f.Key,
			Label:     f.Label,
			Icon:      f.Icon,
			FullWidth: f.FullWidth,
		}

		switch value := result.Value(f.Key); {
		case result == nil:
			v.Value = PlaceholderNotProcessed
			v.State = StateNotProcessed
		case value == "":
			v.Value = PlaceholderNotFound
			v.State = StateNotFound
		default:
			v.Value = value
			v.State = StateFilled
			v.Filled = true
		}

		out = append(out, v)
	}
	return out
}

func Summary(result *extraction.Result) *DocInfo {
	if result == nil {
		return nil
	}
	pages := result.PageCount
	if pages <= 0 {
		pages = 1
	}
	return &DocInfo{
		Filename:  result.Filename,
		Language:  strings.ToUpper(result.Language),
		PageCount: pages,
		Template:  strings.ToUpper(result.Template),
	}
}
