package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusSuccess is the status sentinel of a successful extraction payload.
const StatusSuccess = "success"

// MetadataKeys are keys that may appear in a field mapping but describe the
// document rather than an extracted field.
var MetadataKeys = map[string]struct{}{
	"filename":   {},
	"language":   {},
	"page_count": {},
	"template":   {},
	"status":     {},
}

// Result is one response of the extraction service.
type Result struct {
	Status    string            `json:"status"`
	Fields    map[string]string `json:"filled_form"`
	Filename  string            `json:"filename"`
	Language  string            `json:"language"`
	PageCount int               `json:"page_count"`
	Template  string            `json:"template"`
	Message   string            `json:"message,omitempty"`

	// Extra holds every other top-level key for diagnostics.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
	Raw   []byte                     `json:"-"`
}

// Succeeded reports a success status together with a field mapping. A
// success status without filled_form is not a success.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess && r.Fields != nil
}

// Value returns the trimmed value for key; absent keys yield "".
func (r *Result) Value(key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[key])
}

// FieldCounts reports how many non-metadata keys of the mapping carry a
// value, and how many non-metadata keys there are.
func (r *Result) FieldCounts() (found, total int) {
	if r == nil {
		return 0, 0
	}
	for key, value := range r.Fields {
		if _, meta := MetadataKeys[key]; meta {
			continue
		}
		total++
		if strings.TrimSpace(value) != "" {
			found++
		}
	}
	return found, total
}

// DecodeResult parses a response body. Field values may be strings,
// numbers, booleans or null; they are normalized to strings with null,
// false and zero mapped to "". Fields stays nil when filled_form is absent
// or null. A missing or non-positive page count becomes 1.
func DecodeResult(body []byte) (*Result, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	res := &Result{
		Extra: map[string]json.RawMessage{},
		Raw:   body,
	}

	for key, raw := range top {
		var err error
		switch key {
		case "status":
			res.Status, err = decodeString(raw)
		case "filename":
			res.Filename, err = decodeString(raw)
		case "language":
			res.Language, err = decodeString(raw)
		case "template":
			res.Template, err = decodeString(raw)
		case "message":
			res.Message, err = decodeString(raw)
		case "page_count":
			res.PageCount, err = decodeInt(raw)
		case "filled_form":
			res.Fields, err = decodeFields(raw)
		default:
			res.Extra[key] = raw
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}

	if res.PageCount <= 0 {
		res.PageCount = 1
	}
	return res, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return stringify(v), nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(n), nil
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func decodeFields(raw json.RawMessage) (map[string]string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return ""
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
