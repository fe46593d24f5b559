package realtime

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Filter keeps messages whose payload has the given field values. Keys may address one
// level of nesting with a dot, e.g. "event.id".
type Filter map[string]string

// FilterFromQuery builds a filter from every query parameter.
func FilterFromQuery(values url.Values) Filter {
	f := make(Filter, len(values))
	for k, v := range values {
		if len(v) == 0 || k == "" {
			continue
		}
		f[k] = v[0]
	}
	return f
}

func (f Filter) Match(payload any) bool {
	if len(f) == 0 {
		return true
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}

	for k, want := range f {
		got, ok := lookup(fields, k)
		if !ok || scalarText(got) != want {
			return false
		}
	}
	return true
}

func lookup(fields map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := fields[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return v, true
	}
	inner, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok = inner[rest]
	return v, ok
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		raw, _ := json.Marshal(x)
		return string(raw)
	}
}
