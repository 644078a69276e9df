// Package webhooktemplate implements the deliberately non-Turing-complete
// "{{.field}}" substitution syntax spec §4.4 step 2 uses to template
// outbound webhook headers and bodies against a payload. Unlike
// text/template, there is no control flow, no function calls, and no
// access to anything but the flattened payload map — a tenant-supplied
// template cannot be used to probe process state.
package webhooktemplate

import (
	"fmt"
	"strconv"
	"strings"
)

// Render replaces every "{{.field}}" (and dotted "{{.nested.field}}") token
// in tmpl with the corresponding value from fields, formatted as a string.
// Unknown fields are left as an empty string rather than erroring, matching
// the original's tolerant-template behavior for optional fields.
func Render(tmpl string, fields map[string]interface{}) string {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "{{.")
		if start < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		end += start
		b.WriteString(tmpl[i:start])
		path := strings.TrimSpace(tmpl[start+3 : end])
		b.WriteString(lookup(fields, path))
		i = end + 2
	}
	return b.String()
}

func lookup(fields map[string]interface{}, path string) string {
	parts := strings.Split(path, ".")
	var cur interface{} = fields
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		v, ok := m[p]
		if !ok {
			return ""
		}
		cur = v
	}
	return stringify(cur)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
