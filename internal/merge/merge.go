// Package merge substitutes {{ field }} placeholders with per-recipient values.
package merge

import (
	"regexp"
	"strings"
)

// placeholder matches {{ key }} spans. Braces are not allowed inside the key,
// so "{{ {{name}} }}" only matches the inner span.
var placeholder = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Render replaces every {{ key }} in tmpl with fields[key]. Keys are matched
// trimmed and case-insensitively; fields is expected to be lower-keyed.
// Unknown keys leave the original span untouched.
func Render(tmpl string, fields map[string]string) string {
	if tmpl == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(span string) string {
		key := strings.ToLower(strings.TrimSpace(span[2 : len(span)-2]))
		if v, ok := fields[key]; ok {
			return v
		}
		return span
	})
}

// Keys lists the distinct placeholder keys used in tmpl, normalized, in order
// of first appearance.
func Keys(tmpl string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		k := strings.ToLower(strings.TrimSpace(m[1]))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
