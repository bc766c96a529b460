// Package template renders {{variable}} placeholders in flow configuration strings.
// It is a substitution language only: no expressions, functions or conditionals.
package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Lookup resolves a variable name to its rendered text.
type Lookup interface {
	String(name string) string
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(name string) string

func (f LookupFunc) String(name string) string {
	return f(name)
}

// NeedsTemplating reports whether input contains at least one placeholder.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{") && placeholderPattern.MatchString(input)
}

// Render replaces every {{name}} in input with the looked-up value. Unknown
// names render as the empty string.
func Render(input string, lookup Lookup) string {
	if !NeedsTemplating(input) {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)

		return lookup.String(groups[1])
	})
}

// RenderValue renders every string inside value, descending into maps and
// slices decoded from JSON. Other values are returned unchanged.
func RenderValue(value any, lookup Lookup) any {
	switch v := value.(type) {
	case string:
		return Render(v, lookup)
	case map[string]any:
		rendered := make(map[string]any, len(v))
		for key, item := range v {
			rendered[key] = RenderValue(item, lookup)
		}

		return rendered
	case []any:
		rendered := make([]any, len(v))
		for i, item := range v {
			rendered[i] = RenderValue(item, lookup)
		}

		return rendered
	default:
		return value
	}
}

// RenderMap renders every value of a string map, e.g. request headers.
func RenderMap(values map[string]string, lookup Lookup) map[string]string {
	if values == nil {
		return nil
	}

	rendered := make(map[string]string, len(values))
	for key, value := range values {
		rendered[key] = Render(value, lookup)
	}

	return rendered
}

// Variables returns the distinct placeholder names used in input, in order of appearance.
func Variables(input string) []string {
	var names []string

	seen := map[string]bool{}

	for _, groups := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		if seen[groups[1]] {
			continue
		}

		seen[groups[1]] = true
		names = append(names, groups[1])
	}

	return names
}
