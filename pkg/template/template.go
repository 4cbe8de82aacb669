// Package template substitutes {{name}} placeholders in action templates.
package template

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Mode selects how substituted values are encoded.
type Mode int

const (
	// ModeRaw inserts values as-is.
	ModeRaw Mode = iota
	// ModeURLEncoded percent-encodes values for use inside a URL.
	ModeURLEncoded
)

var (
	placeholder     = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)
	stepPlaceholder = regexp.MustCompile(`\{\{step_(\d+)_result\}\}`)
)

// Resolve replaces every {{name}} with the matching parameter. Placeholders
// with no matching parameter are left untouched.
func Resolve(tmpl string, params map[string]any, mode Mode) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := placeholder.FindStringSubmatch(token)[1]

		value, ok := params[name]
		if !ok {
			return token
		}

		s := Stringify(value)
		if mode == ModeURLEncoded {
			return EncodeComponent(s)
		}

		return s
	})
}

// ResolveOptional is Resolve for nullable templates: nil stays nil.
func ResolveOptional(tmpl *string, params map[string]any, mode Mode) *string {
	if tmpl == nil {
		return nil
	}

	resolved := Resolve(*tmpl, params, mode)

	return &resolved
}

// ResolveMap resolves every value of a string map in raw mode.
func ResolveMap(values map[string]string, params map[string]any) map[string]string {
	if values == nil {
		return nil
	}

	resolved := make(map[string]string, len(values))
	for k, v := range values {
		resolved[k] = Resolve(v, params, ModeRaw)
	}

	return resolved
}

// InterpolateSteps replaces {{step_N_result}} with the rendered output of step
// N. The lookup returns false for steps that have no usable output; those
// placeholders are left untouched.
func InterpolateSteps(tmpl string, lookup func(index int) (string, bool)) string {
	return stepPlaceholder.ReplaceAllStringFunc(tmpl, func(token string) string {
		index, err := strconv.Atoi(stepPlaceholder.FindStringSubmatch(token)[1])
		if err != nil {
			return token
		}

		value, ok := lookup(index)
		if !ok {
			return token
		}

		return value
	})
}

// Placeholders lists the distinct placeholder names in tmpl in order of appearance.
func Placeholders(tmpl string) []string {
	seen := map[string]bool{}
	names := []string{}

	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	return names
}

// EncodeComponent percent-encodes s the way browsers encode a URI component.
func EncodeComponent(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")

	for _, r := range []string{"!", "'", "(", ")", "*"} {
		encoded = strings.ReplaceAll(encoded, url.QueryEscape(r), r)
	}

	return encoded
}

// Stringify renders a parameter value for substitution.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return fmt.Sprint(v)
	case fmt.Stringer:
		return v.String()
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(body)
	}
}
