package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		params map[string]any
		mode   Mode
		want   string
	}{
		{
			name:   "unresolved placeholders pass through",
			tmpl:   "{{x}}/{{y}}",
			params: map[string]any{"x": "a"},
			want:   "a/{{y}}",
		},
		{
			name:   "url encoded",
			tmpl:   "https://wttr.in/{{city}}?format=j1",
			params: map[string]any{"city": "São Paulo & co"},
			mode:   ModeURLEncoded,
			want:   "https://wttr.in/S%C3%A3o%20Paulo%20%26%20co?format=j1",
		},
		{
			name:   "raw keeps special characters",
			tmpl:   `{"q": "{{q}}"}`,
			params: map[string]any{"q": "a b&c"},
			want:   `{"q": "a b&c"}`,
		},
		{
			name:   "non string values are coerced",
			tmpl:   "{{n}} {{f}} {{b}} {{z}}",
			params: map[string]any{"n": 42, "f": 1.5, "b": true, "z": nil},
			want:   "42 1.5 true null",
		},
		{
			name:   "whole numbers decoded from json have no exponent",
			tmpl:   "{{n}}",
			params: map[string]any{"n": float64(1000000)},
			want:   "1000000",
		},
		{
			name:   "tokens with other characters are not placeholders",
			tmpl:   "{{ x }} {{x-y}} {{x}}",
			params: map[string]any{"x": "1"},
			want:   "{{ x }} {{x-y}} 1",
		},
		{
			name:   "repeated placeholders",
			tmpl:   "{{a}}{{a}}",
			params: map[string]any{"a": "z"},
			want:   "zz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.tmpl, tt.params, tt.mode)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Resolve(tt.tmpl, tt.params, tt.mode), "resolution is deterministic")
		})
	}
}

func TestResolveOptional(t *testing.T) {
	assert.Nil(t, ResolveOptional(nil, map[string]any{"a": "b"}, ModeRaw))

	tmpl := "{{a}}"
	got := ResolveOptional(&tmpl, map[string]any{"a": "b"}, ModeRaw)

	if assert.NotNil(t, got) {
		assert.Equal(t, "b", *got)
	}
}

func TestResolveMap(t *testing.T) {
	got := ResolveMap(map[string]string{"X-City": "{{city}}"}, map[string]any{"city": "Tokyo"})
	assert.Equal(t, map[string]string{"X-City": "Tokyo"}, got)
	assert.Nil(t, ResolveMap(nil, nil))
}

func TestInterpolateSteps(t *testing.T) {
	outputs := map[int]string{0: "ok"}
	lookup := func(i int) (string, bool) {
		v, ok := outputs[i]

		return v, ok
	}

	assert.Equal(t, "got ok", InterpolateSteps("got {{step_0_result}}", lookup))
	assert.Equal(t, "{{step_1_result}}", InterpolateSteps("{{step_1_result}}", lookup))
	assert.Equal(t, "{{city}}", InterpolateSteps("{{city}}", lookup))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Placeholders("{{a}}/{{b}}/{{a}}"))
	assert.Empty(t, Placeholders("none"))
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "a%20b", EncodeComponent("a b"))
	assert.Equal(t, "it's(1)*!", EncodeComponent("it's(1)*!"))
	assert.Equal(t, "%2F%3F%3D", EncodeComponent("/?="))
}
