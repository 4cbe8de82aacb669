package params

import (
	"errors"
	"testing"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	specs := []models.ParameterSpec{
		{Name: "city", Required: true},
		{Name: "unit", Required: false, DefaultValue: ptr("C")},
	}

	t.Run("missing required", func(t *testing.T) {
		_, err := Validate(specs, map[string]any{})

		var missing *MissingParametersError

		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{"city"}, missing.Names)
		assert.True(t, IsMissingParameters(err))
		assert.Equal(t, "Missing required parameters: city", err.Error())
	})

	t.Run("fills defaults", func(t *testing.T) {
		got, err := Validate(specs, map[string]any{"city": "Paris"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"city": "Paris", "unit": "C"}, got)
	})

	t.Run("supplied value wins over default", func(t *testing.T) {
		got, err := Validate(specs, map[string]any{"city": "Paris", "unit": "F"})
		require.NoError(t, err)
		assert.Equal(t, "F", got["unit"])
	})

	t.Run("extra parameters pass through", func(t *testing.T) {
		got, err := Validate(specs, map[string]any{"city": "Paris", "lang": "fr"})
		require.NoError(t, err)
		assert.Equal(t, "fr", got["lang"])
	})

	t.Run("explicit null counts as present", func(t *testing.T) {
		got, err := Validate(specs, map[string]any{"city": nil})
		require.NoError(t, err)
		assert.Contains(t, got, "city")
	})

	t.Run("optional without default stays absent", func(t *testing.T) {
		got, err := Validate([]models.ParameterSpec{{Name: "q"}}, map[string]any{})
		require.NoError(t, err)
		assert.NotContains(t, got, "q")
	})

	t.Run("does not mutate input", func(t *testing.T) {
		supplied := map[string]any{"city": "Paris"}
		_, err := Validate(specs, supplied)
		require.NoError(t, err)
		assert.Len(t, supplied, 1)
	})

	t.Run("reports every missing name in order", func(t *testing.T) {
		_, err := Validate([]models.ParameterSpec{{Name: "a", Required: true}, {Name: "b", Required: true}}, nil)
		assert.EqualError(t, err, "Missing required parameters: a, b")
	})
}

func TestWithDefaults(t *testing.T) {
	unit := "C"
	specs := []models.ParameterSpec{
		{Name: "city", Required: true},
		{Name: "unit", DefaultValue: &unit},
	}

	got := WithDefaults(specs, nil)

	assert.Equal(t, map[string]any{"unit": "C"}, got)

	got = WithDefaults(specs, map[string]any{"unit": "F"})
	assert.Equal(t, "F", got["unit"])
}
