// Package params applies an action's declared parameters to caller input.
package params

import (
	"errors"
	"maps"
	"strings"

	"github.com/gonbaum/composite/pkg/models"
)

// ErrMissingParameters is matched by every MissingParametersError.
var ErrMissingParameters = errors.New("missing required parameters")

// MissingParametersError lists required parameters that were neither
// supplied nor defaulted, in declaration order.
type MissingParametersError struct {
	Names []string
}

func (e *MissingParametersError) Error() string {
	return "Missing required parameters: " + strings.Join(e.Names, ", ")
}

func (e *MissingParametersError) Is(target error) bool {
	return target == ErrMissingParameters
}

// Validate returns a copy of supplied with defaults filled in. Parameters that
// are not declared pass through unchanged.
func Validate(specs []models.ParameterSpec, supplied map[string]any) (map[string]any, error) {
	resolved := WithDefaults(specs, supplied)

	var missing []string

	for _, spec := range specs {
		if _, ok := resolved[spec.Name]; !ok && spec.Required {
			missing = append(missing, spec.Name)
		}
	}

	if len(missing) > 0 {
		return nil, &MissingParametersError{Names: missing}
	}

	return resolved, nil
}

// WithDefaults copies supplied and fills in declared defaults, without
// checking required parameters.
func WithDefaults(specs []models.ParameterSpec, supplied map[string]any) map[string]any {
	resolved := make(map[string]any, len(supplied)+len(specs))
	maps.Copy(resolved, supplied)

	for _, spec := range specs {
		if _, ok := resolved[spec.Name]; ok || spec.DefaultValue == nil {
			continue
		}

		resolved[spec.Name] = *spec.DefaultValue
	}

	return resolved
}

// IsMissingParameters reports whether err is a MissingParametersError.
func IsMissingParameters(err error) bool {
	return errors.Is(err, ErrMissingParameters)
}
