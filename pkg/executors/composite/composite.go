// Package composite runs composite actions: an ordered list of steps, each a
// call back into the dispatcher, where later steps may reference the output
// of earlier ones through {{step_N_result}} placeholders.
package composite

import (
	"context"
	"fmt"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/template"
)

// ExecuteFunc runs one step through the full dispatch path.
type ExecuteFunc func(ctx context.Context, action string, params map[string]any) (*models.Result, error)

// Resolve substitutes the caller's parameters into every step param. Step
// result placeholders are not parameters and survive untouched.
func Resolve(action *models.Action, params map[string]any) (*models.ResolvedComposite, error) {
	cfg := action.CompositeConfig()
	if cfg == nil {
		return nil, fmt.Errorf("%w: composite action %s has no composite_config", models.ErrMissingConfig, action.Name)
	}

	steps := make([]models.CompositeStep, 0, len(cfg.Steps))
	for _, step := range cfg.Steps {
		resolved := template.ResolveMap(step.Params, params)
		if resolved == nil {
			resolved = map[string]string{}
		}

		steps = append(steps, models.CompositeStep{Action: step.Action, Params: resolved})
	}

	return &models.ResolvedComposite{
		Steps:       steps,
		StopOnError: cfg.ShouldStopOnError(),
	}, nil
}

// Execute runs the steps strictly in order. The result at index i always
// belongs to step i. A step that returns an error is recorded as a failed
// step rather than aborting the composite.
func Execute(ctx context.Context, resolved *models.ResolvedComposite, execute ExecuteFunc) *models.Result {
	results := make([]*models.Result, 0, len(resolved.Steps))

	for i, step := range resolved.Steps {
		params := interpolate(step.Params, results)

		result, err := execute(ctx, step.Action, params)
		if err != nil {
			results = append(results, &models.Result{Success: false, Error: err.Error()})

			if resolved.StopOnError {
				return failed(fmt.Sprintf("Step %d (%s) threw: %v", i, step.Action, err), results)
			}

			continue
		}

		if result == nil {
			result = &models.Result{Success: false, Error: "step returned no result"}
		}

		results = append(results, result)

		if !result.Success && resolved.StopOnError {
			return failed(fmt.Sprintf("Step %d (%s) failed", i, step.Action), results)
		}
	}

	return &models.Result{
		ActionType: models.ActionTypeComposite,
		Success:    true,
		Data:       &models.CompositeOutput{Steps: results},
	}
}

func interpolate(params map[string]string, results []*models.Result) map[string]any {
	lookup := func(index int) (string, bool) {
		if index < 0 || index >= len(results) || !results[index].Success {
			return "", false
		}

		return results[index].DataString(), true
	}

	interpolated := make(map[string]any, len(params))
	for k, v := range params {
		interpolated[k] = template.InterpolateSteps(v, lookup)
	}

	return interpolated
}

func failed(message string, results []*models.Result) *models.Result {
	return &models.Result{
		ActionType: models.ActionTypeComposite,
		Success:    false,
		Error:      message,
		Data:       &models.CompositeOutput{Steps: results},
	}
}
