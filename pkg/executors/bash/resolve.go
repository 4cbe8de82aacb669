// Package bash resolves bash actions into command lines and runs them on the
// trusted host without a shell.
package bash

import (
	"fmt"
	"slices"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/template"
)

// Resolve substitutes the command template. It never executes anything.
func Resolve(action *models.Action, params map[string]any) (*models.ResolvedBash, error) {
	cfg := action.BashConfig()
	if cfg == nil {
		return nil, fmt.Errorf("%w: bash action %s has no bash_config", models.ErrMissingConfig, action.Name)
	}

	allowed := slices.Clone(cfg.AllowedCommands)
	if allowed == nil {
		allowed = []string{}
	}

	return &models.ResolvedBash{
		Command:          template.Resolve(cfg.CommandTemplate, params, template.ModeRaw),
		TimeoutMS:        cfg.Timeout(),
		WorkingDirectory: cfg.WorkingDirectory,
		AllowedCommands:  allowed,
	}, nil
}
