// Package seed loads action definitions from YAML into the store.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/services"
	"gopkg.in/yaml.v3"
)

//go:embed actions.yaml
var defaultActions []byte

// ErrEmptySeed is returned when a seed file declares no actions.
var ErrEmptySeed = errors.New("seed file declares no actions")

type document struct {
	Actions []map[string]any `yaml:"actions"`
}

// Defaults returns the built-in demo actions.
func Defaults() ([]*models.Action, error) {
	return Parse(defaultActions)
}

// Parse decodes a seed file. Each entry is checked against the action
// document schema before it is decoded.
func Parse(data []byte) ([]*models.Action, error) {
	var doc document

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if len(doc.Actions) == 0 {
		return nil, ErrEmptySeed
	}

	actions := make([]*models.Action, 0, len(doc.Actions))

	for i, entry := range doc.Actions {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}

		action, err := models.DecodeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}

		actions = append(actions, action)
	}

	return actions, nil
}

// Summary counts what a Seed run changed.
type Summary struct {
	Created int
	Updated int
	Deleted int
}

type Seeder struct {
	persistence persistence.Persistence
	actions     *services.Action
	logger      *slog.Logger
}

func NewSeeder(logger *slog.Logger, p persistence.Persistence, actions *services.Action) *Seeder {
	return &Seeder{
		persistence: p,
		actions:     actions,
		logger:      logger.With("module", "seed"),
	}
}

// Seed upserts actions by name. With clean set, every stored action and
// credential is deleted first.
func (s *Seeder) Seed(ctx context.Context, actions []*models.Action, clean bool) (*Summary, error) {
	summary := &Summary{}

	if clean {
		deleted, err := s.clean(ctx)
		if err != nil {
			return nil, err
		}

		summary.Deleted = deleted
	}

	for _, action := range actions {
		existing, err := s.persistence.ActionRepository().GetByName(ctx, action.Name, false)

		switch {
		case err == nil:
			_, err = s.actions.Update(ctx, existing.ID, action)
			if err != nil {
				return nil, fmt.Errorf("failed to update %s: %w", action.Name, err)
			}

			summary.Updated++
			s.logger.InfoContext(ctx, "Updated action", "action", action.Name, "id", action.ID)
		case persistence.IsActionNotFound(err):
			_, err = s.actions.Create(ctx, action)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", action.Name, err)
			}

			summary.Created++
			s.logger.InfoContext(ctx, "Created action", "action", action.Name, "id", action.ID)
		default:
			return nil, fmt.Errorf("failed to look up %s: %w", action.Name, err)
		}
	}

	return summary, nil
}

func (s *Seeder) clean(ctx context.Context) (int, error) {
	deleted := 0

	for {
		page, err := s.persistence.ActionRepository().List(ctx, persistence.ListActionsOptions{Limit: persistence.MaxLimit})
		if err != nil {
			return deleted, fmt.Errorf("failed to list actions: %w", err)
		}

		if len(page.Actions) == 0 {
			break
		}

		for _, action := range page.Actions {
			err = s.persistence.ActionRepository().Delete(ctx, action.ID)
			if err != nil {
				return deleted, fmt.Errorf("failed to delete action %s: %w", action.Name, err)
			}

			deleted++
			s.logger.InfoContext(ctx, "Deleted action", "action", action.Name)
		}
	}

	credentials, err := s.persistence.CredentialRepository().List(ctx)
	if err != nil {
		return deleted, fmt.Errorf("failed to list credentials: %w", err)
	}

	for _, credential := range credentials {
		err = s.persistence.CredentialRepository().Delete(ctx, credential.ID)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete credential %s: %w", credential.Name, err)
		}

		deleted++
		s.logger.InfoContext(ctx, "Deleted credential", "credential", credential.Name)
	}

	return deleted, nil
}
