package mcpserver

import (
	"context"
	"fmt"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

// StoreLister lists enabled actions straight from a repository, for hosts
// that run next to the store.
type StoreLister struct {
	repo persistence.ActionRepository
}

func NewStoreLister(repo persistence.ActionRepository) *StoreLister {
	return &StoreLister{repo: repo}
}

func (l *StoreLister) ListActions(ctx context.Context) ([]*models.Action, error) {
	enabled := true

	var actions []*models.Action

	for offset := 0; ; {
		page, err := l.repo.List(ctx, persistence.ListActionsOptions{
			Enabled: &enabled,
			SortBy:  "name",
			Limit:   persistence.MaxLimit,
			Offset:  offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list actions: %w", err)
		}

		actions = append(actions, page.Actions...)

		if !page.HasNextPage || len(page.Actions) == 0 {
			return actions, nil
		}

		offset += len(page.Actions)
	}
}
