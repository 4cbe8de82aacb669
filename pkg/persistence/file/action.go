package file

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

// ActionRepository handles action-related file operations.
type ActionRepository struct {
	dir dir
	mu  sync.RWMutex
}

// NewActionRepository creates a new action repository.
func NewActionRepository(root string) *ActionRepository {
	return &ActionRepository{dir: newDir(root, "actions")}
}

func (r *ActionRepository) load(id string) (*models.Action, error) {
	body, err := r.dir.read(id)
	if err != nil || body == nil {
		return nil, err
	}

	action, err := models.DecodeAction(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode action %s: %w", id, err)
	}

	return action, nil
}

func (r *ActionRepository) all() ([]*models.Action, error) {
	ids, err := r.dir.ids()
	if err != nil {
		return nil, err
	}

	actions := make([]*models.Action, 0, len(ids))

	for _, id := range ids {
		action, err := r.load(id)
		if err != nil {
			return nil, err
		}

		if action != nil {
			actions = append(actions, action)
		}
	}

	return actions, nil
}

// List returns filtered, sorted and paginated actions with in-memory operations.
func (r *ActionRepository) List(_ context.Context, opts persistence.ListActionsOptions) (*persistence.ActionListResult, error) {
	err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	all, err := r.all()
	r.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Action, 0, len(all))

	for _, action := range all {
		if matches(action, opts) {
			filtered = append(filtered, action)
		}
	}

	sortActions(filtered, opts.SortBy, opts.SortOrder)

	total := len(filtered)
	if opts.Offset >= total {
		return &persistence.ActionListResult{Actions: []*models.Action{}, TotalCount: int64(total)}, nil
	}

	end := min(opts.Offset+opts.Limit, total)

	return &persistence.ActionListResult{
		Actions:     filtered[opts.Offset:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

func matches(action *models.Action, opts persistence.ListActionsOptions) bool {
	if opts.Enabled != nil && action.Enabled != *opts.Enabled {
		return false
	}

	if opts.ActionType != "" && action.Type != opts.ActionType {
		return false
	}

	if opts.Tag != "" && !action.HasTag(opts.Tag) {
		return false
	}

	if opts.Query != "" {
		q := strings.ToLower(opts.Query)

		return strings.Contains(strings.ToLower(action.Name), q) ||
			strings.Contains(strings.ToLower(action.DisplayName), q) ||
			strings.Contains(strings.ToLower(action.Description), q)
	}

	return true
}

// sortActions sorts actions in-place based on the specified field and order.
func sortActions(actions []*models.Action, sortBy, sortOrder string) {
	sort.SliceStable(actions, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "created_at":
			less = actions[i].CreatedAt.Before(actions[j].CreatedAt)
		case "updated_at":
			less = actions[i].UpdatedAt.Before(actions[j].UpdatedAt)
		default:
			less = actions[i].Name < actions[j].Name
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

// GetByID retrieves an action by its ID from the file system.
func (r *ActionRepository) GetByID(_ context.Context, id string) (*models.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, err := r.load(id)
	if err != nil {
		return nil, persistence.NewActionError("GetByID", id, err)
	}

	if action == nil {
		return nil, persistence.NewActionError("GetByID", id, persistence.ErrActionNotFound)
	}

	return action, nil
}

// GetByName scans the stored actions for an exact name match.
func (r *ActionRepository) GetByName(_ context.Context, name string, enabledOnly bool) (*models.Action, error) {
	r.mu.RLock()
	all, err := r.all()
	r.mu.RUnlock()

	if err != nil {
		return nil, persistence.NewActionError("GetByName", name, err)
	}

	for _, action := range all {
		if action.Name == name && (!enabledOnly || action.Enabled) {
			return action, nil
		}
	}

	return nil, persistence.NewActionError("GetByName", name, persistence.ErrActionNotFound)
}

// Save creates or replaces an action, enforcing name uniqueness.
func (r *ActionRepository) Save(_ context.Context, action *models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if action.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action ID: %w", err)
		}

		action.ID = id.String()
	}

	all, err := r.all()
	if err != nil {
		return persistence.NewActionError("Save", action.Name, err)
	}

	for _, existing := range all {
		if existing.Name == action.Name && existing.ID != action.ID {
			return persistence.NewActionError("Save", action.Name, persistence.ErrActionAlreadyExists)
		}
	}

	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}

	action.UpdatedAt = now

	err = r.dir.write(action.ID, action)
	if err != nil {
		return persistence.NewActionError("Save", action.Name, err)
	}

	return nil
}

// Delete removes an action file.
func (r *ActionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.dir.remove(id)
	if err != nil {
		return persistence.NewActionError("Delete", id, err)
	}

	if !removed {
		return persistence.NewActionError("Delete", id, persistence.ErrActionNotFound)
	}

	return nil
}
