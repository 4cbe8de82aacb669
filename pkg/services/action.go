package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

type Action struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewAction creates a new action service.
func NewAction(persistence persistence.Persistence, validator *validator.Validate) *Action {
	return &Action{
		persistence: persistence,
		validator:   validator,
	}
}

// HealthCheck checks the health of the persistence layer.
func (a *Action) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListActionsRequest contains options for listing actions.
type ListActionsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Enabled    *bool
	ActionType models.ActionType
	Tag        string
	Query      string

	// Sorting
	SortBy    string
	SortOrder string
}

var allowedSorts = []string{"created_at", "updated_at", "name"}

// ListActions retrieves actions with filtering, sorting, and pagination.
func (a *Action) ListActions(ctx context.Context, req ListActionsRequest) (*persistence.ActionListResult, error) {
	err := validateListActionsRequest(&req)
	if err != nil {
		return nil, err
	}

	result, err := a.persistence.ActionRepository().List(ctx, persistence.ListActionsOptions{
		Enabled:    req.Enabled,
		ActionType: req.ActionType,
		Tag:        req.Tag,
		Query:      req.Query,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list actions: %w", err)
	}

	return result, nil
}

func validateListActionsRequest(req *ListActionsRequest) error {
	if req.SortBy != "" && !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListActionsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "" && req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListActionsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.ActionType != "" && !req.ActionType.Valid() {
		return NewValidationError(
			"validateListActionsRequest",
			"INVALID_ACTION_TYPE",
			fmt.Sprintf("invalid action_type '%s'", req.ActionType),
			ErrInvalidRequest,
		)
	}

	return nil
}

// FetchByID retrieves an action by its ID.
func (a *Action) FetchByID(ctx context.Context, id string) (*models.Action, error) {
	return a.persistence.ActionRepository().GetByID(ctx, id)
}

// Create validates and stores a new action. The ID is always generated.
func (a *Action) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	action.ID = ""

	err := a.validate("Create", action)
	if err != nil {
		return nil, err
	}

	err = a.persistence.ActionRepository().Save(ctx, action)
	if err != nil {
		return nil, a.saveError("create", action, err)
	}

	return action, nil
}

// Update replaces an existing action by its ID.
func (a *Action) Update(ctx context.Context, id string, action *models.Action) (*models.Action, error) {
	existing, err := a.persistence.ActionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	action.ID = existing.ID
	action.CreatedAt = existing.CreatedAt

	err = a.validate("Update", action)
	if err != nil {
		return nil, err
	}

	err = a.persistence.ActionRepository().Save(ctx, action)
	if err != nil {
		return nil, a.saveError("update", action, err)
	}

	return action, nil
}

// Delete removes an action by its ID.
func (a *Action) Delete(ctx context.Context, id string) error {
	err := a.persistence.ActionRepository().Delete(ctx, id)
	if err != nil {
		if persistence.IsActionNotFound(err) {
			return err
		}

		return fmt.Errorf("failed to delete action: %w", err)
	}

	return nil
}

func (a *Action) validate(op string, action *models.Action) error {
	err := a.validator.Struct(action)
	if err != nil {
		return NewValidationError(op, "INVALID_ACTION", err.Error(), ErrInvalidAction)
	}

	err = action.Validate()
	if err != nil {
		return NewValidationError(op, "INVALID_ACTION", err.Error(), ErrInvalidAction)
	}

	return nil
}

func (a *Action) saveError(op string, action *models.Action, err error) error {
	if persistence.IsAlreadyExists(err) {
		return NewConflictError(op, fmt.Sprintf("action %q already exists", action.Name), ErrNameTaken)
	}

	return fmt.Errorf("failed to %s action: %w", op, err)
}
