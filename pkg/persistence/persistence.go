// Package persistence provides the data storage abstraction for actions,
// credentials and the audit log.
package persistence

import (
	"context"
	"time"

	"github.com/gonbaum/composite/pkg/models"
)

const (
	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 20
	// MaxLimit caps any requested page size.
	MaxLimit = 100
	// DefaultLogLimit is the page size of the audit log listing.
	DefaultLogLimit = 50
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	ActionRepository() ActionRepository
	CredentialRepository() CredentialRepository
	ActionLogRepository() ActionLogRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ActionRepository stores action definitions. Names are unique.
type ActionRepository interface {
	List(ctx context.Context, opts ListActionsOptions) (*ActionListResult, error)
	GetByID(ctx context.Context, id string) (*models.Action, error)
	// GetByName returns ErrActionNotFound when no action matches, or when
	// enabledOnly is set and the match is disabled.
	GetByName(ctx context.Context, name string, enabledOnly bool) (*models.Action, error)
	Save(ctx context.Context, action *models.Action) error
	Delete(ctx context.Context, id string) error
}

// CredentialRepository stores auth credentials. Names are unique.
type CredentialRepository interface {
	List(ctx context.Context) ([]*models.AuthCredential, error)
	GetByID(ctx context.Context, id string) (*models.AuthCredential, error)
	GetByName(ctx context.Context, name string) (*models.AuthCredential, error)
	Save(ctx context.Context, credential *models.AuthCredential) error
	Delete(ctx context.Context, id string) error
}

// ActionLogRepository is the append-only audit log.
type ActionLogRepository interface {
	Append(ctx context.Context, entry *models.ActionLog) error
	List(ctx context.Context, opts ListActionLogsOptions) (*ActionLogListResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ListActionsOptions filters, sorts and paginates actions.
type ListActionsOptions struct {
	Enabled    *bool
	ActionType models.ActionType
	Tag        string
	// Query matches name, display name or description, case-insensitively.
	Query     string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// ActionListResult is one page of actions.
type ActionListResult struct {
	Actions     []*models.Action `json:"actions"`
	TotalCount  int64            `json:"total_count"`
	HasNextPage bool             `json:"has_next_page"`
}

// ListActionLogsOptions filters and paginates the audit log. Entries are
// always returned newest first.
type ListActionLogsOptions struct {
	ActionName string
	Success    *bool
	Source     models.Source
	Limit      int
	Offset     int
}

// ActionLogListResult is one page of audit entries.
type ActionLogListResult struct {
	Logs        []*models.ActionLog `json:"logs"`
	TotalCount  int64               `json:"total_count"`
	HasNextPage bool                `json:"has_next_page"`
}

var allowedActionSorts = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize applies defaults and validates sort parameters against an allowlist.
func (o *ListActionsOptions) Normalize() error {
	if o.Limit <= 0 || o.Limit > MaxLimit {
		o.Limit = DefaultLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "name"
	}

	if o.SortOrder == "" {
		o.SortOrder = "asc"
	}

	if !allowedActionSorts[o.SortBy] {
		return ErrInvalidSortField
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return ErrInvalidSortOrder
	}

	return nil
}

// Normalize applies the default page size.
func (o *ListActionLogsOptions) Normalize() {
	if o.Limit <= 0 || o.Limit > MaxLimit {
		o.Limit = DefaultLogLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}
