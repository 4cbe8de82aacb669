package web

import (
	"context"

	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/models"
)

// Previewer resolves the request an invocation would make without making it.
type Previewer interface {
	Preview(ctx context.Context, req dispatcher.ExecuteRequest) (*models.ResolvedRequest, error)
}

// Pagination echoes the page that was served.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Sorting echoes the order that was applied.
type Sorting struct {
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// ActionListResponse is the body of GET /api/actions.
type ActionListResponse struct {
	Actions     []*models.Action `json:"actions"`
	TotalCount  int64            `json:"total_count"`
	HasNextPage bool             `json:"has_next_page"`
	Pagination  Pagination       `json:"pagination"`
	Sorting     Sorting          `json:"sorting"`
}

// ActionLogListResponse is the body of GET /api/action-logs.
type ActionLogListResponse struct {
	Logs        []*models.ActionLog `json:"logs"`
	TotalCount  int64               `json:"total_count"`
	HasNextPage bool                `json:"has_next_page"`
	Pagination  Pagination          `json:"pagination"`
}

// CredentialListResponse is the body of GET /api/credentials.
type CredentialListResponse struct {
	Credentials []*models.AuthCredential `json:"credentials"`
}
