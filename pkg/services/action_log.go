package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

// ActionLog exposes the audit log: read access for the dashboard and the
// write path used by remote hosts.
type ActionLog struct {
	persistence persistence.Persistence
}

// NewActionLog creates a new action log service.
func NewActionLog(persistence persistence.Persistence) *ActionLog {
	return &ActionLog{persistence: persistence}
}

// ListActionLogsRequest contains options for listing audit entries.
type ListActionLogsRequest struct {
	ActionName string
	Success    *bool
	Source     models.Source
	Limit      int
	Offset     int
}

// List returns audit entries newest first.
func (s *ActionLog) List(ctx context.Context, req ListActionLogsRequest) (*persistence.ActionLogListResult, error) {
	if req.Source != "" && models.NormalizeSource(string(req.Source)) != req.Source {
		return nil, NewValidationError("List", "INVALID_SOURCE", fmt.Sprintf("invalid source '%s'", req.Source), ErrInvalidRequest)
	}

	result, err := s.persistence.ActionLogRepository().List(ctx, persistence.ListActionLogsOptions{
		ActionName: req.ActionName,
		Success:    req.Success,
		Source:     req.Source,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list action logs: %w", err)
	}

	return result, nil
}

// Record appends an audit entry submitted by a remote host. The ID and
// timestamp are assigned by the store.
func (s *ActionLog) Record(ctx context.Context, entry *models.ActionLog) (*models.ActionLog, error) {
	if entry.ActionName == "" {
		return nil, NewValidationError("Record", "INVALID_ACTION_LOG", "action_name is required", ErrInvalidActionLog)
	}

	entry.ID = ""
	entry.CreatedAt = time.Time{}
	entry.Source = models.NormalizeSource(string(entry.Source))

	err := s.persistence.ActionLogRepository().Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to record action log: %w", err)
	}

	return entry, nil
}

// Prune deletes entries older than retention and returns how many were removed.
func (s *ActionLog) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, NewValidationError("Prune", "INVALID_RETENTION", "retention must be positive", ErrInvalidRequest)
	}

	deleted, err := s.persistence.ActionLogRepository().DeleteBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune action logs: %w", err)
	}

	return deleted, nil
}
