package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

// ActionLogRepository appends audit entries as individual files. IDs are
// time-ordered UUIDs, so no locking is needed between writers.
type ActionLogRepository struct {
	dir dir
}

// NewActionLogRepository creates a new audit log repository.
func NewActionLogRepository(root string) *ActionLogRepository {
	return &ActionLogRepository{dir: newDir(root, "action_logs")}
}

// Append stores a new audit entry.
func (r *ActionLogRepository) Append(_ context.Context, entry *models.ActionLog) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action log ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return r.dir.write(entry.ID, entry)
}

func (r *ActionLogRepository) all() ([]*models.ActionLog, error) {
	ids, err := r.dir.ids()
	if err != nil {
		return nil, err
	}

	entries := make([]*models.ActionLog, 0, len(ids))

	for _, id := range ids {
		body, err := r.dir.read(id)
		if err != nil {
			return nil, err
		}

		if body == nil {
			continue
		}

		var entry models.ActionLog

		err = json.Unmarshal(body, &entry)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal action log %s: %w", id, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

// List returns audit entries newest first.
func (r *ActionLogRepository) List(_ context.Context, opts persistence.ListActionLogsOptions) (*persistence.ActionLogListResult, error) {
	opts.Normalize()

	all, err := r.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.ActionLog, 0, len(all))

	for _, entry := range all {
		if opts.ActionName != "" && entry.ActionName != opts.ActionName {
			continue
		}

		if opts.Success != nil && entry.Success != *opts.Success {
			continue
		}

		if opts.Source != "" && entry.Source != opts.Source {
			continue
		}

		filtered = append(filtered, entry)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID > filtered[j].ID
		}

		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	if opts.Offset >= total {
		return &persistence.ActionLogListResult{Logs: []*models.ActionLog{}, TotalCount: int64(total)}, nil
	}

	end := min(opts.Offset+opts.Limit, total)

	return &persistence.ActionLogListResult{
		Logs:        filtered[opts.Offset:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// DeleteBefore removes entries created before the cutoff.
func (r *ActionLogRepository) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	all, err := r.all()
	if err != nil {
		return 0, err
	}

	var deleted int64

	for _, entry := range all {
		if !entry.CreatedAt.Before(before) {
			continue
		}

		removed, err := r.dir.remove(entry.ID)
		if err != nil {
			return deleted, err
		}

		if removed {
			deleted++
		}
	}

	return deleted, nil
}
