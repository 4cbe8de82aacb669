package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

// ActionLogRepository handles audit log database operations.
type ActionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewActionLogRepository creates a new audit log repository.
func NewActionLogRepository(db *sql.DB, logger *slog.Logger) *ActionLogRepository {
	return &ActionLogRepository{db: db, logger: logger}
}

func jsonText(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}

	return sql.NullString{String: string(raw), Valid: true}, nil
}

// Append inserts one audit entry.
func (r *ActionLogRepository) Append(ctx context.Context, entry *models.ActionLog) error {
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

	params, err := jsonText(entry.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	var response, resolved sql.NullString

	if entry.Response != nil {
		response, err = jsonText(entry.Response)
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
	}

	if entry.ResolvedRequest != nil {
		resolved, err = jsonText(entry.ResolvedRequest)
		if err != nil {
			return fmt.Errorf("failed to marshal resolved request: %w", err)
		}
	}

	var status sql.NullInt64
	if entry.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*entry.StatusCode), Valid: true}
	}

	query := `
		INSERT INTO action_logs (id, action_name, action_type, params, response, success,
error_message, duration_ms, status_code, source, resolved_request, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActionName,
		string(entry.ActionType),
		params,
		response,
		entry.Success,
		entry.ErrorMessage,
		entry.DurationMS,
		status,
		string(entry.Source),
		resolved,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action log: %w", err)
	}

	return nil
}

// List returns audit entries newest first.
func (r *ActionLogRepository) List(ctx context.Context, opts persistence.ListActionLogsOptions) (*persistence.ActionLogListResult, error) {
	opts.Normalize()

	var (
		conditions []string
		args       []any
	)

	arg := func(v any) string {
		args = append(args, v)

		return fmt.Sprintf("$%d", len(args))
	}

	if opts.ActionName != "" {
		conditions = append(conditions, "action_name = "+arg(opts.ActionName))
	}

	if opts.Success != nil {
		conditions = append(conditions, "success = "+arg(*opts.Success))
	}

	if opts.Source != "" {
		conditions = append(conditions, "source = "+arg(string(opts.Source)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_logs"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count action logs: %w", err)
	}

	query := `
		SELECT
			id
		  , action_name
		  , action_type
		  , params
		  , response
		  , success
		  , error_message
		  , duration_ms
		  , status_code
		  , source
		  , resolved_request
		  , created_at
		FROM action_logs` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.ActionLog, 0)

	for rows.Next() {
		entry, err := scanActionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action log: %w", err)
		}

		logs = append(logs, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating action logs: %w", err)
	}

	return &persistence.ActionLogListResult{
		Logs:        logs,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(logs)) < total,
	}, nil
}

// DeleteBefore removes entries created before the cutoff.
func (r *ActionLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM action_logs WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete action logs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

func scanActionLog(row scanner) (*models.ActionLog, error) {
	var (
		entry                             models.ActionLog
		actionType, source                string
		params, response, resolvedRequest []byte
		status                            sql.NullInt64
	)

	err := row.Scan(
		&entry.ID,
		&entry.ActionName,
		&actionType,
		&params,
		&response,
		&entry.Success,
		&entry.ErrorMessage,
		&entry.DurationMS,
		&status,
		&source,
		&resolvedRequest,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.ActionType = models.ActionType(actionType)
	entry.Source = models.Source(source)

	if status.Valid {
		code := int(status.Int64)
		entry.StatusCode = &code
	}

	for _, field := range []struct {
		raw    []byte
		target any
	}{
		{params, &entry.Params},
		{response, &entry.Response},
		{resolvedRequest, &entry.ResolvedRequest},
	} {
		if len(field.raw) == 0 {
			continue
		}

		err = json.Unmarshal(field.raw, field.target)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal action log field: %w", err)
		}
	}

	return &entry, nil
}
