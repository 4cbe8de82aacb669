package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

const actionColumns = `
			id
		  , name
		  , display_name
		  , description
		  , tags
		  , enabled
		  , action_type
		  , parameters
		  , config
		  , auth_credential
		  , created_at
		  , updated_at`

// ActionRepository handles action-related database operations.
type ActionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewActionRepository creates a new action repository.
func NewActionRepository(db *sql.DB, logger *slog.Logger) *ActionRepository {
	return &ActionRepository{db: db, logger: logger}
}

// List returns filtered, sorted and paginated actions.
func (r *ActionRepository) List(ctx context.Context, opts persistence.ListActionsOptions) (*persistence.ActionListResult, error) {
	query, countQuery, args, err := r.buildListQuery(opts)
	if err != nil {
		return nil, err
	}

	var total int64

	err = r.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	actions := make([]*models.Action, 0)

	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}

		actions = append(actions, action)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return &persistence.ActionListResult{
		Actions:     actions,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(actions)) < total,
	}, nil
}

// buildListQuery returns the page query, the count query and their shared
// arguments. The last two arguments are the page limit and offset.
func (r *ActionRepository) buildListQuery(opts persistence.ListActionsOptions) (string, string, []any, error) {
	err := opts.Normalize()
	if err != nil {
		return "", "", nil, err
	}

	var (
		conditions []string
		args       []any
	)

	arg := func(v any) string {
		args = append(args, v)

		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Enabled != nil {
		conditions = append(conditions, "enabled = "+arg(*opts.Enabled))
	}

	if opts.ActionType != "" {
		conditions = append(conditions, "action_type = "+arg(string(opts.ActionType)))
	}

	if opts.Tag != "" {
		conditions = append(conditions, "tags ? "+arg(opts.Tag))
	}

	if opts.Query != "" {
		p := arg("%" + opts.Query + "%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE %s OR display_name ILIKE %s OR description ILIKE %s)", p, p, p))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM actions" + where

	// SortBy and SortOrder are allowlisted by Normalize.
	query := fmt.Sprintf("SELECT %s FROM actions%s ORDER BY %s %s, id LIMIT %s OFFSET %s",
		actionColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder), arg(opts.Limit), arg(opts.Offset))

	return query, countQuery, args, nil
}

// GetByID retrieves an action by its ID.
func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	if uuid.Validate(id) != nil {
		return nil, persistence.NewActionError("GetByID", id, persistence.ErrActionNotFound)
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+actionColumns+" FROM actions WHERE id = $1", id)

	action, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewActionError("GetByID", id, persistence.ErrActionNotFound)
		}

		return nil, fmt.Errorf("failed to scan action: %w", err)
	}

	return action, nil
}

// GetByName retrieves an action by its unique name.
func (r *ActionRepository) GetByName(ctx context.Context, name string, enabledOnly bool) (*models.Action, error) {
	query := "SELECT " + actionColumns + " FROM actions WHERE name = $1"
	if enabledOnly {
		query += " AND enabled = true"
	}

	row := r.db.QueryRowContext(ctx, query+" LIMIT 1", name)

	action, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewActionError("GetByName", name, persistence.ErrActionNotFound)
		}

		return nil, fmt.Errorf("failed to scan action: %w", err)
	}

	return action, nil
}

// Save upserts an action by ID.
func (r *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	now := time.Now().UTC()

	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}

	action.UpdatedAt = now

	if action.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action ID: %w", err)
		}

		action.ID = id.String()
	}

	tags := action.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	parameters := action.Parameters
	if parameters == nil {
		parameters = []models.ParameterSpec{}
	}

	parametersJSON, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	// JSON is passed as text; lib/pq would send []byte as bytea.
	var configJSON sql.NullString

	if action.Config != nil {
		raw, err := json.Marshal(action.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		configJSON = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO actions (id, name, display_name, description, tags, enabled,
action_type, parameters, config, auth_credential, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			enabled = EXCLUDED.enabled,
			action_type = EXCLUDED.action_type,
			parameters = EXCLUDED.parameters,
			config = EXCLUDED.config,
			auth_credential = EXCLUDED.auth_credential,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		action.ID,
		action.Name,
		action.DisplayName,
		action.Description,
		string(tagsJSON),
		action.Enabled,
		string(action.Type),
		string(parametersJSON),
		configJSON,
		sql.NullString{String: action.Credential, Valid: action.Credential != ""},
		action.CreatedAt,
		action.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewActionError("Save", action.Name, persistence.ErrActionAlreadyExists)
		}

		return fmt.Errorf("failed to save action: %w", err)
	}

	return nil
}

// Delete removes an action.
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return persistence.NewActionError("Delete", id, persistence.ErrActionNotFound)
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM actions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewActionError("Delete", id, persistence.ErrActionNotFound)
	}

	return nil
}

func scanAction(row scanner) (*models.Action, error) {
	var (
		action         models.Action
		actionType     string
		tagsJSON       []byte
		parametersJSON []byte
		configJSON     []byte
		credential     sql.NullString
	)

	err := row.Scan(
		&action.ID,
		&action.Name,
		&action.DisplayName,
		&action.Description,
		&tagsJSON,
		&action.Enabled,
		&actionType,
		&parametersJSON,
		&configJSON,
		&credential,
		&action.CreatedAt,
		&action.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	action.Type = models.ActionType(actionType)
	action.Credential = credential.String

	err = json.Unmarshal(tagsJSON, &action.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	err = json.Unmarshal(parametersJSON, &action.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	action.Config, err = decodeConfig(action.Type, configJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &action, nil
}

// decodeConfig reads the payload for the row's action_type. Unknown types and
// empty payloads decode to nil.
func decodeConfig(actionType models.ActionType, raw []byte) (models.ActionConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var config models.ActionConfig

	switch actionType {
	case models.ActionTypeAPI:
		config = &models.APIConfig{}
	case models.ActionTypeBash:
		config = &models.BashConfig{}
	case models.ActionTypeComposite:
		config = &models.CompositeConfig{}
	default:
		return nil, nil
	}

	err := json.Unmarshal(raw, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
