package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

const credentialColumns = `
			id
		  , name
		  , display_name
		  , auth_type
		  , bearer_token
		  , custom_headers
		  , description
		  , created_at
		  , updated_at`

// CredentialRepository handles credential-related database operations.
type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sql.DB, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

// List returns every credential ordered by name.
func (r *CredentialRepository) List(ctx context.Context) ([]*models.AuthCredential, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+credentialColumns+" FROM auth_credentials ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	credentials := make([]*models.AuthCredential, 0)

	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

// GetByID retrieves a credential by its ID.
func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.AuthCredential, error) {
	if uuid.Validate(id) != nil {
		return nil, persistence.NewCredentialError("GetByID", id, persistence.ErrCredentialNotFound)
	}

	return r.getOne(ctx, "GetByID", id, "SELECT "+credentialColumns+" FROM auth_credentials WHERE id = $1")
}

// GetByName retrieves a credential by its unique name.
func (r *CredentialRepository) GetByName(ctx context.Context, name string) (*models.AuthCredential, error) {
	return r.getOne(ctx, "GetByName", name, "SELECT "+credentialColumns+" FROM auth_credentials WHERE name = $1")
}

func (r *CredentialRepository) getOne(ctx context.Context, op, key, query string) (*models.AuthCredential, error) {
	credential, err := scanCredential(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCredentialError(op, key, persistence.ErrCredentialNotFound)
		}

		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	return credential, nil
}

// Save upserts a credential by ID.
func (r *CredentialRepository) Save(ctx context.Context, credential *models.AuthCredential) error {
	now := time.Now().UTC()

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	if credential.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate credential ID: %w", err)
		}

		credential.ID = id.String()
	}

	var headersJSON sql.NullString

	if credential.CustomHeaders != nil {
		raw, err := json.Marshal(credential.CustomHeaders)
		if err != nil {
			return fmt.Errorf("failed to marshal custom headers: %w", err)
		}

		headersJSON = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO auth_credentials (id, name, display_name, auth_type, bearer_token,
custom_headers, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			auth_type = EXCLUDED.auth_type,
			bearer_token = EXCLUDED.bearer_token,
			custom_headers = EXCLUDED.custom_headers,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		credential.ID,
		credential.Name,
		credential.DisplayName,
		string(credential.AuthType),
		sql.NullString{String: credential.BearerToken, Valid: credential.BearerToken != ""},
		headersJSON,
		credential.Description,
		credential.CreatedAt,
		credential.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewCredentialError("Save", credential.Name, persistence.ErrCredentialAlreadyExists)
		}

		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes a credential.
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM auth_credentials WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	return nil
}

func scanCredential(row scanner) (*models.AuthCredential, error) {
	var (
		credential  models.AuthCredential
		authType    string
		bearer      sql.NullString
		headersJSON []byte
	)

	err := row.Scan(
		&credential.ID,
		&credential.Name,
		&credential.DisplayName,
		&authType,
		&bearer,
		&headersJSON,
		&credential.Description,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	credential.AuthType = models.AuthType(authType)
	credential.BearerToken = bearer.String

	if len(headersJSON) > 0 {
		err = json.Unmarshal(headersJSON, &credential.CustomHeaders)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom headers: %w", err)
		}
	}

	return &credential, nil
}
