package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

// Credential manages auth credentials. Every value it returns is masked.
type Credential struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewCredential creates a new credential service.
func NewCredential(persistence persistence.Persistence, validator *validator.Validate) *Credential {
	return &Credential{
		persistence: persistence,
		validator:   validator,
	}
}

// List returns every credential, masked.
func (s *Credential) List(ctx context.Context) ([]*models.AuthCredential, error) {
	credentials, err := s.persistence.CredentialRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	masked := make([]*models.AuthCredential, 0, len(credentials))
	for _, credential := range credentials {
		masked = append(masked, credential.Masked())
	}

	return masked, nil
}

// FetchByID retrieves a credential by its ID, masked.
func (s *Credential) FetchByID(ctx context.Context, id string) (*models.AuthCredential, error) {
	credential, err := s.persistence.CredentialRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return credential.Masked(), nil
}

// Create validates and stores a new credential.
func (s *Credential) Create(ctx context.Context, credential *models.AuthCredential) (*models.AuthCredential, error) {
	credential.ID = ""

	err := s.validate("Create", credential)
	if err != nil {
		return nil, err
	}

	err = s.persistence.CredentialRepository().Save(ctx, credential)
	if err != nil {
		return nil, saveCredentialError("create", credential, err)
	}

	return credential.Masked(), nil
}

// Update replaces a credential. Secret values submitted as the mask keep
// their stored value, so a masked document can be edited and sent back.
func (s *Credential) Update(ctx context.Context, id string, credential *models.AuthCredential) (*models.AuthCredential, error) {
	existing, err := s.persistence.CredentialRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	credential.ID = existing.ID
	credential.CreatedAt = existing.CreatedAt

	if credential.BearerToken == models.SecretMask {
		credential.BearerToken = existing.BearerToken
	}

	for name, value := range credential.CustomHeaders {
		if value != models.SecretMask {
			continue
		}

		stored, ok := existing.CustomHeaders[name]
		if !ok {
			return nil, NewValidationError("Update", "INVALID_CREDENTIAL",
				fmt.Sprintf("custom header %q has no stored value to keep", name), ErrInvalidCredential)
		}

		credential.CustomHeaders[name] = stored
	}

	err = s.validate("Update", credential)
	if err != nil {
		return nil, err
	}

	err = s.persistence.CredentialRepository().Save(ctx, credential)
	if err != nil {
		return nil, saveCredentialError("update", credential, err)
	}

	return credential.Masked(), nil
}

// Delete removes a credential by its ID.
func (s *Credential) Delete(ctx context.Context, id string) error {
	err := s.persistence.CredentialRepository().Delete(ctx, id)
	if err != nil {
		if persistence.IsCredentialNotFound(err) {
			return err
		}

		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}

func (s *Credential) validate(op string, credential *models.AuthCredential) error {
	err := s.validator.Struct(credential)
	if err != nil {
		return NewValidationError(op, "INVALID_CREDENTIAL", err.Error(), ErrInvalidCredential)
	}

	return nil
}

func saveCredentialError(op string, credential *models.AuthCredential, err error) error {
	if persistence.IsAlreadyExists(err) {
		return NewConflictError(op, fmt.Sprintf("credential %q already exists", credential.Name), ErrNameTaken)
	}

	return fmt.Errorf("failed to %s credential: %w", op, err)
}
