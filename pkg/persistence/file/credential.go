package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/google/uuid"
)

// CredentialRepository handles credential-related file operations.
type CredentialRepository struct {
	dir dir
	mu  sync.RWMutex
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(root string) *CredentialRepository {
	return &CredentialRepository{dir: newDir(root, "credentials")}
}

func (r *CredentialRepository) load(id string) (*models.AuthCredential, error) {
	body, err := r.dir.read(id)
	if err != nil || body == nil {
		return nil, err
	}

	var credential models.AuthCredential

	err = json.Unmarshal(body, &credential)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential %s: %w", id, err)
	}

	return &credential, nil
}

func (r *CredentialRepository) all() ([]*models.AuthCredential, error) {
	ids, err := r.dir.ids()
	if err != nil {
		return nil, err
	}

	credentials := make([]*models.AuthCredential, 0, len(ids))

	for _, id := range ids {
		credential, err := r.load(id)
		if err != nil {
			return nil, err
		}

		if credential != nil {
			credentials = append(credentials, credential)
		}
	}

	sort.Slice(credentials, func(i, j int) bool { return credentials[i].Name < credentials[j].Name })

	return credentials, nil
}

// List returns every credential ordered by name.
func (r *CredentialRepository) List(_ context.Context) ([]*models.AuthCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.all()
}

// GetByID retrieves a credential by its ID.
func (r *CredentialRepository) GetByID(_ context.Context, id string) (*models.AuthCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	credential, err := r.load(id)
	if err != nil {
		return nil, persistence.NewCredentialError("GetByID", id, err)
	}

	if credential == nil {
		return nil, persistence.NewCredentialError("GetByID", id, persistence.ErrCredentialNotFound)
	}

	return credential, nil
}

// GetByName retrieves a credential by its unique name.
func (r *CredentialRepository) GetByName(_ context.Context, name string) (*models.AuthCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.all()
	if err != nil {
		return nil, persistence.NewCredentialError("GetByName", name, err)
	}

	for _, credential := range all {
		if credential.Name == name {
			return credential, nil
		}
	}

	return nil, persistence.NewCredentialError("GetByName", name, persistence.ErrCredentialNotFound)
}

// Save creates or replaces a credential, enforcing name uniqueness.
func (r *CredentialRepository) Save(_ context.Context, credential *models.AuthCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if credential.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate credential ID: %w", err)
		}

		credential.ID = id.String()
	}

	all, err := r.all()
	if err != nil {
		return persistence.NewCredentialError("Save", credential.Name, err)
	}

	for _, existing := range all {
		if existing.Name == credential.Name && existing.ID != credential.ID {
			return persistence.NewCredentialError("Save", credential.Name, persistence.ErrCredentialAlreadyExists)
		}
	}

	now := time.Now().UTC()
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	err = r.dir.write(credential.ID, credential)
	if err != nil {
		return persistence.NewCredentialError("Save", credential.Name, err)
	}

	return nil
}

// Delete removes a credential file.
func (r *CredentialRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.dir.remove(id)
	if err != nil {
		return persistence.NewCredentialError("Delete", id, err)
	}

	if !removed {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	return nil
}
