// Package file provides file-based persistence for actions, credentials and
// the audit log. Every record is one JSON file under a directory per kind.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/gonbaum/composite/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	actionRepo     *ActionRepository
	credentialRepo *CredentialRepository
	actionLogRepo  *ActionLogRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		actionRepo:     NewActionRepository(cleanRoot),
		credentialRepo: NewCredentialRepository(cleanRoot),
		actionLogRepo:  NewActionLogRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ActionRepository() persistence.ActionRepository {
	return fp.actionRepo
}

func (fp *Persistence) CredentialRepository() persistence.CredentialRepository {
	return fp.credentialRepo
}

func (fp *Persistence) ActionLogRepository() persistence.ActionLogRepository {
	return fp.actionLogRepo
}
