package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonbaum/composite/pkg/persistence"
)

// dir stores one JSON document per record under root/kind.
type dir struct {
	path string
}

func newDir(root, kind string) dir {
	return dir{path: filepath.Join(root, kind)}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%w: %q", persistence.ErrInvalidID, id)
	}

	return nil
}

func (d dir) file(id string) string {
	return filepath.Clean(filepath.Join(d.path, id+".json"))
}

// read returns the raw document, or nil when it does not exist.
func (d dir) read(id string) ([]byte, error) {
	err := validateID(id)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(d.file(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", d.file(id), err)
	}

	return body, nil
}

func (d dir) write(id string, value any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(d.path, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", d.path, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmp := d.file(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	err = os.Rename(tmp, d.file(id))
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", id, err)
	}

	return nil
}

// remove reports whether a document was deleted.
func (d dir) remove(id string) (bool, error) {
	err := validateID(id)
	if err != nil {
		return false, err
	}

	err = os.Remove(d.file(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return true, nil
}

// ids lists the stored record IDs.
func (d dir) ids() ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(d.path), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.path, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, f := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}
