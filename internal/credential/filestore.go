// file: internal/credential/filestore.go

package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FileStore persists one JSON credential file per provider under a
// directory. Writes go to a temp file in the same directory followed by an
// atomic rename, so a crash mid-write leaves the previous credential intact.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed credential store rooted at dir.
// The directory is created lazily on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the stored credential for a provider.
// Returns ErrNotFound when the provider has never been registered.
func (s *FileStore) Load(_ context.Context, providerID string) (*Credential, error) {
	if providerID == "" {
		return nil, fmt.Errorf("provider id is empty")
	}

	data, err := os.ReadFile(s.path(providerID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("provider %q: %w", providerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read credential for %q: %w", providerID, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode credential for %q: %w", providerID, err)
	}

	return &cred, nil
}

// Save writes the credential, replacing any previous one atomically.
func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	if cred == nil || cred.ProviderID == "" {
		return fmt.Errorf("credential has no provider id")
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential for %q: %w", cred.ProviderID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credential for %q: %w", cred.ProviderID, err)
	}

	if err := os.Rename(tmpName, s.path(cred.ProviderID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential for %q: %w", cred.ProviderID, err)
	}

	return nil
}

func (s *FileStore) path(providerID string) string {
	return filepath.Join(s.dir, providerID+".json")
}

// writeAndClose writes data, restricts permissions, and syncs before close
// so the rename publishes fully flushed content.
func writeAndClose(f *os.File, data []byte) error {
	defer f.Close()

	if err := f.Chmod(0o600); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
