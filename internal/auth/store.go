package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/exponent-ml/exponent/internal/domain"
)

// CredentialStore persists OAuth credentials per provider.
type CredentialStore interface {
	Load() (map[domain.Provider]*domain.Credential, error)
	Save(creds map[domain.Provider]*domain.Credential) error
}

// FileStore keeps credentials in a JSON file under the tool's root
// directory. Writes go through a temp file and rename so a crash never
// leaves a truncated credentials file.
type FileStore struct {
	path string
}

// NewFileStore creates a credential store at <root>/credentials.json.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{path: filepath.Join(root, "credentials.json")}, nil
}

// Path returns the location of the credentials file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (map[domain.Provider]*domain.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[domain.Provider]*domain.Credential{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds := map[domain.Provider]*domain.Credential{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return creds, nil
}

func (s *FileStore) Save(creds map[domain.Provider]*domain.Credential) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to stage credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credential permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// MemoryStore is an in-process CredentialStore used in tests.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[domain.Provider]*domain.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[domain.Provider]*domain.Credential{}}
}

func (s *MemoryStore) Load() (map[domain.Provider]*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Provider]*domain.Credential, len(s.creds))
	for k, v := range s.creds {
		c := *v
		out[k] = &c
	}
	return out, nil
}

func (s *MemoryStore) Save(creds map[domain.Provider]*domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[domain.Provider]*domain.Credential, len(creds))
	for k, v := range creds {
		c := *v
		s.creds[k] = &c
	}
	return nil
}
