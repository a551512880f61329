package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/exponent-ml/exponent/internal/domain"
)

// metadataFile is the per-project metadata record.
const metadataFile = "project.json"

// Store persists projects on the local filesystem, one directory per
// generated id under the root. Writes are staged into a temporary directory
// and renamed into place, so a project is either fully present or absent.
//
// Known limitation: there is no locking. Two simultaneous invocations
// against the same project id produce undefined interleaving; normal CLI
// use is single-writer-per-project.
type Store struct {
	root string
}

// DefaultDir returns the project directory under a tool root.
func DefaultDir(root string) string {
	return filepath.Join(root, "projects")
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory for a project id. The directory may not exist.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// Create persists a new project: the generated files, an optional copy of
// the dataset, and the metadata record. The id is generated here, never
// user-chosen, so duplicate ids cannot occur. Returns the assigned id.
func (s *Store) Create(p *domain.Project, files domain.GeneratedFiles, datasetPath string) (string, error) {
	id := uuid.New().String()

	staging, err := os.MkdirTemp(s.root, id+".tmp-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	now := time.Now().UTC()
	p.ID = id
	p.Status = domain.ProjectStatusCreated
	p.CreatedAt = now
	p.UpdatedAt = now

	p.Files = nil
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(staging, name), []byte(files[name]), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
		p.Files = append(p.Files, name)
	}

	if datasetPath != "" {
		p.DatasetFile = filepath.Base(datasetPath)
		if err := copyFile(datasetPath, filepath.Join(staging, p.DatasetFile)); err != nil {
			return "", fmt.Errorf("failed to copy dataset: %w", err)
		}
	}

	if err := writeMetadata(staging, p); err != nil {
		return "", err
	}

	if err := os.Rename(staging, s.Dir(id)); err != nil {
		return "", fmt.Errorf("failed to finalize project directory: %w", err)
	}
	return id, nil
}

// Load reads a project's metadata record. A directory without a readable
// metadata record is treated as absent: partially written projects are
// never surfaced as valid.
func (s *Store) Load(id string) (*domain.Project, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to read project metadata: %w", err)
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s (corrupt metadata)", domain.ErrProjectNotFound, id)
	}
	return &p, nil
}

// UpdateStatus records a new lifecycle status. The metadata record is
// rewritten atomically; generated files are never touched.
func (s *Store) UpdateStatus(id string, status domain.ProjectStatus) error {
	p, err := s.Load(id)
	if err != nil {
		return err
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return writeMetadata(s.Dir(id), p)
}

// SetRepoURL records the remote repository a project was deployed to.
func (s *Store) SetRepoURL(id, url string) error {
	p, err := s.Load(id)
	if err != nil {
		return err
	}
	p.RepoURL = url
	p.Status = domain.ProjectStatusDeployed
	p.UpdatedAt = time.Now().UTC()
	return writeMetadata(s.Dir(id), p)
}

// List returns all readable projects, newest first. Directories without a
// valid metadata record (staging leftovers, partial writes) are skipped.
func (s *Store) List() ([]*domain.Project, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read project root: %w", err)
	}

	var projects []*domain.Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

// writeMetadata writes the metadata record via temp file + rename and
// fsyncs before the rename so a crash never leaves a truncated record.
func writeMetadata(dir string, p *domain.Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, metadataFile+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create metadata temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, metadataFile)); err != nil {
		return fmt.Errorf("failed to replace metadata: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
