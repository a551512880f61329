package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func sampleFiles() domain.GeneratedFiles {
	return domain.GeneratedFiles{
		domain.FileModel:        "class Model: pass",
		domain.FileTrain:        "print('train')",
		domain.FilePredict:      "print('predict')",
		domain.FileRequirements: "pandas",
	}
}

func TestCreateAndLoad(t *testing.T) {
	s := newTestStore(t)

	dataset := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("a,b\n1,2\n"), 0644))

	id, err := s.Create(&domain.Project{Task: "predict churn"}, sampleFiles(), dataset)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "predict churn", p.Task)
	assert.Equal(t, domain.ProjectStatusCreated, p.Status)
	assert.Equal(t, "data.csv", p.DatasetFile)
	assert.Len(t, p.Files, 4)

	// generated files and the dataset copy land in the project dir
	for _, name := range append([]string{"data.csv"}, p.Files...) {
		_, err := os.Stat(filepath.Join(s.Dir(id), name))
		assert.NoError(t, err, name)
	}
}

func TestLoadUnknownID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("does-not-exist")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(&domain.Project{Task: "t"}, sampleFiles(), "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(id, domain.ProjectStatusTrained))
	p, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusTrained, p.Status)

	assert.ErrorIs(t, s.UpdateStatus("missing", domain.ProjectStatusTrained), domain.ErrProjectNotFound)
}

func TestListSkipsPartialWrites(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.Create(&domain.Project{Task: "one"}, sampleFiles(), "")
	require.NoError(t, err)
	id2, err := s.Create(&domain.Project{Task: "two"}, sampleFiles(), "")
	require.NoError(t, err)

	// Simulate a crash mid-write: a staging directory that never got renamed.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "deadbeef.tmp-123"), 0755))
	// And a directory with a corrupt metadata record.
	corrupt := filepath.Join(s.Root(), "corrupt-project")
	require.NoError(t, os.MkdirAll(corrupt, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, metadataFile), []byte("{not json"), 0644))

	projects, err := s.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)

	ids := []string{projects[0].ID, projects[1].ID}
	assert.Contains(t, ids, id1)
	assert.Contains(t, ids, id2)
}

func TestInterruptedWriteNeverLoadable(t *testing.T) {
	s := newTestStore(t)

	// A staging directory holds everything except the final rename; Load by
	// any name must fail and the generated files must not be visible under
	// a real project id.
	staging, err := os.MkdirTemp(s.Root(), "abc123.tmp-")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staging, domain.FileModel), []byte("x"), 0644))

	_, err = s.Load("abc123")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	_, err = s.Load(filepath.Base(staging))
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
