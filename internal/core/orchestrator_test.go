package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/config"
	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
	"github.com/exponent-ml/exponent/internal/project"
	"github.com/exponent-ml/exponent/internal/prompt"
	"github.com/exponent-ml/exponent/internal/repository"
	"github.com/exponent-ml/exponent/internal/train"
)

type fakeGenerator struct {
	calls int
	files domain.GeneratedFiles
	err   error
	last  *prompt.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req *prompt.Request) (domain.GeneratedFiles, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func generatedFixture() domain.GeneratedFiles {
	return domain.GeneratedFiles{
		domain.FileModel:        "class Model: pass\n",
		domain.FileTrain:        "print('train')\n",
		domain.FilePredict:      "print('predict')\n",
		domain.FileRequirements: "scikit-learn\n",
	}
}

func newTestOrchestrator(t *testing.T, gen Generator) *Orchestrator {
	t.Helper()

	root := t.TempDir()
	store, err := project.NewStore(project.DefaultDir(root))
	require.NoError(t, err)

	db, err := repository.InitDB(filepath.Join(root, "jobs.db"))
	require.NoError(t, err)
	jobs := repository.NewJobRepository(db)

	dispatcher := train.NewDispatcher(store, jobs, nil, nil, "sh", logger.GetDefault())

	return New(Options{
		Config:     &config.Config{Root: root},
		Store:      store,
		Jobs:       jobs,
		Dispatcher: dispatcher,
		Generator:  gen,
	})
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,plan,churned\n34,basic,0\n51,pro,1\n"), 0o644))
	return path
}

func TestGenerateProjectPersistsArtifacts(t *testing.T) {
	gen := &fakeGenerator{files: generatedFixture()}
	o := newTestOrchestrator(t, gen)

	proj, err := o.GenerateProject(context.Background(), "predict customer churn", writeCSV(t))
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.last.User, "predict customer churn")
	assert.Contains(t, gen.last.User, "churned")

	assert.Equal(t, domain.ProjectStatusCreated, proj.Status)
	require.NotNil(t, proj.Dataset)
	assert.Equal(t, 2, proj.Dataset.Rows)
	assert.Equal(t, "churned", proj.Dataset.TargetColumn)
	assert.ElementsMatch(t, []string{
		domain.FileModel, domain.FileTrain, domain.FilePredict, domain.FileRequirements,
	}, []string(proj.Files))

	// dataset copy lands next to the generated files
	_, err = os.Stat(filepath.Join(o.store.Dir(proj.ID), "churn.csv"))
	require.NoError(t, err)
}

func TestGenerateProjectWithoutDataset(t *testing.T) {
	gen := &fakeGenerator{files: generatedFixture()}
	o := newTestOrchestrator(t, gen)

	proj, err := o.GenerateProject(context.Background(), "classify iris species", "")
	require.NoError(t, err)
	assert.Nil(t, proj.Dataset)
	assert.Empty(t, proj.DatasetFile)
}

func TestGenerateProjectEmptyTaskSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{files: generatedFixture()}
	o := newTestOrchestrator(t, gen)

	_, err := o.GenerateProject(context.Background(), "   ", "")
	require.ErrorIs(t, err, domain.ErrEmptyTask)
	assert.Equal(t, 0, gen.calls)
}

func TestGenerateProjectBadDatasetSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{files: generatedFixture()}
	o := newTestOrchestrator(t, gen)

	_, err := o.GenerateProject(context.Background(), "predict churn", "/does/not/exist.csv")
	require.ErrorIs(t, err, domain.ErrFileNotFound)
	assert.Equal(t, 0, gen.calls)
}

func TestGenerateProjectGenerationFailureLeavesNothing(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("generation exploded")}
	o := newTestOrchestrator(t, gen)

	_, err := o.GenerateProject(context.Background(), "predict churn", "")
	require.Error(t, err)

	projects, err := o.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestTrainLocalThroughOrchestrator(t *testing.T) {
	gen := &fakeGenerator{files: domain.GeneratedFiles{
		domain.FileModel:        "class Model: pass\n",
		domain.FileTrain:        "echo training done\n",
		domain.FilePredict:      "print('predict')\n",
		domain.FileRequirements: "scikit-learn\n",
	}}
	o := newTestOrchestrator(t, gen)

	proj, err := o.GenerateProject(context.Background(), "predict churn", "")
	require.NoError(t, err)

	job, err := o.TrainLocal(context.Background(), proj.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)

	got, err := o.Project(proj.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusTrained, got.Status)

	jobs, err := o.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, proj.ID, jobs[0].ProjectID)
}

func TestJobStatusUnknownJob(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGenerator{})
	_, err := o.JobStatus(context.Background(), "no-such-job")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestDeployWithoutToken(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGenerator{files: generatedFixture()})

	proj, err := o.GenerateProject(context.Background(), "predict churn", "")
	require.NoError(t, err)

	_, err = o.Deploy(context.Background(), proj.ID, "")
	require.ErrorIs(t, err, domain.ErrAuthentication)
}
