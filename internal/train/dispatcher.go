package train

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
	"github.com/exponent-ml/exponent/internal/project"
	"github.com/exponent-ml/exponent/internal/repository"
	"github.com/exponent-ml/exponent/internal/storage"
)

// logExcerptLimit bounds how much captured output is kept in the job index.
const logExcerptLimit = 4000

// Dispatcher runs training either locally as a subprocess or by handing a
// job to the execution backend. Generated project files are read-only
// inputs in both modes. Both modes record into the same job index so one
// status model covers them.
type Dispatcher struct {
	store   *project.Store
	jobs    *repository.JobRepository
	objects storage.ObjectStorage
	backend Backend
	python  string
	log     *logger.Logger
}

// NewDispatcher creates a training dispatcher. objects and backend may be
// nil when only local training is used; SubmitCloud then fails with a
// configuration error.
func NewDispatcher(store *project.Store, jobs *repository.JobRepository, objects storage.ObjectStorage, backend Backend, python string, log *logger.Logger) *Dispatcher {
	if python == "" {
		python = "python3"
	}
	return &Dispatcher{
		store:   store,
		jobs:    jobs,
		objects: objects,
		backend: backend,
		python:  python,
		log:     log,
	}
}

// RunLocal executes the project's training script as a subprocess and
// blocks until it exits. A non-zero exit surfaces the captured stderr.
// Cancelling ctx kills the child; the project keeps its last recorded
// status since success is only written after a clean exit.
func (d *Dispatcher) RunLocal(ctx context.Context, projectID string) (*domain.TrainingJob, error) {
	p, err := d.store.Load(projectID)
	if err != nil {
		return nil, err
	}

	dir := d.store.Dir(p.ID)
	script := filepath.Join(dir, domain.FileTrain)
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s has no %s", domain.ErrProjectNotFound, p.ID, domain.FileTrain)
	}

	job := &domain.TrainingJob{
		ID:          uuid.New().String(),
		ProjectID:   p.ID,
		Backend:     domain.JobBackendLocal,
		Status:      domain.JobStatusRunning,
		SubmittedAt: time.Now().UTC(),
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record training job: %w", err)
	}

	d.log.WithFields(logger.Fields{
		logger.FieldProjectID: p.ID,
		logger.FieldJobID:     job.ID,
	}).Info("Starting local training run")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.python, domain.FileTrain)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// don't wait on output pipes held open by orphaned grandchildren
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		excerpt := excerpt(stderr.String(), stdout.String())
		// ctx may already be cancelled here; the failure still has to be
		// recorded, so the status write gets its own context.
		_ = d.jobs.UpdateStatus(context.WithoutCancel(ctx), job.ID, domain.JobStatusFailed, excerpt)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("training interrupted: %w", ctx.Err())
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &domain.TrainingError{ExitCode: exitCode, Output: excerpt}
	}

	if err := d.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusSucceeded, excerpt(stdout.String(), "")); err != nil {
		return nil, err
	}
	if err := d.store.UpdateStatus(p.ID, domain.ProjectStatusTrained); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldStatus:     string(domain.JobStatusSucceeded),
	}).Info(ctx, "Local training completed: project_id=%s", p.ID)

	job.Status = domain.JobStatusSucceeded
	return job, nil
}

// SubmitCloud uploads the dataset and training script to object storage,
// submits a job to the execution backend, and returns immediately with the
// backend-assigned id. Completion is observed only through CheckStatus.
func (d *Dispatcher) SubmitCloud(ctx context.Context, projectID, datasetPath string) (*domain.TrainingJob, error) {
	if d.objects == nil || d.backend == nil {
		return nil, fmt.Errorf("cloud training is not configured (set S3_BUCKET and MODAL_TOKEN_ID/MODAL_TOKEN_SECRET)")
	}

	p, err := d.store.Load(projectID)
	if err != nil {
		return nil, err
	}

	dir := d.store.Dir(p.ID)
	if datasetPath == "" {
		if p.DatasetFile == "" {
			return nil, fmt.Errorf("%w: project has no dataset and none was given", domain.ErrFileNotFound)
		}
		datasetPath = filepath.Join(dir, p.DatasetFile)
	}

	if err := d.objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	datasetKey := fmt.Sprintf("projects/%s/%s", p.ID, filepath.Base(datasetPath))
	if err := d.uploadFile(ctx, datasetKey, datasetPath, "text/csv"); err != nil {
		return nil, err
	}

	scriptKey := fmt.Sprintf("projects/%s/%s", p.ID, domain.FileTrain)
	if err := d.uploadFile(ctx, scriptKey, filepath.Join(dir, domain.FileTrain), "text/x-python"); err != nil {
		return nil, err
	}

	jobID, err := d.backend.SubmitJob(ctx, &SubmitRequest{
		ProjectID:  p.ID,
		Task:       p.Task,
		DatasetURL: d.objects.URL(datasetKey),
		ScriptURL:  d.objects.URL(scriptKey),
	})
	if err != nil {
		return nil, err
	}

	job := &domain.TrainingJob{
		ID:          jobID,
		ProjectID:   p.ID,
		Backend:     domain.JobBackendCloud,
		Status:      domain.JobStatusSubmitted,
		DatasetKey:  datasetKey,
		SubmittedAt: time.Now().UTC(),
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record training job: %w", err)
	}

	d.log.WithFields(logger.Fields{
		logger.FieldProjectID: p.ID,
		logger.FieldJobID:     jobID,
	}).Info("Cloud training job submitted")

	return job, nil
}

// CheckStatus performs one poll against the backend (or, for local runs,
// returns the recorded result), refreshes the cached row, and returns the
// job. The cached status may be stale between polls; repeated manual
// checks are the caller's responsibility.
func (d *Dispatcher) CheckStatus(ctx context.Context, jobID string) (*domain.TrainingJob, error) {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Local runs complete in-line; their recorded status is final.
	if job.Backend == domain.JobBackendLocal || job.Status.IsTerminal() {
		return job, nil
	}
	if d.backend == nil {
		return nil, fmt.Errorf("cloud training is not configured (set MODAL_TOKEN_ID/MODAL_TOKEN_SECRET)")
	}

	status, logs, err := d.backend.JobStatus(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := d.jobs.UpdateStatus(ctx, job.ID, status, excerpt(logs, "")); err != nil {
		return nil, err
	}

	if status == domain.JobStatusSucceeded {
		if err := d.store.UpdateStatus(job.ProjectID, domain.ProjectStatusTrained); err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
			return nil, err
		}
	}

	return d.jobs.GetByID(ctx, job.ID)
}

// ListJobs returns all locally recorded jobs with their cached statuses.
func (d *Dispatcher) ListJobs(ctx context.Context) ([]domain.TrainingJob, error) {
	return d.jobs.List(ctx)
}

// ListProjectJobs returns recorded jobs for one project, newest first.
func (d *Dispatcher) ListProjectJobs(ctx context.Context, projectID string) ([]domain.TrainingJob, error) {
	return d.jobs.ListByProject(ctx, projectID)
}

func (d *Dispatcher) uploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := d.objects.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return err
	}
	return nil
}

// excerpt prefers stderr, falls back to stdout, and trims to the index's
// excerpt limit keeping the tail where the failure usually is. The cut
// never lands mid-rune.
func excerpt(primary, fallback string) string {
	out := strings.TrimSpace(primary)
	if out == "" {
		out = strings.TrimSpace(fallback)
	}
	if len(out) > logExcerptLimit {
		cut := len(out) - logExcerptLimit
		for cut < len(out) && !utf8.RuneStart(out[cut]) {
			cut++
		}
		out = out[cut:]
	}
	return out
}
