// Package core implements the orchestration flow shared by the CLI commands
// and the local API server: dataset analysis, project generation, training,
// and deployment are wired here once and consumed by both front ends.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/exponent-ml/exponent/internal/auth"
	"github.com/exponent-ml/exponent/internal/codegen"
	"github.com/exponent-ml/exponent/internal/config"
	"github.com/exponent-ml/exponent/internal/dataset"
	"github.com/exponent-ml/exponent/internal/deploy"
	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
	"github.com/exponent-ml/exponent/internal/project"
	"github.com/exponent-ml/exponent/internal/prompt"
	"github.com/exponent-ml/exponent/internal/repository"
	"github.com/exponent-ml/exponent/internal/storage"
	"github.com/exponent-ml/exponent/internal/train"
)

// Generator produces project artifacts from a prompt. Satisfied by
// *codegen.Client.
type Generator interface {
	Generate(ctx context.Context, req *prompt.Request) (domain.GeneratedFiles, error)
}

// Orchestrator ties the pipeline stages together.
type Orchestrator struct {
	cfg        *config.Config
	store      *project.Store
	jobs       *repository.JobRepository
	dispatcher *train.Dispatcher
	generator  Generator
	auth       *auth.Manager
}

// Options carries the assembled components for an Orchestrator. Tests swap
// in fakes; production wiring comes from Build.
type Options struct {
	Config     *config.Config
	Store      *project.Store
	Jobs       *repository.JobRepository
	Dispatcher *train.Dispatcher
	Generator  Generator
	Auth       *auth.Manager
}

// New creates an Orchestrator from pre-built components.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:        opts.Config,
		store:      opts.Store,
		jobs:       opts.Jobs,
		dispatcher: opts.Dispatcher,
		generator:  opts.Generator,
		auth:       opts.Auth,
	}
}

// Build assembles a production Orchestrator from configuration: project
// store and job index under cfg.Root, the code generation client, object
// storage and the execution backend when cloud training is configured.
func Build(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	store, err := project.NewStore(project.DefaultDir(cfg.Root))
	if err != nil {
		return nil, err
	}

	db, err := repository.InitDB(cfg.Train.DBPath)
	if err != nil {
		return nil, err
	}
	jobs := repository.NewJobRepository(db)

	var objects storage.ObjectStorage
	if cfg.Storage.Bucket != "" && cfg.Storage.AccessKey != "" {
		s3, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		objects = s3
	}

	var backend train.Backend
	if cfg.Modal.TokenID != "" && cfg.Modal.TokenSecret != "" {
		backend = train.NewModalClient(&train.ModalConfig{
			BaseURL:     cfg.Modal.BaseURL,
			TokenID:     cfg.Modal.TokenID,
			TokenSecret: cfg.Modal.TokenSecret,
			Timeout:     cfg.Modal.Timeout,
		})
	}

	dispatcher := train.NewDispatcher(store, jobs, objects, backend, cfg.Train.Python, logger.GetDefault())

	generator := codegen.NewClient(&codegen.Config{
		APIKey:     cfg.CodeGen.APIKey,
		BaseURL:    cfg.CodeGen.BaseURL,
		Model:      cfg.CodeGen.Model,
		Timeout:    cfg.CodeGen.Timeout,
		MaxRetries: cfg.CodeGen.MaxRetries,
	})

	credStore, err := auth.NewFileStore(cfg.Root)
	if err != nil {
		return nil, err
	}
	authMgr := auth.NewManager(credStore, ProviderConfigs(cfg))
	if cfg.OAuth.CallbackPort > 0 {
		authMgr.CallbackPort = cfg.OAuth.CallbackPort
	}
	if cfg.OAuth.Timeout > 0 {
		authMgr.Timeout = cfg.OAuth.Timeout
	}

	return New(Options{
		Config:     cfg,
		Store:      store,
		Jobs:       jobs,
		Dispatcher: dispatcher,
		Generator:  generator,
		Auth:       authMgr,
	}), nil
}

// Auth exposes the session manager for the login/logout/status commands.
func (o *Orchestrator) Auth() *auth.Manager {
	return o.auth
}

// AnalyzeDataset loads and summarizes a dataset file.
func (o *Orchestrator) AnalyzeDataset(ctx context.Context, path string) (*domain.DatasetSummary, error) {
	summary, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldCount: summary.Rows,
	}).Info(ctx, "Analyzed dataset %s (%d columns)", summary.FileName, summary.ColumnCount())
	return summary, nil
}

// GenerateProject runs the full generation flow: analyze the dataset when
// one is given, build the prompt, call the generation endpoint, and persist
// the result as a new project. The dataset file is copied into the project
// directory so training is reproducible.
func (o *Orchestrator) GenerateProject(ctx context.Context, task, datasetPath string) (*domain.Project, error) {
	var summary *domain.DatasetSummary
	if datasetPath != "" {
		var err error
		summary, err = o.AnalyzeDataset(ctx, datasetPath)
		if err != nil {
			return nil, err
		}
	}

	req, err := prompt.Build(task, summary)
	if err != nil {
		return nil, err
	}

	files, err := o.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	proj := &domain.Project{Task: task, Dataset: summary}
	id, err := o.store.Create(proj, files, datasetPath)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldProjectID: id,
		logger.FieldCount:     len(files),
	}).Info(ctx, "Generated project")
	return o.store.Load(id)
}

// Project returns one stored project.
func (o *Orchestrator) Project(id string) (*domain.Project, error) {
	return o.store.Load(id)
}

// ProjectDir returns the on-disk directory holding a project's files.
func (o *Orchestrator) ProjectDir(id string) string {
	return o.store.Dir(id)
}

// Projects lists stored projects, newest first.
func (o *Orchestrator) Projects() ([]*domain.Project, error) {
	return o.store.List()
}

// TrainLocal runs the project's training script locally and blocks until it
// finishes.
func (o *Orchestrator) TrainLocal(ctx context.Context, projectID string) (*domain.TrainingJob, error) {
	return o.dispatcher.RunLocal(ctx, projectID)
}

// TrainCloud stages the project on object storage and submits it to the
// execution backend, returning the job immediately.
func (o *Orchestrator) TrainCloud(ctx context.Context, projectID, datasetPath string) (*domain.TrainingJob, error) {
	return o.dispatcher.SubmitCloud(ctx, projectID, datasetPath)
}

// JobStatus returns the job's current state, polling the backend once for
// non-terminal cloud jobs.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (*domain.TrainingJob, error) {
	return o.dispatcher.CheckStatus(ctx, jobID)
}

// Jobs lists recorded training jobs, newest first.
func (o *Orchestrator) Jobs(ctx context.Context) ([]domain.TrainingJob, error) {
	return o.dispatcher.ListJobs(ctx)
}

// JobsForProject lists recorded training jobs for one project, newest first.
func (o *Orchestrator) JobsForProject(ctx context.Context, projectID string) ([]domain.TrainingJob, error) {
	return o.dispatcher.ListProjectJobs(ctx, projectID)
}

// Deploy pushes the project to a new GitHub repository. The token comes
// from GITHUB_TOKEN when set, otherwise from the stored GitHub login.
func (o *Orchestrator) Deploy(ctx context.Context, projectID, name string) (*deploy.Result, error) {
	gh, err := o.githubClient(ctx)
	if err != nil {
		return nil, err
	}
	return deploy.NewDeployer(gh, o.store).Deploy(ctx, projectID, name)
}

// ListRepos lists the authenticated user's repositories.
func (o *Orchestrator) ListRepos(ctx context.Context) ([]deploy.Repo, error) {
	gh, err := o.githubClient(ctx)
	if err != nil {
		return nil, err
	}
	return gh.ListRepos(ctx)
}

func (o *Orchestrator) githubClient(ctx context.Context) (*deploy.GitHubClient, error) {
	token := o.cfg.GitHub.Token
	if token == "" && o.auth != nil {
		var err error
		token, err = o.auth.Token(ctx, domain.ProviderGitHub)
		if err != nil {
			return nil, fmt.Errorf("no GitHub token available (set GITHUB_TOKEN or run `exponent login --provider github`): %w", err)
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no GitHub token available", domain.ErrAuthentication)
	}
	return deploy.NewGitHubClient(&deploy.GitHubConfig{
		BaseURL: o.cfg.GitHub.BaseURL,
		Token:   token,
	}), nil
}

// ProviderConfigs maps the OAuth configuration onto the auth manager's
// provider table.
func ProviderConfigs(cfg *config.Config) map[domain.Provider]auth.ProviderConfig {
	return map[domain.Provider]auth.ProviderConfig{
		domain.ProviderGoogle: {
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			AuthURL:      cfg.OAuth.Google.AuthURL,
			TokenURL:     cfg.OAuth.Google.TokenURL,
			UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:       splitScopes(cfg.OAuth.Google.Scopes),
		},
		domain.ProviderGitHub: {
			ClientID:     cfg.OAuth.GitHub.ClientID,
			ClientSecret: cfg.OAuth.GitHub.ClientSecret,
			AuthURL:      cfg.OAuth.GitHub.AuthURL,
			TokenURL:     cfg.OAuth.GitHub.TokenURL,
			UserInfoURL:  "https://api.github.com/user",
			Scopes:       splitScopes(cfg.OAuth.GitHub.Scopes),
		},
	}
}

func splitScopes(s string) []string {
	return strings.Fields(s)
}
