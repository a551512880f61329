package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
	"github.com/exponent-ml/exponent/internal/project"
)

// Deployer pushes a generated project's tracked files to a fresh GitHub
// repository and records the repository URL in the project metadata.
type Deployer struct {
	gh    *GitHubClient
	store *project.Store
}

// NewDeployer creates a Deployer.
//
// Parameters:
//   - gh: authenticated GitHub client
//   - store: project store holding the files to push
//
// Returns:
//   - *Deployer
func NewDeployer(gh *GitHubClient, store *project.Store) *Deployer {
	return &Deployer{gh: gh, store: store}
}

// DefaultRepoName derives the repository name used when the caller does not
// supply one.
func DefaultRepoName(projectID string) string {
	short := projectID
	if len(short) > 8 {
		short = short[:8]
	}
	return "ml-project-" + short
}

// Result describes a completed deployment.
type Result struct {
	RepoName string
	RepoURL  string
	Owner    string
	Files    []string
}

// Deploy creates a repository for the project and pushes every tracked file
// plus the dataset copy if one exists. When nameOverride is empty the name is
// derived from the project id; a collision on that name is reported as
// domain.ErrRepositoryExists so the caller can retry with an explicit name.
func (d *Deployer) Deploy(ctx context.Context, projectID, nameOverride string) (*Result, error) {
	proj, err := d.store.Load(projectID)
	if err != nil {
		return nil, err
	}

	owner, err := d.gh.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}

	name := nameOverride
	if name == "" {
		name = DefaultRepoName(projectID)
	}

	exists, err := d.gh.RepoExists(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if exists {
		if nameOverride == "" {
			return nil, fmt.Errorf("%w: %s (pass --name to choose another)", domain.ErrRepositoryExists, name)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryExists, name)
	}

	repo, err := d.gh.CreateRepo(ctx, name, proj.Task)
	if err != nil {
		return nil, err
	}

	files := d.trackedFiles(proj)
	dir := d.store.Dir(projectID)
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		if err := d.gh.PushFile(ctx, owner, name, rel, content, "Add "+rel); err != nil {
			return nil, err
		}
	}

	if err := d.store.SetRepoURL(projectID, repo.HTMLURL); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldProjectID: projectID,
		logger.FieldCount:     len(files),
	}).Info(ctx, "Deployed project to %s", repo.HTMLURL)
	return &Result{RepoName: name, RepoURL: repo.HTMLURL, Owner: owner, Files: files}, nil
}

// trackedFiles returns the project's files in a stable push order, including
// the local dataset copy when present.
func (d *Deployer) trackedFiles(proj *domain.Project) []string {
	files := append([]string(nil), proj.Files...)
	if proj.DatasetFile != "" {
		if _, err := os.Stat(filepath.Join(d.store.Dir(proj.ID), proj.DatasetFile)); err == nil {
			files = append(files, proj.DatasetFile)
		}
	}
	sort.Strings(files)
	return files
}
