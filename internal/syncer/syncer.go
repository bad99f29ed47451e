// Package syncer populates the service registry from GitHub: it discovers an
// installation's repositories, classifies their deploy workflows into
// environments, and keeps the registry in step with installation webhooks.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/go-github/v57/github"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/githubapp"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/registry"
)

// ErrUnknownInstallation is returned when a webhook references an
// installation the registry has never seen.
var ErrUnknownInstallation = errors.New("unknown installation")

// RepoLister is the slice of the installation client the syncer needs.
type RepoLister interface {
	ListInstallationRepos(ctx context.Context) ([]*github.Repository, error)
	ListWorkflows(ctx context.Context, owner, repo string) ([]*github.Workflow, error)
}

// Repo identifies one repository in a webhook payload.
type Repo struct {
	FullName      string
	Name          string
	DefaultBranch string
}

// Syncer writes discovered services and bindings into the registry.
type Syncer struct {
	registry *registry.Registry
	logger   *slog.Logger

	clientFor func(ctx context.Context, installationID int64) (RepoLister, error)
	orgFor    func(ctx context.Context, installationID int64) (string, error)
}

// New wires the syncer to the GitHub App credential resolver.
func New(reg *registry.Registry, app *githubapp.App, logger *slog.Logger) *Syncer {
	return NewWithClients(reg, logger,
		func(ctx context.Context, installationID int64) (RepoLister, error) {
			return app.InstallationClient(ctx, installationID)
		},
		app.InstallationOrg,
	)
}

// NewWithClients wires the syncer to explicit client factories. Tests use it
// to substitute fakes for the GitHub API.
func NewWithClients(reg *registry.Registry, logger *slog.Logger, clientFor func(ctx context.Context, installationID int64) (RepoLister, error), orgFor func(ctx context.Context, installationID int64) (string, error)) *Syncer {
	return &Syncer{
		registry:  reg,
		logger:    logger,
		clientFor: clientFor,
		orgFor:    orgFor,
	}
}

// SyncInstallation records an installation and imports every repository it
// can see. Used by the setup flow and the `shipyard sync` command. Returns
// the number of repositories visited.
func (s *Syncer) SyncInstallation(ctx context.Context, installationID int64) (int, error) {
	orgName, err := s.orgFor(ctx, installationID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up installation account: %w", err)
	}

	instRef, err := s.registry.UpsertInstallation(ctx, installationID, orgName)
	if err != nil {
		return 0, err
	}

	client, err := s.clientFor(ctx, installationID)
	if err != nil {
		return 0, err
	}

	repos, err := client.ListInstallationRepos(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list installation repositories: %w", err)
	}

	envBySlug, err := s.environmentIndex(ctx)
	if err != nil {
		return 0, err
	}

	for _, repo := range repos {
		s.syncRepo(ctx, client, envBySlug, instRef, Repo{
			FullName:      repo.GetFullName(),
			Name:          repo.GetName(),
			DefaultBranch: repo.GetDefaultBranch(),
		})
	}

	s.logger.Info("installation synced", "installation_id", installationID, "org", orgName, "repos", len(repos))
	return len(repos), nil
}

// AddRepositories imports repositories newly granted to a known
// installation (webhook action "added").
func (s *Syncer) AddRepositories(ctx context.Context, installationID int64, added []Repo) error {
	inst, err := s.registry.InstallationByID(ctx, installationID)
	if err != nil {
		return err
	}
	if inst == nil {
		return fmt.Errorf("%w: %d", ErrUnknownInstallation, installationID)
	}

	client, err := s.clientFor(ctx, installationID)
	if err != nil {
		return err
	}

	envBySlug, err := s.environmentIndex(ctx)
	if err != nil {
		return err
	}

	for _, repo := range added {
		s.syncRepo(ctx, client, envBySlug, inst.ID, repo)
	}

	return nil
}

// RemoveRepositories drops services whose repositories were revoked
// (webhook action "removed").
func (s *Syncer) RemoveRepositories(ctx context.Context, fullNames []string) error {
	for _, fullName := range fullNames {
		if err := s.registry.DeleteServiceByRepo(ctx, fullName); err != nil {
			return err
		}
		s.logger.Info("service removed", "repo", fullName)
	}
	return nil
}

// syncRepo upserts one repository as a service and classifies its workflows
// into environment bindings. Repositories whose workflows cannot be listed
// are skipped, not fatal: a fresh repo may have no Actions enabled yet.
func (s *Syncer) syncRepo(ctx context.Context, client RepoLister, envBySlug map[string]string, instRef string, repo Repo) {
	name := repo.Name
	if name == "" {
		name = path.Base(repo.FullName)
	}

	serviceID, err := s.registry.UpsertService(ctx, name, repo.FullName, repo.DefaultBranch, instRef)
	if err != nil {
		s.logger.Error("failed to upsert service", "repo", repo.FullName, "error", err)
		return
	}

	owner, repoName, ok := splitFullName(repo.FullName)
	if !ok {
		s.logger.Warn("skipping repository with malformed full name", "repo", repo.FullName)
		return
	}

	workflows, err := client.ListWorkflows(ctx, owner, repoName)
	if err != nil {
		s.logger.Warn("failed to list workflows, skipping bindings", "repo", repo.FullName, "error", err)
		return
	}

	for _, workflow := range workflows {
		slug, ok := deploystatus.DetectEnvironment(workflow.GetPath())
		if !ok {
			continue
		}

		envID, ok := envBySlug[slug]
		if !ok {
			continue
		}

		workflowFile := path.Base(workflow.GetPath())
		if err := s.registry.UpsertBinding(ctx, serviceID, envID, workflowFile); err != nil {
			s.logger.Error("failed to upsert binding", "repo", repo.FullName, "workflow", workflowFile, "error", err)
		}
	}
}

func (s *Syncer) environmentIndex(ctx context.Context) (map[string]string, error) {
	envs, err := s.registry.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}

	envBySlug := make(map[string]string, len(envs))
	for _, env := range envs {
		envBySlug[env.Slug] = env.ID
	}
	return envBySlug, nil
}

func splitFullName(fullName string) (owner, repo string, ok bool) {
	dir, base := path.Split(fullName)
	if dir == "" || base == "" {
		return "", "", false
	}
	return path.Clean(dir), base, true
}
