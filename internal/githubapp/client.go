package githubapp

import (
	"context"

	"github.com/google/go-github/v57/github"
)

// Client wraps an installation-scoped go-github client with the handful of
// calls shipyard makes. It satisfies deploystatus.API.
type Client struct {
	gh *github.Client
}

// ListWorkflowRunsByFileName lists CI runs for one workflow file.
func (c *Client) ListWorkflowRunsByFileName(ctx context.Context, owner, repo, workflowFileName string, opts *github.ListWorkflowRunsOptions) (*github.WorkflowRuns, *github.Response, error) {
	return c.gh.Actions.ListWorkflowRunsByFileName(ctx, owner, repo, workflowFileName, opts)
}

// GetCommit fetches commit metadata for an exact SHA.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string, opts *github.ListOptions) (*github.RepositoryCommit, *github.Response, error) {
	return c.gh.Repositories.GetCommit(ctx, owner, repo, sha, opts)
}

// CompareCommits runs an ahead/behind comparison between two refs.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string, opts *github.ListOptions) (*github.CommitsComparison, *github.Response, error) {
	return c.gh.Repositories.CompareCommits(ctx, owner, repo, base, head, opts)
}

// ListInstallationRepos returns every repository the installation can see,
// following pagination.
func (c *Client) ListInstallationRepos(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.ListOptions{PerPage: 100}

	var repos []*github.Repository
	for {
		page, resp, err := c.gh.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, err
		}
		repos = append(repos, page.Repositories...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return repos, nil
}

// ListWorkflows returns the workflows defined in a repository.
func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]*github.Workflow, error) {
	workflows, _, err := c.gh.Actions.ListWorkflows(ctx, owner, repo, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, err
	}
	return workflows.Workflows, nil
}
