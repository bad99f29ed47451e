package deploystatus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
)

// ErrNoSuccessfulRuns is the error text recorded on a DeploymentInfo when a
// service's workflow has never completed successfully.
const ErrNoSuccessfulRuns = "No successful workflow runs found"

// API is the subset of the GitHub API the fetcher needs. It matches the
// go-github method signatures so an installation client satisfies it
// directly; tests provide fakes.
type API interface {
	ListWorkflowRunsByFileName(ctx context.Context, owner, repo, workflowFileName string, opts *github.ListWorkflowRunsOptions) (*github.WorkflowRuns, *github.Response, error)
	GetCommit(ctx context.Context, owner, repo, sha string, opts *github.ListOptions) (*github.RepositoryCommit, *github.Response, error)
	CompareCommits(ctx context.Context, owner, repo, base, head string, opts *github.ListOptions) (*github.CommitsComparison, *github.Response, error)
}

// Fetch determines the latest successfully-deployed commit for one service
// and computes its drift against the default branch tip. It never returns an
// error: any failure is folded into the DeploymentInfo's Error field so that
// sibling fetches in the same batch are unaffected.
func Fetch(ctx context.Context, api API, svc Service, commitCeiling int) DeploymentInfo {
	result := DeploymentInfo{
		ServiceID:    svc.ID,
		DisplayName:  svc.DisplayName,
		GitHubRepo:   svc.GitHubRepo,
		WorkflowFile: svc.WorkflowFile,
	}

	owner, repo, ok := splitRepo(svc.GitHubRepo)
	if !ok {
		result.Error = fmt.Sprintf("invalid repository identifier %q", svc.GitHubRepo)
		return result
	}

	// Latest successful run for the bound workflow file, newest first.
	runs, _, err := api.ListWorkflowRunsByFileName(ctx, owner, repo, svc.WorkflowFile, &github.ListWorkflowRunsOptions{
		Status:      "success",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if runs == nil || len(runs.WorkflowRuns) == 0 {
		result.Error = ErrNoSuccessfulRuns
		return result
	}

	latestRun := runs.WorkflowRuns[0]
	deployedSHA := latestRun.GetHeadSHA()

	commit, _, err := api.GetCommit(ctx, owner, repo, deployedSHA, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	comparison, _, err := api.CompareCommits(ctx, owner, repo, deployedSHA, svc.DefaultBranch, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	// The comparison is computed base=deployed, head=branch-tip, so the raw
	// ahead/behind fields are swapped relative to the dashboard's axis:
	// ahead_by counts tip commits missing from production (commits behind),
	// behind_by counts deployed commits missing from the tip (commits ahead).
	commitsBehind := comparison.GetAheadBy()
	commitsAhead := comparison.GetBehindBy()

	result.CommitSHA = deployedSHA
	result.ShortSHA = shortSHA(deployedSHA)
	result.CommitAuthor = commitAuthor(commit)
	result.Branch = latestRun.GetHeadBranch()
	if latestRun.UpdatedAt != nil {
		t := latestRun.UpdatedAt.Time
		result.DeployedAt = &t
	}
	result.CommitsBehind = &commitsBehind
	result.CommitsAhead = &commitsAhead
	result.StalenessScore = Score(commitsBehind, commitCeiling)
	result.CompareURL = fmt.Sprintf("https://github.com/%s/%s/compare/%s...%s", owner, repo, deployedSHA, svc.DefaultBranch)
	if commitsAhead > 0 {
		result.AheadCompareURL = fmt.Sprintf("https://github.com/%s/%s/compare/%s...%s", owner, repo, svc.DefaultBranch, deployedSHA)
	}

	return result
}

// commitAuthor picks the best available author identity: the commit's
// authored name, then the platform account handle, then "Unknown".
func commitAuthor(commit *github.RepositoryCommit) string {
	if name := commit.GetCommit().GetAuthor().GetName(); name != "" {
		return name
	}
	if login := commit.GetAuthor().GetLogin(); login != "" {
		return login
	}
	return "Unknown"
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func splitRepo(fullName string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
