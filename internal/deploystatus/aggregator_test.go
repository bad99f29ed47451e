package deploystatus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-github/v57/github"
)

// repoKeyedAPI fails fetches for repos listed in failing, succeeds otherwise.
type repoKeyedAPI struct {
	failing map[string]bool
}

func (f *repoKeyedAPI) ListWorkflowRunsByFileName(_ context.Context, owner, repo, _ string, _ *github.ListWorkflowRunsOptions) (*github.WorkflowRuns, *github.Response, error) {
	if f.failing[owner+"/"+repo] {
		return nil, nil, fmt.Errorf("boom: %s/%s", owner, repo)
	}
	return &github.WorkflowRuns{
		TotalCount: github.Int(1),
		WorkflowRuns: []*github.WorkflowRun{{
			HeadSHA:    github.String("abc1234def5678"),
			HeadBranch: github.String("main"),
		}},
	}, nil, nil
}

func (f *repoKeyedAPI) GetCommit(_ context.Context, _, _, _ string, _ *github.ListOptions) (*github.RepositoryCommit, *github.Response, error) {
	return &github.RepositoryCommit{
		Commit: &github.Commit{Author: &github.CommitAuthor{Name: github.String("Test Author")}},
	}, nil, nil
}

func (f *repoKeyedAPI) CompareCommits(_ context.Context, _, _, _, _ string, _ *github.ListOptions) (*github.CommitsComparison, *github.Response, error) {
	return &github.CommitsComparison{AheadBy: github.Int(2), BehindBy: github.Int(0)}, nil, nil
}

func makeServices(n int) []Service {
	services := make([]Service, n)
	for i := range services {
		services[i] = Service{
			ID:             fmt.Sprintf("svc-%d", i),
			DisplayName:    fmt.Sprintf("Service %d", i),
			GitHubRepo:     fmt.Sprintf("acme/repo-%d", i),
			DefaultBranch:  "main",
			WorkflowFile:   "deploy-prod.yml",
			InstallationID: 42,
		}
	}
	return services
}

func TestAggregateAll_LengthAndOrderPreserved(t *testing.T) {
	api := &repoKeyedAPI{failing: map[string]bool{"acme/repo-2": true}}
	resolve := func(ctx context.Context, installationID int64) (API, error) { return api, nil }
	services := makeServices(5)

	results, err := AggregateAll(context.Background(), resolve, services, 30)
	if err != nil {
		t.Fatalf("AggregateAll: %v", err)
	}

	if len(results) != len(services) {
		t.Fatalf("got %d results for %d services", len(results), len(services))
	}
	for i, info := range results {
		if info.ServiceID != services[i].ID {
			t.Errorf("results[%d].ServiceID = %q, want %q", i, info.ServiceID, services[i].ID)
		}
	}
}

func TestAggregateAll_FailureIsolation(t *testing.T) {
	// One failing and four succeeding fetches: the four siblings must stay
	// error-free and the failure must land in its own slot.
	api := &repoKeyedAPI{failing: map[string]bool{"acme/repo-2": true}}
	resolve := func(ctx context.Context, installationID int64) (API, error) { return api, nil }

	results, err := AggregateAll(context.Background(), resolve, makeServices(5), 30)
	if err != nil {
		t.Fatalf("AggregateAll: %v", err)
	}

	for i, info := range results {
		if i == 2 {
			if info.Error == "" {
				t.Errorf("results[2] should carry the failure")
			}
			continue
		}
		if info.Error != "" {
			t.Errorf("results[%d].Error = %q, want error-free sibling", i, info.Error)
		}
		if info.CommitSHA == "" {
			t.Errorf("results[%d] missing commit snapshot", i)
		}
	}
}

func TestAggregateAll_EmptyInput(t *testing.T) {
	resolve := func(ctx context.Context, installationID int64) (API, error) {
		t.Fatal("resolve should not be called for an empty batch")
		return nil, nil
	}

	results, err := AggregateAll(context.Background(), resolve, nil, 30)
	if err != nil {
		t.Fatalf("AggregateAll: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want empty", len(results))
	}
}

func TestAggregateAll_CredentialFailureIsBatchLevel(t *testing.T) {
	resolve := func(ctx context.Context, installationID int64) (API, error) {
		return nil, errors.New("installation not found")
	}

	results, err := AggregateAll(context.Background(), resolve, makeServices(3), 30)
	if err == nil {
		t.Fatal("expected a batch-level error")
	}
	if results != nil {
		t.Errorf("results should be nil on batch failure, got %v", results)
	}
}

func TestAggregateAll_ResolvesCredentialsOnce(t *testing.T) {
	var calls atomic.Int64
	api := &repoKeyedAPI{}
	resolve := func(ctx context.Context, installationID int64) (API, error) {
		calls.Add(1)
		if installationID != 42 {
			t.Errorf("resolved installation %d, want 42 (first seen)", installationID)
		}
		return api, nil
	}

	services := makeServices(4)
	services[3].InstallationID = 99 // silently reuses the first installation

	if _, err := AggregateAll(context.Background(), resolve, services, 30); err != nil {
		t.Fatalf("AggregateAll: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("resolve called %d times, want 1", calls.Load())
	}
}
