package board

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
)

// fakeFetcher serves canned per-environment lists and counts every call so
// tests can assert cache hits cost no network.
type fakeFetcher struct {
	envs map[string][]deploystatus.DeploymentInfo

	deploymentCalls int
	statusCalls     int
	statusResult    deploystatus.DeploymentInfo
	statusErr       error
}

func (f *fakeFetcher) Deployments(_ context.Context, envSlug string) ([]deploystatus.DeploymentInfo, error) {
	f.deploymentCalls++
	deployments, ok := f.envs[envSlug]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", envSlug)
	}
	out := make([]deploystatus.DeploymentInfo, len(deployments))
	copy(out, deployments)
	return out, nil
}

func (f *fakeFetcher) ServiceStatus(_ context.Context, _, _ string) (deploystatus.DeploymentInfo, error) {
	f.statusCalls++
	return f.statusResult, f.statusErr
}

func testFetcher() *fakeFetcher {
	return &fakeFetcher{
		envs: map[string][]deploystatus.DeploymentInfo{
			"production": {
				deployment("svc-1", "Billing", nil, intPtr(3)),
				deployment("svc-2", "Checkout", nil, intPtr(12)),
			},
			"staging": {
				deployment("svc-1", "Billing", nil, intPtr(0)),
			},
		},
	}
}

func TestSwitchEnvironmentCachesResults(t *testing.T) {
	fetcher := testFetcher()
	model := NewModel(fetcher)
	ctx := context.Background()

	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch to production: %v", err)
	}
	if err := model.SwitchEnvironment(ctx, "staging"); err != nil {
		t.Fatalf("switch to staging: %v", err)
	}
	if fetcher.deploymentCalls != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetcher.deploymentCalls)
	}

	// Back to a cached environment: no network.
	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch back to production: %v", err)
	}
	if fetcher.deploymentCalls != 2 {
		t.Errorf("cache hit triggered a fetch: %d calls", fetcher.deploymentCalls)
	}
	if got := len(model.Deployments()); got != 2 {
		t.Errorf("expected 2 cached deployments, got %d", got)
	}
	if model.ActiveEnvironment() != "production" {
		t.Errorf("active environment = %q", model.ActiveEnvironment())
	}
}

func TestSwitchEnvironmentFetchFailure(t *testing.T) {
	fetcher := testFetcher()
	model := NewModel(fetcher)

	if err := model.SwitchEnvironment(context.Background(), "sandbox"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
	if model.Loading() {
		t.Error("loading flag stuck after failed fetch")
	}
	if !model.LastFetched().IsZero() {
		t.Error("failed fetch recorded a fetch time")
	}
}

func TestRefreshAlwaysFetches(t *testing.T) {
	fetcher := testFetcher()
	model := NewModel(fetcher)
	ctx := context.Background()

	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)
	clock := first
	model.now = func() time.Time { return clock }

	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if !model.LastFetched().Equal(first) {
		t.Errorf("fetched at %v, want %v", model.LastFetched(), first)
	}

	// Shrink the upstream list so the refresh visibly overwrites the slot.
	fetcher.envs["production"] = fetcher.envs["production"][:1]
	clock = second

	if err := model.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fetcher.deploymentCalls != 2 {
		t.Errorf("expected 2 fetches, got %d", fetcher.deploymentCalls)
	}
	if got := len(model.Deployments()); got != 1 {
		t.Errorf("refresh did not overwrite cache: %d deployments", got)
	}
	if !model.LastFetched().Equal(second) {
		t.Errorf("fetched at %v, want %v", model.LastFetched(), second)
	}
}

func TestRefreshWithoutEnvironment(t *testing.T) {
	model := NewModel(testFetcher())
	if err := model.Refresh(context.Background()); err == nil {
		t.Fatal("expected error refreshing with no active environment")
	}
}

func TestRetryServiceReplacesOneEntry(t *testing.T) {
	fetcher := testFetcher()
	fetcher.statusResult = deployment("svc-2", "Checkout", nil, intPtr(0))
	model := NewModel(fetcher)
	ctx := context.Background()

	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := model.RetryService(ctx, "svc-2"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	deployments := model.Deployments()
	if len(deployments) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(deployments))
	}
	if got := *deployments[1].CommitsBehind; got != 0 {
		t.Errorf("retried entry not replaced: commits_behind = %d", got)
	}
	if got := *deployments[0].CommitsBehind; got != 3 {
		t.Errorf("sibling entry changed: commits_behind = %d", got)
	}
	if fetcher.deploymentCalls != 1 {
		t.Errorf("retry refetched the whole environment: %d list calls", fetcher.deploymentCalls)
	}
}

func TestRetryServiceFailureKeepsEntry(t *testing.T) {
	fetcher := testFetcher()
	fetcher.statusErr = fmt.Errorf("upstream down")
	model := NewModel(fetcher)
	ctx := context.Background()

	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := model.RetryService(ctx, "svc-2"); err == nil {
		t.Fatal("expected retry error")
	}
	if got := *model.Deployments()[1].CommitsBehind; got != 12 {
		t.Errorf("failed retry mutated the entry: commits_behind = %d", got)
	}
}

func TestVisibleAppliesSortAndQuery(t *testing.T) {
	fetcher := testFetcher()
	model := NewModel(fetcher)
	ctx := context.Background()

	if err := model.SwitchEnvironment(ctx, "production"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	model.SetSort(SortStaleness)
	assertOrder(t, model.Visible(), "Checkout", "Billing")

	model.SetQuery("billing")
	assertOrder(t, model.Visible(), "Billing")

	model.SetQuery("")
	assertOrder(t, model.Visible(), "Checkout", "Billing")

	if fetcher.deploymentCalls != 1 {
		t.Errorf("deriving views hit the network: %d calls", fetcher.deploymentCalls)
	}
}

func TestVisibleMovesFailuresToBottom(t *testing.T) {
	fetcher := testFetcher()
	fetcher.envs["production"] = []deploystatus.DeploymentInfo{
		{ServiceID: "svc-1", DisplayName: "Billing", Error: "boom"},
		deployment("svc-2", "Checkout", nil, intPtr(12)),
	}
	model := NewModel(fetcher)

	if err := model.SwitchEnvironment(context.Background(), "production"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	model.SetSort(SortAlpha)
	assertOrder(t, model.Visible(), "Checkout", "Billing")
}

func TestModelDefaults(t *testing.T) {
	model := NewModel(testFetcher())
	if model.Sort() != SortDeployed {
		t.Errorf("default sort = %q", model.Sort())
	}
	if model.Layout() != LayoutComfortable {
		t.Errorf("default layout = %q", model.Layout())
	}

	model.SetLayout(LayoutCompact)
	if model.Layout() != LayoutCompact {
		t.Errorf("layout after set = %q", model.Layout())
	}
}
