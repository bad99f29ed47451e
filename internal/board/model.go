// Package board is the client-side view model of the dashboard: it caches
// deployment results per environment and derives sorted, filtered views
// without re-fetching.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
)

// Fetcher retrieves deployment results from the status server.
type Fetcher interface {
	Deployments(ctx context.Context, envSlug string) ([]deploystatus.DeploymentInfo, error)
	ServiceStatus(ctx context.Context, serviceID, envSlug string) (deploystatus.DeploymentInfo, error)
}

type cacheEntry struct {
	deployments []deploystatus.DeploymentInfo
	fetchedAt   time.Time
}

// Model holds one dashboard session. It is driven from a single goroutine
// (the UI event loop), so it takes no locks; it must not be shared across
// goroutines.
type Model struct {
	fetcher Fetcher
	now     func() time.Time

	activeEnv string
	sort      SortOption
	layout    LayoutOption
	query     string
	loading   bool

	cache map[string]cacheEntry
}

// NewModel creates a session with the default sort and layout.
func NewModel(fetcher Fetcher) *Model {
	return &Model{
		fetcher: fetcher,
		now:     time.Now,
		sort:    SortDeployed,
		layout:  LayoutComfortable,
		cache:   make(map[string]cacheEntry),
	}
}

// SwitchEnvironment makes slug the active environment. A cached environment
// is swapped in without any network call; a miss fetches fresh and populates
// the cache.
func (m *Model) SwitchEnvironment(ctx context.Context, slug string) error {
	m.activeEnv = slug

	if _, ok := m.cache[slug]; ok {
		return nil
	}

	return m.fetchInto(ctx, slug)
}

// Refresh re-fetches the active environment regardless of cache state,
// overwriting its slot.
func (m *Model) Refresh(ctx context.Context) error {
	if m.activeEnv == "" {
		return fmt.Errorf("no active environment to refresh")
	}
	return m.fetchInto(ctx, m.activeEnv)
}

// RetryService re-fetches exactly one service's status and replaces only
// that entry in the active environment's cached list, leaving siblings
// untouched.
func (m *Model) RetryService(ctx context.Context, serviceID string) error {
	if m.activeEnv == "" {
		return fmt.Errorf("no active environment")
	}

	entry, ok := m.cache[m.activeEnv]
	if !ok {
		return fmt.Errorf("environment %q is not loaded", m.activeEnv)
	}

	m.loading = true
	defer func() { m.loading = false }()

	deployment, err := m.fetcher.ServiceStatus(ctx, serviceID, m.activeEnv)
	if err != nil {
		return err
	}

	for i := range entry.deployments {
		if entry.deployments[i].ServiceID == serviceID {
			entry.deployments[i] = deployment
			break
		}
	}
	m.cache[m.activeEnv] = entry

	return nil
}

func (m *Model) fetchInto(ctx context.Context, slug string) error {
	m.loading = true
	defer func() { m.loading = false }()

	deployments, err := m.fetcher.Deployments(ctx, slug)
	if err != nil {
		return err
	}

	m.cache[slug] = cacheEntry{deployments: deployments, fetchedAt: m.now()}
	return nil
}

// SetSort selects the active sort order.
func (m *Model) SetSort(option SortOption) { m.sort = option }

// SetLayout selects the active card layout.
func (m *Model) SetLayout(option LayoutOption) { m.layout = option }

// SetQuery sets the search query applied by Visible.
func (m *Model) SetQuery(query string) { m.query = query }

// ActiveEnvironment returns the active environment slug.
func (m *Model) ActiveEnvironment() string { return m.activeEnv }

// Sort returns the active sort order.
func (m *Model) Sort() SortOption { return m.sort }

// Layout returns the active card layout.
func (m *Model) Layout() LayoutOption { return m.layout }

// Loading reports whether a fetch is in flight. The flag never blocks other
// controls: sort, layout and search apply to the cached list meanwhile.
func (m *Model) Loading() bool { return m.loading }

// LastFetched returns when the active environment's results were fetched,
// or the zero time if it has never been loaded.
func (m *Model) LastFetched() time.Time {
	return m.cache[m.activeEnv].fetchedAt
}

// Deployments returns the active environment's cached results in fetch
// order, unsorted and unfiltered.
func (m *Model) Deployments() []deploystatus.DeploymentInfo {
	return m.cache[m.activeEnv].deployments
}

// Visible derives the rendered list: the active environment's results
// sorted by the active sort and filtered by the search query. Derivation
// never touches the network.
func (m *Model) Visible() []deploystatus.DeploymentInfo {
	sorted := MoveFailuresToBottom(SortDeployments(m.Deployments(), m.sort))

	matched := MatchedServiceIDs(sorted, m.query)
	if matched == nil {
		return sorted
	}

	visible := make([]deploystatus.DeploymentInfo, 0, len(matched))
	for _, deployment := range sorted {
		if matched[deployment.ServiceID] {
			visible = append(visible, deployment)
		}
	}
	return visible
}
