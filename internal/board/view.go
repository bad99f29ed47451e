package board

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
)

// SortOption selects the ordering of the visible deployment list.
type SortOption string

const (
	SortDeployed  SortOption = "deployed"
	SortAlpha     SortOption = "alpha"
	SortStaleness SortOption = "staleness"
)

// LayoutOption selects the card density of the rendered board.
type LayoutOption string

const (
	LayoutComfortable LayoutOption = "comfortable"
	LayoutCompact     LayoutOption = "compact"
)

// SortDeployments returns a sorted copy of the deployment list. All sorts
// are stable: entries the comparator ties keep their prior relative order.
//
//	deployed:  deploy timestamp descending, entries without a timestamp last
//	alpha:     display name, locale-aware ascending
//	staleness: commits behind descending, absent counts treated as 0
func SortDeployments(deployments []deploystatus.DeploymentInfo, option SortOption) []deploystatus.DeploymentInfo {
	sorted := make([]deploystatus.DeploymentInfo, len(deployments))
	copy(sorted, deployments)

	switch option {
	case SortDeployed:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i].DeployedAt, sorted[j].DeployedAt
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.After(*b)
		})
	case SortAlpha:
		collator := collate.New(language.English)
		sort.SliceStable(sorted, func(i, j int) bool {
			return collator.CompareString(sorted[i].DisplayName, sorted[j].DisplayName) < 0
		})
	case SortStaleness:
		sort.SliceStable(sorted, func(i, j int) bool {
			return commitsBehindOrZero(sorted[i]) > commitsBehindOrZero(sorted[j])
		})
	}

	return sorted
}

// MoveFailuresToBottom partitions the list so healthy entries render before
// failure placeholders, preserving relative order within each group.
func MoveFailuresToBottom(deployments []deploystatus.DeploymentInfo) []deploystatus.DeploymentInfo {
	healthy := make([]deploystatus.DeploymentInfo, 0, len(deployments))
	var failures []deploystatus.DeploymentInfo

	for _, deployment := range deployments {
		if deployment.Failed() {
			failures = append(failures, deployment)
		} else {
			healthy = append(healthy, deployment)
		}
	}

	return append(healthy, failures...)
}

// MatchedServiceIDs returns the ids whose display name or repository matches
// the query (case-insensitive substring). A blank query returns nil, meaning
// "show all".
func MatchedServiceIDs(deployments []deploystatus.DeploymentInfo, query string) map[string]bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return nil
	}

	ids := make(map[string]bool)
	for _, d := range deployments {
		if strings.Contains(strings.ToLower(d.DisplayName), normalized) ||
			strings.Contains(strings.ToLower(d.GitHubRepo), normalized) {
			ids[d.ServiceID] = true
		}
	}
	return ids
}

func commitsBehindOrZero(d deploystatus.DeploymentInfo) int {
	if d.CommitsBehind == nil {
		return 0
	}
	return *d.CommitsBehind
}
