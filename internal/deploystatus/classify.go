package deploystatus

import "strings"

// envPattern maps an environment slug to the substrings that identify its
// deploy workflows. Ordered so that the first matching slug wins; the
// substrings are chosen to be mutually distinguishing, so overlap is a
// configuration defect rather than a runtime concern.
var envPatterns = []struct {
	slug     string
	patterns []string
}{
	{"production", []string{"prod"}},
	{"staging", []string{"stage"}},
	{"sandbox", []string{"sandbox"}},
}

// DetectEnvironment maps a CI workflow file path to an environment slug
// using case-insensitive substring matching. Returns ok=false when the path
// matches no known environment.
func DetectEnvironment(workflowPath string) (string, bool) {
	lower := strings.ToLower(workflowPath)
	for _, entry := range envPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lower, pattern) {
				return entry.slug, true
			}
		}
	}
	return "", false
}
