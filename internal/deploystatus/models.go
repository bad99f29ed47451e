package deploystatus

import "time"

// Service is one deployable unit bound to an environment via a workflow file.
// It is assembled from registry rows and is immutable for the duration of one
// aggregation pass.
type Service struct {
	ID             string
	DisplayName    string
	GitHubRepo     string // "owner/repo"
	DefaultBranch  string
	WorkflowFile   string
	BindingID      string
	InstallationID int64 // numeric GitHub App installation id
}

// DeploymentInfo is the per-service result of one aggregation pass. It is
// either a successful snapshot (CommitSHA set, Error empty) or a failure
// placeholder (Error set, snapshot fields zero). It is never persisted.
type DeploymentInfo struct {
	ServiceID       string     `json:"service_id"`
	DisplayName     string     `json:"display_name"`
	GitHubRepo      string     `json:"github_repo"`
	WorkflowFile    string     `json:"workflow_file"`
	CommitSHA       string     `json:"commit_sha,omitempty"`
	ShortSHA        string     `json:"short_sha,omitempty"`
	CommitAuthor    string     `json:"commit_author,omitempty"`
	Branch          string     `json:"branch,omitempty"`
	DeployedAt      *time.Time `json:"deployed_at,omitempty"`
	CommitsBehind   *int       `json:"commits_behind,omitempty"`
	CommitsAhead    *int       `json:"commits_ahead,omitempty"`
	StalenessScore  float64    `json:"staleness_score"`
	CompareURL      string     `json:"compare_url,omitempty"`
	AheadCompareURL string     `json:"ahead_compare_url,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Failed reports whether this entry is a failure placeholder.
func (d DeploymentInfo) Failed() bool {
	return d.Error != ""
}
