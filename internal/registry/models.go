package registry

import "time"

// DefaultCommitCeiling is applied when an environment row is missing or
// carries a non-positive ceiling.
const DefaultCommitCeiling = 30

// Environment is a deployment target with its own staleness ceiling.
type Environment struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	CommitCeiling int    `json:"commit_ceiling"`
}

// Installation is an org-scoped GitHub App credential binding.
type Installation struct {
	ID             string    `json:"id"`
	InstallationID int64     `json:"installation_id"`
	OrgName        string    `json:"org_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Service is one deployable unit tracked by the dashboard.
type Service struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	GitHubRepo    string `json:"github_repo"`
	DefaultBranch string `json:"default_branch"`
	// InstallationRef is the installations row id, not the numeric GitHub id.
	InstallationRef string `json:"installation_id"`
}

// BoundService is the service × environment join consumed by the aggregator:
// one service, the workflow file that represents "deployed to this
// environment", and the numeric installation id to resolve credentials with.
type BoundService struct {
	BindingID      string
	WorkflowFile   string
	ServiceID      string
	DisplayName    string
	GitHubRepo     string
	DefaultBranch  string
	InstallationID int64
}
