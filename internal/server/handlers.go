package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/registry"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/syncer"
)

const (
	MaxPayloadBytes = 1_000_000 // 1 MB
)

// HandleDeployments returns the deployment status of every service bound to
// an environment: settle-all semantics, one entry per bound service in
// registry order, failures folded into their own entries.
func (s *Server) HandleDeployments(w http.ResponseWriter, r *http.Request) {
	envSlug := r.URL.Query().Get("env")
	if envSlug == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing env parameter"})
		return
	}
	if err := ValidateSlug(envSlug); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ceiling := registry.DefaultCommitCeiling
	env, err := s.Registry.EnvironmentBySlug(r.Context(), envSlug)
	if err != nil {
		s.Logger.Error("Failed to look up environment", "env", envSlug, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployments"})
		return
	}
	if env != nil && env.CommitCeiling > 0 {
		ceiling = env.CommitCeiling
	}

	bound, err := s.Registry.ServicesBoundTo(r.Context(), envSlug)
	if err != nil {
		s.Logger.Error("Failed to look up bound services", "env", envSlug, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployments"})
		return
	}

	services := make([]deploystatus.Service, len(bound))
	for i, b := range bound {
		services[i] = boundToService(b)
	}

	deployments, err := deploystatus.AggregateAll(r.Context(), s.resolve, services, ceiling)
	if err != nil {
		// Credential resolution failed: the whole batch is unusable.
		s.Logger.Error("Failed to resolve installation credentials", "env", envSlug, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.respondJSON(w, http.StatusOK, deployments)
}

// HandleDeployStatus returns the deployment status of one service in one
// environment, used by the per-card retry.
func (s *Server) HandleDeployStatus(w http.ResponseWriter, r *http.Request) {
	serviceID := r.URL.Query().Get("service_id")
	envSlug := r.URL.Query().Get("environment")
	if serviceID == "" || envSlug == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing service_id or environment"})
		return
	}
	if err := ValidateSlug(envSlug); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bound, err := s.Registry.ServiceBoundTo(r.Context(), serviceID, envSlug)
	if err != nil {
		s.Logger.Error("Failed to look up service binding", "service_id", serviceID, "env", envSlug, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployment status"})
		return
	}
	if bound == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Service not found for this environment"})
		return
	}

	ceiling := registry.DefaultCommitCeiling
	if env, err := s.Registry.EnvironmentBySlug(r.Context(), envSlug); err == nil && env != nil && env.CommitCeiling > 0 {
		ceiling = env.CommitCeiling
	}

	api, err := s.resolve(r.Context(), bound.InstallationID)
	if err != nil {
		s.Logger.Error("Failed to resolve installation credentials", "service_id", serviceID, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	deployment := deploystatus.Fetch(r.Context(), api, boundToService(*bound), ceiling)
	s.respondJSON(w, http.StatusOK, deployment)
}

// webhookPayload is the slice of the installation_repositories event the
// sync flow consumes.
type webhookPayload struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	RepositoriesAdded   []webhookRepo `json:"repositories_added"`
	RepositoriesRemoved []webhookRepo `json:"repositories_removed"`
}

type webhookRepo struct {
	FullName      string `json:"full_name"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
}

// HandleWebhook keeps the registry in step with the GitHub App installation:
// repositories granted to the app become services, revoked ones are removed.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(body, signature, s.App.WebhookSecret()) {
		s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	if r.Header.Get("X-GitHub-Event") != "installation_repositories" {
		s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.Logger.Error("Failed to parse JSON payload", "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}

	switch payload.Action {
	case "added":
		added := make([]syncer.Repo, len(payload.RepositoriesAdded))
		for i, repo := range payload.RepositoriesAdded {
			added[i] = syncer.Repo{FullName: repo.FullName, Name: repo.Name, DefaultBranch: repo.DefaultBranch}
		}

		if err := s.Syncer.AddRepositories(r.Context(), payload.Installation.ID, added); err != nil {
			if errors.Is(err, syncer.ErrUnknownInstallation) {
				s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown installation"})
				return
			}
			s.Logger.Error("Failed to add repositories", "installation_id", payload.Installation.ID, "error", err)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Sync failed"})
			return
		}

	case "removed":
		fullNames := make([]string, len(payload.RepositoriesRemoved))
		for i, repo := range payload.RepositoriesRemoved {
			fullNames[i] = repo.FullName
		}

		if err := s.Syncer.RemoveRepositories(r.Context(), fullNames); err != nil {
			s.Logger.Error("Failed to remove repositories", "error", err)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Sync failed"})
			return
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleSetup is the GitHub App post-install callback: it records the
// installation and imports every repository it can see.
func (s *Server) HandleSetup(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("installation_id")
	if rawID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing installation_id"})
		return
	}

	installationID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid installation_id"})
		return
	}

	repoCount, err := s.Syncer.SyncInstallation(r.Context(), installationID)
	if err != nil {
		s.Logger.Error("Installation setup failed", "installation_id", installationID, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// The GitHub App install flow lands the browser here; send it home.
	if r.URL.Query().Get("setup_action") == "install" {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "repos": repoCount})
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	envs, err := s.Registry.ListEnvironments(r.Context())
	if err != nil {
		s.Logger.Error("Failed to list environments", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Health check failed"})
		return
	}

	slugs := make([]string, len(envs))
	for i, env := range envs {
		slugs[i] = env.Slug
	}

	serviceCount, err := s.Registry.ServiceCount(r.Context())
	if err != nil {
		s.Logger.Error("Failed to count services", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Health check failed"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"environments":  slugs,
		"service_count": serviceCount,
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

func boundToService(b registry.BoundService) deploystatus.Service {
	return deploystatus.Service{
		ID:             b.ServiceID,
		DisplayName:    b.DisplayName,
		GitHubRepo:     b.GitHubRepo,
		DefaultBranch:  b.DefaultBranch,
		WorkflowFile:   b.WorkflowFile,
		BindingID:      b.BindingID,
		InstallationID: b.InstallationID,
	}
}
