// Package registry persists the service catalog in SQLite: environments,
// GitHub App installations, services, and the bindings that tie a service to
// an environment through a CI workflow file. The aggregation core only reads
// from it; the sync flows own all writes.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Registry manages the service catalog in SQLite
type Registry struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the registry database
func Open(dbPath string) (*Registry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &Registry{db: db}

	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return r, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS environments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			commit_ceiling INTEGER NOT NULL DEFAULT 30
		)`,
		`CREATE TABLE IF NOT EXISTS installations (
			id TEXT PRIMARY KEY,
			installation_id INTEGER NOT NULL UNIQUE,
			org_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			github_repo TEXT NOT NULL UNIQUE,
			default_branch TEXT NOT NULL DEFAULT 'main',
			installation_id TEXT NOT NULL REFERENCES installations(id)
		)`,
		`CREATE TABLE IF NOT EXISTS service_environments (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL REFERENCES services(id),
			environment_id TEXT NOT NULL REFERENCES environments(id),
			workflow_file TEXT NOT NULL,
			UNIQUE(service_id, environment_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_environment
			ON service_environments(environment_id)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// SeedEnvironments upserts the configured environments by slug. Ids of
// existing rows are preserved so bindings stay valid across restarts.
func (r *Registry) SeedEnvironments(ctx context.Context, envs []Environment) error {
	for _, env := range envs {
		ceiling := env.CommitCeiling
		if ceiling <= 0 {
			ceiling = DefaultCommitCeiling
		}

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO environments (id, name, slug, commit_ceiling)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(slug) DO UPDATE SET
				name = excluded.name,
				commit_ceiling = excluded.commit_ceiling
		`, uuid.NewString(), env.Name, env.Slug, ceiling)
		if err != nil {
			return fmt.Errorf("failed to seed environment '%s': %w", env.Slug, err)
		}
	}

	return nil
}

// EnvironmentBySlug returns the environment for a slug, or nil if unknown.
func (r *Registry) EnvironmentBySlug(ctx context.Context, slug string) (*Environment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, commit_ceiling
		FROM environments
		WHERE slug = ?
	`, slug)

	var env Environment
	err := row.Scan(&env.ID, &env.Name, &env.Slug, &env.CommitCeiling)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query environment: %w", err)
	}

	return &env, nil
}

// ListEnvironments returns every configured environment.
func (r *Registry) ListEnvironments(ctx context.Context) ([]Environment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, commit_ceiling
		FROM environments
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query environments: %w", err)
	}
	defer rows.Close()

	var envs []Environment
	for rows.Next() {
		var env Environment
		if err := rows.Scan(&env.ID, &env.Name, &env.Slug, &env.CommitCeiling); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		envs = append(envs, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return envs, nil
}

// ServicesBoundTo returns every service bound to an environment, ordered by
// display name for a stable baseline before client-side sorting. An unknown
// slug yields an empty result, not an error.
func (r *Registry) ServicesBoundTo(ctx context.Context, envSlug string) ([]BoundService, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT se.id, se.workflow_file,
		       s.id, s.display_name, s.github_repo, s.default_branch,
		       i.installation_id
		FROM service_environments se
		JOIN environments e ON e.id = se.environment_id
		JOIN services s ON s.id = se.service_id
		JOIN installations i ON i.id = s.installation_id
		WHERE e.slug = ?
		ORDER BY s.display_name
	`, envSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to query bound services: %w", err)
	}
	defer rows.Close()

	var bound []BoundService
	for rows.Next() {
		var b BoundService
		err := rows.Scan(&b.BindingID, &b.WorkflowFile,
			&b.ServiceID, &b.DisplayName, &b.GitHubRepo, &b.DefaultBranch,
			&b.InstallationID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bound service: %w", err)
		}
		bound = append(bound, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return bound, nil
}

// ServiceBoundTo returns one service × environment pairing, or nil if the
// pairing does not exist.
func (r *Registry) ServiceBoundTo(ctx context.Context, serviceID, envSlug string) (*BoundService, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT se.id, se.workflow_file,
		       s.id, s.display_name, s.github_repo, s.default_branch,
		       i.installation_id
		FROM service_environments se
		JOIN environments e ON e.id = se.environment_id
		JOIN services s ON s.id = se.service_id
		JOIN installations i ON i.id = s.installation_id
		WHERE se.service_id = ? AND e.slug = ?
	`, serviceID, envSlug)

	var b BoundService
	err := row.Scan(&b.BindingID, &b.WorkflowFile,
		&b.ServiceID, &b.DisplayName, &b.GitHubRepo, &b.DefaultBranch,
		&b.InstallationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bound service: %w", err)
	}

	return &b, nil
}

// UpsertInstallation records an installation by its numeric GitHub id and
// returns the row id.
func (r *Registry) UpsertInstallation(ctx context.Context, installationID int64, orgName string) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO installations (id, installation_id, org_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(installation_id) DO UPDATE SET
			org_name = excluded.org_name,
			updated_at = excluded.updated_at
	`, uuid.NewString(), installationID, orgName, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert installation: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM installations WHERE installation_id = ?`, installationID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to read back installation id: %w", err)
	}

	return id, nil
}

// InstallationByID returns the installation row for a numeric GitHub id, or
// nil if unknown.
func (r *Registry) InstallationByID(ctx context.Context, installationID int64) (*Installation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, installation_id, org_name, created_at, updated_at
		FROM installations
		WHERE installation_id = ?
	`, installationID)

	var inst Installation
	var createdAt, updatedAt string
	err := row.Scan(&inst.ID, &inst.InstallationID, &inst.OrgName, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query installation: %w", err)
	}

	if inst.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	if inst.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}

	return &inst, nil
}

// UpsertService records a service keyed by its repository and returns the
// row id.
func (r *Registry) UpsertService(ctx context.Context, displayName, githubRepo, defaultBranch, installationRef string) (string, error) {
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (id, display_name, github_repo, default_branch, installation_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(github_repo) DO UPDATE SET
			display_name = excluded.display_name,
			default_branch = excluded.default_branch,
			installation_id = excluded.installation_id
	`, uuid.NewString(), displayName, githubRepo, defaultBranch, installationRef)
	if err != nil {
		return "", fmt.Errorf("failed to upsert service '%s': %w", githubRepo, err)
	}

	var id string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM services WHERE github_repo = ?`, githubRepo).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to read back service id: %w", err)
	}

	return id, nil
}

// UpsertBinding associates a service with an environment through a workflow
// file. An existing binding for the pair has its workflow file replaced.
func (r *Registry) UpsertBinding(ctx context.Context, serviceID, environmentID, workflowFile string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_environments (id, service_id, environment_id, workflow_file)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_id, environment_id) DO UPDATE SET
			workflow_file = excluded.workflow_file
	`, uuid.NewString(), serviceID, environmentID, workflowFile)
	if err != nil {
		return fmt.Errorf("failed to upsert binding: %w", err)
	}

	return nil
}

// DeleteServiceByRepo removes a service and its bindings.
func (r *Registry) DeleteServiceByRepo(ctx context.Context, githubRepo string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM service_environments
		WHERE service_id IN (SELECT id FROM services WHERE github_repo = ?)
	`, githubRepo)
	if err != nil {
		return fmt.Errorf("failed to delete bindings for '%s': %w", githubRepo, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE github_repo = ?`, githubRepo); err != nil {
		return fmt.Errorf("failed to delete service '%s': %w", githubRepo, err)
	}

	return tx.Commit()
}

// ServiceCount returns the number of registered services.
func (r *Registry) ServiceCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return count, nil
}
