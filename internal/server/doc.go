// Package server implements the HTTP surface of the shipyard dashboard.
//
// This package provides:
//   - Deployment status endpoints (batch per environment, single service)
//   - GitHub webhook endpoint handling with HMAC signature verification
//   - The GitHub App setup callback that imports an installation
//   - Per-IP rate limiting and bearer-token authentication
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/registry: SQLite service catalog (environments, services, bindings)
//   - internal/deploystatus: the aggregation core (fetch, settle-all, scoring)
//   - internal/githubapp: installation-scoped GitHub API credentials
//   - internal/syncer: repository discovery and webhook-driven sync
package server
