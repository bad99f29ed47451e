package board

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
)

// Client fetches deployment results over the status server's HTTP API.
// It implements Fetcher.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewClient creates a client for the server at baseURL, authenticating
// with apiToken as a bearer token.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Deployments fetches the full board for one environment.
func (c *Client) Deployments(ctx context.Context, envSlug string) ([]deploystatus.DeploymentInfo, error) {
	query := url.Values{"env": {envSlug}}

	var deployments []deploystatus.DeploymentInfo
	if err := c.get(ctx, "/api/deployments", query, &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// ServiceStatus fetches a single service's status in one environment.
func (c *Client) ServiceStatus(ctx context.Context, serviceID, envSlug string) (deploystatus.DeploymentInfo, error) {
	query := url.Values{
		"service_id":  {serviceID},
		"environment": {envSlug},
	}

	var deployment deploystatus.DeploymentInfo
	if err := c.get(ctx, "/api/deploy-status", query, &deployment); err != nil {
		return deploystatus.DeploymentInfo{}, err
	}
	return deployment, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach status server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status server returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
