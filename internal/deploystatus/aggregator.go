package deploystatus

import (
	"context"
	"sync"
)

// ResolveFunc produces an API client scoped to one GitHub App installation.
type ResolveFunc func(ctx context.Context, installationID int64) (API, error)

// AggregateAll fans the deployment fetcher out across every service bound to
// one environment and waits for all of them to settle. The output is
// length-preserving and order-preserving relative to the input: a failing
// fetch yields a DeploymentInfo with Error set in its slot, never a dropped
// entry, and never aborts its siblings.
//
// Credentials are resolved once, from the first service's installation; a
// batch spanning multiple installations reuses that first client. Credential
// resolution is the only batch-level failure.
func AggregateAll(ctx context.Context, resolve ResolveFunc, services []Service, commitCeiling int) ([]DeploymentInfo, error) {
	if len(services) == 0 {
		return []DeploymentInfo{}, nil
	}

	api, err := resolve(ctx, services[0].InstallationID)
	if err != nil {
		return nil, err
	}

	// Each goroutine owns exactly one output slot, so the slice needs no
	// locking beyond the WaitGroup join.
	results := make([]DeploymentInfo, len(services))
	var wg sync.WaitGroup
	for i, svc := range services {
		wg.Add(1)
		go func(i int, svc Service) {
			defer wg.Done()
			results[i] = Fetch(ctx, api, svc, commitCeiling)
		}(i, svc)
	}
	wg.Wait()

	return results, nil
}
