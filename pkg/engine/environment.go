package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Environment variables injected into services that use Catalyst.
const (
	EnvGRPCEndpoint = "DAPR_GRPC_ENDPOINT"
	EnvHTTPEndpoint = "DAPR_HTTP_ENDPOINT"
	EnvAPIToken     = "DAPR_API_TOKEN"
)

// Environment blocks until the graph has resolved the endpoints and the credentials of
// app, then returns the Dapr environment for that app.
//
// The futures themselves wait without bound. Environment additionally returns
// ErrProvisioningFailed as soon as the graph reaches FailedToStart, and ctx.Err() when
// ctx ends, so callers can bound the wait with a deadline.
func Environment(ctx context.Context, graph *ResourceGraph, app string) (map[string]string, error) {
	details, ok := graph.AppDetails(app)
	if !ok {
		return nil, NewPermanentError(fmt.Sprintf("app %s is not declared", app), nil).
			WithCode(ErrCodeNotFound).WithResource(app)
	}

	grpc, err := await(ctx, graph, graph.GRPCEndpoint())
	if err != nil {
		return nil, err
	}
	httpEndpoint, err := await(ctx, graph, graph.HTTPEndpoint())
	if err != nil {
		return nil, err
	}
	creds, err := await(ctx, graph, details)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		EnvGRPCEndpoint: grpc,
		EnvHTTPEndpoint: httpEndpoint,
		EnvAPIToken:     creds.APIToken,
	}, nil
}

// await waits for f, giving up early if the graph fails before f is resolved.
func await[T any](ctx context.Context, graph *ResourceGraph, f *Future[T]) (T, error) {
	select {
	case <-f.Done():
		return f.Get()
	case <-graph.Failed():
		// The failing step may have resolved f just before failing.
		if f.IsSet() {
			return f.Get()
		}
		var zero T
		return zero, fmt.Errorf("%s will never resolve: %w: %v", f.Name(), ErrProvisioningFailed, graph.Err())
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waiting for %s: %w", f.Name(), ctx.Err())
	}
}

// FormatEnvironment renders env as sorted KEY=VALUE lines.
func FormatEnvironment(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}
	return b.String()
}
