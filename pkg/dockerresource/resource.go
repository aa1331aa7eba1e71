package dockerresource

import (
	"context"

	"github.com/docker/docker/client"

	"github.com/probitas/probitas/pkg/definitions"
)

// NewClient opens a Docker Engine API client using the standard
// environment-variable configuration (DOCKER_HOST, DOCKER_CERT_PATH,
// etc.), the same way a Docker CLI plugin would.
func NewClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// Factory builds a definitions.ResourceFactory that starts spec's
// container when the Scenario reaches this Resource entry, and returns
// it as the bound value; its Dispose method (Container implements
// definitions.Disposer) is what the Engine calls during teardown.
//
// dockerClient is typically *docker/docker/client.Client from NewClient,
// kept as the ContainerClient interface so tests can substitute a fake.
func Factory(dockerClient ContainerClient, spec Spec) definitions.ResourceFactory {
	return func(ctx context.Context, _ *definitions.Context) (any, error) {
		return Start(ctx, dockerClient, spec)
	}
}

var _ definitions.Disposer = (*Container)(nil)
