package dockerresource_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/dockerresource"
)

// fakeContainerClient fakes the full ContainerClient surface: a running
// container lifecycle without a real Docker daemon.
type fakeContainerClient struct {
	created  bool
	started  bool
	stopped  bool
	removed  bool
	createID string
}

func (f *fakeContainerClient) ImageList(context.Context, image.ListOptions) ([]image.Summary, error) {
	return []image.Summary{{RepoTags: []string{"postgres:16"}}}, nil
}

func (f *fakeContainerClient) ImagePull(context.Context, string, image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeContainerClient) ContainerCreate(context.Context, *container.Config, *container.HostConfig, *network.NetworkingConfig, *ocispec.Platform, string) (container.CreateResponse, error) {
	f.created = true
	f.createID = "container-1"
	return container.CreateResponse{ID: f.createID}, nil
}

func (f *fakeContainerClient) ContainerStart(context.Context, string, container.StartOptions) error {
	f.started = true
	return nil
}

func (f *fakeContainerClient) ContainerStop(context.Context, string, container.StopOptions) error {
	f.stopped = true
	return nil
}

func (f *fakeContainerClient) ContainerRemove(context.Context, string, container.RemoveOptions) error {
	f.removed = true
	return nil
}

func TestStart_CreatesAndStartsContainer(t *testing.T) {
	fake := &fakeContainerClient{}

	c, err := dockerresource.Start(context.Background(), fake, dockerresource.Spec{
		Image: "postgres:16",
		Name:  "probitas-test-db",
		Ports: map[string]string{"5432/tcp": "15432"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !fake.created || !fake.started {
		t.Fatalf("expected container to be created and started, got created=%v started=%v", fake.created, fake.started)
	}
	if c.ID() != "container-1" {
		t.Errorf("expected container ID container-1, got %s", c.ID())
	}
}

func TestContainer_DisposeStopsAndRemoves(t *testing.T) {
	fake := &fakeContainerClient{}
	c, err := dockerresource.Start(context.Background(), fake, dockerresource.Spec{Image: "postgres:16", Name: "db"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !fake.stopped || !fake.removed {
		t.Fatalf("expected container to be stopped and removed, got stopped=%v removed=%v", fake.stopped, fake.removed)
	}
}

func TestFactory_ProducesADisposableResource(t *testing.T) {
	fake := &fakeContainerClient{}
	factory := dockerresource.Factory(fake, dockerresource.Spec{Image: "postgres:16", Name: "db"})

	value, err := factory(context.Background(), nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	disposer, ok := value.(definitions.Disposer)
	if !ok {
		t.Fatalf("expected factory's value to implement definitions.Disposer, got %T", value)
	}
	if err := disposer.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !fake.stopped || !fake.removed {
		t.Fatal("expected Dispose to stop and remove the container")
	}
}
