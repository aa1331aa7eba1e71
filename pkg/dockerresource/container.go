package dockerresource

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ContainerClient is the narrow Docker Engine API surface a Container
// needs to create, start, and tear itself down.
type ContainerClient interface {
	ImageClient
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Spec describes the container a Resource factory should stand up.
type Spec struct {
	Image string
	Name  string
	Env   []string
	Cmd   []string
	// Ports maps a "containerPort/proto" (e.g. "5432/tcp") to the host
	// port it should be published on. Leave empty for no port publishing.
	Ports map[string]string
}

// Container is the value bound into a Scenario's Context by a
// dockerresource ResourceFactory. It implements definitions.Disposer, so
// the Engine stops and removes it automatically during teardown.
type Container struct {
	client ContainerClient
	id     string
}

// Start pulls spec.Image if needed, creates, and starts a container,
// returning the handle a Resource factory hands back to the Engine.
func Start(ctx context.Context, client ContainerClient, spec Spec) (*Container, error) {
	if err := EnsureImage(ctx, client, spec.Image); err != nil {
		return nil, err
	}

	exposed, bindings, err := portBindings(spec.Ports)
	if err != nil {
		return nil, fmt.Errorf("building port bindings for %q: %w", spec.Name, err)
	}

	resp, err := client.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Env:          spec.Env,
			Cmd:          spec.Cmd,
			ExposedPorts: exposed,
		},
		&container.HostConfig{
			PortBindings: bindings,
			AutoRemove:   false,
		},
		&network.NetworkingConfig{},
		nil,
		spec.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating container %q: %w", spec.Name, err)
	}

	if err := client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container %q: %w", spec.Name, err)
	}

	return &Container{client: client, id: resp.ID}, nil
}

// ID returns the container's Docker-assigned ID.
func (c *Container) ID() string { return c.id }

// Dispose stops and removes the container, implementing
// definitions.Disposer so a Resource entry backed by a Container tears
// down automatically in the Engine's teardown phase.
func (c *Container) Dispose(ctx context.Context) error {
	if err := c.client.ContainerStop(ctx, c.id, container.StopOptions{}); err != nil {
		return fmt.Errorf("stopping container %s: %w", c.id, err)
	}
	if err := c.client.ContainerRemove(ctx, c.id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing container %s: %w", c.id, err)
	}
	return nil
}

func portBindings(ports map[string]string) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for containerPort, hostPort := range ports {
		port, err := nat.NewPort(nat.SplitProtoPort(containerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("parsing container port %q: %w", containerPort, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}}
	}
	return exposed, bindings, nil
}
