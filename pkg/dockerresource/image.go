// Package dockerresource adapts Docker containers into the Resource
// contract (spec.md §3, "Produced value may implement a disposal
// capability") so a Scenario can declare test infrastructure — a
// database, a queue, a fake upstream — as a Resource entry instead of
// assuming it is already running.
package dockerresource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
)

// ImageClient is the narrow Docker Engine API surface EnsureImage needs.
// *client.Client (github.com/docker/docker/client) satisfies it.
type ImageClient interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// ImageExists reports whether imageName (with or without an explicit
// tag — an untagged name matches ":latest") is already present locally.
func ImageExists(ctx context.Context, client ImageClient, imageName string) (bool, error) {
	images, err := client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("listing images: %w", err)
	}

	want := imageName
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == want || tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}

// EnsureImage pulls imageName if it is not already present locally,
// draining the pull's progress stream before returning. A Resource
// factory calls this before creating a container, so the first run
// against a fresh Docker host pays the pull cost instead of failing.
func EnsureImage(ctx context.Context, client ImageClient, imageName string) error {
	exists, err := ImageExists(ctx, client, imageName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	rc, err := client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %q: %w", imageName, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("reading pull progress for %q: %w", imageName, err)
	}
	return nil
}
