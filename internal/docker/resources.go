package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
)

// EnsureNetwork creates a bridge network unless it exists.
func (c *Client) EnsureNetwork(ctx context.Context, name string, labels map[string]string) error {
	if _, err := c.api.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	} else if notFound(err, name) == nil {
		return fmt.Errorf("inspect network %s: %w", name, err)
	}
	if _, err := c.api.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge", Labels: labels}); err != nil {
		return fmt.Errorf("create network %s: %w", name, err)
	}
	return nil
}

// RemoveNetwork deletes a network; a missing network is not an error.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	if err := c.api.NetworkRemove(ctx, name); err != nil {
		if notFound(err, name) != nil {
			return nil
		}
		return fmt.Errorf("remove network %s: %w", name, err)
	}
	return nil
}

// EnsureVolume creates a named volume unless it exists and reports whether it did.
// Existing volumes are never recreated so their data survives container churn.
func (c *Client) EnsureVolume(ctx context.Context, name, driver string, labels map[string]string) (bool, error) {
	if _, err := c.api.VolumeInspect(ctx, name); err == nil {
		return false, nil
	} else if notFound(err, name) == nil {
		return false, fmt.Errorf("inspect volume %s: %w", name, err)
	}
	if _, err := c.api.VolumeCreate(ctx, volume.CreateOptions{Name: name, Driver: driver, Labels: labels}); err != nil {
		return false, fmt.Errorf("create volume %s: %w", name, err)
	}
	return true, nil
}

// RemoveVolume deletes a named volume; a missing volume is not an error.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	if err := c.api.VolumeRemove(ctx, name, false); err != nil {
		if notFound(err, name) != nil {
			return nil
		}
		return fmt.Errorf("remove volume %s: %w", name, err)
	}
	return nil
}
