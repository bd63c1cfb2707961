package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

// ContainerSpec describes a container to (re)create.
type ContainerSpec struct {
	Name          string
	Image         string
	Cmd           []string
	Env           []string
	WorkingDir    string
	Ports         nat.PortMap
	Mounts        []mount.Mount
	Network       string
	Aliases       []string
	Labels        map[string]string
	RestartPolicy string
}

// ContainerInfo captures minimal runtime details about a started container.
type ContainerInfo struct {
	ID          string
	PortBinding nat.PortMap
}

// ContainerStatus summarizes a listed container.
type ContainerStatus struct {
	ID      string
	Name    string
	Image   string
	State   string
	Status  string
	Labels  map[string]string
	Ports   []string
	Created time.Time
}

// RunContainer replaces any container with the same name and starts a new one.
func (c *Client) RunContainer(ctx context.Context, spec ContainerSpec) (ContainerInfo, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return ContainerInfo{}, fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(spec.Image) == "" {
		return ContainerInfo{}, fmt.Errorf("image name cannot be empty")
	}
	if err := c.RemoveContainer(ctx, spec.Name); err != nil {
		return ContainerInfo{}, err
	}

	config := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		WorkingDir:   spec.WorkingDir,
		Labels:       spec.Labels,
		ExposedPorts: nat.PortSet{},
	}
	for p := range spec.Ports {
		config.ExposedPorts[p] = struct{}{}
	}

	hostCfg := &container.HostConfig{
		PortBindings: spec.Ports,
		Mounts:       spec.Mounts,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		},
	}

	var netCfg *network.NetworkingConfig
	if spec.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.Network)
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {Aliases: spec.Aliases},
			},
		}
	}

	r, err := c.api.ContainerCreate(ctx, config, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("container create %s: %w", spec.Name, err)
	}
	if err := c.api.ContainerStart(ctx, r.ID, container.StartOptions{}); err != nil {
		return ContainerInfo{}, fmt.Errorf("container start %s: %w", spec.Name, err)
	}

	inspect, err := c.api.ContainerInspect(ctx, r.ID)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("container inspect %s: %w", spec.Name, err)
	}
	portsBinding := nat.PortMap{}
	if inspect.NetworkSettings != nil && inspect.NetworkSettings.Ports != nil {
		portsBinding = inspect.NetworkSettings.Ports
	}
	return ContainerInfo{ID: r.ID, PortBinding: portsBinding}, nil
}

// StopContainer stops a running container, waiting up to timeout before killing it.
func (c *Client) StopContainer(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := c.api.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		if nf := notFound(err, name); nf != nil {
			return nf
		}
		return fmt.Errorf("stop container %s: %w", name, err)
	}
	return nil
}

// RestartContainer restarts a container in place.
func (c *Client) RestartContainer(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := c.api.ContainerRestart(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		if nf := notFound(err, name); nf != nil {
			return nf
		}
		return fmt.Errorf("restart container %s: %w", name, err)
	}
	return nil
}

// RemoveContainer removes an existing container if it exists. Anonymous volumes go
// with it; named volumes are untouched.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := c.api.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if notFound(err, name) != nil {
			return nil
		}
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

// ListContainers returns every container, running or not, carrying all labels.
func (c *Client) ListContainers(ctx context.Context, labels map[string]string) ([]ContainerStatus, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]ContainerStatus, 0, len(list))
	for _, item := range list {
		out = append(out, toStatus(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func toStatus(item types.Container) ContainerStatus {
	name := item.ID
	if len(item.Names) > 0 {
		name = strings.TrimPrefix(item.Names[0], "/")
	}
	ports := make([]string, 0, len(item.Ports))
	for _, p := range item.Ports {
		if p.PublicPort == 0 {
			ports = append(ports, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
			continue
		}
		ip := p.IP
		if ip == "" {
			ip = "0.0.0.0"
		}
		ports = append(ports, fmt.Sprintf("%s:%d->%d/%s", ip, p.PublicPort, p.PrivatePort, p.Type))
	}
	sort.Strings(ports)
	return ContainerStatus{
		ID:      item.ID,
		Name:    name,
		Image:   item.Image,
		State:   item.State,
		Status:  item.Status,
		Labels:  item.Labels,
		Ports:   ports,
		Created: time.Unix(item.Created, 0).UTC(),
	}
}
