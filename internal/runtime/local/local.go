// Package local runs a stack as containers on a Docker host.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"go.uber.org/multierr"

	"github.com/Camiloez/postboard/internal/docker"
	"github.com/Camiloez/postboard/internal/runtime"
	"github.com/Camiloez/postboard/internal/stack"
)

// Engine is the subset of the Docker adapter the runtime drives.
type Engine interface {
	EnsureNetwork(ctx context.Context, name string, labels map[string]string) error
	RemoveNetwork(ctx context.Context, name string) error
	EnsureVolume(ctx context.Context, name, driver string, labels map[string]string) (bool, error)
	RemoveVolume(ctx context.Context, name string) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string, onOutput docker.OutputCallback) error
	BuildImage(ctx context.Context, spec docker.BuildSpec, onOutput docker.OutputCallback) error
	RunContainer(ctx context.Context, spec docker.ContainerSpec) (docker.ContainerInfo, error)
	StopContainer(ctx context.Context, name string, timeout time.Duration) error
	RestartContainer(ctx context.Context, name string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, name string) error
	ListContainers(ctx context.Context, labels map[string]string) ([]docker.ContainerStatus, error)
}

var (
	_ Engine          = (*docker.Client)(nil)
	_ runtime.Runtime = (*Runtime)(nil)
)

// Runtime implements runtime.Runtime against a Docker engine.
type Runtime struct {
	engine      Engine
	logger      *slog.Logger
	stopTimeout time.Duration
}

// New constructs a local runtime.
func New(engine Engine, logger *slog.Logger, stopTimeout time.Duration) *Runtime {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &Runtime{engine: engine, logger: logger, stopTimeout: stopTimeout}
}

// Up creates the network and volumes, then (re)creates containers in dependency order.
func (r *Runtime) Up(ctx context.Context, st *stack.Stack, opts runtime.UpOptions) error {
	order, err := st.Order()
	if err != nil {
		return err
	}
	labels := st.ProjectLabels()
	if err := r.engine.EnsureNetwork(ctx, st.NetworkName(), labels); err != nil {
		return err
	}
	for _, name := range st.VolumeNames() {
		vname := st.VolumeName(name)
		created, err := r.engine.EnsureVolume(ctx, vname, st.Volumes[name].Driver, labels)
		if err != nil {
			return err
		}
		if created {
			r.logger.Info("volume created", "volume", vname)
		} else {
			r.logger.Debug("volume reused", "volume", vname)
		}
	}
	for _, name := range order {
		if err := r.startService(ctx, st, name, opts); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
	}
	return nil
}

func (r *Runtime) startService(ctx context.Context, st *stack.Stack, name string, opts runtime.UpOptions) error {
	svc := st.Services[name]
	image := st.ServiceImage(name)
	output := lineWriter(opts.Output, name)

	exists, err := r.engine.ImageExists(ctx, image)
	if err != nil {
		return err
	}
	switch {
	case svc.Build != nil && (opts.Build || !exists):
		r.logger.Info("building image", "service", name, "image", image)
		spec := docker.BuildSpec{
			Context:    st.ResolveDir(svc.Build.Context),
			Dockerfile: svc.Build.Dockerfile,
			Tag:        image,
			Args:       svc.Build.Args,
			Labels:     st.ServiceLabels(name),
		}
		if err := r.engine.BuildImage(ctx, spec, output); err != nil {
			return err
		}
	case svc.Build == nil && (opts.Pull || !exists):
		r.logger.Info("pulling image", "service", name, "image", image)
		if err := r.engine.PullImage(ctx, image, output); err != nil {
			return err
		}
	}

	spec := docker.ContainerSpec{
		Name:          st.ContainerName(name),
		Image:         image,
		Cmd:           svc.Command,
		Env:           svc.EnvList(),
		WorkingDir:    svc.WorkingDir,
		Ports:         portMap(svc.Ports),
		Mounts:        mounts(st, svc),
		Network:       st.NetworkName(),
		Aliases:       []string{name},
		Labels:        st.ServiceLabels(name),
		RestartPolicy: svc.RestartPolicy(),
	}
	info, err := r.engine.RunContainer(ctx, spec)
	if err != nil {
		return err
	}
	r.logger.Info("service started", "service", name, "container", spec.Name, "id", shortID(info.ID))
	return nil
}

// Down removes containers in reverse dependency order and the network. Named volumes
// are only removed when opts.RemoveVolumes is set.
func (r *Runtime) Down(ctx context.Context, st *stack.Stack, opts runtime.DownOptions) error {
	order, err := st.Order()
	if err != nil {
		order = st.ServiceNames()
	}
	slices.Reverse(order)

	var errs error
	removed := map[string]bool{}
	for _, name := range order {
		container := st.ContainerName(name)
		errs = multierr.Append(errs, r.removeContainer(ctx, container))
		removed[container] = true
	}
	leftovers, err := r.engine.ListContainers(ctx, st.ProjectLabels())
	errs = multierr.Append(errs, err)
	for _, c := range leftovers {
		if removed[c.Name] {
			continue
		}
		r.logger.Info("removing orphan container", "container", c.Name)
		errs = multierr.Append(errs, r.removeContainer(ctx, c.Name))
	}
	errs = multierr.Append(errs, r.engine.RemoveNetwork(ctx, st.NetworkName()))

	if opts.RemoveVolumes {
		for _, name := range st.VolumeNames() {
			vname := st.VolumeName(name)
			if err := r.engine.RemoveVolume(ctx, vname); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			r.logger.Info("volume removed", "volume", vname)
		}
	}
	return errs
}

func (r *Runtime) removeContainer(ctx context.Context, name string) error {
	if err := r.engine.StopContainer(ctx, name, r.stopTimeout); err != nil && !errors.Is(err, docker.ErrNotFound) {
		return err
	}
	if err := r.engine.RemoveContainer(ctx, name); err != nil {
		return err
	}
	r.logger.Debug("container removed", "container", name)
	return nil
}

// Status lists every declared service with its container state.
func (r *Runtime) Status(ctx context.Context, st *stack.Stack) ([]runtime.ServiceStatus, error) {
	containers, err := r.engine.ListContainers(ctx, st.ProjectLabels())
	if err != nil {
		return nil, err
	}
	byService := make(map[string]docker.ContainerStatus, len(containers))
	for _, c := range containers {
		byService[c.Labels[stack.LabelService]] = c
	}
	names := st.ServiceNames()
	statuses := make([]runtime.ServiceStatus, 0, len(names))
	for _, name := range names {
		status := runtime.ServiceStatus{Service: name, Name: st.ContainerName(name), Image: st.ServiceImage(name), State: "missing"}
		if c, ok := byService[name]; ok {
			status.Image = c.Image
			status.State = c.State
			status.Detail = c.Status
			status.Ports = c.Ports
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Restart restarts one service's container in place.
func (r *Runtime) Restart(ctx context.Context, st *stack.Stack, service string) error {
	if _, err := st.Service(service); err != nil {
		return err
	}
	name := st.ContainerName(service)
	if err := r.engine.RestartContainer(ctx, name, r.stopTimeout); err != nil {
		if errors.Is(err, docker.ErrNotFound) {
			return fmt.Errorf("service %s has no container; run up first: %w", service, err)
		}
		return err
	}
	r.logger.Info("service restarted", "service", service, "container", name)
	return nil
}

func portMap(ports stack.Ports) nat.PortMap {
	out := nat.PortMap{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.ContainerPort))
		if err != nil {
			continue
		}
		binding := nat.PortBinding{HostIP: p.HostIP}
		if p.HostPort > 0 {
			binding.HostPort = strconv.Itoa(p.HostPort)
		}
		out[port] = append(out[port], binding)
	}
	return out
}

func mounts(st *stack.Stack, svc *stack.Service) []mount.Mount {
	out := make([]mount.Mount, 0, len(svc.Volumes))
	for _, m := range svc.Volumes {
		if m.Kind == stack.MountBind {
			out = append(out, mount.Mount{Type: mount.TypeBind, Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
			continue
		}
		out = append(out, mount.Mount{Type: mount.TypeVolume, Source: st.VolumeName(m.Source), Target: m.Target, ReadOnly: m.ReadOnly})
	}
	return out
}

func lineWriter(w io.Writer, service string) docker.OutputCallback {
	if w == nil {
		return nil
	}
	return func(line string) {
		fmt.Fprintf(w, "[%s] %s\n", service, line)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
