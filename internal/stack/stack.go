// Package stack models the development deployment descriptor: the services, their
// images or builds, port mappings, mounts and the named volumes they persist data in.
package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mount kinds.
const (
	MountVolume = "volume"
	MountBind   = "bind"
)

// DefaultRestartPolicy is applied to services that do not set one.
const DefaultRestartPolicy = "unless-stopped"

// Stack is a set of services started together.
type Stack struct {
	Name     string              `yaml:"name"`
	Services map[string]*Service `yaml:"services"`
	Volumes  map[string]*Volume  `yaml:"volumes,omitempty"`

	// Dir is the directory relative bind sources and build contexts resolve against.
	Dir string `yaml:"-"`
}

// Service is one container of the stack.
type Service struct {
	Name        string            `yaml:"-"`
	Image       string            `yaml:"image,omitempty"`
	Build       *Build            `yaml:"build,omitempty"`
	Command     Command           `yaml:"command,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Ports       Ports             `yaml:"ports,omitempty"`
	Volumes     []Mount           `yaml:"volumes,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Healthcheck *Healthcheck      `yaml:"healthcheck,omitempty"`
	WorkingDir  string            `yaml:"working_dir,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// Build describes how to produce a service image from source.
type Build struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile,omitempty"`
	Args       map[string]string `yaml:"args,omitempty"`
}

// Healthcheck is an HTTP path probed once the service is up. Port is a container port
// and defaults to the service's first mapping.
type Healthcheck struct {
	Path string `yaml:"path"`
	Port int    `yaml:"port,omitempty"`
}

// Volume is a named volume declared at stack level. Name overrides the effective
// engine-side name; Size only applies to runtimes that provision storage.
type Volume struct {
	Name   string `yaml:"name,omitempty"`
	Driver string `yaml:"driver,omitempty"`
	Size   string `yaml:"size,omitempty"`
}

// PortMapping publishes a container port on the host.
type PortMapping struct {
	HostIP        string
	HostPort      int
	ContainerPort int
	Protocol      string
}

// Mount attaches a named volume or a host path to a container path.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
	Kind     string
}

// Ports is the list of port mappings of a service.
type Ports []PortMapping

// Command is a container command; YAML accepts a string or a list.
type Command []string

var nameSanitizer = regexp.MustCompile(`[^a-z0-9_-]+`)

// SanitizeName lowercases name and strips characters engines reject.
func SanitizeName(name string) string {
	cleaned := nameSanitizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	cleaned = strings.Trim(cleaned, "-_")
	if cleaned == "" {
		return "postboard"
	}
	return cleaned
}

// ServiceNames returns service names in lexical order.
func (s *Stack) ServiceNames() []string {
	names := make([]string, 0, len(s.Services))
	for name := range s.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VolumeNames returns declared volume names in lexical order.
func (s *Stack) VolumeNames() []string {
	names := make([]string, 0, len(s.Volumes))
	for name := range s.Volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service returns the named service.
func (s *Stack) Service(name string) (*Service, error) {
	svc, ok := s.Services[name]
	if !ok {
		return nil, fmt.Errorf("service %q is not defined in stack %q", name, s.Name)
	}
	return svc, nil
}

// Marshal renders the normalized descriptor.
func (s *Stack) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// ResolveDir returns path relative to the stack directory unless it is absolute.
func (s *Stack) ResolveDir(path string) string {
	if path == "" {
		path = "."
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Dir, path)
}

// HealthPort returns the container port the healthcheck targets.
func (svc *Service) HealthPort() int {
	if svc.Healthcheck == nil {
		return 0
	}
	if svc.Healthcheck.Port > 0 {
		return svc.Healthcheck.Port
	}
	if len(svc.Ports) > 0 {
		return svc.Ports[0].ContainerPort
	}
	return 0
}

// HostPortFor returns the host port published for a container port, or zero.
func (svc *Service) HostPortFor(containerPort int) int {
	p, _ := svc.PortFor(containerPort)
	return p.HostPort
}

// PortFor returns the mapping that publishes containerPort.
func (svc *Service) PortFor(containerPort int) (PortMapping, bool) {
	for _, p := range svc.Ports {
		if p.ContainerPort == containerPort {
			return p, true
		}
	}
	return PortMapping{}, false
}

// RestartPolicy returns the configured policy or DefaultRestartPolicy.
func (svc *Service) RestartPolicy() string {
	if svc.Restart == "" {
		return DefaultRestartPolicy
	}
	return svc.Restart
}

// EnvList renders the environment as sorted KEY=value pairs.
func (svc *Service) EnvList() []string {
	keys := make([]string, 0, len(svc.Environment))
	for k := range svc.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+svc.Environment[k])
	}
	return env
}

// String renders the mapping in descriptor syntax.
func (p PortMapping) String() string {
	spec := fmt.Sprintf("%d", p.ContainerPort)
	if p.HostPort > 0 {
		spec = fmt.Sprintf("%d:%s", p.HostPort, spec)
	} else if p.HostIP != "" {
		spec = ":" + spec
	}
	if p.HostIP != "" {
		spec = p.HostIP + ":" + spec
	}
	if p.Protocol != "" && p.Protocol != "tcp" {
		spec += "/" + p.Protocol
	}
	return spec
}

// String renders the mount in descriptor syntax.
func (m Mount) String() string {
	spec := m.Source + ":" + m.Target
	if m.ReadOnly {
		spec += ":ro"
	}
	return spec
}
