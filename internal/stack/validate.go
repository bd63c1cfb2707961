package stack

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalid marks descriptor validation failures.
var ErrInvalid = errors.New("invalid stack")

// InvalidError lists every problem found in a descriptor.
type InvalidError struct {
	Problems []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Problems, "; "))
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

var dnsLabel = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

type hostBinding struct {
	ip    string
	port  int
	proto string
}

// Validate checks the descriptor and reports all problems at once.
func (s *Stack) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(s.Services) == 0 {
		add("stack defines no services")
	}

	bindings := map[hostBinding]string{}
	for _, name := range s.ServiceNames() {
		svc := s.Services[name]
		if !dnsLabel.MatchString(name) || len(name) > 63 {
			add("service %q: name must be a DNS label (lowercase letters, digits, '-')", name)
		}
		if svc.Image == "" && svc.Build == nil {
			add("service %q: either image or build is required", name)
		}
		if svc.Build != nil && strings.TrimSpace(svc.Build.Context) == "" {
			add("service %q: build context is required", name)
		}
		for _, p := range svc.Ports {
			if p.ContainerPort < 1 || p.ContainerPort > 65535 {
				add("service %q: container port %d out of range", name, p.ContainerPort)
			}
			if p.HostPort < 0 || p.HostPort > 65535 {
				add("service %q: host port %d out of range", name, p.HostPort)
			}
			if p.HostPort == 0 {
				continue
			}
			if owner, clash := claimBinding(bindings, p, name); clash {
				add("service %q: host port %s:%d/%s already published by %q", name, displayIP(p.HostIP), p.HostPort, protoOf(p), owner)
			}
		}
		for _, m := range svc.Volumes {
			if !strings.HasPrefix(m.Target, "/") {
				add("service %q: mount target %q must be absolute", name, m.Target)
			}
			if m.Kind == MountVolume {
				if _, ok := s.Volumes[m.Source]; !ok {
					add("service %q: volume %q is not declared", name, m.Source)
				}
			}
		}
		for _, dep := range svc.DependsOn {
			if dep == name {
				add("service %q: depends on itself", name)
				continue
			}
			if _, ok := s.Services[dep]; !ok {
				add("service %q: depends on unknown service %q", name, dep)
			}
		}
		if svc.Healthcheck != nil {
			if !strings.HasPrefix(svc.Healthcheck.Path, "/") {
				add("service %q: healthcheck path %q must start with '/'", name, svc.Healthcheck.Path)
			}
			if svc.HealthPort() == 0 {
				add("service %q: healthcheck needs a port", name)
			}
		}
	}

	effective := map[string]string{}
	for _, name := range s.VolumeNames() {
		vname := s.VolumeName(name)
		if other, dup := effective[vname]; dup {
			add("volumes %q and %q resolve to the same name %q", other, name, vname)
			continue
		}
		effective[vname] = name
	}

	if _, err := s.Order(); err != nil {
		add("%v", err)
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &InvalidError{Problems: problems}
}

// claimBinding records p and reports the previous owner when the host binding is taken.
// A wildcard address conflicts with every address on the same port.
func claimBinding(bindings map[hostBinding]string, p PortMapping, service string) (string, bool) {
	ip := p.HostIP
	if ip == "0.0.0.0" || ip == "::" {
		ip = ""
	}
	proto := protoOf(p)
	for b, owner := range bindings {
		if b.port != p.HostPort || b.proto != proto {
			continue
		}
		if b.ip == ip || b.ip == "" || ip == "" {
			return owner, true
		}
	}
	bindings[hostBinding{ip: ip, port: p.HostPort, proto: proto}] = service
	return "", false
}

func protoOf(p PortMapping) string {
	if p.Protocol == "" {
		return "tcp"
	}
	return strings.ToLower(p.Protocol)
}

func displayIP(ip string) string {
	if ip == "" {
		return "0.0.0.0"
	}
	return ip
}
