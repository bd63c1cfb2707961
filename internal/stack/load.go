package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the descriptor at path.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve stack file: %w", err)
	}
	st, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

// Parse decodes a descriptor whose relative paths resolve against dir.
func Parse(data []byte, dir string) (*Stack, error) {
	var st Stack
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	st.Dir = dir
	st.normalize()
	return &st, nil
}

func (s *Stack) normalize() {
	if strings.TrimSpace(s.Name) == "" {
		s.Name = filepath.Base(s.Dir)
	}
	s.Name = SanitizeName(s.Name)
	if s.Services == nil {
		s.Services = map[string]*Service{}
	}
	if s.Volumes == nil {
		s.Volumes = map[string]*Volume{}
	}
	for name, vol := range s.Volumes {
		if vol == nil {
			s.Volumes[name] = &Volume{}
		}
	}
	for name, svc := range s.Services {
		if svc == nil {
			svc = &Service{}
			s.Services[name] = svc
		}
		svc.Name = name
		for i, m := range svc.Volumes {
			if m.Kind == MountBind {
				svc.Volumes[i].Source = s.ResolveDir(m.Source)
			}
		}
	}
}

// ParsePort parses one "[ip:][host:]container[/proto]" specification. Ranges expand
// into one mapping per port.
func ParsePort(spec string) ([]PortMapping, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return nil, fmt.Errorf("empty port specification")
	}
	mappings, err := nat.ParsePortSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", raw, err)
	}
	out := make([]PortMapping, 0, len(mappings))
	for _, m := range mappings {
		hostPort := 0
		if hp := strings.TrimSpace(m.Binding.HostPort); hp != "" {
			hostPort, err = strconv.Atoi(hp)
			if err != nil {
				return nil, fmt.Errorf("port %q: invalid host port %q", raw, hp)
			}
		}
		out = append(out, PortMapping{
			HostIP:        m.Binding.HostIP,
			HostPort:      hostPort,
			ContainerPort: m.Port.Int(),
			Protocol:      m.Port.Proto(),
		})
	}
	return out, nil
}

// ParseMount parses "source:target[:ro|rw]".
func ParseMount(spec string) (Mount, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Mount{}, fmt.Errorf("volume %q: expected source:target[:mode]", spec)
	}
	m := Mount{Source: parts[0], Target: parts[1]}
	if m.Source == "" || m.Target == "" {
		return Mount{}, fmt.Errorf("volume %q: source and target are required", spec)
	}
	if len(parts) == 3 {
		switch parts[2] {
		case "ro":
			m.ReadOnly = true
		case "rw":
		default:
			return Mount{}, fmt.Errorf("volume %q: unknown mode %q", spec, parts[2])
		}
	}
	m.Kind = MountVolume
	if strings.HasPrefix(m.Source, ".") || strings.HasPrefix(m.Source, "/") || strings.HasPrefix(m.Source, "~") {
		m.Kind = MountBind
	}
	return m, nil
}

func (p *Ports) UnmarshalYAML(node *yaml.Node) error {
	var specs []string
	if err := node.Decode(&specs); err != nil {
		return err
	}
	ports := make(Ports, 0, len(specs))
	for _, spec := range specs {
		parsed, err := ParsePort(spec)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		ports = append(ports, parsed...)
	}
	*p = ports
	return nil
}

func (p Ports) MarshalYAML() (any, error) {
	specs := make([]string, 0, len(p))
	for _, m := range p {
		specs = append(specs, m.String())
	}
	return specs, nil
}

func (m *Mount) UnmarshalYAML(node *yaml.Node) error {
	var spec string
	if err := node.Decode(&spec); err != nil {
		return err
	}
	parsed, err := ParseMount(spec)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = parsed
	return nil
}

func (m Mount) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (b *Build) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Context = node.Value
		return nil
	}
	type plain Build
	return node.Decode((*plain)(b))
}

func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = strings.Fields(node.Value)
		return nil
	}
	var args []string
	if err := node.Decode(&args); err != nil {
		return err
	}
	*c = args
	return nil
}

func (c Command) MarshalYAML() (any, error) {
	return []string(c), nil
}
