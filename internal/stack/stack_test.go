package stack

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultDescriptor(t *testing.T) {
	st := Default("/srv/postboard")
	if st.Name != "postboard" {
		t.Fatalf("expected stack name from directory, got %q", st.Name)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("default stack should validate: %v", err)
	}

	db, err := st.Service("db")
	if err != nil {
		t.Fatal(err)
	}
	if db.Image != "mongo:7" || db.HostPortFor(27017) != 27017 {
		t.Fatalf("unexpected db service: %+v", db)
	}
	if len(db.Volumes) != 1 || db.Volumes[0].Source != "mongo_data" || db.Volumes[0].Kind != MountVolume {
		t.Fatalf("expected mongo_data volume, got %+v", db.Volumes)
	}

	backend, _ := st.Service("backend")
	if backend.HostPortFor(8000) != 8000 {
		t.Fatalf("backend should publish 8000")
	}
	if backend.Volumes[0].Kind != MountBind || backend.Volumes[0].Source != "/srv/postboard" {
		t.Fatalf("expected source bind mount, got %+v", backend.Volumes[0])
	}
	want := []string{"postboard-api", "--host", "0.0.0.0", "--port", "8000", "--reload", "--log-config", "logging.yaml"}
	if !reflect.DeepEqual([]string(backend.Command), want) {
		t.Fatalf("unexpected command %v", backend.Command)
	}

	order, err := st.Order()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"db", "backend"}) {
		t.Fatalf("expected db before backend, got %v", order)
	}
}

func TestLoadParsesDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	body := `
name: Demo
services:
  cache:
    image: redis:7
    ports: ["127.0.0.1:6379:6379"]
  web:
    build:
      context: ./web
      args:
        VERSION: "1"
    command: serve --port 80
    ports:
      - 8080:80
      - "9000-9001:9000-9001/udp"
    volumes:
      - data:/var/lib/data
      - ./static:/static:ro
    depends_on: [cache]
    healthcheck:
      path: /healthz
volumes:
  data:
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Name != "demo" {
		t.Fatalf("expected sanitized name, got %q", st.Name)
	}
	web := st.Services["web"]
	if web.Build == nil || web.Build.Context != "./web" || web.Build.Args["VERSION"] != "1" {
		t.Fatalf("unexpected build: %+v", web.Build)
	}
	if !reflect.DeepEqual([]string(web.Command), []string{"serve", "--port", "80"}) {
		t.Fatalf("unexpected command: %v", web.Command)
	}
	if len(web.Ports) != 3 {
		t.Fatalf("expected range to expand, got %+v", web.Ports)
	}
	if web.Ports[1].Protocol != "udp" || web.Ports[1].HostPort != 9000 {
		t.Fatalf("unexpected udp mapping: %+v", web.Ports[1])
	}
	static := web.Volumes[1]
	if static.Kind != MountBind || !static.ReadOnly || static.Source != filepath.Join(dir, "static") {
		t.Fatalf("unexpected bind mount: %+v", static)
	}
	if web.HealthPort() != 80 {
		t.Fatalf("expected healthcheck on first container port, got %d", web.HealthPort())
	}
	cache := st.Services["cache"]
	if cache.Ports[0].HostIP != "127.0.0.1" {
		t.Fatalf("expected host ip, got %+v", cache.Ports[0])
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if st.VolumeName("data") != "demo_data" || st.ContainerName("web") != "demo-web" || st.NetworkName() != "demo_default" {
		t.Fatalf("unexpected resource names")
	}
	if st.ServiceImage("web") != "demo-web:dev" || st.ServiceImage("cache") != "redis:7" {
		t.Fatalf("unexpected images")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	_, err := Parse([]byte("services:\n  a:\n    image: x\n    ports: [\"99999:80\"]\n"), "/tmp/x")
	if err == nil {
		t.Fatal("expected port parse error")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	st := &Stack{
		Name: "bad",
		Services: map[string]*Service{
			"a": {Image: "x", Ports: Ports{{HostPort: 8000, ContainerPort: 80}}, DependsOn: []string{"b"}},
			"b": {Image: "y", Ports: Ports{{HostIP: "127.0.0.1", HostPort: 8000, ContainerPort: 81}}, DependsOn: []string{"a"}},
			"c": {Volumes: []Mount{{Source: "missing", Target: "/data", Kind: MountVolume}}, DependsOn: []string{"ghost"}},
			"D": {Image: "z"},
		},
	}
	err := st.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidError, got %T", err)
	}
	joined := strings.Join(invalid.Problems, "\n")
	for _, want := range []string{
		"already published",
		`volume "missing" is not declared`,
		`unknown service "ghost"`,
		"dependency cycle between services a, b",
		"either image or build is required",
		`service "D": name must be a DNS label`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing problem %q in:\n%s", want, joined)
		}
	}
}

func TestValidateAllowsDistinctHostIPsAndEphemeralPorts(t *testing.T) {
	st := &Stack{
		Name: "ok",
		Services: map[string]*Service{
			"a": {Image: "x", Ports: Ports{{HostIP: "127.0.0.1", HostPort: 8000, ContainerPort: 80}, {ContainerPort: 81}}},
			"b": {Image: "y", Ports: Ports{{HostIP: "127.0.0.2", HostPort: 8000, ContainerPort: 80}, {ContainerPort: 81}}},
			"c": {Image: "z", Ports: Ports{{HostPort: 8000, ContainerPort: 80, Protocol: "udp"}}},
		},
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsDuplicateEffectiveVolumeNames(t *testing.T) {
	st := &Stack{
		Name:     "s",
		Services: map[string]*Service{"a": {Image: "x"}},
		Volumes:  map[string]*Volume{"one": {Name: "shared"}, "two": {Name: "shared"}},
	}
	if err := st.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected duplicate volume error, got %v", err)
	}
}

func TestOrderIsDeterministic(t *testing.T) {
	st := &Stack{Services: map[string]*Service{
		"web":    {DependsOn: []string{"api"}},
		"api":    {DependsOn: []string{"db", "cache"}},
		"db":     {},
		"cache":  {},
		"worker": {DependsOn: []string{"db"}},
	}}
	order, err := st.Order()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"cache", "db", "api", "web", "worker"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	st := Default("/srv/app")
	data, err := st.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"27017:27017", "mongo_data:/data/db", "8000:8000", "/srv/app:/app", "- --reload"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in:\n%s", want, text)
		}
	}
	parsed, err := Parse(data, "/srv/app")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(parsed.Services["db"].Ports, st.Services["db"].Ports) {
		t.Fatalf("ports changed across round trip: %+v", parsed.Services["db"].Ports)
	}
}

func TestRepositoryDescriptorMatchesDefault(t *testing.T) {
	st, err := Load(filepath.Join("..", "..", "stack.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("stack.yaml should validate: %v", err)
	}
	def := Default(st.Dir)
	if !reflect.DeepEqual(st.ServiceNames(), def.ServiceNames()) {
		t.Fatalf("services %v, want %v", st.ServiceNames(), def.ServiceNames())
	}
	for _, name := range def.ServiceNames() {
		got, want := st.Services[name], def.Services[name]
		if !reflect.DeepEqual(got.Ports, want.Ports) {
			t.Errorf("%s ports %v, want %v", name, got.Ports, want.Ports)
		}
		if !reflect.DeepEqual(got.Volumes, want.Volumes) {
			t.Errorf("%s volumes %v, want %v", name, got.Volumes, want.Volumes)
		}
		if !reflect.DeepEqual(got.Command, want.Command) {
			t.Errorf("%s command %v, want %v", name, got.Command, want.Command)
		}
	}
}
