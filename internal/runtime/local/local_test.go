package local

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/mount"
	"go.uber.org/multierr"

	"github.com/Camiloez/postboard/internal/docker"
	"github.com/Camiloez/postboard/internal/runtime"
	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/logger"
)

type fakeEngine struct {
	mu         sync.Mutex
	networks   map[string]bool
	volumes    map[string]int // name -> times created
	images     map[string]bool
	containers map[string]docker.ContainerSpec
	calls      []string
	stopErr    map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		networks:   map[string]bool{},
		volumes:    map[string]int{},
		images:     map[string]bool{},
		containers: map[string]docker.ContainerSpec{},
		stopErr:    map[string]error{},
	}
}

func (f *fakeEngine) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) EnsureNetwork(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = true
	return nil
}

func (f *fakeEngine) RemoveNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.networks, name)
	return nil
}

func (f *fakeEngine) EnsureVolume(_ context.Context, name, _ string, _ map[string]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volumes[name]; ok {
		return false, nil
	}
	f.volumes[name] = 1
	return true, nil
}

func (f *fakeEngine) RemoveVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.volumes, name)
	return nil
}

func (f *fakeEngine) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *fakeEngine) PullImage(_ context.Context, ref string, onOutput docker.OutputCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull " + ref)
	f.images[ref] = true
	if onOutput != nil {
		onOutput("pulled")
	}
	return nil
}

func (f *fakeEngine) BuildImage(_ context.Context, spec docker.BuildSpec, _ docker.OutputCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("build " + spec.Tag + " " + spec.Context)
	f.images[spec.Tag] = true
	return nil
}

func (f *fakeEngine) RunContainer(_ context.Context, spec docker.ContainerSpec) (docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("run " + spec.Name)
	f.containers[spec.Name] = spec
	return docker.ContainerInfo{ID: "0123456789abcdef"}, nil
}

func (f *fakeEngine) StopContainer(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.stopErr[name]; ok {
		return err
	}
	if _, ok := f.containers[name]; !ok {
		return docker.ErrNotFound
	}
	f.record("stop " + name)
	return nil
}

func (f *fakeEngine) RestartContainer(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return docker.ErrNotFound
	}
	f.record("restart " + name)
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, name)
	return nil
}

func (f *fakeEngine) ListContainers(_ context.Context, labels map[string]string) ([]docker.ContainerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []docker.ContainerStatus
	for name, spec := range f.containers {
		match := true
		for k, v := range labels {
			if spec.Labels[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, docker.ContainerStatus{Name: name, Image: spec.Image, State: "running", Labels: spec.Labels})
		}
	}
	return out, nil
}

func TestUpCreatesVolumeOnceAndKeepsItAcrossDown(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	rt := New(engine, logger.Discard(), time.Second)
	st := stack.Default("/srv/postboard")

	if err := rt.Up(ctx, st, runtime.UpOptions{}); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if err := rt.Up(ctx, st, runtime.UpOptions{}); err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if engine.volumes["postboard_mongo_data"] != 1 {
		t.Fatalf("expected volume created exactly once, got %v", engine.volumes)
	}

	if err := rt.Down(ctx, st, runtime.DownOptions{}); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if len(engine.containers) != 0 || len(engine.networks) != 0 {
		t.Fatalf("expected containers and network removed")
	}
	if _, ok := engine.volumes["postboard_mongo_data"]; !ok {
		t.Fatalf("volume must survive Down without RemoveVolumes")
	}

	if err := rt.Down(ctx, st, runtime.DownOptions{RemoveVolumes: true}); err != nil {
		t.Fatalf("Down --volumes: %v", err)
	}
	if len(engine.volumes) != 0 {
		t.Fatalf("expected volumes removed, got %v", engine.volumes)
	}
}

func TestUpStartsServicesInOrderWithMappedResources(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	rt := New(engine, logger.Discard(), time.Second)
	st := stack.Default("/srv/postboard")
	var out bytes.Buffer

	if err := rt.Up(ctx, st, runtime.UpOptions{Output: &out}); err != nil {
		t.Fatalf("Up: %v", err)
	}
	want := []string{"pull mongo:7", "run postboard-db", "build postboard-backend:dev /srv/postboard", "run postboard-backend"}
	if strings.Join(engine.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected calls:\n got %v\nwant %v", engine.calls, want)
	}
	if !strings.Contains(out.String(), "[db] pulled") {
		t.Fatalf("expected prefixed progress output, got %q", out.String())
	}

	db := engine.containers["postboard-db"]
	bindings := db.Ports["27017/tcp"]
	if len(bindings) != 1 || bindings[0].HostPort != "27017" {
		t.Fatalf("unexpected db port bindings: %+v", db.Ports)
	}
	if len(db.Mounts) != 1 || db.Mounts[0].Type != mount.TypeVolume || db.Mounts[0].Source != "postboard_mongo_data" {
		t.Fatalf("unexpected db mounts: %+v", db.Mounts)
	}
	backend := engine.containers["postboard-backend"]
	if backend.Mounts[0].Type != mount.TypeBind || backend.Mounts[0].Source != "/srv/postboard" || backend.Mounts[0].Target != "/app" {
		t.Fatalf("unexpected backend mounts: %+v", backend.Mounts)
	}
	if backend.Network != "postboard_default" || backend.Aliases[0] != "backend" {
		t.Fatalf("unexpected network settings: %+v", backend)
	}
	if backend.RestartPolicy != stack.DefaultRestartPolicy {
		t.Fatalf("expected default restart policy, got %q", backend.RestartPolicy)
	}

	engine.calls = nil
	if err := rt.Up(ctx, st, runtime.UpOptions{}); err != nil {
		t.Fatalf("second Up: %v", err)
	}
	for _, call := range engine.calls {
		if strings.HasPrefix(call, "pull") || strings.HasPrefix(call, "build") {
			t.Fatalf("present images should not be fetched again: %v", engine.calls)
		}
	}
	engine.calls = nil
	if err := rt.Up(ctx, st, runtime.UpOptions{Build: true, Pull: true}); err != nil {
		t.Fatalf("forced Up: %v", err)
	}
	if engine.calls[0] != "pull mongo:7" || !strings.HasPrefix(engine.calls[2], "build") {
		t.Fatalf("expected forced pull and build: %v", engine.calls)
	}
}

func TestDownAggregatesErrors(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	rt := New(engine, logger.Discard(), time.Second)
	st := stack.Default("/srv/postboard")
	if err := rt.Up(ctx, st, runtime.UpOptions{}); err != nil {
		t.Fatalf("Up: %v", err)
	}
	engine.stopErr["postboard-db"] = errors.New("db stuck")
	engine.stopErr["postboard-backend"] = errors.New("backend stuck")

	err := rt.Down(ctx, st, runtime.DownOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Fatalf("expected both failures reported, got %v", errs)
	}
	if len(engine.networks) != 0 {
		t.Fatalf("network removal should still run after failures")
	}
}

func TestStatusAndRestart(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	rt := New(engine, logger.Discard(), time.Second)
	st := stack.Default("/srv/postboard")

	statuses, err := rt.Status(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 || statuses[0].State != "missing" {
		t.Fatalf("expected missing services before Up, got %+v", statuses)
	}
	if err := rt.Restart(ctx, st, "db"); !errors.Is(err, docker.ErrNotFound) {
		t.Fatalf("expected not found before Up, got %v", err)
	}

	if err := rt.Up(ctx, st, runtime.UpOptions{}); err != nil {
		t.Fatal(err)
	}
	statuses, err = rt.Status(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range statuses {
		if s.State != "running" {
			t.Fatalf("expected running, got %+v", s)
		}
	}
	if err := rt.Restart(ctx, st, "db"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if err := rt.Restart(ctx, st, "cache"); err == nil {
		t.Fatal("expected unknown service error")
	}
}
