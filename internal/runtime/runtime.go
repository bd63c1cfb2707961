// Package runtime brings a stack up on a container engine.
package runtime

import (
	"context"
	"io"

	"github.com/Camiloez/postboard/internal/stack"
)

// UpOptions tune Up.
type UpOptions struct {
	// Build rebuilds images of services with a build section even when present.
	Build bool
	// Pull fetches images of image-only services even when present locally.
	Pull bool
	// Output receives build and pull progress lines.
	Output io.Writer
}

// DownOptions tune Down.
type DownOptions struct {
	// RemoveVolumes also deletes the stack's named volumes and their data.
	RemoveVolumes bool
}

// ServiceStatus is the observed state of one service.
type ServiceStatus struct {
	Service string
	Name    string
	Image   string
	State   string
	Detail  string
	Ports   []string
}

// Runtime drives a stack on one engine.
type Runtime interface {
	Up(ctx context.Context, st *stack.Stack, opts UpOptions) error
	Down(ctx context.Context, st *stack.Stack, opts DownOptions) error
	Status(ctx context.Context, st *stack.Stack) ([]ServiceStatus, error)
	Restart(ctx context.Context, st *stack.Stack, service string) error
}
