package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// Client drives one Docker daemon.
type Client struct {
	api *client.Client
}

// New connects to host, or to the daemon named by DOCKER_HOST and friends when host
// is empty. The API version is negotiated on first use.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	opts = append(opts, client.WithAPIVersionNegotiation())
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{api: api}, nil
}

// Ping fails when the daemon does not answer.
func (c *Client) Ping(ctx context.Context) error {
	ping, err := c.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker daemon at %s: %w", c.api.DaemonHost(), err)
	}
	c.api.NegotiateAPIVersionPing(ping)
	return nil
}

// Host is the daemon address in use.
func (c *Client) Host() string {
	return c.api.DaemonHost()
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.api.Close()
}

// notFound translates the daemon's 404 into ErrNotFound and returns nil otherwise.
func notFound(err error, what string) error {
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
