// Package docker wraps the Docker Engine SDK client for deploying and
// managing stack units. It handles socket detection across platforms,
// label-based discovery of managed containers, and the create/start/
// stop/remove lifecycle of unit containers.
package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// defaultPingTimeout bounds the wait for a daemon response during Ping.
// Five seconds is generous enough for Docker Desktop on macOS, which can
// be slower than native Linux Docker.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. The SDK client is wrapped
// rather than embedded to control the exposed API surface.
//
// Usage:
//
//	c, err := docker.NewClient("")
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client. The host is resolved in priority
// order:
//  1. the host argument, when non-empty (from config or --docker-host)
//  2. the DOCKER_HOST environment variable
//  3. platform-specific default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is
// found or the client cannot be created.
func NewClient(host string) (*Client, error) {
	if host != "" {
		return newClientWithHost(host)
	}

	if env := os.Getenv("DOCKER_HOST"); env != "" {
		return newClientWithHost(env)
	}

	detected, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker socket not found",
			err,
		)
	}

	return newClientWithHost(detected)
}

func newClientWithHost(host string) (*Client, error) {
	// WithAPIVersionNegotiation keeps the client compatible across daemon
	// versions without hardcoding an API version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost probes known socket paths for the current platform
// and returns the first that exists. Existence is checked rather than
// connectivity because the check is fast and does not need a running
// daemon; Ping handles connectivity.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Docker Desktop symlinks the standard path; newer versions may
		// only create the per-user socket.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// os.Stat does not work on Windows named pipes, so probe with a
		// brief dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first path that
// exists on the filesystem, checked in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v — is Docker running?",
		paths,
	)
}

// Ping verifies the Docker daemon is reachable, waiting up to
// defaultPingTimeout. Returns a model.CLIError with ExitDockerNotRunning
// if the daemon does not respond.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	_, err := c.inner.Ping(pingCtx)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding — is Docker running?",
			err,
		)
	}
	return nil
}

// Close releases the client's resources. Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the underlying SDK client for operations not wrapped by
// Client. Callers should prefer Client methods when one exists.
func (c *Client) Inner() *client.Client {
	return c.inner
}
