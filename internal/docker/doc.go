// Package docker provides Docker Engine API wrappers and container
// lifecycle management for the stackdock CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container label management for persisting stack metadata
//     (Docker labels are the sole state storage mechanism)
//   - Image availability: pulling referenced images, building local ones
//   - Network setup and the container lifecycle: create, start, stop,
//     remove, list
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
