// Package model defines the domain types for the stackdock CLI.
//
// All entities in this package represent the deployment descriptor's
// configuration surface: units (one containerized process each), their
// published ports, environment, mounts, and startup dependency edges.
// These types are used throughout the application for passing data
// between components.
//
// Key design decision: runtime state is persisted via Docker container
// labels only. These types are transient representations reconstructed
// from the descriptor file and Docker API queries at runtime.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// UnitStatus represents the aggregate lifecycle state of a deployed unit.
// The state transitions are:
//
//	[Created] → Running → Stopped ⇄ Running → [Removed]
type UnitStatus string

const (
	// StatusRunning indicates the unit's container is running.
	StatusRunning UnitStatus = "running"

	// StatusStopped indicates the unit's container exists but is not
	// running. Configuration and data are preserved.
	StatusStopped UnitStatus = "stopped"

	// StatusMissing indicates no container exists for the unit.
	// The unit is declared in the descriptor but was never deployed
	// or has been removed.
	StatusMissing UnitStatus = "missing"
)

// String returns the string representation of UnitStatus.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands.
func (s UnitStatus) String() string {
	return string(s)
}

// IsValid checks whether the UnitStatus value is one of the
// predefined valid states.
func (s UnitStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusMissing:
		return true
	default:
		return false
	}
}

// ParseUnitStatus converts a string to a UnitStatus.
// Returns an error if the string does not match any valid status.
func ParseUnitStatus(s string) (UnitStatus, error) {
	status := UnitStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid unit status: %q (valid: running, stopped, missing)", s)
	}
	return status, nil
}

// Stack is the primary aggregate entity: a named deployment of units wired
// together by network membership and startup dependency edges. It is the
// in-memory form of one stack descriptor file.
type Stack struct {
	// Name is the project name. It prefixes default container names and
	// the default network name.
	Name string `json:"name"`

	// Units maps unit names to their declarations. Unit names are the
	// keys used in depends_on references.
	Units map[string]*Unit `json:"units"`

	// Networks maps network names to their declarations. A stack with no
	// declared networks gets a single default bridge network named
	// "<name>_default".
	Networks map[string]Network `json:"networks,omitempty"`

	// SourcePath is the absolute path of the descriptor file this stack
	// was loaded from. Relative build contexts and mount sources resolve
	// against its directory.
	SourcePath string `json:"sourcePath,omitempty"`
}

// UnitNames returns the stack's unit names sorted alphabetically.
// Deterministic ordering keeps plans and validation output reproducible.
func (s *Stack) UnitNames() []string {
	names := make([]string, 0, len(s.Units))
	for name := range s.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultNetworkName returns the name of the stack's implicit network,
// used when a unit declares no network membership.
func (s *Stack) DefaultNetworkName() string {
	return s.Name + "_default"
}

// Unit is one independently deployable containerized process: a service
// declaration from the descriptor. Exactly one of Image or Build must be
// set (enforced by validation, not by construction).
type Unit struct {
	// Name is the unit's identifier within the stack.
	Name string `json:"name"`

	// ContainerName is the Docker container name for the deployed unit.
	// Must be unique across the stack. Defaults to "<project>-<unit>".
	ContainerName string `json:"containerName"`

	// Image is the pre-built container image reference (e.g. "mongo",
	// "nginx:1.27"). Empty when the unit is built from a local context.
	Image string `json:"image,omitempty"`

	// Build describes how to build the unit's image from a local source
	// context. Nil when a pre-built image is used.
	Build *BuildSpec `json:"build,omitempty"`

	// Ports lists the unit's published host-to-container port mappings.
	Ports []PortMapping `json:"ports,omitempty"`

	// Env holds the environment variables injected at container start.
	// Order is preserved from the descriptor. Values are immutable for
	// the container's lifetime.
	Env []EnvVar `json:"env,omitempty"`

	// RequiresEnv names environment keys that must be present in Env for
	// the unit to be considered correctly configured. The application
	// unit of the reference topology requires its database URL and its
	// RPC endpoint URL.
	RequiresEnv []string `json:"requiresEnv,omitempty"`

	// Mounts lists host paths mounted into the container.
	Mounts []Mount `json:"mounts,omitempty"`

	// Networks lists the names of networks the unit joins. Empty means
	// the stack's default network.
	Networks []string `json:"networks,omitempty"`

	// DependsOn lists unit names that must be started before this unit.
	// These are startup-order edges only — no readiness or health
	// semantics are attached.
	DependsOn []string `json:"dependsOn,omitempty"`

	// Restart is the container restart policy ("no", "always",
	// "on-failure", "unless-stopped"). Empty means the daemon default.
	Restart string `json:"restart,omitempty"`

	// Command overrides the image's default start command.
	Command []string `json:"command,omitempty"`
}

// EnvValue returns the value of the named environment variable and
// whether it is declared on the unit.
func (u *Unit) EnvValue(key string) (string, bool) {
	for _, e := range u.Env {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// BuildSpec holds the local build configuration for a unit.
type BuildSpec struct {
	// Context is the build context directory, relative to the descriptor.
	Context string `json:"context"`

	// Recipe is the build recipe (Dockerfile) path relative to Context.
	// Defaults to "Dockerfile".
	Recipe string `json:"recipe,omitempty"`

	// Args are build-time variables passed via --build-arg.
	Args map[string]string `json:"args,omitempty"`
}

// Tag returns the image tag a built unit is tagged with:
// "<project>-<unit>:latest".
func (b *BuildSpec) Tag(project, unit string) string {
	return fmt.Sprintf("%s-%s:latest", project, unit)
}

// EnvVar is a single environment variable injected at container start.
// A slice of EnvVar preserves declaration order, unlike a map.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// String returns the KEY=VALUE form used by the Docker API.
func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

// Mount is a host path mounted into a unit's container.
type Mount struct {
	// Source is the host path. Relative paths resolve against the
	// descriptor's directory.
	Source string `json:"source"`

	// Target is the absolute path inside the container.
	Target string `json:"target"`

	// ReadOnly mounts the path read-only when true. The reference
	// topology mounts the proxy configuration directory read-write.
	ReadOnly bool `json:"readOnly,omitempty"`
}

// String returns the "source:target[:ro]" bind form used by the Docker API.
func (m Mount) String() string {
	s := m.Source + ":" + m.Target
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// Network is a deployment-scoped container network. It is created at
// deployment start and removed at teardown.
type Network struct {
	// Name is the network's identifier.
	Name string `json:"name"`

	// Driver is the network driver mode. Defaults to "bridge".
	Driver string `json:"driver,omitempty"`
}

// PortMapping represents a single published port: a host port forwarded
// to a container port.
type PortMapping struct {
	// HostPort is the externally published port on the host (1-65535).
	// Must be unique across all units in the stack per protocol.
	HostPort int `json:"hostPort"`

	// ContainerPort is the port inside the container (1-65535).
	ContainerPort int `json:"containerPort"`

	// Protocol is the network protocol. Defaults to "tcp".
	// Also supports "udp".
	Protocol string `json:"protocol,omitempty"`
}

// Validate checks whether the PortMapping has valid field values.
// It verifies port number ranges and protocol values.
func (p *PortMapping) Validate() error {
	if p.HostPort < 1 || p.HostPort > 65535 {
		return fmt.Errorf("port mapping: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port mapping: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port mapping: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String returns a human-readable representation of the port mapping.
// Format: "hostPort:containerPort/protocol"
func (p *PortMapping) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	return fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, proto)
}

// ContainerInfo holds runtime information about a deployed unit's Docker
// container. This data is fetched dynamically from the Docker API,
// not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// UnitName is the stack unit this container belongs to, read from
	// the stackdock.unit label.
	UnitName string `json:"unitName,omitempty"`

	// Project is the stack name this container belongs to, read from
	// the stackdock.project label.
	Project string `json:"project,omitempty"`

	// Status is the Docker container status (e.g. "running", "exited").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container, including
	// the stackdock.* management labels.
	Labels map[string]string `json:"labels,omitempty"`

	// CreatedAt is the timestamp the unit was deployed, read from the
	// stackdock.created-at label.
	CreatedAt time.Time `json:"createdAt"`
}

// unitNameRegex validates unit and container names: alphanumeric plus
// hyphens and underscores, must start and end with an alphanumeric.
var unitNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateUnitName checks if the given name is usable as a unit or
// container name. Valid names contain only alphanumerics, hyphens, and
// underscores, and must start/end with an alphanumeric character.
func ValidateUnitName(name string) error {
	if name == "" {
		return fmt.Errorf("unit name must not be empty")
	}
	if !unitNameRegex.MatchString(name) {
		return fmt.Errorf("invalid unit name %q: must contain only alphanumerics, hyphens, and underscores, and start/end with an alphanumeric", name)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDescriptorNotFound indicates no stack descriptor was found
	// in the expected location.
	ExitDescriptorNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortConflict indicates a published host port is already in use
	// or collides with another unit's published port.
	ExitPortConflict ExitCode = 4

	// ExitValidationFailed indicates the descriptor or a build recipe
	// failed validation.
	ExitValidationFailed ExitCode = 5

	// ExitStackNotFound indicates the named stack or unit does not exist.
	ExitStackNotFound ExitCode = 6

	// ExitRecipeError indicates a build recipe could not be read or parsed.
	ExitRecipeError ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
