package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// Label key constants define the Docker label keys that persist stack
// metadata on containers. Labels are the sole persistence mechanism:
// the deployed state of a stack is fully reconstructable from container
// inspection, with no external state file.
//
// All keys share the "stackdock." prefix to avoid collisions with
// labels set by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all stackdock labels.
	LabelPrefix = "stackdock."

	// LabelManagedBy identifies containers managed by stackdock. This is
	// the primary label used for filtering and discovery.
	// Key: "stackdock.managed-by", Value: always "stackdock".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the stack name the container belongs to.
	// Key: "stackdock.project", Value: stack name (e.g., "tokenapi").
	LabelProject = LabelPrefix + "project"

	// LabelUnit stores the unit name within the stack.
	// Key: "stackdock.unit", Value: unit name (e.g., "app").
	LabelUnit = LabelPrefix + "unit"

	// LabelPortPrefix is the prefix for per-port labels. Each published
	// port gets its own label keyed by container port and protocol:
	//
	//	"stackdock.port.8000/tcp" = "8000"
	//
	// The protocol is part of the key so a tcp and a udp mapping on the
	// same container port coexist. Per-port labels keep each mapping
	// independently parseable and human-readable under `docker inspect`.
	LabelPortPrefix = LabelPrefix + "port."

	// LabelCreatedAt stores the deployment timestamp.
	// Key: "stackdock.created-at", Value: RFC3339 formatted, UTC.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value of the LabelManagedBy label.
const ManagedByValue = "stackdock"

// BuildLabels constructs the Docker label map applied to a unit's
// container at creation time.
func BuildLabels(project string, unit *model.Unit, createdAt time.Time) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   project,
		LabelUnit:      unit.Name,
		// UTC keeps timestamps consistent regardless of host timezone.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}

	for _, pm := range unit.Ports {
		labels[BuildPortLabel(pm.ContainerPort, pm.Protocol)] = strconv.Itoa(pm.HostPort)
	}

	return labels
}

// BuildPortLabel generates the label key for one container port and
// protocol:
//
//	BuildPortLabel(8000, "tcp") → "stackdock.port.8000/tcp"
//
// An empty protocol defaults to tcp.
func BuildPortLabel(containerPort int, protocol string) string {
	if protocol == "" {
		protocol = "tcp"
	}
	return fmt.Sprintf("%s%d/%s", LabelPortPrefix, containerPort, protocol)
}

// ParseLabels extracts the stack metadata from a container's label map.
// It is the inverse of BuildLabels; runtime state (container ID, name,
// status) is filled in by the caller from the Docker API response.
//
// Required labels: managed-by, project, unit, created-at. Missing
// required labels cause an error listing all of them at once, which
// makes a mislabeled container easy to diagnose.
func ParseLabels(labels map[string]string) (*model.ContainerInfo, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelProject,
		LabelUnit,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.ContainerInfo{
		Project:   labels[LabelProject],
		UnitName:  labels[LabelUnit],
		CreatedAt: createdAt,
		Labels:    labels,
	}, nil
}

// ParsePortLabels extracts the published port mappings from a label map.
// The container port and protocol come from the key suffix
// ("8000/tcp") and the host port from the value. A suffix without a
// protocol is read as tcp, so containers deployed before the protocol
// was part of the key still parse. Returns an empty slice, not nil,
// when no port labels exist.
func ParsePortLabels(labels map[string]string) ([]model.PortMapping, error) {
	mappings := make([]model.PortMapping, 0, 4)

	for key, value := range labels {
		if !strings.HasPrefix(key, LabelPortPrefix) {
			continue
		}

		portStr, protocol, found := strings.Cut(strings.TrimPrefix(key, LabelPortPrefix), "/")
		if !found {
			protocol = "tcp"
		}

		containerPort, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid container port in label key %q: %w", key, err)
		}

		hostPort, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid host port in label %q=%q: %w", key, value, err)
		}

		mappings = append(mappings, model.PortMapping{
			ContainerPort: containerPort,
			HostPort:      hostPort,
			Protocol:      protocol,
		})
	}

	return mappings, nil
}
