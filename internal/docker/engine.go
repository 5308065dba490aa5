// engine.go implements the deployment operations for stack units:
// image pull/build, network setup, and the container create/start/stop/
// remove lifecycle.
//
// Single-container operations go through the Docker SDK. Image builds
// shell out to `docker build`, which handles build contexts, .dockerignore,
// and BuildKit without reimplementing context tarring in-process.
package docker

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/go-connections/nat"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// ListManagedContainers queries the daemon for containers carrying the
// stackdock management label, including stopped ones. When project is
// non-empty the listing is further narrowed to that stack.
//
// Filtering happens server-side via label filters; this is the primary
// discovery path, since labels are the only persisted state.
func ListManagedContainers(ctx context.Context, cli *Client, project string) ([]model.ContainerInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)
	if project != "" {
		filterArgs.Add("label", LabelProject+"="+project)
	}

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API container struct to the domain
// model, decoupling the rest of the application from SDK types.
//
// The API returns names with a leading "/" (an artifact of the API, not
// meaningful to users), which is stripped. State is a short string like
// "running" or "exited".
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	info := model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Status:        c.State,
		Labels:        c.Labels,
	}

	if parsed, err := ParseLabels(c.Labels); err == nil {
		info.Project = parsed.Project
		info.UnitName = parsed.UnitName
		info.CreatedAt = parsed.CreatedAt
	} else {
		// A container with garbled labels (hand-edited, or from an
		// older release) still lists with whatever identity it has,
		// degrading the timestamp to the zero time.
		info.Project = c.Labels[LabelProject]
		info.UnitName = c.Labels[LabelUnit]
	}

	return info
}

// GroupByUnit groups containers by their unit label. Containers without
// a unit label are skipped; they cannot be attributed to any unit.
func GroupByUnit(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)
	for _, c := range containers {
		if c.UnitName == "" {
			continue
		}
		groups[c.UnitName] = append(groups[c.UnitName], c)
	}
	return groups
}

// UnitState reports the aggregate status of one unit's containers:
// missing when none exist, running when at least one is running,
// stopped otherwise. Daemon states with no domain equivalent
// ("exited", "created", "paused") all count as not running.
func UnitState(containers []model.ContainerInfo) model.UnitStatus {
	if len(containers) == 0 {
		return model.StatusMissing
	}
	for _, c := range containers {
		if status, err := model.ParseUnitStatus(c.Status); err == nil && status == model.StatusRunning {
			return model.StatusRunning
		}
	}
	return model.StatusStopped
}

// EnsureNetwork creates the named bridge network if it does not already
// exist. Existing networks are left untouched regardless of driver, so
// a user-created network with the same name is respected.
func EnsureNetwork(ctx context.Context, cli *Client, name, driver string) error {
	if driver == "" {
		driver = "bridge"
	}

	existing, err := cli.Inner().NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker networks",
			err,
		)
	}
	// The name filter matches substrings, so compare exactly.
	for _, n := range existing {
		if n.Name == name {
			return nil
		}
	}

	_, err = cli.Inner().NetworkCreate(ctx, name, network.CreateOptions{
		Driver: driver,
		Labels: map[string]string{LabelManagedBy: ManagedByValue},
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create network %q", name),
			err,
		)
	}
	return nil
}

// RemoveNetwork deletes a network by name. Removal of a non-existent
// network is not an error; teardown must be idempotent.
func RemoveNetwork(ctx context.Context, cli *Client, name string) error {
	err := cli.Inner().NetworkRemove(ctx, name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove network %q", name),
			err,
		)
	}
	return nil
}

// EnsureImage makes an image reference available locally, pulling it if
// absent. Pull progress (the daemon's JSON stream) is copied to the
// progress writer; pass io.Discard to silence it.
//
// The pull stream must be drained to EOF even when discarded, or the
// daemon may cancel the pull when the connection closes.
func EnsureImage(ctx context.Context, cli *Client, ref string, progress io.Writer) error {
	local, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker images",
			err,
		)
	}
	if len(local) > 0 {
		return nil
	}

	reader, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to pull image %q", ref),
			err,
		)
	}
	defer func() { _ = reader.Close() }()

	if _, err := io.Copy(progress, reader); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("error reading pull output for image %q", ref),
			err,
		)
	}
	return nil
}

// BuildImage builds a unit's image from its build context by shelling
// out to `docker build`. The recipe path is resolved relative to the
// context directory. Build args become --build-arg flags.
//
// On failure the combined output is folded into the error, since the
// interesting diagnostics from a failed build are in its output.
func BuildImage(ctx context.Context, contextDir, recipePath, tag string, buildArgs map[string]string) error {
	args := []string{"build", "-t", tag}
	if recipePath != "" {
		args = append(args, "-f", filepath.Join(contextDir, recipePath))
	}
	for _, k := range sortedKeys(buildArgs) {
		args = append(args, "--build-arg", k+"="+buildArgs[k])
	}
	args = append(args, contextDir)

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitRecipeError,
			fmt.Sprintf("docker build failed for image %q: %s",
				tag, strings.TrimSpace(string(output))),
			err,
		)
	}
	return nil
}

// sortedKeys returns the map's keys in sorted order so generated flags
// are deterministic run to run.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateUnit creates (but does not start) the container for a unit.
// Any existing container with the same name is force-removed first, so
// redeploying a stack replaces its containers rather than failing on a
// name conflict.
//
// baseDir is the directory the stack descriptor was loaded from;
// relative mount sources are resolved against it because the daemon
// only accepts absolute bind paths.
//
// Returns the created container's ID.
func CreateUnit(ctx context.Context, cli *Client, project string, unit *model.Unit, imageRef, networkName, baseDir string, createdAt time.Time) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, pm := range unit.Ports {
		proto := pm.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(pm.ContainerPort))
		if err != nil {
			return "", model.WrapCLIError(
				model.ExitValidationFailed,
				fmt.Sprintf("invalid port mapping %s for unit %q", pm.String(), unit.Name),
				err,
			)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(pm.HostPort),
		}}
	}

	env := make([]string, 0, len(unit.Env))
	for _, e := range unit.Env {
		env = append(env, e.String())
	}

	binds := make([]string, 0, len(unit.Mounts))
	for _, m := range unit.Mounts {
		resolved := m
		if !filepath.IsAbs(m.Source) {
			abs, err := filepath.Abs(filepath.Join(baseDir, m.Source))
			if err != nil {
				return "", model.WrapCLIError(
					model.ExitValidationFailed,
					fmt.Sprintf("cannot resolve mount source %q for unit %q", m.Source, unit.Name),
					err,
				)
			}
			resolved.Source = abs
		}
		binds = append(binds, resolved.String())
	}

	config := &container.Config{
		Image:        imageRef,
		Env:          env,
		ExposedPorts: exposed,
		Labels:       BuildLabels(project, unit, createdAt),
	}
	if len(unit.Command) > 0 {
		config.Cmd = strslice.StrSlice(unit.Command)
	}

	hostConfig := &container.HostConfig{
		PortBindings: bindings,
		Binds:        binds,
	}
	if unit.Restart != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(unit.Restart),
		}
	}

	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {
				// The unit name doubles as a network alias so units
				// reach each other by the names the descriptor uses
				// (e.g., "mongodb://db/..." from the app unit).
				Aliases: []string{unit.Name},
			},
		},
	}

	// Replace, don't fail: a leftover container from a previous deploy
	// would otherwise block the name.
	_ = cli.Inner().ContainerRemove(ctx, unit.ContainerName, container.RemoveOptions{Force: true})

	resp, err := cli.Inner().ContainerCreate(ctx, config, hostConfig, networkConfig, nil, unit.ContainerName)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q for unit %q", unit.ContainerName, unit.Name),
			err,
		)
	}

	return resp.ID, nil
}

// ConnectUnit attaches a created container to an additional network,
// with the unit name as an alias. CreateUnit can only attach the first
// network; units on several networks join the rest through this.
func ConnectUnit(ctx context.Context, cli *Client, networkName, containerID, alias string) error {
	err := cli.Inner().NetworkConnect(ctx, networkName, containerID, &network.EndpointSettings{
		Aliases: []string{alias},
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to connect container %q to network %q", containerID, networkName),
			err,
		)
	}
	return nil
}

// StartUnit starts a created or stopped container by ID.
func StartUnit(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// StopUnit stops a running container by ID. A nil timeout in
// StopOptions uses the daemon default (SIGTERM, then SIGKILL after
// 10 seconds).
func StopUnit(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveUnit removes a container by ID. With force, the container is
// killed first, so teardown does not require a prior stop. With
// removeVolumes, anonymous volumes attached to the container go too.
func RemoveUnit(ctx context.Context, cli *Client, containerID string, force, removeVolumes bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: removeVolumes,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
