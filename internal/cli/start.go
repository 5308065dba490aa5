// Package cli — start.go implements the "stackdock start" command.
//
// The start command restarts a previously stopped stack. Before
// starting containers, it verifies that the host ports recorded in the
// containers' labels are still available; a taken port fails the
// command with exit code 4 instead of silently starting containers
// with broken port bindings. Containers start in dependency order.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/port"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [unit...]",
		Short: "Start a stopped stack",
		Long: `Start the existing containers of a previously stopped stack.

With no arguments the whole stack is started; naming units starts only
those. Containers are started in dependency order, the same order "up"
uses. Before starting, the host ports recorded on the containers are
probed; a port taken by another process fails the command with exit
code 4.

Examples:
  stackdock start
  stackdock start app db
  stackdock start --project staging`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), args)
		},
	}

	return cmd
}

// runStart is the main logic function for the start command.
func runStart(ctx context.Context, units []string) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	s, err := loadStack(settings)
	if err != nil {
		return err
	}

	cli, err := connectDocker(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	containers, err := stackContainers(ctx, cli, s.Name)
	if err != nil {
		return err
	}
	VerboseLog("Found %d containers for stack %q", len(containers), s.Name)

	order, err := stack.StartupOrder(s)
	if err != nil {
		return model.WrapCLIError(model.ExitValidationFailed,
			fmt.Sprintf("cannot order stack %q", s.Name), err)
	}
	order, err = filterUnits(s, order, units)
	if err != nil {
		return err
	}
	selected := make(map[string]bool, len(order))
	for _, name := range order {
		selected[name] = true
	}

	// Probe the ports recorded in labels, not the descriptor: labels
	// reflect what the deployed containers will actually bind.
	scanner := port.NewScanner()
	var conflicting []int
	for _, c := range containers {
		if c.Status == "running" || !selected[c.UnitName] {
			// A running container already holds its ports.
			continue
		}
		mappings, err := docker.ParsePortLabels(c.Labels)
		if err != nil {
			VerboseLog("Warning: skipping port labels of %q: %v", c.ContainerName, err)
			continue
		}
		for _, pm := range mappings {
			if !scanner.IsPortAvailable(pm.HostPort, pm.Protocol) {
				conflicting = append(conflicting, pm.HostPort)
			}
		}
	}
	if len(conflicting) > 0 {
		return model.NewCLIError(model.ExitPortConflict,
			fmt.Sprintf("port conflict: the following ports are already in use: %v", conflicting))
	}

	groups := docker.GroupByUnit(containers)

	started := 0
	for _, name := range order {
		for _, c := range groups[name] {
			if c.Status == "running" {
				VerboseLog("Container %q already running", c.ContainerName)
				continue
			}
			VerboseLog("Starting container %q (%s)", c.ContainerName, short(c.ContainerID))
			if err := docker.StartUnit(ctx, cli, c.ContainerID); err != nil {
				return err
			}
			started++
		}
	}

	printActionResult(s.Name, "started", started)
	return nil
}
