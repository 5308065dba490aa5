// Package cli — stop.go implements the "stackdock stop" command.
//
// The stop command stops a running stack without removing anything.
// Containers stop in reverse startup order, so units go down before
// the units they depend on. Container state and data are preserved for
// a later "stackdock start".
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [unit...]",
		Short: "Stop the running stack",
		Long: `Stop containers of the deployed stack without removing them.

With no arguments the whole stack is stopped; naming units stops only
those. Containers stop in reverse dependency order. Each container gets
the Docker daemon's graceful shutdown (SIGTERM, then SIGKILL after the
default timeout).

Examples:
  stackdock stop
  stackdock stop proxy
  stackdock stop --project staging`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), args)
		},
	}

	return cmd
}

// runStop is the main logic function for the stop command.
func runStop(ctx context.Context, units []string) error {
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

	groups := docker.GroupByUnit(containers)

	order, err := stack.TeardownOrder(s)
	if err != nil {
		VerboseLog("Warning: falling back to name order: %v", err)
		order = s.UnitNames()
	}
	order, err = filterUnits(s, order, units)
	if err != nil {
		return err
	}

	stopped := 0
	for _, name := range order {
		for _, c := range groups[name] {
			if c.Status != "running" {
				VerboseLog("Container %q already stopped", c.ContainerName)
				continue
			}
			VerboseLog("Stopping container %q (%s)", c.ContainerName, short(c.ContainerID))
			if err := docker.StopUnit(ctx, cli, c.ContainerID); err != nil {
				return err
			}
			stopped++
		}
	}

	printActionResult(s.Name, "stopped", stopped)
	return nil
}
