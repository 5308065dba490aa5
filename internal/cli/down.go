// Package cli — down.go implements the "stackdock down" command.
//
// The down command tears a deployed stack back down: containers are
// removed in reverse startup order (dependents before their
// dependencies), then the stack's networks are deleted. Teardown is
// idempotent; already-removed resources are not errors.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// downFlags holds the flag values for the down command.
type downFlags struct {
	// volumes also removes anonymous volumes attached to the
	// containers. Named data survives unless this is set.
	volumes bool
}

// NewDownCommand creates the "down" cobra command.
func NewDownCommand() *cobra.Command {
	flags := &downFlags{}

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down the deployed stack",
		Long: `Remove all containers and networks of the deployed stack.

Containers are removed in reverse startup order, so units are gone
before the units they depend on. Containers are killed if still
running; use "stackdock stop" first for a graceful shutdown.

Examples:
  stackdock down
  stackdock down --volumes`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.volumes, "volumes", false, "Also remove anonymous volumes")

	return cmd
}

// runDown is the main logic function for the down command.
func runDown(ctx context.Context, flags *downFlags) error {
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
		// A cycle in the descriptor must not make a deployed stack
		// unremovable; fall back to the descriptor's name order.
		VerboseLog("Warning: falling back to name order: %v", err)
		order = s.UnitNames()
	}

	removed := 0
	for _, name := range order {
		for _, c := range groups[name] {
			VerboseLog("Removing container %q (%s)", c.ContainerName, short(c.ContainerID))
			if err := docker.RemoveUnit(ctx, cli, c.ContainerID, true, flags.volumes); err != nil {
				return err
			}
			removed++
		}
		delete(groups, name)
	}

	// Containers labeled with units the descriptor no longer declares
	// are leftovers from an older deploy; clean them up too.
	for name, leftover := range groups {
		for _, c := range leftover {
			VerboseLog("Removing leftover container %q (unit %q)", c.ContainerName, name)
			if err := docker.RemoveUnit(ctx, cli, c.ContainerID, true, flags.volumes); err != nil {
				return err
			}
			removed++
		}
	}

	for _, name := range networkNames(s) {
		VerboseLog("Removing network %q", name)
		if err := docker.RemoveNetwork(ctx, cli, name); err != nil {
			return err
		}
	}

	printActionResult(s.Name, "removed", removed)
	return nil
}
