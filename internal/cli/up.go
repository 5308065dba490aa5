// Package cli — up.go implements the "stackdock up" command.
//
// The up command deploys a stack from its descriptor: validate, check
// build recipes, order units by dependency edges, verify host ports,
// prepare images and networks, then create and start one container per
// unit in startup order. Deploying over an existing stack replaces its
// containers.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/port"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// upFlags holds the flag values for the up command.
type upFlags struct {
	// noPreflight skips the host port availability check. The deploy
	// then fails later, at container start, if a port is taken.
	noPreflight bool

	// noStart creates the containers but leaves them stopped.
	noStart bool
}

// NewUpCommand creates the "up" cobra command.
func NewUpCommand() *cobra.Command {
	flags := &upFlags{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Deploy the stack",
		Long: `Deploy all units of the stack described by the descriptor.

Units start in dependency order: a unit listed in another unit's
depends_on starts first. Ordering governs start sequence only — it does
not wait for a unit to become ready, so units must tolerate their
dependencies still initializing.

Before deploying, the descriptor is validated, build recipes are
checked, and every published host port is probed. A taken port aborts
the deploy with exit code 4 and a suggested free port.

Examples:
  stackdock up
  stackdock up -f deploy/stackdock.yaml
  stackdock up --project staging --no-preflight`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noPreflight, "no-preflight", false, "Skip the host port availability check")
	cmd.Flags().BoolVar(&flags.noStart, "no-start", false, "Create containers without starting them")

	return cmd
}

// runUp is the main logic function for the up command.
func runUp(ctx context.Context, flags *upFlags) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	s, err := loadStack(settings)
	if err != nil {
		return err
	}
	if err := validateStack(s); err != nil {
		return err
	}
	if err := requireCleanRecipes(s); err != nil {
		return err
	}

	order, err := stack.StartupOrder(s)
	if err != nil {
		return model.WrapCLIError(model.ExitValidationFailed,
			fmt.Sprintf("cannot order stack %q", s.Name), err)
	}
	VerboseLog("Startup order: %v", order)

	if settings.Preflight && !flags.noPreflight {
		scanner := port.NewScanner()
		if conflicts := scanner.Preflight(s); len(conflicts) > 0 {
			return model.NewCLIError(model.ExitPortConflict,
				fmt.Sprintf("host port conflict:\n%s", port.FormatConflicts(conflicts)))
		}
		VerboseLog("All published host ports are free")
	}

	cli, err := connectDocker(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	for _, name := range networkNames(s) {
		net := s.Networks[name]
		VerboseLog("Ensuring network %q (driver %s)", net.Name, net.Driver)
		if err := docker.EnsureNetwork(ctx, cli, net.Name, net.Driver); err != nil {
			return err
		}
	}

	baseDir := filepath.Dir(s.SourcePath)
	createdAt := time.Now()

	for _, name := range order {
		unit := s.Units[name]

		ref, err := prepareImage(ctx, cli, s, unit, baseDir)
		if err != nil {
			return err
		}

		VerboseLog("Creating container %q for unit %q", unit.ContainerName, name)
		id, err := docker.CreateUnit(ctx, cli, s.Name, unit, ref, unit.Networks[0], baseDir, createdAt)
		if err != nil {
			return err
		}

		for _, extra := range unit.Networks[1:] {
			if err := docker.ConnectUnit(ctx, cli, extra, id, unit.Name); err != nil {
				return err
			}
		}

		if !flags.noStart {
			VerboseLog("Starting container %q (%s)", unit.ContainerName, short(id))
			if err := docker.StartUnit(ctx, cli, id); err != nil {
				return err
			}
		}
	}

	printUpResult(s, order, !flags.noStart)
	return nil
}

// prepareImage makes a unit's image available: built units get a local
// `docker build`, image units are pulled if absent. Returns the image
// reference the container is created from.
func prepareImage(ctx context.Context, cli *docker.Client, s *model.Stack, unit *model.Unit, baseDir string) (string, error) {
	if unit.Build != nil {
		tag := unit.Build.Tag(s.Name, unit.Name)
		contextDir := filepath.Join(baseDir, unit.Build.Context)
		VerboseLog("Building image %q from %s", tag, contextDir)
		if err := docker.BuildImage(ctx, contextDir, unit.Build.Recipe, tag, unit.Build.Args); err != nil {
			return "", err
		}
		return tag, nil
	}

	progress := io.Discard
	if verbose {
		progress = os.Stderr
	}
	VerboseLog("Ensuring image %q", unit.Image)
	if err := docker.EnsureImage(ctx, cli, unit.Image, progress); err != nil {
		return "", err
	}
	return unit.Image, nil
}

// networkNames returns the stack's network names sorted for
// deterministic creation order.
func networkNames(s *model.Stack) []string {
	names := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// short truncates a container ID for log output.
func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// printUpResult outputs the deploy result in text or JSON format.
func printUpResult(s *model.Stack, order []string, started bool) {
	action := "started"
	if !started {
		action = "created"
	}

	if IsJSONOutput() {
		printUpResultJSON(s, order, action)
		return
	}

	fmt.Printf("Stack %q %s (%d units)\n", s.Name, action, len(order))
	fmt.Println()
	for _, name := range order {
		unit := s.Units[name]
		fmt.Printf("  %-8s %-16s %s\n", name, unit.ContainerName, FormatPorts(unit.Ports))
	}
}

// printUpResultJSON outputs the deploy result as structured JSON.
func printUpResultJSON(s *model.Stack, order []string, action string) {
	type unitJSON struct {
		Name          string   `json:"name"`
		ContainerName string   `json:"containerName"`
		Ports         []string `json:"ports"`
	}

	type resultJSON struct {
		Stack  string     `json:"stack"`
		Action string     `json:"action"`
		Units  []unitJSON `json:"units"`
	}

	result := resultJSON{
		Stack:  s.Name,
		Action: action,
		Units:  make([]unitJSON, 0, len(order)),
	}

	for _, name := range order {
		unit := s.Units[name]
		ports := make([]string, 0, len(unit.Ports))
		for _, pm := range unit.Ports {
			ports = append(ports, pm.String())
		}
		result.Units = append(result.Units, unitJSON{
			Name:          name,
			ContainerName: unit.ContainerName,
			Ports:         ports,
		})
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}
