// Package cli — check.go implements the "stackdock check" command.
//
// The check command validates a stack without touching Docker: the
// descriptor's structural rules, cross-unit rules (unique container
// names, no host port collisions, sound dependency edges), and every
// built unit's recipe (exposed port versus bind port, start command
// executable, tuning flags). With --ports it additionally probes the
// published host ports on this machine.
//
// Defects are reported, never fixed; the descriptor and recipes stay
// untouched.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/port"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// checkFlags holds the flag values for the check command.
type checkFlags struct {
	// ports also probes published host ports for availability. Off by
	// default so check stays machine-independent.
	ports bool
}

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the stack descriptor and build recipes",
		Long: `Validate the stack without deploying anything.

Checks performed:
  - descriptor syntax and structure (names, sources, ports, mounts)
  - cross-unit rules: unique container names, no host port collisions,
    dependency edges that resolve and contain no cycles
  - required environment variables are present and non-empty
  - build recipes: the declared port matches the start command's bind
    port, and the start executable exists (a near-miss of a known
    server name is flagged as a probable typo)

Problems are reported with their location; nothing is modified.

Exit codes: 0 all checks passed, 5 descriptor validation failed,
7 a build recipe failed its checks.

Examples:
  stackdock check
  stackdock check --ports
  stackdock check --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.ports, "ports", false, "Also probe published host ports on this machine")

	return cmd
}

// checkReport collects every finding of one check run.
type checkReport struct {
	Stack      string   `json:"stack"`
	Descriptor []string `json:"descriptor"`
	Recipes    []string `json:"recipes"`
	Ports      []string `json:"ports,omitempty"`
	UsedPorts  []int    `json:"usedPorts,omitempty"`
	Warnings   []string `json:"warnings"`
}

// runCheck is the main logic function for the check command.
func runCheck(_ context.Context, flags *checkFlags) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	s, err := loadStack(settings)
	if err != nil {
		return err
	}

	report := checkReport{
		Stack:      s.Name,
		Descriptor: []string{},
		Recipes:    []string{},
		Warnings:   []string{},
	}

	for _, f := range stack.Validate(s) {
		if f.Warning {
			report.Warnings = append(report.Warnings, f.Error())
		} else {
			report.Descriptor = append(report.Descriptor, f.Error())
		}
	}

	// Recipe checks run even when the descriptor has findings; a full
	// report beats stopping at the first failing layer.
	findings, err := checkRecipes(s)
	if err != nil {
		return err
	}
	for _, f := range findings {
		if f.Warning {
			report.Warnings = append(report.Warnings, f.String())
		} else {
			report.Recipes = append(report.Recipes, f.String())
		}
	}

	if flags.ports {
		scanner := port.NewScanner()
		for _, c := range scanner.Preflight(s) {
			report.Ports = append(report.Ports, c.String())
		}
		report.UsedPorts = usedHostPorts(scanner, s)
	}

	printCheckReport(&report, flags.ports)

	switch {
	case len(report.Descriptor) > 0:
		return model.NewCLIError(model.ExitValidationFailed,
			fmt.Sprintf("stack %q failed validation", s.Name))
	case len(report.Recipes) > 0:
		return model.NewCLIError(model.ExitRecipeError,
			fmt.Sprintf("stack %q has build recipe defects", s.Name))
	case len(report.Ports) > 0:
		return model.NewCLIError(model.ExitPortConflict,
			fmt.Sprintf("stack %q has host port conflicts", s.Name))
	}
	return nil
}

// usedHostPorts scans the span between the lowest and highest host
// port the stack publishes and returns the ports already in use there,
// giving the report a picture of the neighborhood the stack is about
// to bind into. Nil when the stack publishes nothing.
func usedHostPorts(scanner *port.Scanner, s *model.Stack) []int {
	lo, hi := 0, 0
	for _, name := range s.UnitNames() {
		for _, pm := range s.Units[name].Ports {
			if lo == 0 || pm.HostPort < lo {
				lo = pm.HostPort
			}
			if pm.HostPort > hi {
				hi = pm.HostPort
			}
		}
	}
	if lo == 0 {
		return nil
	}
	return scanner.GetUsedPorts(lo, hi)
}

// printCheckReport outputs the findings in text or JSON format.
// The report goes to stdout in both formats; the process exit code
// carries the pass/fail signal.
func printCheckReport(report *checkReport, portsChecked bool) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	printFindingSection("Descriptor", report.Descriptor)
	printFindingSection("Recipes", report.Recipes)
	if portsChecked {
		printFindingSection("Ports", report.Ports)
		if len(report.UsedPorts) > 0 {
			used := make([]string, 0, len(report.UsedPorts))
			for _, p := range report.UsedPorts {
				used = append(used, strconv.Itoa(p))
			}
			fmt.Printf("Host ports in use: %s\n", strings.Join(used, ", "))
		}
	}
	printFindingSection("Warnings", report.Warnings)

	if len(report.Descriptor) == 0 && len(report.Recipes) == 0 && len(report.Ports) == 0 {
		fmt.Printf("Stack %q passed all checks", report.Stack)
		if len(report.Warnings) > 0 {
			fmt.Printf(" (%d warnings)", len(report.Warnings))
		}
		fmt.Println()
	}
}

// printFindingSection prints one titled list of findings, skipping
// empty sections.
func printFindingSection(title string, findings []string) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, f := range findings {
		fmt.Printf("  %s\n", f)
	}
}
