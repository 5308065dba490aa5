// Package cli — ps.go implements the "stackdock ps" command.
//
// The ps command displays deployed stacks by querying Docker for
// containers with the "stackdock.managed-by=stackdock" label, including
// stopped ones. Containers are grouped per stack and unit; each unit
// carries its aggregate state (running when any of its containers
// runs, stopped otherwise) next to the raw per-container status. Output
// is a text table or JSON, depending on the --json flag.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/model"
)

// psFlags holds the flag values for the ps command.
type psFlags struct {
	// all lists every managed stack on the host instead of only the
	// one named by the descriptor/--project.
	all bool
}

// NewPsCommand creates the "ps" cobra command.
func NewPsCommand() *cobra.Command {
	flags := &psFlags{}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Show deployed stack containers",
		Long: `Show the containers of the deployed stack, including stopped ones.

With --all, every stackdock-managed container on the host is listed,
across all stacks.

Examples:
  stackdock ps
  stackdock ps --all
  stackdock ps --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.all, "all", "a", false, "List containers of all stacks")

	return cmd
}

// runPs is the main logic function for the ps command.
func runPs(ctx context.Context, flags *psFlags) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	project := ""
	if !flags.all {
		s, err := loadStack(settings)
		if err != nil {
			return err
		}
		project = s.Name
	}

	cli, err := connectDocker(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	containers, err := docker.ListManagedContainers(ctx, cli, project)
	if err != nil {
		return err
	}
	VerboseLog("Found %d managed containers", len(containers))

	printPsResult(unitRows(containers))
	return nil
}

// psUnitRow is one unit of one stack with its aggregate state and the
// containers backing it.
type psUnitRow struct {
	Stack      string
	Unit       string
	State      model.UnitStatus
	Containers []model.ContainerInfo
}

// unitRows groups containers per stack and unit and derives each
// unit's aggregate state. Rows are sorted by stack then unit, and
// containers within a row by name, for stable output. Containers
// without a unit label cannot be attributed and are dropped.
func unitRows(containers []model.ContainerInfo) []psUnitRow {
	byStack := make(map[string][]model.ContainerInfo)
	for _, c := range containers {
		byStack[c.Project] = append(byStack[c.Project], c)
	}

	stacks := make([]string, 0, len(byStack))
	for name := range byStack {
		stacks = append(stacks, name)
	}
	sort.Strings(stacks)

	var rows []psUnitRow
	for _, stackName := range stacks {
		groups := docker.GroupByUnit(byStack[stackName])

		units := make([]string, 0, len(groups))
		for name := range groups {
			units = append(units, name)
		}
		sort.Strings(units)

		for _, unitName := range units {
			group := groups[unitName]
			sort.Slice(group, func(i, j int) bool {
				return group[i].ContainerName < group[j].ContainerName
			})
			rows = append(rows, psUnitRow{
				Stack:      stackName,
				Unit:       unitName,
				State:      docker.UnitState(group),
				Containers: group,
			})
		}
	}
	return rows
}

// printPsResult outputs the unit rows in text or JSON format.
func printPsResult(rows []psUnitRow) {
	if IsJSONOutput() {
		printPsResultJSON(rows)
	} else {
		printPsResultText(rows)
	}
}

// psContainerJSON is the JSON output structure for one container.
type psContainerJSON struct {
	ContainerName string   `json:"containerName"`
	ContainerID   string   `json:"containerId"`
	Status        string   `json:"status"`
	Ports         []string `json:"ports"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// psUnitJSON is the JSON output structure for one unit of one stack.
type psUnitJSON struct {
	Stack      string            `json:"stack"`
	Unit       string            `json:"unit"`
	State      string            `json:"state"`
	Containers []psContainerJSON `json:"containers"`
}

// printPsResultJSON outputs the unit rows as structured JSON under a
// top-level "units" key.
func printPsResultJSON(rows []psUnitRow) {
	type resultJSON struct {
		Units []psUnitJSON `json:"units"`
	}

	// An empty slice keeps the JSON output as [] instead of null.
	result := resultJSON{Units: make([]psUnitJSON, 0, len(rows))}

	for _, row := range rows {
		entry := psUnitJSON{
			Stack:      row.Stack,
			Unit:       row.Unit,
			State:      row.State.String(),
			Containers: make([]psContainerJSON, 0, len(row.Containers)),
		}
		for _, c := range row.Containers {
			cj := psContainerJSON{
				ContainerName: c.ContainerName,
				ContainerID:   c.ContainerID,
				Status:        c.Status,
				Ports:         labelPortStrings(c),
			}
			if !c.CreatedAt.IsZero() {
				cj.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339)
			}
			entry.Containers = append(entry.Containers, cj)
		}
		result.Units = append(result.Units, entry)
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printPsResultText outputs the unit rows as a text table:
//
//	STACK      UNIT     STATE     CONTAINER      STATUS    PORTS
//	tokenapi   app      running   fastapi-app    running   8000:8000
//	tokenapi   db       stopped   mongodb        exited    27018:27017
func printPsResultText(rows []psUnitRow) {
	if len(rows) == 0 {
		fmt.Println("No deployed stacks found.")
		return
	}

	fmt.Printf("%-12s %-10s %-8s %-20s %-10s %s\n",
		"STACK", "UNIT", "STATE", "CONTAINER", "STATUS", "PORTS")

	for _, row := range rows {
		for _, c := range row.Containers {
			ports := labelPortStrings(c)
			portsStr := "-"
			if len(ports) > 0 {
				portsStr = strings.Join(ports, ",")
			}
			fmt.Printf("%-12s %-10s %-8s %-20s %-10s %s\n",
				row.Stack, row.Unit, row.State, c.ContainerName, c.Status, portsStr)
		}
	}
}

// labelPortStrings reconstructs a container's port mappings from its
// labels as "host:container" strings, sorted by host port.
func labelPortStrings(c model.ContainerInfo) []string {
	mappings, err := docker.ParsePortLabels(c.Labels)
	if err != nil {
		return nil
	}
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].HostPort < mappings[j].HostPort
	})

	ports := make([]string, 0, len(mappings))
	for _, pm := range mappings {
		ports = append(ports, strconv.Itoa(pm.HostPort)+":"+strconv.Itoa(pm.ContainerPort))
	}
	return ports
}

// FormatPorts converts a unit's port mappings into a comma-separated
// "host:container[/proto]" string for table display. Returns "-" when
// the unit publishes nothing.
func FormatPorts(mappings []model.PortMapping) string {
	if len(mappings) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(mappings))
	for _, pm := range mappings {
		parts = append(parts, pm.String())
	}
	return strings.Join(parts, ",")
}
