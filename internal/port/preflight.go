package port

import (
	"fmt"
	"strings"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// Conflict describes one host port a stack wants that is already taken.
type Conflict struct {
	// Unit is the unit whose mapping conflicts.
	Unit string

	// Mapping is the requested port mapping.
	Mapping model.PortMapping

	// Suggested is a free port the user could remap to. Zero when the
	// scanner found no alternative at all.
	Suggested int
}

func (c Conflict) String() string {
	msg := fmt.Sprintf("unit %q: host port %d/%s is already in use",
		c.Unit, c.Mapping.HostPort, c.Mapping.Protocol)
	if c.Suggested != 0 {
		msg += fmt.Sprintf(" (port %d is free)", c.Suggested)
	}
	return msg
}

// Preflight probes every host port the stack publishes and reports the
// ones already taken, each with a suggested free replacement. Ports are
// only reported, never remapped: the descriptor is the single source of
// truth for what binds where.
//
// Units are visited in name order so repeated runs produce the same
// report, and suggestions within one run never repeat.
func (s *Scanner) Preflight(stack *model.Stack) []Conflict {
	var conflicts []Conflict
	suggested := make(map[string]bool)

	for _, name := range stack.UnitNames() {
		unit := stack.Units[name]
		for _, pm := range unit.Ports {
			proto := pm.Protocol
			if proto == "" {
				proto = "tcp"
			}
			if s.IsPortAvailable(pm.HostPort, proto) {
				continue
			}

			conflicts = append(conflicts, Conflict{
				Unit:      name,
				Mapping:   model.PortMapping{HostPort: pm.HostPort, ContainerPort: pm.ContainerPort, Protocol: proto},
				Suggested: s.suggestPort(pm.HostPort, proto, suggested),
			})
		}
	}

	return conflicts
}

// suggestPort finds a free port to offer in place of a taken one,
// preferring ports just above the requested one and skipping ports
// already suggested earlier in the same preflight.
func (s *Scanner) suggestPort(wanted int, protocol string, taken map[string]bool) int {
	spanEnd := wanted + suggestionSpan
	if spanEnd > maxPort {
		spanEnd = maxPort
	}

	ranges := [][2]int{
		{wanted + 1, spanEnd},
		{dynamicRangeStart, maxPort},
	}
	for _, r := range ranges {
		start := r[0]
		for start <= r[1] {
			found, err := s.FindAvailablePort(start, r[1], protocol)
			if err != nil {
				break
			}
			key := fmt.Sprintf("%d/%s", found, protocol)
			if !taken[key] {
				taken[key] = true
				return found
			}
			// Already offered for another mapping; resume above it.
			start = found + 1
		}
	}
	return 0
}

// FormatConflicts renders a preflight report for error messages, one
// conflict per line.
func FormatConflicts(conflicts []Conflict) string {
	lines := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}
