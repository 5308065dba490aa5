// order.go computes deterministic startup and teardown orderings from
// the stack's depends_on edges.
//
// The edges are startup-order constraints only: a unit is created and
// started after everything it depends on has been started. No readiness
// or health-check semantics are attached — a dependency being "started"
// means its container start call returned, nothing more. This matches
// the source deployment's dependency declarations exactly.
package stack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// StartupOrder returns the stack's unit names sorted so that every unit
// appears after all of its dependencies (dependency-first order). For
// the reference topology this yields db, app, proxy.
//
// The sort is Kahn's algorithm with an alphabetical tie-break, so the
// order is stable across runs regardless of map iteration order.
//
// Returns an error naming the units involved when the dependency graph
// contains a cycle.
func StartupOrder(s *model.Stack) ([]string, error) {
	// in-degree per unit = number of unsatisfied dependencies.
	indegree := make(map[string]int, len(s.Units))
	// dependents[x] = units that declare depends_on x.
	dependents := make(map[string][]string, len(s.Units))

	for _, name := range s.UnitNames() {
		indegree[name] = len(s.Units[name].DependsOn)
		for _, dep := range s.Units[name].DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Seed the ready set with units that depend on nothing.
	var ready []string
	for _, name := range s.UnitNames() {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(s.Units))
	for len(ready) > 0 {
		// Alphabetical tie-break keeps the plan reproducible.
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(s.Units) {
		// Everything not in the order is part of (or downstream of)
		// a cycle. Report the stuck units for diagnosis.
		var stuck []string
		for _, name := range s.UnitNames() {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("dependency cycle involving units: %s", strings.Join(stuck, ", "))
	}

	return order, nil
}

// TeardownOrder returns the reverse of StartupOrder: dependents are
// stopped and removed before the units they depend on, so the proxy goes
// down before the application and the application before the database.
func TeardownOrder(s *model.Stack) ([]string, error) {
	order, err := StartupOrder(s)
	if err != nil {
		return nil, err
	}

	reversed := make([]string, len(order))
	for i, name := range order {
		reversed[len(order)-1-i] = name
	}
	return reversed, nil
}
