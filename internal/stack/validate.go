// validate.go implements the configuration-level invariants of a stack
// descriptor. None of these checks require a Docker daemon — they operate
// purely on the parsed model, so `stackdock check` is usable in CI.
//
// Checks cover: container-name uniqueness, published host-port uniqueness,
// dependency edge integrity (targets exist, graph is acyclic), image/build
// exclusivity, network references, and required environment presence.
package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// ValidationError represents a specific validation failure in a stack
// descriptor.
type ValidationError struct {
	// Unit is the unit the finding applies to. Empty for stack-level
	// findings.
	Unit string

	// Field is the descriptor field that failed validation
	// (e.g. "ports", "depends_on").
	Field string

	// Message describes what is wrong with the field value.
	Message string

	// Warning marks advisory findings that do not fail validation
	// (e.g. a mount source missing on this host).
	Warning bool
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	scope := e.Field
	if e.Unit != "" {
		scope = e.Unit + "." + e.Field
	}
	return fmt.Sprintf("stack validation error: %s: %s", scope, e.Message)
}

// String renders the finding for CLI output, prefixed by severity.
func (e *ValidationError) String() string {
	severity := "error"
	if e.Warning {
		severity = "warning"
	}
	scope := e.Field
	if e.Unit != "" {
		scope = e.Unit + "." + e.Field
	}
	return fmt.Sprintf("%s: %s: %s", severity, scope, e.Message)
}

// HasErrors reports whether any finding in the list is a hard error
// (as opposed to a warning).
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if !f.Warning {
			return true
		}
	}
	return false
}

// Validate performs all descriptor-level checks on a stack and returns
// the list of findings (empty list = valid configuration).
//
// Checks performed:
//   - unit and container names are well-formed
//   - each declared unit has a unique container name
//   - no two units publish the same host port (per protocol), and no
//     unit publishes the same host port twice
//   - units declare an image or a build source, not both, not neither
//   - every depends_on target names a declared unit and is not the unit
//     itself
//   - the dependency graph is acyclic
//   - every referenced network is declared (or is the implicit default)
//   - every key in requires_env is present in the unit's environment
//   - mount sources exist on this host (warning only — descriptors are
//     routinely validated on machines other than the deploy target)
func Validate(s *model.Stack) []ValidationError {
	var findings []ValidationError

	findings = append(findings, validateNames(s)...)
	findings = append(findings, validateSources(s)...)
	findings = append(findings, validatePorts(s)...)
	findings = append(findings, validateDependencies(s)...)
	findings = append(findings, validateNetworks(s)...)
	findings = append(findings, validateEnvPresence(s)...)
	findings = append(findings, validateMounts(s)...)

	return findings
}

// validateNames checks unit name syntax and container-name uniqueness.
func validateNames(s *model.Stack) []ValidationError {
	var findings []ValidationError

	// Track container names to detect duplicates. Key: container name,
	// value: unit that claimed it first.
	seen := make(map[string]string, len(s.Units))

	for _, name := range s.UnitNames() {
		unit := s.Units[name]

		if err := model.ValidateUnitName(name); err != nil {
			findings = append(findings, ValidationError{
				Unit: name, Field: "name", Message: err.Error(),
			})
		}
		if err := model.ValidateUnitName(unit.ContainerName); err != nil {
			findings = append(findings, ValidationError{
				Unit: name, Field: "container_name", Message: err.Error(),
			})
		}

		if owner, dup := seen[unit.ContainerName]; dup {
			findings = append(findings, ValidationError{
				Unit:  name,
				Field: "container_name",
				Message: fmt.Sprintf("container name %q is already used by unit %q",
					unit.ContainerName, owner),
			})
			continue
		}
		seen[unit.ContainerName] = name
	}

	return findings
}

// validateSources checks the image-XOR-build rule.
func validateSources(s *model.Stack) []ValidationError {
	var findings []ValidationError

	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		hasImage := unit.Image != ""
		hasBuild := unit.Build != nil

		switch {
		case hasImage && hasBuild:
			findings = append(findings, ValidationError{
				Unit: name, Field: "image",
				Message: "image and build are mutually exclusive",
			})
		case !hasImage && !hasBuild:
			findings = append(findings, ValidationError{
				Unit: name, Field: "image",
				Message: "one of image or build is required",
			})
		case hasBuild && unit.Build.Context == "":
			findings = append(findings, ValidationError{
				Unit: name, Field: "build.context",
				Message: "build context is required",
			})
		}
	}

	return findings
}

// validatePorts checks per-mapping validity and cross-unit host-port
// uniqueness. Different protocols may share a port number
// (e.g. 53/tcp and 53/udp).
func validatePorts(s *model.Stack) []ValidationError {
	var findings []ValidationError

	// Key: "hostPort/protocol", value: owning unit.
	seen := make(map[string]string)

	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		for i := range unit.Ports {
			pm := unit.Ports[i]
			if err := pm.Validate(); err != nil {
				findings = append(findings, ValidationError{
					Unit: name, Field: "ports", Message: err.Error(),
				})
				continue
			}

			key := fmt.Sprintf("%d/%s", pm.HostPort, pm.Protocol)
			if owner, dup := seen[key]; dup {
				findings = append(findings, ValidationError{
					Unit:  name,
					Field: "ports",
					Message: fmt.Sprintf("host port %s is already published by unit %q",
						key, owner),
				})
				continue
			}
			seen[key] = name
		}
	}

	return findings
}

// validateDependencies checks that depends_on edges point at declared
// units and that the resulting graph has no cycles. The cycle check
// reuses StartupOrder (order.go) so the two can never disagree.
func validateDependencies(s *model.Stack) []ValidationError {
	var findings []ValidationError

	valid := true
	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		for _, dep := range unit.DependsOn {
			if dep == name {
				findings = append(findings, ValidationError{
					Unit: name, Field: "depends_on",
					Message: "unit cannot depend on itself",
				})
				valid = false
				continue
			}
			if _, ok := s.Units[dep]; !ok {
				findings = append(findings, ValidationError{
					Unit:  name,
					Field: "depends_on",
					Message: fmt.Sprintf("depends on undeclared unit %q", dep),
				})
				valid = false
			}
		}
	}

	// Only run the cycle check on a structurally sound graph; dangling
	// edges would produce confusing double reports.
	if valid {
		if _, err := StartupOrder(s); err != nil {
			findings = append(findings, ValidationError{
				Field:   "depends_on",
				Message: err.Error(),
			})
		}
	}

	return findings
}

// validateNetworks checks that every network a unit joins is declared.
// The stack's implicit default network counts as declared.
func validateNetworks(s *model.Stack) []ValidationError {
	var findings []ValidationError

	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		for _, net := range unit.Networks {
			if net == s.DefaultNetworkName() {
				continue
			}
			if _, ok := s.Networks[net]; !ok {
				findings = append(findings, ValidationError{
					Unit:  name,
					Field: "networks",
					Message: fmt.Sprintf("references undeclared network %q", net),
				})
			}
		}
	}

	return findings
}

// validateEnvPresence enforces the environment-variable presence
// contract: every key a unit lists in requires_env must be declared with
// a non-empty value. The application unit of the reference topology
// requires its document-database URL and its RPC endpoint URL; neither
// has a default anywhere in the deployment.
func validateEnvPresence(s *model.Stack) []ValidationError {
	var findings []ValidationError

	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		for _, key := range unit.RequiresEnv {
			value, ok := unit.EnvValue(key)
			if !ok {
				findings = append(findings, ValidationError{
					Unit:  name,
					Field: "environment",
					Message: fmt.Sprintf("required environment variable %q is not set", key),
				})
				continue
			}
			if strings.TrimSpace(value) == "" {
				findings = append(findings, ValidationError{
					Unit:  name,
					Field: "environment",
					Message: fmt.Sprintf("required environment variable %q is empty", key),
				})
			}
		}
	}

	return findings
}

// validateMounts reports missing mount sources as warnings. Relative
// sources resolve against the descriptor's directory.
func validateMounts(s *model.Stack) []ValidationError {
	var findings []ValidationError

	baseDir := filepath.Dir(s.SourcePath)
	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		for _, m := range unit.Mounts {
			src := m.Source
			if !filepath.IsAbs(src) {
				src = filepath.Join(baseDir, src)
			}
			if _, err := os.Stat(src); os.IsNotExist(err) {
				findings = append(findings, ValidationError{
					Unit:    name,
					Field:   "volumes",
					Message: fmt.Sprintf("mount source %s does not exist on this host", m.Source),
					Warning: true,
				})
			}
		}
	}

	return findings
}
