// render.go serializes a stack back into compose-format YAML.
//
// The rendered document is the canonical, fully-defaulted view of the
// descriptor: container names, protocols, and network memberships are all
// explicit. It is accepted by docker compose as-is, which gives operators
// an escape hatch into standard tooling.
package stack

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// composeDocument is the YAML structure of the rendered output.
// Field names follow the compose file format.
type composeDocument struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks,omitempty"`
}

// composeService is one rendered service entry.
type composeService struct {
	Image         string            `yaml:"image,omitempty"`
	Build         *composeBuild     `yaml:"build,omitempty"`
	ContainerName string            `yaml:"container_name"`
	Ports         []string          `yaml:"ports,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Networks      []string          `yaml:"networks,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Restart       string            `yaml:"restart,omitempty"`
	Command       []string          `yaml:"command,omitempty"`
}

// composeBuild is the rendered build source.
type composeBuild struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile,omitempty"`
	Args       map[string]string `yaml:"args,omitempty"`
}

// composeNetwork is one rendered network entry.
type composeNetwork struct {
	Driver string `yaml:"driver,omitempty"`
}

// Render produces compose-format YAML for the stack, prefixed with a
// generated-file header. The output is deterministic: services and
// networks serialize as maps whose keys yaml.v3 emits sorted, and slice
// fields preserve descriptor order.
func Render(s *model.Stack) ([]byte, error) {
	doc := composeDocument{
		Name:     s.Name,
		Services: make(map[string]composeService, len(s.Units)),
		Networks: make(map[string]composeNetwork, len(s.Networks)),
	}

	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		svc := composeService{
			Image:         unit.Image,
			ContainerName: unit.ContainerName,
			Networks:      unit.Networks,
			DependsOn:     unit.DependsOn,
			Restart:       unit.Restart,
			Command:       unit.Command,
		}

		if unit.Build != nil {
			svc.Build = &composeBuild{
				Context:    unit.Build.Context,
				Dockerfile: unit.Build.Recipe,
				Args:       unit.Build.Args,
			}
		}

		for i := range unit.Ports {
			svc.Ports = append(svc.Ports, unit.Ports[i].String())
		}

		if len(unit.Env) > 0 {
			svc.Environment = make(map[string]string, len(unit.Env))
			for _, e := range unit.Env {
				svc.Environment[e.Key] = e.Value
			}
		}

		for _, m := range unit.Mounts {
			svc.Volumes = append(svc.Volumes, m.String())
		}

		doc.Services[name] = svc
	}

	netNames := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		netNames = append(netNames, name)
	}
	sort.Strings(netNames)
	for _, name := range netNames {
		doc.Networks[name] = composeNetwork{Driver: s.Networks[name].Driver}
	}

	body, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize stack %q: %w", s.Name, err)
	}

	header := fmt.Sprintf("# Rendered by stackdock from %s\n# Edits belong in the stack descriptor, not here\n", s.SourcePath)
	return append([]byte(header), body...), nil
}
