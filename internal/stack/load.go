// Package stack handles loading, validation, and ordering of stack
// descriptors.
//
// A stack descriptor declares the deployable units of a project — image or
// build source, published ports, environment, mounts, network membership,
// and startup dependency edges — in a compose-style format. Descriptors
// are written in YAML (stackdock.yaml) or JSON with comments
// (stackdock.json); JSONC support uses github.com/tidwall/jsonc to strip
// comments before parsing with the standard encoding/json library.
//
// Key responsibilities:
//   - Locate the descriptor in standard paths
//   - Parse the wire format into the model.Stack domain type
//   - Expand ${VAR} references from the process environment
//   - Apply defaults (container names, networks, protocols)
package stack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// rawStack is the wire format of a stack descriptor. It mirrors the
// compose subset the reference deployment actually uses; unknown fields
// are silently ignored during parsing.
//
// Several fields use flexible types because the format allows multiple
// shapes for the same field (environment as a map or a KEY=VALUE list,
// command as a string or a list).
type rawStack struct {
	// Name is the project name. Required.
	Name string `yaml:"name" json:"name"`

	// Services maps unit names to their declarations.
	Services map[string]rawService `yaml:"services" json:"services"`

	// Networks maps network names to their declarations. A nil entry
	// (bare "backend:" in YAML) means a bridge network with defaults.
	Networks map[string]*rawNetwork `yaml:"networks,omitempty" json:"networks,omitempty"`
}

// rawService is one unit declaration in the wire format.
type rawService struct {
	// Image is a pre-built image reference. Mutually exclusive with Build.
	Image string `yaml:"image,omitempty" json:"image,omitempty"`

	// Build is the local build source. Either a bare context string or
	// a {context, dockerfile, args} object; normalized by toBuildSpec.
	Build rawBuild `yaml:"build,omitempty" json:"build,omitempty"`

	// ContainerName overrides the default "<project>-<unit>" name.
	ContainerName string `yaml:"container_name,omitempty" json:"container_name,omitempty"`

	// Ports lists published ports as "host:container[/proto]" strings.
	Ports []string `yaml:"ports,omitempty" json:"ports,omitempty"`

	// Environment is either a map of key: value or a list of KEY=VALUE
	// strings. List order is preserved; map keys are sorted for
	// deterministic injection order.
	Environment envBlock `yaml:"environment,omitempty" json:"environment,omitempty"`

	// RequiresEnv names environment keys that must be present for this
	// unit to be considered correctly configured.
	RequiresEnv []string `yaml:"requires_env,omitempty" json:"requires_env,omitempty"`

	// Volumes lists bind mounts as "source:target[:ro]" strings.
	Volumes []string `yaml:"volumes,omitempty" json:"volumes,omitempty"`

	// Networks lists the networks this unit joins.
	Networks []string `yaml:"networks,omitempty" json:"networks,omitempty"`

	// DependsOn lists units that must start before this one.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Restart is the container restart policy.
	Restart string `yaml:"restart,omitempty" json:"restart,omitempty"`

	// Command overrides the image's start command. String or list form.
	Command commandBlock `yaml:"command,omitempty" json:"command,omitempty"`
}

// rawNetwork is a network declaration in the wire format.
type rawNetwork struct {
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`
}

// rawBuild accepts both the shorthand string form ("./web") and the
// object form ({context: ./web, dockerfile: Dockerfile}).
type rawBuild struct {
	Context    string            `yaml:"context,omitempty" json:"context,omitempty"`
	Dockerfile string            `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
	Args       map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// UnmarshalYAML handles the scalar shorthand: `build: ./web` is
// equivalent to `build: {context: ./web}`.
func (b *rawBuild) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		b.Context = value.Value
		return nil
	}

	// Alias type avoids infinite recursion into this method.
	type plain rawBuild
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = rawBuild(p)
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSONC descriptors.
func (b *rawBuild) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Context)
	}

	type plain rawBuild
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = rawBuild(p)
	return nil
}

// isZero reports whether no build source was declared.
func (b rawBuild) isZero() bool {
	return b.Context == "" && b.Dockerfile == "" && len(b.Args) == 0
}

// envBlock accepts the two environment shapes the format allows:
// a mapping (KEY: value) or a sequence of "KEY=VALUE" strings.
type envBlock []model.EnvVar

// UnmarshalYAML decodes either environment shape into an ordered list.
// Mapping keys are sorted so descriptor reformatting cannot change the
// injection order observed by the container.
func (e *envBlock) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		*e = envMapToList(m)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		vars, err := envListToVars(list)
		if err != nil {
			return err
		}
		*e = vars
		return nil
	default:
		return fmt.Errorf("environment must be a mapping or a list of KEY=VALUE strings")
	}
}

// UnmarshalJSON mirrors UnmarshalYAML for JSONC descriptors.
func (e *envBlock) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*e = envMapToList(m)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	vars, err := envListToVars(list)
	if err != nil {
		return err
	}
	*e = vars
	return nil
}

// envMapToList converts an environment mapping to a sorted EnvVar list.
func envMapToList(m map[string]string) []model.EnvVar {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]model.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, model.EnvVar{Key: k, Value: m[k]})
	}
	return vars
}

// envListToVars parses KEY=VALUE entries, preserving order.
// A bare "KEY" entry takes its value from the process environment,
// matching compose's pass-through behavior.
func envListToVars(list []string) ([]model.EnvVar, error) {
	vars := make([]model.EnvVar, 0, len(list))
	for _, entry := range list {
		key, value, found := strings.Cut(entry, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid environment entry %q", entry)
		}
		if !found {
			value = os.Getenv(key)
		}
		vars = append(vars, model.EnvVar{Key: key, Value: value})
	}
	return vars, nil
}

// commandBlock accepts a command as either a single shell string or an
// argv list.
type commandBlock []string

// UnmarshalYAML decodes either command shape. The string form is kept
// as a single element and interpreted by the image's shell.
func (c *commandBlock) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = commandBlock{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*c = commandBlock(list)
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSONC descriptors.
func (c *commandBlock) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = commandBlock{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*c = commandBlock(list)
	return nil
}

// descriptorNames are the standard descriptor file names probed by
// FindDescriptor, in priority order.
var descriptorNames = []string{
	"stackdock.yaml",
	"stackdock.yml",
	"stackdock.json",
}

// FindDescriptor searches for a stack descriptor in the standard
// locations within a project directory.
//
// Returns the absolute path to the first found file, or a CLIError with
// ExitDescriptorNotFound if no standard name exists in the directory.
func FindDescriptor(dir string) (string, error) {
	for _, name := range descriptorNames {
		path := filepath.Join(dir, name)
		// os.Stat checks existence without reading contents.
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitDescriptorNotFound,
		fmt.Sprintf("stack descriptor not found in %s (searched %s)", dir, strings.Join(descriptorNames, ", ")),
	)
}

// Load reads a stack descriptor file and converts it into the domain
// model. The format is chosen by extension: .yaml/.yml parse as YAML,
// .json parses as JSONC (comments and trailing commas allowed).
//
// ${VAR} and $VAR references in the raw bytes are expanded from the
// process environment before parsing, so interpolation applies uniformly
// to every string field. An unset variable expands to the empty string,
// which the environment-presence validation then surfaces.
//
// Returns a CLIError with ExitDescriptorNotFound if the file does not
// exist.
func Load(path string) (*model.Stack, error) {
	return LoadProject(path, "")
}

// LoadProject is Load with a project name override. When project is
// non-empty it replaces the descriptor's name before defaults are
// derived, so default container names and the default network follow
// the override. Used for deploying the same descriptor under several
// project names side by side.
func LoadProject(path, project string) (*model.Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitDescriptorNotFound,
				fmt.Sprintf("stack descriptor not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read stack descriptor: %w", err)
	}

	// Expand environment references before parsing. os.Expand handles
	// both ${VAR} and $VAR forms; "$$" escapes a literal dollar sign.
	expanded := expandEnv(string(data))

	var raw rawStack
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		// Strip JSONC comments and trailing commas, then parse with
		// the standard library.
		clean := jsonc.ToJSON([]byte(expanded))
		if err := json.Unmarshal(clean, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse stack descriptor %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse stack descriptor %s: %w", path, err)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	return buildStack(&raw, abs, project)
}

// expandEnv expands ${VAR}/$VAR from the process environment, treating
// "$$" as an escaped literal dollar.
func expandEnv(s string) string {
	const escape = "\x00stackdock-dollar\x00"
	s = strings.ReplaceAll(s, "$$", escape)
	s = os.Expand(s, os.Getenv)
	return strings.ReplaceAll(s, escape, "$")
}

// buildStack converts the wire format into the domain model, applying
// defaults: container names, the implicit default network, and the
// default recipe file name for built units.
func buildStack(raw *rawStack, sourcePath, project string) (*model.Stack, error) {
	if raw.Name == "" {
		return nil, fmt.Errorf("stack descriptor %s: name is required", sourcePath)
	}
	if len(raw.Services) == 0 {
		return nil, fmt.Errorf("stack descriptor %s: at least one service is required", sourcePath)
	}
	if project == "" {
		project = raw.Name
	}

	stack := &model.Stack{
		Name:       project,
		Units:      make(map[string]*model.Unit, len(raw.Services)),
		Networks:   make(map[string]model.Network, len(raw.Networks)+1),
		SourcePath: sourcePath,
	}

	for name, net := range raw.Networks {
		driver := "bridge"
		if net != nil && net.Driver != "" {
			driver = net.Driver
		}
		stack.Networks[name] = model.Network{Name: name, Driver: driver}
	}

	declaredDefault := false
	for name, svc := range raw.Services {
		unit, err := buildUnit(project, name, &svc)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		if len(unit.Networks) == 0 {
			unit.Networks = []string{stack.DefaultNetworkName()}
			declaredDefault = true
		}
		stack.Units[name] = unit
	}

	// Materialize the implicit network only when some unit relies on it.
	if declaredDefault {
		if _, ok := stack.Networks[stack.DefaultNetworkName()]; !ok {
			stack.Networks[stack.DefaultNetworkName()] = model.Network{
				Name:   stack.DefaultNetworkName(),
				Driver: "bridge",
			}
		}
	}

	return stack, nil
}

// buildUnit converts one service declaration, parsing port and volume
// strings into their structured forms.
func buildUnit(project, name string, svc *rawService) (*model.Unit, error) {
	unit := &model.Unit{
		Name:          name,
		ContainerName: svc.ContainerName,
		Image:         svc.Image,
		Env:           []model.EnvVar(svc.Environment),
		RequiresEnv:   svc.RequiresEnv,
		Networks:      svc.Networks,
		DependsOn:     svc.DependsOn,
		Restart:       svc.Restart,
		Command:       []string(svc.Command),
	}

	if unit.ContainerName == "" {
		unit.ContainerName = project + "-" + name
	}

	if !svc.Build.isZero() {
		recipe := svc.Build.Dockerfile
		if recipe == "" {
			recipe = "Dockerfile"
		}
		unit.Build = &model.BuildSpec{
			Context: svc.Build.Context,
			Recipe:  recipe,
			Args:    svc.Build.Args,
		}
	}

	for _, p := range svc.Ports {
		pm, err := ParsePortMapping(p)
		if err != nil {
			return nil, err
		}
		unit.Ports = append(unit.Ports, pm)
	}

	for _, v := range svc.Volumes {
		m, err := parseMount(v)
		if err != nil {
			return nil, err
		}
		unit.Mounts = append(unit.Mounts, m)
	}

	return unit, nil
}

// ParsePortMapping parses a published-port string. Accepted forms:
//
//	"8082:80"       host 8082 → container 80, tcp
//	"8000:8000/tcp" explicit protocol
//	"5353:53/udp"   udp mapping
//	"8000"          host and container port equal
func ParsePortMapping(s string) (model.PortMapping, error) {
	spec := s
	proto := "tcp"
	if base, p, found := strings.Cut(spec, "/"); found {
		spec = base
		proto = p
	}

	var pm model.PortMapping
	pm.Protocol = proto

	host, cont, found := strings.Cut(spec, ":")
	if !found {
		cont = host
	}

	hostPort, err := strconv.Atoi(host)
	if err != nil {
		return pm, fmt.Errorf("invalid port mapping %q: %w", s, err)
	}
	containerPort, err := strconv.Atoi(cont)
	if err != nil {
		return pm, fmt.Errorf("invalid port mapping %q: %w", s, err)
	}

	pm.HostPort = hostPort
	pm.ContainerPort = containerPort
	if err := pm.Validate(); err != nil {
		return pm, fmt.Errorf("invalid port mapping %q: %w", s, err)
	}
	return pm, nil
}

// parseMount parses a bind-mount string: "source:target[:ro|rw]".
// Windows drive letters are not handled; descriptors are written with
// forward-slash paths.
func parseMount(s string) (model.Mount, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return model.Mount{Source: parts[0], Target: parts[1]}, nil
	case 3:
		switch parts[2] {
		case "ro":
			return model.Mount{Source: parts[0], Target: parts[1], ReadOnly: true}, nil
		case "rw":
			return model.Mount{Source: parts[0], Target: parts[1]}, nil
		default:
			return model.Mount{}, fmt.Errorf("invalid mount %q: unknown mode %q (valid: ro, rw)", s, parts[2])
		}
	default:
		return model.Mount{}, fmt.Errorf("invalid mount %q: expected source:target[:mode]", s)
	}
}
