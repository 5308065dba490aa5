package stack

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// referenceStack builds the three-unit topology in memory so individual
// tests can break one invariant at a time.
func referenceStack() *model.Stack {
	return &model.Stack{
		Name: "tokenapi",
		Units: map[string]*model.Unit{
			"proxy": {
				Name:          "proxy",
				ContainerName: "nginx-proxy",
				Image:         "nginx",
				Ports:         []model.PortMapping{{HostPort: 8082, ContainerPort: 80, Protocol: "tcp"}},
				Networks:      []string{"backend"},
				DependsOn:     []string{"app"},
			},
			"app": {
				Name:          "app",
				ContainerName: "fastapi-app",
				Build:         &model.BuildSpec{Context: "./web", Recipe: "Dockerfile"},
				Ports:         []model.PortMapping{{HostPort: 8000, ContainerPort: 8000, Protocol: "tcp"}},
				Env: []model.EnvVar{
					{Key: "MONGODB_URL", Value: "mongodb://db/tokenapi"},
					{Key: "RPC_URL", Value: "https://mainnet.example.io/v3/key"},
				},
				RequiresEnv: []string{"MONGODB_URL", "RPC_URL"},
				Networks:    []string{"backend"},
				DependsOn:   []string{"db"},
			},
			"db": {
				Name:          "db",
				ContainerName: "mongodb",
				Image:         "mongo",
				Ports:         []model.PortMapping{{HostPort: 27018, ContainerPort: 27017, Protocol: "tcp"}},
				Networks:      []string{"backend"},
			},
		},
		Networks: map[string]model.Network{
			"backend": {Name: "backend", Driver: "bridge"},
		},
		SourcePath: filepath.Join("testdata", "stackdock.yaml"),
	}
}

// errorFindings filters out warnings.
func errorFindings(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if !f.Warning {
			out = append(out, f)
		}
	}
	return out
}

// TestValidate_ReferenceTopology confirms the reference stack passes
// every descriptor-level check with no hard errors.
func TestValidate_ReferenceTopology(t *testing.T) {
	findings := Validate(referenceStack())
	assert.Empty(t, errorFindings(findings))
	assert.False(t, HasErrors(findings))
}

// TestValidate_DuplicateContainerName flags two units claiming one
// container name.
func TestValidate_DuplicateContainerName(t *testing.T) {
	s := referenceStack()
	s.Units["db"].ContainerName = "fastapi-app"

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "container_name", findings[0].Field)
	assert.Contains(t, findings[0].Message, "fastapi-app")
}

// TestValidate_HostPortCollision flags two units publishing the same
// host port, and allows the same port number on different protocols.
func TestValidate_HostPortCollision(t *testing.T) {
	s := referenceStack()
	s.Units["db"].Ports = []model.PortMapping{{HostPort: 8000, ContainerPort: 27017, Protocol: "tcp"}}

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "ports", findings[0].Field)
	assert.Contains(t, findings[0].Message, "8000/tcp")

	// Same number, different protocol: no collision.
	s.Units["db"].Ports[0].Protocol = "udp"
	assert.Empty(t, errorFindings(Validate(s)))
}

// TestValidate_ImageBuildExclusive flags both-or-neither source
// declarations.
func TestValidate_ImageBuildExclusive(t *testing.T) {
	s := referenceStack()
	s.Units["app"].Image = "python:3.11"

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "mutually exclusive")

	s.Units["app"].Image = ""
	s.Units["app"].Build = nil
	findings = errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "one of image or build is required")
}

// TestValidate_DanglingDependency flags depends_on pointing at an
// undeclared unit, and self-dependency.
func TestValidate_DanglingDependency(t *testing.T) {
	s := referenceStack()
	s.Units["proxy"].DependsOn = []string{"ghost"}

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "depends_on", findings[0].Field)
	assert.Contains(t, findings[0].Message, `"ghost"`)

	s.Units["proxy"].DependsOn = []string{"proxy"}
	findings = errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "depend on itself")
}

// TestValidate_DependencyCycle flags a startup-order cycle.
func TestValidate_DependencyCycle(t *testing.T) {
	s := referenceStack()
	s.Units["db"].DependsOn = []string{"proxy"}

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "depends_on", findings[0].Field)
	assert.Contains(t, findings[0].Message, "cycle")
}

// TestValidate_UndeclaredNetwork flags membership in a network that was
// never declared.
func TestValidate_UndeclaredNetwork(t *testing.T) {
	s := referenceStack()
	s.Units["db"].Networks = []string{"frontend"}

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "networks", findings[0].Field)

	// The implicit default network never needs declaring.
	s.Units["db"].Networks = []string{s.DefaultNetworkName()}
	assert.Empty(t, errorFindings(Validate(s)))
}

// TestValidate_RequiredEnv enforces the environment-presence contract
// for the application unit: both configuration URLs must be set and
// non-empty.
func TestValidate_RequiredEnv(t *testing.T) {
	s := referenceStack()
	s.Units["app"].Env = s.Units["app"].Env[:1] // drop RPC_URL

	findings := errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Equal(t, "environment", findings[0].Field)
	assert.Contains(t, findings[0].Message, `"RPC_URL"`)

	// Present but empty is also a failure: the application has no
	// default for either URL.
	s.Units["app"].Env = append(s.Units["app"].Env, model.EnvVar{Key: "RPC_URL", Value: "  "})
	findings = errorFindings(Validate(s))
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "empty")
}

// TestValidate_MissingMountSource reports a warning, not an error.
func TestValidate_MissingMountSource(t *testing.T) {
	s := referenceStack()
	s.Units["proxy"].Mounts = []model.Mount{{Source: "./no-such-dir", Target: "/etc/nginx/conf.d"}}

	findings := Validate(s)
	assert.False(t, HasErrors(findings))

	var warnings []ValidationError
	for _, f := range findings {
		if f.Warning {
			warnings = append(warnings, f)
		}
	}
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no-such-dir")
	assert.Contains(t, warnings[0].String(), "warning:")
}

// TestValidationError_Formatting covers Error and String scoping.
func TestValidationError_Formatting(t *testing.T) {
	e := ValidationError{Unit: "app", Field: "ports", Message: "boom"}
	assert.Equal(t, "stack validation error: app.ports: boom", e.Error())
	assert.Equal(t, "error: app.ports: boom", e.String())

	top := ValidationError{Field: "depends_on", Message: "cycle"}
	assert.Equal(t, "stack validation error: depends_on: cycle", top.Error())
}
