package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnitStatus_String verifies that UnitStatus values produce the
// expected string representations for CLI output and JSON serialization.
func TestUnitStatus_String(t *testing.T) {
	tests := []struct {
		status   UnitStatus
		expected string
	}{
		{StatusRunning, "running"},
		{StatusStopped, "stopped"},
		{StatusMissing, "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

// TestUnitStatus_IsValid checks that only defined status values pass validation.
func TestUnitStatus_IsValid(t *testing.T) {
	assert.True(t, StatusRunning.IsValid())
	assert.True(t, StatusStopped.IsValid())
	assert.True(t, StatusMissing.IsValid())
	assert.False(t, UnitStatus("invalid").IsValid())
	assert.False(t, UnitStatus("").IsValid())
}

// TestParseUnitStatus verifies string-to-status conversion,
// including case normalization and error cases.
func TestParseUnitStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected UnitStatus
		hasError bool
	}{
		{"running", StatusRunning, false},
		{"stopped", StatusStopped, false},
		{"missing", StatusMissing, false},
		{"Running", StatusRunning, false}, // case insensitive
		{"STOPPED", StatusStopped, false}, // case insensitive
		{"invalid", "", true},             // unknown value
		{"", "", true},                    // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseUnitStatus(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestPortMapping_Validate exercises range and protocol checks,
// including the tcp default for an unset protocol.
func TestPortMapping_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mapping  PortMapping
		hasError bool
	}{
		{"valid tcp", PortMapping{HostPort: 8082, ContainerPort: 80, Protocol: "tcp"}, false},
		{"valid udp", PortMapping{HostPort: 5353, ContainerPort: 53, Protocol: "udp"}, false},
		{"defaults protocol", PortMapping{HostPort: 8000, ContainerPort: 8000}, false},
		{"host port zero", PortMapping{HostPort: 0, ContainerPort: 80}, true},
		{"host port too high", PortMapping{HostPort: 70000, ContainerPort: 80}, true},
		{"container port zero", PortMapping{HostPort: 8080, ContainerPort: 0}, true},
		{"bad protocol", PortMapping{HostPort: 8080, ContainerPort: 80, Protocol: "sctp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, tt.mapping.Protocol, "protocol should be defaulted")
			}
		})
	}
}

// TestPortMapping_String verifies the display format and protocol default.
func TestPortMapping_String(t *testing.T) {
	pm := PortMapping{HostPort: 27018, ContainerPort: 27017}
	assert.Equal(t, "27018:27017/tcp", pm.String())

	pm = PortMapping{HostPort: 5353, ContainerPort: 53, Protocol: "udp"}
	assert.Equal(t, "5353:53/udp", pm.String())
}

// TestValidateUnitName checks naming rules for units and container names.
func TestValidateUnitName(t *testing.T) {
	tests := []struct {
		input    string
		hasError bool
	}{
		{"app", false},
		{"fastapi_app", false},
		{"nginx-proxy", false},
		{"db2", false},
		{"a", false},
		{"", true},
		{"-app", true},
		{"app-", true},
		{"my app", true},
		{"app!", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateUnitName(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestStack_UnitNames verifies alphabetical, deterministic ordering.
func TestStack_UnitNames(t *testing.T) {
	s := &Stack{
		Name: "tok",
		Units: map[string]*Unit{
			"proxy": {Name: "proxy"},
			"app":   {Name: "app"},
			"db":    {Name: "db"},
		},
	}
	assert.Equal(t, []string{"app", "db", "proxy"}, s.UnitNames())
}

// TestStack_DefaultNetworkName verifies the implicit network naming scheme.
func TestStack_DefaultNetworkName(t *testing.T) {
	s := &Stack{Name: "tokenapi"}
	assert.Equal(t, "tokenapi_default", s.DefaultNetworkName())
}

// TestUnit_EnvValue verifies environment lookup by key.
func TestUnit_EnvValue(t *testing.T) {
	u := &Unit{
		Env: []EnvVar{
			{Key: "MONGODB_URL", Value: "mongodb://db/app"},
			{Key: "RPC_URL", Value: "https://rpc.example/v3/key"},
		},
	}

	v, ok := u.EnvValue("MONGODB_URL")
	assert.True(t, ok)
	assert.Equal(t, "mongodb://db/app", v)

	_, ok = u.EnvValue("MISSING")
	assert.False(t, ok)
}

// TestEnvVar_String verifies the KEY=VALUE form.
func TestEnvVar_String(t *testing.T) {
	assert.Equal(t, "RPC_URL=https://rpc.example", EnvVar{Key: "RPC_URL", Value: "https://rpc.example"}.String())
}

// TestMount_String verifies bind-spec formatting for both modes.
func TestMount_String(t *testing.T) {
	rw := Mount{Source: "./conf.d", Target: "/etc/nginx/conf.d"}
	assert.Equal(t, "./conf.d:/etc/nginx/conf.d", rw.String())

	ro := Mount{Source: "/srv/certs", Target: "/certs", ReadOnly: true}
	assert.Equal(t, "/srv/certs:/certs:ro", ro.String())
}

// TestBuildSpec_Tag verifies the image tag convention for built units.
func TestBuildSpec_Tag(t *testing.T) {
	b := &BuildSpec{Context: "web"}
	assert.Equal(t, "tokenapi-app:latest", b.Tag("tokenapi", "app"))
}

// TestCLIError verifies message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	base := assert.AnError
	wrapped := WrapCLIError(ExitDockerNotRunning, "docker unavailable", base)

	assert.Contains(t, wrapped.Error(), "docker unavailable")
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, ExitDockerNotRunning, wrapped.Code)

	plain := NewCLIError(ExitValidationFailed, "bad descriptor")
	assert.Equal(t, "bad descriptor", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

// TestContainerInfo_Fields is a smoke check that label-derived metadata
// round-trips through the struct unchanged.
func TestContainerInfo_Fields(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ci := ContainerInfo{
		ContainerID:   "abc123",
		ContainerName: "tokenapi-app",
		UnitName:      "app",
		Project:       "tokenapi",
		Status:        "running",
		CreatedAt:     now,
	}
	assert.Equal(t, "app", ci.UnitName)
	assert.Equal(t, now, ci.CreatedAt)
}
