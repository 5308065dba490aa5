package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

func appUnit() *model.Unit {
	return &model.Unit{
		Name:          "app",
		ContainerName: "fastapi-app",
		Ports: []model.PortMapping{
			{HostPort: 8000, ContainerPort: 8000, Protocol: "tcp"},
		},
	}
}

func TestBuildLabels(t *testing.T) {
	createdAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	labels := BuildLabels("tokenapi", appUnit(), createdAt)

	assert.Equal(t, "stackdock", labels["stackdock.managed-by"])
	assert.Equal(t, "tokenapi", labels["stackdock.project"])
	assert.Equal(t, "app", labels["stackdock.unit"])
	assert.Equal(t, "2026-08-30T10:00:00Z", labels["stackdock.created-at"])
	assert.Equal(t, "8000", labels["stackdock.port.8000/tcp"])
}

func TestBuildLabelsConvertsToUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	createdAt := time.Date(2026, 8, 30, 19, 0, 0, 0, jst)

	labels := BuildLabels("tokenapi", appUnit(), createdAt)
	assert.Equal(t, "2026-08-30T10:00:00Z", labels[LabelCreatedAt])
}

func TestParseLabelsRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	labels := BuildLabels("tokenapi", appUnit(), createdAt)

	info, err := ParseLabels(labels)
	require.NoError(t, err)

	assert.Equal(t, "tokenapi", info.Project)
	assert.Equal(t, "app", info.UnitName)
	assert.True(t, createdAt.Equal(info.CreatedAt))
}

func TestParseLabelsMissingKeys(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
	})
	require.Error(t, err)
	// All missing labels are listed at once.
	assert.Contains(t, err.Error(), LabelProject)
	assert.Contains(t, err.Error(), LabelUnit)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

func TestParseLabelsWrongManagedBy(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: "someone-else",
		LabelProject:   "tokenapi",
		LabelUnit:      "app",
		LabelCreatedAt: "2026-08-30T10:00:00Z",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected value")
}

func TestParseLabelsBadTimestamp(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   "tokenapi",
		LabelUnit:      "app",
		LabelCreatedAt: "yesterday",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

func TestBuildPortLabel(t *testing.T) {
	assert.Equal(t, "stackdock.port.27017/tcp", BuildPortLabel(27017, "tcp"))
	assert.Equal(t, "stackdock.port.53/udp", BuildPortLabel(53, "udp"))
	// Empty protocol defaults to tcp.
	assert.Equal(t, "stackdock.port.80/tcp", BuildPortLabel(80, ""))
}

func TestParsePortLabels(t *testing.T) {
	mappings, err := ParsePortLabels(map[string]string{
		"stackdock.port.80/tcp":    "8082",
		"stackdock.port.27017/tcp": "27018",
		"stackdock.unit":           "db",
		"unrelated.label":          "ignored",
	})
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	byContainer := make(map[int]model.PortMapping)
	for _, m := range mappings {
		byContainer[m.ContainerPort] = m
	}
	assert.Equal(t, 8082, byContainer[80].HostPort)
	assert.Equal(t, 27018, byContainer[27017].HostPort)
	assert.Equal(t, "tcp", byContainer[27017].Protocol)
}

// A tcp and a udp mapping on the same container port must not collide:
// the protocol is part of the label key, so both survive a round trip.
func TestPortLabelsProtocolRoundTrip(t *testing.T) {
	unit := &model.Unit{
		Name:          "dns",
		ContainerName: "dns",
		Ports: []model.PortMapping{
			{HostPort: 5353, ContainerPort: 53, Protocol: "udp"},
			{HostPort: 5354, ContainerPort: 53, Protocol: "tcp"},
		},
	}
	labels := BuildLabels("tokenapi", unit, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	mappings, err := ParsePortLabels(labels)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	byProtocol := make(map[string]model.PortMapping)
	for _, m := range mappings {
		byProtocol[m.Protocol] = m
	}
	assert.Equal(t, 5353, byProtocol["udp"].HostPort)
	assert.Equal(t, 5354, byProtocol["tcp"].HostPort)
	assert.Equal(t, 53, byProtocol["udp"].ContainerPort)
}

// Containers deployed before the protocol was part of the key carry
// bare-port labels; those still parse, defaulting to tcp.
func TestParsePortLabelsLegacyKey(t *testing.T) {
	mappings, err := ParsePortLabels(map[string]string{
		"stackdock.port.8000": "8000",
	})
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "tcp", mappings[0].Protocol)
	assert.Equal(t, 8000, mappings[0].ContainerPort)
}

func TestParsePortLabelsEmpty(t *testing.T) {
	mappings, err := ParsePortLabels(map[string]string{"stackdock.unit": "db"})
	require.NoError(t, err)
	assert.NotNil(t, mappings)
	assert.Empty(t, mappings)
}

func TestParsePortLabelsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
	}{
		{
			name:   "bad container port in key",
			labels: map[string]string{"stackdock.port.http": "8080"},
		},
		{
			name:   "bad host port in value",
			labels: map[string]string{"stackdock.port.80": "eighty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePortLabels(tt.labels)
			assert.Error(t, err)
		})
	}
}
