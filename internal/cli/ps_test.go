package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

func TestFormatPorts(t *testing.T) {
	tests := []struct {
		name     string
		mappings []model.PortMapping
		want     string
	}{
		{
			name: "single mapping",
			mappings: []model.PortMapping{
				{HostPort: 8082, ContainerPort: 80, Protocol: "tcp"},
			},
			want: "8082:80/tcp",
		},
		{
			name: "multiple mappings",
			mappings: []model.PortMapping{
				{HostPort: 8000, ContainerPort: 8000, Protocol: "tcp"},
				{HostPort: 5353, ContainerPort: 53, Protocol: "udp"},
			},
			want: "8000:8000/tcp,5353:53/udp",
		},
		{
			name:     "no mappings",
			mappings: nil,
			want:     "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPorts(tt.mappings))
		})
	}
}

func TestLabelPortStrings(t *testing.T) {
	c := model.ContainerInfo{
		Labels: map[string]string{
			"stackdock.port.27017/tcp": "27018",
			"stackdock.port.80/tcp":    "8082",
			"stackdock.unit":           "db",
		},
	}

	// Sorted by host port for stable table output.
	assert.Equal(t, []string{"8082:80", "27018:27017"}, labelPortStrings(c))
}

func TestLabelPortStringsBadLabels(t *testing.T) {
	c := model.ContainerInfo{
		Labels: map[string]string{"stackdock.port.http/tcp": "8080"},
	}
	assert.Nil(t, labelPortStrings(c))
}

func TestUnitRows(t *testing.T) {
	containers := []model.ContainerInfo{
		{ContainerName: "mongodb", Project: "tokenapi", UnitName: "db", Status: "exited"},
		{ContainerName: "fastapi-app", Project: "tokenapi", UnitName: "app", Status: "running"},
		{ContainerName: "other-web", Project: "blog", UnitName: "web", Status: "running"},
		{ContainerName: "stray"}, // no unit label, dropped
	}

	rows := unitRows(containers)
	require.Len(t, rows, 3)

	// Sorted by stack, then unit.
	assert.Equal(t, "blog", rows[0].Stack)
	assert.Equal(t, "web", rows[0].Unit)
	assert.Equal(t, model.StatusRunning, rows[0].State)

	assert.Equal(t, "app", rows[1].Unit)
	assert.Equal(t, model.StatusRunning, rows[1].State)

	assert.Equal(t, "db", rows[2].Unit)
	assert.Equal(t, model.StatusStopped, rows[2].State)
	require.Len(t, rows[2].Containers, 1)
	assert.Equal(t, "mongodb", rows[2].Containers[0].ContainerName)
}
