package docker

import (
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

func TestContainerToInfo(t *testing.T) {
	c := types.Container{
		ID:    "abc123",
		Names: []string{"/fastapi-app"},
		State: "running",
		Labels: map[string]string{
			LabelManagedBy: ManagedByValue,
			LabelProject:   "tokenapi",
			LabelUnit:      "app",
			LabelCreatedAt: "2026-08-30T10:00:00Z",
		},
	}

	info := containerToInfo(c)

	assert.Equal(t, "abc123", info.ContainerID)
	assert.Equal(t, "fastapi-app", info.ContainerName, "leading slash is stripped")
	assert.Equal(t, "tokenapi", info.Project)
	assert.Equal(t, "app", info.UnitName)
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, 2026, info.CreatedAt.Year())
}

func TestContainerToInfoBadTimestampDegrades(t *testing.T) {
	c := types.Container{
		ID:     "abc123",
		Names:  []string{"/mongodb"},
		Labels: map[string]string{LabelCreatedAt: "not-a-time"},
	}

	info := containerToInfo(c)
	assert.True(t, info.CreatedAt.IsZero())
}

// A container with incomplete labels keeps whatever identity it has
// instead of vanishing from listings.
func TestContainerToInfoPartialLabels(t *testing.T) {
	c := types.Container{
		ID:    "abc123",
		Names: []string{"/mongodb"},
		State: "exited",
		Labels: map[string]string{
			LabelProject: "tokenapi",
			LabelUnit:    "db",
		},
	}

	info := containerToInfo(c)
	assert.Equal(t, "tokenapi", info.Project)
	assert.Equal(t, "db", info.UnitName)
	assert.True(t, info.CreatedAt.IsZero())
}

func TestGroupByUnit(t *testing.T) {
	containers := []model.ContainerInfo{
		{ContainerID: "1", UnitName: "app"},
		{ContainerID: "2", UnitName: "db"},
		{ContainerID: "3", UnitName: "app"},
		{ContainerID: "4"}, // unlabeled, skipped
	}

	groups := GroupByUnit(containers)

	assert.Len(t, groups, 2)
	assert.Len(t, groups["app"], 2)
	assert.Len(t, groups["db"], 1)
}

func TestUnitState(t *testing.T) {
	tests := []struct {
		name       string
		containers []model.ContainerInfo
		want       model.UnitStatus
	}{
		{
			name:       "no containers",
			containers: nil,
			want:       model.StatusMissing,
		},
		{
			name: "one running",
			containers: []model.ContainerInfo{
				{Status: "exited"},
				{Status: "running"},
			},
			want: model.StatusRunning,
		},
		{
			name: "all stopped",
			containers: []model.ContainerInfo{
				{Status: "exited"},
				{Status: "created"},
			},
			want: model.StatusStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnitState(tt.containers))
		})
	}
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(map[string]string{
		"VERSION": "1.0",
		"BASE":    "python:3.9",
		"PORT":    "8000",
	})
	assert.Equal(t, []string{"BASE", "PORT", "VERSION"}, keys)
}
