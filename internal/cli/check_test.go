package cli

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/port"
)

func TestUsedHostPorts(t *testing.T) {
	// Hold a port so the scan has something to find.
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	held := listener.Addr().(*net.TCPAddr).Port

	s := &model.Stack{
		Name: "tokenapi",
		Units: map[string]*model.Unit{
			"app": {
				Name:  "app",
				Ports: []model.PortMapping{{HostPort: held, ContainerPort: 8000, Protocol: "tcp"}},
			},
		},
	}

	used := usedHostPorts(port.NewScanner(), s)
	assert.Contains(t, used, held)
}

func TestUsedHostPortsNoPublishedPorts(t *testing.T) {
	s := &model.Stack{
		Name: "tokenapi",
		Units: map[string]*model.Unit{
			"worker": {Name: "worker"},
		},
	}
	assert.Nil(t, usedHostPorts(port.NewScanner(), s))
}
