package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456789ab", short("0123456789abcdef"))
	assert.Equal(t, "abc", short("abc"))
}

func TestNetworkNames(t *testing.T) {
	s := &model.Stack{
		Name: "tokenapi",
		Networks: map[string]model.Network{
			"frontend": {Name: "frontend", Driver: "bridge"},
			"backend":  {Name: "backend", Driver: "bridge"},
		},
	}
	assert.Equal(t, []string{"backend", "frontend"}, networkNames(s))
}
