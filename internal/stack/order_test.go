package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// TestStartupOrder_ReferenceTopology verifies the dependency-first order
// for proxy → app → db edges: the database starts first, the proxy last.
func TestStartupOrder_ReferenceTopology(t *testing.T) {
	order, err := StartupOrder(referenceStack())
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "app", "proxy"}, order)
}

// TestTeardownOrder_ReferenceTopology is the exact reverse: dependents
// come down before their dependencies.
func TestTeardownOrder_ReferenceTopology(t *testing.T) {
	order, err := TeardownOrder(referenceStack())
	require.NoError(t, err)
	assert.Equal(t, []string{"proxy", "app", "db"}, order)
}

// TestStartupOrder_AlphabeticalTieBreak pins the deterministic ordering
// of independent units.
func TestStartupOrder_AlphabeticalTieBreak(t *testing.T) {
	s := &model.Stack{
		Name: "flat",
		Units: map[string]*model.Unit{
			"zeta":  {Name: "zeta"},
			"alpha": {Name: "alpha"},
			"mid":   {Name: "mid"},
		},
	}

	order, err := StartupOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, order)
}

// TestStartupOrder_DiamondGraph checks a unit with two dependencies.
func TestStartupOrder_DiamondGraph(t *testing.T) {
	s := &model.Stack{
		Name: "diamond",
		Units: map[string]*model.Unit{
			"top":   {Name: "top", DependsOn: []string{"left", "right"}},
			"left":  {Name: "left", DependsOn: []string{"base"}},
			"right": {Name: "right", DependsOn: []string{"base"}},
			"base":  {Name: "base"},
		},
	}

	order, err := StartupOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "left", "right", "top"}, order)
}

// TestStartupOrder_Cycle reports the units stuck in the cycle.
func TestStartupOrder_Cycle(t *testing.T) {
	s := &model.Stack{
		Name: "loop",
		Units: map[string]*model.Unit{
			"a": {Name: "a", DependsOn: []string{"b"}},
			"b": {Name: "b", DependsOn: []string{"a"}},
			"c": {Name: "c"},
		},
	}

	_, err := StartupOrder(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")

	_, err = TeardownOrder(s)
	assert.Error(t, err)
}
