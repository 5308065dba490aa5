package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestRender_ComposeOutput renders the reference topology and checks the
// document is valid compose-shaped YAML with all defaults explicit.
func TestRender_ComposeOutput(t *testing.T) {
	out, err := Render(referenceStack())
	require.NoError(t, err)

	// The header identifies the generated file and its source.
	assert.Contains(t, string(out), "# Rendered by stackdock")

	var doc composeDocument
	require.NoError(t, yaml.Unmarshal(out, &doc))

	assert.Equal(t, "tokenapi", doc.Name)
	require.Len(t, doc.Services, 3)

	proxy := doc.Services["proxy"]
	assert.Equal(t, "nginx", proxy.Image)
	assert.Equal(t, "nginx-proxy", proxy.ContainerName)
	assert.Equal(t, []string{"8082:80/tcp"}, proxy.Ports)
	assert.Equal(t, []string{"app"}, proxy.DependsOn)

	app := doc.Services["app"]
	require.NotNil(t, app.Build)
	assert.Equal(t, "./web", app.Build.Context)
	assert.Equal(t, "Dockerfile", app.Build.Dockerfile)
	assert.Equal(t, "mongodb://db/tokenapi", app.Environment["MONGODB_URL"])

	db := doc.Services["db"]
	assert.Equal(t, []string{"27018:27017/tcp"}, db.Ports)

	require.Contains(t, doc.Networks, "backend")
	assert.Equal(t, "bridge", doc.Networks["backend"].Driver)
}

// TestRender_RoundTripThroughLoad renders a loaded descriptor; the
// output must itself satisfy validation when reparsed, proving the
// rendered document is a faithful equivalent of the input.
func TestRender_RoundTripThroughLoad(t *testing.T) {
	out, err := Render(referenceStack())
	require.NoError(t, err)

	var raw rawStack
	require.NoError(t, yaml.Unmarshal(out, &raw))

	s, err := buildStack(&raw, "rendered.yaml", "")
	require.NoError(t, err)
	assert.False(t, HasErrors(Validate(s)))

	order, err := StartupOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "app", "proxy"}, order)
}
