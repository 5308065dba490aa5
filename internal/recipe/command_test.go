package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommandExecForm(t *testing.T) {
	r, err := Load("testdata/Dockerfile")
	require.NoError(t, err)

	sc, err := r.StartCommand()
	require.NoError(t, err)

	assert.Equal(t, "gunicorn", sc.Executable)
	assert.Equal(t, "main:app", sc.AppTarget)
	assert.Equal(t, 4, sc.Workers)
	assert.Equal(t, "uvicorn.workers.UvicornWorker", sc.WorkerClass)
	assert.Equal(t, "0.0.0.0", sc.BindHost)
	assert.Equal(t, 8000, sc.BindPort)
	assert.Equal(t, "info", sc.LogLevel)
	assert.Equal(t, 120, sc.Timeout)
}

func TestStartCommandShellForm(t *testing.T) {
	r, err := Load("testdata/Dockerfile.deploy")
	require.NoError(t, err)

	sc, err := r.StartCommand()
	require.NoError(t, err)

	assert.Equal(t, "gunicron", sc.Executable)
	assert.Equal(t, "main:app", sc.AppTarget)
	assert.Equal(t, 4, sc.Workers)
	assert.Equal(t, 8000, sc.BindPort)
	assert.Zero(t, sc.Timeout)
}

func TestStartCommandEntrypointPlusCmd(t *testing.T) {
	r, err := Parse([]byte("ENTRYPOINT [\"uvicorn\"]\nCMD [\"main:app\", \"--workers=2\", \"--bind\", \":9000\"]"))
	require.NoError(t, err)

	sc, err := r.StartCommand()
	require.NoError(t, err)

	assert.Equal(t, "uvicorn", sc.Executable)
	assert.Equal(t, "main:app", sc.AppTarget)
	assert.Equal(t, 2, sc.Workers, "--flag=value form")
	assert.Equal(t, "", sc.BindHost)
	assert.Equal(t, 9000, sc.BindPort)
}

func TestStartCommandMissing(t *testing.T) {
	r, err := Parse([]byte("FROM mongo:6\nEXPOSE 27017"))
	require.NoError(t, err)

	_, err = r.StartCommand()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CMD or ENTRYPOINT")
}

func TestStartCommandBadWorkerCount(t *testing.T) {
	r, err := Parse([]byte(`CMD ["gunicorn", "main:app", "-w", "many"]`))
	require.NoError(t, err)

	_, err = r.StartCommand()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker count")
}

func TestShellSplit(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain words",
			line: "gunicorn main:app -w 4",
			want: []string{"gunicorn", "main:app", "-w", "4"},
		},
		{
			name: "double quotes group",
			line: `sh -c "sleep 1 && exec nginx"`,
			want: []string{"sh", "-c", "sleep 1 && exec nginx"},
		},
		{
			name: "single quotes group",
			line: "echo 'hello there'",
			want: []string{"echo", "hello there"},
		},
		{
			name: "runs of whitespace collapse",
			line: "mongod   --bind_ip\t0.0.0.0",
			want: []string{"mongod", "--bind_ip", "0.0.0.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shellSplit(tt.line))
		})
	}
}
