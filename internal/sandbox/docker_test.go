package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const fakeDockerScript = `#!/bin/sh
echo "$@" >> "$FAKE_DOCKER_ARGS_FILE"
case "$1" in
	run)
		if [ "$FAIL_RUN" = "1" ]; then
			echo "run failed" >&2
			exit 1
		fi
		printf '%s' "$COMMAND"
		;;
	logs)
		if [ "$SLOW_LOGS" = "1" ]; then
			exec sleep 5
		fi
		echo "container log line"
		;;
esac
exit 0
`

func newFakeDocker(t *testing.T) (*DockerCLI, string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake docker binary is a shell script")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "docker")
	argsFile := filepath.Join(dir, "args")

	require.NoError(t, os.WriteFile(bin, []byte(fakeDockerScript), 0o755))
	t.Setenv("FAKE_DOCKER_ARGS_FILE", argsFile)

	return NewDockerCLI(bin), argsFile
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRunArgs(t *testing.T) {
	args := runArgs(&RunSpec{
		Name:        "agentbot-owner-repo-1",
		Image:       "claudecode:latest",
		Env:         map[string]string{"COMMAND": "do it", "ANTHROPIC_API_KEY": "secret"},
		Mounts:      []Mount{{Source: "/test/auth/dir", Dest: "/home/node/.claude", ReadOnly: true}},
		MemoryLimit: "2g",
		CPULimit:    "1",
		PidsLimit:   256,
	})

	assert.Equal(t, []string{
		"run", "--rm", "--name", "agentbot-owner-repo-1",
		"--memory", "2g",
		"--cpus", "1",
		"--pids-limit", "256",
		"-v", "/test/auth/dir:/home/node/.claude:ro",
		"-e", "ANTHROPIC_API_KEY",
		"-e", "COMMAND",
		"claudecode:latest",
	}, args)
}

func TestDockerCLIRunPassesEnvValuesViaEnvironment(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	d, argsFile := newFakeDocker(t)

	out, err := d.Run(context.Background(), &RunSpec{
		Name:  "c1",
		Image: "img",
		Env:   map[string]string{"COMMAND": "it's a \"quoted\" $prompt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "it's a \"quoted\" $prompt", out.Stdout)

	lines := readLines(t, argsFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "run --rm --name c1 -e COMMAND img", lines[0])
}

func TestDockerCLIRunFailure(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	d, _ := newFakeDocker(t)
	t.Setenv("FAIL_RUN", "1")

	out, err := d.Run(context.Background(), &RunSpec{Name: "c1", Image: "img"})
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "run failed\n", out.Stderr)
}

func TestDockerCLIInspectLogsKill(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	d, argsFile := newFakeDocker(t)
	ctx := context.Background()

	require.NoError(t, d.Inspect(ctx, "img"))

	logs, err := d.Logs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "container log line\n", logs)

	require.NoError(t, d.Kill(ctx, "c1"))

	assert.Equal(t, []string{
		"image inspect --format {{.Id}} img",
		"logs --tail 500 c1",
		"kill c1",
	}, readLines(t, argsFile))
}

func TestReleaseKillsAfterSlowLogCapture(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	d, argsFile := newFakeDocker(t)
	t.Setenv("FAIL_RUN", "1")
	t.Setenv("SLOW_LOGS", "1")

	h := newHandle(context.Background(), d, "c1", zap.L())
	h.releaseTimeout = 500 * time.Millisecond

	_, err := h.Run(context.Background(), &RunSpec{Image: "img"})
	require.Error(t, err)

	h.Release()

	lines := readLines(t, argsFile)
	assert.Contains(t, lines, "logs --tail 500 c1")
	assert.Contains(t, lines, "kill c1")
	assert.Equal(t, StateCleanedUp, h.State())
}
