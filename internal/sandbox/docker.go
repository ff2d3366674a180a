package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

const cmdWaitDelay = 10 * time.Second

// logsTailLines limits the captured container logs to the last lines, they
// are truncated when they are reported anyway.
const logsTailLines = 500

// DockerCLI is a Runtime that executes the docker command-line client.
type DockerCLI struct {
	bin    string
	logger *zap.Logger
}

// NewDockerCLI returns a DockerCLI that runs the docker client binary bin.
// bin can be a path or a name that is looked up in $PATH.
func NewDockerCLI(bin string) *DockerCLI {
	return &DockerCLI{
		bin:    bin,
		logger: zap.L().Named(loggerName).Named("docker"),
	}
}

func (d *DockerCLI) Inspect(ctx context.Context, image string) error {
	_, err := d.exec(ctx, nil, "image", "inspect", "--format", "{{.Id}}", image)
	return err
}

func (d *DockerCLI) Run(ctx context.Context, spec *RunSpec) (*Output, error) {
	out, err := d.exec(ctx, envList(spec.Env), runArgs(spec)...)
	return out, err
}

func (d *DockerCLI) Logs(ctx context.Context, name string) (string, error) {
	out, err := d.exec(ctx, nil, "logs", "--tail", strconv.Itoa(logsTailLines), name)
	if err != nil {
		return "", err
	}

	return out.Stdout + out.Stderr, nil
}

func (d *DockerCLI) Kill(ctx context.Context, name string) error {
	_, err := d.exec(ctx, nil, "kill", name)
	return err
}

func (d *DockerCLI) exec(ctx context.Context, env []string, args ...string) (*Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, d.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = cmdWaitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	d.logger.Debug("running docker command",
		logfields.Event("docker_command_running"),
		logfields.Operation(args[0]),
	)

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return &out, fmt.Errorf("%s %s failed: %w", d.bin, strings.Join(args[:min(2, len(args))], " "), err)
	}

	return &out, nil
}

// runArgs returns the arguments for "docker run".
// Environment variables are only referenced by name, their values are read by
// docker from its own environment.
func runArgs(spec *RunSpec) []string {
	args := []string{"run", "--rm", "--name", spec.Name}

	if spec.MemoryLimit != "" {
		args = append(args, "--memory", spec.MemoryLimit)
	}

	if spec.CPULimit != "" {
		args = append(args, "--cpus", spec.CPULimit)
	}

	if spec.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(spec.PidsLimit))
	}

	for _, m := range spec.Mounts {
		v := m.Source + ":" + m.Dest
		if m.ReadOnly {
			v += ":ro"
		}
		args = append(args, "-v", v)
	}

	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", k)
	}

	return append(args, spec.Image)
}

func envList(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for _, k := range sortedKeys(env) {
		result = append(result, k+"="+env[k])
	}

	return result
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
