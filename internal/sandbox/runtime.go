package sandbox

import "context"

// Runtime starts and controls sandbox containers.
type Runtime interface {
	// Inspect returns an error if image is not available locally.
	Inspect(ctx context.Context, image string) error
	// Run starts a container and waits until it terminated.
	// The returned Output is never nil, it contains what the container
	// wrote until it terminated or ctx was cancelled.
	Run(ctx context.Context, spec *RunSpec) (*Output, error)
	Logs(ctx context.Context, name string) (string, error)
	Kill(ctx context.Context, name string) error
}

type Mount struct {
	Source   string
	Dest     string
	ReadOnly bool
}

// RunSpec describes a container that is started via Runtime.Run.
type RunSpec struct {
	Name  string
	Image string
	// Env are environment variables that are set in the container.
	// Values are never passed as command-line arguments to the runtime.
	Env         map[string]string
	Mounts      []Mount
	MemoryLimit string
	CPULimit    string
	PidsLimit   int
}

type Output struct {
	Stdout string
	Stderr string
}
