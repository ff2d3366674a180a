package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

const defReleaseTimeout = 30 * time.Second

// Handle is a single sandbox instance.
// Release must be called after the Handle was acquired, it ensures that no
// container is left running.
// A Handle is not safe for concurrent use.
type Handle struct {
	name           string
	rt             Runtime
	logger         *zap.Logger
	state          State
	releaseCtx     context.Context
	releaseTimeout time.Duration

	logs    string
	logsErr error
}

func newHandle(ctx context.Context, rt Runtime, name string, logger *zap.Logger) *Handle {
	h := Handle{
		name:           name,
		rt:             rt,
		logger:         logger.With(logfields.Container(name)),
		releaseCtx:     context.WithoutCancel(ctx),
		releaseTimeout: defReleaseTimeout,
	}
	h.setState(StatePreparing)

	return &h
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) State() State {
	return h.state
}

func (h *Handle) setState(s State) {
	h.logger.Debug("sandbox state changed",
		logfields.Event("sandbox_state_changed"),
		zap.Stringer("sandbox.state_from", h.state),
		zap.Stringer("sandbox.state_to", s),
	)
	h.state = s
}

// Run starts the container and waits for its termination.
func (h *Handle) Run(ctx context.Context, spec *RunSpec) (*Output, error) {
	spec.Name = h.name
	h.setState(StateRunning)

	out, err := h.rt.Run(ctx, spec)
	if out == nil {
		out = &Output{}
	}

	if err != nil {
		h.setState(StateFailed)
		return out, err
	}

	h.setState(StateSucceeded)
	return out, nil
}

// Release cleans up the sandbox.
// If the run did not succeed, the container logs are captured and the
// container is killed. Killing happens even if capturing the logs failed.
// A successful run removes its container itself, then nothing is done.
// Release is idempotent, it returns the captured logs.
func (h *Handle) Release() string {
	if h.state == StateCleanedUp {
		return h.logs
	}

	if h.state != StateSucceeded {
		h.captureLogs()
		h.kill()
	}

	h.setState(StateCleanedUp)

	return h.logs
}

// captureLogs and kill use their own deadlines, a slow log capture must not
// prevent the container from being killed.
func (h *Handle) captureLogs() {
	ctx, cancel := context.WithTimeout(h.releaseCtx, h.releaseTimeout)
	defer cancel()

	h.logs, h.logsErr = h.rt.Logs(ctx, h.name)
	if h.logsErr != nil {
		h.logger.Warn("capturing sandbox logs failed",
			logfields.Event("sandbox_logs_capture_failed"),
			zap.Error(h.logsErr),
		)
	}
}

func (h *Handle) kill() {
	ctx, cancel := context.WithTimeout(h.releaseCtx, h.releaseTimeout)
	defer cancel()

	if err := h.rt.Kill(ctx, h.name); err != nil {
		// the container is usually already gone when it terminated
		// with an error because it was started with --rm
		h.logger.Debug("killing sandbox failed",
			logfields.Event("sandbox_kill_failed"),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("sandbox killed", logfields.Event("sandbox_killed"))
}
