// Package sandbox runs the agent for a task in an isolated, resource bounded
// container.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/logfields"
	"github.com/simplesurance/agentbot/internal/prompt"
	"github.com/simplesurance/agentbot/internal/stringutils"
	"github.com/simplesurance/agentbot/internal/task"
)

const loggerName = "sandbox"

const (
	ModeTest       = "test"
	ModeProduction = "production"
)

// DefAuthContainerDir is the directory in the container where the agent
// expects its authentication credentials.
const DefAuthContainerDir = "/home/node/.claude"

const testModeReply = "Hello! I'm Claude responding to your request."

const maxTestModeCommandLen = 200

const defTimeout = 2 * time.Hour

// InstructionsFetcher returns repository specific instructions for the agent.
type InstructionsFetcher interface {
	FetchRepoInstructions(ctx context.Context, owner, repo string) (string, error)
}

type Config struct {
	ExecutionMode string
	BotUsername   string
	Image         string
	Timeout       time.Duration
	// AuthHostDir is mounted read-only to AuthContainerDir.
	AuthHostDir      string
	AuthContainerDir string
	MemoryLimit      string
	CPULimit         string
	PidsLimit        int

	GithubToken     string
	AnthropicAPIKey string
	PRHumanReviewer string
}

// Request is the input of a single sandbox execution.
type Request struct {
	Task             *task.Task
	RepoInstructions string
	Env              map[string]string
}

// Executor runs the agent for tasks.
// It is safe for concurrent use, every call of ProcessCommand uses its own
// container.
type Executor struct {
	cfg          Config
	rt           Runtime
	instructions InstructionsFetcher
	prompts      *prompt.Builder
	logger       *zap.Logger

	stopCtx  context.Context
	stopFn   context.CancelFunc
	mu       sync.Mutex
	stopped  bool
	inFlight sync.WaitGroup
}

// NewExecutor returns an Executor.
// instructions can be nil, then no repository instructions are added to
// prompts.
func NewExecutor(cfg Config, rt Runtime, instructions InstructionsFetcher) *Executor {
	if cfg.AuthContainerDir == "" {
		cfg.AuthContainerDir = DefAuthContainerDir
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defTimeout
	}

	stopCtx, stopFn := context.WithCancel(context.Background())

	return &Executor{
		cfg:          cfg,
		rt:           rt,
		instructions: instructions,
		prompts:      prompt.NewBuilder(cfg.PRHumanReviewer),
		logger:       zap.L().Named(loggerName),
		stopCtx:      stopCtx,
		stopFn:       stopFn,
	}
}

// Stop cancels all running sandbox executions and waits until their
// containers were released. ProcessCommand calls that start afterwards fail.
func (e *Executor) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.logger.Debug("executor terminating, cancelling running sandboxes",
		logfields.Event("sandbox_executor_terminating"),
	)

	e.stopFn()
	e.inFlight.Wait()
}

func (e *Executor) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}

	e.inFlight.Add(1)
	return true
}

// ProcessCommand runs the agent for t and returns its sanitized output.
//
// In test execution mode a canned reply is returned without starting a
// container.
// When the sandbox image is not available an error wrapping
// boterr.ErrSandboxUnavailable is returned.
// When the execution fails or times out, a *boterr.SandboxExecutionError is
// returned.
func (e *Executor) ProcessCommand(ctx context.Context, t *task.Task) (string, error) {
	logger := e.logger.With(t.LogFields()...).With(logfields.Operation(t.Operation()))

	req := Request{
		Task:             t,
		RepoInstructions: e.fetchInstructions(ctx, logger, t),
	}

	agentPrompt := e.prompts.Build(t, req.RepoInstructions)

	if e.cfg.ExecutionMode == ModeTest {
		logger.Info("test execution mode, returning canned reply",
			logfields.Event("sandbox_test_mode_reply"),
		)
		metrics.ExecutionFinished(resultTestMode)

		return SanitizeBotMentions(e.testModeReply(t), e.cfg.BotUsername), nil
	}

	if err := e.rt.Inspect(ctx, e.cfg.Image); err != nil {
		logger.Error("sandbox image is not available",
			logfields.Event("sandbox_image_unavailable"),
			logfields.Image(e.cfg.Image),
			zap.Error(err),
		)
		metrics.ExecutionFinished(resultUnavailable)

		return "", fmt.Errorf("%w: image %s: %w", boterr.ErrSandboxUnavailable, e.cfg.Image, err)
	}

	req.Env = e.env(t, agentPrompt)

	if !e.acquire() {
		metrics.ExecutionFinished(resultUnavailable)
		return "", fmt.Errorf("%w: executor is stopped", boterr.ErrSandboxUnavailable)
	}
	defer e.inFlight.Done()

	h := newHandle(ctx, e.rt, containerName(t), logger)
	defer h.Release()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	stopRun := context.AfterFunc(e.stopCtx, cancel)
	defer stopRun()

	logger = logger.With(logfields.Container(h.Name()))
	logger.Info("starting sandbox",
		logfields.Event("sandbox_starting"),
		logfields.Image(e.cfg.Image),
		zap.Duration("sandbox.timeout", e.cfg.Timeout),
	)

	start := time.Now()
	out, err := h.Run(runCtx, e.runSpec(&req))
	metrics.RunDuration(time.Since(start))
	if err != nil {
		timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
		logs := h.Release()

		execErr := boterr.SandboxExecutionError{
			Message:  "sandbox execution failed",
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			Logs:     logs,
			TimedOut: timedOut,
			Err:      err,
		}

		switch {
		case timedOut:
			execErr.Message = fmt.Sprintf("sandbox execution timed out after %s", e.cfg.Timeout)
			metrics.ExecutionFinished(resultTimeout)
		case e.stopCtx.Err() != nil:
			execErr.Message = "sandbox execution cancelled, executor was stopped"
			metrics.ExecutionFinished(resultFailure)
		default:
			metrics.ExecutionFinished(resultFailure)
		}

		logger.Error("sandbox execution failed",
			logfields.Event("sandbox_execution_failed"),
			zap.Bool("sandbox.timed_out", timedOut),
			zap.String("sandbox.stderr", stringutils.Truncate(out.Stderr, 4096)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		return "", &execErr
	}

	metrics.ExecutionFinished(resultSuccess)
	logger.Info("sandbox execution finished",
		logfields.Event("sandbox_execution_succeeded"),
		zap.Duration("duration", time.Since(start)),
		zap.Int("sandbox.stdout_bytes", len(out.Stdout)),
	)

	return SanitizeBotMentions(strings.TrimSpace(out.Stdout), e.cfg.BotUsername), nil
}

func (e *Executor) fetchInstructions(ctx context.Context, logger *zap.Logger, t *task.Task) string {
	if e.instructions == nil {
		return ""
	}

	instr, err := e.instructions.FetchRepoInstructions(ctx, t.RepoOwner, t.RepoName)
	if err != nil {
		logger.Warn("fetching repository instructions failed, continuing without",
			logfields.Event("sandbox_repo_instructions_fetch_failed"),
			zap.Error(err),
		)
		return ""
	}

	return instr
}

func (e *Executor) testModeReply(t *task.Task) string {
	return fmt.Sprintf(
		"%s\n\nThis is a test mode response for %s #%d, no sandbox was started.\n\nRequest:\n%s",
		testModeReply, t.RepoFullName, t.IssueNumber,
		stringutils.Truncate(t.Command, maxTestModeCommandLen),
	)
}

func (e *Executor) env(t *task.Task, agentPrompt string) map[string]string {
	env := map[string]string{
		"COMMAND":         agentPrompt,
		"REPO_FULL_NAME":  t.RepoFullName,
		"ISSUE_NUMBER":    strconv.Itoa(t.IssueNumber),
		"IS_PULL_REQUEST": strconv.FormatBool(t.IsPullRequest),
		"OPERATION_TYPE":  t.Operation(),
		"BOT_USERNAME":    e.cfg.BotUsername,
	}

	if t.BranchName != nil {
		env["BRANCH_NAME"] = *t.BranchName
	}

	if e.cfg.GithubToken != "" {
		env["GITHUB_TOKEN"] = e.cfg.GithubToken
	}

	if e.cfg.AnthropicAPIKey != "" {
		env["ANTHROPIC_API_KEY"] = e.cfg.AnthropicAPIKey
	}

	if e.cfg.PRHumanReviewer != "" {
		env["PR_HUMAN_REVIEWER"] = e.cfg.PRHumanReviewer
	}

	return env
}

func (e *Executor) runSpec(req *Request) *RunSpec {
	spec := RunSpec{
		Image:       e.cfg.Image,
		Env:         req.Env,
		MemoryLimit: e.cfg.MemoryLimit,
		CPULimit:    e.cfg.CPULimit,
		PidsLimit:   e.cfg.PidsLimit,
	}

	if e.cfg.AuthHostDir != "" {
		spec.Mounts = append(spec.Mounts, Mount{
			Source:   e.cfg.AuthHostDir,
			Dest:     e.cfg.AuthContainerDir,
			ReadOnly: true,
		})
	}

	return &spec
}

func containerName(t *task.Task) string {
	return strings.ToLower(fmt.Sprintf("agentbot-%s-%s-%s", t.RepoOwner, t.RepoName, uuid.NewString()))
}
