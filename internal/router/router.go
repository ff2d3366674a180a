// Package router decides for incoming GitHub webhook events if the agent is
// run, runs it and reports the result on GitHub.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/action"
	actiongh "github.com/simplesurance/agentbot/internal/action/github"
	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/logfields"
	ghprovider "github.com/simplesurance/agentbot/internal/provider/github"
	"github.com/simplesurance/agentbot/internal/stringutils"
	"github.com/simplesurance/agentbot/internal/task"
)

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient
//go:generate mockgen -destination=mocks/commandprocessor.go -package=mocks . CommandProcessor

const loggerName = "router"

const unauthorizedMsg = "Unauthorized user - assignment ignored"

const maxFailureDetailLen = 16 * 1024

// GithubClient reports results on GitHub.
type GithubClient interface {
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (int, error)
	AddLabel(ctx context.Context, owner, repo string, issueOrPRNr int, label string) error
	RemoveLabel(ctx context.Context, owner, repo string, issueOrPRNr int, label string) error
}

// CommandProcessor runs the agent for a task and returns its output.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, t *task.Task) (string, error)
}

// Labels are set on assigned issues to reflect the processing state.
// Empty values disable setting the label.
type Labels struct {
	InProgress string
	Completed  string
	Failed     string
}

type Config struct {
	BotUsername     string
	AuthorizedUsers []string
	AutoTagging     bool
	Labels          Labels
	Filters         []*Filter
	// RetryTimeout is the max. duration a failed GitHub operation is
	// retried.
	RetryTimeout time.Duration
}

// Router is an ghprovider.EventHandler that classifies events, runs the
// agent for dispatched tasks and reports results on GitHub.
type Router struct {
	classifier *Classifier
	filters    []*Filter
	labels     Labels
	botLogin   string

	clt       GithubClient
	processor CommandProcessor
	retryer   *Retryer

	logger *zap.Logger
}

func New(cfg *Config, clt GithubClient, processor CommandProcessor) *Router {
	retryer := NewRetryer()
	if cfg.RetryTimeout > 0 {
		retryer.defTimeout = cfg.RetryTimeout
	}

	return &Router{
		classifier: NewClassifier(cfg.BotUsername, NewAuthorizationPolicy(cfg.AuthorizedUsers), cfg.AutoTagging),
		filters:    cfg.Filters,
		labels:     cfg.Labels,
		botLogin:   normalizeLogin(cfg.BotUsername),
		clt:        clt,
		processor:  processor,
		retryer:    retryer,
		logger:     zap.L().Named(loggerName),
	}
}

// Stop aborts retrying running GitHub operations.
func (r *Router) Stop() {
	r.retryer.Stop()
}

// HandleEvent processes a webhook event and returns the response for the
// webhook request.
func (r *Router) HandleEvent(ctx context.Context, ev *ghprovider.Event) *ghprovider.Response {
	logger := r.logger.With(ev.LogFields...)

	d := r.classifier.Classify(ev)
	if d.Kind == DecisionDispatch {
		d = r.applyFilters(ctx, logger, ev, d)
	}

	metrics.DeliveryClassified(ev.Type, d.Kind)

	logger = logger.With(
		logfields.Decision(d.Kind.String()),
		logfields.Reason(d.Reason),
		logfields.Sender(d.Sender),
	)
	if d.Err != nil {
		logger = logger.With(zap.Error(d.Err))
	}
	if d.Task != nil {
		logger = logger.With(d.Task.LogFields()...)
	}

	switch d.Kind {
	case DecisionUnauthorized:
		return r.handleUnauthorized(ctx, logger, &d)

	case DecisionDispatch:
		return r.dispatch(ctx, logger, &d)

	default:
		logger.Debug("event ignored", logfields.Event("event_ignored"))
		return ghprovider.AckResponse()
	}
}

func (r *Router) applyFilters(ctx context.Context, logger *zap.Logger, ev *ghprovider.Event, d Decision) Decision {
	for _, f := range r.filters {
		match, err := f.Match(ctx, ev.JSON)
		if err != nil {
			logger.Warn("evaluating event filter failed, ignoring event",
				logfields.Event("event_filter_evaluation_failed"),
				zap.Stringer("filter", f),
				zap.Error(err),
			)

			return Decision{Kind: DecisionIgnored, Reason: fmt.Sprintf("filter %s failed", f), Sender: d.Sender}
		}

		if !match {
			return Decision{Kind: DecisionIgnored, Reason: fmt.Sprintf("filter %s does not match", f), Sender: d.Sender}
		}
	}

	return d
}

func (r *Router) handleUnauthorized(ctx context.Context, logger *zap.Logger, d *Decision) *ghprovider.Response {
	logger.Info("ignoring issue assignment from unauthorized user",
		logfields.Event("issue_assignment_unauthorized"),
	)

	comment := fmt.Sprintf(
		"Sorry @%s, only authorized users can assign issues to %s. This assignment was ignored.",
		d.Sender, r.botLogin,
	)

	r.run(ctx, logger, actiongh.NewCommentRunner(r.clt, target(d.Task), comment))

	return ghprovider.SuccessResponse(unauthorizedMsg)
}

func (r *Router) dispatch(ctx context.Context, logger *zap.Logger, d *Decision) *ghprovider.Response {
	t := d.Task
	tgt := target(t)

	logger.Info("dispatching task",
		logfields.Event("task_dispatching"),
		logfields.Operation(t.Operation()),
	)

	if d.route.manageLabel {
		r.addLabel(ctx, logger, tgt, r.labels.InProgress)
	}

	output, err := r.processor.ProcessCommand(ctx, t)
	if err != nil {
		metrics.DispatchFinished(d.route.name, resultLabelFailureVal)
		logger.Error("processing task failed",
			logfields.Event("task_processing_failed"),
			zap.Error(err),
		)

		if d.route.manageLabel {
			r.removeLabel(ctx, logger, tgt, r.labels.InProgress)
			r.addLabel(ctx, logger, tgt, r.labels.Failed)
		}

		r.reportFailure(ctx, logger, t, err)

		return ghprovider.FailureResponse(http.StatusInternalServerError, d.route.failureMsg)
	}

	metrics.DispatchFinished(d.route.name, resultLabelSuccessVal)
	logger.Info("task processed successfully",
		logfields.Event("task_processed"),
	)

	if d.route.manageLabel {
		r.removeLabel(ctx, logger, tgt, r.labels.InProgress)
		r.addLabel(ctx, logger, tgt, r.labels.Completed)
	}

	if d.route.postOutput && strings.TrimSpace(output) != "" {
		r.run(ctx, logger, actiongh.NewCommentRunner(r.clt, tgt, output))
	}

	return ghprovider.SuccessResponse(d.route.successMsg)
}

func (r *Router) reportFailure(ctx context.Context, logger *zap.Logger, t *task.Task, err error) {
	scope := "issue"
	if t.IsPullRequest {
		scope = "pull request"
	}

	title := fmt.Sprintf("Bot failed to process %s #%d", scope, t.IssueNumber)

	var body strings.Builder
	fmt.Fprintf(&body, "Processing %s #%d in %s failed.\n\n", scope, t.IssueNumber, t.RepoFullName)
	body.WriteString("Error:\n\n")
	body.WriteString(stringutils.IndentString(err.Error(), "    "))
	body.WriteString("\n")

	var execErr *boterr.SandboxExecutionError
	if errors.As(err, &execErr) {
		writeFailureDetail(&body, "Stderr", execErr.Stderr)
		writeFailureDetail(&body, "Container logs", execErr.Logs)
	}

	creator := actiongh.NewCreateIssueRunner(r.clt, t.RepoOwner, t.RepoName, title, body.String())
	if r.run(ctx, logger, creator) == nil {
		logger.Info("created issue for failed task",
			logfields.Event("failure_issue_created"),
			zap.Int("github.failure_issue", creator.Created()),
		)
	}
}

func writeFailureDetail(sb *strings.Builder, name, val string) {
	if strings.TrimSpace(val) == "" {
		return
	}

	fmt.Fprintf(sb, "\n%s:\n\n", name)
	sb.WriteString(stringutils.IndentString(stringutils.Truncate(val, maxFailureDetailLen), "    "))
	sb.WriteString("\n")
}

func (r *Router) addLabel(ctx context.Context, logger *zap.Logger, tgt actiongh.Target, label string) {
	if label == "" {
		return
	}

	r.run(ctx, logger, actiongh.NewAddLabelRunner(r.clt, tgt, label))
}

func (r *Router) removeLabel(ctx context.Context, logger *zap.Logger, tgt actiongh.Target, label string) {
	if label == "" {
		return
	}

	r.run(ctx, logger, actiongh.NewRemoveLabelRunner(r.clt, tgt, label))
}

// run executes act via the retryer. Failures are logged, they never change the
// response of a delivery.
func (r *Router) run(ctx context.Context, logger *zap.Logger, act action.Runner) error {
	err := r.retryer.Run(ctx, act)
	if err != nil {
		logger.Warn("reporting result on github failed",
			logfields.Event("github_report_failed"),
			zap.Stringer("action", act),
			zap.Error(err),
		)
	}

	return err
}

func target(t *task.Task) actiongh.Target {
	return actiongh.Target{
		RepositoryOwner: t.RepoOwner,
		Repository:      t.RepoName,
		Number:          t.IssueNumber,
		IsPullRequest:   t.IsPullRequest,
	}
}
