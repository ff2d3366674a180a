package router

import (
	"fmt"

	"github.com/simplesurance/agentbot/internal/task"
)

// DecisionKind is the result of classifying a webhook event.
type DecisionKind uint8

const (
	DecisionUndefined DecisionKind = iota
	// DecisionIgnored is returned for events that do not trigger the agent.
	DecisionIgnored
	// DecisionSelfLoop is returned for events that were caused by the bot
	// itself.
	DecisionSelfLoop
	// DecisionUnauthorized is returned when the sender is not allowed to
	// invoke the agent.
	DecisionUnauthorized
	// DecisionDispatch is returned when the agent must run the task of the
	// Decision.
	DecisionDispatch
)

var decisionKindString = [...]string{
	DecisionUndefined:    "undefined",
	DecisionIgnored:      "ignored",
	DecisionSelfLoop:     "self_loop",
	DecisionUnauthorized: "unauthorized",
	DecisionDispatch:     "dispatch",
}

func (k DecisionKind) String() string {
	if int(k) > len(decisionKindString)-1 {
		return fmt.Sprintf("unsupported DecisionKind value: %d", k)
	}

	return decisionKindString[k]
}

// Decision is the result of Classify.
type Decision struct {
	Kind   DecisionKind
	Reason string
	// Err is set for DecisionUnauthorized and for events that are ignored
	// because of a malformed payload.
	Err error
	// Task is set for DecisionDispatch and DecisionUnauthorized.
	Task   *task.Task
	Sender string

	route *route
}

// route defines how a dispatched task of an event type is reported.
type route struct {
	// name is used as metric label value.
	name        string
	successMsg  string
	failureMsg  string
	postOutput  bool
	manageLabel bool
}

var (
	routeIssueAssigned = route{
		name:        "issue_assignment",
		successMsg:  "Issue assignment processed successfully",
		failureMsg:  "Failed to process assigned issue",
		manageLabel: true,
	}

	routeIssueAutoTagging = route{
		name:       "auto_tagging",
		successMsg: "Issue auto-tagging processed successfully",
		failureMsg: "Failed to auto-tag issue",
	}

	routePullRequestReview = route{
		name:       "pull_request_review",
		successMsg: "Pull request review processed successfully",
		failureMsg: "Failed to process pull request review",
		postOutput: true,
	}

	routeReviewComment = route{
		name:       "review_comment",
		successMsg: "Review comment processed successfully",
		failureMsg: "Failed to process review comment",
		postOutput: true,
	}
)

func ignored(reason string) Decision {
	return Decision{Kind: DecisionIgnored, Reason: reason}
}

func selfLoop(reason string) Decision {
	return Decision{Kind: DecisionSelfLoop, Reason: reason}
}

func malformed(err error) Decision {
	return Decision{Kind: DecisionIgnored, Reason: err.Error(), Err: err}
}
