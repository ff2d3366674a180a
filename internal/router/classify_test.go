package router

import (
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/task"
)

func newTestClassifier(autoTagging bool) *Classifier {
	return NewClassifier(botUsername, NewAuthorizationPolicy([]string{"testuser", "admin"}), autoTagging)
}

func TestClassify(t *testing.T) {
	body := github.String("Please implement this feature with tests.")

	testcases := []struct {
		name     string
		hookType string
		event    any
		want     DecisionKind
	}{
		{
			name:     "issue assigned by authorized user",
			hookType: "issues",
			event:    issuesEvent("assigned", "TestBot", "testuser", body),
			want:     DecisionDispatch,
		},
		{
			name:     "bot login is compared case-insensitive",
			hookType: "issues",
			event:    issuesEvent("assigned", "testbot", "Admin", body),
			want:     DecisionDispatch,
		},
		{
			name:     "issue assigned to other user",
			hookType: "issues",
			event:    issuesEvent("assigned", "someone", "testuser", body),
			want:     DecisionIgnored,
		},
		{
			name:     "issue assigned by unauthorized user",
			hookType: "issues",
			event:    issuesEvent("assigned", "TestBot", "mallory", body),
			want:     DecisionUnauthorized,
		},
		{
			name:     "issue assigned by bot",
			hookType: "issues",
			event:    issuesEvent("assigned", "TestBot", "TestBot", body),
			want:     DecisionSelfLoop,
		},
		{
			name:     "issue closed",
			hookType: "issues",
			event:    issuesEvent("closed", "TestBot", "testuser", body),
			want:     DecisionIgnored,
		},
		{
			name:     "issue opened with auto-tagging disabled",
			hookType: "issues",
			event:    issuesEvent("opened", "", "testuser", body),
			want:     DecisionIgnored,
		},
		{
			name:     "review requesting changes on bot pull request",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "changes_requested", github.String("Please add error handling")),
			want:     DecisionDispatch,
		},
		{
			name:     "review comment state in uppercase",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "COMMENTED", github.String("Looks odd")),
			want:     DecisionDispatch,
		},
		{
			name:     "approving review on bot pull request",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "approved", github.String("LGTM")),
			want:     DecisionIgnored,
		},
		{
			name:     "dismissed review on bot pull request",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "dismissed", github.String("x")),
			want:     DecisionIgnored,
		},
		{
			name:     "review on pull request of other user",
			hookType: "pull_request_review",
			event:    reviewEvent("someone", "reviewer", "commented", github.String("Looks good")),
			want:     DecisionIgnored,
		},
		{
			name:     "review without body",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "commented", nil),
			want:     DecisionIgnored,
		},
		{
			name:     "review with whitespace body",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "reviewer", "commented", github.String(" \n")),
			want:     DecisionIgnored,
		},
		{
			name:     "review by bot",
			hookType: "pull_request_review",
			event:    reviewEvent("TestBot", "TestBot", "commented", github.String("Some automated review feedback")),
			want:     DecisionSelfLoop,
		},
		{
			name:     "review comment on bot pull request without mention",
			hookType: "pull_request_review_comment",
			event:    reviewCommentEvent("TestBot", "reviewer", "This variable name is confusing, please rename it"),
			want:     DecisionDispatch,
		},
		{
			name:     "review comment on pull request of other user",
			hookType: "pull_request_review_comment",
			event:    reviewCommentEvent("someone", "reviewer", "This needs fixing"),
			want:     DecisionIgnored,
		},
		{
			name:     "review comment by bot",
			hookType: "pull_request_review_comment",
			event:    reviewCommentEvent("TestBot", "TestBot", "I fixed this in the latest commit"),
			want:     DecisionSelfLoop,
		},
		{
			name:     "unsupported event type",
			hookType: "push",
			event:    &github.PushEvent{Ref: github.String("refs/heads/main")},
			want:     DecisionIgnored,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestClassifier(false).Classify(newEvent(t, tc.hookType, tc.event))
			assert.Equalf(t, tc.want, d.Kind, "reason: %s", d.Reason)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestClassifySelfLoopPrecedesAuthorization(t *testing.T) {
	c := NewClassifier(botUsername, NewAuthorizationPolicy([]string{"TestBot"}), true)

	for name, ev := range map[string]any{
		"assigned": issuesEvent("assigned", "TestBot", "TestBot", nil),
		"opened":   issuesEvent("opened", "", "TestBot", nil),
	} {
		t.Run(name, func(t *testing.T) {
			d := c.Classify(newEvent(t, "issues", ev))
			assert.Equal(t, DecisionSelfLoop, d.Kind)
			assert.Nil(t, d.Task)
		})
	}
}

func TestClassifyReviewSenderIsBot(t *testing.T) {
	ev := reviewEvent("TestBot", "reviewer", "commented", github.String("feedback"))
	ev.Sender = user("TestBot")

	d := newTestClassifier(false).Classify(newEvent(t, "pull_request_review", ev))
	assert.Equal(t, DecisionSelfLoop, d.Kind)
}

func TestClassifyIssueCommand(t *testing.T) {
	testcases := map[string]struct {
		body *string
		want string
	}{
		"with body":  {body: github.String("Please implement this feature with tests."), want: "Add new feature\n\nPlease implement this feature with tests."},
		"null body":  {body: nil, want: "Add new feature\n\n"},
		"empty body": {body: github.String(""), want: "Add new feature\n\n"},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			d := newTestClassifier(false).Classify(newEvent(t, "issues", issuesEvent("assigned", "TestBot", "testuser", tc.body)))
			require.Equal(t, DecisionDispatch, d.Kind)
			assert.Equal(t, tc.want, d.Task.Command)
			assert.False(t, d.Task.IsPullRequest)
			assert.Nil(t, d.Task.BranchName)
			assert.Equal(t, task.OperationDefault, d.Task.OperationType)
		})
	}
}

func TestClassifyPullRequestTask(t *testing.T) {
	ev := reviewCommentEvent("TestBot", "reviewer", "This variable name is confusing, please rename it")

	d := newTestClassifier(false).Classify(newEvent(t, "pull_request_review_comment", ev))
	require.Equal(t, DecisionDispatch, d.Kind)

	assert.True(t, d.Task.IsPullRequest)
	require.NotNil(t, d.Task.BranchName)
	assert.Equal(t, headBranch, *d.Task.BranchName)
	assert.Equal(t, issueNr, d.Task.IssueNumber)
	assert.Contains(t, d.Task.Command, "This variable name is confusing, please rename it")
	assert.Contains(t, d.Task.Command, "main.go line 10")
}

func TestClassifyMalformedPayload(t *testing.T) {
	ev := issuesEvent("assigned", "TestBot", "testuser", nil)
	ev.Repo = nil

	d := newTestClassifier(false).Classify(newEvent(t, "issues", ev))
	assert.Equal(t, DecisionIgnored, d.Kind)
	assert.Contains(t, d.Reason, "malformed")
	assert.ErrorIs(t, d.Err, boterr.ErrMalformedPayload)

	rev := reviewEvent("TestBot", "reviewer", "commented", github.String("x"))
	rev.PullRequest.Head = nil

	d = newTestClassifier(false).Classify(newEvent(t, "pull_request_review", rev))
	assert.Equal(t, DecisionIgnored, d.Kind)
	assert.Contains(t, d.Reason, "malformed")
	assert.ErrorIs(t, d.Err, boterr.ErrMalformedPayload)
}

func TestClassifyUnauthorizedError(t *testing.T) {
	d := newTestClassifier(false).Classify(newEvent(t, "issues", issuesEvent("assigned", "TestBot", "mallory", nil)))
	require.Equal(t, DecisionUnauthorized, d.Kind)
	assert.ErrorIs(t, d.Err, boterr.ErrUnauthorized)
	assert.Contains(t, d.Err.Error(), "mallory")

	d = newTestClassifier(false).Classify(newEvent(t, "issues", issuesEvent("assigned", "TestBot", "testuser", nil)))
	require.Equal(t, DecisionDispatch, d.Kind)
	assert.NoError(t, d.Err)
}

func TestClassifyAutoTagging(t *testing.T) {
	c := newTestClassifier(true)

	d := c.Classify(newEvent(t, "issues", issuesEvent("opened", "", "testuser", github.String("it crashes"))))
	require.Equal(t, DecisionDispatch, d.Kind)
	assert.Equal(t, task.OperationAutoTagging, d.Task.OperationType)
	assert.Contains(t, d.Task.Command, "it crashes")

	d = c.Classify(newEvent(t, "issues", issuesEvent("opened", "", "mallory", nil)))
	assert.Equal(t, DecisionIgnored, d.Kind)
}

func TestDecisionKindString(t *testing.T) {
	assert.Equal(t, "self_loop", DecisionSelfLoop.String())
	assert.Equal(t, "dispatch", DecisionDispatch.String())
	assert.Contains(t, DecisionKind(200).String(), "unsupported")
}
