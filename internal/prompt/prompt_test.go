package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/agentbot/internal/task"
)

func defaultTask() *task.Task {
	return &task.Task{
		RepoFullName:  "owner/repo",
		RepoOwner:     "owner",
		RepoName:      "repo",
		IssueNumber:   1,
		Command:       "Fix the bug",
		OperationType: task.OperationDefault,
	}
}

func TestDefaultOperationContainsCIVerificationLoop(t *testing.T) {
	p := NewBuilder("").Build(defaultTask(), "")

	assert.Contains(t, p, "Post-PR CI Verification Loop")
	assert.Contains(t, p, "gh pr checks --watch")
	assert.Contains(t, p, "up to 3 times")
	assert.Contains(t, p, "gh pr comment")
	assert.Contains(t, p, "Fix the bug")
}

func TestUnsetOperationIsDefault(t *testing.T) {
	tk := defaultTask()
	tk.OperationType = ""

	assert.Contains(t, NewBuilder("").Build(tk, ""), "Post-PR CI Verification Loop")
}

func TestAutoTaggingOmitsCIVerificationLoop(t *testing.T) {
	tk := defaultTask()
	tk.Command = "Auto-tag this issue"
	tk.OperationType = task.OperationAutoTagging

	p := NewBuilder("testreviewer").Build(tk, "")

	assert.NotContains(t, p, "Post-PR CI Verification Loop")
	assert.NotContains(t, p, "--add-reviewer")
	assert.Contains(t, p, "Auto-tag this issue")
}

func TestReviewerRequest(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		p := NewBuilder("testreviewer").Build(defaultTask(), "")
		assert.Contains(t, p, "gh pr edit <PR_NUMBER> --add-reviewer testreviewer")
	})

	t.Run("with at prefix", func(t *testing.T) {
		p := NewBuilder("@testreviewer").Build(defaultTask(), "")
		assert.Contains(t, p, "--add-reviewer testreviewer")
	})

	t.Run("unset", func(t *testing.T) {
		p := NewBuilder("").Build(defaultTask(), "")
		assert.NotContains(t, p, "--add-reviewer")
		assert.NotContains(t, p, "reviewer")
	})
}

func TestRepoInstructionsFollowCommand(t *testing.T) {
	p := NewBuilder("").Build(defaultTask(), "# Custom Instructions\nDo the thing.")

	cmdIdx := strings.Index(p, "Fix the bug")
	instrIdx := strings.Index(p, "## Repository Instructions")
	assert.Greater(t, cmdIdx, 0)
	assert.Greater(t, instrIdx, cmdIdx)
	assert.Contains(t, p, "Do the thing.")
}

func TestNoRepoInstructionsSection(t *testing.T) {
	p := NewBuilder("").Build(defaultTask(), "  \n")
	assert.NotContains(t, p, "Repository Instructions")
}

func TestPullRequestContext(t *testing.T) {
	branch := "feature-branch"
	tk := defaultTask()
	tk.IsPullRequest = true
	tk.IssueNumber = 42
	tk.BranchName = &branch

	p := NewBuilder("").Build(tk, "")

	assert.Contains(t, p, "Pull Request: #42")
	assert.Contains(t, p, "Branch: feature-branch")
	assert.NotContains(t, p, "Issue: #42")
}
