// Package task defines the unit of work that is handed to the command
// processor.
package task

import (
	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

const (
	// OperationDefault is a task that implements a change and opens or
	// updates a pull request.
	OperationDefault = "default"
	// OperationAutoTagging is a task that only labels a newly opened issue.
	OperationAutoTagging = "auto-tagging"
)

// Task describes the command the agent is asked to execute for an issue or
// pull request.
type Task struct {
	RepoFullName string
	RepoOwner    string
	RepoName     string
	// IssueNumber is the number of the issue or pull request.
	IssueNumber   int
	Command       string
	IsPullRequest bool
	// BranchName is the head branch of the pull request, nil for issues.
	BranchName    *string
	OperationType string
}

// Operation returns OperationType or OperationDefault if it is unset.
func (t *Task) Operation() string {
	if t.OperationType == "" {
		return OperationDefault
	}

	return t.OperationType
}

// LogFields returns fields identifying the repository and the issue or, for
// pull-request tasks, the pull request and its branch.
func (t *Task) LogFields() []zap.Field {
	fields := []zap.Field{
		logfields.RepositoryOwner(t.RepoOwner),
		logfields.Repository(t.RepoName),
	}

	if !t.IsPullRequest {
		return append(fields, logfields.Issue(t.IssueNumber))
	}

	fields = append(fields, logfields.PullRequest(t.IssueNumber))
	if t.BranchName != nil {
		fields = append(fields, logfields.Branch(*t.BranchName))
	}

	return fields
}
