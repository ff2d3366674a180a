package github

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

type IssueCreator interface {
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (int, error)
}

// CreateIssueRunner opens a new issue in a repository.
type CreateIssueRunner struct {
	clt             IssueCreator
	repositoryOwner string
	repository      string
	title           string
	body            string
	labels          []string

	created int
}

func NewCreateIssueRunner(clt IssueCreator, owner, repo, title, body string, labels ...string) *CreateIssueRunner {
	return &CreateIssueRunner{
		clt:             clt,
		repositoryOwner: owner,
		repository:      repo,
		title:           title,
		body:            body,
		labels:          labels,
	}
}

// Run creates the issue.
// When Run already succeeded, it does nothing.
func (r *CreateIssueRunner) Run(ctx context.Context) error {
	if r.created != 0 {
		return nil
	}

	nr, err := r.clt.CreateIssue(ctx, r.repositoryOwner, r.repository, r.title, r.body, r.labels)
	if err != nil {
		return err
	}

	r.created = nr

	return nil
}

// Created returns the number of the created issue, 0 if no issue was
// created yet.
func (r *CreateIssueRunner) Created() int {
	return r.created
}

func (r *CreateIssueRunner) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("action", "github.create_issue"),
		logfields.RepositoryOwner(r.repositoryOwner),
		logfields.Repository(r.repository),
		zap.String("github.issue_title", r.title),
	}
}

func (r *CreateIssueRunner) String() string {
	return fmt.Sprintf("github create issue: repo: %s/%s, title: %q", r.repositoryOwner, r.repository, r.title)
}
