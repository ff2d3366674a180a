package github

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type IssueCommenter interface {
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// CommentRunner posts a comment on an issue or pull request.
type CommentRunner struct {
	clt    IssueCommenter
	target Target
	body   string
}

func NewCommentRunner(clt IssueCommenter, target Target, body string) *CommentRunner {
	return &CommentRunner{
		clt:    clt,
		target: target,
		body:   body,
	}
}

func (r *CommentRunner) Run(ctx context.Context) error {
	return r.clt.CreateIssueComment(ctx, r.target.RepositoryOwner, r.target.Repository, r.target.Number, r.body)
}

func (r *CommentRunner) LogFields() []zap.Field {
	return append(r.target.logFields(), zap.String("action", "github.create_comment"))
}

func (r *CommentRunner) String() string {
	return fmt.Sprintf("github create comment: %s", &r.target)
}
