// Package github provides action runners that write to GitHub issues and
// pull requests.
package github

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

// Target identifies an issue or pull request.
type Target struct {
	RepositoryOwner string
	Repository      string
	Number          int
	IsPullRequest   bool
}

func (t *Target) logFields() []zap.Field {
	nr := logfields.Issue(t.Number)
	if t.IsPullRequest {
		nr = logfields.PullRequest(t.Number)
	}

	return []zap.Field{
		logfields.RepositoryOwner(t.RepositoryOwner),
		logfields.Repository(t.Repository),
		nr,
	}
}

func (t *Target) String() string {
	return fmt.Sprintf("%s/%s#%d", t.RepositoryOwner, t.Repository, t.Number)
}
