package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/agentbot/internal/logfields"
)

// FetchRepoInstructions returns the content of the instructions file in the
// default branch of the repository.
// If the file does not exist or is not a regular file, an empty string and
// no error is returned.
func (clt *Client) FetchRepoInstructions(ctx context.Context, owner, repo string) (string, error) {
	var q struct {
		Repository struct {
			Object struct {
				Blob struct {
					Text        string
					IsTruncated bool
				} `graphql:"... on Blob"`
			} `graphql:"object(expression: $expression)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":      githubv4.String(owner),
		"name":       githubv4.String(repo),
		"expression": githubv4.String("HEAD:" + clt.instructionsFile),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return "", fmt.Errorf("querying %s failed: %w", clt.instructionsFile, clt.wrapGraphQLRetryableErrors(err))
	}

	blob := q.Repository.Object.Blob
	if blob.IsTruncated {
		clt.logger.Warn("repository instructions file is truncated",
			logfields.Event("github_repo_instructions_truncated"),
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
		)
	}

	return blob.Text, nil
}
