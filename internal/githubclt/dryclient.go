package githubclt

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

// DryClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// Read operations are forwarded to the wrapped Client.
type DryClient struct {
	clt    *Client
	logger *zap.Logger
}

func NewDryClient(clt *Client, logger *zap.Logger) *DryClient {
	return &DryClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryClient) CreateIssueComment(_ context.Context, owner, repo string, issueOrPRNr int, _ string) error {
	c.logger.Info("simulated creating of github issue comment, no comment created on github",
		logfields.Event("github_dry_issue_comment_created"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Issue(issueOrPRNr),
	)
	return nil
}

func (c *DryClient) CreateIssue(_ context.Context, owner, repo, title, _ string, _ []string) (int, error) {
	c.logger.Info("simulated creating of github issue, no issue created on github",
		logfields.Event("github_dry_issue_created"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		zap.String("github.issue_title", title),
	)
	return 0, nil
}

func (c *DryClient) AddLabel(_ context.Context, owner, repo string, issueOrPRNr int, label string) error {
	c.logger.Info("simulated adding label, no label added on github",
		logfields.Event("github_dry_label_added"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Issue(issueOrPRNr),
		logfields.Label(label),
	)
	return nil
}

func (*DryClient) RemoveLabel(context.Context, string, string, int, string) error {
	return nil
}

func (c *DryClient) FetchRepoInstructions(ctx context.Context, owner, repo string) (string, error) {
	return c.clt.FetchRepoInstructions(ctx, owner, repo)
}
