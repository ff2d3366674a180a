// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// DefaultInstructionsFile is the path of the file in the default branch of a
// repository that contains instructions for the agent.
const DefaultInstructionsFile = "CLAUDE.md"

const loggerName = "github_client"

// Option configures a Client.
type Option func(*Client)

// WithInstructionsFile sets the repository path of the file that is returned
// by FetchRepoInstructions.
func WithInstructionsFile(path string) Option {
	return func(clt *Client) {
		clt.instructionsFile = path
	}
}

// New returns a new github api client.
func New(oauthAPItoken string, opts ...Option) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	clt := Client{
		restClt:          github.NewClient(httpClient),
		graphQLClt:       githubv4.NewClient(httpClient),
		logger:           zap.L().Named(loggerName),
		instructionsFile: DefaultInstructionsFile,
	}

	for _, opt := range opts {
		opt(&clt)
	}

	return &clt
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return a boterr.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt          *github.Client
	graphQLClt       *githubv4.Client
	logger           *zap.Logger
	instructionsFile string
}

// CreateIssueComment creates a comment in a issue or pull request
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// CreateIssue opens a new issue and returns its number.
func (clt *Client) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (int, error) {
	req := github.IssueRequest{
		Title: &title,
		Body:  &body,
	}

	if len(labels) > 0 {
		req.Labels = &labels
	}

	issue, _, err := clt.restClt.Issues.Create(ctx, owner, repo, &req)
	if err != nil {
		return 0, clt.wrapRetryableErrors(err)
	}

	return issue.GetNumber(), nil
}

// AddLabel adds a label to Pull-Request or Issue.
func (clt *Client) AddLabel(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, label string) error {
	if label == "" {
		// by default github removes all labels when none is provided,
		// we do not need this functionality, as safe guard fail if
		// because of a bug an empty label value is passed:
		return errors.New("provided label is empty")
	}
	_, _, err := clt.restClt.Issues.AddLabelsToIssue(ctx, owner, repo, pullRequestOrIssueNumber, []string{label})
	return clt.wrapRetryableErrors(err)
}

// RemoveLabel removes a label from a Pull-Request or issue.
// If the issue or PR does not have the label, the operation succeeds.
func (clt *Client) RemoveLabel(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, label string) error {
	_, err := clt.restClt.Issues.RemoveLabelForIssue(
		ctx,
		owner,
		repo,
		pullRequestOrIssueNumber,
		label,
	)
	if err == nil {
		return nil
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		clt.logger.Debug("removing label returned a not found response, interpreting it as success",
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
			logfields.Issue(pullRequestOrIssueNumber),
			logfields.Label(label),
			logfields.Event("github_remove_label_returned_not_found"),
			zap.Error(err),
		)

		return nil
	}

	return clt.wrapRetryableErrors(err)
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return boterr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Duration("github_api_retry_after", v.GetRetryAfter()),
		)

		return boterr.NewRetryableError(err, time.Now().Add(v.GetRetryAfter()))

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return boterr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return boterr.NewRetryableAnytimeError(err)
	}

	return err
}
