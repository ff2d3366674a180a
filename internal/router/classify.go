package router

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"

	"github.com/simplesurance/agentbot/internal/boterr"
	ghprovider "github.com/simplesurance/agentbot/internal/provider/github"
	"github.com/simplesurance/agentbot/internal/task"
)

const (
	reviewStateChangesRequested = "changes_requested"
	reviewStateCommented        = "commented"
)

// Classifier decides how webhook events are processed.
// Self-loop checks are evaluated before any authorization check.
type Classifier struct {
	botLogin    string
	policy      *AuthorizationPolicy
	autoTagging bool
}

func NewClassifier(botUsername string, policy *AuthorizationPolicy, autoTagging bool) *Classifier {
	return &Classifier{
		botLogin:    normalizeLogin(botUsername),
		policy:      policy,
		autoTagging: autoTagging,
	}
}

func (c *Classifier) isBot(login string) bool {
	return login != "" && normalizeLogin(login) == c.botLogin
}

// Classify returns the Decision for an event.
func (c *Classifier) Classify(ev *ghprovider.Event) Decision {
	switch e := ev.Event.(type) {
	case *github.IssuesEvent:
		switch e.GetAction() {
		case "assigned":
			return c.classifyIssueAssigned(e)
		case "opened":
			if c.autoTagging {
				return c.classifyIssueOpened(e)
			}
			return ignored("auto-tagging is disabled")
		}

	case *github.PullRequestReviewEvent:
		if e.GetAction() == "submitted" {
			return c.classifyReviewSubmitted(e)
		}

	case *github.PullRequestReviewCommentEvent:
		if e.GetAction() == "created" {
			return c.classifyReviewCommentCreated(e)
		}

	default:
		return ignored(fmt.Sprintf("unsupported event type: %s", ev.Type))
	}

	return ignored(fmt.Sprintf("unsupported action: %s", ev.Action))
}

func (c *Classifier) classifyIssueAssigned(ev *github.IssuesEvent) Decision {
	assignee := ev.GetAssignee().GetLogin()
	if !c.isBot(assignee) {
		return ignored("assignee is not the bot")
	}

	sender := ev.GetSender().GetLogin()
	if c.isBot(sender) {
		return selfLoop("issue was assigned by the bot")
	}

	t, err := issueTask(ev)
	if err != nil {
		return malformed(err)
	}

	if !c.policy.IsAuthorized(sender) {
		return Decision{
			Kind:   DecisionUnauthorized,
			Reason: "sender is not an authorized user",
			Err:    fmt.Errorf("%w: %s", boterr.ErrUnauthorized, sender),
			Task:   t,
			Sender: sender,
		}
	}

	t.Command = ev.GetIssue().GetTitle() + "\n\n" + ev.GetIssue().GetBody()

	return Decision{
		Kind:   DecisionDispatch,
		Reason: "issue assigned to bot by authorized user",
		Task:   t,
		Sender: sender,
		route:  &routeIssueAssigned,
	}
}

func (c *Classifier) classifyIssueOpened(ev *github.IssuesEvent) Decision {
	sender := ev.GetSender().GetLogin()
	if c.isBot(sender) {
		return selfLoop("issue was opened by the bot")
	}

	t, err := issueTask(ev)
	if err != nil {
		return malformed(err)
	}

	if !c.policy.IsAuthorized(sender) {
		return ignored("sender is not authorized for auto-tagging")
	}

	issue := ev.GetIssue()
	t.OperationType = task.OperationAutoTagging
	t.Command = fmt.Sprintf(
		"Auto-tag this issue: analyze issue #%d in %s and apply fitting labels that already exist in the repository with `gh issue edit %d --add-label <label>`. Do not change any code and do not comment on the issue.\n\nIssue title: %s\n\nIssue body:\n%s",
		t.IssueNumber, t.RepoFullName, t.IssueNumber, issue.GetTitle(), issue.GetBody(),
	)

	return Decision{
		Kind:   DecisionDispatch,
		Reason: "issue opened by authorized user",
		Task:   t,
		Sender: sender,
		route:  &routeIssueAutoTagging,
	}
}

func (c *Classifier) classifyReviewSubmitted(ev *github.PullRequestReviewEvent) Decision {
	review := ev.GetReview()
	reviewer := review.GetUser().GetLogin()
	sender := ev.GetSender().GetLogin()

	if c.isBot(reviewer) {
		return selfLoop("review was authored by the bot")
	}

	if c.isBot(sender) {
		return selfLoop("review was submitted by the bot")
	}

	pr := ev.GetPullRequest()
	if !c.isBot(pr.GetUser().GetLogin()) {
		return ignored("pull request is not authored by the bot")
	}

	state := strings.ToLower(review.GetState())
	if state != reviewStateChangesRequested && state != reviewStateCommented {
		return ignored(fmt.Sprintf("review state is %q", state))
	}

	body := review.GetBody()
	if strings.TrimSpace(body) == "" {
		return ignored("review body is empty")
	}

	t, err := pullRequestTask(ev.GetRepo(), pr)
	if err != nil {
		return malformed(err)
	}

	t.Command = fmt.Sprintf(
		"%s reviewed pull request #%d (%s) on branch %s with state %q.\n\nReview:\n%s\n\nAddress the review feedback, commit the changes to the branch %s and push them.",
		reviewer, pr.GetNumber(), pr.GetTitle(), *t.BranchName, state, body, *t.BranchName,
	)

	return Decision{
		Kind:   DecisionDispatch,
		Reason: "review on pull request of the bot",
		Task:   t,
		Sender: sender,
		route:  &routePullRequestReview,
	}
}

func (c *Classifier) classifyReviewCommentCreated(ev *github.PullRequestReviewCommentEvent) Decision {
	comment := ev.GetComment()
	author := comment.GetUser().GetLogin()
	sender := ev.GetSender().GetLogin()

	if c.isBot(author) {
		return selfLoop("review comment was authored by the bot")
	}

	if c.isBot(sender) {
		return selfLoop("review comment was created by the bot")
	}

	pr := ev.GetPullRequest()
	if !c.isBot(pr.GetUser().GetLogin()) {
		return ignored("pull request is not authored by the bot")
	}

	t, err := pullRequestTask(ev.GetRepo(), pr)
	if err != nil {
		return malformed(err)
	}

	var location string
	if path := comment.GetPath(); path != "" {
		location = " on " + path
		if line := comment.GetLine(); line > 0 {
			location += fmt.Sprintf(" line %d", line)
		}
	}

	var hunk string
	if h := comment.GetDiffHunk(); h != "" {
		hunk = "\n\nDiff context:\n" + h
	}

	t.Command = fmt.Sprintf(
		"%s commented%s in pull request #%d (%s) on branch %s:\n\n%s%s\n\nAddress the comment, commit the changes to the branch %s and push them.",
		author, location, pr.GetNumber(), pr.GetTitle(), *t.BranchName, comment.GetBody(), hunk, *t.BranchName,
	)

	return Decision{
		Kind:   DecisionDispatch,
		Reason: "review comment on pull request of the bot",
		Task:   t,
		Sender: sender,
		route:  &routeReviewComment,
	}
}

func repoTask(repo *github.Repository) (*task.Task, error) {
	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()
	if owner == "" || name == "" {
		return nil, fmt.Errorf("%w: repository owner or name missing", boterr.ErrMalformedPayload)
	}

	fullName := repo.GetFullName()
	if fullName == "" {
		fullName = owner + "/" + name
	}

	return &task.Task{
		RepoFullName:  fullName,
		RepoOwner:     owner,
		RepoName:      name,
		OperationType: task.OperationDefault,
	}, nil
}

func issueTask(ev *github.IssuesEvent) (*task.Task, error) {
	t, err := repoTask(ev.GetRepo())
	if err != nil {
		return nil, err
	}

	if t.IssueNumber = ev.GetIssue().GetNumber(); t.IssueNumber <= 0 {
		return nil, fmt.Errorf("%w: issue number missing", boterr.ErrMalformedPayload)
	}

	return t, nil
}

func pullRequestTask(repo *github.Repository, pr *github.PullRequest) (*task.Task, error) {
	t, err := repoTask(repo)
	if err != nil {
		return nil, err
	}

	if t.IssueNumber = pr.GetNumber(); t.IssueNumber <= 0 {
		return nil, fmt.Errorf("%w: pull request number missing", boterr.ErrMalformedPayload)
	}

	branch := pr.GetHead().GetRef()
	if branch == "" {
		return nil, fmt.Errorf("%w: pull request head ref missing", boterr.ErrMalformedPayload)
	}

	t.IsPullRequest = true
	t.BranchName = &branch

	return t, nil
}
