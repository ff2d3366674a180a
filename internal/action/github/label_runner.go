package github

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/logfields"
)

type Labeler interface {
	AddLabel(ctx context.Context, owner, repo string, issueOrPRNr int, label string) error
	RemoveLabel(ctx context.Context, owner, repo string, issueOrPRNr int, label string) error
}

// LabelRunner adds or removes a label of an issue or pull request.
type LabelRunner struct {
	clt    Labeler
	target Target
	label  string
	remove bool
}

func NewAddLabelRunner(clt Labeler, target Target, label string) *LabelRunner {
	return &LabelRunner{clt: clt, target: target, label: label}
}

func NewRemoveLabelRunner(clt Labeler, target Target, label string) *LabelRunner {
	return &LabelRunner{clt: clt, target: target, label: label, remove: true}
}

func (r *LabelRunner) Run(ctx context.Context) error {
	if r.remove {
		return r.clt.RemoveLabel(ctx, r.target.RepositoryOwner, r.target.Repository, r.target.Number, r.label)
	}

	return r.clt.AddLabel(ctx, r.target.RepositoryOwner, r.target.Repository, r.target.Number, r.label)
}

func (r *LabelRunner) LogFields() []zap.Field {
	return append(r.target.logFields(),
		zap.String("action", r.name()),
		logfields.Label(r.label),
	)
}

func (r *LabelRunner) name() string {
	if r.remove {
		return "github.remove_label"
	}
	return "github.add_label"
}

func (r *LabelRunner) String() string {
	if r.remove {
		return fmt.Sprintf("github remove label: %s, label: %s", &r.target, r.label)
	}

	return fmt.Sprintf("github add label: %s, label: %s", &r.target, r.label)
}
