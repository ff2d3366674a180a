// Package prompt assembles the instruction text that is passed to the agent.
package prompt

import (
	"fmt"
	"strings"

	"github.com/simplesurance/agentbot/internal/task"
)

// MaxCIFixAttempts is the number of times the agent may push fixes for
// failing CI checks before it gives up.
const MaxCIFixAttempts = 3

// Builder creates prompts for tasks.
type Builder struct {
	reviewer string
}

// NewBuilder returns a Builder. If reviewer is not empty, the agent is
// instructed to request a review from it on the pull request it creates.
func NewBuilder(reviewer string) *Builder {
	return &Builder{reviewer: strings.TrimPrefix(strings.TrimSpace(reviewer), "@")}
}

// Build returns the prompt for t.
// repoInstructions is appended as separate section when it is not empty.
func (b *Builder) Build(t *task.Task, repoInstructions string) string {
	var sb strings.Builder

	b.writeContext(&sb, t)

	sb.WriteString("## Request\n\n")
	sb.WriteString(t.Command)
	sb.WriteString("\n")

	if instr := strings.TrimSpace(repoInstructions); instr != "" {
		sb.WriteString("\n## Repository Instructions\n\n")
		sb.WriteString(instr)
		sb.WriteString("\n")
	}

	if t.Operation() == task.OperationDefault {
		b.writeCIVerificationLoop(&sb)
	}

	return sb.String()
}

func (b *Builder) writeContext(sb *strings.Builder, t *task.Task) {
	sb.WriteString("# Context\n\n")
	fmt.Fprintf(sb, "- Repository: %s\n", t.RepoFullName)

	if t.IsPullRequest {
		fmt.Fprintf(sb, "- Pull Request: #%d\n", t.IssueNumber)
		if t.BranchName != nil {
			fmt.Fprintf(sb, "- Branch: %s\n", *t.BranchName)
		}
	} else {
		fmt.Fprintf(sb, "- Issue: #%d\n", t.IssueNumber)
	}

	fmt.Fprintf(sb, "- Operation: %s\n\n", t.Operation())
}

func (b *Builder) writeCIVerificationLoop(sb *strings.Builder) {
	sb.WriteString("\n## Post-PR CI Verification Loop\n\n")
	sb.WriteString("After you pushed your changes and the pull request exists:\n\n")
	sb.WriteString("1. Wait for the CI checks to finish by running `gh pr checks --watch`.\n")
	fmt.Fprintf(sb,
		"2. If a check fails, inspect its logs, fix the cause, commit and push. Repeat this up to %d times.\n",
		MaxCIFixAttempts,
	)
	fmt.Fprintf(sb,
		"3. If checks still fail after %d attempts, stop and describe the remaining failures.\n",
		MaxCIFixAttempts,
	)
	sb.WriteString("4. Post a status comment with the final CI result on the pull request with `gh pr comment`.\n")

	if b.reviewer != "" {
		fmt.Fprintf(sb,
			"5. Request a review by running `gh pr edit <PR_NUMBER> --add-reviewer %s`.\n",
			b.reviewer,
		)
	}
}
