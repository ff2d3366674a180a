package githubclt

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestDryClientSimulatesWritesAndForwardsReads(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("dry client sent a write request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"repository":{"object":{"text":"instructions","isTruncated":false}}}}`)
	}))

	dry := NewDryClient(clt, zap.L())
	ctx := context.Background()

	assert.NoError(t, dry.CreateIssueComment(ctx, "owner", "repo", 1, "hello"))
	assert.NoError(t, dry.AddLabel(ctx, "owner", "repo", 1, "bot:in-progress"))
	assert.NoError(t, dry.RemoveLabel(ctx, "owner", "repo", 1, "bot:in-progress"))

	_, err := dry.CreateIssue(ctx, "owner", "repo", "title", "body", nil)
	assert.NoError(t, err)

	instr, err := dry.FetchRepoInstructions(ctx, "owner", "repo")
	require.NoError(t, err)
	assert.Equal(t, "instructions", instr)
}
