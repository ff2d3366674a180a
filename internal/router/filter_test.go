package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	payload := []byte(`{"action":"assigned","repository":{"full_name":"owner/repo"}}`)

	testcases := []struct {
		name    string
		query   string
		want    bool
		wantErr bool
	}{
		{name: "true", query: `.repository.full_name == "owner/repo"`, want: true},
		{name: "false", query: `.repository.full_name == "other/repo"`, want: false},
		{name: "non-bool", query: `.action`, wantErr: true},
		{name: "multiple results", query: `.action, .action`, wantErr: true},
		{name: "no result", query: `empty`, wantErr: true},
		{name: "runtime error", query: `error("boom")`, wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilter(tc.name, tc.query)
			require.NoError(t, err)

			match, err := f.Match(context.Background(), payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, match)
		})
	}
}

func TestNewFilterInvalidQuery(t *testing.T) {
	_, err := NewFilter("broken", `.a ==`)
	assert.Error(t, err)
}

func TestFilterEmptyPayload(t *testing.T) {
	f, err := NewFilter("f", `true`)
	require.NoError(t, err)

	_, err = f.Match(context.Background(), nil)
	assert.Error(t, err)
}
