package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeBotMentions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		bot  string
		want string
	}{
		{name: "mention", in: "thanks @TestBot", bot: "@TestBot", want: "thanks TestBot"},
		{name: "case insensitive", in: "@testbot please", bot: "TestBot", want: "testbot please"},
		{name: "multiple", in: "@TestBot and @TestBot.", bot: "TestBot", want: "TestBot and TestBot."},
		{name: "longer login is kept", in: "@TestBotter", bot: "TestBot", want: "@TestBotter"},
		{name: "other user is kept", in: "@alice", bot: "TestBot", want: "@alice"},
		{name: "empty bot", in: "@TestBot", bot: "", want: "@TestBot"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeBotMentions(tc.in, tc.bot))
		})
	}
}
