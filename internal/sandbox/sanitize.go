package sandbox

import (
	"regexp"
	"strings"
)

// SanitizeBotMentions replaces "@<botLogin>" mentions in text with
// "<botLogin>". This prevents that comments that are created from agent output
// notify and re-trigger the bot.
// GitHub logins are case-insensitive, mentions are matched accordingly.
func SanitizeBotMentions(text, botLogin string) string {
	botLogin = strings.TrimPrefix(strings.TrimSpace(botLogin), "@")
	if botLogin == "" || text == "" {
		return text
	}

	re := regexp.MustCompile(`(?i)@(` + regexp.QuoteMeta(botLogin) + `)([^A-Za-z0-9-]|$)`)

	return re.ReplaceAllString(text, "${1}${2}")
}
