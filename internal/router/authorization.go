package router

import "strings"

// AuthorizationPolicy decides if a GitHub user may invoke the agent.
// The allow-list is fixed at creation, an empty list authorizes nobody.
type AuthorizationPolicy struct {
	allowed map[string]struct{}
}

func NewAuthorizationPolicy(users []string) *AuthorizationPolicy {
	p := AuthorizationPolicy{allowed: make(map[string]struct{}, len(users))}

	for _, u := range users {
		if login := normalizeLogin(u); login != "" {
			p.allowed[login] = struct{}{}
		}
	}

	return &p
}

func (p *AuthorizationPolicy) IsAuthorized(login string) bool {
	login = normalizeLogin(login)
	if login == "" {
		return false
	}

	_, exists := p.allowed[login]
	return exists
}

// normalizeLogin returns login in lowercase without a leading "@", GitHub
// logins are case-insensitive.
func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "@"))
}
