package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizationPolicy(t *testing.T) {
	p := NewAuthorizationPolicy([]string{"testuser", " Admin ", "@octocat", ""})

	assert.True(t, p.IsAuthorized("testuser"))
	assert.True(t, p.IsAuthorized("TestUser"))
	assert.True(t, p.IsAuthorized("admin"))
	assert.True(t, p.IsAuthorized("octocat"))
	assert.False(t, p.IsAuthorized("mallory"))
	assert.False(t, p.IsAuthorized(""))
}

func TestEmptyAuthorizationPolicyDeniesEveryone(t *testing.T) {
	p := NewAuthorizationPolicy(nil)

	assert.False(t, p.IsAuthorized("testuser"))
	assert.False(t, p.IsAuthorized(""))
}
