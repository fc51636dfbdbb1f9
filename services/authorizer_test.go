package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAuthorizer_CanReview(t *testing.T) {
	a := NewRoleAuthorizer([]string{"Reviewer", " admin "}, []string{"user_42"}, []string{"Root"})

	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{"role match ignores case", Identity{UserID: "u1", Roles: []string{"REVIEWER"}}, true},
		{"trimmed role", Identity{UserID: "u1", Roles: []string{"member", "admin"}}, true},
		{"configured user id", Identity{UserID: "user_42"}, true},
		{"admin username", Identity{UserID: "u2", Username: "root"}, true},
		{"plain member", Identity{UserID: "u3", Username: "alice", Roles: []string{"member"}}, false},
		{"anonymous with role", Identity{Roles: []string{"admin"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.CanReview(tt.id))
		})
	}
}

func TestRequireReviewer(t *testing.T) {
	a := NewRoleAuthorizer([]string{"reviewer"}, nil, nil)

	assert.ErrorIs(t, RequireReviewer(a, Identity{}), ErrUnauthorized)
	assert.ErrorIs(t, RequireReviewer(a, Identity{UserID: "u1"}), ErrForbidden)
	assert.NoError(t, RequireReviewer(a, Identity{UserID: "u1", Roles: []string{"reviewer"}}))
}
