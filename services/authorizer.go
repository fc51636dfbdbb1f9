package services

import "strings"

// Identity is the caller as resolved by the identity provider.
type Identity struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// Authorizer decides which identities may act as reviewers.
type Authorizer interface {
	CanReview(id Identity) bool
}

// RoleAuthorizer grants review access by role, user ID or username.
type RoleAuthorizer struct {
	roles     map[string]struct{}
	userIDs   map[string]struct{}
	usernames map[string]struct{}
}

// NewRoleAuthorizer builds a RoleAuthorizer. Roles and usernames match
// case-insensitively, user IDs exactly.
func NewRoleAuthorizer(roles, userIDs, usernames []string) *RoleAuthorizer {
	return &RoleAuthorizer{
		roles:     toSet(roles, strings.ToLower),
		userIDs:   toSet(userIDs, nil),
		usernames: toSet(usernames, strings.ToLower),
	}
}

func (a *RoleAuthorizer) CanReview(id Identity) bool {
	if id.UserID == "" {
		return false
	}
	if _, ok := a.userIDs[id.UserID]; ok {
		return true
	}
	if id.Username != "" {
		if _, ok := a.usernames[strings.ToLower(id.Username)]; ok {
			return true
		}
	}
	for _, r := range id.Roles {
		if _, ok := a.roles[strings.ToLower(r)]; ok {
			return true
		}
	}
	return false
}

// RequireReviewer returns ErrUnauthorized for an anonymous caller and
// ErrForbidden for a caller without review access.
func RequireReviewer(a Authorizer, id Identity) error {
	if id.UserID == "" {
		return ErrUnauthorized
	}
	if !a.CanReview(id) {
		return ErrForbidden
	}
	return nil
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if norm != nil {
			v = norm(v)
		}
		set[v] = struct{}{}
	}
	return set
}
