package ragchat

import "context"

// Identity is the black-box view of the identity provider.
type Identity interface {
	Authenticated() bool
	Admin() bool
	Token(ctx context.Context) (string, error)
}

// StaticIdentity is an Identity backed by a pre-issued bearer token.
type StaticIdentity struct {
	BearerToken string
	Groups      []string
}

// Interface compliance check.
var _ Identity = StaticIdentity{}

// Authenticated reports whether a token is present.
func (s StaticIdentity) Authenticated() bool { return s.BearerToken != "" }

// Admin reports membership in the "admin" group.
func (s StaticIdentity) Admin() bool {
	for _, g := range s.Groups {
		if g == "admin" {
			return true
		}
	}
	return false
}

// Token returns the bearer token.
func (s StaticIdentity) Token(context.Context) (string, error) {
	return s.BearerToken, nil
}
