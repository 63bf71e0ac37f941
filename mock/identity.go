package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

// Interface compliance check.
var _ ragchat.Identity = (*Identity)(nil)

// Identity is a test double for ragchat.Identity. Nil function fields report
// an unauthenticated, non-admin identity with an empty token.
type Identity struct {
	AuthenticatedFn func() bool
	AdminFn         func() bool
	TokenFn         func(ctx context.Context) (string, error)
}

// Authenticated delegates to AuthenticatedFn.
func (i *Identity) Authenticated() bool {
	if i.AuthenticatedFn == nil {
		return false
	}
	return i.AuthenticatedFn()
}

// Admin delegates to AdminFn.
func (i *Identity) Admin() bool {
	if i.AdminFn == nil {
		return false
	}
	return i.AdminFn()
}

// Token delegates to TokenFn.
func (i *Identity) Token(ctx context.Context) (string, error) {
	if i.TokenFn == nil {
		return "", nil
	}
	return i.TokenFn(ctx)
}
