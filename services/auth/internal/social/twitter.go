package social

import (
	"context"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// TwitterLogin is the part of oauth.TwitterLogin the binding uses.
type TwitterLogin interface {
	LogIn(ctx context.Context, from oauth.Presenter, completion func(*oauth.TwitterSession, error))
}

// TwitterBinding adapts the Twitter SDK.
type TwitterBinding struct {
	sdk TwitterLogin
}

// NewTwitterBinding creates the binding.
func NewTwitterBinding(sdk TwitterLogin) *TwitterBinding {
	return &TwitterBinding{sdk: sdk}
}

// Kind implements Binding.
func (b *TwitterBinding) Kind() ProviderKind { return Twitter }

// StartLogin implements Binding.
func (b *TwitterBinding) StartLogin(ctx context.Context, presenter oauth.Presenter, complete Completion) {
	if presenter == nil {
		complete(Failed(apperrors.InvalidInput("twitter login requires a presentation context")))
		return
	}

	b.sdk.LogIn(ctx, presenter, func(session *oauth.TwitterSession, err error) {
		complete(normalizeTwitter(session, err))
	})
}

// Twitter never returns an email address.
func normalizeTwitter(session *oauth.TwitterSession, err error) Result {
	if err != nil {
		return Failed(err)
	}
	if session == nil {
		return Failed(apperrors.SDKError("twitter login returned no session", nil))
	}
	return Succeeded(User{ID: session.AuthToken, Provider: Twitter, Name: session.UserName})
}
