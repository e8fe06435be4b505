package social

import (
	"context"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

var facebookPermissions = []string{"email"}

// FacebookLoginManager is the part of oauth.FacebookLoginManager the binding uses.
type FacebookLoginManager interface {
	LogIn(ctx context.Context, permissions []string, from oauth.Presenter, handler func(*oauth.FacebookLoginResult, error))
	LogOut(ctx context.Context) error
	CurrentAccessToken(ctx context.Context) (string, error)
}

// FacebookBinding logs out of any previous Facebook session before every login
// so a stale cached token is never returned.
type FacebookBinding struct {
	sdk FacebookLoginManager
}

// NewFacebookBinding creates the binding.
func NewFacebookBinding(sdk FacebookLoginManager) *FacebookBinding {
	return &FacebookBinding{sdk: sdk}
}

// Kind implements Binding.
func (b *FacebookBinding) Kind() ProviderKind { return Facebook }

// StartLogin implements Binding.
func (b *FacebookBinding) StartLogin(ctx context.Context, presenter oauth.Presenter, complete Completion) {
	if presenter == nil {
		complete(Failed(apperrors.InvalidInput("facebook login requires a presentation context")))
		return
	}
	if err := b.sdk.LogOut(ctx); err != nil {
		complete(Failed(apperrors.SDKError("logging out of facebook", err)))
		return
	}

	b.sdk.LogIn(ctx, facebookPermissions, presenter, func(res *oauth.FacebookLoginResult, err error) {
		complete(b.normalize(ctx, res, err))
	})
}

// Reset implements Resetter.
func (b *FacebookBinding) Reset(ctx context.Context) error {
	return b.sdk.LogOut(ctx)
}

// AccessToken returns the cached Facebook access token.
func (b *FacebookBinding) AccessToken(ctx context.Context) (string, error) {
	return b.sdk.CurrentAccessToken(ctx)
}

func (b *FacebookBinding) normalize(ctx context.Context, res *oauth.FacebookLoginResult, err error) Result {
	switch {
	case err != nil:
		return Failed(err)
	case res == nil:
		return Failed(apperrors.SDKError("facebook login returned no result", nil))
	case res.IsCancelled:
		return Failed(oauth.ErrCancelled)
	}

	token, err := b.sdk.CurrentAccessToken(ctx)
	if err != nil {
		return Failed(apperrors.SDKError("reading facebook access token", err))
	}
	if token == "" && res.Token != nil {
		token = res.Token.AccessToken
	}
	if token == "" {
		return Failed(apperrors.SDKError("facebook login returned no access token", nil))
	}

	// Name and email need a follow-up profile sync.
	return Succeeded(User{ID: token, Provider: Facebook})
}
