package social

import (
	"context"
	"sync"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// GoogleSignIn is the part of oauth.GoogleSignIn the binding uses. SignIn
// must not report to the delegate before it returns.
type GoogleSignIn interface {
	SetDelegate(d oauth.GoogleDelegate)
	SignIn(ctx context.Context) string
}

// GoogleBinding is the delegate of the Google SDK. Only the latest started
// sign-in completes a login; reports for earlier sign-ins are dropped.
type GoogleBinding struct {
	sdk GoogleSignIn

	mu       sync.Mutex
	signInID string
	complete Completion
}

// NewGoogleBinding creates the binding and registers it as the SDK delegate.
func NewGoogleBinding(sdk GoogleSignIn) *GoogleBinding {
	b := &GoogleBinding{sdk: sdk}
	sdk.SetDelegate(b)
	return b
}

// Kind implements Binding.
func (b *GoogleBinding) Kind() ProviderKind { return Google }

// StartLogin implements Binding. Google presents through its own SDK.
func (b *GoogleBinding) StartLogin(ctx context.Context, _ oauth.Presenter, complete Completion) {
	// Held across SignIn so its report cannot arrive before the ID is stored.
	b.mu.Lock()
	defer b.mu.Unlock()

	b.complete = complete
	b.signInID = b.sdk.SignIn(ctx)
}

// DidSignIn implements oauth.GoogleDelegate.
func (b *GoogleBinding) DidSignIn(signInID string, user *oauth.GoogleUser, err error) {
	complete := b.take(signInID)
	if complete == nil {
		return
	}
	complete(normalizeGoogle(user, err))
}

// DidDisconnect implements oauth.GoogleDelegate. A login still waiting for
// its sign-in fails.
func (b *GoogleBinding) DidDisconnect(_ *oauth.GoogleUser, err error) {
	complete := b.take("")
	if complete == nil {
		return
	}
	complete(Failed(apperrors.SDKError("google account disconnected", err)))
}

// Reset implements Resetter.
func (b *GoogleBinding) Reset(context.Context) error {
	b.take("")
	b.sdk.SetDelegate(b)
	return nil
}

// take returns and clears the pending completion. A non-empty signInID must
// match the latest sign-in.
func (b *GoogleBinding) take(signInID string) Completion {
	b.mu.Lock()
	defer b.mu.Unlock()

	if signInID != "" && signInID != b.signInID {
		return nil
	}
	complete := b.complete
	b.complete = nil
	b.signInID = ""
	return complete
}

func normalizeGoogle(user *oauth.GoogleUser, err error) Result {
	if err != nil {
		return Failed(err)
	}
	if user == nil || user.Authentication == nil {
		return Failed(apperrors.SDKError("google sign-in returned no authentication", nil))
	}

	u := User{ID: user.Authentication.IDToken, Provider: Google}
	if user.Profile != nil {
		u.Name = user.Profile.Name
		u.Email = user.Profile.Email
	}
	return Succeeded(u)
}
