package social

import (
	"context"
	"fmt"
	"sync"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// AppleIDProvider is the part of oauth.AppleIDProvider the binding uses.
type AppleIDProvider interface {
	Available() bool
	CreateRequest() *oauth.AppleIDRequest
	NewController(requests ...*oauth.AppleIDRequest) oauth.AppleAuthorizationController
}

// AppleBinding runs one authorization controller per login.
type AppleBinding struct {
	provider AppleIDProvider
}

// NewAppleBinding creates the binding.
func NewAppleBinding(provider AppleIDProvider) *AppleBinding {
	return &AppleBinding{provider: provider}
}

// Kind implements Binding.
func (b *AppleBinding) Kind() ProviderKind { return Apple }

// StartLogin implements Binding. When Sign in with Apple is unavailable the
// login fails as unsupported instead of never completing.
func (b *AppleBinding) StartLogin(ctx context.Context, _ oauth.Presenter, complete Completion) {
	if !b.provider.Available() {
		complete(Failed(apperrors.Unsupported("sign in with apple is unavailable")))
		return
	}

	request := b.provider.CreateRequest()
	request.RequestedScopes = []oauth.AppleScope{oauth.AppleScopeFullName, oauth.AppleScopeEmail}

	controller := b.provider.NewController(request)
	controller.SetDelegate(&appleDelegate{complete: complete})
	controller.PerformRequests(ctx)
}

// appleDelegate belongs to a single controller.
type appleDelegate struct {
	once     sync.Once
	complete Completion
}

func (d *appleDelegate) AuthorizationDidComplete(_ oauth.AppleAuthorizationController, authorization *oauth.AppleAuthorization) {
	d.once.Do(func() { d.complete(normalizeApple(authorization)) })
}

func (d *appleDelegate) AuthorizationDidFail(_ oauth.AppleAuthorizationController, err error) {
	d.once.Do(func() { d.complete(Failed(err)) })
}

// Name and email are only sent on the first login of a user.
func normalizeApple(authorization *oauth.AppleAuthorization) Result {
	if authorization == nil {
		return Failed(apperrors.DecodeError("apple authorization is empty", nil))
	}

	credential, ok := authorization.Credential.(*oauth.AppleIDCredential)
	if !ok || credential == nil {
		return Failed(apperrors.DecodeError(fmt.Sprintf("unexpected apple credential %T", authorization.Credential), nil))
	}

	u := User{ID: credential.User, Provider: Apple, Email: credential.Email}
	if credential.FullName != nil {
		u.Name = credential.FullName.GivenName
	}
	return Succeeded(u)
}
