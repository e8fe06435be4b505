package social

import (
	"context"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
)

// Completion receives the normalized outcome of a provider login.
type Completion func(Result)

// Binding adapts one provider SDK to the facade.
type Binding interface {
	Kind() ProviderKind
	// StartLogin must not block and must call complete at most once.
	StartLogin(ctx context.Context, presenter oauth.Presenter, complete Completion)
}

// Resetter is implemented by bindings that hold SDK session state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// accessTokenSource is implemented by bindings whose SDK caches an access token.
type accessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
