package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookTokenKey = "facebook"

// FacebookConfig holds Facebook Login configuration.
type FacebookConfig struct {
	AppID     string          `mapstructure:"app_id"`
	AppSecret string          `mapstructure:"app_secret"`
	Endpoint  oauth2.Endpoint `mapstructure:"-"`
}

// FacebookLoginResult is the outcome of a login that did not fail.
// A result with IsCancelled set carries no token.
type FacebookLoginResult struct {
	Token               *oauth2.Token
	GrantedPermissions  []string
	DeclinedPermissions []string
	IsCancelled         bool
}

// FacebookLoginManager logs users in with Facebook and keeps the current
// access token in a TokenStore.
type FacebookLoginManager struct {
	config   oauth2.Config
	receiver *Receiver
	tokens   TokenStore
}

// NewFacebookLoginManager creates a login manager. tokens may be nil, in which
// case an in-memory store is used.
func NewFacebookLoginManager(cfg FacebookConfig, recv *Receiver, tokens TokenStore) *FacebookLoginManager {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = facebook.Endpoint
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}

	return &FacebookLoginManager{
		config: oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  recv.RedirectURL("facebook"),
			Endpoint:     endpoint,
		},
		receiver: recv,
		tokens:   tokens,
	}
}

// LogIn asks for permissions on the page shown by from and calls handler once
// with the result. A user who backs out yields a cancelled result, not an error.
func (m *FacebookLoginManager) LogIn(ctx context.Context, permissions []string, from Presenter, handler func(*FacebookLoginResult, error)) {
	go func() {
		handler(m.logIn(ctx, permissions, from))
	}()
}

func (m *FacebookLoginManager) logIn(ctx context.Context, permissions []string, from Presenter) (*FacebookLoginResult, error) {
	conf := m.config
	conf.Scopes = permissions

	rd, err := authorize(ctx, m.receiver, from, func(state string) string {
		return conf.AuthCodeURL(state, oauth2.SetAuthURLParam("return_scopes", "true"))
	})
	if errors.Is(err, ErrCancelled) {
		return &FacebookLoginResult{IsCancelled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, rd.Code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	if err := m.tokens.Save(ctx, facebookTokenKey, token); err != nil {
		return nil, fmt.Errorf("caching access token: %w", err)
	}

	granted := permissions
	if scopes := rd.Form.Get("granted_scopes"); scopes != "" {
		granted = strings.Split(scopes, ",")
	}
	var declined []string
	if scopes := rd.Form.Get("denied_scopes"); scopes != "" {
		declined = strings.Split(scopes, ",")
	}

	return &FacebookLoginResult{
		Token:               token,
		GrantedPermissions:  granted,
		DeclinedPermissions: declined,
	}, nil
}

// LogOut drops the cached access token.
func (m *FacebookLoginManager) LogOut(ctx context.Context) error {
	return m.tokens.Clear(ctx, facebookTokenKey)
}

// CurrentAccessToken returns the cached access token, or "" when logged out.
func (m *FacebookLoginManager) CurrentAccessToken(ctx context.Context) (string, error) {
	token, err := m.tokens.Load(ctx, facebookTokenKey)
	if err != nil {
		return "", fmt.Errorf("loading access token: %w", err)
	}
	if token == nil {
		return "", nil
	}
	return token.AccessToken, nil
}
