package oauth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

const (
	appleAudience        = "https://appleid.apple.com"
	appleClientSecretTTL = 5 * time.Minute
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// AppleConfig holds Sign in with Apple configuration.
type AppleConfig struct {
	ClientID       string          `mapstructure:"client_id"`
	TeamID         string          `mapstructure:"team_id"`
	KeyID          string          `mapstructure:"key_id"`
	PrivateKeyPath string          `mapstructure:"private_key_path"`
	Endpoint       oauth2.Endpoint `mapstructure:"-"`
}

// AppleScope is a piece of user information an Apple ID request can ask for.
type AppleScope string

const (
	AppleScopeFullName AppleScope = "name"
	AppleScopeEmail    AppleScope = "email"
)

// AppleIDRequest is a single authorization request.
type AppleIDRequest struct {
	RequestedScopes []AppleScope
	Nonce           string
}

// PersonNameComponents is the user's name as Apple reports it.
type PersonNameComponents struct {
	GivenName  string
	FamilyName string
}

// AppleIDCredential is returned for a successful Apple ID authorization.
// FullName and Email are only present on the first login of a user.
type AppleIDCredential struct {
	User              string
	FullName          *PersonNameComponents
	Email             string
	IdentityToken     string
	AuthorizationCode string
}

// ApplePasswordCredential is a saved keychain password.
type ApplePasswordCredential struct {
	User     string
	Password string
}

// AppleAuthorization wraps the credential produced by an authorization.
type AppleAuthorization struct {
	Credential any
}

// AppleAuthorizationDelegate receives the outcome of PerformRequests.
type AppleAuthorizationDelegate interface {
	AuthorizationDidComplete(controller AppleAuthorizationController, authorization *AppleAuthorization)
	AuthorizationDidFail(controller AppleAuthorizationController, err error)
}

// AppleAuthorizationController runs a set of authorization requests once.
type AppleAuthorizationController interface {
	SetDelegate(d AppleAuthorizationDelegate)
	PerformRequests(ctx context.Context)
}

type appleIDTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type appleUserForm struct {
	Name *struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
	Email string `json:"email"`
}

// AppleIDProvider creates Apple ID requests and the controllers that run them.
type AppleIDProvider struct {
	cfg       AppleConfig
	key       *ecdsa.PrivateKey
	receiver  *Receiver
	presenter Presenter
	now       func() time.Time
}

// NewAppleIDProvider creates a provider, loading the signing key from
// cfg.PrivateKeyPath when set. Without a key the provider is unavailable.
func NewAppleIDProvider(cfg AppleConfig, recv *Receiver, presenter Presenter) (*AppleIDProvider, error) {
	var key *ecdsa.PrivateKey
	if cfg.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading apple private key: %w", err)
		}
		key, err = jwt.ParseECPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing apple private key: %w", err)
		}
	}
	return NewAppleIDProviderWithKey(cfg, key, recv, presenter), nil
}

// NewAppleIDProviderWithKey creates a provider with an already loaded key.
func NewAppleIDProviderWithKey(cfg AppleConfig, key *ecdsa.PrivateKey, recv *Receiver, presenter Presenter) *AppleIDProvider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = appleEndpoint
	}
	return &AppleIDProvider{
		cfg:       cfg,
		key:       key,
		receiver:  recv,
		presenter: presenter,
		now:       time.Now,
	}
}

// Available reports whether Sign in with Apple can be used.
func (p *AppleIDProvider) Available() bool {
	return p.key != nil && p.cfg.ClientID != "" && p.cfg.TeamID != ""
}

// CreateRequest returns a request with a fresh nonce and no scopes.
func (p *AppleIDProvider) CreateRequest() *AppleIDRequest {
	return &AppleIDRequest{Nonce: uuid.NewString()}
}

// NewController returns a controller for requests.
func (p *AppleIDProvider) NewController(requests ...*AppleIDRequest) AppleAuthorizationController {
	return &appleController{provider: p, requests: requests}
}

type appleController struct {
	provider *AppleIDProvider
	requests []*AppleIDRequest

	mu       sync.Mutex
	delegate AppleAuthorizationDelegate
}

func (c *appleController) SetDelegate(d AppleAuthorizationDelegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate = d
}

func (c *appleController) PerformRequests(ctx context.Context) {
	go func() {
		authorization, err := c.provider.perform(ctx, c.requests)

		c.mu.Lock()
		d := c.delegate
		c.mu.Unlock()
		if d == nil {
			return
		}

		if err != nil {
			d.AuthorizationDidFail(c, err)
			return
		}
		d.AuthorizationDidComplete(c, authorization)
	}()
}

func (p *AppleIDProvider) perform(ctx context.Context, requests []*AppleIDRequest) (*AppleAuthorization, error) {
	if !p.Available() {
		return nil, apperrors.Unsupported("sign in with apple is not configured")
	}
	if len(requests) == 0 {
		return nil, apperrors.InvalidInput("no authorization requests")
	}
	req := requests[0]

	secret, err := p.clientSecret()
	if err != nil {
		return nil, fmt.Errorf("signing client secret: %w", err)
	}

	scopes := make([]string, 0, len(req.RequestedScopes))
	for _, s := range req.RequestedScopes {
		scopes = append(scopes, string(s))
	}

	conf := &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: secret,
		RedirectURL:  p.receiver.RedirectURL("apple"),
		Scopes:       scopes,
		Endpoint:     p.cfg.Endpoint,
	}

	rd, err := authorize(ctx, p.receiver, p.presenter, func(state string) string {
		opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", req.Nonce)}
		// Apple only returns scoped data through form_post.
		if len(scopes) > 0 {
			opts = append(opts, oauth2.SetAuthURLParam("response_mode", "form_post"))
		}
		return conf.AuthCodeURL(state, opts...)
	})
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, rd.Code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, apperrors.DecodeError("token response has no id_token", nil)
	}

	var claims appleIDTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return nil, apperrors.DecodeError("parsing id_token", err)
	}

	credential := &AppleIDCredential{
		User:              claims.Subject,
		Email:             claims.Email,
		IdentityToken:     idToken,
		AuthorizationCode: rd.Code,
	}

	if raw := rd.Form.Get("user"); raw != "" {
		var form appleUserForm
		if err := json.NewDecoder(strings.NewReader(raw)).Decode(&form); err != nil {
			return nil, apperrors.DecodeError("decoding user form field", err)
		}
		if form.Name != nil {
			credential.FullName = &PersonNameComponents{
				GivenName:  form.Name.FirstName,
				FamilyName: form.Name.LastName,
			}
		}
		if credential.Email == "" {
			credential.Email = form.Email
		}
	}

	return &AppleAuthorization{Credential: credential}, nil
}

// clientSecret signs the short-lived ES256 JWT Apple expects as client secret.
func (p *AppleIDProvider) clientSecret() (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.cfg.TeamID,
		Subject:   p.cfg.ClientID,
		Audience:  jwt.ClaimStrings{appleAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appleClientSecretTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = p.cfg.KeyID

	return token.SignedString(p.key)
}
