package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string          `mapstructure:"client_id"`
	ClientSecret string          `mapstructure:"client_secret"`
	Endpoint     oauth2.Endpoint `mapstructure:"-"`
	UserInfoURL  string          `mapstructure:"user_info_url"`
}

// GoogleAuthentication holds the tokens of a signed-in Google user.
type GoogleAuthentication struct {
	IDToken     string
	AccessToken string
	Expiry      time.Time
}

// GoogleProfile is the basic profile of a Google user.
type GoogleProfile struct {
	Name  string
	Email string
}

// GoogleUser is a signed-in Google user.
type GoogleUser struct {
	UserID         string
	Authentication *GoogleAuthentication
	Profile        *GoogleProfile
}

// GoogleDelegate receives sign-in and disconnect events. signInID is the
// value SignIn returned for the sign-in being reported.
type GoogleDelegate interface {
	DidSignIn(signInID string, user *GoogleUser, err error)
	DidDisconnect(user *GoogleUser, err error)
}

// googleUserInfo represents the Google user info response.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleSignIn signs users in with Google. Results of every sign-in go to the
// single delegate registered with SetDelegate.
type GoogleSignIn struct {
	config      *oauth2.Config
	userInfoURL string
	receiver    *Receiver
	presenter   Presenter

	mu       sync.Mutex
	delegate GoogleDelegate
	current  *GoogleUser
}

// NewGoogleSignIn creates a Google sign-in client that presents its consent
// page through presenter.
func NewGoogleSignIn(cfg GoogleConfig, recv *Receiver, presenter Presenter) *GoogleSignIn {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	return &GoogleSignIn{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  recv.RedirectURL("google"),
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userInfoURL: userInfoURL,
		receiver:    recv,
		presenter:   presenter,
	}
}

// SetDelegate replaces the delegate.
func (g *GoogleSignIn) SetDelegate(d GoogleDelegate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delegate = d
}

// CurrentUser returns the last signed-in user, or nil.
func (g *GoogleSignIn) CurrentUser() *GoogleUser {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// SignIn starts an interactive sign-in and returns its ID. The result is
// reported to the delegate from another goroutine, never before SignIn returns.
func (g *GoogleSignIn) SignIn(ctx context.Context) string {
	id := uuid.NewString()
	go func() {
		user, err := g.signIn(ctx)

		g.mu.Lock()
		if err == nil {
			g.current = user
		}
		d := g.delegate
		g.mu.Unlock()

		if d != nil {
			d.DidSignIn(id, user, err)
		}
	}()
	return id
}

// Disconnect forgets the current user and tells the delegate.
func (g *GoogleSignIn) Disconnect() {
	g.mu.Lock()
	user := g.current
	g.current = nil
	d := g.delegate
	g.mu.Unlock()

	if d != nil {
		d.DidDisconnect(user, nil)
	}
}

func (g *GoogleSignIn) signIn(ctx context.Context) (*GoogleUser, error) {
	rd, err := authorize(ctx, g.receiver, g.presenter, func(state string) string {
		return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	})
	if err != nil {
		return nil, err
	}

	token, err := g.config.Exchange(ctx, rd.Code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	var info googleUserInfo
	if err := getJSON(ctx, g.config.Client(ctx, token), g.userInfoURL, &info); err != nil {
		return nil, fmt.Errorf("fetching user info: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)

	return &GoogleUser{
		UserID: info.ID,
		Authentication: &GoogleAuthentication{
			IDToken:     idToken,
			AccessToken: token.AccessToken,
			Expiry:      token.Expiry,
		},
		Profile: &GoogleProfile{
			Name:  info.Name,
			Email: info.Email,
		},
	}, nil
}
