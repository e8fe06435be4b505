package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

const twitterMeURL = "https://api.twitter.com/2/users/me"

var twitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// TwitterConfig holds Twitter (X) OAuth 2.0 configuration.
type TwitterConfig struct {
	ClientID     string          `mapstructure:"client_id"`
	ClientSecret string          `mapstructure:"client_secret"`
	Endpoint     oauth2.Endpoint `mapstructure:"-"`
	MeURL        string          `mapstructure:"me_url"`
}

// TwitterSession is an authenticated Twitter session.
type TwitterSession struct {
	AuthToken string
	UserName  string
	UserID    string
}

type twitterMe struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

// TwitterLogin logs users in with Twitter using PKCE.
type TwitterLogin struct {
	config   *oauth2.Config
	meURL    string
	receiver *Receiver
}

// NewTwitterLogin creates a Twitter login client.
func NewTwitterLogin(cfg TwitterConfig, recv *Receiver) *TwitterLogin {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = twitterEndpoint
	}
	meURL := cfg.MeURL
	if meURL == "" {
		meURL = twitterMeURL
	}

	return &TwitterLogin{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  recv.RedirectURL("twitter"),
			Scopes:       []string{"users.read", "tweet.read"},
			Endpoint:     endpoint,
		},
		meURL:    meURL,
		receiver: recv,
	}
}

// LogIn shows the Twitter consent page through from and calls completion once.
func (t *TwitterLogin) LogIn(ctx context.Context, from Presenter, completion func(*TwitterSession, error)) {
	go func() {
		completion(t.logIn(ctx, from))
	}()
}

func (t *TwitterLogin) logIn(ctx context.Context, from Presenter) (*TwitterSession, error) {
	verifier := oauth2.GenerateVerifier()

	rd, err := authorize(ctx, t.receiver, from, func(state string) string {
		return t.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	})
	if err != nil {
		return nil, err
	}

	token, err := t.config.Exchange(ctx, rd.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	var me twitterMe
	if err := getJSON(ctx, t.config.Client(ctx, token), t.meURL, &me); err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	return &TwitterSession{
		AuthToken: token.AccessToken,
		UserName:  me.Data.Username,
		UserID:    me.Data.ID,
	}, nil
}
