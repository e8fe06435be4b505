package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/carlossalguero/socialauth/services/shared/circuitbreaker"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

const (
	facebookGraphURL    = "https://graph.facebook.com"
	defaultGraphVersion = "v19.0"
)

// errGraphUpstream marks failures that count against the Graph API breaker.
// Client errors such as an expired token do not.
var errGraphUpstream = errors.New("graph API unreachable")

// GraphConfig configures the Facebook Graph API client.
type GraphConfig struct {
	BaseURL string                `mapstructure:"base_url"`
	Version string                `mapstructure:"version"`
	Breaker circuitbreaker.Config `mapstructure:"breaker"`
}

// GraphClient issues authenticated Graph API requests.
type GraphClient struct {
	baseURL    string
	version    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewGraphClient creates a Graph API client. httpClient may be nil.
func NewGraphClient(cfg GraphConfig, httpClient *http.Client) *GraphClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = facebookGraphURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultGraphVersion
	}
	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = func(err error) bool { return errors.Is(err, errGraphUpstream) }
	}
	return &GraphClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.Version,
		httpClient: httpClient,
		breaker:    circuitbreaker.New("facebook-graph", cfg.Breaker),
	}
}

// Get requests the given fields of a graph path and returns the raw body.
func (c *GraphClient) Get(ctx context.Context, path string, fields []string, accessToken string) ([]byte, error) {
	if accessToken == "" {
		return nil, apperrors.InvalidInput("graph request requires an access token")
	}

	u := c.baseURL + "/" + c.version + "/" + strings.TrimPrefix(path, "/")
	if len(fields) > 0 {
		u += "?" + url.Values{"fields": {strings.Join(fields, ",")}}.Encode()
	}

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	var (
		status int
		body   []byte
	)
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("creating graph request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", errGraphUpstream, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if body, err = io.ReadAll(resp.Body); err != nil {
			return fmt.Errorf("%w: reading response: %w", errGraphUpstream, err)
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", errGraphUpstream, status)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.SDKError("graph request failed", err)
	}
	if status != http.StatusOK {
		return nil, apperrors.SDKError(fmt.Sprintf("graph API error: status %d", status), fmt.Errorf("%s", body))
	}

	return body, nil
}

// BreakerState reports whether Graph requests are currently being short-circuited.
func (c *GraphClient) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
