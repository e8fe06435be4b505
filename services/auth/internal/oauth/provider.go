// Package oauth provides the provider SDK layer used by the social login facade.
//
// Each provider keeps the completion shape of its native mobile SDK: Google and
// Apple report through delegates, Facebook and Twitter through completion
// handlers. All of them run the OAuth 2.0 authorization code flow with
// golang.org/x/oauth2 against a loopback Receiver and show the provider's login
// page through a Presenter.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// ErrCancelled is reported when the user dismisses or denies the login page.
var ErrCancelled = apperrors.Canceled("login cancelled by user")

// getJSON fetches url with client and decodes a JSON body into dest.
func getJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.SDKError(fmt.Sprintf("API error: status %d", resp.StatusCode), fmt.Errorf("%s", body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperrors.DecodeError("decoding response", err)
	}
	return nil
}
