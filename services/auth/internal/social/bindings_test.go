package social

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
)

func TestNormalizeGoogle(t *testing.T) {
	tests := []struct {
		name       string
		user       *oauth.GoogleUser
		err        error
		want       *User
		wantReason Reason
	}{
		{
			name: "signed in",
			user: &oauth.GoogleUser{
				UserID:         "g-1",
				Authentication: &oauth.GoogleAuthentication{IDToken: "T1"},
				Profile:        &oauth.GoogleProfile{Name: "Alice", Email: "a@example.com"},
			},
			want: &User{ID: "T1", Provider: Google, Name: "Alice", Email: "a@example.com"},
		},
		{
			name: "no profile",
			user: &oauth.GoogleUser{Authentication: &oauth.GoogleAuthentication{IDToken: "T1"}},
			want: &User{ID: "T1", Provider: Google},
		},
		{
			name:       "no authentication",
			user:       &oauth.GoogleUser{UserID: "g-1"},
			wantReason: ReasonSDKError,
		},
		{
			name:       "sdk error",
			err:        errors.New("network"),
			wantReason: ReasonSDKError,
		},
		{
			name:       "cancelled",
			err:        oauth.ErrCancelled,
			wantReason: ReasonCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := normalizeGoogle(tt.user, tt.err)
			if tt.want == nil {
				assert.False(t, r.Success())
				assert.Equal(t, tt.wantReason, r.Reason())
				return
			}
			require.True(t, r.Success())
			assert.Equal(t, tt.want, r.User)
		})
	}
}

func TestNormalizeTwitter(t *testing.T) {
	r := normalizeTwitter(&oauth.TwitterSession{AuthToken: "TWT", UserName: "carol", UserID: "42"}, nil)
	require.True(t, r.Success())
	assert.Equal(t, &User{ID: "TWT", Provider: Twitter, Name: "carol", Email: ""}, r.User)

	assert.Equal(t, ReasonSDKError, normalizeTwitter(nil, nil).Reason())
	assert.Equal(t, ReasonSDKError, normalizeTwitter(nil, errors.New("boom")).Reason())
}

func TestNormalizeApple(t *testing.T) {
	tests := []struct {
		name          string
		authorization *oauth.AppleAuthorization
		want          *User
		wantReason    Reason
	}{
		{
			name: "first login",
			authorization: &oauth.AppleAuthorization{Credential: &oauth.AppleIDCredential{
				User:     "APPLE_ID",
				FullName: &oauth.PersonNameComponents{GivenName: "Dan", FamilyName: "Smith"},
				Email:    "d@example.com",
			}},
			want: &User{ID: "APPLE_ID", Provider: Apple, Name: "Dan", Email: "d@example.com"},
		},
		{
			name:          "repeat login",
			authorization: &oauth.AppleAuthorization{Credential: &oauth.AppleIDCredential{User: "APPLE_ID"}},
			want:          &User{ID: "APPLE_ID", Provider: Apple, Name: "", Email: ""},
		},
		{
			name:          "password credential",
			authorization: &oauth.AppleAuthorization{Credential: &oauth.ApplePasswordCredential{User: "dan"}},
			wantReason:    ReasonDecodeError,
		},
		{
			name:       "nil authorization",
			wantReason: ReasonDecodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := normalizeApple(tt.authorization)
			if tt.want == nil {
				assert.False(t, r.Success())
				assert.Nil(t, r.User)
				assert.Equal(t, tt.wantReason, r.Reason())
				return
			}
			require.True(t, r.Success())
			assert.Equal(t, tt.want, r.User)
		})
	}
}
