package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type googleDelegateRecorder struct {
	signIns     chan googleSignInEvent
	disconnects chan *GoogleUser
}

type googleSignInEvent struct {
	id   string
	user *GoogleUser
	err  error
}

func newGoogleDelegateRecorder() *googleDelegateRecorder {
	return &googleDelegateRecorder{
		signIns:     make(chan googleSignInEvent, 4),
		disconnects: make(chan *GoogleUser, 4),
	}
}

func (r *googleDelegateRecorder) DidSignIn(signInID string, user *GoogleUser, err error) {
	r.signIns <- googleSignInEvent{signInID, user, err}
}

func (r *googleDelegateRecorder) DidDisconnect(user *GoogleUser, _ error) {
	r.disconnects <- user
}

func (r *googleDelegateRecorder) next(t *testing.T) googleSignInEvent {
	t.Helper()
	select {
	case ev := <-r.signIns:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("delegate not called")
		return googleSignInEvent{}
	}
}

func TestGoogleSignIn_SignIn(t *testing.T) {
	recv, srv := newTestReceiver(t)
	tokens := newTokenServer(t, map[string]any{
		"access_token": "google-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     "T1",
	})
	userInfo := httptest.NewServer(jsonHandler(t, "google-access", map[string]any{
		"id":    "g-1",
		"name":  "Alice",
		"email": "a@example.com",
	}))
	defer userInfo.Close()

	b := &browser{srv: srv, provider: "google", params: url.Values{"code": {"auth-code"}}}
	g := NewGoogleSignIn(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokens.URL},
		UserInfoURL:  userInfo.URL,
	}, recv, b)

	delegate := newGoogleDelegateRecorder()
	g.SetDelegate(delegate)
	id := g.SignIn(context.Background())

	ev := delegate.next(t)
	require.NoError(t, ev.err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, ev.id)
	require.NotNil(t, ev.user)
	assert.Equal(t, "g-1", ev.user.UserID)
	assert.Equal(t, "T1", ev.user.Authentication.IDToken)
	assert.Equal(t, "google-access", ev.user.Authentication.AccessToken)
	assert.Equal(t, "Alice", ev.user.Profile.Name)
	assert.Equal(t, "a@example.com", ev.user.Profile.Email)
	assert.Same(t, ev.user, g.CurrentUser())

	assert.Equal(t, "auth-code", tokens.lastForm().Get("code"))
	assert.Equal(t, "http://127.0.0.1:8085/callback/google", b.lastURL().Query().Get("redirect_uri"))
	assert.Equal(t, "offline", b.lastURL().Query().Get("access_type"))

	g.Disconnect()
	select {
	case user := <-delegate.disconnects:
		assert.Equal(t, "g-1", user.UserID)
	case <-time.After(time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.Nil(t, g.CurrentUser())
}

func TestGoogleSignIn_Errors(t *testing.T) {
	t.Run("user cancels", func(t *testing.T) {
		recv, srv := newTestReceiver(t)
		b := &browser{srv: srv, provider: "google", params: url.Values{"error": {"access_denied"}}}
		g := NewGoogleSignIn(GoogleConfig{ClientID: "client"}, recv, b)

		delegate := newGoogleDelegateRecorder()
		g.SetDelegate(delegate)
		g.SignIn(context.Background())

		ev := delegate.next(t)
		assert.ErrorIs(t, ev.err, ErrCancelled)
		assert.Nil(t, ev.user)
		assert.Nil(t, g.CurrentUser())
	})

	t.Run("userinfo fails", func(t *testing.T) {
		recv, srv := newTestReceiver(t)
		tokens := newTokenServer(t, map[string]any{"access_token": "a", "token_type": "Bearer"})
		userInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer userInfo.Close()

		b := &browser{srv: srv, provider: "google", params: url.Values{"code": {"c"}}}
		g := NewGoogleSignIn(GoogleConfig{
			ClientID:    "client",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokens.URL},
			UserInfoURL: userInfo.URL,
		}, recv, b)

		delegate := newGoogleDelegateRecorder()
		g.SetDelegate(delegate)
		g.SignIn(context.Background())

		ev := delegate.next(t)
		assert.Error(t, ev.err)
		assert.Nil(t, ev.user)
	})
}
