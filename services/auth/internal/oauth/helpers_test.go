package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/carlossalguero/socialauth/services/shared/logger"
)

func newTestReceiver(t *testing.T) (*Receiver, *httptest.Server) {
	t.Helper()
	recv := NewReceiver(ReceiverConfig{BaseURL: "http://127.0.0.1:8085"}, logger.Nop(), nil)
	srv := httptest.NewServer(recv)
	t.Cleanup(srv.Close)
	return recv, srv
}

// browser stands in for the user: it answers the login page by calling the
// receiver back with params and the state taken from the authorization URL.
type browser struct {
	srv      *httptest.Server
	provider string
	params   url.Values
	post     bool

	mu      sync.Mutex
	authURL string
}

func (b *browser) Present(ctx context.Context, authURL string) error {
	b.mu.Lock()
	b.authURL = authURL
	b.mu.Unlock()

	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	form := url.Values{}
	for k, v := range b.params {
		form[k] = v
	}
	form.Set("state", u.Query().Get("state"))

	callback := b.srv.URL + "/callback/" + b.provider
	var resp *http.Response
	if b.post {
		resp, err = http.PostForm(callback, form)
	} else {
		resp, err = http.Get(callback + "?" + form.Encode())
	}
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (b *browser) lastURL() *url.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, _ := url.Parse(b.authURL)
	return u
}

// tokenServer serves a token endpoint answering with body and records the
// last token request form.
type tokenServer struct {
	*httptest.Server

	mu   sync.Mutex
	form url.Values
}

func newTokenServer(t *testing.T, body map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ts.mu.Lock()
		ts.form = r.PostForm
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.form
}

func jsonHandler(t *testing.T, wantAuth string, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != "Bearer "+wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}
