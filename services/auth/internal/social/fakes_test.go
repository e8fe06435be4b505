package social

import (
	"context"
	"fmt"
	"sync"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	"github.com/carlossalguero/socialauth/services/shared/events"
	"github.com/carlossalguero/socialauth/services/shared/logger"
)

type fakeGoogle struct {
	mu           sync.Mutex
	delegate     oauth.GoogleDelegate
	signIns      []string
	contexts     []context.Context
	setDelegates int
}

func (g *fakeGoogle) SetDelegate(d oauth.GoogleDelegate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delegate = d
	g.setDelegates++
}

func (g *fakeGoogle) SignIn(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("signin-%d", len(g.signIns))
	g.signIns = append(g.signIns, id)
	g.contexts = append(g.contexts, ctx)
	return id
}

// finish reports the latest sign-in.
func (g *fakeGoogle) finish(user *oauth.GoogleUser, err error) {
	g.mu.Lock()
	i := len(g.signIns) - 1
	g.mu.Unlock()
	g.finishAt(i, user, err)
}

func (g *fakeGoogle) finishAt(i int, user *oauth.GoogleUser, err error) {
	g.mu.Lock()
	d, id := g.delegate, g.signIns[i]
	g.mu.Unlock()
	d.DidSignIn(id, user, err)
}

func (g *fakeGoogle) disconnect() {
	g.mu.Lock()
	d := g.delegate
	g.mu.Unlock()
	d.DidDisconnect(nil, nil)
}

type fakeFacebook struct {
	mu       sync.Mutex
	ops      []string
	handlers []func(*oauth.FacebookLoginResult, error)
	perms    [][]string
	token    string
	tokenErr error
}

func (f *fakeFacebook) LogIn(_ context.Context, permissions []string, _ oauth.Presenter, handler func(*oauth.FacebookLoginResult, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "login")
	f.perms = append(f.perms, permissions)
	f.handlers = append(f.handlers, handler)
}

func (f *fakeFacebook) LogOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "logout")
	f.token = ""
	return nil
}

func (f *fakeFacebook) CurrentAccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

// finish completes the i-th login, caching token first like the real SDK.
func (f *fakeFacebook) finish(i int, token string, res *oauth.FacebookLoginResult, err error) {
	f.mu.Lock()
	if token != "" {
		f.token = token
	}
	h := f.handlers[i]
	f.mu.Unlock()
	h(res, err)
}

func (f *fakeFacebook) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

type fakeTwitter struct {
	mu          sync.Mutex
	completions []func(*oauth.TwitterSession, error)
	contexts    []context.Context
}

func (t *fakeTwitter) LogIn(ctx context.Context, _ oauth.Presenter, completion func(*oauth.TwitterSession, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completions = append(t.completions, completion)
	t.contexts = append(t.contexts, ctx)
}

func (t *fakeTwitter) finish(i int, session *oauth.TwitterSession, err error) {
	t.mu.Lock()
	c := t.completions[i]
	t.mu.Unlock()
	c(session, err)
}

type fakeApple struct {
	available   bool
	controllers []*fakeAppleController
}

func (a *fakeApple) Available() bool { return a.available }

func (a *fakeApple) CreateRequest() *oauth.AppleIDRequest {
	return &oauth.AppleIDRequest{Nonce: "nonce"}
}

func (a *fakeApple) NewController(requests ...*oauth.AppleIDRequest) oauth.AppleAuthorizationController {
	c := &fakeAppleController{requests: requests}
	a.controllers = append(a.controllers, c)
	return c
}

type fakeAppleController struct {
	requests  []*oauth.AppleIDRequest
	delegate  oauth.AppleAuthorizationDelegate
	performed bool
}

func (c *fakeAppleController) SetDelegate(d oauth.AppleAuthorizationDelegate) { c.delegate = d }

func (c *fakeAppleController) PerformRequests(context.Context) { c.performed = true }

type fakeGraph struct {
	body   []byte
	err    error
	token  string
	path   string
	fields []string
}

func (g *fakeGraph) Get(_ context.Context, path string, fields []string, accessToken string) ([]byte, error) {
	g.path = path
	g.fields = fields
	g.token = accessToken
	return g.body, g.err
}

type fakeEvents struct {
	mu       sync.Mutex
	subjects []string
	events   []events.Event
}

func (e *fakeEvents) PublishEvent(_ context.Context, subject string, event events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	e.events = append(e.events, event)
	return nil
}

// recorder collects callback invocations.
type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) callback(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

type fixture struct {
	google   *fakeGoogle
	facebook *fakeFacebook
	twitter  *fakeTwitter
	apple    *fakeApple
	graph    *fakeGraph
	events   *fakeEvents
	facade   *Facade
}

func newFixture(opts ...Option) *fixture {
	fx := &fixture{
		google:   &fakeGoogle{},
		facebook: &fakeFacebook{},
		twitter:  &fakeTwitter{},
		apple:    &fakeApple{available: true},
		graph:    &fakeGraph{},
		events:   &fakeEvents{},
	}
	opts = append([]Option{
		WithLogger(logger.Nop()),
		WithGraph(fx.graph),
		WithEvents(fx.events),
	}, opts...)

	fx.facade = New([]Binding{
		NewGoogleBinding(fx.google),
		NewFacebookBinding(fx.facebook),
		NewTwitterBinding(fx.twitter),
		NewAppleBinding(fx.apple),
	}, opts...)
	return fx
}

var presenter = oauth.PresenterFunc(func(context.Context, string) error { return nil })
