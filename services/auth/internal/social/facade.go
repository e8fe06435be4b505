package social

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
	"github.com/carlossalguero/socialauth/services/shared/events"
	"github.com/carlossalguero/socialauth/services/shared/logger"
	"github.com/carlossalguero/socialauth/services/shared/metrics"
	"github.com/carlossalguero/socialauth/services/shared/tracing"
)

const eventPublishTimeout = 5 * time.Second

var facebookProfileFields = []string{"email", "name"}

// EventPublisher publishes login outcome events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, subject string, event events.Event) error
}

// Graph performs Facebook Graph API reads.
type Graph interface {
	Get(ctx context.Context, path string, fields []string, accessToken string) ([]byte, error)
}

// Facade dispatches logins to provider bindings and delivers one Result per
// attempt. At most one login is pending at a time: starting a login
// supersedes the pending one.
type Facade struct {
	bindings map[ProviderKind]Binding
	order    []ProviderKind

	graph   Graph
	log     *logger.Logger
	metrics *metrics.Metrics
	events  EventPublisher
	tracer  trace.Tracer

	mu      sync.Mutex
	pending *Attempt
}

// Option is a functional option for configuring the Facade.
type Option func(*Facade)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(f *Facade) {
		f.log = log
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) {
		f.metrics = m
	}
}

// WithEvents publishes every login outcome through p.
func WithEvents(p EventPublisher) Option {
	return func(f *Facade) {
		f.events = p
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(f *Facade) {
		f.tracer = t
	}
}

// WithGraph sets the Graph API client used by SyncFacebookUserData.
func WithGraph(g Graph) Option {
	return func(f *Facade) {
		f.graph = g
	}
}

// New creates a facade over bindings. A later binding of the same kind
// replaces an earlier one.
func New(bindings []Binding, opts ...Option) *Facade {
	f := &Facade{
		bindings: make(map[ProviderKind]Binding, len(bindings)),
		log:      logger.Default(),
		tracer:   tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithComponent("facade")

	for _, b := range bindings {
		f.bindings[b.Kind()] = b
	}
	for _, kind := range AllProviders() {
		if _, ok := f.bindings[kind]; ok {
			f.order = append(f.order, kind)
		}
	}

	return f
}

// Providers returns the configured providers in a stable order.
func (f *Facade) Providers() []ProviderKind {
	return append([]ProviderKind(nil), f.order...)
}

// Pending returns the login currently in flight, or nil.
func (f *Facade) Pending() *Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Login starts a login with provider and returns its attempt. It never blocks;
// cb receives exactly one result. presenter is required by Facebook and Twitter.
// The provider flow runs under a context that is cancelled once the attempt
// resolves, so a superseded login stops waiting for its redirect.
func (f *Facade) Login(ctx context.Context, provider ProviderKind, presenter oauth.Presenter, cb Callback) *Attempt {
	ctx, cancel := context.WithCancel(ctx)
	ctx, span := f.tracer.Start(ctx, "social.login")
	a := newAttempt(provider, cb, func(a *Attempt, r Result) {
		cancel()
		f.finishLogin(a, r, span)
	})
	tracing.WithProvider(span, provider.String(), a.ID())
	ctx = logger.ContextWithAttempt(ctx, a.ID(), provider.String())
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		ctx = logger.ContextWithTraceID(ctx, traceID)
	}
	log := f.log.WithAttempt(a.ID(), provider.String())

	f.metrics.LoginStarted()

	binding, ok := f.bindings[provider]
	if !ok {
		log.Warn("login requested for unconfigured provider")
		a.resolve(Failed(apperrors.NotFound(fmt.Sprintf("provider %q is not configured", provider))))
		return a
	}

	f.mu.Lock()
	prev := f.pending
	f.pending = a
	f.mu.Unlock()

	if prev != nil {
		prev.resolve(Failed(apperrors.Superseded("replaced by a newer login")))
	}

	f.log.InfoContext(ctx, "login started")
	binding.StartLogin(ctx, presenter, func(r Result) {
		if !a.resolve(r) {
			log.Debug("dropping provider result for finished attempt", "outcome", r.Outcome())
		}
	})

	return a
}

// Reset logs out of provider sessions, supersedes the pending login and
// clears binding state.
func (f *Facade) Reset(ctx context.Context) {
	f.mu.Lock()
	prev := f.pending
	f.pending = nil
	f.mu.Unlock()

	if prev != nil {
		prev.resolve(Failed(apperrors.Superseded("login state was reset")))
	}

	for _, kind := range f.order {
		r, ok := f.bindings[kind].(Resetter)
		if !ok {
			continue
		}
		if err := r.Reset(ctx); err != nil {
			f.log.WithError(err).Warn("failed to reset provider", "provider", kind.String())
		}
	}

	f.log.Info("login state reset")
}

// SyncFacebookUserData fetches the name and email of the logged-in Facebook
// user. The user ID is the current access token, as after login. The
// returned attempt is independent of the pending login.
func (f *Facade) SyncFacebookUserData(ctx context.Context, cb Callback) *Attempt {
	ctx, cancel := context.WithCancel(ctx)
	ctx, span := f.tracer.Start(ctx, "social.sync_facebook")
	a := newAttempt(Facebook, cb, func(a *Attempt, r Result) {
		cancel()
		f.finishSync(a, r, span)
	})
	ctx = logger.ContextWithAttempt(ctx, a.ID(), Facebook.String())

	go func() {
		a.resolve(f.fetchFacebookProfile(ctx))
	}()

	return a
}

func (f *Facade) fetchFacebookProfile(ctx context.Context) Result {
	source, ok := f.bindings[Facebook].(accessTokenSource)
	if !ok || f.graph == nil {
		return Failed(apperrors.Unsupported("facebook is not configured"))
	}

	token, err := source.AccessToken(ctx)
	if err != nil {
		return Failed(apperrors.SDKError("reading facebook access token", err))
	}
	if token == "" {
		return Failed(apperrors.SDKError("no facebook session", nil))
	}

	body, err := f.graph.Get(ctx, "me", facebookProfileFields, token)
	if err != nil {
		return Failed(apperrors.SDKError("fetching facebook profile", err))
	}

	var profile struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return Failed(apperrors.DecodeError("decoding facebook profile", err))
	}

	return Succeeded(User{ID: token, Provider: Facebook, Name: profile.Name, Email: profile.Email})
}

func (f *Facade) finishLogin(a *Attempt, r Result, span trace.Span) {
	f.mu.Lock()
	if f.pending == a {
		f.pending = nil
	}
	f.mu.Unlock()

	f.metrics.RecordLogin(a.Provider().String(), r.Outcome(), time.Since(a.Started()))

	log := f.log.WithAttempt(a.ID(), a.Provider().String())
	if r.Success() {
		log.Info("login succeeded")
		tracing.WithSuccess(span)
	} else {
		log.WithError(r.Err).Info("login failed", "reason", string(r.Reason()), "code", string(apperrors.GetCode(r.Err)))
		tracing.WithError(span, r.Err)
	}
	span.End()

	f.publish(a, r, span)
}

func (f *Facade) finishSync(a *Attempt, r Result, span trace.Span) {
	f.metrics.RecordGraphRequest(r.Outcome())

	log := f.log.WithAttempt(a.ID(), a.Provider().String())
	if r.Success() {
		log.Info("facebook profile synced")
		tracing.WithSuccess(span)
	} else {
		log.WithError(r.Err).Warn("facebook profile sync failed", "reason", string(r.Reason()))
		tracing.WithError(span, r.Err)
	}
	span.End()
}

// publish never includes the user ID, which is a provider token for most
// providers.
func (f *Facade) publish(a *Attempt, r Result, span trace.Span) {
	if f.events == nil {
		return
	}

	subject := events.SubjectLoginSucceeded
	data := map[string]any{
		"attempt_id":  a.ID(),
		"provider":    a.Provider().String(),
		"duration_ms": time.Since(a.Started()).Milliseconds(),
	}
	if !r.Success() {
		subject = events.SubjectLoginFailed
		data["reason"] = string(r.Reason())
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	event := events.NewEvent(subject, "", data)
	if sc := span.SpanContext(); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}

	if err := f.events.PublishEvent(ctx, subject, event); err != nil {
		f.log.WithError(err).Warn("failed to publish login event", "attempt_id", a.ID())
	}
}
