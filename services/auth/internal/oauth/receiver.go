package oauth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
	"github.com/carlossalguero/socialauth/services/shared/logger"
	"github.com/carlossalguero/socialauth/services/shared/metrics"
	"github.com/carlossalguero/socialauth/services/shared/tracing"
)

// Redirect is what a provider sent back to the redirect URL.
type Redirect struct {
	Provider         string
	State            string
	Code             string
	Error            string
	ErrorDescription string
	Form             url.Values
}

// Cancelled reports whether the provider says the user declined.
func (r Redirect) Cancelled() bool {
	switch r.Error {
	case "access_denied", "user_denied", "user_cancelled_login", "user_cancelled_authorize":
		return true
	}
	return false
}

// ReceiverConfig configures the loopback redirect receiver.
type ReceiverConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// Receiver accepts OAuth redirects and hands them to the flow waiting on the
// matching state.
type Receiver struct {
	baseURL string
	pending *gocache.Cache
	limiter *rate.Limiter
	router  chi.Router
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewReceiver creates a Receiver. m may be nil.
func NewReceiver(cfg ReceiverConfig, log *logger.Logger, m *metrics.Metrics) *Receiver {
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}

	r := &Receiver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		pending: gocache.New(cfg.StateTTL, time.Minute),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		metrics: m,
		log:     log.WithComponent("receiver"),
	}

	router := chi.NewRouter()
	router.Use(tracing.Middleware(tracing.Tracer(), "/health", "/metrics"))
	router.With(r.rateLimit).Get("/callback/{provider}", r.handleCallback)
	router.With(r.rateLimit).Post("/callback/{provider}", r.handleCallback)
	r.router = router

	return r
}

// Handle mounts an extra handler, e.g. health or metrics, on the receiver's router.
func (r *Receiver) Handle(pattern string, h http.Handler) {
	r.router.Handle(pattern, h)
}

// ServeHTTP implements http.Handler.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// RedirectURL returns the redirect URL registered with the given provider.
func (r *Receiver) RedirectURL(provider string) string {
	return r.baseURL + "/callback/" + provider
}

// Expect registers state and returns the channel its redirect is delivered on.
func (r *Receiver) Expect(state string) <-chan Redirect {
	ch := make(chan Redirect, 1)
	r.pending.Set(state, ch, gocache.DefaultExpiration)
	return ch
}

// Forget drops a registered state.
func (r *Receiver) Forget(state string) {
	r.pending.Delete(state)
}

func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	provider := chi.URLParam(req, "provider")

	if err := req.ParseForm(); err != nil {
		r.fail(w, provider, apperrors.InvalidInput("malformed callback"))
		return
	}

	state := req.Form.Get("state")
	v, ok := r.pending.Get(state)
	if !ok || state == "" {
		r.log.Warn("callback for unknown state", "provider", provider)
		r.fail(w, provider, apperrors.New(apperrors.CodeStateUnknown, "unknown or expired login state"))
		return
	}
	r.pending.Delete(state)

	redirect := Redirect{
		Provider:         provider,
		State:            state,
		Code:             req.Form.Get("code"),
		Error:            req.Form.Get("error"),
		ErrorDescription: req.Form.Get("error_description"),
		Form:             req.Form,
	}

	select {
	case v.(chan Redirect) <- redirect:
	default:
	}

	r.metrics.RecordCallback(provider, http.StatusOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Login finished. You can close this window.\n"))
}

func (r *Receiver) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.limiter.Allow() {
			r.metrics.RecordRateLimitDrop()
			r.fail(w, chi.URLParam(req, "provider"), apperrors.RateLimited("too many callbacks"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Receiver) fail(w http.ResponseWriter, provider string, err *apperrors.Error) {
	status := err.HTTPStatusCode()
	r.metrics.RecordCallback(provider, status)
	http.Error(w, err.Message, status)
}
