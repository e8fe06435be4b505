package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/carlossalguero/socialauth/services/auth/internal/config"
	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	"github.com/carlossalguero/socialauth/services/auth/internal/social"
	"github.com/carlossalguero/socialauth/services/shared/cache"
	"github.com/carlossalguero/socialauth/services/shared/circuitbreaker"
	"github.com/carlossalguero/socialauth/services/shared/events"
	"github.com/carlossalguero/socialauth/services/shared/health"
	"github.com/carlossalguero/socialauth/services/shared/logger"
	"github.com/carlossalguero/socialauth/services/shared/metrics"
	"github.com/carlossalguero/socialauth/services/shared/tls"
	"github.com/carlossalguero/socialauth/services/shared/tracing"
)

// app holds the wired components of one socialauth process.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	receiver *oauth.Receiver
	facade   *social.Facade
	health   *health.Checker

	cacheClient    *cache.Client
	eventsClient   *events.Client
	tracingCleanup func(context.Context) error
	server         *http.Server
}

// newApp wires the facade. Login pages of Google and Apple are announced on out.
func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	logCfg := cfg.Log
	logCfg.Environment = cfg.Environment
	logger.Init(logCfg)

	a := &app{cfg: cfg, log: logger.Default()}

	if cfg.Tracing.Enabled {
		tcfg := cfg.Tracing
		tcfg.ServiceVersion = version()
		tcfg.Environment = cfg.Environment
		cleanup, err := tracing.InitGlobal(tcfg)
		if err != nil {
			a.log.Error("failed to initialize tracing", "error", err)
		} else {
			a.tracingCleanup = cleanup
			a.log.Info("tracing initialized", "endpoint", tcfg.Endpoint)
		}
	}

	a.metrics = metrics.New(metrics.Config{})

	// Redis is optional: without it tokens live in memory.
	var tokens oauth.TokenStore = oauth.NewMemoryTokenStore()
	if cfg.Redis.Address != "" {
		client, err := cache.New(cfg.Redis)
		if err != nil {
			a.log.Warn("failed to connect to Redis, keeping tokens in memory", "error", err)
		} else {
			a.cacheClient = client
			tokens = oauth.NewRedisTokenStore(client)
			a.log.Info("connected to Redis", "address", cfg.Redis.Address)
		}
	}

	if cfg.NATS.URL != "" {
		client, err := events.New(cfg.NATS)
		if err != nil {
			a.log.Warn("failed to connect to NATS, continuing without events", "error", err)
		} else {
			a.eventsClient = client
			a.log.Info("connected to NATS", "url", cfg.NATS.URL)
		}
	}

	a.receiver = oauth.NewReceiver(cfg.Receiver.ReceiverConfig, a.log, a.metrics)
	presenter := oauth.WriterPresenter(out)

	bindings, graph, err := a.bindings(presenter, tokens)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	opts := []social.Option{
		social.WithLogger(a.log),
		social.WithMetrics(a.metrics),
		social.WithTracer(tracing.Tracer()),
	}
	if graph != nil {
		opts = append(opts, social.WithGraph(graph))
	}
	if a.eventsClient != nil {
		opts = append(opts, social.WithEvents(a.eventsClient))
	}
	a.facade = social.New(bindings, opts...)

	a.health = health.NewChecker(
		health.WithVersion(version()),
		health.WithTimeout(5*time.Second),
	)
	a.health.Register("providers", health.ProvidersCheck(a.providerNames))
	if a.cacheClient != nil {
		a.health.Register("redis", health.PingCheck("redis", a.cacheClient.Ping))
	}
	if a.eventsClient != nil {
		a.health.Register("nats", health.ConnectedCheck("nats", a.eventsClient.IsConnected))
	}

	a.receiver.Handle("/health", a.health)
	a.receiver.Handle("/metrics", a.metrics.Handler())

	return a, nil
}

func (a *app) bindings(presenter oauth.Presenter, tokens oauth.TokenStore) ([]social.Binding, social.Graph, error) {
	p := a.cfg.Providers
	var (
		bindings []social.Binding
		graph    social.Graph
	)

	if p.Configured("google") {
		bindings = append(bindings, social.NewGoogleBinding(oauth.NewGoogleSignIn(p.Google, a.receiver, presenter)))
	}
	if p.Configured("facebook") {
		manager := oauth.NewFacebookLoginManager(p.Facebook.FacebookConfig, a.receiver, tokens)
		bindings = append(bindings, social.NewFacebookBinding(manager))
		graphCfg := p.Facebook.Graph
		graphCfg.Breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
			a.log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
		graph = oauth.NewGraphClient(graphCfg, nil)
	}
	if p.Configured("twitter") {
		bindings = append(bindings, social.NewTwitterBinding(oauth.NewTwitterLogin(p.Twitter, a.receiver)))
	}
	if p.Configured("apple") {
		provider, err := oauth.NewAppleIDProvider(p.Apple, a.receiver, presenter)
		if err != nil {
			return nil, nil, fmt.Errorf("configuring apple: %w", err)
		}
		bindings = append(bindings, social.NewAppleBinding(provider))
	}

	return bindings, graph, nil
}

func (a *app) providerNames() []string {
	kinds := a.facade.Providers()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// start serves the receiver, health and metrics endpoints in the background.
func (a *app) start() error {
	ln, err := net.Listen("tcp", a.cfg.Receiver.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Receiver.Address, err)
	}

	served, err := tls.Listen(ln, a.cfg.Receiver.TLS)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("configuring TLS: %w", err)
	}

	a.server = &http.Server{
		Handler:           a.receiver,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.log.Info("starting HTTP server", "address", served.Addr().String(), "base_url", a.cfg.Receiver.BaseURL, "tls", a.cfg.Receiver.TLS.Enabled())
		if err := a.server.Serve(served); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// close shuts everything down, logging failures.
func (a *app) close(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Error("HTTP server shutdown error", "error", err)
		}
	}

	if a.cacheClient != nil {
		if err := a.cacheClient.Close(); err != nil {
			a.log.Error("Redis client close error", "error", err)
		}
	}

	if a.eventsClient != nil {
		if err := a.eventsClient.Close(); err != nil {
			a.log.Error("NATS client close error", "error", err)
		}
	}

	if a.tracingCleanup != nil {
		if err := a.tracingCleanup(ctx); err != nil {
			a.log.Error("tracing shutdown error", "error", err)
		}
	}
}

func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}
