// Package health provides health check utilities for the socialauth server.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusUp indicates the component is healthy.
	StatusUp Status = "up"
	// StatusDown indicates the component is unhealthy.
	StatusDown Status = "down"
	// StatusDegraded indicates the component is partially healthy.
	StatusDegraded Status = "degraded"
)

// Check represents a health check function.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ms"`
}

// Response represents the overall health response.
type Response struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker manages health checks for a service.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	version string
	timeout time.Duration
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithVersion sets the service version.
func WithVersion(version string) Option {
	return func(c *Checker) {
		c.version = version
	}
}

// WithTimeout sets the timeout for individual health checks.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// NewChecker creates a new health checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checks:  make(map[string]Check),
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register adds a health check for a component.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

type namedHealth struct {
	name   string
	health ComponentHealth
}

// Check runs all health checks concurrently and returns the overall health.
func (c *Checker) Check(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusUp,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Components: make(map[string]ComponentHealth, len(checks)),
	}

	var wg sync.WaitGroup
	results := make(chan namedHealth, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			health := check(checkCtx)
			health.Latency = time.Since(start)

			results <- namedHealth{name, health}
		}(name, check)
	}

	wg.Wait()
	close(results)

	for result := range results {
		response.Components[result.name] = result.health

		switch result.health.Status {
		case StatusDown:
			response.Status = StatusDown
		case StatusDegraded:
			if response.Status != StatusDown {
				response.Status = StatusDegraded
			}
		}
	}

	return response
}

// ServeHTTP writes the detailed health response as JSON.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := c.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// PingCheck creates a health check from a ping function, e.g. a Redis client.
func PingCheck(component string, ping func(context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{
				Status:  StatusDown,
				Message: component + " connection failed",
				Details: map[string]any{"error": err.Error()},
			}
		}
		return ComponentHealth{
			Status:  StatusUp,
			Message: component + " connection healthy",
		}
	}
}

// ConnectedCheck reports degraded rather than down: event publishing is optional.
func ConnectedCheck(component string, connected func() bool) Check {
	return func(_ context.Context) ComponentHealth {
		if !connected() {
			return ComponentHealth{
				Status:  StatusDegraded,
				Message: component + " disconnected",
			}
		}
		return ComponentHealth{
			Status:  StatusUp,
			Message: component + " connected",
		}
	}
}

// ProvidersCheck reports the configured login providers.
func ProvidersCheck(providers func() []string) Check {
	return func(_ context.Context) ComponentHealth {
		names := providers()
		if len(names) == 0 {
			return ComponentHealth{
				Status:  StatusDegraded,
				Message: "no login providers configured",
			}
		}
		return ComponentHealth{
			Status:  StatusUp,
			Details: map[string]any{"providers": names},
		}
	}
}
