// Package events provides a NATS client wrapper for publishing login events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Subjects published by socialauth.
const (
	SubjectLoginSucceeded = "socialauth.login.succeeded"
	SubjectLoginFailed    = "socialauth.login.failed"
)

// Common errors.
var (
	ErrNotConnected = errors.New("not connected to NATS")
)

// Config holds NATS client configuration.
type Config struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Client wraps the NATS connection.
type Client struct {
	conn   *nats.Conn
	source string
}

// Event represents a generic event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	TraceID   string         `json:"trace_id,omitempty"`
	Data      map[string]any `json:"data"`
}

// NewEvent creates a new event with the given type and source.
func NewEvent(eventType, source string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// New creates a new NATS client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn, source: cfg.Name}, nil
}

// Close drains and closes the NATS connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Drain()
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Publish publishes a message to a subject.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.conn.Publish(subject, data)
}

// PublishJSON publishes a JSON-encoded message to a subject.
func (c *Client) PublishJSON(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.Publish(ctx, subject, data)
}

// PublishEvent publishes an event to a subject.
func (c *Client) PublishEvent(ctx context.Context, subject string, event Event) error {
	if event.Source == "" {
		event.Source = c.source
	}
	return c.PublishJSON(ctx, subject, event)
}
