// Package config loads the socialauth configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	"github.com/carlossalguero/socialauth/services/shared/cache"
	"github.com/carlossalguero/socialauth/services/shared/events"
	"github.com/carlossalguero/socialauth/services/shared/logger"
	"github.com/carlossalguero/socialauth/services/shared/tls"
	"github.com/carlossalguero/socialauth/services/shared/tracing"
)

// EnvPrefix is the prefix of environment overrides, e.g. SOCIALAUTH_LOG_LEVEL.
const EnvPrefix = "SOCIALAUTH"

// Config holds the socialauth configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Log         logger.Config  `mapstructure:"log"`
	Tracing     tracing.Config `mapstructure:"tracing"`
	Redis       cache.Config   `mapstructure:"redis"`
	NATS        events.Config  `mapstructure:"nats"`
	Receiver    Receiver       `mapstructure:"receiver"`
	Login       Login          `mapstructure:"login"`
	Providers   Providers      `mapstructure:"providers"`
}

// Receiver configures the redirect, health and metrics server.
type Receiver struct {
	Address              string     `mapstructure:"address"`
	TLS                  tls.Config `mapstructure:"tls"`
	oauth.ReceiverConfig `mapstructure:",squash"`
}

// Login configures interactive logins.
type Login struct {
	// Timeout bounds an interactive login. Zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Providers holds the per-provider settings.
type Providers struct {
	Google   oauth.GoogleConfig  `mapstructure:"google"`
	Facebook Facebook            `mapstructure:"facebook"`
	Twitter  oauth.TwitterConfig `mapstructure:"twitter"`
	Apple    oauth.AppleConfig   `mapstructure:"apple"`
}

// Facebook holds Facebook Login and Graph API settings.
type Facebook struct {
	oauth.FacebookConfig `mapstructure:",squash"`
	Graph                oauth.GraphConfig `mapstructure:"graph"`
}

// Configured reports whether the named provider has a client ID.
func (p Providers) Configured(name string) bool {
	switch strings.ToLower(name) {
	case "google":
		return p.Google.ClientID != ""
	case "facebook":
		return p.Facebook.AppID != ""
	case "twitter":
		return p.Twitter.ClientID != ""
	case "apple":
		return p.Apple.ClientID != ""
	}
	return false
}

// Load reads configuration from path, or from socialauth.yaml in the usual
// locations when path is empty. A .env file in the working directory is
// loaded first; environment variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("socialauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/socialauth")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Receiver.BaseURL == "" {
		return errors.New("receiver.base_url is required")
	}
	if c.Login.Timeout < 0 {
		return errors.New("login.timeout must not be negative")
	}
	if c.Receiver.TLS.Enabled() && !strings.HasPrefix(c.Receiver.BaseURL, "https://") {
		return errors.New("receiver.base_url must use https when receiver.tls is set")
	}
	if c.Providers.Apple.ClientID != "" && (c.Providers.Apple.TeamID == "" || c.Providers.Apple.KeyID == "") {
		return errors.New("providers.apple requires team_id and key_id")
	}
	return nil
}

// Every key gets a default so environment variables can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service_name", "socialauth")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "socialauth")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.key_prefix", "socialauth:")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "socialauth")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("receiver.address", "127.0.0.1:8085")
	v.SetDefault("receiver.base_url", "http://127.0.0.1:8085")
	v.SetDefault("receiver.state_ttl", "10m")
	v.SetDefault("receiver.rate_per_second", 10.0)
	v.SetDefault("receiver.burst", 20)
	v.SetDefault("receiver.tls.cert_file", "")
	v.SetDefault("receiver.tls.key_file", "")
	v.SetDefault("receiver.tls.min_version", "1.2")

	v.SetDefault("login.timeout", "5m")

	v.SetDefault("providers.google.client_id", "")
	v.SetDefault("providers.google.client_secret", "")
	v.SetDefault("providers.google.user_info_url", "")
	v.SetDefault("providers.facebook.app_id", "")
	v.SetDefault("providers.facebook.app_secret", "")
	v.SetDefault("providers.facebook.graph.base_url", "")
	v.SetDefault("providers.facebook.graph.version", "v19.0")
	v.SetDefault("providers.facebook.graph.breaker.failure_threshold", 5)
	v.SetDefault("providers.facebook.graph.breaker.open_timeout", "30s")
	v.SetDefault("providers.twitter.client_id", "")
	v.SetDefault("providers.twitter.client_secret", "")
	v.SetDefault("providers.twitter.me_url", "")
	v.SetDefault("providers.apple.client_id", "")
	v.SetDefault("providers.apple.team_id", "")
	v.SetDefault("providers.apple.key_id", "")
	v.SetDefault("providers.apple.private_key_path", "")
}
