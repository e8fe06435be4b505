// Package tls builds the TLS configuration for the redirect receiver.
// Some providers, Facebook among them, only accept https redirect URIs.
package tls

import (
	"crypto/tls"
	"fmt"
	"net"
)

// Config holds TLS configuration options.
type Config struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// MinVersion is "1.2" or "1.3". Defaults to 1.2.
	MinVersion string `mapstructure:"min_version"`
}

// Enabled reports whether a certificate is configured.
func (c Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// ServerConfig loads the key pair and returns a server tls.Config.
func ServerConfig(cfg Config) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("certificate and key files are required")
	}

	minVersion, err := parseVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: preferredCipherSuites(),
	}, nil
}

// Listen wraps ln with TLS when cfg is enabled and returns it unchanged otherwise.
func Listen(ln net.Listener, cfg Config) (net.Listener, error) {
	if !cfg.Enabled() {
		return ln, nil
	}
	tlsCfg, err := ServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, tlsCfg), nil
}

func parseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", v)
	}
}

// preferredCipherSuites applies to TLS 1.2 only; 1.3 suites are not configurable.
func preferredCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	}
}
