// Package config loads and validates the authorization server
// configuration.
package config

import (
	"fmt"
	"time"
)

// Client registry backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendVault = "vault"
)

// Config is the top-level authorization server configuration, fixed at
// startup except for the client registry file, which may be watched.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Clients ClientsConfig `yaml:"clients"`
	Token   TokenConfig   `yaml:"token"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress   string           `yaml:"listenAddress"`
	ReadTimeout     time.Duration    `yaml:"readTimeout"`
	WriteTimeout    time.Duration    `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration    `yaml:"shutdownTimeout"`
	TLS             *TLSConfig       `yaml:"tls,omitempty"`
	RateLimit       *RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// TLSConfig configures the TLS listener. When ClientCAFile is set the
// server requests (but does not require) a client certificate, enabling the
// mutual-TLS authentication path.
type TLSConfig struct {
	CertFile     string `yaml:"certFile"`
	KeyFile      string `yaml:"keyFile"`
	ClientCAFile string `yaml:"clientCAFile,omitempty"`
}

// RateLimitConfig configures per-address rate limiting on the token
// endpoint.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// AuthConfig holds the deployment-level client authentication policy.
type AuthConfig struct {
	// CanSupportPublicClients allows credential-less public clients to
	// authenticate with only their identifier.
	CanSupportPublicClients bool `yaml:"canSupportPublicClients"`

	// WriteCustomErrors forwards structured errors raised by the client
	// store instead of the generic invalid_client body.
	WriteCustomErrors bool `yaml:"writeCustomErrors"`
}

// ClientsConfig selects and configures the client registry backend.
type ClientsConfig struct {
	Backend string              `yaml:"backend"`
	File    *FileBackendConfig  `yaml:"file,omitempty"`
	Redis   *RedisBackendConfig `yaml:"redis,omitempty"`
	Vault   *VaultBackendConfig `yaml:"vault,omitempty"`
}

// FileBackendConfig configures the file-backed client registry.
type FileBackendConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// RedisBackendConfig configures the Redis-backed client registry.
type RedisBackendConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// VaultBackendConfig configures the Vault-backed client registry.
type VaultBackendConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Mount   string `yaml:"mount,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// TokenConfig configures access token issuance.
type TokenConfig struct {
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience,omitempty"`
	TTL        time.Duration `yaml:"ttl"`
	Algorithm  string        `yaml:"algorithm,omitempty"`
	SigningKey string        `yaml:"signingKey"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// applyDefaults fills in defaults for unset fields.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8443"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Clients.Backend == "" {
		c.Clients.Backend = BackendFile
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Clients.Backend {
	case BackendFile:
		if c.Clients.File == nil || c.Clients.File.Path == "" {
			return fmt.Errorf("clients.file.path is required for the %s backend", BackendFile)
		}
	case BackendRedis:
		if c.Clients.Redis == nil || c.Clients.Redis.Address == "" {
			return fmt.Errorf("clients.redis.address is required for the %s backend", BackendRedis)
		}
	case BackendVault:
		if c.Clients.Vault == nil || c.Clients.Vault.Address == "" {
			return fmt.Errorf("clients.vault.address is required for the %s backend", BackendVault)
		}
		if c.Clients.Vault.Token == "" {
			return fmt.Errorf("clients.vault.token is required for the %s backend", BackendVault)
		}
	default:
		return fmt.Errorf("unsupported clients backend %q", c.Clients.Backend)
	}

	if c.Server.TLS != nil {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires both certFile and keyFile")
		}
	}

	if c.Server.RateLimit != nil {
		if c.Server.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("server.rateLimit.requestsPerSecond must be positive")
		}
		if c.Server.RateLimit.Burst <= 0 {
			return fmt.Errorf("server.rateLimit.burst must be positive")
		}
	}

	if c.Token.SigningKey == "" {
		return fmt.Errorf("token.signingKey is required")
	}
	if c.Token.Issuer == "" {
		return fmt.Errorf("token.issuer is required")
	}
	switch c.Token.Algorithm {
	case "", "HS256", "RS256":
	default:
		return fmt.Errorf("unsupported token.algorithm %q", c.Token.Algorithm)
	}

	return nil
}
