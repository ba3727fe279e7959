// Package config loads server configuration from flags, environment
// variables, a config file and defaults.
package config

import (
	"time"

	"gqljoin/internal/naming"
	"gqljoin/internal/planner"
)

// Config holds the application configuration.
type Config struct {
	Schema        SchemaConfig        `mapstructure:"schema"`
	Compiler      CompilerConfig      `mapstructure:"compiler"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Naming        naming.Config       `mapstructure:"naming"`
}

// SchemaConfig locates the schema document and controls reloading.
type SchemaConfig struct {
	// File is the YAML or JSON schema document.
	File string `mapstructure:"file"`
	// RefreshMinInterval is the polling interval after a change; 0 disables polling.
	RefreshMinInterval time.Duration `mapstructure:"refresh_min_interval"`
	// RefreshMaxInterval caps the backoff while the file is unchanged.
	RefreshMaxInterval time.Duration `mapstructure:"refresh_max_interval"`
}

// CompilerConfig bounds compiled statements and sizes the statement cache.
type CompilerConfig struct {
	MaxDepth     int   `mapstructure:"max_depth"`
	MaxJoins     int   `mapstructure:"max_joins"`
	CacheSize    int   `mapstructure:"cache_size"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// Limits returns the planner limits for this configuration.
func (c CompilerConfig) Limits() planner.Limits {
	return planner.Limits{MaxDepth: c.MaxDepth, MaxJoins: c.MaxJoins}
}

// AdminConfig controls administrative endpoint exposure and authentication.
type AdminConfig struct {
	SchemaReloadEnabled bool   `mapstructure:"schema_reload_enabled"`
	AuthToken           string `mapstructure:"auth_token"`
	AuthTokenFile       string `mapstructure:"auth_token_file"`
}

// AuthConfig controls bearer token authentication on the compile endpoint.
type AuthConfig struct {
	OIDCEnabled       bool          `mapstructure:"oidc_enabled"`
	OIDCIssuerURL     string        `mapstructure:"oidc_issuer_url"`
	OIDCAudience      string        `mapstructure:"oidc_audience"`
	OIDCClockSkew     time.Duration `mapstructure:"oidc_clock_skew"`
	OIDCCAFile        string        `mapstructure:"oidc_ca_file"`
	OIDCSkipTLSVerify bool          `mapstructure:"oidc_skip_tls_verify"` // dev only
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	Admin                AdminConfig   `mapstructure:"admin"`
	Auth                 AuthConfig    `mapstructure:"auth"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // also export records over OTLP
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// OTLP applies to traces and logs unless a signal override is set.
	OTLP   OTLPConfig  `mapstructure:"otlp"`
	Traces *OTLPConfig `mapstructure:"traces"`
	Logs   *OTLPConfig `mapstructure:"logs"`
}

// OTLPConfig configures an OTLP exporter.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // grpc, http/protobuf
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // none, gzip
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// TracesOTLP returns the exporter settings for traces.
func (o *ObservabilityConfig) TracesOTLP() OTLPConfig {
	return o.OTLP.overlay(o.Traces)
}

// LogsOTLP returns the exporter settings for logs.
func (o *ObservabilityConfig) LogsOTLP() OTLPConfig {
	return o.OTLP.overlay(o.Logs)
}

// overlay returns c with every set field of override applied. Insecure is
// taken from the override as-is.
func (c OTLPConfig) overlay(override *OTLPConfig) OTLPConfig {
	if override == nil {
		return c
	}
	out := c
	out.Insecure = override.Insecure
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&out.Endpoint, override.Endpoint)
	setString(&out.Protocol, override.Protocol)
	setString(&out.TLSCertFile, override.TLSCertFile)
	setString(&out.TLSClientCertFile, override.TLSClientCertFile)
	setString(&out.TLSClientKeyFile, override.TLSClientKeyFile)
	setString(&out.Compression, override.Compression)
	if len(override.Headers) > 0 {
		out.Headers = override.Headers
	}
	if override.Timeout > 0 {
		out.Timeout = override.Timeout
	}
	if override.RetryEnabled {
		out.RetryEnabled = true
	}
	if override.RetryMaxAttempts > 0 {
		out.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return out
}
