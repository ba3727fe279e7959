package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"gqljoin/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Schema.validate(result)
	c.Compiler.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(s.File) == "" {
		result.addError("schema.file", "schema file is required", "point schema.file at a YAML or JSON schema document")
	}
	if s.RefreshMinInterval < 0 {
		result.addError("schema.refresh_min_interval", "refresh_min_interval cannot be negative", "set 0 to disable polling")
	}
	if s.RefreshMaxInterval < 0 {
		result.addError("schema.refresh_max_interval", "refresh_max_interval cannot be negative", "")
	}
	if s.RefreshMinInterval > 0 && s.RefreshMaxInterval > 0 && s.RefreshMaxInterval < s.RefreshMinInterval {
		result.addWarning("schema.refresh_max_interval", "refresh_max_interval is less than refresh_min_interval",
			"the minimum interval will be used for every check")
	}
}

func (c *CompilerConfig) validate(result *ValidationResult) {
	if c.MaxDepth < 0 {
		result.addError("compiler.max_depth", "max_depth cannot be negative", "set 0 for no limit")
	}
	if c.MaxJoins < 0 {
		result.addError("compiler.max_joins", "max_joins cannot be negative", "set 0 for no limit")
	}
	if c.CacheSize < 0 {
		result.addError("compiler.cache_size", "cache_size cannot be negative", "set 0 to disable the cache")
	}
	if c.MaxBodyBytes <= 0 {
		result.addError("compiler.max_body_bytes", "max_body_bytes must be greater than 0", "")
	}
	if c.MaxDepth == 0 && c.MaxJoins == 0 {
		result.addWarning("compiler.max_joins", "compile limits are disabled",
			"set max_depth or max_joins to bound statement size")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.addError("server.rate_limit_rps", "rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.addError("server.rate_limit_burst", "rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
	}
	if !s.RateLimitEnabled && (s.RateLimitRPS > 0 || s.RateLimitBurst > 0) {
		result.addWarning("server.rate_limit_enabled", "rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit_enabled to apply rate limits")
	}

	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.addError("server.cors_allowed_origins", "CORS enabled but no allowed origins configured",
				"set cors_allowed_origins or disable CORS")
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}
		if hasWildcard && s.CORSAllowCredentials {
			result.addError("server.cors_allowed_origins", "wildcard origin (*) cannot be used with credentials",
				"use specific origins with credentials, or wildcard without credentials")
		}
		if hasWildcard {
			result.addWarning("server.cors_allowed_origins", "CORS wildcard origin enabled",
				"use specific origins in production for better security")
		}
	}

	if s.Admin.SchemaReloadEnabled && strings.TrimSpace(s.Admin.AuthToken) == "" {
		result.addError("server.admin.auth_token", "admin auth token is required when schema_reload_enabled is true",
			"set server.admin.auth_token or server.admin.auth_token_file")
	}
	if s.Auth.OIDCEnabled {
		if strings.TrimSpace(s.Auth.OIDCIssuerURL) == "" {
			result.addError("server.auth.oidc_issuer_url", "issuer URL is required when OIDC is enabled", "")
		} else if u, err := url.Parse(s.Auth.OIDCIssuerURL); err != nil || u.Scheme != "https" || u.Host == "" {
			result.addError("server.auth.oidc_issuer_url", fmt.Sprintf("invalid issuer URL %q", s.Auth.OIDCIssuerURL),
				"use an https URL")
		}
		if strings.TrimSpace(s.Auth.OIDCAudience) == "" {
			result.addError("server.auth.oidc_audience", "audience is required when OIDC is enabled", "")
		}
		if s.Auth.OIDCClockSkew < 0 {
			result.addError("server.auth.oidc_clock_skew", "clock skew cannot be negative", "")
		}
		if s.Auth.OIDCSkipTLSVerify {
			result.addWarning("server.auth.oidc_skip_tls_verify", "OIDC TLS verification is disabled",
				"set server.auth.oidc_ca_file instead outside local development")
		}
	}

	if !s.Admin.SchemaReloadEnabled && s.Admin.AuthToken != "" {
		result.addWarning("server.admin.auth_token", "admin auth token is set but no admin endpoint is enabled", "")
	}

	for field, value := range map[string]int64{
		"server.read_timeout":     int64(s.ReadTimeout),
		"server.write_timeout":    int64(s.WriteTimeout),
		"server.idle_timeout":     int64(s.IdleTimeout),
		"server.shutdown_timeout": int64(s.ShutdownTimeout),
	} {
		if value < 0 {
			result.addError(field, "timeout cannot be negative", "")
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if (o.MetricsEnabled || o.TracingEnabled || o.Logging.ExportsEnabled) && strings.TrimSpace(o.ServiceName) == "" {
		result.addError("observability.service_name", "service_name is required when telemetry is enabled", "")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v is outside 0.0-1.0", o.TraceSampleRatio), "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.TracingEnabled && strings.TrimSpace(o.TracesOTLP().Endpoint) == "" {
		result.addError("observability.otlp.endpoint", "OTLP endpoint is required when tracing is enabled", "")
	}
	if o.Logging.ExportsEnabled && strings.TrimSpace(o.LogsOTLP().Endpoint) == "" {
		result.addError("observability.otlp.endpoint", "OTLP endpoint is required when log exports are enabled", "")
	}
}

func (c *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http": true, "http/protobuf": true}
	if !validProtocols[c.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", c.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if (c.Protocol == "http" || c.Protocol == "http/protobuf") && c.Endpoint != "" && !validOTLPEndpoint(c.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", c.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[c.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", c.Compression),
			"valid values are: none, gzip")
	}
	if (c.TLSClientCertFile == "") != (c.TLSClientKeyFile == "") {
		result.addError(prefix+".tls_client_cert_file", "client certificate and key must be set together", "")
	}
	if c.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
	if c.Timeout < 0 {
		result.addError(prefix+".timeout", "timeout cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		return err == nil && parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" {
			result.addError("naming.plural_overrides", "singular form cannot be empty", "")
			continue
		}
		if strings.TrimSpace(plural) == "" {
			result.addError("naming.plural_overrides", fmt.Sprintf("plural override for %q cannot be empty", singular), "")
		}
	}
}
