package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/etc/hindsight/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("HINDSIGHT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.expiry_minutes", 1440) // 24 hours

	// Cache defaults. No nodes means the in-memory noop store.
	v.SetDefault("cache.nodes", []string{})
	v.SetDefault("cache.ttl", 300) // 5 minutes
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"X-Cache", "X-Rate-Limit-Remaining"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", 30)
	v.SetDefault("websocket.max_message_size", 1048576) // 1MB

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.prometheus_enabled", true)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	// Ingestion defaults
	v.SetDefault("ingest.max_file_size_mb", 100)
	v.SetDefault("ingest.strict", false)
	v.SetDefault("ingest.timestamp_cache_size", 2048)

	// Analysis defaults
	v.SetDefault("analysis.group_window_seconds", 300)
	v.SetDefault("analysis.min_group_size", 1)
	v.SetDefault("analysis.group_by", "time")
	v.SetDefault("analysis.causal_window_seconds", 300)
	v.SetDefault("analysis.top_errors", 5)
	v.SetDefault("analysis.cache_ttl_seconds", 300)

	// Trace analyzer defaults
	v.SetDefault("traces.slow_span_threshold_ms", 1000)
	v.SetDefault("traces.error_window_ms", 100)

	// Anomaly detector defaults
	v.SetDefault("anomaly.min_history", 10)
	v.SetDefault("anomaly.method", "zscore")

	// Alert correlation defaults
	v.SetDefault("alerts.rules_path", "")

	// Webhook receiver defaults
	v.SetDefault("webhooks.history_size", 1000)
	v.SetDefault("webhooks.rate_per_second", 5.0)
	v.SetDefault("webhooks.burst", 10)
	v.SetDefault("webhooks.timeout_seconds", 10)

	// LLM defaults. Provider none keeps the engine fully heuristic.
	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.cooldown_seconds", 30)
	v.SetDefault("llm.breaker.success_threshold", 2)

	// Search defaults
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.max_indexed_events", 100000)
	v.SetDefault("search.max_results", 100)
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Valkey cache nodes
	if cacheNodes := os.Getenv("CACHE_NODES"); cacheNodes != "" {
		nodes := strings.Split(cacheNodes, ",")
		for i, node := range nodes {
			nodes[i] = strings.TrimSpace(node)
		}
		v.Set("cache.nodes", nodes)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	// LLM provider wiring
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		v.Set("llm.provider", provider)
	}

	if endpoint := os.Getenv("LLM_ENDPOINT"); endpoint != "" {
		v.Set("llm.endpoint", endpoint)
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		v.Set("llm.model", model)
	}

	// OTLP trace exporter
	if otlp := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otlp != "" {
		v.Set("tracing.endpoint", otlp)
		v.Set("tracing.enabled", true)
	}

	if rulesPath := os.Getenv("ALERT_RULES_PATH"); rulesPath != "" {
		v.Set("alerts.rules_path", rulesPath)
	}
}

// LoadSecrets loads sensitive configuration from environment or files.
// Secrets never come from the YAML file in production setups.
func LoadSecrets(config *Config) error {
	if valkeyPassword := os.Getenv("VALKEY_PASSWORD"); valkeyPassword != "" {
		config.Cache.Password = valkeyPassword
	} else if passwordFile := os.Getenv("VALKEY_PASSWORD_FILE"); passwordFile != "" {
		password, err := os.ReadFile(passwordFile)
		if err != nil {
			return fmt.Errorf("failed to read Valkey password file: %w", err)
		}
		config.Cache.Password = strings.TrimSpace(string(password))
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		config.Auth.JWTSecret = jwtSecret
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}

	// Per-source webhook secrets: HINDSIGHT_WEBHOOK_SECRET_GITHUB=...
	// registers a secret for source "github".
	const prefix = "HINDSIGHT_WEBHOOK_SECRET_"
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(kv, prefix), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		if config.Webhooks.Secrets == nil {
			config.Webhooks.Secrets = make(map[string]string)
		}
		config.Webhooks.Secrets[strings.ToLower(parts[0])] = parts[1]
	}

	if config.IsProduction() && config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required for production")
	}

	return nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}
	for _, node := range config.Cache.Nodes {
		if err := ValidateNode(node); err != nil {
			return fmt.Errorf("invalid cache node %q: %w", node, err)
		}
	}

	if config.Ingest.MaxFileSizeMB < 1 {
		return fmt.Errorf("ingest max file size must be at least 1 MiB")
	}
	if config.Ingest.TimestampCacheSize < 1024 {
		return fmt.Errorf("timestamp cache must hold at least 1024 entries")
	}

	if config.Analysis.GroupWindowSeconds < 1 {
		return fmt.Errorf("analysis group window must be positive")
	}
	if config.Analysis.CausalWindowSeconds < 1 {
		return fmt.Errorf("analysis causal window must be positive")
	}
	if config.Analysis.MinGroupSize < 1 {
		return fmt.Errorf("analysis min group size must be at least 1")
	}
	validGroupings := []string{"time", "service_time"}
	if !contains(validGroupings, config.Analysis.GroupBy) {
		return fmt.Errorf("invalid grouping strategy: %s", config.Analysis.GroupBy)
	}

	if config.Traces.SlowSpanThresholdMs < 1 {
		return fmt.Errorf("slow span threshold must be positive")
	}
	if config.Traces.ErrorWindowMs < 1 {
		return fmt.Errorf("error propagation window must be positive")
	}

	if config.Anomaly.MinHistory < 1 {
		return fmt.Errorf("anomaly min history must be at least 1")
	}
	validMethods := []string{"zscore", "iqr", "moving_average"}
	if !contains(validMethods, config.Anomaly.Method) {
		return fmt.Errorf("unknown anomaly method: %s", config.Anomaly.Method)
	}

	if config.Webhooks.HistorySize < 1 {
		return fmt.Errorf("webhook history size must be at least 1")
	}
	if config.Webhooks.TimeoutSeconds < 1 {
		return fmt.Errorf("webhook timeout must be positive")
	}

	validProviders := []string{"none", "openai", "anthropic", "ollama"}
	if !contains(validProviders, config.LLM.Provider) {
		return fmt.Errorf("unknown LLM provider: %s", config.LLM.Provider)
	}
	if config.LLM.Enabled() {
		if config.LLM.TimeoutSeconds < 1 {
			return fmt.Errorf("LLM timeout must be positive")
		}
		if config.LLM.MaxRetries < 0 {
			return fmt.Errorf("LLM max retries cannot be negative")
		}
		if config.LLM.Breaker.FailureThreshold < 1 {
			return fmt.Errorf("breaker failure threshold must be at least 1")
		}
		if config.LLM.Breaker.SuccessThreshold < 1 {
			return fmt.Errorf("breaker success threshold must be at least 1")
		}
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests per second must be positive")
	}

	if config.Search.Enabled {
		if config.Search.MaxIndexedEvents < 1 {
			return fmt.Errorf("search max indexed events must be at least 1")
		}
		if config.Search.MaxResults < 1 {
			return fmt.Errorf("search max results must be at least 1")
		}
	}

	if config.Tracing.Enabled && config.Tracing.Endpoint != "" {
		if err := ValidateNode(config.Tracing.Endpoint); err != nil {
			return fmt.Errorf("invalid tracing endpoint %q: %w", config.Tracing.Endpoint, err)
		}
	}
	if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
