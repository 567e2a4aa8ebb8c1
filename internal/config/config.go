package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Ingest     IngestConfig     `mapstructure:"ingest" yaml:"ingest"`
	Analysis   AnalysisConfig   `mapstructure:"analysis" yaml:"analysis"`
	Traces     TracesConfig     `mapstructure:"traces" yaml:"traces"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly" yaml:"anomaly"`
	Alerts     AlertsConfig     `mapstructure:"alerts" yaml:"alerts"`
	Webhooks   WebhooksConfig   `mapstructure:"webhooks" yaml:"webhooks"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
}

// AuthConfig controls the optional bearer-token middleware.
type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	ExpiryMinutes int    `mapstructure:"expiry_minutes" yaml:"expiry_minutes"`
}

// CacheConfig points at a Valkey deployment. With no nodes configured
// the process falls back to the in-memory noop store.
type CacheConfig struct {
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
}

func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConnections  int  `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
	MaxMessageSize  int  `mapstructure:"max_message_size" yaml:"max_message_size"`
}

type MonitoringConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath       string `mapstructure:"metrics_path" yaml:"metrics_path"`
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled" yaml:"prometheus_enabled"`
}

// TracingConfig configures the OTLP gRPC exporter. An empty endpoint
// disables tracing regardless of Enabled.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

type IngestConfig struct {
	MaxFileSizeMB      int    `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`
	Strict             bool   `mapstructure:"strict" yaml:"strict"`
	TimestampCacheSize int    `mapstructure:"timestamp_cache_size" yaml:"timestamp_cache_size"`
	DefaultService     string `mapstructure:"default_service" yaml:"default_service"`
}

func (c IngestConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

type AnalysisConfig struct {
	GroupWindowSeconds  int    `mapstructure:"group_window_seconds" yaml:"group_window_seconds"`
	MinGroupSize        int    `mapstructure:"min_group_size" yaml:"min_group_size"`
	GroupBy             string `mapstructure:"group_by" yaml:"group_by"`
	CausalWindowSeconds int    `mapstructure:"causal_window_seconds" yaml:"causal_window_seconds"`
	TopErrors           int    `mapstructure:"top_errors" yaml:"top_errors"`
	CacheTTLSeconds     int    `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

func (c AnalysisConfig) GroupWindow() time.Duration {
	return time.Duration(c.GroupWindowSeconds) * time.Second
}

func (c AnalysisConfig) CausalWindow() time.Duration {
	return time.Duration(c.CausalWindowSeconds) * time.Second
}

func (c AnalysisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type TracesConfig struct {
	SlowSpanThresholdMs int `mapstructure:"slow_span_threshold_ms" yaml:"slow_span_threshold_ms"`
	ErrorWindowMs       int `mapstructure:"error_window_ms" yaml:"error_window_ms"`
}

func (c TracesConfig) SlowSpanThreshold() time.Duration {
	return time.Duration(c.SlowSpanThresholdMs) * time.Millisecond
}

func (c TracesConfig) ErrorWindow() time.Duration {
	return time.Duration(c.ErrorWindowMs) * time.Millisecond
}

type AnomalyConfig struct {
	MinHistory int    `mapstructure:"min_history" yaml:"min_history"`
	Method     string `mapstructure:"method" yaml:"method"`
}

type AlertsConfig struct {
	RulesPath string `mapstructure:"rules_path" yaml:"rules_path"`
}

type WebhooksConfig struct {
	HistorySize    int               `mapstructure:"history_size" yaml:"history_size"`
	RatePerSecond  float64           `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst          int               `mapstructure:"burst" yaml:"burst"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Secrets        map[string]string `mapstructure:"secrets" yaml:"secrets"`
}

func (c WebhooksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	Breaker        BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Enabled reports whether an LLM provider is configured at all.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	CooldownSeconds  int `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
	SuccessThreshold int `mapstructure:"success_threshold" yaml:"success_threshold"`
}

func (c BreakerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

type SearchConfig struct {
	Enabled          bool `mapstructure:"enabled" yaml:"enabled"`
	MaxIndexedEvents int  `mapstructure:"max_indexed_events" yaml:"max_indexed_events"`
	MaxResults       int  `mapstructure:"max_results" yaml:"max_results"`
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true when running in development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true when running under test.
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}
