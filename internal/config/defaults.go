package config

// GetDefaultConfig returns a configuration with all default values
func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Port:        8080,
		LogLevel:    "info",

		Auth: AuthConfig{
			Enabled:       false,
			ExpiryMinutes: 1440,
		},

		Cache: CacheConfig{
			Nodes: []string{},
			TTL:   300,
			DB:    0,
		},

		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			ExposedHeaders:   []string{"X-Cache", "X-Rate-Limit-Remaining"},
			AllowCredentials: true,
			MaxAge:           3600,
		},

		WebSocket: WebSocketConfig{
			Enabled:         true,
			MaxConnections:  1000,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    30,
			MaxMessageSize:  1048576, // 1MB
		},

		Monitoring: MonitoringConfig{
			Enabled:           true,
			MetricsPath:       "/metrics",
			PrometheusEnabled: true,
		},

		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1.0,
			Insecure:    true,
		},

		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50.0,
			Burst:             100,
		},

		Ingest: IngestConfig{
			MaxFileSizeMB:      100,
			Strict:             false,
			TimestampCacheSize: 2048,
		},

		Analysis: AnalysisConfig{
			GroupWindowSeconds:  300,
			MinGroupSize:        1,
			GroupBy:             "time",
			CausalWindowSeconds: 300,
			TopErrors:           5,
			CacheTTLSeconds:     300,
		},

		Traces: TracesConfig{
			SlowSpanThresholdMs: 1000,
			ErrorWindowMs:       100,
		},

		Anomaly: AnomalyConfig{
			MinHistory: 10,
			Method:     "zscore",
		},

		Webhooks: WebhooksConfig{
			HistorySize:    1000,
			RatePerSecond:  5.0,
			Burst:          10,
			TimeoutSeconds: 10,
		},

		LLM: LLMConfig{
			Provider:       "none",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				CooldownSeconds:  30,
				SuccessThreshold: 2,
			},
		},

		Search: SearchConfig{
			Enabled:          true,
			MaxIndexedEvents: 100000,
			MaxResults:       100,
		},
	}
}
