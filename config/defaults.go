package config

import "time"

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // 流式端点不限写超时
			ShutdownTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			LookaheadTokens:   24,
			FlushInterval:     250 * time.Millisecond,
			WindowTokens:      150,
			OverlapTokens:     50,
			EvalFrequency:     25,
			HeartbeatInterval: 15 * time.Second,
			QueueCapacity:     200,
			SafeRewrite:       true,
			TokenizerEncoding: "cl100k_base",
		},
		Compliance: ComplianceConfig{
			RiskThreshold:     1.0,
			ConfidenceFloor:   0.6,
			DefaultRegion:     "",
			EntityRecognition: true,
			ScreenInput:       true,
		},
		Audit: AuditConfig{
			Driver:     "sqlite",
			Path:       "audit.db",
			MaxEntries: 1000,
		},
		Upstream: UpstreamConfig{
			Provider:  "demo",
			Model:     "demo-streamer",
			Timeout:   60 * time.Second,
			DemoDelay: 50 * time.Millisecond,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "blockingd",
		},
	}
}
