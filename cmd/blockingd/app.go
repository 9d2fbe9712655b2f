package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/api/handlers"
	"github.com/moxer-mmh/blocking-responses-poc/audit"
	"github.com/moxer-mmh/blocking-responses-poc/compliance"
	"github.com/moxer-mmh/blocking-responses-poc/config"
	"github.com/moxer-mmh/blocking-responses-poc/internal/metrics"
	"github.com/moxer-mmh/blocking-responses-poc/internal/server"
	"github.com/moxer-mmh/blocking-responses-poc/stream"
	"github.com/moxer-mmh/blocking-responses-poc/tokenizer"
)

// app 持有装配完成的服务组件。
type app struct {
	server *server.Manager
}

// buildApp 按配置装配整条中继：审计存储 → 策略与闸门 → 指标 →
// 上游源 → 处理器 → HTTP 服务器。
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	auditSink, auditQuerier, err := buildAudit(cfg.Audit, logger)
	if err != nil {
		return nil, fmt.Errorf("assemble audit storage: %w", err)
	}

	var collector *metrics.Collector
	var sink compliance.MetricsSink = compliance.NopMetrics{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, nil, logger)
		sink = collector
	}

	policy := compliance.DefaultPolicy()
	policy.Threshold = cfg.Compliance.RiskThreshold
	policy.ConfidenceFloor = cfg.Compliance.ConfidenceFloor

	detector := compliance.NewPatternDetector(policy)

	var recognizer compliance.EntityRecognizer
	if cfg.Compliance.EntityRecognition {
		recognizer = compliance.NewRegexRecognizer()
	}

	gate := compliance.NewGate(compliance.GateConfig{
		Policy:     policy,
		Assessor:   detector,
		Recognizer: recognizer,
		Audit:      auditSink,
		Metrics:    sink,
		Logger:     logger,
	})

	tok := buildTokenizer(cfg.Relay.TokenizerEncoding, logger)
	source := buildSource(cfg.Upstream, logger)

	router := &handlers.Router{
		Stream:  handlers.NewStreamHandler(cfg, gate, source, tok, collector, logger),
		Assess:  handlers.NewAssessHandler(gate, logger),
		Health:  handlers.NewHealthHandler(Version),
		Audit:   handlers.NewAuditHandler(auditQuerier, logger),
		Policy:  handlers.NewPolicyHandler(policy, detector, logger),
		Metrics: collector,
	}

	mgr := server.NewManager(router.Build(), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     server.DefaultConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return &app{server: mgr}, nil
}

// buildAudit 根据驱动构建审计存储。
func buildAudit(cfg config.AuditConfig, logger *zap.Logger) (audit.Sink, handlers.AuditQuerier, error) {
	switch cfg.Driver {
	case "sqlite":
		sink, err := audit.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("audit storage ready",
			zap.String("driver", "sqlite"),
			zap.String("path", cfg.Path),
		)
		return sink, sink, nil
	case "memory":
		sink := audit.NewMemorySink(cfg.MaxEntries)
		return sink, sink, nil
	case "none":
		return audit.NopSink{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// buildTokenizer 构建分词器；编码名为空时用字符估算。
func buildTokenizer(encoding string, logger *zap.Logger) tokenizer.Tokenizer {
	if encoding == "" {
		logger.Info("tokenizer disabled, using character estimator")
		return tokenizer.NewEstimator()
	}
	return tokenizer.NewTiktoken(encoding)
}

// buildSource 构建上游源。未配置真实上游时用内置 demo 源。
func buildSource(cfg config.UpstreamConfig, logger *zap.Logger) stream.TokenSource {
	if cfg.Provider != "demo" && cfg.Provider != "" {
		logger.Warn("unknown upstream provider, falling back to demo source",
			zap.String("provider", cfg.Provider),
		)
	}
	return &stream.DemoSource{Delay: cfg.DemoDelay}
}
