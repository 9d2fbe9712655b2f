// =============================================================================
// 📦 blockingd 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("BLOCKINGD").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 blockingd 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Relay 流式中继配置
	Relay RelayConfig `yaml:"relay" env:"RELAY"`

	// Compliance 合规评估配置
	Compliance ComplianceConfig `yaml:"compliance" env:"COMPLIANCE"`

	// Audit 审计存储配置
	Audit AuditConfig `yaml:"audit" env:"AUDIT"`

	// Upstream 上游生成器配置
	Upstream UpstreamConfig `yaml:"upstream" env:"UPSTREAM"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（流式端点需要长写超时，0 表示不限）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// RelayConfig 流式中继配置
type RelayConfig struct {
	// 尾部滞留的 token 数（lookahead 预算）
	LookaheadTokens int `yaml:"lookahead_tokens" env:"LOOKAHEAD_TOKENS"`
	// 两次释放间的最短间隔
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	// 滑动窗口大小（token）
	WindowTokens int `yaml:"window_tokens" env:"WINDOW_TOKENS"`
	// 窗口重叠（token）
	OverlapTokens int `yaml:"overlap_tokens" env:"OVERLAP_TOKENS"`
	// 每累计多少新 token 触发一次评估
	EvalFrequency int `yaml:"eval_frequency" env:"EVAL_FREQUENCY"`
	// 心跳间隔
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	// 事件队列容量
	QueueCapacity int `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	// 否决后是否下发安全替代子流
	SafeRewrite bool `yaml:"safe_rewrite" env:"SAFE_REWRITE"`
	// 分词编码名（tiktoken），留空用字符估算
	TokenizerEncoding string `yaml:"tokenizer_encoding" env:"TOKENIZER_ENCODING"`
}

// ComplianceConfig 合规评估配置
type ComplianceConfig struct {
	// 触发 BLOCK 的总分阈值（含等于）
	RiskThreshold float64 `yaml:"risk_threshold" env:"RISK_THRESHOLD"`
	// 实体置信度下限
	ConfidenceFloor float64 `yaml:"confidence_floor" env:"CONFIDENCE_FLOOR"`
	// 默认合规地区（HIPAA / PCI / GDPR / CCPA），可为空
	DefaultRegion string `yaml:"default_region" env:"DEFAULT_REGION"`
	// 是否启用内置实体识别器
	EntityRecognition bool `yaml:"entity_recognition" env:"ENTITY_RECOGNITION"`
	// 是否在流开始前预筛用户输入
	ScreenInput bool `yaml:"screen_input" env:"SCREEN_INPUT"`
}

// AuditConfig 审计存储配置
type AuditConfig struct {
	// 驱动: sqlite, memory, none
	Driver string `yaml:"driver" env:"DRIVER"`
	// SQLite 文件路径
	Path string `yaml:"path" env:"PATH"`
	// memory 驱动的最大保留条数
	MaxEntries int `yaml:"max_entries" env:"MAX_ENTRIES"`
}

// UpstreamConfig 上游生成器配置
type UpstreamConfig struct {
	// 提供方: demo（内置脚本源）或留空
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// demo 源的片段间隔
	DemoDelay time.Duration `yaml:"demo_delay" env:"DEMO_DELAY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 /metrics 端点
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "BLOCKINGD",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Relay.LookaheadTokens < 0 {
		errs = append(errs, "lookahead_tokens must not be negative")
	}
	if c.Relay.WindowTokens <= 0 {
		errs = append(errs, "window_tokens must be positive")
	}
	if c.Relay.OverlapTokens < 0 || c.Relay.OverlapTokens >= c.Relay.WindowTokens {
		errs = append(errs, "overlap_tokens must be in [0, window_tokens)")
	}
	if c.Relay.EvalFrequency <= 0 {
		errs = append(errs, "eval_frequency must be positive")
	}
	if c.Relay.QueueCapacity <= 0 {
		errs = append(errs, "queue_capacity must be positive")
	}
	if c.Compliance.RiskThreshold <= 0 {
		errs = append(errs, "risk_threshold must be positive")
	}
	if c.Compliance.ConfidenceFloor < 0 || c.Compliance.ConfidenceFloor > 1 {
		errs = append(errs, "confidence_floor must be in [0, 1]")
	}
	switch c.Audit.Driver {
	case "sqlite", "memory", "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown audit driver %q", c.Audit.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
