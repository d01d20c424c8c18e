package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env       string          `mapstructure:"env"` // 环境: development, production
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Authz     AuthzConfig     `mapstructure:"authz"`
	OpenFGA   OpenFGAConfig   `mapstructure:"openfga"`
	Events    EventsConfig    `mapstructure:"events"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Path            string `mapstructure:"path"`   // sqlite 文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// LedgerConfig 账本协议参数
// 金额使用十进制字符串,由 money 包解析为最小单位
type LedgerConfig struct {
	Owner                string `mapstructure:"owner"`
	MinimumBounty        string `mapstructure:"minimum_bounty"`
	MinimumStake         string `mapstructure:"minimum_stake"`
	MaxConcurrentClaims  int    `mapstructure:"max_concurrent_claims"`
	ClaimWindowHours     int    `mapstructure:"claim_window_hours"`
	DailySubmissionLimit int    `mapstructure:"daily_submission_limit"`
	PlatformFeeBps       int64  `mapstructure:"platform_fee_bps"`
	RefundFeeBps         int64  `mapstructure:"refund_fee_bps"`
	ReviewerBonusBps     int64  `mapstructure:"reviewer_bonus_bps"`
	ConsensusThreshold   int    `mapstructure:"consensus_threshold"`
	MaxReviewers         int    `mapstructure:"max_reviewers"`
	CoolingOffSeconds    int    `mapstructure:"cooling_off_seconds"`
	MaxEvidenceAgeMinute int    `mapstructure:"max_evidence_age_minutes"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
}

// AuthConfig 身份认证配置
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`      // HS256 密钥(开发环境)
	KeycloakIssuer string `mapstructure:"keycloak_issuer"` // 设置后使用 Keycloak RS256
	AdminKeyHash   string `mapstructure:"admin_key_hash"`  // bcrypt 哈希
}

// AuthzConfig 组件授权配置
type AuthzConfig struct {
	Backend    string `mapstructure:"backend"` // db, openfga
	PolicyFile string `mapstructure:"policy_file"`
	CacheTTL   int    `mapstructure:"cache_ttl"` // 秒
}

// OpenFGAConfig OpenFGA 配置
type OpenFGAConfig struct {
	APIURL  string `mapstructure:"api_url"`
	StoreID string `mapstructure:"store_id"`
	ModelID string `mapstructure:"model_id"`
}

// EventsConfig 事件分发配置
type EventsConfig struct {
	Workers      int      `mapstructure:"workers"`
	PollInterval int      `mapstructure:"poll_interval"` // 毫秒
	AMQPURL      string   `mapstructure:"amqp_url"`
	Exchange     string   `mapstructure:"exchange"`
	Webhooks     []string `mapstructure:"webhooks"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"` // 0~1
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
}

// Load 加载配置,支持配置文件、.env 文件和环境变量
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.bounty-gin")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "bounty.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bounty")
	v.SetDefault("database.sslmode", "disable")
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 300)
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 600)
	}

	// 账本协议默认参数
	v.SetDefault("ledger.owner", "platform-owner")
	v.SetDefault("ledger.minimum_bounty", "0.5")
	v.SetDefault("ledger.minimum_stake", "0.01")
	v.SetDefault("ledger.max_concurrent_claims", 3)
	v.SetDefault("ledger.claim_window_hours", 24)
	v.SetDefault("ledger.daily_submission_limit", 20)
	v.SetDefault("ledger.platform_fee_bps", 250)
	v.SetDefault("ledger.refund_fee_bps", 500)
	v.SetDefault("ledger.reviewer_bonus_bps", 1000)
	v.SetDefault("ledger.consensus_threshold", 3)
	v.SetDefault("ledger.max_reviewers", 7)
	v.SetDefault("ledger.cooling_off_seconds", 300)
	v.SetDefault("ledger.max_evidence_age_minutes", 60)
	v.SetDefault("ledger.sweep_interval_seconds", 60)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.keycloak_issuer", "")
	v.SetDefault("auth.admin_key_hash", "")

	v.SetDefault("authz.backend", "db")
	v.SetDefault("authz.policy_file", "")
	v.SetDefault("authz.cache_ttl", 60)

	v.SetDefault("openfga.api_url", "http://localhost:8081")
	v.SetDefault("openfga.store_id", "")
	v.SetDefault("openfga.model_id", "")

	v.SetDefault("events.workers", 5)
	v.SetDefault("events.poll_interval", 500)
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "bounty.events")
	v.SetDefault("events.webhooks", []string{})

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "X-Admin-Key"})
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_ratio", 1.0)

	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
}
