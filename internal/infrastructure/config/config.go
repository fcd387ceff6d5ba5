package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Maintenance   MaintenanceConfig
	Webhook       WebhookConfig
	Trial         TrialConfig
	Scheduler     SchedulerConfig
	OpenTelemetry OpenTelemetryConfig
	Environment   string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig JWT設定
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// MaintenanceConfig メンテナンスエンドポイント設定
// 外部スケジューラからの失効スイープ・月次リフレッシュ呼び出しを共有シークレットで保護する
type MaintenanceConfig struct {
	Enabled bool
	Secret  string
}

// WebhookConfig 決済Webhook設定
type WebhookConfig struct {
	SigningSecret string
	// Tolerance 署名タイムスタンプの許容ずれ（リプレイ対策）
	Tolerance time.Duration
}

// TrialConfig トライアル付与の既定値
type TrialConfig struct {
	Sparks int64
	TTL    time.Duration
}

// SchedulerConfig プロセス内スケジューラ設定
// 外部スケジューラが無い環境向け。既定では無効
type SchedulerConfig struct {
	Enabled          bool
	TrialSweepSpec   string
	TopupSweepSpec   string
	RefreshSpec      string
	SweepBatchLimit  int
	RefreshPageLimit int
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "stdout"
	MetricsExporter string // "otlp", "stdout"
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "spark_db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "spark-ledger"),
		},
		Maintenance: MaintenanceConfig{
			Enabled: getEnvAsBool("MAINTENANCE_API_ENABLED", true),
			Secret:  getEnv("MAINTENANCE_API_SECRET", ""),
		},
		Webhook: WebhookConfig{
			SigningSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Tolerance:     getEnvAsDuration("PAYMENT_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Trial: TrialConfig{
			Sparks: getEnvAsInt64("TRIAL_SPARKS", 50),
			TTL:    getEnvAsDuration("TRIAL_TTL", 14*24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", false),
			TrialSweepSpec:   getEnv("SCHEDULER_TRIAL_SWEEP_SPEC", "0 * * * *"),
			TopupSweepSpec:   getEnv("SCHEDULER_TOPUP_SWEEP_SPEC", "30 * * * *"),
			RefreshSpec:      getEnv("SCHEDULER_REFRESH_SPEC", "0 3 1 * *"),
			SweepBatchLimit:  getEnvAsInt("SCHEDULER_SWEEP_BATCH_LIMIT", 500),
			RefreshPageLimit: getEnvAsInt("SCHEDULER_REFRESH_PAGE_LIMIT", 200),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "spark-ledger"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
		},
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Maintenance.Enabled && c.Maintenance.Secret == "" {
		return fmt.Errorf("MAINTENANCE_API_SECRET is required when maintenance API is enabled")
	}
	if c.Webhook.SigningSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if c.Trial.Sparks <= 0 {
		return fmt.Errorf("TRIAL_SPARKS must be positive")
	}
	return nil
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 環境変数を64bit整数として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
