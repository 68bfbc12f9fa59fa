package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Store    StoreConfig
	Booking  BookingConfig
	Metrics  MetricsConfig
}

// AppConfig は実行環境の設定
type AppConfig struct {
	Env      string
	LogLevel string
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// StoreConfig は永続化先の設定
type StoreConfig struct {
	// Driver は "memory" または "postgres"
	Driver         string
	MigrationsPath string
	AutoMigrate    bool
}

// BookingConfig は座席予約の並行制御に関する設定
type BookingConfig struct {
	ReservationTTL  time.Duration // 仮押さえの有効期間
	LockHoldTTL     time.Duration // 編集ロックの有効期間
	PendingTTL      time.Duration // 保留中予約の有効期間
	SeatLockTimeout time.Duration // 座席ロックの取得待ち上限
	Workers         int
	QueueSize       int
	QueuePolicy     string // "reject" または "wait"
	SweepInterval   time.Duration
}

// MetricsConfig は /metrics の認証設定
type MetricsConfig struct {
	User     string
	Password string
}

// ストアドライバー
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// LoadDotEnv は .env ファイルがあれば環境変数として読み込む
// 既に設定されている環境変数は上書きしない
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5433"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cinema_booking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			CacheTTL: getDurationEnv("REDIS_CACHE_TTL", 5*time.Second),
		},
		Store: StoreConfig{
			Driver:         getEnv("STORE_DRIVER", DriverMemory),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
			AutoMigrate:    getBoolEnv("AUTO_MIGRATE", true),
		},
		Booking: BookingConfig{
			ReservationTTL:  getDurationEnv("BOOKING_RESERVATION_TTL", 5*time.Minute),
			LockHoldTTL:     getDurationEnv("BOOKING_LOCK_HOLD_TTL", 30*time.Second),
			PendingTTL:      getDurationEnv("BOOKING_PENDING_TTL", 10*time.Minute),
			SeatLockTimeout: getDurationEnv("BOOKING_SEAT_LOCK_TIMEOUT", 5*time.Second),
			Workers:         getIntEnv("BOOKING_WORKERS", 50),
			QueueSize:       getIntEnv("BOOKING_QUEUE_SIZE", 256),
			QueuePolicy:     getEnv("BOOKING_QUEUE_POLICY", "reject"),
			SweepInterval:   getDurationEnv("BOOKING_SWEEP_INTERVAL", 30*time.Second),
		},
		Metrics: MetricsConfig{
			User:     getEnv("METRICS_USER", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
	}

	// PaaS 形式の接続URLが与えられていれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		if db, ok := parseDatabaseURL(raw); ok {
			cfg.Database = db
		}
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if host, port, password, ok := parseRedisURL(raw); ok {
			cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password = host, port, password
			cfg.Redis.Enabled = true
		}
	}

	return cfg
}

func parseDatabaseURL(raw string) (DatabaseConfig, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return DatabaseConfig{}, false
	}
	db := DatabaseConfig{
		Host:    u.Hostname(),
		Port:    u.Port(),
		DBName:  trimSlash(u.Path),
		SSLMode: u.Query().Get("sslmode"),
	}
	if db.Port == "" {
		db.Port = "5432"
	}
	if db.SSLMode == "" {
		db.SSLMode = "require"
	}
	if u.User != nil {
		db.User = u.User.Username()
		db.Password, _ = u.User.Password()
	}
	return db, true
}

func parseRedisURL(raw string) (host, port, password string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", "", false
	}
	host, port = u.Hostname(), u.Port()
	if port == "" {
		port = "6379"
	}
	if u.User != nil {
		password, _ = u.User.Password()
	}
	return host, port, password, true
}

func trimSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// IsEnabled は /metrics の認証が有効かを返す
func (c *MetricsConfig) IsEnabled() bool {
	return c.User != "" && c.Password != ""
}

// IsProduction は本番環境かを返す
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
