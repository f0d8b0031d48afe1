package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by the server.
const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName      string
	Environment  string
	HTTP         HTTPConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Week         WeekConfig
	Limits       LimitsConfig
	Schedule     ScheduleConfig
	Conversation ConversationConfig
	Context      ContextConfig
	Logger       LoggerConfig
	Migrations   MigrationsConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	Enabled        bool
	URL            string
	Password       string
	DB             int
	ConnectTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
	// ServiceUserIDs are the token subjects allowed to post chat events on
	// behalf of other users and to fire scheduler triggers.
	ServiceUserIDs []string
}

// StorageConfig selects the durable store behind the repositories.
type StorageConfig struct {
	Driver     string
	BoltPath   string
	RetryCount int
}

// WeekConfig fixes the UTC offset every week boundary is observed in.
type WeekConfig struct {
	ZoneOffset time.Duration
}

type LimitsConfig struct {
	MaxTasksPerWeek int
	MinTasksPerWeek int
	DescriptionMax  int
	PageSize        int
	HistoryLimit    int
}

type ScheduleConfig struct {
	Enabled         bool
	StatsSpec       string
	ResetSpec       string
	MaxRetries      int
	RetryInterval   time.Duration
	FinalizeOnReset bool
	LockTTL         time.Duration
}

type ConversationConfig struct {
	TTL time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level      string
	Encoding   string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "weeklytasks"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "weeklytasks"),
			User:            getString("DB_USER", "weeklytasks"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:        getBool("REDIS_ENABLED", true),
			URL:            getString("REDIS_URL", "redis://localhost:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             getInt("REDIS_DB", 0),
			ConnectTimeout: getDuration("REDIS_CONNECT_TIMEOUT", 5*time.Second),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			Issuer:         getString("JWT_ISSUER", "weeklytasks"),
			ServiceUserIDs: getList("SERVICE_USER_IDS"),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getString("STORAGE_DRIVER", DriverPostgres)),
			BoltPath:   getString("BOLTDB_PATH", "./data/weeklytasks.db"),
			RetryCount: getInt("STORE_RETRY_ATTEMPTS", 3),
		},
		Week: WeekConfig{
			ZoneOffset: getDuration("WEEK_ZONE_OFFSET", 3*time.Hour),
		},
		Limits: LimitsConfig{
			MaxTasksPerWeek: getInt("TASKS_MAX_PER_WEEK", 5),
			MinTasksPerWeek: getInt("TASKS_MIN_PER_WEEK", 3),
			DescriptionMax:  getInt("TASK_DESCRIPTION_MAX", 500),
			PageSize:        getInt("PAGE_SIZE", 5),
			HistoryLimit:    getInt("HISTORY_LIMIT", 10),
		},
		Schedule: ScheduleConfig{
			Enabled:         getBool("SCHEDULE_ENABLED", true),
			StatsSpec:       getString("SCHEDULE_STATS_SPEC", "0 17 * * FRI"),
			ResetSpec:       getString("SCHEDULE_RESET_SPEC", "0 0 * * MON"),
			MaxRetries:      getInt("SCHEDULE_MAX_RETRIES", 5),
			RetryInterval:   getDuration("SCHEDULE_RETRY_INTERVAL", 2*time.Second),
			FinalizeOnReset: getBool("SCHEDULE_FINALIZE_ON_RESET", true),
			LockTTL:         getDuration("SCHEDULE_LOCK_TTL", 30*time.Minute),
		},
		Conversation: ConversationConfig{
			TTL: getDuration("CONVERSATION_TTL", 10*time.Minute),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:      getString("LOG_LEVEL", "info"),
			Encoding:   getString("LOG_ENCODING", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getInt("LOG_FILE_MAX_AGE_DAYS", 28),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverBolt:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Limits.MaxTasksPerWeek <= 0 {
		return fmt.Errorf("config: TASKS_MAX_PER_WEEK must be positive")
	}
	if c.Limits.MinTasksPerWeek < 0 || c.Limits.MinTasksPerWeek > c.Limits.MaxTasksPerWeek {
		return fmt.Errorf("config: TASKS_MIN_PER_WEEK must be within 0..%d", c.Limits.MaxTasksPerWeek)
	}
	if c.Environment == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	if c.Week.ZoneOffset < -12*time.Hour || c.Week.ZoneOffset > 14*time.Hour {
		return fmt.Errorf("config: WEEK_ZONE_OFFSET %s out of range", c.Week.ZoneOffset)
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
