package config

import (
	"time"

	"github.com/spf13/viper"
)

type StoreBackend string

const (
	StoreBackendSQLite StoreBackend = "sqlite" // Documents table in the main database (default)
	StoreBackendRedis  StoreBackend = "redis"  // JSON values in Redis
	StoreBackendMemory StoreBackend = "memory" // Process memory, lost on restart
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Auth
		Web
		Store
		Clients
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // json or console
	}
	Auth struct {
		BcryptCost          int
		MinPasswordLength   int
		PersistenceLifetime time.Duration // How long a client stays signed in across restarts

		// Failed sign-in limiting
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)

		SignInPurgeSchedule string // Cron format for removing expired persisted sign-ins
	}
	Web struct {
		SessionSecret   string
		SessionLifetime time.Duration
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool
	}
	Store struct {
		Backend       StoreBackend
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		RedisPrefix   string
	}
	Clients struct {
		IdleTimeout   time.Duration // Providers unused for this long are torn down
		EvictSchedule string        // Cron format or descriptor, e.g. "@every 5m"
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 30)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Identity backend defaults
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_min_password_length", 6)
	v.SetDefault("auth_persistence_lifetime", "720h") // 30 days
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")
	v.SetDefault("auth_sign_in_purge_schedule", "@every 1h")

	// Browser session defaults
	v.SetDefault("web_session_secret", "") // Auto-generated if empty
	v.SetDefault("web_session_lifetime", "720h")
	v.SetDefault("web_secure_cookies", true)
	v.SetDefault("web_csrf_enabled", true)

	// Document store defaults
	v.SetDefault("store_backend", string(StoreBackendSQLite))
	v.SetDefault("store_redis_addr", "localhost:6379")
	v.SetDefault("store_redis_password", "")
	v.SetDefault("store_redis_db", 0)
	v.SetDefault("store_redis_prefix", "healthbook:")

	v.SetDefault("clients_idle_timeout", "30m")
	v.SetDefault("clients_evict_schedule", "@every 5m")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Auth: Auth{
			BcryptCost:          v.GetInt("AUTH_BCRYPT_COST"),
			MinPasswordLength:   v.GetInt("AUTH_MIN_PASSWORD_LENGTH"),
			PersistenceLifetime: v.GetDuration("AUTH_PERSISTENCE_LIFETIME"),
			MaxLoginAttempts:    v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:     v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:     v.GetDuration("AUTH_LOCKOUT_DURATION"),
			SignInPurgeSchedule: v.GetString("AUTH_SIGN_IN_PURGE_SCHEDULE"),
		},
		Web: Web{
			SessionSecret:   v.GetString("WEB_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("WEB_SESSION_LIFETIME"),
			SecureCookies:   v.GetBool("WEB_SECURE_COOKIES"),
			CSRFEnabled:     v.GetBool("WEB_CSRF_ENABLED"),
		},
		Store: Store{
			Backend:       StoreBackend(v.GetString("STORE_BACKEND")),
			RedisAddr:     v.GetString("STORE_REDIS_ADDR"),
			RedisPassword: v.GetString("STORE_REDIS_PASSWORD"),
			RedisDB:       v.GetInt("STORE_REDIS_DB"),
			RedisPrefix:   v.GetString("STORE_REDIS_PREFIX"),
		},
		Clients: Clients{
			IdleTimeout:   v.GetDuration("CLIENTS_IDLE_TIMEOUT"),
			EvictSchedule: v.GetString("CLIENTS_EVICT_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
