package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database (optional, enables match history)
	DatabaseURL    string
	MigrateOnStart bool
	MigrationsDir  string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string
	AdminAPIKey string
	// AdminKeyHash is a bcrypt hash of the admin key and wins over AdminAPIKey.
	AdminKeyHash string

	// Room lifecycle
	RoomIdleGraceSecs       int
	RoomSnapshotTTLHours    int
	ExpirySweepIntervalSecs int

	// WebSocket
	WSReadLimit      int64
	WSPongWaitSecs   int
	WSSendBufferSize int
	WSWriteWaitSecs  int
	WSPingPeriodSecs int

	// Security
	JWTSecret             string
	ResumeTokenTTLMinutes int
	RequireResumeToken    bool
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:         getEnv("APP_PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
		AdminAPIKey:  getEnv("ADMIN_API_KEY", ""),
		AdminKeyHash: getEnv("ADMIN_KEY_HASH", ""),

		// Room lifecycle
		RoomIdleGraceSecs:       getEnvInt("ROOM_IDLE_GRACE_SECONDS", 180),
		RoomSnapshotTTLHours:    getEnvInt("ROOM_SNAPSHOT_TTL_HOURS", 24),
		ExpirySweepIntervalSecs: getEnvInt("EXPIRY_SWEEP_INTERVAL_SECONDS", 30),

		// WebSocket
		WSReadLimit:      int64(getEnvInt("WS_READ_LIMIT", 65536)),
		WSPongWaitSecs:   getEnvInt("WS_PONG_WAIT_SECONDS", 60),
		WSSendBufferSize: getEnvInt("WS_SEND_BUFFER", 256),
		WSWriteWaitSecs:  getEnvInt("WS_WRITE_WAIT_SECONDS", 10),
		WSPingPeriodSecs: getEnvInt("WS_PING_PERIOD_SECONDS", 30),

		// Security
		JWTSecret:             getEnv("JWT_SECRET", ""),
		ResumeTokenTTLMinutes: getEnvInt("RESUME_TOKEN_TTL_MINUTES", 60),
		RequireResumeToken:    getEnvBool("REQUIRE_RESUME_TOKEN", false),
	}
}

// RoomIdleGrace is how long a room with zero sessions is kept alive.
func (c *Config) RoomIdleGrace() time.Duration {
	return time.Duration(c.RoomIdleGraceSecs) * time.Second
}

func (c *Config) RoomSnapshotTTL() time.Duration {
	return time.Duration(c.RoomSnapshotTTLHours) * time.Hour
}

func (c *Config) ResumeTokenTTL() time.Duration {
	return time.Duration(c.ResumeTokenTTLMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
