package config

import (
	"net"
	"strconv"
	"time"
)

// APIConfig holds runtime configuration for the postboard API service.
type APIConfig struct {
	Environment        string
	Host               string
	Port               int
	DatabaseURL        string
	DatabaseName       string
	MigrationsDir      string
	ConnectTimeout     time.Duration
	LogConfigPath      string
	AuthSecret         string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	WriteRateLimit     int
	ReadRateLimit      int
	TrustForwarded     bool
	EventBuffer        int
	ShutdownTimeout    time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Host:               GetString("API_HOST", "127.0.0.1"),
		Port:               GetInt("API_PORT", 8000),
		DatabaseURL:        GetString("DATABASE_URL", "mongodb://localhost:27017"),
		DatabaseName:       GetString("DATABASE_NAME", "postboard"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		ConnectTimeout:     GetDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
		LogConfigPath:      GetString("LOG_CONFIG", ""),
		AuthSecret:         GetString("API_AUTH_SECRET", ""),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		WriteRateLimit:     GetInt("RATE_LIMIT_WRITES_PER_MINUTE", 60),
		ReadRateLimit:      GetInt("RATE_LIMIT_READS_PER_MINUTE", 600),
		TrustForwarded:     GetBool("API_TRUST_FORWARDED", false),
		EventBuffer:        GetInt("WS_EVENT_BUFFER", 64),
		ShutdownTimeout:    GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr returns the host:port pair the HTTP server binds to.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
