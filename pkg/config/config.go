// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	DatabaseURL string
	DB          DBConfig
	ApplySchema bool
	SchemaPath  string

	CORS CORSConfig
	TLS  TLSConfig
	Chat ChatConfig

	SendGrid         SendGridConfig
	ModerationEmails []string
	Kafka            KafkaConfig
}

// DBConfig sizes the pgx pool.
type DBConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// TLSConfig holds environment-driven TLS configuration.
type TLSConfig struct {
	Enable bool
	// CertPath and KeyPath point to PEM files. Both are required in production.
	CertPath string
	KeyPath  string
	// CertPEM and KeyPEM carry inline PEM as a fallback to the paths.
	CertPEM string
	KeyPEM  string
	// AllowSelfSigned generates a localhost certificate outside production
	// when no certificate is configured.
	AllowSelfSigned bool
}

// ChatConfig bounds socket traffic.
type ChatConfig struct {
	MaxMessageLength int
	RateLimitRPS     float64
	RateLimitBurst   int
	HistoryLimit     int
}

type SendGridConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

type KafkaConfig struct {
	Brokers      []string
	ReportsTopic string
}

// Production reports whether the server runs with production safeguards.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	env := strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", os.Getenv("ENV"))))
	if env == "" {
		env = "development"
	}

	cfg := Config{
		Env:         env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SchemaPath:  getEnv("SCHEMA_PATH", "pkg/db/schema.sql"),
		TLS: TLSConfig{
			CertPath: os.Getenv("TLS_CERT_PATH"),
			KeyPath:  os.Getenv("TLS_KEY_PATH"),
			CertPEM:  os.Getenv("TLS_CERT"),
			KeyPEM:   os.Getenv("TLS_KEY"),
		},
		SendGrid: SendGridConfig{
			APIKey:      os.Getenv("SENDGRID_API_KEY"),
			SenderEmail: os.Getenv("SENDGRID_SENDER_EMAIL"),
			SenderName:  getEnv("SENDGRID_SENDER_NAME", "Hackmate"),
		},
		ModerationEmails: splitList(os.Getenv("MODERATION_EMAILS")),
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			ReportsTopic: getEnv("KAFKA_REPORTS_TOPIC", "chat.message-reports"),
		},
	}

	var err error
	if cfg.DB.MaxConns, err = parseInt32Env("DB_MAX_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.DB.MinConns, err = parseInt32Env("DB_MIN_CONNS", 2); err != nil {
		return Config{}, err
	}
	if cfg.DB.MaxConnIdleTime, err = parseDurationEnv("DB_MAX_CONN_IDLE_TIME", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ApplySchema, err = parseBoolEnv("APPLY_SCHEMA_ON_START", true); err != nil {
		return Config{}, err
	}

	cfg.CORS.AllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.CORS.AllowCredentials, err = parseBoolEnv("CORS_ALLOW_CREDENTIALS", false); err != nil {
		return Config{}, err
	}

	if cfg.TLS.Enable, err = parseBoolEnv("ENABLE_TLS", true); err != nil {
		return Config{}, err
	}
	if cfg.TLS.AllowSelfSigned, err = parseBoolEnv("TLS_SELF_SIGNED", true); err != nil {
		return Config{}, err
	}
	// Enforce TLS in production
	if cfg.Production() {
		cfg.TLS.Enable = true
		cfg.TLS.AllowSelfSigned = false
	}

	defaultPort := "8080"
	if cfg.TLS.Enable {
		defaultPort = "8443"
	}
	cfg.Port = getEnv("SERVER_PORT", defaultPort)

	if cfg.Chat.MaxMessageLength, err = parseIntEnv("CHAT_MAX_MESSAGE_LENGTH", 10000); err != nil {
		return Config{}, err
	}
	if cfg.Chat.RateLimitRPS, err = parseFloatEnv("CHAT_RATE_LIMIT_RPS", 10); err != nil {
		return Config{}, err
	}
	if cfg.Chat.RateLimitBurst, err = parseIntEnv("CHAT_RATE_LIMIT_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.Chat.HistoryLimit, err = parseIntEnv("CHAT_HISTORY_LIMIT", 50); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures settings are safe for the selected environment.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Production() {
		if !c.TLS.Enable {
			return fmt.Errorf("TLS must be enabled in production")
		}
		if c.TLS.CertPath == "" || c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_CERT_PATH and TLS_KEY_PATH are required in production")
		}
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be positive")
	}
	if c.Chat.HistoryLimit <= 0 || c.Chat.HistoryLimit > 100 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be between 1 and 100")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseInt32Env(key string, def int32) (int32, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return int32(v), nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return v, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
